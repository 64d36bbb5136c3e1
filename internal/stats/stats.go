// Package stats computes the chart-ready aggregates shown on the dashboard.
// Every figure is recomputed from the full collection on each read.
package stats

import (
	"cmp"
	"context"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/listenupapp/shelfwise/internal/domain"
	"github.com/listenupapp/shelfwise/internal/normalize"
)

// DefaultTopGenres bounds the genre series.
const DefaultTopGenres = 10

const monthLayout = "2006-01"

// Books is the slice of the repository the dashboard reads.
type Books interface {
	GetAll(ctx context.Context) ([]*domain.Book, error)
	CompletionPercentage(ctx context.Context, id string) (int, error)
}

// Point is one labelled value in a chart series.
type Point struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// Dashboard is the full set of aggregates.
type Dashboard struct {
	TotalBooks         int     `json:"totalBooks"`
	TotalPages         int     `json:"totalPages"`
	Favorites          int     `json:"favorites"`
	Rereads            int     `json:"rereads"`
	AverageRating      float64 `json:"averageRating"`
	AverageCompletion  float64 `json:"averageCompletion"`
	Enriched           int     `json:"enriched"`
	EnrichmentCoverage float64 `json:"enrichmentCoverage"`
	CurrentStreakDays  int     `json:"currentStreakDays"`
	LongestStreakDays  int     `json:"longestStreakDays"`

	StatusCounts       []Point `json:"statusCounts"`
	GenreCounts        []Point `json:"genreCounts"`
	RatingDistribution []Point `json:"ratingDistribution"`
	AddedPerMonth      []Point `json:"addedPerMonth"`
	PagesReadPerMonth  []Point `json:"pagesReadPerMonth"`
	LanguageCounts     []Point `json:"languageCounts"`
	DecadeCounts       []Point `json:"decadeCounts"`
}

// Service builds dashboards.
type Service struct {
	books     Books
	logger    *slog.Logger
	topGenres int
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTopGenres caps the genre series at n entries.
func WithTopGenres(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.topGenres = n
		}
	}
}

// WithClock overrides the clock used for reading streaks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a dashboard service.
func NewService(books Books, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		books:     books,
		logger:    logger,
		topGenres: DefaultTopGenres,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dashboard computes every aggregate from the current collection.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	books, err := s.books.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{TotalBooks: len(books)}

	statuses := make(map[string]int, len(domain.ReadingStatuses))
	genres := map[string]int{}
	ratings := make([]int, domain.MaxRating+1)
	added := map[string]int{}
	pagesRead := map[string]int{}
	languages := map[string]int{}
	decades := map[string]int{}

	var ratingSum, rated, completionSum int
	for _, b := range books {
		d.TotalPages += b.PageCount
		statuses[string(b.ReadingStatus)]++

		for _, g := range uniqueGenres(b.Genres) {
			genres[g]++
		}

		if b.UserRating >= 0 && b.UserRating <= domain.MaxRating {
			ratings[b.UserRating]++
		}
		if b.UserRating > 0 {
			ratingSum += b.UserRating
			rated++
		}
		if b.Favorite {
			d.Favorites++
		}
		if b.Reread {
			d.Rereads++
		}
		if b.HasEnrichment() {
			d.Enriched++
		}

		if !b.DateAdded.IsZero() {
			added[b.DateAdded.Format(monthLayout)]++
		}
		if b.ReadingStatus == domain.StatusCompleted && b.PageCount > 0 {
			pagesRead[finishedAt(b).Format(monthLayout)] += b.PageCount
		}

		if b.Language != "" {
			label := normalize.Language(b.Language)
			if label == "" {
				label = b.Language
			}
			languages[label]++
		}
		if decade := decadeOf(b.PublishedDate); decade != "" {
			decades[decade]++
		}

		pct, err := s.books.CompletionPercentage(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		completionSum += pct
	}

	if rated > 0 {
		d.AverageRating = round(float64(ratingSum)/float64(rated), 2)
	}
	if len(books) > 0 {
		d.AverageCompletion = round(float64(completionSum)/float64(len(books)), 1)
		d.EnrichmentCoverage = round(float64(d.Enriched)/float64(len(books))*100, 1)
	}
	d.CurrentStreakDays, d.LongestStreakDays = readingStreaks(books, s.now())

	d.StatusCounts = make([]Point, 0, len(domain.ReadingStatuses))
	for _, st := range domain.ReadingStatuses {
		d.StatusCounts = append(d.StatusCounts, Point{Label: string(st), Value: statuses[string(st)]})
	}

	d.RatingDistribution = make([]Point, 0, len(ratings))
	for r, n := range ratings {
		d.RatingDistribution = append(d.RatingDistribution, Point{Label: strconv.Itoa(r), Value: n})
	}

	d.GenreCounts = byValue(genres)
	if len(d.GenreCounts) > s.topGenres {
		d.GenreCounts = d.GenreCounts[:s.topGenres]
	}
	d.LanguageCounts = byValue(languages)
	d.AddedPerMonth = byLabel(added)
	d.PagesReadPerMonth = byLabel(pagesRead)
	d.DecadeCounts = byLabel(decades)

	s.logger.Debug("dashboard computed", "books", len(books), "enriched", d.Enriched)
	return d, nil
}

// finishedAt approximates when a completed book was finished: the end of its
// latest reading session, else its last modification.
func finishedAt(b *domain.Book) time.Time {
	var latest time.Time
	for _, sess := range b.ReadingSessions {
		t := sess.StartedAt
		if sess.EndedAt != nil {
			t = *sess.EndedAt
		}
		if t.After(latest) {
			latest = t
		}
	}
	if latest.IsZero() {
		return b.LastModified
	}
	return latest
}

// decadeOf maps a catalog date ("1965", "1965-08-01") to "1960s".
func decadeOf(date string) string {
	if len(date) < 4 {
		return ""
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil || year <= 0 {
		return ""
	}
	return strconv.Itoa(year/10*10) + "s"
}

func uniqueGenres(genres []string) []string {
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		if g != "" && !slices.Contains(out, g) {
			out = append(out, g)
		}
	}
	return out
}

// byValue sorts largest first, ties broken by label.
func byValue(m map[string]int) []Point {
	points := toPoints(m)
	slices.SortFunc(points, func(a, b Point) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	return points
}

// byLabel sorts ascending by label, which is chronological for month and
// decade labels.
func byLabel(m map[string]int) []Point {
	points := toPoints(m)
	slices.SortFunc(points, func(a, b Point) int { return cmp.Compare(a.Label, b.Label) })
	return points
}

func toPoints(m map[string]int) []Point {
	points := make([]Point, 0, len(m))
	for label, v := range m {
		points = append(points, Point{Label: label, Value: v})
	}
	return points
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
