package stats

import (
	"slices"
	"time"

	"github.com/listenupapp/shelfwise/internal/domain"
)

const dayLayout = "2006-01-02"

// readingStreaks returns the current and longest runs of consecutive days with
// at least one reading session. The current streak only counts when the last
// reading day is today or yesterday.
func readingStreaks(books []*domain.Book, now time.Time) (current, longest int) {
	loc := now.Location()
	set := map[string]bool{}
	for _, b := range books {
		for _, sess := range b.ReadingSessions {
			set[sess.StartedAt.In(loc).Format(dayLayout)] = true
		}
	}
	if len(set) == 0 {
		return 0, 0
	}

	days := make([]string, 0, len(set))
	for d := range set {
		days = append(days, d)
	}
	slices.Sort(days)

	longest, run := 1, 1
	for i := 1; i < len(days); i++ {
		prev, _ := time.Parse(dayLayout, days[i-1])
		curr, _ := time.Parse(dayLayout, days[i])
		if prev.AddDate(0, 0, 1).Equal(curr) {
			run++
		} else {
			run = 1
		}
		longest = max(longest, run)
	}

	today := now.In(loc).Format(dayLayout)
	yesterday := now.In(loc).AddDate(0, 0, -1).Format(dayLayout)
	last := days[len(days)-1]
	if last != today && last != yesterday {
		return 0, longest
	}

	check, _ := time.Parse(dayLayout, last)
	for set[check.Format(dayLayout)] {
		current++
		check = check.AddDate(0, 0, -1)
	}
	return current, longest
}
