package catalog

import (
	"strings"

	"github.com/moraes/isbn"

	"github.com/listenupapp/shelfwise/internal/domain"
	"github.com/listenupapp/shelfwise/internal/id"
	"github.com/listenupapp/shelfwise/internal/normalize"
)

// Defaults applied when the catalog omits a field.
const (
	DefaultPublisher = "Unknown Publisher"
	DefaultLanguage  = "en"
)

// ToMinimalBook maps a catalog record to the minimal book data used to create
// a Book. The ISBN prefers a 13-digit identifier, then a 10-digit one
// (converted to 13 digits when its checksum is valid), then a generated
// placeholder. Author ids are a name slug plus a random suffix.
func ToMinimalBook(v RawVolume) domain.MinimalBook {
	info := v.VolumeInfo

	publisher := strings.TrimSpace(info.Publisher)
	if publisher == "" {
		publisher = DefaultPublisher
	}

	authors := make([]domain.Author, 0, len(info.Authors))
	for _, name := range info.Authors {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		authors = append(authors, domain.Author{ID: AuthorID(name), Name: name})
	}

	var cover string
	if info.ImageLinks != nil {
		cover = info.ImageLinks.Thumbnail
		if cover == "" {
			cover = info.ImageLinks.SmallThumbnail
		}
		cover = strings.Replace(cover, "http://", "https://", 1)
	}

	return domain.MinimalBook{
		ID:            v.ID,
		ISBN:          pickISBN(info.IndustryIdentifiers),
		Title:         strings.TrimSpace(info.Title),
		Subtitle:      strings.TrimSpace(info.Subtitle),
		Authors:       authors,
		Publisher:     publisher,
		PublishedDate: info.PublishedDate,
		PageCount:     info.PageCount,
		Language:      normalize.LanguageCodeOr(info.Language, DefaultLanguage),
		Description:   normalize.Description(info.Description),
		CoverURL:      cover,
		Categories:    info.Categories,
	}
}

// AuthorID builds a collision-resistant author id from a display name.
func AuthorID(name string) string {
	slug := normalize.Slug(name)
	if slug == "" {
		slug = "author"
	}
	return slug + "-" + id.Short()
}

// PlaceholderISBN returns a fresh placeholder ISBN.
func PlaceholderISBN() string {
	return domain.PlaceholderISBNPrefix + id.MustGenerate("")
}

func pickISBN(ids []IndustryIdentifier) string {
	var isbn13, isbn10 string
	for _, ident := range ids {
		value := normalize.ISBN(ident.Identifier)
		switch ident.Type {
		case TypeISBN13:
			if isbn13 == "" && value != "" {
				isbn13 = value
			}
		case TypeISBN10:
			if isbn10 == "" && value != "" {
				isbn10 = value
			}
		}
	}

	switch {
	case isbn13 != "":
		return isbn13
	case isbn10 != "":
		if isbn.Validate10(isbn10) {
			if converted, err := isbn.To13(isbn10); err == nil {
				return converted
			}
		}
		return isbn10
	default:
		return PlaceholderISBN()
	}
}
