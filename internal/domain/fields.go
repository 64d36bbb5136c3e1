package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// ErrUnknownField is returned by SetField for names that are not writable book fields.
var ErrUnknownField = errors.New("unknown book field")

// writableFields lists every name accepted by SetField.
var writableFields = []string{
	"title", "subtitle", "authors", "description", "coverUrl",
	"publisher", "publishedDate", "pageCount", "language", "isbn",
	"genres", "subgenres", "subjects", "contentTags", "audience", "fiction",
	"narrative", "pointOfView", "tense", "timeline", "format",
	"themes", "characters", "locations",
	"mood", "pacing", "readingTime", "contentWarnings",
	"cultural", "representation", "diversityElements",
	"complexity",
	"readingStatus", "userRating", "favorite", "reread", "rereadCount", "notes", "tags",
}

// WritableFields returns the field names SetField accepts.
func WritableFields() []string {
	return slices.Clone(writableFields)
}

func decodeInto[T any](raw json.RawMessage, dst *T) error {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	*dst = v
	return nil
}

// SetField overwrites exactly one named field with the JSON-encoded value.
// It returns ErrUnknownField for names outside WritableFields and a decode
// error when the value does not fit the field's type.
//
//nolint:gocyclo // One case per field.
func (b *Book) SetField(name string, raw json.RawMessage) error {
	var err error
	switch name {
	case "title":
		err = decodeInto(raw, &b.Title)
	case "subtitle":
		err = decodeInto(raw, &b.Subtitle)
	case "authors":
		err = decodeInto(raw, &b.Authors)
	case "description":
		err = decodeInto(raw, &b.Description)
	case "coverUrl":
		err = decodeInto(raw, &b.CoverURL)
	case "publisher":
		err = decodeInto(raw, &b.Publisher)
	case "publishedDate":
		err = decodeInto(raw, &b.PublishedDate)
	case "pageCount":
		err = decodeInto(raw, &b.PageCount)
	case "language":
		err = decodeInto(raw, &b.Language)
	case "isbn":
		err = decodeInto(raw, &b.ISBN)
	case "genres":
		err = decodeInto(raw, &b.Genres)
	case "subgenres":
		err = decodeInto(raw, &b.Subgenres)
	case "subjects":
		err = decodeInto(raw, &b.Subjects)
	case "contentTags":
		err = decodeInto(raw, &b.ContentTags)
	case "audience":
		err = decodeInto(raw, &b.Audience)
	case "fiction":
		err = decodeInto(raw, &b.Fiction)
	case "narrative":
		err = decodeInto(raw, &b.Narrative)
	case "pointOfView":
		err = decodeInto(raw, &b.Narrative.PointOfView)
	case "tense":
		err = decodeInto(raw, &b.Narrative.Tense)
	case "timeline":
		err = decodeInto(raw, &b.Narrative.Timeline)
	case "format":
		err = decodeInto(raw, &b.Narrative.Format)
	case "themes":
		err = decodeInto(raw, &b.Themes)
	case "characters":
		err = decodeInto(raw, &b.Characters)
	case "locations":
		err = decodeInto(raw, &b.Locations)
	case "mood":
		err = decodeInto(raw, &b.Mood)
	case "pacing":
		err = decodeInto(raw, &b.Pacing)
	case "readingTime":
		err = decodeInto(raw, &b.ReadingTime)
	case "contentWarnings":
		err = decodeInto(raw, &b.ContentWarnings)
	case "cultural":
		err = decodeInto(raw, &b.Cultural)
	case "representation":
		err = decodeInto(raw, &b.Cultural.Representation)
	case "diversityElements":
		err = decodeInto(raw, &b.Cultural.DiversityElements)
	case "complexity":
		err = decodeInto(raw, &b.Complexity)
	case "readingStatus":
		var s ReadingStatus
		if err = decodeInto(raw, &s); err == nil {
			if !s.Valid() {
				return fmt.Errorf("field %q: invalid reading status %q", name, s)
			}
			b.ReadingStatus = s
		}
	case "userRating":
		var r int
		if err = decodeInto(raw, &r); err == nil {
			if r < 0 || r > MaxRating {
				return fmt.Errorf("field %q: rating %d out of range 0..%d", name, r, MaxRating)
			}
			b.UserRating = r
		}
	case "favorite":
		err = decodeInto(raw, &b.Favorite)
	case "reread":
		err = decodeInto(raw, &b.Reread)
	case "rereadCount":
		err = decodeInto(raw, &b.RereadCount)
	case "notes":
		err = decodeInto(raw, &b.Notes)
	case "tags":
		err = decodeInto(raw, &b.Tags)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	if err != nil {
		return fmt.Errorf("field %q: %w", name, err)
	}
	return nil
}
