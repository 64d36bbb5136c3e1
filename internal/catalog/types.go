package catalog

// RawVolume is one catalog record as returned by the volumes API.
type RawVolume struct {
	ID         string     `json:"id"`
	VolumeInfo VolumeInfo `json:"volumeInfo"`
}

// VolumeInfo holds the bibliographic part of a volume.
type VolumeInfo struct {
	Title               string               `json:"title"`
	Subtitle            string               `json:"subtitle,omitempty"`
	Authors             []string             `json:"authors,omitempty"`
	Publisher           string               `json:"publisher,omitempty"`
	PublishedDate       string               `json:"publishedDate,omitempty"`
	PageCount           int                  `json:"pageCount,omitempty"`
	Language            string               `json:"language,omitempty"`
	Description         string               `json:"description,omitempty"`
	Categories          []string             `json:"categories,omitempty"`
	IndustryIdentifiers []IndustryIdentifier `json:"industryIdentifiers,omitempty"`
	ImageLinks          *ImageLinks          `json:"imageLinks,omitempty"`
}

// IndustryIdentifier is a typed identifier such as ISBN_13.
type IndustryIdentifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

// ImageLinks holds cover image URLs.
type ImageLinks struct {
	SmallThumbnail string `json:"smallThumbnail,omitempty"`
	Thumbnail      string `json:"thumbnail,omitempty"`
}

// Identifier types.
const (
	TypeISBN13 = "ISBN_13"
	TypeISBN10 = "ISBN_10"
)

type volumesResponse struct {
	TotalItems int         `json:"totalItems"`
	Items      []RawVolume `json:"items"`
}
