package folio

import (
	"github.com/eringen/folio/auth"
	"github.com/eringen/folio/content"
)

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	JSONLD      string
	SiteName    string
}

// HomePage is the landing page: featured work and the latest writing.
type HomePage struct {
	Posts    []content.Post
	Projects []content.Project
	Meta     PageMeta
}

// LoginForm is the state of the sign-in page.
type LoginForm struct {
	Email     string
	Error     string
	CSRFToken string
}

// Dashboard summarizes both collections for the admin landing page.
type Dashboard struct {
	Identity auth.Identity   `json:"identity"`
	Posts    CollectionStats `json:"posts"`
	Projects CollectionStats `json:"projects"`
}

// CollectionStats counts a collection and lists its newest records.
type CollectionStats struct {
	Kind      content.Kind `json:"kind"`
	Published int          `json:"published"`
	Drafts    int          `json:"drafts"`
	Recent    []Summary    `json:"recent"`
}

// Summary is a one-line reference to a record.
type Summary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
	Date  string `json:"date"`
	Draft bool   `json:"draft"`
}

// Image is an uploaded image's metadata.
type Image struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Size         int    `json:"size"`
	UploadedAt   string `json:"uploadedAt"`
}
