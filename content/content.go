// Package content defines the post and project records managed by folio,
// and the normalization rules every record passes before it is persisted.
package content

import (
	"strings"
	"time"
)

// Kind names a content collection.
type Kind string

const (
	KindPost    Kind = "posts"
	KindProject Kind = "projects"
)

// ParseKind maps a collection name to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindPost:
		return KindPost, true
	case KindProject:
		return KindProject, true
	}
	return "", false
}

// Input is raw, untrusted record input as it arrives from a form, a JSON
// body or the importer.
type Input map[string]any

// Record is the behavior shared by posts and projects.
type Record interface {
	GetID() string
	GetSlug() string
	GetTitle() string
	// GetDate returns the ISO-8601 publication date, or "" when unknown.
	GetDate() string
	IsDraft() bool
	IsFeatured() bool
	// Excerpt is the short text used in feeds and listings.
	Excerpt() string
	// SearchFields are the values matched by the admin keyword search.
	SearchFields() []string
	// Fields returns the persisted, user-editable fields. Feeding them back
	// through the matching Normalize function yields the same record.
	Fields() Input
}

// Post is a blog post.
type Post struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	Author      string    `json:"author"`
	Image       string    `json:"image"`
	Categories  []string  `json:"categories"`
	Tags        []string  `json:"tags"`
	Featured    bool      `json:"featured"`
	Draft       bool      `json:"draft"`
	Date        string    `json:"date"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (p Post) GetID() string    { return p.ID }
func (p Post) GetSlug() string  { return p.Slug }
func (p Post) GetTitle() string { return p.Title }
func (p Post) GetDate() string  { return p.Date }
func (p Post) IsDraft() bool    { return p.Draft }
func (p Post) IsFeatured() bool { return p.Featured }
func (p Post) Excerpt() string  { return p.Description }

func (p Post) SearchFields() []string {
	return []string{p.Title, p.Slug, p.Author, p.Description}
}

func (p Post) Fields() Input {
	return Input{
		"title":       p.Title,
		"slug":        p.Slug,
		"description": p.Description,
		"content":     p.Content,
		"author":      p.Author,
		"image":       p.Image,
		"categories":  cloneStrings(p.Categories),
		"tags":        cloneStrings(p.Tags),
		"featured":    p.Featured,
		"draft":       p.Draft,
		"date":        p.Date,
	}
}

// Project is a portfolio project entry.
type Project struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	TechStack   string    `json:"techStack"`
	RepoURL     string    `json:"repoUrl"`
	DemoURL     string    `json:"demoUrl"`
	Image       string    `json:"image"`
	Status      string    `json:"status"`
	Featured    bool      `json:"featured"`
	Draft       bool      `json:"draft"`
	Date        string    `json:"date"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (p Project) GetID() string    { return p.ID }
func (p Project) GetSlug() string  { return p.Slug }
func (p Project) GetTitle() string { return p.Title }
func (p Project) GetDate() string  { return p.Date }
func (p Project) IsDraft() bool    { return p.Draft }
func (p Project) IsFeatured() bool { return p.Featured }

func (p Project) Excerpt() string {
	if p.Summary != "" {
		return p.Summary
	}
	return p.Description
}

func (p Project) SearchFields() []string {
	return []string{p.Title, p.Slug, p.Status, p.Summary}
}

func (p Project) Fields() Input {
	return Input{
		"title":       p.Title,
		"slug":        p.Slug,
		"summary":     p.Summary,
		"description": p.Description,
		"content":     p.Content,
		"techStack":   p.TechStack,
		"repoUrl":     p.RepoURL,
		"demoUrl":     p.DemoURL,
		"image":       p.Image,
		"status":      p.Status,
		"featured":    p.Featured,
		"draft":       p.Draft,
		"date":        p.Date,
	}
}

// Schema binds a record type to its collection and normalizer.
type Schema[R Record] struct {
	Kind      Kind
	Normalize func(Input) (R, []string)
}

var (
	PostSchema    = Schema[Post]{Kind: KindPost, Normalize: NormalizePost}
	ProjectSchema = Schema[Project]{Kind: KindProject, Normalize: NormalizeProject}
)

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
