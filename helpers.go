package folio

import (
	"encoding/json"
	"net/url"
	"path"
	"slices"
	"strings"

	"github.com/eringen/folio/content"
)

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// FilterRelatedPosts finds posts that share at least one tag or category
// with current.
func FilterRelatedPosts(current content.Post, posts []content.Post) []content.Post {
	labels := make(map[string]struct{})
	for _, t := range slices.Concat(current.Tags, current.Categories) {
		if t = normalizeTag(t); t != "" {
			labels[t] = struct{}{}
		}
	}
	var related []content.Post
	for _, p := range posts {
		if p.Slug == current.Slug {
			continue
		}
		for _, t := range slices.Concat(p.Tags, p.Categories) {
			if _, ok := labels[normalizeTag(t)]; ok {
				related = append(related, p)
				break
			}
		}
	}
	return related
}

// featuredFirst moves featured projects ahead of the rest, keeping order
// within each group.
func featuredFirst(projects []content.Project) []content.Project {
	out := slices.Clone(projects)
	slices.SortStableFunc(out, func(a, b content.Project) int {
		switch {
		case a.Featured == b.Featured:
			return 0
		case a.Featured:
			return -1
		}
		return 1
	})
	return out
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// WebsiteJsonLD returns a JSON-LD string for a WebSite schema using SiteConfig.
func WebsiteJsonLD(cfg SiteConfig) string {
	data := map[string]any{
		"@context":    "https://schema.org",
		"@type":       "WebSite",
		"name":        cfg.Name,
		"url":         BuildURL(cfg.URL),
		"description": cfg.Description,
	}
	if cfg.Author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  cfg.Author,
		}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// BlogPostingJsonLD returns a JSON-LD string for a BlogPosting schema.
func BlogPostingJsonLD(post content.Post, cfg SiteConfig) string {
	postURL := BuildURL(cfg.URL, "posts", post.Slug)
	data := map[string]any{
		"@context":      "https://schema.org",
		"@type":         "BlogPosting",
		"headline":      post.Title,
		"description":   post.Description,
		"datePublished": post.Date,
		"url":           postURL,
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   postURL,
		},
	}
	author := post.Author
	if author == "" {
		author = cfg.Author
	}
	if author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  author,
		}
	}
	if cfg.Name != "" {
		data["publisher"] = map[string]string{
			"@type": "Organization",
			"name":  cfg.Name,
		}
	}
	if post.Image != "" {
		data["image"] = post.Image
	}
	if len(post.Tags) > 0 {
		data["keywords"] = strings.Join(post.Tags, ", ")
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}
