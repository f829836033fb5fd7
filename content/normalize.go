package content

import (
	"fmt"
	"strings"
)

// Result is the outcome of Normalize. Errors are accumulated rather than
// returned on the first problem; callers must check len(Errors) before
// persisting.
type Result struct {
	Normalized Record
	Errors     []string
}

// Normalize trims, coerces and validates raw input for the given kind.
func Normalize(kind Kind, in Input) Result {
	switch kind {
	case KindPost:
		p, errs := NormalizePost(in)
		return Result{Normalized: p, Errors: errs}
	case KindProject:
		p, errs := NormalizeProject(in)
		return Result{Normalized: p, Errors: errs}
	}
	return Result{Errors: []string{fmt.Sprintf("Unknown content kind %q.", kind)}}
}

// NormalizePost normalizes post input. Title, content and a valid slug are
// required.
func NormalizePost(in Input) (Post, []string) {
	p := Post{
		Title:       text(in["title"]),
		Slug:        strings.ToLower(text(in["slug"])),
		Description: text(in["description"]),
		Content:     text(in["content"]),
		Author:      text(in["author"]),
		Image:       text(in["image"]),
		Categories:  list(in["categories"]),
		Tags:        list(in["tags"]),
		Featured:    truthy(in["featured"]),
		Draft:       truthy(in["draft"]),
		Date:        ISODate(in["date"]),
	}

	var errs []string
	if p.Title == "" {
		errs = append(errs, "Title is required.")
	}
	if p.Content == "" {
		errs = append(errs, "Content is required.")
	}
	if msg := ValidateSlug(p.Slug); msg != "" {
		errs = append(errs, msg)
	}
	return p, errs
}

// NormalizeProject normalizes project input. Title and a valid slug are
// required; status defaults to "active".
func NormalizeProject(in Input) (Project, []string) {
	p := Project{
		Title:       text(in["title"]),
		Slug:        strings.ToLower(text(in["slug"])),
		Summary:     text(in["summary"]),
		Description: text(in["description"]),
		Content:     text(in["content"]),
		TechStack:   text(in["techStack"]),
		RepoURL:     text(in["repoUrl"]),
		DemoURL:     text(in["demoUrl"]),
		Image:       text(in["image"]),
		Status:      text(in["status"]),
		Featured:    truthy(in["featured"]),
		Draft:       truthy(in["draft"]),
		Date:        ISODate(in["date"]),
	}
	if p.Status == "" {
		p.Status = "active"
	}

	var errs []string
	if p.Title == "" {
		errs = append(errs, "Title is required.")
	}
	if msg := ValidateSlug(p.Slug); msg != "" {
		errs = append(errs, msg)
	}
	return p, errs
}

func text(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case []string:
		if len(s) > 0 {
			return strings.TrimSpace(s[0])
		}
	}
	return ""
}

// list accepts a comma separated string or a list and returns trimmed,
// non-empty values with duplicates removed, keeping first occurrences.
func list(v any) []string {
	var raw []string
	switch vals := v.(type) {
	case string:
		raw = strings.Split(vals, ",")
	case []string:
		raw = vals
	case []any:
		for _, item := range vals {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	}

	out := []string{}
	seen := make(map[string]struct{}, len(raw))
	for _, item := range raw {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "", "0", "false", "off", "no":
			return false
		}
		return true
	case []string:
		return len(b) > 0 && truthy(b[0])
	case int:
		return b != 0
	case int64:
		return b != 0
	case float64:
		return b != 0
	}
	return false
}
