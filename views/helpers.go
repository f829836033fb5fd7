package views

import (
	"context"
	"encoding/json"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/eringen/folio/content"
)

// PathEscape wraps url.PathEscape for use in templates.
func PathEscape(s string) string {
	return url.PathEscape(s)
}

// TagClass returns CSS classes for a tag pill, with active variant.
func TagClass(active bool) string {
	base := "inline-flex items-center rounded border border-ink dark:border-white/30 bg-stone-100 dark:bg-neutral-700 px-2.5 py-1 text-[11px] font-semibold uppercase tracking-[0.12em] hover:-translate-y-0.5 hover:shadow-sm transition"
	if active {
		base += " bg-ink dark:bg-white text-white dark:text-ink"
	}
	return base
}

// JoinTags formats a tag slice as a comma-separated string for form fields.
func JoinTags(tags []string) string {
	return strings.Join(tags, ", ")
}

// FormatDate renders an ISO timestamp as "Jan 2, 2006", or "" when it
// cannot be parsed.
func FormatDate(iso string) string {
	t, ok := content.ParseTime(iso)
	if !ok {
		return ""
	}
	return t.UTC().Format("Jan 2, 2006")
}

// PostURL and ProjectURL are the public paths of a record.
func PostURL(slug string) string    { return "/posts/" + PathEscape(slug) + "/" }
func ProjectURL(slug string) string { return "/projects/" + PathEscape(slug) + "/" }

func year() string {
	return time.Now().Format("2006")
}

func tagURL(tag string) string {
	return "/posts/?tag=" + url.QueryEscape(tag)
}

func uploadURL(filename string) string {
	return "/public/uploads/" + PathEscape(filename)
}

// imageSrc sanitizes a user-supplied image URL. templ only checks URL
// attributes on a, link, form and object.
func imageSrc(s string) string {
	return string(templ.URL(s))
}

func csrfHeaders(token string) string {
	b, _ := json.Marshal(map[string]string{"X-CSRF-Token": token})
	return string(b)
}

// jsonLD emits a structured data block. The payload comes from
// encoding/json, which escapes '<' and '>', so it cannot close the tag.
func jsonLD(payload string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<script type="application/ld+json">`+payload+`</script>`)
		return err
	})
}
