package folio

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/folio/content"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

func sitemapURLs(base string, posts []content.Post, projects []content.Project) []sitemapURL {
	urls := []sitemapURL{
		{Loc: BuildURL(base)},
		{Loc: BuildURL(base, "posts")},
		{Loc: BuildURL(base, "projects")},
	}
	for _, p := range posts {
		if p.Slug == "" || p.Draft {
			continue
		}
		urls = append(urls, sitemapURL{
			Loc:     BuildURL(base, "posts", p.Slug),
			LastMod: lastMod(p.UpdatedAt, p.Date),
		})
	}
	for _, p := range projects {
		if p.Slug == "" || p.Draft {
			continue
		}
		urls = append(urls, sitemapURL{
			Loc:     BuildURL(base, "projects", p.Slug),
			LastMod: lastMod(p.UpdatedAt, p.Date),
		})
	}
	return urls
}

// lastMod prefers the update time and falls back to the publication date.
func lastMod(updated time.Time, date string) string {
	if !updated.IsZero() {
		return updated.UTC().Format(time.DateOnly)
	}
	if t, ok := content.ParseTime(date); ok {
		return t.UTC().Format(time.DateOnly)
	}
	return ""
}

func (a *App) renderSitemap(c echo.Context, posts []content.Post, projects []content.Project) error {
	sitemap := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  sitemapURLs(a.Config.URL, posts, projects),
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	if _, err := c.Response().Write([]byte(xml.Header)); err != nil {
		return err
	}
	return xml.NewEncoder(c.Response()).Encode(sitemap)
}
