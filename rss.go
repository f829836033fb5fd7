package folio

import (
	"cmp"
	"encoding/xml"
	"net/http"
	"slices"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/folio/content"
	"github.com/eringen/folio/markdown"
)

const feedDescriptionLen = 280

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description"`
	Category    []string `xml:"category,omitempty"`
	PubDate     string   `xml:"pubDate,omitempty"`
	GUID        string   `xml:"guid"`

	sortKey int64
}

// feedItems builds feed entries for published posts and projects, newest
// first. Records without a slug have no public page and are skipped.
func feedItems(base string, posts []content.Post, projects []content.Project) []rssItem {
	items := make([]rssItem, 0, len(posts)+len(projects))
	for _, p := range posts {
		if p.Slug == "" || p.Draft {
			continue
		}
		desc := p.Description
		if desc == "" {
			desc = markdown.PlainText(p.Content, feedDescriptionLen)
		}
		link := BuildURL(base, "posts", p.Slug)
		items = append(items, rssItem{
			Title:       p.Title,
			Link:        link,
			Description: desc,
			Category:    p.Categories,
			PubDate:     rfc1123(p.Date),
			GUID:        link,
			sortKey:     content.DateMillis(p.Date),
		})
	}
	for _, p := range projects {
		if p.Slug == "" || p.Draft {
			continue
		}
		link := BuildURL(base, "projects", p.Slug)
		items = append(items, rssItem{
			Title:       p.Title,
			Link:        link,
			Description: p.Excerpt(),
			Category:    []string{"project"},
			PubDate:     rfc1123(p.Date),
			GUID:        link,
			sortKey:     content.DateMillis(p.Date),
		})
	}
	slices.SortStableFunc(items, func(a, b rssItem) int {
		return cmp.Compare(b.sortKey, a.sortKey)
	})
	return items
}

func rfc1123(iso string) string {
	t, ok := content.ParseTime(iso)
	if !ok {
		return ""
	}
	return t.UTC().Format(time.RFC1123Z)
}

func (a *App) renderRSS(c echo.Context, posts []content.Post, projects []content.Project) error {
	items := feedItems(a.Config.URL, posts, projects)
	feed := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       a.Config.Name,
			Link:        BuildURL(a.Config.URL),
			Description: a.Config.Description,
			Items:       items,
		},
	}
	if len(items) > 0 {
		feed.Channel.LastBuildDate = items[0].PubDate
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	if _, err := c.Response().Write([]byte(xml.Header)); err != nil {
		return err
	}
	return xml.NewEncoder(c.Response()).Encode(feed)
}
