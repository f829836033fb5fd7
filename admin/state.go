package admin

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Sort orders.
const (
	SortDateDesc  = "date_desc"
	SortDateAsc   = "date_asc"
	SortTitleAsc  = "title_asc"
	SortTitleDesc = "title_desc"
)

// Status filters.
const (
	StatusAll       = "all"
	StatusPublished = "published"
	StatusDraft     = "draft"
)

// Featured filters.
const (
	FeaturedAll    = "all"
	FeaturedOnly   = "featured"
	FeaturedNormal = "normal"
)

// ListState is the user-controlled part of a list page. It round-trips
// through the page's query string.
type ListState struct {
	Search   string `json:"q"`
	Sort     string `json:"sort"`
	Status   string `json:"status"`
	Featured string `json:"featured"`
	Page     int    `json:"page"`
}

// DefaultListState is the state of a list page with an empty query string.
func DefaultListState() ListState {
	return ListState{Sort: SortDateDesc, Status: StatusAll, Featured: FeaturedAll, Page: 1}
}

// ParseQuery reads q, sort, status, featured and page. Missing or invalid
// values fall back to their defaults.
func ParseQuery(v url.Values) ListState {
	s := DefaultListState()
	s.Search = v.Get("q")
	s.Sort = oneOf(v.Get("sort"), SortDateDesc, SortDateAsc, SortTitleAsc, SortTitleDesc)
	s.Status = oneOf(v.Get("status"), StatusAll, StatusPublished, StatusDraft)
	s.Featured = oneOf(v.Get("featured"), FeaturedAll, FeaturedOnly, FeaturedNormal)
	s.Page = parsePage(v.Get("page"))
	return s
}

// Encode serializes the state as a query string in the fixed order q, sort,
// status, featured, page. Default values are left out.
func (s ListState) Encode() string {
	var parts []string
	add := func(k, v string) {
		parts = append(parts, k+"="+url.QueryEscape(v))
	}
	if s.Search != "" {
		add("q", s.Search)
	}
	if s.Sort != "" && s.Sort != SortDateDesc {
		add("sort", s.Sort)
	}
	if s.Status != "" && s.Status != StatusAll {
		add("status", s.Status)
	}
	if s.Featured != "" && s.Featured != FeaturedAll {
		add("featured", s.Featured)
	}
	if s.Page > 1 {
		add("page", strconv.Itoa(s.Page))
	}
	return strings.Join(parts, "&")
}

// Location returns path with the encoded state appended.
func (s ListState) Location(path string) string {
	if q := s.Encode(); q != "" {
		return path + "?" + q
	}
	return path
}

// sameFilters reports whether a and b differ only in page.
func (s ListState) sameFilters(o ListState) bool {
	return s.Search == o.Search && s.Sort == o.Sort && s.Status == o.Status && s.Featured == o.Featured
}

func (s ListState) normalized() ListState {
	s.Sort = oneOf(s.Sort, SortDateDesc, SortDateAsc, SortTitleAsc, SortTitleDesc)
	s.Status = oneOf(s.Status, StatusAll, StatusPublished, StatusDraft)
	s.Featured = oneOf(s.Featured, FeaturedAll, FeaturedOnly, FeaturedNormal)
	if s.Page < 1 {
		s.Page = 1
	}
	return s
}

func oneOf(v string, allowed ...string) string {
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return allowed[0]
}

func parsePage(v string) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f < 1 {
		return 1
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Floor(f))
}
