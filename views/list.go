package views

import (
	"encoding/json"
	"strconv"

	"github.com/a-h/templ"

	"github.com/eringen/folio/admin"
	"github.com/eringen/folio/content"
)

// listView is an admin.Snapshot flattened for listPage, which cannot be
// generic over the record type.
type listView struct {
	Kind          string
	API           string
	Phase         string
	Query         string
	Loading       bool
	Authorized    bool
	Importing     bool
	State         admin.ListState
	Confirm       *admin.ConfirmRequest
	Toasts        []admin.Toast
	SelectedCount int
	BulkEnabled   bool
	PageSelected  bool
	Rows          []listRow
	TotalPages    int
	Visible       int
	Count         int
}

type listRow struct {
	ID       string
	Title    string
	URL      string
	Date     string
	Extra    string
	Draft    bool
	Featured bool
	Selected bool
}

type option struct {
	Value string
	Label string
}

type bulkAction struct {
	Action admin.Action
	Label  string
}

type pageLink struct {
	Label   string
	URL     string
	Current bool
}

var (
	sortOptions = []option{
		{admin.SortDateDesc, "Newest"}, {admin.SortDateAsc, "Oldest"},
		{admin.SortTitleAsc, "Title A-Z"}, {admin.SortTitleDesc, "Title Z-A"},
	}
	statusOptions = []option{
		{admin.StatusAll, "All statuses"}, {admin.StatusPublished, "Published"}, {admin.StatusDraft, "Drafts"},
	}
	featuredOptions = []option{
		{admin.FeaturedAll, "All"}, {admin.FeaturedOnly, "Featured"}, {admin.FeaturedNormal, "Not featured"},
	}
	bulkActions = []bulkAction{
		{admin.ActionPublish, "Publish"},
		{admin.ActionUnpublish, "Unpublish"},
		{admin.ActionFeature, "Feature"},
		{admin.ActionUnfeature, "Unfeature"},
		{admin.ActionBulkDelete, "Delete"},
	}
)

// PostList is the admin list page for posts.
func PostList(s admin.Snapshot[content.Post], csrfToken string) templ.Component {
	return listPage(newListView(s, PostURL, func(p content.Post) string { return p.Author }), csrfToken)
}

// ProjectList is the admin list page for projects.
func ProjectList(s admin.Snapshot[content.Project], csrfToken string) templ.Component {
	return listPage(newListView(s, ProjectURL, func(p content.Project) string { return p.Status }), csrfToken)
}

func newListView[R content.Record](s admin.Snapshot[R], publicURL func(string) string, extra func(R) string) listView {
	kind := string(s.Kind)
	v := listView{
		Kind:          kind,
		API:           "/admin/api/" + kind,
		Phase:         string(s.Phase),
		Query:         s.Query,
		Loading:       s.Phase == admin.PhaseLoading,
		Authorized:    s.Authorized,
		Importing:     s.Importing,
		State:         s.State,
		Confirm:       s.Confirm,
		Toasts:        s.Toasts,
		SelectedCount: len(s.Selected),
		BulkEnabled:   s.Phase == admin.PhaseIdle,
		PageSelected:  s.PageSelected,
		TotalPages:    s.TotalPages,
		Visible:       s.Visible,
		Count:         s.Count,
	}
	selected := make(map[string]bool, len(s.Selected))
	for _, id := range s.Selected {
		selected[id] = true
	}
	v.Rows = make([]listRow, 0, len(s.Items))
	for _, r := range s.Items {
		v.Rows = append(v.Rows, listRow{
			ID:       r.GetID(),
			Title:    r.GetTitle(),
			URL:      publicURL(r.GetSlug()),
			Date:     r.GetDate(),
			Extra:    extra(r),
			Draft:    r.IsDraft(),
			Featured: r.IsFeatured(),
			Selected: selected[r.GetID()],
		})
	}
	return v
}

func pageLinks(api string, st admin.ListState, total int) []pageLink {
	links := make([]pageLink, 0, total)
	for p := 1; p <= total; p++ {
		next := st
		next.Page = p
		links = append(links, pageLink{
			Label:   strconv.Itoa(p),
			URL:     api + "?" + pageQuery(next),
			Current: p == st.Page,
		})
	}
	return links
}

// pageQuery always carries the page so the snapshot handler re-seeds.
func pageQuery(st admin.ListState) string {
	q := st.Encode()
	if st.Page <= 1 {
		if q != "" {
			q += "&"
		}
		q += "page=1"
	}
	return q
}

// vals encodes key/value pairs for an hx-vals attribute.
func vals(kv ...string) string {
	m := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = kv[i+1]
	}
	b, _ := json.Marshal(m)
	return string(b)
}

func boolString(b bool) string {
	return strconv.FormatBool(b)
}
