package admin

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/folio/content"
)

func TestListStateRoundTrip(t *testing.T) {
	st := DefaultListState()
	st.Search = "alpha"
	st.Sort = SortTitleAsc
	st.Page = 2

	assert.Equal(t, "q=alpha&sort=title_asc&page=2", st.Encode())
	assert.Equal(t, "/admin/posts/?q=alpha&sort=title_asc&page=2", st.Location("/admin/posts/"))

	v, err := url.ParseQuery(st.Encode())
	require.NoError(t, err)
	assert.Equal(t, st, ParseQuery(v))
}

func TestListStateEncodeOrderAndDefaults(t *testing.T) {
	assert.Equal(t, "", DefaultListState().Encode())
	assert.Equal(t, "/admin/", DefaultListState().Location("/admin/"))

	st := ListState{Search: "a b&c", Sort: SortDateDesc, Status: StatusDraft, Featured: FeaturedNormal, Page: 3}
	assert.Equal(t, "q=a+b%26c&status=draft&featured=normal&page=3", st.Encode())
}

func TestParseQueryDefaults(t *testing.T) {
	cases := []struct {
		raw  string
		want ListState
	}{
		{"", DefaultListState()},
		{"sort=bogus&status=x", DefaultListState()},
		{"page=0", DefaultListState()},
		{"page=-4", DefaultListState()},
		{"page=abc", DefaultListState()},
		{"page=2.7", ListState{Sort: SortDateDesc, Status: StatusAll, Featured: FeaturedAll, Page: 2}},
		{"featured=featured&q=x", ListState{Search: "x", Sort: SortDateDesc, Status: StatusAll, Featured: FeaturedOnly, Page: 1}},
		{"sort=date_asc&status=published", ListState{Sort: SortDateAsc, Status: StatusPublished, Featured: FeaturedAll, Page: 1}},
	}
	for _, tc := range cases {
		v, err := url.ParseQuery(tc.raw)
		require.NoError(t, err)
		assert.Equal(t, tc.want, ParseQuery(v), tc.raw)
	}
}

func TestDerivePagination(t *testing.T) {
	posts := manyPosts(25)

	st := DefaultListState()
	v := Derive(posts, st)
	assert.Equal(t, 3, v.TotalPages)
	assert.Len(t, v.Visible, 25)
	assert.Len(t, v.Items, 10)
	assert.Equal(t, "p25", v.Items[0].ID)

	st.Page = 5
	v = Derive(posts, st)
	assert.Equal(t, 3, v.Page)
	assert.Len(t, v.Items, 5)

	v = Derive([]content.Post{}, st)
	assert.Equal(t, 1, v.TotalPages)
	assert.Equal(t, 1, v.Page)
	assert.Empty(t, v.Items)
}

func TestDeriveFilters(t *testing.T) {
	posts := []content.Post{
		post("a", "A", "2024-01-01T00:00:00.000Z", false, false),
		post("b", "B", "2024-01-02T00:00:00.000Z", true, false),
		post("c", "C", "2024-01-03T00:00:00.000Z", false, true),
		post("d", "D", "2024-01-04T00:00:00.000Z", true, true),
	}
	statusOK := map[string]func(content.Post) bool{
		StatusAll:       func(content.Post) bool { return true },
		StatusPublished: func(p content.Post) bool { return !p.Draft },
		StatusDraft:     func(p content.Post) bool { return p.Draft },
	}
	featuredOK := map[string]func(content.Post) bool{
		FeaturedAll:    func(content.Post) bool { return true },
		FeaturedOnly:   func(p content.Post) bool { return p.Featured },
		FeaturedNormal: func(p content.Post) bool { return !p.Featured },
	}
	for status, sok := range statusOK {
		for featured, fok := range featuredOK {
			st := DefaultListState()
			st.Status, st.Featured = status, featured
			v := Derive(posts, st)

			got := map[string]bool{}
			for _, p := range v.Visible {
				got[p.ID] = true
				assert.True(t, sok(p) && fok(p), "%s/%s admitted %s", status, featured, p.ID)
			}
			for _, p := range posts {
				if sok(p) && fok(p) {
					assert.True(t, got[p.ID], "%s/%s dropped %s", status, featured, p.ID)
				}
			}
		}
	}
}

func TestDeriveSearch(t *testing.T) {
	posts := []content.Post{
		{ID: "1", Title: "Go Generics", Slug: "go-generics"},
		{ID: "2", Title: "Other", Slug: "other", Author: "Gopher Jane"},
		{ID: "3", Title: "Third", Slug: "third", Description: "nothing to see"},
		{ID: "4", Title: "Fourth", Slug: "fourth", Content: "gopher in content only"},
	}
	st := DefaultListState()
	st.Search = "  GOPHER "
	v := Derive(posts, st)
	require.Len(t, v.Visible, 1)
	assert.Equal(t, "2", v.Visible[0].ID)

	projects := []content.Project{
		{ID: "x", Title: "X", Slug: "x", Status: "archived"},
		{ID: "y", Title: "Y", Slug: "y", Status: "active", Summary: "An archive tool"},
		{ID: "z", Title: "Z", Slug: "z", Status: "active"},
	}
	pst := DefaultListState()
	pst.Search = "archive"
	pv := Derive(projects, pst)
	assert.Len(t, pv.Visible, 2)
}

func TestDeriveSort(t *testing.T) {
	posts := []content.Post{
		post("b", "banana", "2024-02-01T00:00:00.000Z", false, false),
		post("n", "Éclair", "", false, false),
		post("a", "apple", "2024-03-01T00:00:00.000Z", false, false),
		post("c", "Cherry", "2024-01-01T00:00:00.000Z", false, false),
	}
	order := func(s string) []string {
		st := DefaultListState()
		st.Sort = s
		return ids(Derive(posts, st).Visible)
	}
	assert.Equal(t, []string{"a", "b", "c", "n"}, order(SortDateDesc))
	assert.Equal(t, []string{"n", "c", "b", "a"}, order(SortDateAsc))
	assert.Equal(t, []string{"a", "b", "c", "n"}, order(SortTitleAsc))
	assert.Equal(t, []string{"n", "c", "b", "a"}, order(SortTitleDesc))
}
