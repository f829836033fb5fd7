package views

import (
	"bytes"
	"context"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/folio"
	"github.com/eringen/folio/admin"
	"github.com/eringen/folio/auth"
	"github.com/eringen/folio/content"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

func TestDefaultSetsEveryView(t *testing.T) {
	v := Default()
	assert.NotNil(t, v.Home)
	assert.NotNil(t, v.Posts)
	assert.NotNil(t, v.Post)
	assert.NotNil(t, v.Projects)
	assert.NotNil(t, v.Project)
	assert.NotNil(t, v.Login)
	assert.NotNil(t, v.Dashboard)
	assert.NotNil(t, v.PostList)
	assert.NotNil(t, v.ProjectList)
	assert.NotNil(t, v.AdminImages)
	assert.NotNil(t, v.NotFound)
	assert.NotNil(t, v.ServerError)
}

func TestLayoutWritesMeta(t *testing.T) {
	out := render(t, Home(folio.HomePage{Meta: folio.PageMeta{
		Title:       "Home & Away",
		Description: "A <portfolio>",
		URL:         "https://example.com/",
		OGType:      "website",
		JSONLD:      `{"@type":"WebSite"}`,
		SiteName:    "Example",
	}}))
	assert.Contains(t, out, "<title>Home &amp; Away</title>")
	assert.Contains(t, out, `<meta name="description" content="A &lt;portfolio&gt;">`)
	assert.Contains(t, out, `<link rel="canonical" href="https://example.com/">`)
	assert.Contains(t, out, `<script type="application/ld+json">{"@type":"WebSite"}</script>`)
}

func TestPostEscapesFieldsAndRendersMarkdown(t *testing.T) {
	post := content.Post{
		Title:   "<script>alert(1)</script>",
		Slug:    "x",
		Content: "# Heading\n\nSome **bold** text.",
		Date:    "2024-03-05T00:00:00.000Z",
		Tags:    []string{"go"},
		Image:   "javascript:alert(1)",
	}
	out := render(t, Post(post, []content.Post{{Title: "Other", Slug: "other"}}, folio.PageMeta{}))
	assert.NotContains(t, out, "<script>alert(1)</script>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, `<h1 id="heading">Heading</h1>`)
	assert.Contains(t, out, "<strong>bold</strong>")
	assert.Contains(t, out, "Mar 5, 2024")
	assert.Contains(t, out, `href="/posts/?tag=go"`)
	assert.Contains(t, out, `href="/posts/other/"`)
	assert.NotContains(t, out, `src="javascript:`)
}

func TestPostsMarksActiveTag(t *testing.T) {
	out := render(t, Posts(nil, "go", []string{"go", "web"}, folio.PageMeta{}))
	assert.Contains(t, out, "No posts yet.")
	assert.Contains(t, out, `href="/posts/?tag=go" class="`+TagClass(true)+`"`)
	assert.Contains(t, out, `href="/posts/?tag=web" class="`+TagClass(false)+`"`)
}

func TestProjectLinks(t *testing.T) {
	out := render(t, Project(content.Project{
		Title:   "Folio",
		Slug:    "folio",
		RepoURL: "https://github.com/eringen/folio",
		Status:  "active",
	}, folio.PageMeta{}))
	assert.Contains(t, out, `href="https://github.com/eringen/folio"`)
	assert.Contains(t, out, "<dd>active</dd>")
	assert.NotContains(t, out, "Live demo")
}

func TestLoginShowsError(t *testing.T) {
	out := render(t, Login(folio.LoginForm{Email: "a@b.c", Error: "Invalid email or password.", CSRFToken: "tok"}))
	assert.Contains(t, out, "Invalid email or password.")
	assert.Contains(t, out, `name="_csrf" value="tok"`)
	assert.Contains(t, out, `value="a@b.c"`)
}

func TestDashboard(t *testing.T) {
	out := render(t, Dashboard(folio.Dashboard{
		Identity: auth.Identity{Email: "me@example.com"},
		Posts:    folio.CollectionStats{Kind: content.KindPost, Published: 2, Drafts: 1, Recent: []folio.Summary{{Title: "Hello", Draft: true}}},
		Projects: folio.CollectionStats{Kind: content.KindProject},
	}, "tok"))
	assert.Contains(t, out, "Signed in as me@example.com")
	assert.Contains(t, out, "2 published, 1 drafts")
	assert.Contains(t, out, "(draft)")
	assert.Contains(t, out, `href="/admin/projects/"`)
}

func TestPostListStates(t *testing.T) {
	t.Run("loading", func(t *testing.T) {
		out := render(t, PostList(admin.Snapshot[content.Post]{Kind: content.KindPost, Phase: admin.PhaseLoading}, "tok"))
		assert.Contains(t, out, "Loading...")
		assert.NotContains(t, out, "<table")
	})

	t.Run("unauthorized", func(t *testing.T) {
		out := render(t, PostList(admin.Snapshot[content.Post]{Kind: content.KindPost, Phase: admin.PhaseIdle}, "tok"))
		assert.Contains(t, out, "You do not have access")
		assert.NotContains(t, out, "Import from profile")
	})

	t.Run("idle with selection and confirm", func(t *testing.T) {
		s := admin.Snapshot[content.Post]{
			Kind:       content.KindPost,
			Phase:      admin.PhaseConfirm,
			Authorized: true,
			State:      admin.ListState{Sort: admin.SortTitleAsc, Status: admin.StatusAll, Featured: admin.FeaturedAll, Page: 1},
			Items: []content.Post{
				{ID: "a", Title: "Alpha", Slug: "alpha", Draft: true},
				{ID: "b", Title: "Beta", Slug: "beta", Featured: true},
			},
			Visible:    2,
			Count:      2,
			TotalPages: 2,
			Selected:   []string{"a"},
			Confirm:    &admin.ConfirmRequest{Action: admin.ActionBulkDelete, Title: "Delete posts", Message: "Delete 1 selected posts?", ConfirmLabel: "Delete all"},
			Toasts:     []admin.Toast{{ID: "t1", Type: admin.ToastSuccess, Message: "Done."}},
		}
		out := render(t, PostList(s, "tok"))
		assert.Contains(t, out, "Import from profile")
		assert.Contains(t, out, "Delete 1 selected posts?")
		assert.Contains(t, out, "1 selected")
		assert.Contains(t, out, `hx-delete="/admin/api/posts/toasts/t1"`)
		assert.Contains(t, out, `hx-get="/admin/api/posts?sort=title_asc&amp;page=2"`)
		assert.Contains(t, out, `<option value="title_asc" selected>`)
		assert.Contains(t, out, "Draft")
		assert.Contains(t, out, `href="/posts/alpha/"`)
	})
}

func TestAdminImages(t *testing.T) {
	out := render(t, AdminImages([]folio.Image{{Filename: "cat.jpg", OriginalName: "Cat.PNG", Width: 800, Height: 600, Size: 4096}}, "tok"))
	assert.Contains(t, out, `src="/public/uploads/cat.jpg"`)
	assert.Contains(t, out, "800x600, 4 KB")
	assert.Contains(t, out, `hx-delete="/admin/images/cat.jpg/"`)

	out = render(t, AdminImages(nil, "tok"))
	assert.Contains(t, out, "No images uploaded yet.")
}

func TestPageQueryAlwaysCarriesPage(t *testing.T) {
	st := admin.DefaultListState()
	assert.Equal(t, "page=1", pageQuery(st))
	st.Page = 3
	assert.Equal(t, "page=3", pageQuery(st))
	st.Search = "go"
	st.Page = 1
	assert.Equal(t, "q=go&page=1", pageQuery(st))
}

func TestNewListViewFlattensSnapshot(t *testing.T) {
	s := admin.Snapshot[content.Project]{
		Kind:       content.KindProject,
		Phase:      admin.PhaseIdle,
		Authorized: true,
		Items: []content.Project{
			{ID: "a", Title: "Alpha", Slug: "alpha", Status: "active", Featured: true},
			{ID: "b", Title: "Beta", Slug: "beta", Draft: true},
		},
		Selected: []string{"b"},
	}
	v := newListView(s, ProjectURL, func(p content.Project) string { return p.Status })
	assert.Equal(t, "/admin/api/projects", v.API)
	assert.True(t, v.BulkEnabled)
	assert.Equal(t, 1, v.SelectedCount)
	require.Len(t, v.Rows, 2)
	assert.Equal(t, listRow{ID: "a", Title: "Alpha", URL: "/projects/alpha/", Extra: "active", Featured: true}, v.Rows[0])
	assert.True(t, v.Rows[1].Selected)
	assert.True(t, v.Rows[1].Draft)

	out := render(t, ProjectList(s, "tok"))
	assert.Contains(t, out, `<td class="text-sm">active</td>`)
	assert.Contains(t, out, `hx-vals="{&#34;checked&#34;:&#34;false&#34;,&#34;id&#34;:&#34;b&#34;}" checked>`)
}

func TestImageSrcRejectsUnsafeSchemes(t *testing.T) {
	assert.Equal(t, "/public/uploads/cat.jpg", imageSrc("/public/uploads/cat.jpg"))
	assert.NotContains(t, imageSrc("javascript:alert(1)"), "javascript")
}
