package folio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/require"

	"github.com/eringen/folio/admin"
	"github.com/eringen/folio/auth"
	"github.com/eringen/folio/content"
)

const (
	adminEmail   = "admin@example.com"
	otherEmail   = "guest@example.com"
	testPassword = "correct horse"
)

var testHash = sync.OnceValue(func() string {
	h, err := auth.HashPassword(testPassword)
	if err != nil {
		panic(err)
	}
	return h
})

func text(s string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	})
}

// stubViews renders a one-line summary of what each handler passed in.
func stubViews() ViewFuncs {
	return ViewFuncs{
		Home: func(p HomePage) templ.Component {
			return text(fmt.Sprintf("home posts=%d projects=%d", len(p.Posts), len(p.Projects)))
		},
		Posts: func(posts []content.Post, tag string, tags []string, _ PageMeta) templ.Component {
			return text(fmt.Sprintf("posts=%d tag=%s tags=%s", len(posts), tag, strings.Join(tags, ",")))
		},
		Post: func(p content.Post, related []content.Post, meta PageMeta) templ.Component {
			return text(fmt.Sprintf("post %s related=%d desc=%s", p.Slug, len(related), meta.Description))
		},
		Projects: func(projects []content.Project, _ PageMeta) templ.Component {
			slugs := make([]string, len(projects))
			for i, p := range projects {
				slugs[i] = p.Slug
			}
			return text("projects " + strings.Join(slugs, ","))
		},
		Project: func(p content.Project, _ PageMeta) templ.Component {
			return text("project " + p.Slug)
		},
		Login: func(f LoginForm) templ.Component {
			return text("login error=" + f.Error)
		},
		Dashboard: func(d Dashboard, _ string) templ.Component {
			return text("dashboard " + d.Identity.Email)
		},
		PostList: func(s admin.Snapshot[content.Post], _ string) templ.Component {
			return text(fmt.Sprintf("postlist phase=%s items=%d", s.Phase, len(s.Items)))
		},
		ProjectList: func(s admin.Snapshot[content.Project], _ string) templ.Component {
			return text(fmt.Sprintf("projectlist phase=%s items=%d", s.Phase, len(s.Items)))
		},
		AdminImages: func(images []Image, _ string) templ.Component {
			return text(fmt.Sprintf("images=%d", len(images)))
		},
		NotFound:    func() templ.Component { return text("not found") },
		ServerError: func() templ.Component { return text("server error") },
	}
}

func testConfig(t *testing.T) SiteConfig {
	t.Helper()
	dir := t.TempDir()
	return SiteConfig{
		Name:          "Test Site",
		URL:           "http://example.com",
		Description:   "Work and writing.",
		Author:        "Site Owner",
		SessionSecret: "0123456789abcdef0123456789abcdef",
		AdminEmails:   adminEmail,
		AuthAccounts:  adminEmail + "=" + testHash() + "," + otherEmail + "=" + testHash(),
		DatabasePath:  filepath.Join(dir, "folio.db"),
		UploadsDir:    filepath.Join(dir, "uploads"),
		ImportFile:    filepath.Join(dir, "thongtin.md"),
	}
}

func newTestApp(t *testing.T, cfg SiteConfig, opts ...Option) *App {
	t.Helper()
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithStaticDir(t.TempDir()),
	}
	a := New(cfg, stubViews(), append(base, opts...)...)
	require.NoError(t, a.Setup(context.Background()))
	t.Cleanup(func() { _ = a.Close() })
	return a
}

// testClient keeps cookies between requests, like a browser.
type testClient struct {
	t       *testing.T
	app     *App
	cookies map[string]*http.Cookie
}

func newClient(t *testing.T, a *App) *testClient {
	return &testClient{t: t, app: a, cookies: map[string]*http.Cookie{}}
}

func (c *testClient) do(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	req.RemoteAddr = "192.0.2.1:4321"
	rec := httptest.NewRecorder()
	c.app.Echo.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func (c *testClient) get(path string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (c *testClient) csrf() string {
	if ck, ok := c.cookies["_csrf"]; ok {
		return ck.Value
	}
	return ""
}

func (c *testClient) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	form.Set("_csrf", c.csrf())
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *testClient) sendJSON(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	b, err := json.Marshal(body)
	require.NoError(c.t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", c.csrf())
	return c.do(req)
}

func (c *testClient) delete(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodDelete, path, nil)
	req.Header.Set("X-CSRF-Token", c.csrf())
	return c.do(req)
}

// login signs in as email and fails the test unless it succeeds.
func (c *testClient) login(email string) {
	c.t.Helper()
	c.get("/login/")
	rec := c.postForm("/login/", url.Values{"email": {email}, "password": {testPassword}})
	require.Equal(c.t, http.StatusSeeOther, rec.Code, rec.Body.String())
	require.Equal(c.t, "/admin/", rec.Header().Get("Location"))
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func createPost(t *testing.T, a *App, in content.Input) string {
	t.Helper()
	if _, ok := in["content"]; !ok {
		in["content"] = "Body text."
	}
	id, err := a.Posts.Create(context.Background(), in)
	require.NoError(t, err)
	return id
}

func createProject(t *testing.T, a *App, in content.Input) string {
	t.Helper()
	id, err := a.Projects.Create(context.Background(), in)
	require.NoError(t, err)
	return id
}
