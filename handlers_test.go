package folio

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/folio/content"
)

func TestPublicPagesHideDrafts(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	createPost(t, a, content.Input{"title": "Hello", "slug": "hello", "tags": []string{"Go"}, "date": "2024-02-01T00:00:00.000Z"})
	createPost(t, a, content.Input{"title": "Secret", "slug": "secret", "draft": true, "tags": []string{"hidden"}})
	createProject(t, a, content.Input{"title": "Tool", "slug": "tool"})
	createProject(t, a, content.Input{"title": "Flagship", "slug": "flagship", "featured": true})
	createProject(t, a, content.Input{"title": "Wip", "slug": "wip", "draft": true})
	a.Cache.Invalidate()
	c := newClient(t, a)

	rec := c.get("/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "home posts=1 projects=2", rec.Body.String())

	rec = c.get("/posts/")
	assert.Equal(t, "posts=1 tag= tags=go", rec.Body.String())

	rec = c.get("/posts/?tag=GO")
	assert.Equal(t, "posts=1 tag=GO tags=go", rec.Body.String())

	rec = c.get("/posts/hello/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "post hello"))

	rec = c.get("/posts/secret/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", rec.Body.String())

	rec = c.get("/projects/")
	assert.Equal(t, "projects flagship,tool", rec.Body.String())

	rec = c.get("/projects/wip/")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.get("/projects/tool/")
	assert.Equal(t, "project tool", rec.Body.String())
}

func TestPostDescriptionFallsBackToContent(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	createPost(t, a, content.Input{"title": "Notes", "slug": "notes", "content": "# Notes\n\nShort **text** here."})
	a.Cache.Invalidate()

	rec := newClient(t, a).get("/posts/notes/")
	assert.Equal(t, "post notes related=0 desc=Notes Short text here.", rec.Body.String())
}

func TestRedirects(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	c := newClient(t, a)

	for _, path := range []string{"/blog", "/blog/"} {
		rec := c.get(path)
		assert.Equal(t, http.StatusMovedPermanently, rec.Code, path)
		assert.Equal(t, "/posts/", rec.Header().Get("Location"), path)
	}

	rec := c.get("/projects")
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/projects/", rec.Header().Get("Location"))
}

func TestErrorPages(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	c := newClient(t, a)

	rec := c.get("/missing/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", rec.Body.String())

	rec = c.get("/api/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not Found"}`, rec.Body.String())
}

func TestSiteCacheFollowsWrites(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	ctx := context.Background()
	createPost(t, a, content.Input{"title": "One", "slug": "one"})
	a.Cache.Invalidate()
	require.Len(t, a.Cache.ListPosts(ctx, ""), 1)

	createPost(t, a, content.Input{"title": "Two", "slug": "two", "tags": []string{"Go "}})
	require.Eventually(t, func() bool {
		return len(a.Cache.ListPosts(ctx, "")) == 2
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"go"}, a.Cache.ListTags(ctx))

	post, ok := a.Cache.GetPost(ctx, "two")
	require.True(t, ok)
	assert.Equal(t, "Two", post.Title)
	_, ok = a.Cache.GetPost(ctx, "three")
	assert.False(t, ok)
}

func contactRequest(c *testClient, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

const validContact = `{"name":"Ada","email":"ada@example.com","subject":"Hi","message":"Hello\nthere"}`

func TestContactValidation(t *testing.T) {
	cfg := testConfig(t)
	cfg.ResendAPIKey = "key"
	cfg.ContactTo = "owner@example.com"
	c := newClient(t, newTestApp(t, cfg))

	rec := contactRequest(c, `{"name":"Ada","email":"ada@example.com","subject":"","message":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Missing required fields."}`, rec.Body.String())

	rec = contactRequest(c, `{"name":"Ada","email":"not-an-email","subject":"Hi","message":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid email format."}`, rec.Body.String())

	rec = contactRequest(c, `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = contactRequest(c, validContact)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestContactNotConfigured(t *testing.T) {
	c := newClient(t, newTestApp(t, testConfig(t)))

	rec := contactRequest(c, validContact)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "RESEND_API_KEY")
}

func TestContactDelivery(t *testing.T) {
	var got map[string]any
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(string(body), "reject") {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = io.WriteString(w, `{"message":"Invalid from address"}`)
			return
		}
		_, _ = io.WriteString(w, `{"id":"msg_123"}`)
	}))
	defer provider.Close()

	cfg := testConfig(t)
	cfg.ResendAPIKey = "key"
	cfg.ContactTo = "owner@example.com"
	c := newClient(t, newTestApp(t, cfg, WithMailEndpoint(provider.URL), WithHTTPClient(provider.Client())))

	rec := contactRequest(c, validContact)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"id":"msg_123"}`, rec.Body.String())
	assert.Equal(t, "[Portfolio Contact] Hi", got["subject"])
	assert.Equal(t, "ada@example.com", got["reply_to"])

	rec = contactRequest(c, `{"name":"Ada","email":"ada@example.com","subject":"reject","message":"x"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid from address"}`, rec.Body.String())
}

const profileDoc = "# Profile\n\n## Giới thiệu\n" +
	"I build web applications and tools, mostly in Go, and write about what I learn along the way. " +
	"This section is long enough to become a post when imported into the blog collection.\n"

func TestImportEndpoints(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.ImportFile, []byte(profileDoc), 0o644))
	c := newClient(t, newTestApp(t, cfg))

	rec := c.get("/api/thongtin-sections")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Sections []struct {
			Title string `json:"title"`
			Slug  string `json:"slug"`
		} `json:"sections"`
	}](t, rec)
	require.Len(t, body.Sections, 1)
	assert.Equal(t, "gioi-thieu", body.Sections[0].Slug)

	rec = c.get("/api/thongtin-projects")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"projects":[]}`, rec.Body.String())
}

func TestImportEndpointsMissingFile(t *testing.T) {
	cfg := testConfig(t)
	c := newClient(t, newTestApp(t, cfg))

	rec := c.get("/api/thongtin-sections")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Could not read")
}
