package folio

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/folio/content"
)

func TestBuildURL(t *testing.T) {
	assert.Equal(t, "http://example.com/", BuildURL("http://example.com"))
	assert.Equal(t, "http://example.com/posts/a/", BuildURL("http://example.com", "posts", "a"))
	assert.Equal(t, "http://example.com/blog/posts/", BuildURL("http://example.com/blog/", "posts"))
}

func TestFilterRelatedPosts(t *testing.T) {
	current := content.Post{Slug: "cur", Tags: []string{"Go"}, Categories: []string{"web"}}
	posts := []content.Post{
		current,
		{Slug: "tag", Tags: []string{" go "}},
		{Slug: "cat", Categories: []string{"Web"}},
		{Slug: "none", Tags: []string{"rust"}},
	}
	related := FilterRelatedPosts(current, posts)
	require.Len(t, related, 2)
	assert.Equal(t, "tag", related[0].Slug)
	assert.Equal(t, "cat", related[1].Slug)
}

func TestFeaturedFirstKeepsOrder(t *testing.T) {
	in := []content.Project{{Slug: "a"}, {Slug: "b", Featured: true}, {Slug: "c"}, {Slug: "d", Featured: true}}
	out := featuredFirst(in)
	slugs := make([]string, len(out))
	for i, p := range out {
		slugs[i] = p.Slug
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, slugs)
	assert.Equal(t, "a", in[0].Slug)
}

func TestBlogPostingJsonLD(t *testing.T) {
	cfg := SiteConfig{Name: "Site", URL: "http://example.com", Author: "Owner"}
	raw := BlogPostingJsonLD(content.Post{Title: "T", Slug: "t", Tags: []string{"a", "b"}}, cfg)

	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &data))
	assert.Equal(t, "BlogPosting", data["@type"])
	assert.Equal(t, "http://example.com/posts/t/", data["url"])
	assert.Equal(t, "a, b", data["keywords"])
	assert.Equal(t, map[string]any{"@type": "Person", "name": "Owner"}, data["author"])
	assert.NotContains(t, data, "image")
}

func TestWebsiteJsonLD(t *testing.T) {
	raw := WebsiteJsonLD(SiteConfig{Name: "Site", URL: "http://example.com"})
	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &data))
	assert.Equal(t, "http://example.com/", data["url"])
	assert.NotContains(t, data, "author")
}
