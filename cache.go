package folio

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/eringen/folio/collection"
	"github.com/eringen/folio/content"
)

// SiteCache is an in-memory cache of published posts, projects and tags
// with a TTL. Any write to either collection invalidates it.
type SiteCache struct {
	mu       sync.RWMutex
	posts    []content.Post
	projects []content.Project
	tags     []string
	fetched  time.Time
	ttl      time.Duration

	postStore    *collection.Store[content.Post]
	projectStore *collection.Store[content.Project]
}

// NewSiteCache creates a SiteCache backed by the given stores.
func NewSiteCache(posts *collection.Store[content.Post], projects *collection.Store[content.Project], ttl time.Duration) *SiteCache {
	return &SiteCache{postStore: posts, projectStore: projects, ttl: ttl}
}

// Watch invalidates the cache whenever either collection changes, until
// ctx is done.
func (c *SiteCache) Watch(ctx context.Context) {
	stopPosts := c.postStore.Subscribe(ctx, func([]content.Post) { c.Invalidate() }, nil)
	stopProjects := c.projectStore.Subscribe(ctx, func([]content.Project) { c.Invalidate() }, nil)
	go func() {
		<-ctx.Done()
		stopPosts()
		stopProjects()
	}()
}

func (c *SiteCache) valid() bool {
	return c.posts != nil && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *SiteCache) Invalidate() {
	c.mu.Lock()
	c.posts = nil
	c.projects = nil
	c.tags = nil
	c.mu.Unlock()
}

func (c *SiteCache) load(ctx context.Context) {
	if c.valid() {
		return
	}
	posts := []content.Post{}
	tagSet := map[string]struct{}{}
	for _, p := range c.postStore.List(ctx) {
		if p.Draft {
			continue
		}
		posts = append(posts, p)
		for _, t := range p.Tags {
			if t = normalizeTag(t); t != "" {
				tagSet[t] = struct{}{}
			}
		}
	}
	projects := []content.Project{}
	for _, p := range c.projectStore.List(ctx) {
		if !p.Draft {
			projects = append(projects, p)
		}
	}
	tags := make([]string, 0, len(tagSet))
	for t := range tagSet {
		tags = append(tags, t)
	}
	slices.Sort(tags)

	c.posts = posts
	c.projects = projects
	c.tags = tags
	c.fetched = time.Now()
}

// ensureLoaded returns cached content after ensuring the cache is fresh.
// It tries a read lock first; only takes a write lock if a reload is needed.
func (c *SiteCache) ensureLoaded(ctx context.Context) ([]content.Post, []content.Project, []string) {
	c.mu.RLock()
	if c.valid() {
		posts, projects, tags := c.posts, c.projects, c.tags
		c.mu.RUnlock()
		return posts, projects, tags
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.load(ctx)
	return c.posts, c.projects, c.tags
}

// ListPosts returns published posts, newest first, optionally filtered by tag.
func (c *SiteCache) ListPosts(ctx context.Context, tag string) []content.Post {
	posts, _, _ := c.ensureLoaded(ctx)
	if tag == "" {
		return posts
	}
	normalized := normalizeTag(tag)
	var filtered []content.Post
	for _, p := range posts {
		for _, t := range p.Tags {
			if normalizeTag(t) == normalized {
				filtered = append(filtered, p)
				break
			}
		}
	}
	return filtered
}

// ListProjects returns published projects, newest first.
func (c *SiteCache) ListProjects(ctx context.Context) []content.Project {
	_, projects, _ := c.ensureLoaded(ctx)
	return projects
}

// ListTags returns all unique tags from published posts.
func (c *SiteCache) ListTags(ctx context.Context) []string {
	_, _, tags := c.ensureLoaded(ctx)
	return tags
}

// GetPost returns a single published post by slug.
func (c *SiteCache) GetPost(ctx context.Context, slug string) (content.Post, bool) {
	posts, _, _ := c.ensureLoaded(ctx)
	for _, p := range posts {
		if p.Slug == slug {
			return p, true
		}
	}
	return content.Post{}, false
}

// GetProject returns a single published project by slug.
func (c *SiteCache) GetProject(ctx context.Context, slug string) (content.Project, bool) {
	_, projects, _ := c.ensureLoaded(ctx)
	for _, p := range projects {
		if p.Slug == slug {
			return p, true
		}
	}
	return content.Project{}, false
}

func normalizeTag(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}
