package admin

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/eringen/folio/auth"
	"github.com/eringen/folio/collection"
	"github.com/eringen/folio/content"
)

// fakeSource is an in-memory post collection that emits a snapshot to every
// subscriber after each write.
type fakeSource struct {
	mu       sync.Mutex
	posts    []content.Post
	subs     map[int]func([]content.Post)
	nextSub  int
	seq      int
	hold     chan struct{}
	failBulk error
	failOn   map[string]error
}

func newFakeSource(posts ...content.Post) *fakeSource {
	return &fakeSource{posts: posts, subs: map[int]func([]content.Post){}, failOn: map[string]error{}}
}

func (f *fakeSource) Subscribe(_ context.Context, onChange func([]content.Post), _ func(error)) func() {
	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = onChange
	snap := slices.Clone(f.posts)
	f.mu.Unlock()
	onChange(snap)
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

func (f *fakeSource) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeSource) emit() {
	f.mu.Lock()
	snap := slices.Clone(f.posts)
	fns := make([]func([]content.Post), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

func (f *fakeSource) wait() {
	f.mu.Lock()
	hold := f.hold
	f.mu.Unlock()
	if hold != nil {
		<-hold
	}
}

func (f *fakeSource) Create(_ context.Context, in content.Input) (string, error) {
	p, errs := content.NormalizePost(in)
	if len(errs) > 0 {
		return "", &content.ValidationError{Problems: errs}
	}
	f.mu.Lock()
	if err := f.failOn[p.Slug]; err != nil {
		f.mu.Unlock()
		return "", err
	}
	for _, existing := range f.posts {
		if existing.Slug == p.Slug {
			f.mu.Unlock()
			return "", &content.ConflictError{Slug: p.Slug}
		}
	}
	f.seq++
	p.ID = fmt.Sprintf("new-%d", f.seq)
	f.posts = append(f.posts, p)
	f.mu.Unlock()
	f.emit()
	return p.ID, nil
}

func (f *fakeSource) Delete(_ context.Context, id string) error {
	f.wait()
	f.mu.Lock()
	f.posts = slices.DeleteFunc(f.posts, func(p content.Post) bool { return p.ID == id })
	f.mu.Unlock()
	f.emit()
	return nil
}

func (f *fakeSource) BulkDelete(_ context.Context, ids []string) (int, error) {
	f.wait()
	if f.failBulk != nil {
		return 0, f.failBulk
	}
	f.mu.Lock()
	before := len(f.posts)
	f.posts = slices.DeleteFunc(f.posts, func(p content.Post) bool { return slices.Contains(ids, p.ID) })
	n := before - len(f.posts)
	f.mu.Unlock()
	f.emit()
	return n, nil
}

func (f *fakeSource) BulkSetField(_ context.Context, ids []string, field string, value bool) (int, error) {
	f.wait()
	if f.failBulk != nil {
		return 0, f.failBulk
	}
	f.mu.Lock()
	n := 0
	for i := range f.posts {
		if !slices.Contains(ids, f.posts[i].ID) {
			continue
		}
		switch field {
		case collection.FieldDraft:
			f.posts[i].Draft = value
		case collection.FieldFeatured:
			f.posts[i].Featured = value
		}
		n++
	}
	f.mu.Unlock()
	f.emit()
	return n, nil
}

var errStore = errors.New("store unavailable")

func post(id, title, date string, draft, featured bool) content.Post {
	return content.Post{ID: id, Title: title, Slug: id, Content: "body", Date: date, Draft: draft, Featured: featured}
}

// manyPosts returns n published posts with ids p01..pNN, newest last.
func manyPosts(n int) []content.Post {
	out := make([]content.Post, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		id := fmt.Sprintf("p%02d", i+1)
		out[i] = post(id, "Post "+id, content.FormatISO(base.AddDate(0, 0, i)), false, false)
	}
	return out
}

type fixture struct {
	c        *Controller[content.Post]
	source   *fakeSource
	sessions *auth.Sessions
}

func newFixture(t *testing.T, posts ...content.Post) fixture {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	sessions := auth.NewSessions(auth.Accounts{
		"admin@example.com": string(hash),
		"guest@example.com": string(hash),
	})
	_, ok := sessions.Restore("sid", "admin@example.com")
	require.True(t, ok)

	source := newFakeSource(posts...)
	c := New(Options[content.Post]{
		Kind:       content.KindPost,
		SessionID:  "sid",
		Source:     source,
		Gate:       auth.NewGate(auth.ParseAllowList("admin@example.com"), sessions),
		ToastDelay: time.Hour,
	})
	c.Open(context.Background())
	t.Cleanup(c.Close)
	return fixture{c: c, source: source, sessions: sessions}
}
