package admin

import (
	"context"
	"errors"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/folio/auth"
	"github.com/eringen/folio/content"
	"github.com/eringen/folio/importer"
)

func TestControllerLoadsOnceAuthorized(t *testing.T) {
	f := newFixture(t, manyPosts(3)...)
	s := f.c.Snapshot()
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.True(t, s.Authorized)
	require.NotNil(t, s.Identity)
	assert.Equal(t, "admin@example.com", s.Identity.Email)
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 1, f.source.subscribers())
}

func TestControllerUnauthorizedSession(t *testing.T) {
	f := newFixture(t, manyPosts(3)...)

	f.sessions.SignOut("sid")
	s := f.c.Snapshot()
	assert.False(t, s.Authorized)
	assert.Equal(t, PhaseLoading, s.Phase)
	assert.Zero(t, s.Count)
	assert.Zero(t, f.source.subscribers(), "subscription closed on sign out")
	assert.ErrorIs(t, f.c.Request(ActionBulkDelete, ""), ErrUnauthorized)

	// A signed-in identity outside the allow-list is still rejected.
	_, ok := f.sessions.Restore("sid", "guest@example.com")
	require.True(t, ok)
	assert.False(t, f.c.Snapshot().Authorized)

	f.sessions.SignOut("sid")
	_, ok = f.sessions.Restore("sid", "admin@example.com")
	require.True(t, ok)
	s = f.c.Snapshot()
	assert.True(t, s.Authorized)
	assert.Equal(t, 3, s.Count)
}

func TestControllerSeedAndStateChanges(t *testing.T) {
	f := newFixture(t, manyPosts(25)...)

	st := f.c.Seed(url.Values{"page": {"5"}, "sort": {"title_asc"}})
	assert.Equal(t, 3, st.Page, "page clamps to the last page")
	assert.Equal(t, "sort=title_asc&page=3", st.Encode())

	st = f.c.SetPage(2)
	assert.Equal(t, 2, st.Page)

	next := st
	next.Search = "p1"
	st = f.c.SetState(next)
	assert.Equal(t, 1, st.Page, "search change resets the page")
	assert.Equal(t, "q=p1&sort=title_asc", st.Encode())

	s := f.c.Snapshot()
	assert.Equal(t, 10, s.Visible) // p10..p19
	assert.Equal(t, 1, s.TotalPages)

	next = st
	next.Page = 7
	st = f.c.SetState(next)
	assert.Equal(t, 1, st.Page, "page clamps")
}

func TestSeedBeforeFirstSnapshotKeepsPage(t *testing.T) {
	source := newFakeSource(manyPosts(25)...)
	c := New(Options[content.Post]{Kind: content.KindPost, SessionID: "sid", Source: source, Gate: denyGate{}})
	st := c.Seed(url.Values{"page": {"3"}})
	assert.Equal(t, 3, st.Page)
	assert.Equal(t, PhaseLoading, c.Snapshot().Phase)
}

type denyGate struct{}

func (denyGate) Observe(_ string, _ func(auth.Identity), onUnauthorized func()) func() {
	onUnauthorized()
	return func() {}
}

func TestSelectionInvariant(t *testing.T) {
	posts := []content.Post{
		post("x", "X", "2024-01-03T00:00:00.000Z", true, false),
		post("y", "Y", "2024-01-02T00:00:00.000Z", false, false),
		post("z", "Z", "2024-01-01T00:00:00.000Z", false, true),
	}
	f := newFixture(t, posts...)

	f.c.Select("x", true)
	f.c.Select("y", true)
	f.c.Select("nope", true)
	assert.Equal(t, []string{"x", "y"}, f.c.Snapshot().Selected)

	st := f.c.Snapshot().State
	st.Status = StatusPublished
	f.c.SetState(st)
	assert.Equal(t, []string{"y"}, f.c.Snapshot().Selected, "hidden draft dropped from selection")

	f.c.Select("y", false)
	assert.Empty(t, f.c.Snapshot().Selected)
}

func TestSelectionPrunedBySnapshot(t *testing.T) {
	f := newFixture(t, manyPosts(3)...)
	f.c.SelectPage(true)
	require.Len(t, f.c.Snapshot().Selected, 3)

	require.NoError(t, f.source.Delete(context.Background(), "p02"))
	assert.Equal(t, []string{"p03", "p01"}, f.c.Snapshot().Selected)
}

func TestSelectPageOnlyTouchesCurrentPage(t *testing.T) {
	f := newFixture(t, manyPosts(15)...)

	f.c.SetPage(2)
	f.c.SelectPage(true)
	s := f.c.Snapshot()
	assert.Len(t, s.Selected, 5)
	assert.True(t, s.PageSelected)

	f.c.SetPage(1)
	assert.False(t, f.c.Snapshot().PageSelected)
	f.c.Select("p15", true)
	f.c.SelectPage(false)
	s = f.c.Snapshot()
	assert.Len(t, s.Selected, 5, "page two selection survives")
	assert.NotContains(t, s.Selected, "p15")
}

func TestBulkDeleteConfirmFlow(t *testing.T) {
	f := newFixture(t, manyPosts(3)...)

	// Nothing selected: no dialog.
	require.NoError(t, f.c.Request(ActionBulkDelete, ""))
	assert.Nil(t, f.c.Snapshot().Confirm)

	f.c.Select("p01", true)
	f.c.Select("p03", true)
	require.NoError(t, f.c.Request(ActionBulkDelete, ""))
	s := f.c.Snapshot()
	assert.Equal(t, PhaseConfirm, s.Phase)
	require.NotNil(t, s.Confirm)
	assert.Equal(t, "Delete 2 selected posts?", s.Confirm.Message)

	require.NoError(t, f.c.Confirm(context.Background()))
	s = f.c.Snapshot()
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Nil(t, s.Confirm)
	assert.Empty(t, s.Selected)
	assert.Equal(t, 1, s.Count)
	require.Len(t, s.Toasts, 1)
	assert.Equal(t, ToastSuccess, s.Toasts[0].Type)
	assert.Equal(t, "Deleted 2 posts.", s.Toasts[0].Message)

	assert.ErrorIs(t, f.c.Confirm(context.Background()), ErrNoConfirm)
}

func TestSingleDelete(t *testing.T) {
	f := newFixture(t, manyPosts(2)...)
	assert.ErrorIs(t, f.c.Request(ActionDelete, ""), ErrUnknownID)

	require.NoError(t, f.c.Request(ActionDelete, "p01"))
	assert.Equal(t, "Delete post", f.c.Snapshot().Confirm.Title)
	require.NoError(t, f.c.Confirm(context.Background()))
	s := f.c.Snapshot()
	assert.Equal(t, 1, s.Count)
	assert.Equal(t, "Deleted the post.", s.Toasts[0].Message)
}

func TestBulkFailureStillClosesDialog(t *testing.T) {
	f := newFixture(t, manyPosts(2)...)
	f.source.failBulk = errStore

	f.c.SelectPage(true)
	require.NoError(t, f.c.Request(ActionPublish, ""))
	require.NoError(t, f.c.Confirm(context.Background()))

	s := f.c.Snapshot()
	assert.Nil(t, s.Confirm)
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Len(t, s.Selected, 2, "selection kept after failure")
	require.Len(t, s.Toasts, 1)
	assert.Equal(t, ToastError, s.Toasts[0].Type)
	assert.Equal(t, "Error: store unavailable", s.Toasts[0].Message)
}

func TestBulkSetFieldActions(t *testing.T) {
	f := newFixture(t, manyPosts(2)...)

	f.c.SelectPage(true)
	require.NoError(t, f.c.Request(ActionUnpublish, ""))
	require.NoError(t, f.c.Confirm(context.Background()))
	for _, p := range f.source.posts {
		assert.True(t, p.Draft)
	}

	f.c.SelectPage(true)
	require.NoError(t, f.c.Request(ActionFeature, ""))
	require.NoError(t, f.c.Confirm(context.Background()))
	for _, p := range f.source.posts {
		assert.True(t, p.Featured)
	}
	toasts := f.c.Snapshot().Toasts
	require.Len(t, toasts, 2)
	assert.Equal(t, "Moved the selected posts to drafts.", toasts[0].Message)
	assert.Equal(t, "Marked the selected posts as featured.", toasts[1].Message)
}

func TestSnapshotDuringRunningAction(t *testing.T) {
	f := newFixture(t, manyPosts(3)...)
	f.source.hold = make(chan struct{})

	f.c.SelectPage(true)
	require.NoError(t, f.c.Request(ActionBulkDelete, ""))

	done := make(chan error, 1)
	go func() { done <- f.c.Confirm(context.Background()) }()

	require.Eventually(t, func() bool {
		return f.c.Snapshot().Phase == PhaseBusy
	}, time.Second, 5*time.Millisecond)

	assert.False(t, f.c.Cancel(), "cannot cancel a running action")
	assert.ErrorIs(t, f.c.Request(ActionPublish, ""), ErrBusy)
	assert.ErrorIs(t, f.c.Import(context.Background()), ErrBusy)

	// A snapshot arriving mid-action is applied without disturbing it.
	_, err := f.source.Create(context.Background(), content.Input{"title": "Late", "slug": "late", "content": "x"})
	require.NoError(t, err)
	s := f.c.Snapshot()
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, PhaseBusy, s.Phase)
	require.NotNil(t, s.Confirm)
	assert.True(t, s.Confirm.Running)

	close(f.source.hold)
	require.NoError(t, <-done)
	s = f.c.Snapshot()
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Equal(t, 1, s.Count)
}

func TestCancelConfirm(t *testing.T) {
	f := newFixture(t, manyPosts(1)...)
	f.c.SelectPage(true)
	require.NoError(t, f.c.Request(ActionFeature, ""))
	assert.True(t, f.c.Cancel())
	s := f.c.Snapshot()
	assert.Nil(t, s.Confirm)
	assert.Len(t, s.Selected, 1)
	assert.Empty(t, s.Toasts)
}

func TestToastLifecycle(t *testing.T) {
	source := newFakeSource(manyPosts(2)...)
	f := newFixture(t)
	c := New(Options[content.Post]{
		Kind:       content.KindPost,
		SessionID:  "sid",
		Source:     source,
		Gate:       f.c.gate,
		ToastDelay: 300 * time.Millisecond,
	})
	c.Open(context.Background())
	defer c.Close()

	c.SelectPage(true)
	require.NoError(t, c.Request(ActionFeature, ""))
	require.NoError(t, c.Confirm(context.Background()))
	c.SelectPage(true)
	require.NoError(t, c.Request(ActionUnfeature, ""))
	require.NoError(t, c.Confirm(context.Background()))

	toasts := c.Snapshot().Toasts
	require.Len(t, toasts, 2)
	assert.True(t, c.Dismiss(toasts[1].ID))
	assert.False(t, c.Dismiss("unknown"))
	assert.Len(t, c.Snapshot().Toasts, 1)

	assert.Eventually(t, func() bool {
		return len(c.Snapshot().Toasts) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestChangesNotifies(t *testing.T) {
	f := newFixture(t, manyPosts(2)...)
	ch, stop := f.c.Changes()
	defer stop()
	assert.True(t, f.c.Listening())

	f.c.Select("p01", true)
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no change notification")
	}

	stop()
	assert.False(t, f.c.Listening())
	_, ok := <-ch
	assert.False(t, ok)
}

type stubImporter struct {
	candidates []importer.Candidate
	err        error
}

func (s stubImporter) Candidates(context.Context, content.Kind) ([]importer.Candidate, error) {
	return s.candidates, s.err
}

func candidate(slug, title string) importer.Candidate {
	s := importer.Section{Title: title, Slug: slug, Content: "Body for " + title, Description: "d"}
	return importer.Candidate{Slug: slug, Title: title, Fields: s.Fields()}
}

func TestControllerImport(t *testing.T) {
	f := newFixture(t, post("existing", "Existing", "2024-01-01T00:00:00.000Z", false, false))
	f.source.failOn["broken"] = errStore
	f.c.importer = stubImporter{candidates: []importer.Candidate{
		candidate("existing", "Existing"),
		candidate("fresh", "Fresh"),
		candidate("", "No slug"),
		candidate("fresh", "Fresh again"),
		candidate("broken", "Broken"),
		candidate("second", "Second"),
	}}

	require.NoError(t, f.c.Import(context.Background()))
	s := f.c.Snapshot()
	assert.Equal(t, 3, s.Count)
	require.Len(t, s.Toasts, 1)
	assert.Equal(t, "Import finished: 2 created, 3 skipped.", s.Toasts[0].Message)

	var created content.Post
	for _, p := range f.source.posts {
		if p.Slug == "fresh" {
			created = p
		}
	}
	assert.Equal(t, "admin", created.Author)
	assert.Equal(t, []string{"thongtin", "profile"}, created.Categories)
	assert.Equal(t, []string{"thongtin-md", "import"}, created.Tags)
}

func TestControllerImportEmptyAndFailure(t *testing.T) {
	f := newFixture(t)
	f.c.importer = stubImporter{}
	require.NoError(t, f.c.Import(context.Background()))
	toasts := f.c.Snapshot().Toasts
	require.Len(t, toasts, 1)
	assert.Equal(t, ToastInfo, toasts[0].Type)

	f.c.importer = stubImporter{err: errors.New("file missing")}
	require.NoError(t, f.c.Import(context.Background()))
	toasts = f.c.Snapshot().Toasts
	require.Len(t, toasts, 2)
	assert.Equal(t, "Import failed: file missing", toasts[1].Message)
}

func TestImportFold(t *testing.T) {
	var calls []string
	create := func(_ context.Context, in content.Input) (string, error) {
		slug := in["slug"].(string)
		calls = append(calls, slug)
		if slug == "bad" {
			return "", errStore
		}
		return "id-" + slug, nil
	}
	res := Import(context.Background(), []string{"a"}, []importer.Candidate{
		candidate("a", "A"),
		candidate("b", "B"),
		candidate("b", "B2"),
		candidate("bad", "Bad"),
		candidate("bad", "Bad again"),
	}, create)

	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.Failed, 2)
	assert.Equal(t, []string{"b", "bad", "bad"}, calls, "failed slugs are retried, created ones are not")
}

func TestSlugSetIsImmutable(t *testing.T) {
	base := newSlugSet([]string{"a"})
	withB := base.With("b")
	assert.True(t, withB.Has("a"))
	assert.True(t, withB.Has("b"))
	assert.False(t, base.Has("b"))
}

func TestRegistry(t *testing.T) {
	f := newFixture(t)
	source := newFakeSource(manyPosts(1)...)
	reg := NewRegistry(context.Background(), func(sessionID string) *Controller[content.Post] {
		return New(Options[content.Post]{Kind: content.KindPost, SessionID: sessionID, Source: source, Gate: f.c.gate})
	})
	defer reg.Close()

	c := reg.Get("sid")
	assert.Same(t, c, reg.Get("sid"))
	assert.Equal(t, 1, c.Snapshot().Count)
	assert.Equal(t, 1, reg.Len())

	_, stop := c.Changes()
	assert.Zero(t, reg.Evict(0), "listening controllers stay")
	stop()
	assert.Equal(t, 1, reg.Evict(0))
	assert.Zero(t, reg.Len())

	reg.Get("other")
	reg.Drop("other")
	assert.Zero(t, reg.Len())
}

// slowGate signals when Observe starts and reports the session as signed
// out after a delay.
type slowGate struct {
	started  chan struct{}
	observed atomic.Int32
}

func (g *slowGate) Observe(_ string, _ func(auth.Identity), onUnauthorized func()) func() {
	close(g.started)
	time.Sleep(50 * time.Millisecond)
	onUnauthorized()
	g.observed.Add(1)
	return func() {}
}

func TestRegistryGetWaitsForOpen(t *testing.T) {
	gate := &slowGate{started: make(chan struct{})}
	source := newFakeSource()
	reg := NewRegistry(context.Background(), func(sessionID string) *Controller[content.Post] {
		return New(Options[content.Post]{Kind: content.KindPost, SessionID: sessionID, Source: source, Gate: gate})
	})
	defer reg.Close()

	first := make(chan *Controller[content.Post])
	go func() { first <- reg.Get("sid") }()
	<-gate.started

	c := reg.Get("sid")
	assert.Equal(t, int32(1), gate.observed.Load(), "second caller returned before the controller was open")
	assert.Same(t, c, <-first)
	assert.Equal(t, int32(1), gate.observed.Load())
}
