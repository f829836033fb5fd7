package docstore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T, opts ...Option) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "docs.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func nextSnapshot(t *testing.T, w *Watch) []Document {
	t.Helper()
	select {
	case docs := <-w.Snapshots:
		return docs
	case err := <-w.Errors:
		t.Fatalf("watch error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return nil
}

func TestAddGetQuery(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	posts := d.Collection("posts")

	idA, err := posts.Add(ctx, map[string]any{"slug": "a", "date": "2024-01-01T00:00:00.000Z"})
	require.NoError(t, err)
	idB, err := posts.Add(ctx, map[string]any{"slug": "b", "date": "2024-02-01T00:00:00.000Z"})
	require.NoError(t, err)
	_, err = d.Collection("projects").Add(ctx, map[string]any{"slug": "a"})
	require.NoError(t, err)

	doc, err := posts.Get(ctx, idA)
	require.NoError(t, err)
	assert.Equal(t, "a", doc.Data["slug"])
	assert.False(t, doc.CreateTime.IsZero())
	assert.Equal(t, doc.CreateTime, doc.UpdateTime)

	docs, err := posts.Query(ctx, Query{OrderBy: "date", Desc: true})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, idB, docs[0].ID)
	assert.Equal(t, idA, docs[1].ID)

	docs, err = posts.Query(ctx, Query{Where: []Filter{{Field: "slug", Value: "a"}}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, idA, docs[0].ID)

	_, err = posts.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueryRejectsBadFieldNames(t *testing.T) {
	d := openTestDB(t)
	_, err := d.Collection("posts").Query(context.Background(), Query{Where: []Filter{{Field: "a') OR 1=1 --", Value: 1}}})
	assert.Error(t, err)
}

func TestUpdateMergesAndBumpsTime(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	posts := d.Collection("posts")

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return clock }
	id, err := posts.Add(ctx, map[string]any{"slug": "a", "draft": true})
	require.NoError(t, err)

	clock = clock.Add(time.Hour)
	require.NoError(t, posts.Update(ctx, id, map[string]any{"draft": false}))

	doc, err := posts.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "a", doc.Data["slug"])
	assert.Equal(t, false, doc.Data["draft"])
	assert.True(t, doc.UpdateTime.After(doc.CreateTime))

	err = posts.Update(ctx, "missing", map[string]any{"draft": true})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBatchIsAtomic(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	posts := d.Collection("posts")

	idA, _ := posts.Add(ctx, map[string]any{"slug": "a", "featured": false})
	idB, _ := posts.Add(ctx, map[string]any{"slug": "b", "featured": false})

	_, err := d.Batch().
		Update("posts", idA, map[string]any{"featured": true}).
		Update("posts", "missing", map[string]any{"featured": true}).
		Delete("posts", idB).
		Commit(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	doc, err := posts.Get(ctx, idA)
	require.NoError(t, err)
	assert.Equal(t, false, doc.Data["featured"], "update rolled back")
	_, err = posts.Get(ctx, idB)
	assert.NoError(t, err, "delete rolled back")
}

func TestBatchDeleteCountsAffected(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	posts := d.Collection("posts")
	idA, _ := posts.Add(ctx, map[string]any{"slug": "a"})
	idC, _ := posts.Add(ctx, map[string]any{"slug": "c"})

	res, err := d.Batch().Delete("posts", idA).Delete("posts", "b-missing").Delete("posts", idC).Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Deleted)

	docs, err := posts.Query(ctx, Query{})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestEmptyBatch(t *testing.T) {
	d := openTestDB(t)
	res, err := d.Batch().Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BatchResult{}, res)
}

func TestWatchDeliversSnapshots(t *testing.T) {
	d := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	posts := d.Collection("posts")

	w, err := posts.Watch(ctx, Query{OrderBy: "date", Desc: true})
	require.NoError(t, err)
	assert.Empty(t, nextSnapshot(t, w))

	_, err = posts.Add(ctx, map[string]any{"slug": "a", "date": "2024-01-01T00:00:00.000Z"})
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		select {
		case docs := <-w.Snapshots:
			return len(docs) == 1
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	// Writes to other collections do not wake the watch.
	_, err = d.Collection("projects").Add(ctx, map[string]any{"slug": "p"})
	require.NoError(t, err)
	select {
	case docs := <-w.Snapshots:
		t.Fatalf("unexpected snapshot %v", docs)
	case <-time.After(100 * time.Millisecond):
	}

	w.Stop()
	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatchEndsWithContext(t *testing.T) {
	d := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	w, err := d.Watch(ctx, "posts", Query{})
	require.NoError(t, err)
	nextSnapshot(t, w)

	cancel()
	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("watch did not stop on cancel")
	}
}

type fakeNotifier struct {
	mu        sync.Mutex
	published []Change
	fn        func(Change)
}

func (f *fakeNotifier) Publish(_ context.Context, c Change) {
	f.mu.Lock()
	f.published = append(f.published, c)
	f.mu.Unlock()
}

func (f *fakeNotifier) Listen(_ context.Context, fn func(Change)) error {
	f.fn = fn
	return nil
}

func TestNotifierFanOut(t *testing.T) {
	n := &fakeNotifier{}
	d := openTestDB(t, WithNotifier(n))
	ctx := context.Background()

	w, err := d.Watch(ctx, "posts", Query{})
	require.NoError(t, err)
	defer w.Stop()
	nextSnapshot(t, w)

	_, err = d.Collection("posts").Add(ctx, map[string]any{"slug": "a"})
	require.NoError(t, err)
	nextSnapshot(t, w)

	assert.Eventually(t, func() bool {
		n.mu.Lock()
		defer n.mu.Unlock()
		return len(n.published) == 1
	}, time.Second, 10*time.Millisecond)
	n.mu.Lock()
	assert.Equal(t, "posts", n.published[0].Collection)
	assert.Equal(t, d.origin, n.published[0].Origin)
	n.mu.Unlock()

	// A change from another process refreshes the watch.
	n.fn(Change{Origin: "other", Collection: "posts"})
	nextSnapshot(t, w)

	// Our own echo is ignored.
	n.fn(Change{Origin: d.origin, Collection: "posts"})
	select {
	case <-w.Snapshots:
		t.Fatal("own change should be ignored")
	case <-time.After(100 * time.Millisecond):
	}
}

// stuckNotifier never delivers; Publish waits for its context to end.
type stuckNotifier struct {
	deadline chan bool
}

func (s *stuckNotifier) Publish(ctx context.Context, _ Change) {
	_, ok := ctx.Deadline()
	<-ctx.Done()
	s.deadline <- ok
}

func (s *stuckNotifier) Listen(context.Context, func(Change)) error { return nil }

func TestSlowNotifierDoesNotBlockWrites(t *testing.T) {
	n := &stuckNotifier{deadline: make(chan bool, 1)}
	d := openTestDB(t, WithNotifier(n))

	start := time.Now()
	_, err := d.Collection("posts").Add(context.Background(), map[string]any{"slug": "a"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), publishTimeout/2)

	select {
	case ok := <-n.deadline:
		assert.True(t, ok, "publish runs under a deadline")
	case <-time.After(publishTimeout + time.Second):
		t.Fatal("publish never timed out")
	}
}

func TestSlugIsUniquePerCollection(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	posts := d.Collection("posts")

	idA, err := posts.Add(ctx, map[string]any{"slug": "a"})
	require.NoError(t, err)
	_, err = posts.Add(ctx, map[string]any{"slug": "a"})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = d.Collection("projects").Add(ctx, map[string]any{"slug": "a"})
	assert.NoError(t, err, "slugs are scoped to a collection")

	for range 2 {
		_, err = posts.Add(ctx, map[string]any{"slug": ""})
		assert.NoError(t, err)
		_, err = posts.Add(ctx, map[string]any{"title": "no slug"})
		assert.NoError(t, err)
	}

	// A batch that would duplicate a slug rolls back entirely.
	idB, err := posts.Add(ctx, map[string]any{"slug": "b", "draft": true})
	require.NoError(t, err)
	b := d.Batch()
	b.Update("posts", idA, map[string]any{"draft": true})
	b.Update("posts", idB, map[string]any{"slug": "a"})
	_, err = b.Commit(ctx)
	assert.ErrorIs(t, err, ErrDuplicate)

	doc, err := posts.Get(ctx, idA)
	require.NoError(t, err)
	assert.Nil(t, doc.Data["draft"])
}
