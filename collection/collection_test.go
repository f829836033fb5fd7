package collection

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/folio/content"
	"github.com/eringen/folio/docstore"
)

func testDB(t *testing.T) *docstore.DB {
	t.Helper()
	db, err := docstore.Open(filepath.Join(t.TempDir(), "folio.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func postInput(slug, date string) content.Input {
	return content.Input{
		"title":   "Title " + slug,
		"slug":    slug,
		"content": "Body of " + slug,
		"date":    date,
	}
}

func TestCreateAndList(t *testing.T) {
	ctx := context.Background()
	posts := Posts(testDB(t), quietLogger())

	_, err := posts.Create(ctx, postInput("older", "2024-01-01"))
	require.NoError(t, err)
	id, err := posts.Create(ctx, postInput("newer", "2024-03-01"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	list := posts.List(ctx)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].Slug)
	assert.Equal(t, "older", list[1].Slug)
	assert.Equal(t, id, list[0].ID)
	assert.Equal(t, "2024-03-01T00:00:00.000Z", list[0].Date)
	assert.False(t, list[0].CreatedAt.IsZero())

	p, ok := posts.GetBySlug(ctx, "older")
	require.True(t, ok)
	assert.Equal(t, "Title older", p.Title)

	_, ok = posts.GetBySlug(ctx, "missing")
	assert.False(t, ok)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	posts := Posts(testDB(t), quietLogger())

	_, err := posts.Create(context.Background(), content.Input{"slug": "Bad Slug"})
	var verr *content.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Title is required. Content is required. Slug only accepts lowercase letters, numbers, and hyphens.", err.Error())
	assert.Empty(t, posts.List(context.Background()))
}

func TestSlugUniqueness(t *testing.T) {
	ctx := context.Background()
	posts := Posts(testDB(t), quietLogger())

	id, err := posts.Create(ctx, postInput("same", "2024-01-01"))
	require.NoError(t, err)

	_, err = posts.Create(ctx, postInput("same", "2024-01-02"))
	var conflict *content.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "Slug already exists.", err.Error())

	// Updating a record to its own slug is fine.
	in := postInput("same", "2024-01-05")
	in["title"] = "Renamed"
	require.NoError(t, posts.Update(ctx, id, in))

	got, err := posts.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt) || got.UpdatedAt.Equal(got.CreatedAt))

	otherID, err := posts.Create(ctx, postInput("other", "2024-01-01"))
	require.NoError(t, err)
	err = posts.Update(ctx, otherID, postInput("same", "2024-01-01"))
	assert.ErrorAs(t, err, &conflict)
}

func TestSlugsAreScopedToCollection(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	_, err := Posts(db, quietLogger()).Create(ctx, postInput("shared", ""))
	require.NoError(t, err)
	_, err = Projects(db, quietLogger()).Create(ctx, content.Input{"title": "P", "slug": "shared"})
	assert.NoError(t, err)
}

func TestUpdateMissing(t *testing.T) {
	posts := Posts(testDB(t), quietLogger())
	err := posts.Update(context.Background(), "nope", postInput("x", ""))
	var nf *content.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "nope", nf.ID)

	_, err = posts.Get(context.Background(), "nope")
	assert.ErrorAs(t, err, &nf)
}

func TestBulkDelete(t *testing.T) {
	ctx := context.Background()
	posts := Posts(testDB(t), quietLogger())
	a, _ := posts.Create(ctx, postInput("a", ""))
	c, _ := posts.Create(ctx, postInput("c", ""))

	n, err := posts.BulkDelete(ctx, []string{a, "b-missing", c, a})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, posts.List(ctx))

	n, err = posts.BulkDelete(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBulkSetField(t *testing.T) {
	ctx := context.Background()
	projects := Projects(testDB(t), quietLogger())
	a, _ := projects.Create(ctx, content.Input{"title": "A", "slug": "a"})
	b, _ := projects.Create(ctx, content.Input{"title": "B", "slug": "b"})

	n, err := projects.BulkSetField(ctx, []string{a, b, b}, FieldFeatured, true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	for _, p := range projects.List(ctx) {
		assert.True(t, p.Featured, p.Slug)
	}

	// One missing id rolls back the whole batch.
	_, err = projects.BulkSetField(ctx, []string{a, "gone"}, FieldDraft, true)
	var nf *content.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "gone", nf.ID)
	got, err := projects.Get(ctx, a)
	require.NoError(t, err)
	assert.False(t, got.Draft)

	_, err = projects.BulkSetField(ctx, []string{a}, "title", true)
	assert.Error(t, err)
}

func TestStoreErrorsAreTransportErrors(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	posts := Posts(db, quietLogger())
	require.NoError(t, db.Close())

	_, err := posts.Create(ctx, postInput("a", ""))
	var terr *TransportError
	assert.ErrorAs(t, err, &terr)

	_, err = posts.BulkDelete(ctx, []string{"x"})
	assert.ErrorAs(t, err, &terr)

	assert.Empty(t, posts.List(ctx))
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	posts := Posts(testDB(t), quietLogger())
	_, err := posts.Create(ctx, postInput("first", "2024-01-01"))
	require.NoError(t, err)

	snapshots := make(chan []content.Post, 8)
	unsubscribe := posts.Subscribe(ctx, func(ps []content.Post) { snapshots <- ps }, func(err error) {
		t.Errorf("unexpected error: %v", err)
	})
	defer unsubscribe()

	next := func() []content.Post {
		select {
		case ps := <-snapshots:
			return ps
		case <-time.After(2 * time.Second):
			t.Fatal("no snapshot")
			return nil
		}
	}

	require.Len(t, next(), 1)

	_, err = posts.Create(ctx, postInput("second", "2024-02-01"))
	require.NoError(t, err)
	ps := next()
	require.Len(t, ps, 2)
	assert.Equal(t, "second", ps[0].Slug)

	unsubscribe()
	_, err = posts.Create(ctx, postInput("third", "2024-03-01"))
	require.NoError(t, err)
	select {
	case ps := <-snapshots:
		t.Fatalf("snapshot after unsubscribe: %d records", len(ps))
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTransportErrorUnwraps(t *testing.T) {
	base := errors.New("boom")
	err := error(&TransportError{Op: "create", Err: base})
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "create failed: boom", err.Error())
}

func TestConcurrentWritersCannotDuplicateSlug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "folio.db")
	open := func() *Store[content.Post] {
		db, err := docstore.Open(path)
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		return Posts(db, quietLogger())
	}
	// Separate handles share no in-process lock, like the CLI importer
	// running next to the server.
	stores := []*Store[content.Post]{open(), open()}

	const writers = 8
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := stores[i%2].Create(context.Background(), postInput("same", "2024-01-01"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		if err == nil {
			created++
			continue
		}
		var conflict *content.ConflictError
		assert.ErrorAs(t, err, &conflict)
	}
	assert.Equal(t, 1, created)
	assert.Len(t, stores[0].List(context.Background()), 1)
}
