// Package collection adapts a docstore collection to typed post and project
// records. Every write passes content normalization and slug uniqueness
// checks; store failures come back as TransportError values.
package collection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/eringen/folio/content"
	"github.com/eringen/folio/docstore"
)

// Bulk-updatable fields.
const (
	FieldDraft    = "draft"
	FieldFeatured = "featured"
)

var byDateDesc = docstore.Query{OrderBy: "date", Desc: true}

// TransportError wraps a failure of the underlying document store.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Store is the typed view of one collection.
type Store[R content.Record] struct {
	schema content.Schema[R]
	coll   *docstore.Collection
	db     *docstore.DB
	logger *slog.Logger

	// writeMu serializes slug checks with the writes that depend on them.
	writeMu sync.Mutex
}

// New returns a Store for schema's collection in db.
func New[R content.Record](db *docstore.DB, schema content.Schema[R], logger *slog.Logger) *Store[R] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store[R]{
		schema: schema,
		coll:   db.Collection(string(schema.Kind)),
		db:     db,
		logger: logger.With("collection", string(schema.Kind)),
	}
}

// Posts returns the post store.
func Posts(db *docstore.DB, logger *slog.Logger) *Store[content.Post] {
	return New(db, content.PostSchema, logger)
}

// Projects returns the project store.
func Projects(db *docstore.DB, logger *slog.Logger) *Store[content.Project] {
	return New(db, content.ProjectSchema, logger)
}

// Kind returns the collection kind.
func (s *Store[R]) Kind() content.Kind { return s.schema.Kind }

// List returns every record, newest first. Failures are logged and yield an
// empty list.
func (s *Store[R]) List(ctx context.Context) []R {
	docs, err := s.coll.Query(ctx, byDateDesc)
	if err != nil {
		s.logger.Error("listing records", "error", err)
		return []R{}
	}
	return s.decodeAll(docs)
}

// GetBySlug returns the record with the given slug.
func (s *Store[R]) GetBySlug(ctx context.Context, slug string) (R, bool) {
	var zero R
	if slug == "" {
		return zero, false
	}
	docs, err := s.coll.Query(ctx, docstore.Query{
		Where: []docstore.Filter{{Field: "slug", Value: slug}},
		Limit: 1,
	})
	if err != nil {
		s.logger.Error("loading record by slug", "slug", slug, "error", err)
		return zero, false
	}
	if len(docs) == 0 {
		return zero, false
	}
	r, err := decode[R](docs[0])
	if err != nil {
		s.logger.Error("decoding record", "id", docs[0].ID, "error", err)
		return zero, false
	}
	return r, true
}

// Get returns the record with the given id.
func (s *Store[R]) Get(ctx context.Context, id string) (R, error) {
	var zero R
	doc, err := s.coll.Get(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return zero, &content.NotFoundError{Kind: s.schema.Kind, ID: id}
	}
	if err != nil {
		return zero, &TransportError{Op: "get", Err: err}
	}
	r, err := decode[R](doc)
	if err != nil {
		return zero, &TransportError{Op: "get", Err: err}
	}
	return r, nil
}

// Subscribe delivers the full ordered record list after every change to the
// collection, starting with the current contents. Store failures are passed
// to onError and the subscription keeps waiting for the next change. The
// returned function ends the subscription and may be called more than once.
func (s *Store[R]) Subscribe(ctx context.Context, onChange func([]R), onError func(error)) (unsubscribe func()) {
	ctx, cancel := context.WithCancel(ctx)
	w, err := s.coll.Watch(ctx, byDateDesc)
	if err != nil {
		cancel()
		s.logger.Error("subscribing", "error", err)
		if onError != nil {
			onError(&TransportError{Op: "subscribe", Err: err})
		}
		return func() {}
	}

	deliver := func(fn func()) {
		if ctx.Err() == nil {
			fn()
		}
	}

	go func() {
		for {
			select {
			case <-w.Done():
				return
			case docs := <-w.Snapshots:
				records := s.decodeAll(docs)
				deliver(func() { onChange(records) })
			case err := <-w.Errors:
				s.logger.Error("subscription failed", "error", err)
				if onError != nil {
					deliver(func() { onError(&TransportError{Op: "subscribe", Err: err}) })
				}
			}
		}
	}()

	return func() {
		cancel()
		w.Stop()
	}
}

// Create validates in and stores a new record, returning its id.
func (s *Store[R]) Create(ctx context.Context, in content.Input) (string, error) {
	r, errs := s.schema.Normalize(in)
	if len(errs) > 0 {
		return "", &content.ValidationError{Problems: errs}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.checkSlug(ctx, r.GetSlug(), ""); err != nil {
		return "", err
	}
	id, err := s.coll.Add(ctx, map[string]any(r.Fields()))
	if errors.Is(err, docstore.ErrDuplicate) {
		return "", &content.ConflictError{Slug: r.GetSlug()}
	}
	if err != nil {
		return "", &TransportError{Op: "create", Err: err}
	}
	s.logger.Info("record created", "id", id, "slug", r.GetSlug())
	return id, nil
}

// Update validates in and replaces the editable fields of record id.
func (s *Store[R]) Update(ctx context.Context, id string, in content.Input) error {
	r, errs := s.schema.Normalize(in)
	if len(errs) > 0 {
		return &content.ValidationError{Problems: errs}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.checkSlug(ctx, r.GetSlug(), id); err != nil {
		return err
	}
	err := s.coll.Update(ctx, id, map[string]any(r.Fields()))
	if errors.Is(err, docstore.ErrNotFound) {
		return &content.NotFoundError{Kind: s.schema.Kind, ID: id}
	}
	if errors.Is(err, docstore.ErrDuplicate) {
		return &content.ConflictError{Slug: r.GetSlug()}
	}
	if err != nil {
		return &TransportError{Op: "update", Err: err}
	}
	s.logger.Info("record updated", "id", id, "slug", r.GetSlug())
	return nil
}

// Delete removes record id. Deleting a missing record succeeds.
func (s *Store[R]) Delete(ctx context.Context, id string) error {
	if err := s.coll.Delete(ctx, id); err != nil {
		return &TransportError{Op: "delete", Err: err}
	}
	s.logger.Info("record deleted", "id", id)
	return nil
}

// BulkDelete removes every listed record in one atomic batch. Ids that do
// not exist are skipped; the count covers only records actually removed.
func (s *Store[R]) BulkDelete(ctx context.Context, ids []string) (int, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	b := s.db.Batch()
	for _, id := range ids {
		b.Delete(s.coll.Name(), id)
	}
	res, err := b.Commit(ctx)
	if err != nil {
		return 0, &TransportError{Op: "bulk delete", Err: err}
	}
	s.logger.Info("records deleted", "requested", len(ids), "deleted", res.Deleted)
	return res.Deleted, nil
}

// BulkSetField sets the draft or featured flag on every listed record in
// one atomic batch. A missing id fails the whole batch with NotFoundError
// and nothing is changed.
func (s *Store[R]) BulkSetField(ctx context.Context, ids []string, field string, value bool) (int, error) {
	if field != FieldDraft && field != FieldFeatured {
		return 0, fmt.Errorf("collection: field %q cannot be bulk updated", field)
	}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	b := s.db.Batch()
	for _, id := range ids {
		b.Update(s.coll.Name(), id, map[string]any{field: value})
	}
	res, err := b.Commit(ctx)
	var missing *docstore.MissingError
	if errors.As(err, &missing) {
		return 0, &content.NotFoundError{Kind: s.schema.Kind, ID: missing.ID}
	}
	if err != nil {
		return 0, &TransportError{Op: "bulk update", Err: err}
	}
	s.logger.Info("records updated", "field", field, "value", value, "updated", res.Updated)
	return res.Updated, nil
}

func (s *Store[R]) checkSlug(ctx context.Context, slug, self string) error {
	docs, err := s.coll.Query(ctx, docstore.Query{
		Where: []docstore.Filter{{Field: "slug", Value: slug}},
	})
	if err != nil {
		return &TransportError{Op: "slug check", Err: err}
	}
	for _, d := range docs {
		if d.ID != self {
			return &content.ConflictError{Slug: slug}
		}
	}
	return nil
}

func (s *Store[R]) decodeAll(docs []docstore.Document) []R {
	out := make([]R, 0, len(docs))
	for _, d := range docs {
		r, err := decode[R](d)
		if err != nil {
			s.logger.Warn("skipping undecodable record", "id", d.ID, "error", err)
			continue
		}
		out = append(out, r)
	}
	return out
}

// decode maps a stored document onto R. The date field is canonicalized to
// ISO-8601 here so provider timestamp shapes never reach callers.
func decode[R content.Record](d docstore.Document) (R, error) {
	var r R
	fields := make(map[string]any, len(d.Data)+3)
	for k, v := range d.Data {
		fields[k] = v
	}
	if t, ok := content.ParseTime(fields["date"]); ok {
		fields["date"] = content.FormatISO(t)
	} else {
		fields["date"] = ""
	}
	fields["id"] = d.ID
	fields["createdAt"] = d.CreateTime
	fields["updatedAt"] = d.UpdateTime

	raw, err := json.Marshal(fields)
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return r, err
	}
	return r, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
