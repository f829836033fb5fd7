// Package docstore is a small document database on top of SQLite. Documents
// are JSON objects grouped into named collections and keyed by a
// store-assigned id. It supports equality queries, atomic batches and live
// watches that deliver a fresh snapshot after every committed write.
package docstore

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("docstore: document not found")

// ErrDuplicate is returned when a write would give two documents in one
// collection the same non-empty slug.
var ErrDuplicate = errors.New("docstore: duplicate slug")

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Document is a stored JSON object with its server-assigned metadata.
type Document struct {
	ID         string
	Data       map[string]any
	CreateTime time.Time
	UpdateTime time.Time
}

// Filter matches documents whose top-level field equals Value.
type Filter struct {
	Field string
	Value any
}

// Query selects documents from one collection.
type Query struct {
	Where   []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// DB is a handle to the document database. It is safe for concurrent use.
type DB struct {
	db       *sql.DB
	notifier Notifier
	origin   string
	now      func() time.Time

	mu      sync.Mutex
	watches map[string]map[*Watch]struct{}

	publishing sync.WaitGroup
	cancel     context.CancelFunc
}

// Option configures a DB.
type Option func(*DB)

// WithNotifier fans committed writes out to other processes sharing the
// database file, and refreshes local watches on their writes.
func WithNotifier(n Notifier) Option {
	return func(d *DB) {
		d.notifier = n
	}
}

// Open opens (or creates) the database at path, ensures its directory
// exists and applies pending migrations.
func Open(path string, opts ...Option) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	// Connection pragmas go in the DSN so every pooled connection gets them.
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=cache_size(-8000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetMaxIdleConns(4)

	if err := migrate(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &DB{
		db:      sqlDB,
		origin:  uuid.NewString(),
		now:     func() time.Time { return time.Now().UTC() },
		watches: make(map[string]map[*Watch]struct{}),
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.notifier != nil {
		if err := d.notifier.Listen(ctx, d.remoteChange); err != nil {
			cancel()
			_ = sqlDB.Close()
			return nil, fmt.Errorf("listening for changes: %w", err)
		}
	}
	return d, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Close stops every watch and closes the database.
func (d *DB) Close() error {
	d.cancel()
	d.mu.Lock()
	for _, set := range d.watches {
		for w := range set {
			w.stopOnce.Do(func() { close(w.done) })
		}
	}
	d.watches = make(map[string]map[*Watch]struct{})
	d.mu.Unlock()
	d.publishing.Wait()
	return d.db.Close()
}

// Collection returns a handle to the named collection.
func (d *DB) Collection(name string) *Collection {
	return &Collection{d: d, name: name}
}

// Collection is a named group of documents.
type Collection struct {
	d    *DB
	name string
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Query returns the documents matching q.
func (c *Collection) Query(ctx context.Context, q Query) ([]Document, error) {
	return c.d.query(ctx, c.d.db, c.name, q)
}

// Get returns a single document by id.
func (c *Collection) Get(ctx context.Context, id string) (Document, error) {
	row := c.d.db.QueryRowContext(ctx,
		`SELECT id, data, created_at, updated_at FROM documents WHERE collection = ? AND id = ?`,
		c.name, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return doc, err
}

// Add stores a new document and returns its id. Creation and update times
// are assigned by the store.
func (c *Collection) Add(ctx context.Context, fields map[string]any) (string, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encoding document: %w", err)
	}
	id := uuid.NewString()
	ts := formatTime(c.d.now())
	if _, err := c.d.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		c.name, id, string(data), ts, ts); err != nil {
		return "", constraintError(err)
	}
	c.d.changed(c.name)
	return id, nil
}

// Update merges fields into an existing document and refreshes its update
// time.
func (c *Collection) Update(ctx context.Context, id string, fields map[string]any) error {
	b := c.d.Batch()
	b.Update(c.name, id, fields)
	_, err := b.Commit(ctx)
	return err
}

// Delete removes a document. Deleting a missing document is not an error.
func (c *Collection) Delete(ctx context.Context, id string) error {
	b := c.d.Batch()
	b.Delete(c.name, id)
	_, err := b.Commit(ctx)
	return err
}

// Watch starts a live query. See DB.Watch.
func (c *Collection) Watch(ctx context.Context, q Query) (*Watch, error) {
	return c.d.Watch(ctx, c.name, q)
}

func constraintError(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (d *DB) query(ctx context.Context, db querier, collection string, q Query) ([]Document, error) {
	stmt := `SELECT id, data, created_at, updated_at FROM documents WHERE collection = ?`
	args := []any{collection}
	for _, f := range q.Where {
		if !fieldName.MatchString(f.Field) {
			return nil, fmt.Errorf("docstore: invalid field name %q", f.Field)
		}
		stmt += ` AND json_extract(data, ?) = ?`
		args = append(args, "$."+f.Field, f.Value)
	}
	if q.OrderBy != "" {
		if !fieldName.MatchString(q.OrderBy) {
			return nil, fmt.Errorf("docstore: invalid order field %q", q.OrderBy)
		}
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		stmt += ` ORDER BY json_extract(data, ?) ` + dir + `, id`
		args = append(args, "$."+q.OrderBy)
	} else {
		stmt += ` ORDER BY created_at, id`
	}
	if q.Limit > 0 {
		stmt += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (Document, error) {
	var id, data, created, updated string
	if err := s.Scan(&id, &data, &created, &updated); err != nil {
		return Document{}, err
	}
	fields, err := decodeData(data)
	if err != nil {
		return Document{}, fmt.Errorf("decoding document %s: %w", id, err)
	}
	return Document{
		ID:         id,
		Data:       fields,
		CreateTime: parseTime(created),
		UpdateTime: parseTime(updated),
	}, nil
}

func decodeData(data string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	fields := map[string]any{}
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
