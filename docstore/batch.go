package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

type opKind int

const (
	opDelete opKind = iota
	opUpdate
)

type op struct {
	kind       opKind
	collection string
	id         string
	fields     map[string]any
}

// MissingError identifies the document that made a batch fail. It matches
// ErrNotFound.
type MissingError struct {
	Collection string
	ID         string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("docstore: document %s/%s not found", e.Collection, e.ID)
}

func (e *MissingError) Is(target error) bool { return target == ErrNotFound }

// Batch groups writes that are committed in a single transaction: either
// every operation is applied or none is.
type Batch struct {
	d   *DB
	ops []op
}

// BatchResult counts the documents a committed batch touched.
type BatchResult struct {
	Deleted int
	Updated int
}

// Batch starts an empty batch.
func (d *DB) Batch() *Batch {
	return &Batch{d: d}
}

// Delete queues removal of a document. Missing documents are skipped and
// not counted.
func (b *Batch) Delete(collection, id string) *Batch {
	b.ops = append(b.ops, op{kind: opDelete, collection: collection, id: id})
	return b
}

// Update queues a field merge. Updating a missing document fails the whole
// batch with ErrNotFound.
func (b *Batch) Update(collection, id string, fields map[string]any) *Batch {
	b.ops = append(b.ops, op{kind: opUpdate, collection: collection, id: id, fields: fields})
	return b
}

// Len returns the number of queued operations.
func (b *Batch) Len() int { return len(b.ops) }

// Commit applies the batch atomically.
func (b *Batch) Commit(ctx context.Context) (BatchResult, error) {
	var res BatchResult
	if len(b.ops) == 0 {
		return res, nil
	}

	tx, err := b.d.db.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer func() { _ = tx.Rollback() }()

	ts := formatTime(b.d.now())
	touched := map[string]struct{}{}
	for _, o := range b.ops {
		switch o.kind {
		case opDelete:
			r, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, o.collection, o.id)
			if err != nil {
				return BatchResult{}, err
			}
			n, err := r.RowsAffected()
			if err != nil {
				return BatchResult{}, err
			}
			res.Deleted += int(n)
		case opUpdate:
			if err := mergeUpdate(ctx, tx, o, ts); err != nil {
				return BatchResult{}, err
			}
			res.Updated++
		}
		touched[o.collection] = struct{}{}
	}

	if err := tx.Commit(); err != nil {
		return BatchResult{}, err
	}
	for name := range touched {
		b.d.changed(name)
	}
	return res, nil
}

func mergeUpdate(ctx context.Context, tx *sql.Tx, o op, ts string) error {
	var data string
	err := tx.QueryRowContext(ctx, `SELECT data FROM documents WHERE collection = ? AND id = ?`, o.collection, o.id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return &MissingError{Collection: o.collection, ID: o.id}
	}
	if err != nil {
		return err
	}
	current, err := decodeData(data)
	if err != nil {
		return fmt.Errorf("decoding document %s: %w", o.id, err)
	}
	for k, v := range o.fields {
		current[k] = v
	}
	merged, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?`,
		string(merged), ts, o.collection, o.id)
	return constraintError(err)
}
