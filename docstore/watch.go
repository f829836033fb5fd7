package docstore

import (
	"context"
	"sync"
	"time"
)

// publishTimeout bounds one change announcement to other processes.
const publishTimeout = 2 * time.Second

// Watch is a live query. Snapshots carries the full ordered result after
// every committed write to the collection; only the latest undelivered
// snapshot is kept. Query failures arrive on Errors and the watch keeps
// waiting for the next change.
type Watch struct {
	Snapshots <-chan []Document
	Errors    <-chan error

	d          *DB
	collection string
	query      Query
	snapshots  chan []Document
	errs       chan error
	trigger    chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
}

// Watch starts a live query on collection. The first snapshot is delivered
// immediately. The watch ends when ctx is cancelled or Stop is called.
func (d *DB) Watch(ctx context.Context, collection string, q Query) (*Watch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w := &Watch{
		d:          d,
		collection: collection,
		query:      q,
		snapshots:  make(chan []Document, 1),
		errs:       make(chan error, 1),
		trigger:    make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	w.Snapshots = w.snapshots
	w.Errors = w.errs

	d.mu.Lock()
	set, ok := d.watches[collection]
	if !ok {
		set = make(map[*Watch]struct{})
		d.watches[collection] = set
	}
	set[w] = struct{}{}
	d.mu.Unlock()

	w.poke()
	go w.run(ctx)
	return w, nil
}

// Stop ends the watch. It is safe to call more than once.
func (w *Watch) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
	w.d.mu.Lock()
	if set, ok := w.d.watches[w.collection]; ok {
		delete(set, w)
		if len(set) == 0 {
			delete(w.d.watches, w.collection)
		}
	}
	w.d.mu.Unlock()
}

// Done is closed once the watch has ended.
func (w *Watch) Done() <-chan struct{} { return w.done }

func (w *Watch) poke() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

func (w *Watch) run(ctx context.Context) {
	defer w.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-w.trigger:
		}

		docs, err := w.d.query(ctx, w.d.db, w.collection, w.query)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			select {
			case <-w.errs:
			default:
			}
			w.errs <- err
			continue
		}
		select {
		case <-w.snapshots:
		default:
		}
		w.snapshots <- docs
	}
}

// changed refreshes local watches and tells other processes about a
// write. Publishing runs in the background so a slow broker never holds up
// the writer.
func (d *DB) changed(collection string) {
	d.refresh(collection)
	if d.notifier == nil {
		return
	}
	c := Change{Origin: d.origin, Collection: collection}
	d.publishing.Add(1)
	go func() {
		defer d.publishing.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		d.notifier.Publish(ctx, c)
	}()
}

func (d *DB) remoteChange(c Change) {
	if c.Origin == d.origin {
		return
	}
	d.refresh(c.Collection)
}

func (d *DB) refresh(collection string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for w := range d.watches[collection] {
		w.poke()
	}
}
