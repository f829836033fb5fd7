// Package admin holds the list controllers behind the admin panel. A
// Controller owns one browser session's view of a collection: the live
// record list, search, filters, sort, pagination, selection, pending
// confirmations and toasts.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/eringen/folio/auth"
	"github.com/eringen/folio/content"
	"github.com/eringen/folio/importer"
)

var (
	ErrBusy         = errors.New("another action is still running")
	ErrNoConfirm    = errors.New("no action is waiting for confirmation")
	ErrUnauthorized = errors.New("not authorized")
	ErrUnknownID    = errors.New("record id is required")
)

// Phase is the controller's coarse state.
type Phase string

const (
	PhaseLoading Phase = "loading"
	PhaseIdle    Phase = "idle"
	PhaseBusy    Phase = "bulk-action-in-progress"
	PhaseConfirm Phase = "confirm-pending"
)

// Source is the collection a controller manages.
type Source[R content.Record] interface {
	Subscribe(ctx context.Context, onChange func([]R), onError func(error)) (unsubscribe func())
	Create(ctx context.Context, in content.Input) (string, error)
	Delete(ctx context.Context, id string) error
	BulkDelete(ctx context.Context, ids []string) (int, error)
	BulkSetField(ctx context.Context, ids []string, field string, value bool) (int, error)
}

// Gate admits or rejects the session on every identity change.
type Gate interface {
	Observe(sessionID string, onAuthorized func(auth.Identity), onUnauthorized func()) (cancel func())
}

// Options configures a Controller.
type Options[R content.Record] struct {
	Kind      content.Kind
	SessionID string
	Source    Source[R]
	Gate      Gate
	// Importer is optional; without it Import reports an error toast.
	Importer   ImportSource
	RepoURL    string
	ToastDelay time.Duration
	Logger     *slog.Logger
}

// ConfirmRequest is a mutation waiting for the user to confirm it.
type ConfirmRequest struct {
	Action       Action   `json:"action"`
	Title        string   `json:"title"`
	Message      string   `json:"message"`
	ConfirmLabel string   `json:"confirmLabel"`
	IDs          []string `json:"ids"`
	Running      bool     `json:"running"`
}

// Snapshot is a consistent copy of the controller state.
type Snapshot[R content.Record] struct {
	Kind         content.Kind    `json:"kind"`
	Phase        Phase           `json:"phase"`
	Authorized   bool            `json:"authorized"`
	Identity     *auth.Identity  `json:"identity,omitempty"`
	State        ListState       `json:"state"`
	Query        string          `json:"query"`
	Items        []R             `json:"items"`
	Visible      int             `json:"visible"`
	Count        int             `json:"count"`
	TotalPages   int             `json:"totalPages"`
	Selected     []string        `json:"selected"`
	PageSelected bool            `json:"pageSelected"`
	Confirm      *ConfirmRequest `json:"confirm,omitempty"`
	Importing    bool            `json:"importing"`
	Toasts       []Toast         `json:"toasts"`
}

// Controller drives one admin list page.
type Controller[R content.Record] struct {
	kind      content.Kind
	sessionID string
	source    Source[R]
	gate      Gate
	importer  ImportSource
	repoURL   string
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	loading     bool
	authorized  bool
	identity    *auth.Identity
	records     []R
	state       ListState
	selected    map[string]struct{}
	confirm     *ConfirmRequest
	running     bool
	importing   bool
	toasts      toastQueue
	unsub       func()
	subscribing bool
	stopGate    func()
	closed      bool
	listeners   map[chan struct{}]struct{}
	lastUsed    time.Time
}

// New returns an unopened controller.
func New[R content.Record](opts Options[R]) *Controller[R] {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	delay := opts.ToastDelay
	if delay <= 0 {
		delay = DefaultToastDelay
	}
	c := &Controller[R]{
		kind:      opts.Kind,
		sessionID: opts.SessionID,
		source:    opts.Source,
		gate:      opts.Gate,
		importer:  opts.Importer,
		repoURL:   opts.RepoURL,
		logger:    logger.With("kind", string(opts.Kind)),
		loading:   true,
		state:     DefaultListState(),
		selected:  map[string]struct{}{},
		listeners: map[chan struct{}]struct{}{},
		lastUsed:  time.Now(),
	}
	c.toasts.delay = delay
	c.toasts.onExpel = c.expireToast
	return c
}

// Open starts observing the session. Once the gate admits it, a live
// subscription to the collection is opened.
func (c *Controller[R]) Open(ctx context.Context) {
	c.mu.Lock()
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	stop := c.gate.Observe(c.sessionID, c.onAuthorized, c.onUnauthorized)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		stop()
		return
	}
	c.stopGate = stop
	c.mu.Unlock()
}

// Close ends the session observer and the collection subscription.
// Mutations already running finish, but their results are dropped.
func (c *Controller[R]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unsub, stopGate := c.unsub, c.stopGate
	c.unsub, c.stopGate = nil, nil
	c.toasts.stop()
	for ch := range c.listeners {
		close(ch)
	}
	c.listeners = map[chan struct{}]struct{}{}
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	if stopGate != nil {
		stopGate()
	}
	if unsub != nil {
		unsub()
	}
}

func (c *Controller[R]) onAuthorized(id auth.Identity) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.authorized = true
	c.identity = &id
	subscribe := c.unsub == nil && !c.subscribing
	if subscribe {
		c.subscribing = true
	}
	ctx := c.ctx
	c.notifyLocked()
	c.mu.Unlock()

	if !subscribe {
		return
	}
	unsub := c.source.Subscribe(ctx, c.onSnapshot, c.onError)

	c.mu.Lock()
	c.subscribing = false
	if c.closed || !c.authorized {
		c.mu.Unlock()
		unsub()
		return
	}
	c.unsub = unsub
	c.mu.Unlock()
}

func (c *Controller[R]) onUnauthorized() {
	c.mu.Lock()
	c.authorized = false
	c.identity = nil
	c.records = nil
	c.loading = true
	c.selected = map[string]struct{}{}
	c.confirm = nil
	unsub := c.unsub
	c.unsub = nil
	c.notifyLocked()
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func (c *Controller[R]) onSnapshot(records []R) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.authorized {
		return
	}
	c.records = records
	c.loading = false
	c.reconcileLocked()
	c.notifyLocked()
}

func (c *Controller[R]) onError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.logger.Error("collection subscription failed", "error", err)
	c.loading = false
	c.toasts.push(ToastError, fmt.Sprintf("Could not load %s.", c.kind))
	c.notifyLocked()
}

// reconcileLocked clamps the page and drops selected ids that are no longer
// visible.
func (c *Controller[R]) reconcileLocked() View[R] {
	c.state = c.state.normalized()
	v := Derive(c.records, c.state)
	if c.loading {
		// Nothing to clamp against until the first snapshot.
		return v
	}
	c.state.Page = v.Page
	if len(c.selected) > 0 {
		visible := make(map[string]struct{}, len(v.Visible))
		for _, r := range v.Visible {
			visible[r.GetID()] = struct{}{}
		}
		for id := range c.selected {
			if _, ok := visible[id]; !ok {
				delete(c.selected, id)
			}
		}
	}
	return v
}

// Seed replaces the list state with the one encoded in q, as on a fresh
// page load.
func (c *Controller[R]) Seed(q url.Values) ListState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchLocked()
	c.state = ParseQuery(q)
	c.reconcileLocked()
	c.notifyLocked()
	return c.state
}

// SetState applies a new list state. Changing the search, sort or a filter
// returns to the first page; otherwise the requested page is used.
func (c *Controller[R]) SetState(next ListState) ListState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchLocked()
	next = next.normalized()
	if !c.state.sameFilters(next) {
		next.Page = 1
	}
	c.state = next
	c.reconcileLocked()
	c.notifyLocked()
	return c.state
}

// SetPage moves to page n, clamped to the available pages.
func (c *Controller[R]) SetPage(n int) ListState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchLocked()
	c.state.Page = max(n, 1)
	c.reconcileLocked()
	c.notifyLocked()
	return c.state
}

// Select adds or removes one visible record from the selection.
func (c *Controller[R]) Select(id string, checked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchLocked()
	if !checked {
		delete(c.selected, id)
		c.notifyLocked()
		return
	}
	v := Derive(c.records, c.state)
	for _, r := range v.Visible {
		if r.GetID() == id {
			c.selected[id] = struct{}{}
			c.notifyLocked()
			return
		}
	}
}

// SelectPage adds or removes exactly the ids on the current page.
func (c *Controller[R]) SelectPage(checked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchLocked()
	v := Derive(c.records, c.state)
	for _, id := range ids(v.Items) {
		if checked {
			c.selected[id] = struct{}{}
		} else {
			delete(c.selected, id)
		}
	}
	c.notifyLocked()
}

// Request opens a confirmation for action. Delete needs id; the bulk
// actions work on the current selection and do nothing when it is empty.
func (c *Controller[R]) Request(action Action, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchLocked()
	if !c.authorized {
		return ErrUnauthorized
	}
	if c.running || c.importing {
		return ErrBusy
	}

	var targets []string
	if action == ActionDelete {
		if id == "" {
			return ErrUnknownID
		}
		targets = []string{id}
	} else {
		targets = c.selectedLocked()
		if len(targets) == 0 {
			return nil
		}
	}
	req := confirmFor(action, c.kind, len(targets))
	req.IDs = targets
	c.confirm = &req
	c.notifyLocked()
	return nil
}

// Confirm runs the pending action and closes the dialog. The outcome is
// reported as a toast, including failures; the returned error only covers
// a missing or already running confirmation.
func (c *Controller[R]) Confirm(ctx context.Context) error {
	c.mu.Lock()
	if c.confirm == nil {
		c.mu.Unlock()
		return ErrNoConfirm
	}
	if c.running {
		c.mu.Unlock()
		return ErrBusy
	}
	c.touchLocked()
	c.running = true
	c.confirm.Running = true
	req := *c.confirm
	c.notifyLocked()
	c.mu.Unlock()

	kind, msg, ok := c.run(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	c.confirm = nil
	if c.closed {
		return nil
	}
	if ok && req.Action != ActionDelete {
		c.selected = map[string]struct{}{}
	}
	c.toasts.push(kind, msg)
	c.notifyLocked()
	return nil
}

// Cancel closes the pending confirmation. It refuses while the action is
// running.
func (c *Controller[R]) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return false
	}
	c.confirm = nil
	c.notifyLocked()
	return true
}

func (c *Controller[R]) run(ctx context.Context, req ConfirmRequest) (kind, msg string, ok bool) {
	fail := func(err error) (string, string, bool) {
		c.logger.Warn("admin action failed", "action", req.Action, "error", err)
		return ToastError, "Error: " + err.Error(), false
	}
	noun := string(c.kind)
	switch req.Action {
	case ActionDelete:
		if err := c.source.Delete(ctx, req.IDs[0]); err != nil {
			return fail(err)
		}
		return ToastSuccess, fmt.Sprintf("Deleted the %s.", singular(c.kind)), true
	case ActionBulkDelete:
		n, err := c.source.BulkDelete(ctx, req.IDs)
		if err != nil {
			return fail(err)
		}
		return ToastSuccess, fmt.Sprintf("Deleted %d %s.", n, noun), true
	case ActionPublish, ActionUnpublish, ActionFeature, ActionUnfeature:
		field, value := req.Action.field()
		if _, err := c.source.BulkSetField(ctx, req.IDs, field, value); err != nil {
			return fail(err)
		}
		return ToastSuccess, req.Action.doneMessage(noun), true
	}
	return fail(fmt.Errorf("unknown action %q", req.Action))
}

// Import creates records from the import source, skipping slugs that are
// already present. The summary is reported as a toast.
func (c *Controller[R]) Import(ctx context.Context) error {
	c.mu.Lock()
	if !c.authorized {
		c.mu.Unlock()
		return ErrUnauthorized
	}
	if c.importing || c.running {
		c.mu.Unlock()
		return ErrBusy
	}
	c.touchLocked()
	c.importing = true
	existing := make([]string, 0, len(c.records))
	for _, r := range c.records {
		existing = append(existing, r.GetSlug())
	}
	defaults := importer.Defaults{RepoURL: c.repoURL}
	if c.identity != nil {
		defaults.Author = c.identity.DisplayName()
	}
	c.notifyLocked()
	c.mu.Unlock()

	kind, msg := c.runImport(ctx, existing, defaults)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.importing = false
	if c.closed {
		return nil
	}
	c.toasts.push(kind, msg)
	c.notifyLocked()
	return nil
}

func (c *Controller[R]) runImport(ctx context.Context, existing []string, defaults importer.Defaults) (kind, msg string) {
	if c.importer == nil {
		return ToastError, "Import failed: no import source is configured."
	}
	candidates, err := c.importer.Candidates(ctx, c.kind)
	if err != nil {
		c.logger.Error("reading import candidates", "error", err)
		return ToastError, "Import failed: " + err.Error()
	}
	if len(candidates) == 0 {
		return ToastInfo, fmt.Sprintf("No importable %s found in the document.", c.kind)
	}
	for i := range candidates {
		candidates[i] = defaults.Apply(c.kind, candidates[i])
	}
	res := Import(ctx, existing, candidates, c.source.Create)
	for _, f := range res.Failed {
		c.logger.Warn("import candidate rejected", "slug", f.Slug, "error", f.Err)
	}
	c.logger.Info("import finished", "created", res.Created, "skipped", res.Skipped, "failed", len(res.Failed))
	return ToastSuccess, fmt.Sprintf("Import finished: %d created, %d skipped.", res.Created, res.Skipped)
}

// Dismiss removes a toast by id.
func (c *Controller[R]) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.toasts.dismiss(id) {
		return false
	}
	c.notifyLocked()
	return true
}

func (c *Controller[R]) expireToast(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.toasts.expire(gen) {
		c.notifyLocked()
	}
}

// Snapshot returns the current state.
func (c *Controller[R]) Snapshot() Snapshot[R] {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := Derive(c.records, c.state)

	s := Snapshot[R]{
		Kind:       c.kind,
		Phase:      c.phaseLocked(),
		Authorized: c.authorized,
		State:      c.state,
		Query:      c.state.Encode(),
		Items:      append([]R(nil), v.Items...),
		Visible:    len(v.Visible),
		Count:      len(c.records),
		TotalPages: v.TotalPages,
		Selected:   c.selectedLocked(),
		Importing:  c.importing,
		Toasts:     c.toasts.snapshot(),
	}
	if s.Items == nil {
		s.Items = []R{}
	}
	if c.identity != nil {
		id := *c.identity
		s.Identity = &id
	}
	if c.confirm != nil {
		req := *c.confirm
		req.IDs = append([]string(nil), c.confirm.IDs...)
		s.Confirm = &req
	}
	s.PageSelected = len(v.Items) > 0
	for _, r := range v.Items {
		if _, ok := c.selected[r.GetID()]; !ok {
			s.PageSelected = false
			break
		}
	}
	return s
}

// Changes returns a channel that receives a value after every state change,
// coalescing bursts. The channel is closed when the controller closes. The
// returned function stops delivery.
func (c *Controller[R]) Changes() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	c.listeners[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, ok := c.listeners[ch]; ok {
				delete(c.listeners, ch)
				close(ch)
			}
		})
	}
}

// Listening reports whether any Changes channel is open.
func (c *Controller[R]) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners) > 0
}

// LastUsed returns when the controller last handled a user action.
func (c *Controller[R]) LastUsed() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}

func (c *Controller[R]) touchLocked() {
	c.lastUsed = time.Now()
}

func (c *Controller[R]) notifyLocked() {
	for ch := range c.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (c *Controller[R]) phaseLocked() Phase {
	switch {
	case c.loading:
		return PhaseLoading
	case c.running:
		return PhaseBusy
	case c.confirm != nil:
		return PhaseConfirm
	}
	return PhaseIdle
}

// selectedLocked returns the selection in display order.
func (c *Controller[R]) selectedLocked() []string {
	out := []string{}
	if len(c.selected) == 0 {
		return out
	}
	for _, r := range Derive(c.records, c.state).Visible {
		if _, ok := c.selected[r.GetID()]; ok {
			out = append(out, r.GetID())
		}
	}
	return out
}

func singular(k content.Kind) string {
	return strings.TrimSuffix(string(k), "s")
}
