package admin

import (
	"time"

	"github.com/google/uuid"
)

// DefaultToastDelay is how long the oldest toast stays on screen.
const DefaultToastDelay = 2800 * time.Millisecond

// Toast kinds.
const (
	ToastSuccess = "success"
	ToastError   = "error"
	ToastInfo    = "info"
)

// Toast is a transient notification.
type Toast struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// toastQueue holds toasts oldest first. Every change to the queue restarts
// a single timer that drops the oldest toast when it fires.
type toastQueue struct {
	items   []Toast
	delay   time.Duration
	timer   *time.Timer
	gen     uint64
	onExpel func(gen uint64)
}

func (q *toastQueue) push(kind, msg string) Toast {
	t := Toast{ID: uuid.NewString(), Type: kind, Message: msg}
	q.items = append(q.items, t)
	q.restart()
	return t
}

func (q *toastQueue) dismiss(id string) bool {
	for i, t := range q.items {
		if t.ID == id {
			q.items = append(q.items[:i:i], q.items[i+1:]...)
			q.restart()
			return true
		}
	}
	return false
}

// expire drops the oldest toast if gen is still the current timer.
func (q *toastQueue) expire(gen uint64) bool {
	if gen != q.gen || len(q.items) == 0 {
		return false
	}
	q.items = q.items[1:]
	q.restart()
	return true
}

func (q *toastQueue) restart() {
	q.gen++
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	if len(q.items) == 0 || q.onExpel == nil {
		return
	}
	gen := q.gen
	q.timer = time.AfterFunc(q.delay, func() { q.onExpel(gen) })
}

func (q *toastQueue) stop() {
	q.gen++
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
}

func (q *toastQueue) snapshot() []Toast {
	out := make([]Toast, len(q.items))
	copy(out, q.items)
	return out
}
