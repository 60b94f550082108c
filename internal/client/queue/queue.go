package queue

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State tracks where an entry sits in its delivery lifecycle.
type State int

const (
	// StatePending means the entry is waiting to be sent (or resent).
	StatePending State = iota
	// StateInFlight means the entry was written to the connection and is
	// waiting for the server ack. In-flight entries return to pending on
	// reconnect so they get resent; the server dedupes on correlation id.
	StateInFlight
	// StateFailed means delivery gave up. Failed entries stay visible until
	// the caller discards them.
	StateFailed
)

// Entry is one queued outbound message. Entries survive restarts through the
// Store and are replayed in creation order.
type Entry struct {
	CorrelationID string    `json:"correlation_id"`
	RoomID        string    `json:"room_id"`
	Content       string    `json:"content"`
	MsgType       int       `json:"msg_type"`
	CreatedAt     time.Time `json:"created_at"`
	Attempts      int       `json:"attempts"`
	State         State     `json:"state"`
	LastError     string    `json:"last_error,omitempty"`
}

// Store is the durable backing for queue entries. List must return entries
// ordered by creation time.
type Store interface {
	Put(e Entry) error
	Delete(correlationID string) error
	List() ([]Entry, error)
	Close() error
}

// Options tunes retry and eviction behavior.
type Options struct {
	// MaxRetries is how many send attempts an entry gets before Sweep marks
	// it failed. Zero means the default of 3.
	MaxRetries int
	// MaxAge is how long an entry may stay pending before Sweep marks it
	// failed regardless of attempts. Zero means the default of 24h.
	MaxAge time.Duration
}

const (
	defaultMaxRetries = 3
	defaultMaxAge     = 24 * time.Hour
)

// Queue is the client-side outbound message queue. Messages are enqueued
// before any send attempt, flushed in creation order per room, and removed
// only when the server acks them. Everything is safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	store   Store
	entries map[string]*Entry
	opts    Options
	log     *slog.Logger
	now     func() time.Time
}

// New builds a queue on top of the given store, replaying any entries a
// previous run left behind. In-flight entries from the previous run go back
// to pending.
func New(store Store, log *slog.Logger, opts Options) (*Queue, error) {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = defaultMaxAge
	}
	if log == nil {
		log = slog.Default()
	}

	q := &Queue{
		store:   store,
		entries: make(map[string]*Entry),
		opts:    opts,
		log:     log,
		now:     time.Now,
	}

	replayed, err := store.List()
	if err != nil {
		return nil, fmt.Errorf("replay outbound queue: %w", err)
	}
	for i := range replayed {
		e := replayed[i]
		if e.State == StateInFlight {
			e.State = StatePending
		}
		q.entries[e.CorrelationID] = &e
	}
	if len(replayed) > 0 {
		log.Info("outbound queue replayed", "entries", len(replayed))
	}
	return q, nil
}

// Enqueue persists a new pending entry and returns it. The correlation id is
// generated here and follows the message through ack or failure.
func (q *Queue) Enqueue(roomID, content string, msgType int) (Entry, error) {
	e := Entry{
		CorrelationID: uuid.NewString(),
		RoomID:        roomID,
		Content:       content,
		MsgType:       msgType,
		CreatedAt:     q.now(),
		State:         StatePending,
	}
	if err := q.store.Put(e); err != nil {
		return Entry{}, fmt.Errorf("enqueue: %w", err)
	}

	q.mu.Lock()
	q.entries[e.CorrelationID] = &e
	q.mu.Unlock()
	return e, nil
}

// Flush sends pending entries in creation order. Ordering is per room: a
// transport failure for one room's entry skips the rest of that room for this
// flush but does not stall other rooms. Each attempted entry moves to
// in-flight and stays queued until Ack removes it.
func (q *Queue) Flush(send func(Entry) error) error {
	q.mu.Lock()
	pending := q.pendingLocked()
	q.mu.Unlock()

	stalled := make(map[string]struct{})
	var firstErr error
	for _, e := range pending {
		if _, skip := stalled[e.RoomID]; skip {
			continue
		}

		q.mu.Lock()
		cur, ok := q.entries[e.CorrelationID]
		if !ok || cur.State != StatePending {
			q.mu.Unlock()
			continue
		}
		cur.Attempts++
		cur.State = StateInFlight
		snapshot := *cur
		q.mu.Unlock()

		if err := q.store.Put(snapshot); err != nil {
			return fmt.Errorf("flush: %w", err)
		}

		if err := send(snapshot); err != nil {
			q.log.Warn("outbound send failed",
				"room_id", e.RoomID, "correlation_id", e.CorrelationID, "error", err)
			q.mu.Lock()
			if cur, ok := q.entries[e.CorrelationID]; ok {
				cur.State = StatePending
				cur.LastError = err.Error()
			}
			q.mu.Unlock()
			stalled[e.RoomID] = struct{}{}
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Ack removes a delivered entry. Unknown correlation ids are ignored; a
// duplicate ack after a resend is normal.
func (q *Queue) Ack(correlationID string) error {
	q.mu.Lock()
	_, ok := q.entries[correlationID]
	if ok {
		delete(q.entries, correlationID)
	}
	q.mu.Unlock()
	if !ok {
		return nil
	}
	return q.store.Delete(correlationID)
}

// Fail records a server-reported failure. Transient failures go back to
// pending for the next flush; permanent ones (blocked, not a participant,
// archived room) move straight to failed.
func (q *Queue) Fail(correlationID string, transient bool, reason string) error {
	q.mu.Lock()
	e, ok := q.entries[correlationID]
	if !ok {
		q.mu.Unlock()
		return nil
	}
	e.LastError = reason
	if transient {
		e.State = StatePending
	} else {
		e.State = StateFailed
	}
	snapshot := *e
	q.mu.Unlock()
	return q.store.Put(snapshot)
}

// ResetInFlight returns in-flight entries to pending. Called on reconnect,
// before the flush, so unacked sends are retried.
func (q *Queue) ResetInFlight() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.State == StateInFlight {
			e.State = StatePending
		}
	}
}

// Sweep moves exhausted entries to the failed state: too many attempts, or
// older than MaxAge. Returns the entries it failed so the caller can surface
// them to the user.
func (q *Queue) Sweep() ([]Entry, error) {
	cutoff := q.now().Add(-q.opts.MaxAge)

	q.mu.Lock()
	var evicted []Entry
	for _, e := range q.entries {
		if e.State != StatePending {
			continue
		}
		switch {
		case e.Attempts >= q.opts.MaxRetries:
			e.State = StateFailed
			e.LastError = "retry limit reached"
		case e.CreatedAt.Before(cutoff):
			e.State = StateFailed
			e.LastError = "message expired"
		default:
			continue
		}
		evicted = append(evicted, *e)
	}
	q.mu.Unlock()

	for _, e := range evicted {
		if err := q.store.Put(e); err != nil {
			return evicted, fmt.Errorf("sweep: %w", err)
		}
		q.log.Warn("outbound entry gave up",
			"room_id", e.RoomID, "correlation_id", e.CorrelationID, "reason", e.LastError)
	}
	sortByCreation(evicted)
	return evicted, nil
}

// Pending returns pending entries in creation order.
func (q *Queue) Pending() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pendingLocked()
}

// Failed returns entries that gave up, in creation order. They stay here
// until Discard.
func (q *Queue) Failed() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Entry
	for _, e := range q.entries {
		if e.State == StateFailed {
			out = append(out, *e)
		}
	}
	sortByCreation(out)
	return out
}

// Discard drops a failed entry for good.
func (q *Queue) Discard(correlationID string) error {
	return q.Ack(correlationID)
}

// Retry puts a failed entry back in the pending set with a fresh attempt
// budget. This is the user-driven recovery path for messages that gave up.
func (q *Queue) Retry(correlationID string) error {
	q.mu.Lock()
	e, ok := q.entries[correlationID]
	if !ok || e.State != StateFailed {
		q.mu.Unlock()
		return nil
	}
	e.State = StatePending
	e.Attempts = 0
	e.LastError = ""
	snapshot := *e
	q.mu.Unlock()
	return q.store.Put(snapshot)
}

// Len reports how many entries are queued in any state.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Close closes the backing store.
func (q *Queue) Close() error {
	return q.store.Close()
}

func (q *Queue) pendingLocked() []Entry {
	var out []Entry
	for _, e := range q.entries {
		if e.State == StatePending {
			out = append(out, *e)
		}
	}
	sortByCreation(out)
	return out
}

func sortByCreation(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CorrelationID < entries[j].CorrelationID
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}
