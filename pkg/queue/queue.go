package queue

import (
	"sync"

	"github.com/cuemby/agency/pkg/event"
)

// Queue is a FIFO of pending event records for a single agent. It is
// safe for concurrent Push from many sender goroutines; Pop is meant to
// be called by exactly one worker at a time (the dispatcher thread the
// owning agent is bound to).
type Queue struct {
	mu      sync.Mutex
	records []event.Record
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{}
}

// Push appends a record and reports whether the queue transitioned from
// empty to non-empty — the signal agent.Agent.Accept uses to call
// dispatch.Dispatcher.Notify exactly once per transition.
func (q *Queue) Push(rec event.Record) (becameNonEmpty bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	becameNonEmpty = len(q.records) == 0
	q.records = append(q.records, rec)
	return becameNonEmpty
}

// Pop removes and returns the oldest record. ok is false if the queue
// was empty.
func (q *Queue) Pop() (rec event.Record, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.records) == 0 {
		return event.Record{}, false
	}

	rec = q.records[0]
	q.records = q.records[1:]
	return rec, true
}

// Len reports the number of pending records. Used for metrics and
// tests; not meant to gate correctness decisions since it can change
// the instant after it's read.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records)
}

// Empty reports whether the queue currently has no pending records.
func (q *Queue) Empty() bool {
	return q.Len() == 0
}
