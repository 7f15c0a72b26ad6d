package svcrequest

import (
	"sync"
	"time"

	"github.com/cuemby/agency/pkg/errs"
	"github.com/cuemby/agency/pkg/event"
	"github.com/cuemby/agency/pkg/mailbox"
	"github.com/cuemby/agency/pkg/metrics"
	"github.com/google/uuid"
)

// Slot is a single-assignment container for a service request's result.
// It implements event.ReplySink so a handler can complete it without the
// mailbox package needing to know this package exists.
type Slot[T any] struct {
	mu     sync.Mutex
	done   chan struct{}
	closed bool
	result T
	err    error
}

// NewSlot creates an unfulfilled reply slot.
func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{done: make(chan struct{})}
}

// Complete fulfills the slot with result (type-asserted to T) and err.
// The first call wins; later calls (a late reply arriving after the
// waiter already timed out and detached) are silently ignored.
func (s *Slot[T]) Complete(result any, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if err == nil {
		if v, ok := result.(T); ok {
			s.result = v
		}
	}
	s.err = err
	close(s.done)
}

func (s *Slot[T]) detach() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	return true
}

func (s *Slot[T]) snapshot() (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.err
}

// WaitForever blocks until the slot is completed. Only safe when the
// calling agent cannot itself be the (possibly indirect) target of the
// request it is waiting on — such a cycle deadlocks forever by
// definition, and the framework does not detect it. WaitFor is the safe
// choice whenever that can't be ruled out.
func (s *Slot[T]) WaitForever() (T, error) {
	<-s.done
	return s.snapshot()
}

// WaitFor blocks until the slot is completed or d elapses, whichever
// comes first. On timeout it detaches the slot (a reply that arrives
// afterward is ignored) and returns errs.ResultNotReceivedYet.
func (s *Slot[T]) WaitFor(d time.Duration) (T, error) {
	timer := metrics.NewTimer()
	select {
	case <-s.done:
		timer.ObserveDurationVec(metrics.SvcRequestDuration, "completed")
		return s.snapshot()
	case <-time.After(d):
		if s.detach() {
			timer.ObserveDurationVec(metrics.SvcRequestDuration, "timeout")
			var zero T
			return zero, errs.New(errs.ResultNotReceivedYet, "service request timed out")
		}
		// completed between the timer firing and the detach attempt
		timer.ObserveDurationVec(metrics.SvcRequestDuration, "completed")
		return s.snapshot()
	}
}

// Request delivers payload as a service-request message of type Req on
// box, returning a slot that will be completed by whichever agent's
// handler accepts it.
func Request[Req, Resp any](box *mailbox.Box, payload Req) (*Slot[Resp], error) {
	slot := NewSlot[Resp]()
	tag := event.TagFor[Req]()
	msg := &event.Message{
		ID:        uuid.NewString(),
		Tag:       tag,
		Kind:      event.KindSvcRequest,
		Payload:   payload,
		ReplySink: slot,
	}
	if err := box.Deliver(tag, msg); err != nil {
		return nil, err
	}
	return slot, nil
}
