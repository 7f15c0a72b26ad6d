package dispatch

import (
	"sync"

	"github.com/cuemby/agency/pkg/metrics"
)

// OneThread is the simplest binding policy: every bound agent is serviced
// by the same single worker goroutine, round-robin, one event per agent
// per pass. Cheap, but a slow handler on one agent delays every other
// agent bound to the same dispatcher — callers that need isolation
// should reach for ActiveObject instead.
type OneThread struct {
	name string

	mu      sync.Mutex
	bound   map[string]Runnable
	pending map[string]bool // runnableID -> has a pending Notify not yet serviced
	order   []string        // round-robin order of runnableIDs currently bound

	wake     chan struct{}
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// NewOneThread creates a one-thread dispatcher identified by name (used
// only for logging/metrics labels).
func NewOneThread(name string) *OneThread {
	return &OneThread{
		name:     name,
		bound:    make(map[string]Runnable),
		pending:  make(map[string]bool),
		wake:     make(chan struct{}, 1),
		shutdown: make(chan struct{}),
	}
}

func (d *OneThread) Name() string { return d.name }

func (d *OneThread) Bind(r Runnable) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.bound[r.RunnableID()]; ok {
		return errAlreadyBound(d.name, r.RunnableID())
	}
	d.bound[r.RunnableID()] = r
	d.order = append(d.order, r.RunnableID())
	return nil
}

func (d *OneThread) Unbind(r Runnable) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := r.RunnableID()
	if _, ok := d.bound[id]; !ok {
		return
	}
	delete(d.bound, id)
	delete(d.pending, id)
	for i, oid := range d.order {
		if oid == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

func (d *OneThread) Notify(runnableID string) {
	d.mu.Lock()
	if _, ok := d.bound[runnableID]; ok {
		d.pending[runnableID] = true
	}
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *OneThread) Start() {
	d.wg.Add(1)
	go d.run()
}

func (d *OneThread) Shutdown() {
	close(d.shutdown)
}

func (d *OneThread) Wait() {
	d.wg.Wait()
}

func (d *OneThread) run() {
	defer d.wg.Done()

	for {
		select {
		case <-d.shutdown:
			return
		case <-d.wake:
		}

		for {
			id, r, more := d.nextPending()
			if !more {
				break
			}
			timer := metrics.NewTimer()
			executed := r.TryExecOne()
			timer.ObserveDurationVec(metrics.EventHandlingDuration, d.name)

			d.mu.Lock()
			if executed {
				d.pending[id] = true // re-check on the next pass; may have more queued
			} else {
				delete(d.pending, id)
			}
			d.mu.Unlock()

			metrics.DispatcherScheduled.WithLabelValues(d.name, "one_thread").Inc()

			select {
			case <-d.shutdown:
				return
			default:
			}
		}
	}
}

// nextPending pops the next runnableID with pending work, cycling
// through d.order for fairness so no single agent starves the rest.
func (d *OneThread) nextPending() (string, Runnable, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := 0; i < len(d.order); i++ {
		id := d.order[0]
		d.order = append(d.order[1:], id)
		if d.pending[id] {
			return id, d.bound[id], true
		}
	}
	return "", nil, false
}
