package dispatch

import (
	"sync"

	"github.com/cuemby/agency/pkg/metrics"
)

// ActiveObject binds each agent to its own dedicated worker goroutine:
// no agent ever waits behind another agent's slow handler. The cost is
// one goroutine (and one wake channel) per bound agent.
type ActiveObject struct {
	name string

	mu      sync.Mutex
	workers map[string]*aoWorker
	wg      sync.WaitGroup
}

type aoWorker struct {
	r        Runnable
	wake     chan struct{}
	shutdown chan struct{}
}

// NewActiveObject creates an active-object dispatcher identified by name.
func NewActiveObject(name string) *ActiveObject {
	return &ActiveObject{name: name, workers: make(map[string]*aoWorker)}
}

func (d *ActiveObject) Name() string { return d.name }

func (d *ActiveObject) Bind(r Runnable) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := r.RunnableID()
	if _, ok := d.workers[id]; ok {
		return errAlreadyBound(d.name, id)
	}

	w := &aoWorker{
		r:        r,
		wake:     make(chan struct{}, 1),
		shutdown: make(chan struct{}),
	}
	d.workers[id] = w
	d.wg.Add(1)
	go d.runWorker(w)
	return nil
}

func (d *ActiveObject) Unbind(r Runnable) {
	d.mu.Lock()
	w, ok := d.workers[r.RunnableID()]
	if ok {
		delete(d.workers, r.RunnableID())
	}
	d.mu.Unlock()

	if ok {
		close(w.shutdown)
	}
}

func (d *ActiveObject) Notify(runnableID string) {
	d.mu.Lock()
	w, ok := d.workers[runnableID]
	d.mu.Unlock()
	if !ok {
		return
	}

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (d *ActiveObject) Start() {}

func (d *ActiveObject) Shutdown() {
	d.mu.Lock()
	workers := make([]*aoWorker, 0, len(d.workers))
	for _, w := range d.workers {
		workers = append(workers, w)
	}
	d.workers = make(map[string]*aoWorker)
	d.mu.Unlock()

	for _, w := range workers {
		close(w.shutdown)
	}
}

// Wait blocks until every worker goroutine this dispatcher has ever
// started (bound agents shut down individually via Unbind, or the whole
// dispatcher via Shutdown) has actually exited.
func (d *ActiveObject) Wait() {
	d.wg.Wait()
}

func (d *ActiveObject) runWorker(w *aoWorker) {
	defer d.wg.Done()
	for {
		select {
		case <-w.shutdown:
			return
		case <-w.wake:
		}

		for {
			timer := metrics.NewTimer()
			executed := w.r.TryExecOne()
			timer.ObserveDurationVec(metrics.EventHandlingDuration, "active_object")
			metrics.DispatcherScheduled.WithLabelValues("active_object", "active_object").Inc()
			if !executed {
				break
			}
			select {
			case <-w.shutdown:
				return
			default:
			}
		}
	}
}
