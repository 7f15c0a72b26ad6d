package agent

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cuemby/agency/pkg/dispatch"
	"github.com/cuemby/agency/pkg/event"
	"github.com/cuemby/agency/pkg/log"
	"github.com/cuemby/agency/pkg/mailbox"
	"github.com/cuemby/agency/pkg/metrics"
	"github.com/cuemby/agency/pkg/queue"
	"github.com/cuemby/agency/pkg/state"
	"github.com/cuemby/agency/pkg/subscription"
	"github.com/rs/zerolog"
)

// Environment is the slice of pkg/env.Environment an Agent needs at run
// time. pkg/env implements it; pkg/agent never imports pkg/env.
type Environment interface {
	DefaultExceptionReaction() ExceptionReaction
	CoopExceptionReaction(coopName string) (ExceptionReaction, bool)
	DeregisterCoop(name, reason string)
	Shutdown()
}

// Agent is the runtime entity the rest of the kernel dispatches events to.
type Agent struct {
	id  string
	env Environment

	state *state.Machine
	subs  *subscription.Table
	queue *queue.Queue

	defineFn   func(*Agent) error
	onStartFn  func(*Agent) error
	onFinishFn func(*Agent) error

	mu         sync.Mutex
	dispatcher dispatch.Dispatcher
	directBox  *mailbox.Box
	coopName   string

	reactionSet bool
	reaction    ExceptionReaction

	coopDeregInProgress int32
	pendingStart        int32
	pendingFinish       int32
	finished            int32
	finishedCh          chan struct{}

	logger zerolog.Logger
}

// Option configures an Agent at construction time.
type Option func(*Agent)

// WithDefine installs the user override invoked once, before any event,
// during cooperation registration.
func WithDefine(fn func(*Agent) error) Option { return func(a *Agent) { a.defineFn = fn } }

// WithOnStart installs the user override invoked as the agent's first
// scheduled event, once its dispatcher is bound.
func WithOnStart(fn func(*Agent) error) Option { return func(a *Agent) { a.onStartFn = fn } }

// WithOnFinish installs the user override invoked as the agent's last
// scheduled event, once its queue has drained during deregistration.
func WithOnFinish(fn func(*Agent) error) Option { return func(a *Agent) { a.onFinishFn = fn } }

// WithExceptionReaction sets the agent's own reaction policy, overriding
// whatever its cooperation or environment would otherwise supply.
func WithExceptionReaction(r ExceptionReaction) Option {
	return func(a *Agent) { a.reactionSet = true; a.reaction = r }
}

// New constructs an agent with the given stable id, owned by env.
func New(id string, env Environment, opts ...Option) *Agent {
	a := &Agent{
		id:    id,
		env:   env,
		state: state.NewMachine(id),
		subs:  subscription.New(),
		queue:      queue.New(),
		finishedCh: make(chan struct{}),
		logger:     log.WithAgentID(id).With().Str("component", "agent").Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ID returns the agent's stable identity.
func (a *Agent) ID() string { return a.id }

// RunnableID implements dispatch.Runnable.
func (a *Agent) RunnableID() string { return a.id }

// AgentID implements mailbox.Subscriber.
func (a *Agent) AgentID() string { return a.id }

// State returns the agent's state machine, for Declare/Current calls.
func (a *Agent) State() *state.Machine { return a.state }

// ChangeState verifies target is owned by this agent and commits the
// transition, routing any panicking listener through the exception
// reaction rather than letting it escape.
func (a *Agent) ChangeState(target state.State) (err error) {
	defer func() {
		if r := recover(); r != nil {
			a.handleException(fmt.Errorf("panic in state listener: %v", r))
		}
	}()
	err = a.state.Change(target)
	return err
}

// DirectMbox lazily constructs this agent's single-consumer mailbox.
func (a *Agent) DirectMbox() *mailbox.Box {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.directBox == nil {
		a.directBox = mailbox.NewDirect(a.id)
	}
	return a.directBox
}

// SetExceptionReaction overrides this agent's own reaction policy.
func (a *Agent) SetExceptionReaction(r ExceptionReaction) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reactionSet = true
	a.reaction = r
}

// ExceptionReaction returns this agent's own policy, or ReactionInherit
// if none was set.
func (a *Agent) ExceptionReaction() ExceptionReaction {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.reactionSet {
		return a.reaction
	}
	return ReactionInherit
}

// SetCoop records the cooperation this agent belongs to, for exception
// reaction inheritance and deregistration routing.
func (a *Agent) SetCoop(coopName string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.coopName = coopName
}

// CoopName returns the owning cooperation's name.
func (a *Agent) CoopName() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.coopName
}

// MarkCoopDeregistering flags that Phase A of this agent's cooperation's
// two-phase deregistration has run.
func (a *Agent) MarkCoopDeregistering() { atomic.StoreInt32(&a.coopDeregInProgress, 1) }

// CoopDeregistering reports whether MarkCoopDeregistering has run.
func (a *Agent) CoopDeregistering() bool { return atomic.LoadInt32(&a.coopDeregInProgress) == 1 }

// BindDispatcher binds the agent to d for its entire remaining lifetime.
func (a *Agent) BindDispatcher(d dispatch.Dispatcher) error {
	if err := d.Bind(a); err != nil {
		return err
	}
	a.mu.Lock()
	a.dispatcher = d
	a.mu.Unlock()
	return nil
}

// UnbindDispatcher releases the agent from its dispatcher. Called only
// once the agent's queue has drained and on_finish has run.
func (a *Agent) UnbindDispatcher() {
	a.mu.Lock()
	d := a.dispatcher
	a.mu.Unlock()
	if d != nil {
		d.Unbind(a)
	}
}

func (a *Agent) notify() {
	a.mu.Lock()
	d := a.dispatcher
	a.mu.Unlock()
	if d != nil {
		d.Notify(a.id)
	}
}

// ScheduleStart arranges for on_start to run as this agent's first
// executed event.
func (a *Agent) ScheduleStart() {
	atomic.StoreInt32(&a.pendingStart, 1)
	a.notify()
}

// ScheduleFinish arranges for on_finish to run once every event queued
// ahead of it has been executed.
func (a *Agent) ScheduleFinish() {
	atomic.StoreInt32(&a.pendingFinish, 1)
	a.notify()
}

// Finished reports whether on_finish has already run.
func (a *Agent) Finished() bool { return atomic.LoadInt32(&a.finished) == 1 }

// Done returns a channel closed once on_finish has run, for callers
// (the registry's deregistration worker) that need to wait for it
// without polling.
func (a *Agent) Done() <-chan struct{} { return a.finishedCh }

// TeardownSubscriptions removes every subscription this agent ever made,
// across every mailbox it ever touched.
func (a *Agent) TeardownSubscriptions() { a.subs.Teardown(a.id) }

// RunDefine invokes the user's define override, synchronously, on the
// registry's calling thread (not the agent's dispatcher). A non-nil
// error aborts cooperation registration before any side effect.
func (a *Agent) RunDefine() error {
	if a.defineFn == nil {
		return nil
	}
	return a.defineFn(a)
}

// Accept implements mailbox.Subscriber: enqueue the resolved record and
// wake the dispatcher exactly once per empty-to-non-empty transition.
func (a *Agent) Accept(rec event.Record) {
	becameNonEmpty := a.queue.Push(rec)
	metrics.EventQueueDepth.WithLabelValues(a.id).Set(float64(a.queue.Len()))
	if becameNonEmpty {
		a.notify()
	}
}

// TryExecOne implements dispatch.Runnable. It runs, in priority order,
// a pending on_start, then one queued event, then (once the queue is
// drained) a pending on_finish, so on_finish only ever fires after every
// queued event has been handled.
func (a *Agent) TryExecOne() bool {
	if atomic.CompareAndSwapInt32(&a.pendingStart, 1, 0) {
		a.runLifecycle(a.onStartFn, "on_start")
		return true
	}

	if rec, ok := a.queue.Pop(); ok {
		metrics.EventQueueDepth.WithLabelValues(a.id).Set(float64(a.queue.Len()))
		a.dispatchRecord(rec)
		return true
	}

	if atomic.CompareAndSwapInt32(&a.pendingFinish, 1, 0) {
		a.runLifecycle(a.onFinishFn, "on_finish")
		atomic.StoreInt32(&a.finished, 1)
		close(a.finishedCh)
		return true
	}

	return false
}

func (a *Agent) runLifecycle(fn func(*Agent) error, label string) {
	if fn == nil {
		return
	}
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic in %s: %v", label, r)
			}
		}()
		return fn(a)
	}()
	if err != nil {
		a.logger.Error().Err(err).Str("hook", label).Msg("lifecycle hook failed")
		a.handleException(err)
	}
}

// dispatchRecord resolves the candidate matching the agent's current
// state (or, failing that, a deadletter fallback), invokes it, completes
// any attached service-request reply slot, and routes a handler
// exception through the agent's reaction policy.
func (a *Agent) dispatchRecord(rec event.Record) {
	current := a.state.Current().Name

	var chosen, deadletter *event.Candidate
	for i := range rec.Candidates {
		c := &rec.Candidates[i]
		if c.Deadletter {
			deadletter = c
			continue
		}
		if c.StateName == current {
			chosen = c
			break
		}
	}
	if chosen == nil {
		chosen = deadletter
	}
	if chosen == nil {
		return // silently dropped: no state-scoped match and no deadletter fallback
	}
	if chosen.Deadletter {
		metrics.DeadlettersTotal.WithLabelValues(rec.MailboxID).Inc()
	}

	result, err := a.invokeHandler(chosen.Handler, rec.Msg)
	if rec.Msg.ReplySink != nil {
		rec.Msg.ReplySink.Complete(result, err)
	}
	if err != nil {
		a.handleException(err)
	}
}

func (a *Agent) invokeHandler(h event.HandlerFunc, msg *event.Message) (result any, err error) {
	if h == nil {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in handler: %v", r)
		}
	}()
	return h(msg)
}

// handleException resolves the applicable reaction (this agent's own,
// else its cooperation's, else the environment's default) and applies
// it.
func (a *Agent) handleException(cause error) {
	reaction := a.ExceptionReaction()
	if reaction == ReactionInherit {
		if r, ok := a.env.CoopExceptionReaction(a.CoopName()); ok {
			reaction = r
		}
	}
	if reaction == ReactionInherit {
		reaction = a.env.DefaultExceptionReaction()
	}

	metrics.ExceptionReactionsTotal.WithLabelValues(reaction.String()).Inc()

	switch reaction {
	case ReactionAbortProcess:
		a.logger.Fatal().Err(cause).Str("agent", a.id).Msg("unhandled exception, aborting process")
	case ReactionShutdownEnvironment:
		a.logger.Error().Err(cause).Str("agent", a.id).Msg("unhandled exception, shutting down environment")
		a.env.Shutdown()
	case ReactionDeregisterCoop:
		a.logger.Error().Err(cause).Str("agent", a.id).Str("coop", a.CoopName()).Msg("unhandled exception, deregistering coop")
		a.env.DeregisterCoop(a.CoopName(), "unhandled_exception")
	case ReactionIgnore:
		a.logger.Warn().Err(cause).Str("agent", a.id).Msg("ignoring exception")
	}
}
