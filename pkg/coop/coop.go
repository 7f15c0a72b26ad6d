package coop

import (
	"sync"
	"sync/atomic"

	"github.com/cuemby/agency/pkg/agent"
	"github.com/cuemby/agency/pkg/dispatch"
	"github.com/cuemby/agency/pkg/errs"
	"github.com/cuemby/agency/pkg/log"
	"github.com/cuemby/agency/pkg/metrics"
	"github.com/rs/zerolog"
)

// Binder attaches an agent to a dispatcher. The zero value of most
// binders is simply agent.Agent.BindDispatcher against a fixed
// dispatcher; Binder exists as its own type so a cooperation (or a
// single agent within it) can supply a custom one, e.g. to pick a
// dispatcher by name from the environment at bind time.
type Binder func(a *agent.Agent) error

// BindTo returns a Binder that attaches to the fixed dispatcher d.
func BindTo(d dispatch.Dispatcher) Binder {
	return func(a *agent.Agent) error { return a.BindDispatcher(d) }
}

// DispatcherLookup is the slice of env.Environment a name-based binder
// needs. pkg/env implements it; pkg/coop never imports pkg/env.
type DispatcherLookup interface {
	Dispatcher(name string) (dispatch.Dispatcher, bool)
}

// BindToNamed returns a Binder that resolves name against lookup at bind
// time rather than closing over a fixed dispatcher value, so a
// cooperation can be built before the dispatcher it names is wired up
// (the name must resolve by the time the cooperation is registered), and
// so the same cooperation definition can run against different
// named dispatchers in different environments. Fails with
// errs.UnknownDispatcher if name isn't registered in lookup.
func BindToNamed(lookup DispatcherLookup, name string) Binder {
	return func(a *agent.Agent) error {
		d, ok := lookup.Dispatcher(name)
		if !ok {
			return errs.New(errs.UnknownDispatcher, name)
		}
		return a.BindDispatcher(d)
	}
}

// Phase is a cooperation's position in its registration lifecycle.
type Phase string

const (
	PhaseBuilding      Phase = "building"
	PhaseRegistering   Phase = "registering"
	PhaseActive        Phase = "active"
	PhaseDeregistering Phase = "deregistering"
	PhaseAwaitingFinal Phase = "awaiting_final"
	PhaseDestroyed     Phase = "destroyed"
)

type member struct {
	agent  *agent.Agent
	binder Binder
}

// Cooperation is the unit of registration.
type Cooperation struct {
	Name string

	mu                sync.Mutex
	members           []member
	defaultBinder     Binder
	parentName        string
	regNotificators   []func(*Cooperation)
	deregNotificators []func(*Cooperation, string)
	reaction          agent.ExceptionReaction
	phase             Phase

	usage int32

	logger zerolog.Logger
}

// New creates an empty cooperation named name, whose agents bind through
// defaultBinder unless AddAgent supplies a more specific one.
func New(name string, defaultBinder Binder) *Cooperation {
	c := &Cooperation{
		Name:          name,
		defaultBinder: defaultBinder,
		phase:         PhaseBuilding,
		logger:        log.WithCoopName(name),
	}
	metrics.CoopsTotal.WithLabelValues(string(PhaseBuilding)).Inc()
	return c
}

// AddAgent appends a to this cooperation's ordered member list. A nil
// binder falls back to the cooperation's default binder.
func (c *Cooperation) AddAgent(a *agent.Agent, binder Binder) *Cooperation {
	c.mu.Lock()
	defer c.mu.Unlock()
	if binder == nil {
		binder = c.defaultBinder
	}
	c.members = append(c.members, member{agent: a, binder: binder})
	return c
}

// SetParentCoopName records the name of this cooperation's parent, whose
// usage counter this one's final deregistration will decrement.
func (c *Cooperation) SetParentCoopName(name string) *Cooperation {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.parentName = name
	return c
}

// ParentName returns the parent cooperation's name, or "" if this
// cooperation is top-level.
func (c *Cooperation) ParentName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.parentName
}

// AddRegNotificator registers a callback fired once registration
// completes successfully.
func (c *Cooperation) AddRegNotificator(fn func(*Cooperation)) *Cooperation {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regNotificators = append(c.regNotificators, fn)
	return c
}

// AddDeregNotificator registers a callback fired once this cooperation
// reaches final deregistration, with the reason that triggered it.
func (c *Cooperation) AddDeregNotificator(fn func(*Cooperation, string)) *Cooperation {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deregNotificators = append(c.deregNotificators, fn)
	return c
}

// SetExceptionReaction sets the policy agents in this cooperation
// inherit from when their own reaction is agent.ReactionInherit.
func (c *Cooperation) SetExceptionReaction(r agent.ExceptionReaction) *Cooperation {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reaction = r
	return c
}

// ExceptionReaction returns this cooperation's policy.
func (c *Cooperation) ExceptionReaction() agent.ExceptionReaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reaction
}

// Agents returns the ordered member list, snapshotted.
func (c *Cooperation) Agents() []*agent.Agent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*agent.Agent, len(c.members))
	for i, m := range c.members {
		out[i] = m.agent
	}
	return out
}

// BinderFor returns the binder configured for a, if a is a member.
func (c *Cooperation) BinderFor(a *agent.Agent) (Binder, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.members {
		if m.agent == a {
			return m.binder, true
		}
	}
	return nil, false
}

// SetPhase updates this cooperation's lifecycle phase and the
// corresponding metric.
func (c *Cooperation) SetPhase(p Phase) {
	c.mu.Lock()
	prev := c.phase
	c.phase = p
	c.mu.Unlock()

	metrics.CoopsTotal.WithLabelValues(string(prev)).Dec()
	metrics.CoopsTotal.WithLabelValues(string(p)).Inc()
	c.logger.Debug().Str("from", string(prev)).Str("to", string(p)).Msg("phase transition")
}

// Phase returns the current lifecycle phase.
func (c *Cooperation) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// InitUsage sets the usage counter to 1 at registration (released only
// once the registry marks this cooperation for final deregistration),
// then once per member agent (registry increments for each bound agent
// after InitUsage; each is released as that agent finishes draining).
func (c *Cooperation) InitUsage() {
	atomic.StoreInt32(&c.usage, 1)
	metrics.CoopUsageCount.WithLabelValues(c.Name).Set(1)
}

// IncUsage increments the usage counter, returning the new value.
func (c *Cooperation) IncUsage() int32 {
	v := atomic.AddInt32(&c.usage, 1)
	metrics.CoopUsageCount.WithLabelValues(c.Name).Set(float64(v))
	return v
}

// DecUsage decrements the usage counter, returning the new value.
func (c *Cooperation) DecUsage() int32 {
	v := atomic.AddInt32(&c.usage, -1)
	metrics.CoopUsageCount.WithLabelValues(c.Name).Set(float64(v))
	return v
}

// Usage returns the current usage counter value.
func (c *Cooperation) Usage() int32 { return atomic.LoadInt32(&c.usage) }

// FireRegNotificators runs every registered registration notificator.
func (c *Cooperation) FireRegNotificators() {
	c.mu.Lock()
	fns := append([]func(*Cooperation){}, c.regNotificators...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

// FireDeregNotificators runs every registered deregistration
// notificator with reason.
func (c *Cooperation) FireDeregNotificators(reason string) {
	c.mu.Lock()
	fns := append([]func(*Cooperation, string){}, c.deregNotificators...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(c, reason)
	}
}
