package registry

import (
	"sync"
	"time"

	"github.com/cuemby/agency/pkg/agent"
	"github.com/cuemby/agency/pkg/coop"
	"github.com/cuemby/agency/pkg/errs"
	"github.com/cuemby/agency/pkg/log"
	"github.com/rs/zerolog"
)

type finalDeregItem struct {
	coop   *coop.Cooperation
	reason string
}

// Registry is the environment-wide cooperation registry.
type Registry struct {
	mu           sync.Mutex
	registered   map[string]*coop.Cooperation
	deregistered map[string]*coop.Cooperation
	parentChild  map[string][]string

	finalDereg chan finalDeregItem
	wg         sync.WaitGroup
	logger     zerolog.Logger
}

// New creates an empty registry and starts its single final-dereg
// worker goroutine.
func New() *Registry {
	r := &Registry{
		registered:   make(map[string]*coop.Cooperation),
		deregistered: make(map[string]*coop.Cooperation),
		parentChild:  make(map[string][]string),
		finalDereg:   make(chan finalDeregItem, 64),
		logger:       log.WithComponent("registry"),
	}
	r.wg.Add(1)
	go r.finalDeregWorker()
	return r
}

// RegisterCoop registers c: validates its name and parent, defines and
// binds every member agent in order, and on success schedules each
// agent's on_start. Any failure along the way reverse-unbinds already
// bound agents, tears down already defined agents' subscriptions, and
// leaves the registry exactly as it was before the call.
func (r *Registry) RegisterCoop(c *coop.Cooperation) error {
	parent := c.ParentName()

	r.mu.Lock()
	if _, exists := r.registered[c.Name]; exists {
		r.mu.Unlock()
		return errs.New(errs.DuplicateCoopName, c.Name)
	}
	if parent != "" {
		if _, ok := r.registered[parent]; !ok {
			if _, deregistering := r.deregistered[parent]; deregistering {
				r.mu.Unlock()
				return errs.New(errs.ParentStoppedAcceptingChildren, parent)
			}
			r.mu.Unlock()
			return errs.New(errs.ParentCoopNotFound, parent)
		}
	}
	r.registered[c.Name] = c
	if parent != "" {
		r.parentChild[parent] = append(r.parentChild[parent], c.Name)
	}
	r.mu.Unlock()

	c.SetPhase(coop.PhaseRegistering)
	c.InitUsage()

	var defined, bound []*agent.Agent
	for _, a := range c.Agents() {
		if err := a.RunDefine(); err != nil {
			r.abortRegistration(c, parent, defined, bound)
			return errs.Wrap(errs.RegistrationFailed, "define failed for "+a.ID(), err)
		}
		defined = append(defined, a)

		binder, ok := c.BinderFor(a)
		if !ok || binder == nil {
			r.abortRegistration(c, parent, defined, bound)
			return errs.New(errs.BindFailed, "no binder configured for "+a.ID())
		}
		if err := binder(a); err != nil {
			r.abortRegistration(c, parent, defined, bound)
			return errs.Wrap(errs.BindFailed, a.ID(), err)
		}
		bound = append(bound, a)

		a.SetCoop(c.Name)
		c.IncUsage()
	}

	c.SetPhase(coop.PhaseActive)
	c.FireRegNotificators()

	for _, a := range bound {
		a.ScheduleStart()
	}
	return nil
}

func (r *Registry) abortRegistration(c *coop.Cooperation, parent string, defined, bound []*agent.Agent) {
	for i := len(bound) - 1; i >= 0; i-- {
		bound[i].UnbindDispatcher()
	}
	for i := len(defined) - 1; i >= 0; i-- {
		defined[i].TeardownSubscriptions()
	}

	r.mu.Lock()
	delete(r.registered, c.Name)
	if parent != "" {
		r.parentChild[parent] = removeString(r.parentChild[parent], c.Name)
	}
	r.mu.Unlock()
}

// DeregisterCoop begins deregistering the cooperation named name and
// every transitive child it has, for reason. Phase A (this call) is
// synchronous and registry-locked; Phase B runs asynchronously as each
// affected agent's queue drains.
func (r *Registry) DeregisterCoop(name, reason string) error {
	r.mu.Lock()
	if _, ok := r.registered[name]; !ok {
		r.mu.Unlock()
		return errs.New(errs.CoopNotFound, name)
	}

	ids := r.collectTransitiveChildren(name)
	affected := make([]*coop.Cooperation, 0, len(ids))
	for _, id := range ids {
		cc, ok := r.registered[id]
		if !ok {
			continue // already deregistering via another path
		}
		delete(r.registered, id)
		r.deregistered[id] = cc
		affected = append(affected, cc)
	}
	r.mu.Unlock()

	for _, cc := range affected {
		cc.SetPhase(coop.PhaseDeregistering)
		for _, a := range cc.Agents() {
			a.MarkCoopDeregistering()
		}
	}

	for _, cc := range affected {
		r.releaseRegistrationHold(cc, reason)
		r.drainCoop(cc, reason)
	}
	return nil
}

// releaseRegistrationHold releases the +1 InitUsage put on cc's usage
// counter at registration time. A coop with zero member agents reaches
// zero usage here rather than in drainCoop, since drainCoop has nothing
// to decrement for it.
func (r *Registry) releaseRegistrationHold(cc *coop.Cooperation, reason string) {
	if cc.DecUsage() == 0 {
		cc.SetPhase(coop.PhaseAwaitingFinal)
		r.finalDereg <- finalDeregItem{coop: cc, reason: reason}
	}
}

// DeregisterAll deregisters every top-level cooperation currently
// registered, for reason — used by Environment.Shutdown.
func (r *Registry) DeregisterAll(reason string) {
	r.mu.Lock()
	names := make([]string, 0, len(r.registered))
	for name, c := range r.registered {
		if c.ParentName() == "" {
			names = append(names, name)
		}
	}
	r.mu.Unlock()

	for _, name := range names {
		_ = r.DeregisterCoop(name, reason)
	}
}

// collectTransitiveChildren returns name plus every descendant reachable
// through parentChild, via BFS. Must be called with r.mu held.
func (r *Registry) collectTransitiveChildren(name string) []string {
	out := []string{name}
	queue := []string{name}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range r.parentChild[cur] {
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}

// drainCoop spawns one goroutine per member agent that waits for its
// queue to drain and on_finish to run, tears down its subscriptions, and
// decrements the cooperation's usage counter. The agent that observes
// the counter reach zero pushes the cooperation onto the final-dereg
// channel.
func (r *Registry) drainCoop(cc *coop.Cooperation, reason string) {
	for _, a := range cc.Agents() {
		go func(a *agent.Agent) {
			a.ScheduleFinish()
			<-a.Done()
			a.TeardownSubscriptions()

			if cc.DecUsage() == 0 {
				cc.SetPhase(coop.PhaseAwaitingFinal)
				r.finalDereg <- finalDeregItem{coop: cc, reason: reason}
			}
		}(a)
	}
}

// finalDeregWorker is the registry's single dedicated goroutine that
// drains the final-dereg channel: unbind, notify, release, and only
// then decrement the parent's usage counter.
func (r *Registry) finalDeregWorker() {
	defer r.wg.Done()
	for item := range r.finalDereg {
		cc := item.coop

		for _, a := range cc.Agents() {
			a.UnbindDispatcher()
		}
		cc.FireDeregNotificators(item.reason)
		cc.SetPhase(coop.PhaseDestroyed)

		r.mu.Lock()
		delete(r.deregistered, cc.Name)
		parentName := cc.ParentName()
		var parent *coop.Cooperation
		if parentName != "" {
			if p, ok := r.registered[parentName]; ok {
				parent = p
			} else if p, ok := r.deregistered[parentName]; ok {
				parent = p
			}
		}
		r.mu.Unlock()

		if parent != nil {
			parent.DecUsage()
		}

		r.logger.Debug().Str("coop", cc.Name).Msg("cooperation finally deregistered")
	}
}

// Stop closes the final-dereg channel and waits for its worker to exit.
// Only safe to call once no further deregistrations will be issued.
func (r *Registry) Stop() {
	close(r.finalDereg)
	r.wg.Wait()
}

// IsRegistered reports whether name is currently an active cooperation.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.registered[name]
	return ok
}

// Lookup returns the cooperation named name, whether it is currently
// active or mid-deregistration.
func (r *Registry) Lookup(name string) (*coop.Cooperation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.registered[name]; ok {
		return c, true
	}
	c, ok := r.deregistered[name]
	return c, ok
}

// ParentOf returns the cooperation registered as name's parent, for a
// member agent that needs to address its own parent directly (e.g. a
// sync request asking the parent to begin deregistration). Fails with
// errs.CoopNotFound if name itself isn't known, errs.CoopHasNoParent if
// name is top-level, or errs.ParentCoopNotFound if its parent's name is
// set but no longer resolves to any cooperation.
func (r *Registry) ParentOf(name string) (*coop.Cooperation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.registered[name]
	if !ok {
		c, ok = r.deregistered[name]
	}
	if !ok {
		return nil, errs.New(errs.CoopNotFound, name)
	}

	parent := c.ParentName()
	if parent == "" {
		return nil, errs.New(errs.CoopHasNoParent, name)
	}

	if p, ok := r.registered[parent]; ok {
		return p, nil
	}
	if p, ok := r.deregistered[parent]; ok {
		return p, nil
	}
	return nil, errs.New(errs.ParentCoopNotFound, parent)
}

// WaitUntilDrained blocks until every cooperation has finished
// deregistering (or timeout elapses), returning false on timeout.
func (r *Registry) WaitUntilDrained(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		drained := len(r.deregistered) == 0
		r.mu.Unlock()
		if drained {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.deregistered) == 0
}

func removeString(ss []string, target string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}
