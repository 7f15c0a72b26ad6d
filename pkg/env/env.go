package env

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/agency/pkg/agent"
	"github.com/cuemby/agency/pkg/coop"
	"github.com/cuemby/agency/pkg/dispatch"
	"github.com/cuemby/agency/pkg/errs"
	"github.com/cuemby/agency/pkg/log"
	"github.com/cuemby/agency/pkg/mailbox"
	"github.com/cuemby/agency/pkg/metrics"
	"github.com/cuemby/agency/pkg/registry"
	"github.com/rs/zerolog"
)

// Params configures an Environment: named dispatchers it owns, the
// reaction a cooperation or agent falls back to when its own policy is
// ReactionInherit, and whether message tracing is on. Metrics are always
// collected; MessageTracing with a non-empty MetricsAddr serves them on a
// /metrics scrape endpoint.
type Params struct {
	NamedDispatchers         map[string]dispatch.Dispatcher
	DefaultExceptionReaction agent.ExceptionReaction
	MessageTracing           bool
	MetricsAddr              string // only used if MessageTracing is true and non-empty
}

// Environment owns every dispatcher, the named-mailbox registry, and the
// cooperation registry for one running instance of the kernel.
type Environment struct {
	mu          sync.Mutex
	mailboxes   *mailbox.Registry
	dispatchers map[string]dispatch.Dispatcher
	registry    *registry.Registry
	defaultReact agent.ExceptionReaction

	metricsSrv *http.Server

	deregistering int32 // set once Shutdown begins; checked by RegisterCoop

	shutdownOnce sync.Once
	shutdownCh   chan struct{}

	logger zerolog.Logger
}

// New constructs an environment from params. Every named dispatcher is
// started immediately; the cooperation registry's final-dereg worker is
// started by registry.New.
func New(params Params) *Environment {
	reaction := params.DefaultExceptionReaction
	if reaction == agent.ReactionInherit {
		reaction = agent.ReactionIgnore
	}

	e := &Environment{
		mailboxes:    mailbox.NewRegistry(),
		dispatchers:  make(map[string]dispatch.Dispatcher),
		registry:     registry.New(),
		defaultReact: reaction,
		shutdownCh:   make(chan struct{}),
		logger:       log.WithComponent("env"),
	}

	for name, d := range params.NamedDispatchers {
		d.Start()
		e.dispatchers[name] = d
	}

	if params.MessageTracing && params.MetricsAddr != "" {
		e.startMetricsServer(params.MetricsAddr)
	}

	return e
}

func (e *Environment) startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	e.metricsSrv = srv

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.logger.Error().Err(err).Msg("metrics server stopped unexpectedly")
		}
	}()
}

// Mailboxes returns the named-mailbox registry, for CreateNamed/Lookup.
func (e *Environment) Mailboxes() *mailbox.Registry { return e.mailboxes }

// Dispatcher looks up a named dispatcher registered via Params.
func (e *Environment) Dispatcher(name string) (dispatch.Dispatcher, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.dispatchers[name]
	return d, ok
}

// NewAgent constructs an agent owned by this environment.
func (e *Environment) NewAgent(id string, opts ...agent.Option) *agent.Agent {
	return agent.New(id, e, opts...)
}

// RegisterCoop registers c with the environment's cooperation registry.
// Fails with errs.ShuttingDown once Shutdown has begun: a cooperation
// registered mid-shutdown would never be torn down, since DeregisterAll
// only walks the registry once.
func (e *Environment) RegisterCoop(c *coop.Cooperation) error {
	if atomic.LoadInt32(&e.deregistering) == 1 {
		return errs.New(errs.ShuttingDown, c.Name)
	}
	return e.registry.RegisterCoop(c)
}

// RegisterAgentAsCoop wraps a single agent in a one-member cooperation
// bound to d and registers it, returning the synthesized cooperation.
func (e *Environment) RegisterAgentAsCoop(name string, a *agent.Agent, d dispatch.Dispatcher) (*coop.Cooperation, error) {
	c := coop.New(name, coop.BindTo(d))
	c.AddAgent(a, nil)
	if err := e.RegisterCoop(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ParentOf returns the cooperation registered as name's parent, for a
// member agent that needs to address its own parent directly.
func (e *Environment) ParentOf(name string) (*coop.Cooperation, error) {
	return e.registry.ParentOf(name)
}

// DeregisterCoop implements agent.Environment and is also the public
// entry point a scenario calls directly.
func (e *Environment) DeregisterCoop(name, reason string) {
	if err := e.registry.DeregisterCoop(name, reason); err != nil {
		e.logger.Warn().Err(err).Str("coop", name).Msg("deregister_coop failed")
	}
}

// DefaultExceptionReaction implements agent.Environment.
func (e *Environment) DefaultExceptionReaction() agent.ExceptionReaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.defaultReact
}

// CoopExceptionReaction implements agent.Environment: it resolves to the
// named cooperation's own policy, if that cooperation still exists and
// its policy isn't itself ReactionInherit.
func (e *Environment) CoopExceptionReaction(coopName string) (agent.ExceptionReaction, bool) {
	c, ok := e.registry.Lookup(coopName)
	if !ok {
		return agent.ReactionInherit, false
	}
	r := c.ExceptionReaction()
	return r, r != agent.ReactionInherit
}

// Shutdown implements agent.Environment: it deregisters every top-level
// cooperation and unblocks Launch. Safe to call more than once or
// concurrently; only the first call has any effect.
func (e *Environment) Shutdown() {
	e.shutdownOnce.Do(func() {
		atomic.StoreInt32(&e.deregistering, 1)
		e.registry.DeregisterAll("environment_shutdown")
		close(e.shutdownCh)
	})
}

// WaitUntilDrained blocks until every cooperation has finished
// deregistering, or timeout elapses.
func (e *Environment) WaitUntilDrained(timeout time.Duration) bool {
	return e.registry.WaitUntilDrained(timeout)
}

func (e *Environment) stop() {
	if e.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = e.metricsSrv.Shutdown(ctx)
	}
	e.registry.Stop()

	e.mu.Lock()
	dispatchers := make([]dispatch.Dispatcher, 0, len(e.dispatchers))
	for _, d := range e.dispatchers {
		dispatchers = append(dispatchers, d)
	}
	e.mu.Unlock()

	for _, d := range dispatchers {
		d.Shutdown()
	}
	for _, d := range dispatchers {
		d.Wait()
	}
}

// Launch runs initFn(env) on a framework-managed goroutine, then blocks
// until Shutdown is called. Deregistering every cooperation does not by
// itself end the wait. Returns a process-style status: 0 on
// a clean stop, 1 if initFn returned or panicked with an error.
func Launch(initFn func(*Environment) error, params Params) int {
	e := New(params)

	initErr := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				initErr <- fmt.Errorf("panic in init_fn: %v", r)
			}
		}()
		initErr <- initFn(e)
	}()

	select {
	case err := <-initErr:
		if err != nil {
			e.logger.Error().Err(err).Msg("init_fn failed")
			e.stop()
			return 1
		}
	case <-e.shutdownCh:
		e.stop()
		return 0
	}

	<-e.shutdownCh
	e.stop()
	return 0
}
