package coop

import (
	"testing"

	"github.com/cuemby/agency/pkg/agent"
	"github.com/cuemby/agency/pkg/dispatch"
	"github.com/cuemby/agency/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookup struct {
	dispatchers map[string]dispatch.Dispatcher
}

func (f fakeLookup) Dispatcher(name string) (dispatch.Dispatcher, bool) {
	d, ok := f.dispatchers[name]
	return d, ok
}

type nilEnv struct{}

func (nilEnv) DefaultExceptionReaction() agent.ExceptionReaction { return agent.ReactionIgnore }
func (nilEnv) CoopExceptionReaction(string) (agent.ExceptionReaction, bool) {
	return agent.ReactionInherit, false
}
func (nilEnv) DeregisterCoop(string, string) {}
func (nilEnv) Shutdown()                     {}

func TestAddAgentPreservesOrder(t *testing.T) {
	c := New("coop-1", nil)
	a1 := agent.New("a1", nilEnv{})
	a2 := agent.New("a2", nilEnv{})
	a3 := agent.New("a3", nilEnv{})

	c.AddAgent(a1, nil)
	c.AddAgent(a2, nil)
	c.AddAgent(a3, nil)

	got := c.Agents()
	assert.Equal(t, []*agent.Agent{a1, a2, a3}, got)
}

func TestUsageCounterLifecycle(t *testing.T) {
	c := New("coop-2", nil)
	c.InitUsage()
	assert.Equal(t, int32(1), c.Usage())

	c.IncUsage()
	assert.Equal(t, int32(2), c.Usage())

	c.DecUsage()
	c.DecUsage()
	assert.Equal(t, int32(0), c.Usage())
}

func TestNotificatorsFire(t *testing.T) {
	c := New("coop-3", nil)

	var regFired bool
	var deregReason string
	c.AddRegNotificator(func(*Cooperation) { regFired = true })
	c.AddDeregNotificator(func(_ *Cooperation, reason string) { deregReason = reason })

	c.FireRegNotificators()
	c.FireDeregNotificators("unhandled_exception")

	assert.True(t, regFired)
	assert.Equal(t, "unhandled_exception", deregReason)
}

func TestBindToNamedResolvesByName(t *testing.T) {
	d := dispatch.NewOneThread("worker")
	d.Start()
	defer d.Shutdown()

	lookup := fakeLookup{dispatchers: map[string]dispatch.Dispatcher{"worker": d}}
	a := agent.New("a1", nilEnv{})

	require.NoError(t, BindToNamed(lookup, "worker")(a))
}

func TestBindToNamedUnknownNameFails(t *testing.T) {
	lookup := fakeLookup{dispatchers: map[string]dispatch.Dispatcher{}}
	a := agent.New("a1", nilEnv{})

	err := BindToNamed(lookup, "missing")(a)
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.UnknownDispatcher, kind)
}

func TestBinderForReturnsDefaultWhenNilSupplied(t *testing.T) {
	called := false
	defaultBinder := func(a *agent.Agent) error { called = true; return nil }

	c := New("coop-4", defaultBinder)
	a1 := agent.New("a1", nilEnv{})
	c.AddAgent(a1, nil)

	b, ok := c.BinderFor(a1)
	assert.True(t, ok)
	assert.NoError(t, b(a1))
	assert.True(t, called)
}
