package registry

import (
	"testing"
	"time"

	"github.com/cuemby/agency/pkg/agent"
	"github.com/cuemby/agency/pkg/coop"
	"github.com/cuemby/agency/pkg/dispatch"
	"github.com/cuemby/agency/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	defaultReact agent.ExceptionReaction
}

func (e testEnv) DefaultExceptionReaction() agent.ExceptionReaction { return e.defaultReact }
func (e testEnv) CoopExceptionReaction(string) (agent.ExceptionReaction, bool) {
	return agent.ReactionInherit, false
}
func (e testEnv) DeregisterCoop(string, string) {}
func (e testEnv) Shutdown()                     {}

func TestRegisterCoopRejectsDuplicateName(t *testing.T) {
	r := New()
	defer r.Stop()
	d := dispatch.NewOneThread("d1")
	d.Start()
	defer d.Shutdown()

	env := testEnv{}
	a := agent.New("a1", env)
	c := coop.New("coop-1", coop.BindTo(d))
	c.AddAgent(a, nil)
	require.NoError(t, r.RegisterCoop(c))

	c2 := coop.New("coop-1", coop.BindTo(d))
	c2.AddAgent(agent.New("a2", env), nil)
	err := r.RegisterCoop(c2)
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.DuplicateCoopName, kind)
}

func TestRegisterCoopUnknownParentFails(t *testing.T) {
	r := New()
	defer r.Stop()
	d := dispatch.NewOneThread("d2")
	d.Start()
	defer d.Shutdown()

	c := coop.New("child", coop.BindTo(d))
	c.SetParentCoopName("does-not-exist")
	c.AddAgent(agent.New("a1", testEnv{}), nil)

	err := r.RegisterCoop(c)
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.ParentCoopNotFound, kind)
}

func TestRegisterCoopRunsOnStart(t *testing.T) {
	r := New()
	defer r.Stop()
	d := dispatch.NewOneThread("d3")
	d.Start()
	defer d.Shutdown()

	started := make(chan struct{})
	a := agent.New("a1", testEnv{}, agent.WithOnStart(func(*agent.Agent) error {
		close(started)
		return nil
	}))
	c := coop.New("coop-3", coop.BindTo(d))
	c.AddAgent(a, nil)

	require.NoError(t, r.RegisterCoop(c))

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("on_start did not run after registration")
	}
}

func TestDeregisterCoopRunsOnFinishAndReleasesParentLast(t *testing.T) {
	r := New()
	defer r.Stop()
	d := dispatch.NewOneThread("d4")
	d.Start()
	defer d.Shutdown()

	var order []string
	parentFinished := make(chan struct{})
	childFinished := make(chan struct{})

	parentAgent := agent.New("parent-agent", testEnv{}, agent.WithOnFinish(func(*agent.Agent) error {
		order = append(order, "parent")
		close(parentFinished)
		return nil
	}))
	childAgent := agent.New("child-agent", testEnv{}, agent.WithOnFinish(func(*agent.Agent) error {
		order = append(order, "child")
		close(childFinished)
		return nil
	}))

	parentCoop := coop.New("parent", coop.BindTo(d))
	parentCoop.AddAgent(parentAgent, nil)
	require.NoError(t, r.RegisterCoop(parentCoop))

	childCoop := coop.New("child", coop.BindTo(d))
	childCoop.SetParentCoopName("parent")
	childCoop.AddAgent(childAgent, nil)
	require.NoError(t, r.RegisterCoop(childCoop))

	require.NoError(t, r.DeregisterCoop("parent", "test"))

	select {
	case <-childFinished:
	case <-time.After(time.Second):
		t.Fatal("child on_finish never ran")
	}
	select {
	case <-parentFinished:
	case <-time.After(time.Second):
		t.Fatal("parent on_finish never ran")
	}

	assert.True(t, r.WaitUntilDrained(time.Second))
	assert.False(t, r.IsRegistered("parent"))
	assert.False(t, r.IsRegistered("child"))
}

func TestDeregisterUnknownCoopFails(t *testing.T) {
	r := New()
	defer r.Stop()

	err := r.DeregisterCoop("ghost", "test")
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.CoopNotFound, kind)
}

func TestRegisterCoopRejectsChildOfDeregisteringParent(t *testing.T) {
	r := New()
	defer r.Stop()
	d := dispatch.NewOneThread("d5")
	d.Start()
	defer d.Shutdown()

	blockFinish := make(chan struct{})
	parentAgent := agent.New("parent-agent", testEnv{}, agent.WithOnFinish(func(*agent.Agent) error {
		<-blockFinish
		return nil
	}))
	parentCoop := coop.New("parent", coop.BindTo(d))
	parentCoop.AddAgent(parentAgent, nil)
	require.NoError(t, r.RegisterCoop(parentCoop))

	require.NoError(t, r.DeregisterCoop("parent", "test"))
	defer close(blockFinish)

	lateChild := coop.New("late-child", coop.BindTo(d))
	lateChild.SetParentCoopName("parent")
	lateChild.AddAgent(agent.New("late-agent", testEnv{}), nil)

	err := r.RegisterCoop(lateChild)
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.ParentStoppedAcceptingChildren, kind)
}

func TestParentOf(t *testing.T) {
	r := New()
	defer r.Stop()
	d := dispatch.NewOneThread("d6")
	d.Start()
	defer d.Shutdown()

	parentCoop := coop.New("parent", coop.BindTo(d))
	parentCoop.AddAgent(agent.New("parent-agent", testEnv{}), nil)
	require.NoError(t, r.RegisterCoop(parentCoop))

	childCoop := coop.New("child", coop.BindTo(d))
	childCoop.SetParentCoopName("parent")
	childCoop.AddAgent(agent.New("child-agent", testEnv{}), nil)
	require.NoError(t, r.RegisterCoop(childCoop))

	p, err := r.ParentOf("child")
	require.NoError(t, err)
	assert.Equal(t, "parent", p.Name)

	_, err = r.ParentOf("parent")
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.CoopHasNoParent, kind)

	_, err = r.ParentOf("ghost")
	require.Error(t, err)
	kind, ok = errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.CoopNotFound, kind)
}
