package dispatch

import "github.com/cuemby/agency/pkg/errs"

// Runnable is the capability a dispatcher needs from an agent: a stable
// identity to key its internal bookkeeping on, and a way to ask it to
// execute at most one pending event. agent.Agent implements this;
// pkg/dispatch never imports pkg/agent, avoiding a cycle symmetric to
// the one pkg/mailbox avoids with mailbox.Subscriber.
type Runnable interface {
	RunnableID() string

	// TryExecOne pops and executes at most one pending event. It returns
	// true if an event was executed (the caller should assume more work
	// may be pending and reschedule), false if the queue was empty.
	TryExecOne() bool
}

// Dispatcher is the binding policy an agent is attached to. Bind fails
// with errs.BindFailed if r is already bound to this dispatcher.
type Dispatcher interface {
	Name() string

	Bind(r Runnable) error
	Unbind(r Runnable)

	// Notify wakes the dispatcher's scheduling loop for the named
	// runnable, used whenever that runnable's queue transitions from
	// empty to non-empty (mailbox.Box.Deliver calls this indirectly
	// through agent.Agent after queue.Push reports becameNonEmpty).
	Notify(runnableID string)

	Start()
	Shutdown()
	Wait()
}

func errAlreadyBound(dispatcherName, runnableID string) error {
	return errs.New(errs.BindFailed, dispatcherName+": "+runnableID+" already bound")
}

func errNotBound(dispatcherName, runnableID string) error {
	return errs.New(errs.BindFailed, dispatcherName+": "+runnableID+" not bound")
}
