/*
Package agent implements the runtime entity that ties
together a state machine (pkg/state), a subscription table
(pkg/subscription), an event queue (pkg/queue), and a binding to exactly
one dispatcher (pkg/dispatch) for its entire lifetime.

Agent does not use interface embedding for the three user-override hooks
(define, on_start, on_finish) the way an object-oriented runtime would;
instead New takes functional options (WithDefine, WithOnStart,
WithOnFinish) that install plain closures. A scenario wires its logic by
passing these options rather than subclassing Agent.

Agent implements both mailbox.Subscriber (so a Box can hand it resolved
event.Record values) and dispatch.Runnable (so a Dispatcher can ask it to
execute one pending event) without importing either package's concrete
type — only the narrow interfaces those packages export, keeping the
dependency arrows pointing one way: mailbox and dispatch do not know this
package exists.

Environment is the narrow slice of pkg/env.Environment an agent needs:
looking up the exception reaction to inherit, asking for a coop
deregistration, or asking for a full environment shutdown. Declaring it
here instead of importing pkg/env avoids the cycle env already has
(pkg/env constructs and owns Agents).
*/
package agent
