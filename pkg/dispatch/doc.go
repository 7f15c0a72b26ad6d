/*
Package dispatch implements the three binding policies an agent can be
bound to: one-thread (every bound agent shares a single worker goroutine,
serviced round-robin), active-object (every bound agent gets its own
dedicated worker goroutine), and active-group (agents sharing a group
name share one worker goroutine, created by the first
GroupRegistry.Acquire for that name and torn down once matching Release
calls bring its usage count back to zero).

All three guarantee that a dispatcher only ever runs at most one event
for a given agent at a time, because each worker goroutine calls
Runnable.TryExecOne at most once per pass before moving to the next
agent (or, for active-object, before re-checking its single agent), and
TryExecOne itself only ever pops and executes a single queue entry.

Each worker goroutine owns a channel it selects on, a shutdown channel it
watches alongside it, and a sync.WaitGroup the owner blocks on to know
every worker has actually exited. The channel is an edge-triggered
wakeup (Notify), so a dispatcher acts the instant an agent's queue
becomes non-empty rather than on a fixed polling interval.
*/
package dispatch
