/*
Package registry implements the environment-wide cooperation registry:
the single control-plane owner of which cooperations are registered,
which are deregistered but still draining, and the parent/child
relationships between them.

The registry's three maps (registered, deregistered, parentChild) are
guarded by a single mutex, kept as a plain in-memory, non-persistent set
of maps since distribution across processes and message persistence are
both out of scope here.

Deregistration runs in two phases:

  - Phase A (RegisterCoop's mirror, DeregisterCoop's first half) is
    synchronous and registry-locked: it walks parentChild by BFS to
    collect the coop and every transitive child, moves them from
    registered to deregistered, and marks every member agent's
    coop-deregistering flag. Any failure here is treated as fatal,
    since a half-moved registry is unrecoverable state.
  - Phase B is asynchronous: each affected coop's agents keep running
    until their queues drain, then run on_finish, tear down their
    subscriptions, and decrement their coop's usage counter. Once a
    coop's usage counter reaches zero it is pushed onto the registry's
    final-dereg channel; a single dedicated goroutine drains that
    channel, unbinding each agent from its dispatcher, firing
    deregistration notificators, and only then decrementing the
    parent's usage counter — so a parent is never finally deregistered
    before its children are.
*/
package registry
