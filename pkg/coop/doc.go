/*
Package coop implements the cooperation: an ordered group
of agents registered and deregistered as a unit, with a unique name, a
default dispatcher binder, an optional parent cooperation, registration
and deregistration notificator lists, an exception-reaction policy
agents inherit from when their own is ReactionInherit, and an atomic
usage counter that reaches zero only once every member agent has drained
its queue and run on_finish.

Cooperation itself does not touch the registry's maps or the dispatcher
bindings directly — pkg/registry owns that two-phase process. Building a
Cooperation only assembles the ordered agent list and the policies the
registry will apply when registering or deregistering it, rather than
mutating shared state inline.

A member's Binder is usually BindTo, closing over a dispatcher value the
caller already holds. BindToNamed instead resolves a dispatcher by name
against the environment at bind time, so a cooperation definition can be
reused against whichever concrete dispatcher an environment registered
under that name.
*/
package coop
