/*
Package mailbox implements the typed publish/subscribe endpoint agents
send through. Subscriber lists are keyed on the stable type tags defined
in pkg/event.

A Box is either direct (one implicit subscriber: the agent that owns it,
lazily created by agent.Agent.DirectMbox) or multi (any number of
subscribers, reached by name through the package-level Registry so
unrelated agents can rendezvous on it). Both share one implementation:
a direct mailbox starts with no subscriptions, accepts any number of
subscriptions from its owning agent, and rejects a subscribe from any
other agent.

Concurrency follows a single RWMutex guarding a subscriber map, released
before any cross-goroutine handoff: Deliver walks the per-type subscriber
list under the lock, builds one event.Record per distinct target agent,
releases the lock, and only then calls Subscriber.Accept — so a slow or
blocked agent can never hold up another sender's delivery.
*/
package mailbox
