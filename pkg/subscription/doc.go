/*
Package subscription tracks the set of (mailbox, type, state) triples one
agent has registered across any number of mailboxes. It sits above
pkg/mailbox rather than inside it: a Box only ever knows about the
subscriptions made against itself, but an agent's TeardownSubscriptions needs to
unwind every subscription it ever made, across every mailbox it ever
touched, in one call.

Table is not safe for concurrent calls from more than one goroutine at a
time; an agent.Agent only ever touches its own Table from the single
dispatcher thread currently running it, except for Teardown, which may
run from the registry's deregistration worker after the agent has
stopped executing events.
*/
package subscription
