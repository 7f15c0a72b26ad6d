/*
Package env implements the top-level environment: the arena-style owner
of every dispatcher, the named-mailbox registry, and the cooperation
registry, plus the bootstrap entry point, Launch, a scenario calls to
bring the whole runtime up and block until it stops.

Environment satisfies agent.Environment without pkg/agent importing this
package: the dependency arrow points from env down to agent, coop,
registry, mailbox, and dispatch, never back up. This is an arena-style
ownership tree: env owns dispatchers and the registry, the registry owns
cooperations, a cooperation owns its agents, and back-references are the
agent's coop name string rather than a pointer into this package.
*/
package env
