/*
Package event defines the wire-level vocabulary shared by every other
package in the runtime: the stable type-tag assigned to each application
payload type (so subscriber lists can be keyed on an integer instead of a
reflect.Type comparison on every delivery), the Message envelope a
mailbox carries, and the Record a dispatcher eventually hands to an
agent's handler.

Keeping these types in their own leaf package — rather than folding them
into mailbox or agent — avoids an import cycle: both the mailbox (which
builds Records when it delivers) and the agent (which executes Records
popped from its queue) need the same vocabulary without depending on
each other.
*/
package event
