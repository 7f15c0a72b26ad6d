/*
Package state implements the named-state machine each agent owns: a
built-in default state created at agent construction, a current-state
pointer swapped atomically by ChangeState, and a list of listeners
notified on every committed transition.

Listeners only ever observe committed transitions — a transition that a
handler later aborts by throwing is never rolled back from the
listener's point of view, because the state pointer is only swapped (and
listeners only notified) after ownership has been verified; nothing here
speculatively applies a state before a handler has run.
*/
package state
