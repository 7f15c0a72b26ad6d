/*
Package queue implements the per-agent FIFO of pending event invocations.
A queue is bounded only by memory, guarded by a single mutex, and reports
the became-non-empty transition on Push so the owning agent can call its
dispatcher's Notify exactly once per transition instead of once per
delivery.
*/
package queue
