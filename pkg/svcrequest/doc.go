/*
Package svcrequest implements the synchronous service-request protocol:
a client emulates a blocking call over the otherwise fully asynchronous
mailbox path by attaching a single-assignment Slot to
the message as its event.ReplySink, then blocking on WaitForever or
WaitFor until the handling agent completes it (or the wait times out).

Slot follows the same one-shot request/reply round trip as a
certificate-issuance call guarded by a context timeout (send request,
block, accept exactly one reply) generalized off gRPC: here the "send"
is mailbox.Box.Deliver rather than a network call, and the one-shot
completion signal is a closed channel instead of a context.
*/
package svcrequest
