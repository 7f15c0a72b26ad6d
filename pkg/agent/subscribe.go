package agent

import (
	"github.com/cuemby/agency/pkg/event"
	"github.com/cuemby/agency/pkg/mailbox"
	"github.com/cuemby/agency/pkg/state"
)

// SubscribeBuilder accumulates the (mailbox, state, deadletter) part of
// a subscription before Event installs the typed handler. Go methods
// cannot carry their own type parameters, so the final step is the
// package-level generic function Event, not a builder method.
type SubscribeBuilder struct {
	agent      *Agent
	box        *mailbox.Box
	stateName  string
	deadletter bool
}

// Subscribe starts a fluent subscription against box, defaulting to the
// agent's default state until In or InDeadletter narrows it.
func (a *Agent) Subscribe(box *mailbox.Box) *SubscribeBuilder {
	return &SubscribeBuilder{agent: a, box: box, stateName: state.Default}
}

// In scopes the subscription to fire only while the agent is in s.
func (b *SubscribeBuilder) In(s state.State) *SubscribeBuilder {
	b.stateName = s.Name
	b.deadletter = false
	return b
}

// InDeadletter marks this subscription as the fallback fired when no
// state-scoped candidate matches the agent's current state.
func (b *SubscribeBuilder) InDeadletter() *SubscribeBuilder {
	b.deadletter = true
	b.stateName = ""
	return b
}

// Event completes a subscription of the builder's configuration for
// message type T, installing handler as the typed callback. Returns
// errs.DuplicateSubscription if this exact (mailbox, type, state,
// deadletter) quadruple is already registered, or
// errs.MutableMsgViolation if box already sealed type T against further
// subscription.
func Event[T any](b *SubscribeBuilder, handler func(T) error) error {
	tag := event.TagFor[T]()
	wrapped := func(msg *event.Message) (any, error) {
		payload, _ := msg.Payload.(T)
		return nil, handler(payload)
	}
	return b.agent.subs.Add(b.box, tag, b.agent, b.stateName, b.deadletter, wrapped)
}

// EventWithReply is Event for a handler that produces a result, for use
// with service-request mailboxes (pkg/svcrequest completes the
// requester's slot with whatever this handler returns).
func EventWithReply[T, R any](b *SubscribeBuilder, handler func(T) (R, error)) error {
	tag := event.TagFor[T]()
	wrapped := func(msg *event.Message) (any, error) {
		payload, _ := msg.Payload.(T)
		return handler(payload)
	}
	return b.agent.subs.Add(b.box, tag, b.agent, b.stateName, b.deadletter, wrapped)
}

// Unsubscribe removes a previously installed subscription for message
// type T from box under the given state (or the deadletter fallback, if
// deadletter is true). A no-op if no such subscription is tracked.
func Unsubscribe[T any](a *Agent, box *mailbox.Box, stateName string, deadletter bool) {
	tag := event.TagFor[T]()
	a.subs.Remove(box, tag, stateName, deadletter, a.id)
}
