package event

import (
	"fmt"
	"hash/fnv"
	"reflect"
	"sync"
)

// TypeTag is the stable identity assigned to a message payload type. It
// replaces a per-delivery reflect.Type comparison with a plain integer
// key on every subscriber-list lookup.
type TypeTag uint64

// Kind distinguishes the three message shapes the data model allows.
type Kind int

const (
	// KindPayload carries application data, shared by reference.
	KindPayload Kind = iota
	// KindSignal carries no payload, only its type-tag.
	KindSignal
	// KindSvcRequest carries a payload plus a reply slot (see pkg/svcrequest).
	KindSvcRequest
)

var tagRegistry = struct {
	sync.RWMutex
	byType map[reflect.Type]TypeTag
	names  map[TypeTag]string
}{
	byType: make(map[reflect.Type]TypeTag),
	names:  make(map[TypeTag]string),
}

// TagFor returns the stable TypeTag for T, registering it on first use.
// Two calls with the same Go type always return the same tag, including
// across goroutines and packages, because the assignment is derived from
// the type's name rather than insertion order.
func TagFor[T any]() TypeTag {
	var zero T
	rt := reflect.TypeOf(zero)
	return TagForType(rt)
}

// TagForType is the reflect.Type-based counterpart of TagFor, used where
// the payload's static type isn't known at the call site (signals whose
// Go type is an empty struct, or generic dispatch helpers).
func TagForType(rt reflect.Type) TypeTag {
	name := typeName(rt)

	tagRegistry.RLock()
	if tag, ok := tagRegistry.byType[rt]; ok {
		tagRegistry.RUnlock()
		return tag
	}
	tagRegistry.RUnlock()

	tagRegistry.Lock()
	defer tagRegistry.Unlock()
	if tag, ok := tagRegistry.byType[rt]; ok {
		return tag
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	tag := TypeTag(h.Sum64())

	tagRegistry.byType[rt] = tag
	tagRegistry.names[tag] = name
	return tag
}

// NameOf returns the registered type name for a tag, mostly for logging.
func NameOf(tag TypeTag) string {
	tagRegistry.RLock()
	defer tagRegistry.RUnlock()
	if name, ok := tagRegistry.names[tag]; ok {
		return name
	}
	return fmt.Sprintf("tag(%d)", tag)
}

func typeName(rt reflect.Type) string {
	if rt == nil {
		return "<nil>"
	}
	return rt.String()
}

// Message is the envelope a mailbox carries: a payload message, a
// signal, or a service-request (payload plus reply slot, attached via
// ReplySink by pkg/svcrequest). Messages are immutable once delivered
// unless Mutable is set, in which case the mailbox enforces a
// single-subscriber invariant to keep concurrent mutation impossible.
type Message struct {
	ID      string
	Tag     TypeTag
	Kind    Kind
	Payload any
	Mutable bool

	// ReplySink, when non-nil, is completed by the handler that accepts
	// this message as a service request (see pkg/svcrequest).
	ReplySink ReplySink
}

// ReplySink lets a handler complete a pending service request without
// pkg/mailbox needing to import pkg/svcrequest.
type ReplySink interface {
	Complete(result any, err error)
}

// HandlerFunc is a type-erased, downcasting handler: the subscription
// layer stores the payload's static type internally and performs the
// assertion before calling the user's typed callback.
type HandlerFunc func(msg *Message) (any, error)

// Candidate is one (state, handler) alternative considered for a single
// agent when a message is delivered: an agent may be subscribed to the
// same mailbox/type under several states, and to a deadletter fallback.
// Exactly one candidate — the one matching the agent's state at pop
// time, or failing that the deadletter one — is invoked.
type Candidate struct {
	StateName  string
	Deadletter bool
	Handler    HandlerFunc
}

// Record is a single pending invocation sitting in an agent's event
// queue: the message plus every handler alternative that might fire for
// this agent, resolved against the agent's current state when popped.
type Record struct {
	Msg        *Message
	MailboxID  string
	Candidates []Candidate
}
