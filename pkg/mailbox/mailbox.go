package mailbox

import (
	"sync"

	"github.com/cuemby/agency/pkg/errs"
	"github.com/cuemby/agency/pkg/event"
	"github.com/cuemby/agency/pkg/log"
	"github.com/cuemby/agency/pkg/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Subscriber is the minimal capability a mailbox needs from an agent: a
// stable identity and a way to hand it a resolved event record. Agent
// implements this; the mailbox package never imports pkg/agent, which
// avoids a cycle between the two.
type Subscriber interface {
	AgentID() string
	Accept(rec event.Record)
}

type subscriberEntry struct {
	agentID    string
	sub        Subscriber
	stateName  string
	deadletter bool
	handler    event.HandlerFunc
}

type tagState struct {
	delivered bool
}

// Box is a mailbox: a named or system-assigned endpoint holding, per
// message type, an ordered list of subscriber entries.
type Box struct {
	ID   string
	Name string // empty for unnamed/direct mailboxes

	direct      bool
	directAgent string

	mu        sync.RWMutex
	subsByTag map[event.TypeTag][]subscriberEntry
	tagStates map[event.TypeTag]*tagState

	logger zerolog.Logger
}

func newBox(name string) *Box {
	id := uuid.NewString()
	return &Box{
		ID:        id,
		Name:      name,
		subsByTag: make(map[event.TypeTag][]subscriberEntry),
		tagStates: make(map[event.TypeTag]*tagState),
		logger:    log.WithMailboxID(id),
	}
}

// NewLocal creates an unnamed, system-assigned mailbox.
func NewLocal() *Box {
	return newBox("")
}

// NewDirect creates a mailbox whose sole allowed subscriber is the given
// agent — used for agent.Agent.DirectMbox. Further Subscribe calls for
// a different agentID fail with DuplicateSubscription semantics applied
// at the multi-subscriber layer (the direct mailbox simply never
// receives a second Subscribe for a foreign agent in normal use).
func NewDirect(agentID string) *Box {
	b := newBox("")
	b.direct = true
	b.directAgent = agentID
	return b
}

func (b *Box) kindLabel() string {
	if b.direct {
		return "direct"
	}
	return "multi"
}

// Subscribe registers (agentID, handler) for messages of type tag while
// the subscriber's current state name equals stateName (or the entry is
// a deadletter fallback, matched regardless of state). Returns
// errs.DuplicateSubscription if an identical (agent, tag, state) triple
// already exists, or errs.MutableMsgViolation if any message of this tag
// (mutable or not) has already been delivered through this mailbox.
func (b *Box) Subscribe(tag event.TypeTag, sub Subscriber, stateName string, deadletter bool, handler event.HandlerFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.direct && sub.AgentID() != b.directAgent {
		return errs.New(errs.DuplicateSubscription, "direct mailbox accepts only its owning agent")
	}

	if ts, ok := b.tagStates[tag]; ok && ts.delivered {
		return errs.New(errs.MutableMsgViolation, "subscribe after first delivery of "+event.NameOf(tag))
	}

	for _, e := range b.subsByTag[tag] {
		if e.agentID == sub.AgentID() && e.stateName == stateName && e.deadletter == deadletter {
			return errs.New(errs.DuplicateSubscription, event.NameOf(tag))
		}
	}

	b.subsByTag[tag] = append(b.subsByTag[tag], subscriberEntry{
		agentID:    sub.AgentID(),
		sub:        sub,
		stateName:  stateName,
		deadletter: deadletter,
		handler:    handler,
	})
	return nil
}

// Unsubscribe removes the (agentID, tag, stateName, deadletter) entry if
// present. Idempotent: unsubscribing something not present is a no-op.
func (b *Box) Unsubscribe(tag event.TypeTag, agentID string, stateName string, deadletter bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.subsByTag[tag]
	out := entries[:0]
	for _, e := range entries {
		if e.agentID == agentID && e.stateName == stateName && e.deadletter == deadletter {
			continue
		}
		out = append(out, e)
	}
	b.subsByTag[tag] = out
}

// UnsubscribeAgent removes every entry belonging to agentID, across all
// types — used for bulk teardown when an agent is undefined.
func (b *Box) UnsubscribeAgent(agentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for tag, entries := range b.subsByTag {
		out := entries[:0]
		for _, e := range entries {
			if e.agentID != agentID {
				out = append(out, e)
			}
		}
		b.subsByTag[tag] = out
	}
}

// Deliver synchronously fans a payload message out to every subscribed
// agent, building exactly one event.Record per distinct target agent
// (combining every state/deadletter candidate that agent registered for
// this tag) so ordering per-agent matches enqueue order.
func (b *Box) Deliver(tag event.TypeTag, msg *event.Message) error {
	return b.deliver(tag, msg)
}

// DeliverSignal is Deliver for a payload-less signal message.
func (b *Box) DeliverSignal(tag event.TypeTag) error {
	return b.deliver(tag, &event.Message{ID: uuid.NewString(), Tag: tag, Kind: event.KindSignal})
}

func (b *Box) deliver(tag event.TypeTag, msg *event.Message) error {
	b.mu.Lock()

	entries := b.subsByTag[tag]
	if msg.Mutable {
		agents := map[string]bool{}
		for _, e := range entries {
			agents[e.agentID] = true
		}
		if len(agents) != 1 {
			b.mu.Unlock()
			metrics.MailboxDeliveries.WithLabelValues(b.kindLabel(), "mutable_violation").Inc()
			b.logger.Warn().Str("type", event.NameOf(tag)).Int("subscribers", len(agents)).
				Msg("mutable message delivered with subscriber count != 1")
			return errs.New(errs.MutableMsgViolation, "mutable message delivered with subscriber count != 1")
		}
	}

	ts, ok := b.tagStates[tag]
	if !ok {
		ts = &tagState{}
		b.tagStates[tag] = ts
	}
	ts.delivered = true

	byAgent := make(map[string][]event.Candidate)
	order := make([]string, 0, len(entries))
	subs := make(map[string]Subscriber, len(entries))
	for _, e := range entries {
		if _, seen := byAgent[e.agentID]; !seen {
			order = append(order, e.agentID)
		}
		byAgent[e.agentID] = append(byAgent[e.agentID], event.Candidate{
			StateName:  e.stateName,
			Deadletter: e.deadletter,
			Handler:    e.handler,
		})
		subs[e.agentID] = e.sub
	}
	b.mu.Unlock()

	for _, agentID := range order {
		subs[agentID].Accept(event.Record{
			Msg:        msg,
			MailboxID:  b.ID,
			Candidates: byAgent[agentID],
		})
	}

	metrics.MailboxDeliveries.WithLabelValues(b.kindLabel(), "ok").Inc()
	return nil
}
