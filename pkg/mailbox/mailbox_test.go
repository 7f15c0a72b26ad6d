package mailbox

import (
	"sync"
	"testing"

	"github.com/cuemby/agency/pkg/errs"
	"github.com/cuemby/agency/pkg/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAgent is a minimal Subscriber used to test mailbox delivery
// without pulling in pkg/agent (which itself depends on pkg/mailbox).
type fakeAgent struct {
	id   string
	mu   sync.Mutex
	recs []event.Record
}

func (f *fakeAgent) AgentID() string { return f.id }

func (f *fakeAgent) Accept(rec event.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, rec)
}

func (f *fakeAgent) received() []event.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]event.Record(nil), f.recs...)
}

type payloadA struct{ V int }

func TestSubscribeDuplicateRejected(t *testing.T) {
	b := NewLocal()
	a := &fakeAgent{id: "a1"}
	tag := event.TagFor[payloadA]()

	require.NoError(t, b.Subscribe(tag, a, "default", false, func(*event.Message) (any, error) { return nil, nil }))

	err := b.Subscribe(tag, a, "default", false, func(*event.Message) (any, error) { return nil, nil })
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.DuplicateSubscription, kind)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := NewLocal()
	a := &fakeAgent{id: "a1"}
	tag := event.TagFor[payloadA]()

	require.NoError(t, b.Subscribe(tag, a, "default", false, nil))
	b.Unsubscribe(tag, "a1", "default", false)
	b.Unsubscribe(tag, "a1", "default", false) // idempotent, must not panic
}

func TestDeliverCombinesCandidatesPerAgent(t *testing.T) {
	b := NewLocal()
	a := &fakeAgent{id: "a1"}
	tag := event.TagFor[payloadA]()

	require.NoError(t, b.Subscribe(tag, a, "default", false, func(*event.Message) (any, error) { return "default-handler", nil }))
	require.NoError(t, b.Subscribe(tag, a, "running", false, func(*event.Message) (any, error) { return "running-handler", nil }))
	require.NoError(t, b.Subscribe(tag, a, "", true, func(*event.Message) (any, error) { return "deadletter-handler", nil }))

	require.NoError(t, b.Deliver(tag, &event.Message{Tag: tag, Kind: event.KindPayload, Payload: payloadA{V: 1}}))

	recs := a.received()
	require.Len(t, recs, 1, "one agent with three candidate subscriptions should get exactly one record")
	assert.Len(t, recs[0].Candidates, 3)
}

func TestDeliverOrderingPerAgent(t *testing.T) {
	b := NewLocal()
	a := &fakeAgent{id: "a1"}
	tagInt := event.TagFor[int]()

	require.NoError(t, b.Subscribe(tagInt, a, "default", false, nil))

	require.NoError(t, b.Deliver(tagInt, &event.Message{Tag: tagInt, Payload: 1}))
	require.NoError(t, b.Deliver(tagInt, &event.Message{Tag: tagInt, Payload: 2}))
	require.NoError(t, b.Deliver(tagInt, &event.Message{Tag: tagInt, Payload: 3}))

	recs := a.received()
	require.Len(t, recs, 3)
	assert.Equal(t, 1, recs[0].Msg.Payload)
	assert.Equal(t, 2, recs[1].Msg.Payload)
	assert.Equal(t, 3, recs[2].Msg.Payload)
}

func TestMutableMessageRejectedWithMultipleSubscribers(t *testing.T) {
	b := NewLocal()
	a1 := &fakeAgent{id: "a1"}
	a2 := &fakeAgent{id: "a2"}
	tag := event.TagFor[payloadA]()

	require.NoError(t, b.Subscribe(tag, a1, "default", false, nil))
	require.NoError(t, b.Subscribe(tag, a2, "default", false, nil))

	err := b.Deliver(tag, &event.Message{Tag: tag, Mutable: true, Payload: payloadA{}})
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.MutableMsgViolation, kind)
}

func TestSubscribeAfterFirstDeliveryRejected(t *testing.T) {
	b := NewLocal()
	a1 := &fakeAgent{id: "a1"}
	a2 := &fakeAgent{id: "a2"}
	tag := event.TagFor[payloadA]()

	require.NoError(t, b.Subscribe(tag, a1, "default", false, nil))
	require.NoError(t, b.Deliver(tag, &event.Message{Tag: tag, Payload: payloadA{}}))

	err := b.Subscribe(tag, a2, "default", false, nil)
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.MutableMsgViolation, kind)
}

func TestDirectMailboxRejectsForeignAgent(t *testing.T) {
	b := NewDirect("owner")
	foreign := &fakeAgent{id: "intruder"}
	tag := event.TagFor[payloadA]()

	err := b.Subscribe(tag, foreign, "default", false, nil)
	require.Error(t, err)
}
