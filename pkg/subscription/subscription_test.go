package subscription

import (
	"testing"

	"github.com/cuemby/agency/pkg/errs"
	"github.com/cuemby/agency/pkg/event"
	"github.com/cuemby/agency/pkg/mailbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAgent struct{ id string }

func (s *stubAgent) AgentID() string     { return s.id }
func (s *stubAgent) Accept(event.Record) {}

type payload struct{}

func TestAddRejectsDuplicate(t *testing.T) {
	tbl := New()
	box := mailbox.NewLocal()
	a := &stubAgent{id: "a1"}
	tag := event.TagFor[payload]()

	require.NoError(t, tbl.Add(box, tag, a, "default", false, nil))

	err := tbl.Add(box, tag, a, "default", false, nil)
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.DuplicateSubscription, kind)
	assert.Equal(t, 1, tbl.Len())
}

func TestRemoveUnwindsMailboxSubscription(t *testing.T) {
	tbl := New()
	box := mailbox.NewLocal()
	a := &stubAgent{id: "a1"}
	tag := event.TagFor[payload]()

	require.NoError(t, tbl.Add(box, tag, a, "default", false, nil))
	tbl.Remove(box, tag, "default", false, "a1")
	assert.Equal(t, 0, tbl.Len())

	// re-adding after removal must succeed since the mailbox no longer
	// tracks the old entry
	require.NoError(t, tbl.Add(box, tag, a, "default", false, nil))
}

func TestTeardownClearsEveryMailbox(t *testing.T) {
	tbl := New()
	boxA := mailbox.NewLocal()
	boxB := mailbox.NewLocal()
	a := &stubAgent{id: "a1"}
	tagX := event.TagFor[payload]()
	tagY := event.TagFor[int]()

	require.NoError(t, tbl.Add(boxA, tagX, a, "default", false, nil))
	require.NoError(t, tbl.Add(boxB, tagY, a, "running", false, nil))
	require.NoError(t, tbl.Add(boxA, tagX, a, "", true, nil))

	tbl.Teardown("a1")
	assert.Equal(t, 0, tbl.Len())

	// both mailboxes should now accept a fresh subscription for a1 again
	require.NoError(t, boxA.Subscribe(tagX, a, "default", false, nil))
	require.NoError(t, boxB.Subscribe(tagY, a, "running", false, nil))
}
