package subscription

import (
	"github.com/cuemby/agency/pkg/errs"
	"github.com/cuemby/agency/pkg/event"
	"github.com/cuemby/agency/pkg/mailbox"
)

// key identifies one subscription an agent made. stateName is empty for
// deadletter entries, since those are matched regardless of state.
type key struct {
	mailboxID  string
	tag        event.TypeTag
	stateName  string
	deadletter bool
}

type entry struct {
	box *mailbox.Box
}

// Table is the set of subscriptions one agent currently holds, across any
// number of mailboxes. It exists so agent.Agent can offer a single
// Unsubscribe/teardown call instead of making the caller track which
// mailbox a given (type, state) pair came from.
type Table struct {
	entries map[key]entry
}

// New returns an empty subscription table.
func New() *Table {
	return &Table{entries: make(map[key]entry)}
}

// Add registers that sub now gets a chance to handle tag on box while the
// agent is in stateName (or, if deadletter is true, whenever no
// state-scoped candidate for this box/tag matches the agent's current
// state). Returns
// errs.DuplicateSubscription if this exact quadruple is already tracked.
func (t *Table) Add(box *mailbox.Box, tag event.TypeTag, sub mailbox.Subscriber, stateName string, deadletter bool, handler event.HandlerFunc) error {
	k := key{mailboxID: box.ID, tag: tag, stateName: stateName, deadletter: deadletter}
	if _, ok := t.entries[k]; ok {
		return errs.New(errs.DuplicateSubscription, event.NameOf(tag))
	}

	if err := box.Subscribe(tag, sub, stateName, deadletter, handler); err != nil {
		return err
	}

	t.entries[k] = entry{box: box}
	return nil
}

// Remove drops one tracked (box, tag, state, deadletter) subscription. A
// no-op if it isn't tracked.
func (t *Table) Remove(box *mailbox.Box, tag event.TypeTag, stateName string, deadletter bool, agentID string) {
	k := key{mailboxID: box.ID, tag: tag, stateName: stateName, deadletter: deadletter}
	if _, ok := t.entries[k]; !ok {
		return
	}
	box.Unsubscribe(tag, agentID, stateName, deadletter)
	delete(t.entries, k)
}

// Teardown unsubscribes agentID from every mailbox this table ever
// touched and empties the table. Safe to call more than once.
func (t *Table) Teardown(agentID string) {
	seen := make(map[*mailbox.Box]bool)
	for k, e := range t.entries {
		if !seen[e.box] {
			e.box.UnsubscribeAgent(agentID)
			seen[e.box] = true
		}
		delete(t.entries, k)
	}
}

// Len reports how many subscriptions are currently tracked.
func (t *Table) Len() int { return len(t.entries) }
