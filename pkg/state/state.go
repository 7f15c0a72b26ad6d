package state

import (
	"fmt"
	"sync"

	"github.com/cuemby/agency/pkg/errs"
)

// Default is the name of the state every agent owns from construction.
const Default = "default"

// State identifies a named state owned by exactly one agent.
type State struct {
	OwnerID string
	Name    string
}

// Listener is notified after a state transition commits. Listeners must
// not panic; a panicking listener is treated like any other handler
// exception and routed through the agent's exception reaction by the
// caller of Machine.Change.
type Listener func(prev, next State)

// Machine is the state machine owned by a single agent: one current
// state plus the set of states the agent has declared ownership of.
type Machine struct {
	mu        sync.Mutex
	ownerID   string
	states    map[string]State
	current   State
	listeners []Listener
}

// NewMachine creates a state machine for the given owning agent, with
// the built-in default state already registered and active.
func NewMachine(ownerID string) *Machine {
	def := State{OwnerID: ownerID, Name: Default}
	return &Machine{
		ownerID: ownerID,
		states:  map[string]State{Default: def},
		current: def,
	}
}

// Declare registers a new named state owned by this machine's agent and
// returns it. Declaring the same name twice returns the existing State.
func (m *Machine) Declare(name string) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.states[name]; ok {
		return s
	}
	s := State{OwnerID: m.ownerID, Name: name}
	m.states[name] = s
	return s
}

// Current returns the active state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// AddListener registers a listener invoked after every committed
// transition, including the very first one set at construction is not
// replayed — only transitions via Change fire listeners.
func (m *Machine) AddListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Change verifies that target is owned by this machine's agent, commits
// the transition, and fires every listener. Returns errs.StateNotOwned
// if the target state belongs to a different agent.
func (m *Machine) Change(target State) error {
	if target.OwnerID != m.ownerID {
		return errs.New(errs.StateNotOwned, fmt.Sprintf("state %q is owned by %q, not %q", target.Name, target.OwnerID, m.ownerID))
	}

	m.mu.Lock()
	prev := m.current
	m.current = target
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	for _, l := range listeners {
		l(prev, target)
	}
	return nil
}
