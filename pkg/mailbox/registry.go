package mailbox

import "sync"

// Registry hands out and shares named mailboxes. An env.Environment owns
// one; create_local_mbox(name) on two different agents against the same
// registry returns the same *Box.
type Registry struct {
	mu     sync.Mutex
	byName map[string]*Box
}

// NewRegistry creates an empty named-mailbox registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Box)}
}

// CreateLocal returns a brand new, unnamed mailbox: the direct
// counterpart of CreateNamed with no name argument.
func (r *Registry) CreateLocal() *Box {
	return NewLocal()
}

// CreateNamed returns the mailbox registered under name, creating it on
// first use. Subsequent calls with the same name return the same *Box,
// so any agent that knows the name can subscribe or deliver to it.
func (r *Registry) CreateNamed(name string) *Box {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.byName[name]; ok {
		return b
	}
	b := newBox(name)
	r.byName[name] = b
	return b
}

// Lookup returns the mailbox registered under name, if any.
func (r *Registry) Lookup(name string) (*Box, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.byName[name]
	return b, ok
}
