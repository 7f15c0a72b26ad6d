package dispatch

import "sync"

// GroupRegistry hands out active-group dispatchers: every call to
// Acquire with the same group name returns the same underlying
// dispatcher (a OneThread scoped to that group), created lazily on first
// acquire and shut down once the matching number of Release calls bring
// its usage count back to zero.
type GroupRegistry struct {
	mu     sync.Mutex
	groups map[string]*groupEntry
}

type groupEntry struct {
	disp  *OneThread
	count int
}

// NewGroupRegistry creates an empty active-group registry.
func NewGroupRegistry() *GroupRegistry {
	return &GroupRegistry{groups: make(map[string]*groupEntry)}
}

// Acquire returns the dispatcher for group, starting its worker goroutine
// on first acquire and incrementing its usage count.
func (g *GroupRegistry) Acquire(group string) Dispatcher {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.groups[group]
	if !ok {
		e = &groupEntry{disp: NewOneThread("active_group:" + group)}
		e.disp.Start()
		g.groups[group] = e
	}
	e.count++
	return e.disp
}

// Release decrements group's usage count, shutting down and discarding
// its worker once the count reaches zero. Safe to call more times than
// Acquire was called: a surplus release is a no-op.
func (g *GroupRegistry) Release(group string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.groups[group]
	if !ok {
		return
	}
	e.count--
	if e.count <= 0 {
		delete(g.groups, group)
		e.disp.Shutdown()
	}
}
