package profile

import (
	"sync"
)

// Context is the explicit holder of the active snapshot.
// Readers get an immutable snapshot; writers replace it atomically.
type Context struct {
	mu      sync.RWMutex
	current *Profile
	version int
}

// NewContext installs the initial snapshot. The profile is expected to be validated.
func NewContext(p *Profile) *Context {
	return &Context{current: p.Clone(), version: 1}
}

// Current returns the active snapshot. Callers must not modify it.
func (c *Context) Current() *Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Version increases every time a snapshot is replaced.
func (c *Context) Version() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Replace validates p and makes a copy of it the active snapshot.
// The previous snapshot stays valid for anyone still holding it.
func (c *Context) Replace(p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	next := p.Clone()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = next
	c.version++
	return nil
}
