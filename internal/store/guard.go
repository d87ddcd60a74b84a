package store

import "sync"

// Guard is the single mutual-exclusion token serializing all access to a
// Store. It is non-reentrant: Acquire from a holder deadlocks, exactly as
// a binary semaphore would.
type Guard struct {
	mu sync.Mutex
}

// NewGuard creates a Guard.
func NewGuard() *Guard {
	return &Guard{}
}

// Acquire takes the token, blocking until it is free.
func (g *Guard) Acquire() {
	g.mu.Lock()
}

// Release returns the token.
func (g *Guard) Release() {
	g.mu.Unlock()
}
