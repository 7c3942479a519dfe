// Package processors applies downloaded sync chunks to the local
// store, resolving conflicts with a pluggable resolver (§4.4), and
// implements the note/resource processors that additionally download
// full bodies per item (§4.5).
package processors

import "sync"

// ConflictAction is the pluggable conflict resolver's verdict for one
// incoming/local pair (§4.4, §9).
type ConflictAction int

const (
	// UseTheirs overwrites local with incoming, preserving local's
	// local-id and locally-favorited flag.
	UseTheirs ConflictAction = iota
	// UseMine drops the incoming entity, keeping local untouched.
	UseMine
	// IgnoreMine discards local and treats incoming as a brand-new
	// entity.
	IgnoreMine
	// MoveMine means the caller has already renamed the local copy;
	// it is persisted, then incoming is accepted as new.
	MoveMine
)

// Counters tracks a processor's running totals; the callback can be
// driven concurrently, so access is mutex-guarded rather than atomic
// because callers observe relations among the fields together.
type Counters struct {
	mu       sync.Mutex
	Total    int
	Added    int
	Updated  int
	Expunged int
}

func (c *Counters) incTotal()    { c.mu.Lock(); c.Total++; c.mu.Unlock() }
func (c *Counters) incAdded()    { c.mu.Lock(); c.Added++; c.mu.Unlock() }
func (c *Counters) incUpdated()  { c.mu.Lock(); c.Updated++; c.mu.Unlock() }
func (c *Counters) incExpunged() { c.mu.Lock(); c.Expunged++; c.mu.Unlock() }

// Snapshot returns a copy of the current counter values.
func (c *Counters) Snapshot() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Counters{Total: c.Total, Added: c.Added, Updated: c.Updated, Expunged: c.Expunged}
}

// ProgressFunc receives a Counters snapshot after each transition.
type ProgressFunc func(Counters)

func notify(cb ProgressFunc, c *Counters) {
	if cb != nil {
		cb(c.Snapshot())
	}
}
