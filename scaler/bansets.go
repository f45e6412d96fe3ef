package scaler

import "sync"

// BanSets is the tick-scoped sidecar that excludes a user, group or image
// from scheduling decisions for the remainder of the current tick: a
// failure taints the failing user, group, or image for the current tick
// only. A fresh BanSets is created at the start of every Tick call;
// nothing here is expected to outlive one tick.
type BanSets struct {
	mu     sync.Mutex
	users  map[string]bool
	groups map[string]bool
	images map[string]bool
}

// NewBanSets returns an empty, tick-scoped BanSets.
func NewBanSets() *BanSets {
	return &BanSets{
		users:  make(map[string]bool),
		groups: make(map[string]bool),
		images: make(map[string]bool),
	}
}

func (b *BanSets) TaintUser(user string)   { b.mu.Lock(); b.users[user] = true; b.mu.Unlock() }
func (b *BanSets) TaintGroup(group string) { b.mu.Lock(); b.groups[group] = true; b.mu.Unlock() }
func (b *BanSets) TaintImage(group, name string) {
	b.mu.Lock()
	b.images[imageKey(group, name)] = true
	b.mu.Unlock()
}

// Excluded reports whether req's user, group, or image should be skipped
// for the rest of this tick.
func (b *BanSets) Excluded(req Requisition) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.users[req.User] || b.groups[req.Group] || b.images[imageKey(req.Group, req.Stage)]
}
