// Package store holds the live, hot-swappable rule set the request
// pipeline matches against (spec.md §4.2).
package store

import (
	"sync/atomic"

	"github.com/bradcypert/popshop/pkg/rule"
)

// RuleStore publishes an immutable snapshot of the active rule.List.
// Readers call Snapshot and match against the returned slice without
// holding any lock; a Replace swaps in a new slice atomically, so a
// reader that already has a snapshot keeps using it to completion even
// while a reload is in flight.
type RuleStore struct {
	rules atomic.Pointer[rule.List]
}

// New creates a RuleStore holding the given initial rule.List.
func New(initial rule.List) *RuleStore {
	s := &RuleStore{}
	s.Replace(initial)
	return s
}

// Snapshot returns the currently published rule.List. The returned
// value is never mutated in place; callers may range over it freely.
func (s *RuleStore) Snapshot() rule.List {
	p := s.rules.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Replace atomically publishes a new rule.List, superseding whatever
// was previously live. Snapshots already handed out remain valid.
func (s *RuleStore) Replace(rules rule.List) {
	cp := make(rule.List, len(rules))
	copy(cp, rules)
	s.rules.Store(&cp)
}

// Count returns the number of rules in the currently published list.
func (s *RuleStore) Count() int {
	return len(s.Snapshot())
}
