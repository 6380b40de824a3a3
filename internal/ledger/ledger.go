// Package ledger keeps the set of identifiers of news items that were already
// posted, so that a scheduled run never announces the same item twice.
//
// A Ledger is loaded once at the start of a run, mutated in memory as items are
// published and saved back through a Store. Absence of prior state is a valid
// cold start and yields an empty Ledger.
package ledger

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrLoad is returned when persisted state exists but cannot be read or decoded.
	ErrLoad = errors.New("ledger: load failed")
	// ErrSave is returned when the ledger could not be persisted.
	ErrSave = errors.New("ledger: save failed")
)

// Store persists a Ledger between runs.
type Store interface {
	Load(ctx context.Context) (*Ledger, error)
	Save(ctx context.Context, l *Ledger) error
}

// Ledger is a set of posted item identifiers that remembers insertion order.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]struct{}
	order   []string
}

// New returns a ledger holding ids. Repeated ids are kept once, at their first position.
func New(ids ...string) *Ledger {
	l := &Ledger{
		entries: make(map[string]struct{}, len(ids)),
		order:   make([]string, 0, len(ids)),
	}
	for _, id := range ids {
		l.insert(id)
	}
	return l
}

func (l *Ledger) Contains(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.entries[id]
	return ok
}

// Record inserts id and reports whether it was new. Recording a present id is a no-op.
func (l *Ledger) Record(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.insert(id)
}

func (l *Ledger) insert(id string) bool {
	if _, ok := l.entries[id]; ok {
		return false
	}
	l.entries[id] = struct{}{}
	l.order = append(l.order, id)
	return true
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.order)
}

// IDs returns a copy of the entries in insertion order.
func (l *Ledger) IDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// Prune drops the oldest entries so that at most max remain and returns how
// many were removed. A max of zero or less keeps the ledger unbounded.
func (l *Ledger) Prune(max int) int {
	if max <= 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	excess := len(l.order) - max
	if excess <= 0 {
		return 0
	}

	for _, id := range l.order[:excess] {
		delete(l.entries, id)
	}
	kept := make([]string, max)
	copy(kept, l.order[excess:])
	l.order = kept

	return excess
}
