package store

import "sync"

// DecisionLocks serializes mutations per decision. Trades on the same
// decision take the lock for the whole read-quote-commit sequence; trades
// on different decisions never block each other. The resolution and
// settlement sweeps take the same lock, so a resolution never runs
// concurrently with an in-flight trade on its decision.
type DecisionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewDecisionLocks creates an empty lock set.
func NewDecisionLocks() *DecisionLocks {
	return &DecisionLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the exclusive lock for one decision, creating it on first
// use. Lock entries are never removed; the set is bounded by the number of
// decisions ever traded in this process.
func (l *DecisionLocks) Lock(decisionID string) {
	l.mu.Lock()
	m, ok := l.locks[decisionID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[decisionID] = m
	}
	l.mu.Unlock()
	m.Lock()
}

// Unlock releases the lock for one decision.
func (l *DecisionLocks) Unlock(decisionID string) {
	l.mu.Lock()
	m := l.locks[decisionID]
	l.mu.Unlock()
	if m != nil {
		m.Unlock()
	}
}
