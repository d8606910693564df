package group

import (
	"sync"

	"github.com/google/uuid"
)

// Locks is a table of mutexes keyed by id. Registry operations and the
// lifecycle scheduler share one table so that every read-decide-write
// sequence on a group is serialized. Entries are dropped once no goroutine
// holds or waits on them.
type Locks struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewLocks creates an empty lock table.
func NewLocks() *Locks {
	return &Locks{entries: make(map[uuid.UUID]*lockEntry)}
}

// With runs fn while holding the lock for id.
func (l *Locks) With(id uuid.UUID, fn func() error) error {
	e := l.acquire(id)
	defer l.release(id, e)
	return fn()
}

func (l *Locks) acquire(id uuid.UUID) *lockEntry {
	l.mu.Lock()
	e, ok := l.entries[id]
	if !ok {
		e = &lockEntry{}
		l.entries[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return e
}

func (l *Locks) release(id uuid.UUID, e *lockEntry) {
	e.mu.Unlock()

	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, id)
	}
	l.mu.Unlock()
}

// len returns the number of live entries.
func (l *Locks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
