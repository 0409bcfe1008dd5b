package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/victornm/avidquiz/internal/domain"
)

// UpdateFunc mutates a session in place. Returning an error aborts the update
// and leaves the stored session untouched.
type UpdateFunc func(ss *domain.Session) error

// Store holds sessions by id. Update must run fn as a single critical section
// for that id: no other update of the same session interleaves with it.
// Missing sessions are created empty.
type Store interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
	Update(ctx context.Context, id string, fn UpdateFunc) (*domain.Session, error)
}

// MemoryStore keeps sessions in process memory with one mutex per session.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[string]*memoryEntry
	lastSweep time.Time
	ttl       time.Duration
	now       func() time.Time
}

// memoryEntry holds one session. ss is guarded by mu; refs counts the callers
// between acquire and release and is guarded by the store mutex.
type memoryEntry struct {
	mu   sync.Mutex
	refs int
	ss   *domain.Session
}

const maxSweepInterval = time.Minute

type MemoryOption func(m *MemoryStore)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) {
		m.now = now
	}
}

// NewMemoryStore creates a store. Sessions idle for longer than ttl are
// reset on access and evicted by a periodic sweep; ttl <= 0 keeps them
// forever.
func NewMemoryStore(ttl time.Duration, opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Len is the number of sessions held.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entries)
}

func (m *MemoryStore) acquire(id string) *memoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweep()

	e, ok := m.entries[id]
	if !ok {
		e = &memoryEntry{}
		m.entries[id] = e
	}
	e.refs++
	return e
}

func (m *MemoryStore) release(e *memoryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.refs--
}

// sweep drops expired sessions nobody holds. It runs with m.mu held, at most
// once per min(ttl, maxSweepInterval). An entry with no refs cannot be locked
// by anyone else while m.mu is held, so its session is read without e.mu.
func (m *MemoryStore) sweep() {
	if m.ttl <= 0 {
		return
	}

	now := m.now()
	if now.Sub(m.lastSweep) < min(m.ttl, maxSweepInterval) {
		return
	}
	m.lastSweep = now

	for id, e := range m.entries {
		if e.refs == 0 && (e.ss == nil || now.Sub(e.ss.UpdateTime) > m.ttl) {
			delete(m.entries, id)
		}
	}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*domain.Session, error) {
	e := m.acquire(id)
	defer m.release(e)

	e.mu.Lock()
	defer e.mu.Unlock()

	return clone(m.current(e, id))
}

func (m *MemoryStore) Update(_ context.Context, id string, fn UpdateFunc) (*domain.Session, error) {
	e := m.acquire(id)
	defer m.release(e)

	e.mu.Lock()
	defer e.mu.Unlock()

	// Work on a copy so a failed fn leaves the stored session as it was.
	ss, err := clone(m.current(e, id))
	if err != nil {
		return nil, err
	}

	if err := fn(ss); err != nil {
		return nil, err
	}

	ss.UpdateTime = m.now()
	e.ss = ss

	return clone(ss)
}

func (m *MemoryStore) current(e *memoryEntry, id string) *domain.Session {
	if e.ss == nil || (m.ttl > 0 && m.now().Sub(e.ss.UpdateTime) > m.ttl) {
		e.ss = domain.NewSession(id)
		e.ss.UpdateTime = m.now()
	}
	return e.ss
}

func clone(ss *domain.Session) (*domain.Session, error) {
	b, err := json.Marshal(ss)
	if err != nil {
		return nil, err
	}

	out := new(domain.Session)
	if err := json.Unmarshal(b, out); err != nil {
		return nil, err
	}
	if out.HintIndex == nil {
		out.HintIndex = make(map[string]int)
	}
	return out, nil
}
