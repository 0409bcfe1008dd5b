package leaderboard

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/victornm/avidquiz/internal/domain"
)

// Store keeps accepted entries. Insert returns the 1-based rank of the entry
// within its mode: one plus the number of entries with a strictly higher score.
// Top with an empty mode lists all modes.
type Store interface {
	Insert(ctx context.Context, e domain.LeaderboardEntry) (int, error)
	Top(ctx context.Context, mode domain.Mode, limit int) ([]domain.LeaderboardEntry, error)
}

// MemoryStore keeps the best entries in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	entries  []domain.LeaderboardEntry
	capacity int
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &MemoryStore{capacity: capacity}
}

func (m *MemoryStore) Insert(_ context.Context, e domain.LeaderboardEntry) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rank := 1
	for _, x := range m.entries {
		if x.Mode == e.Mode && x.Score > e.Score {
			rank++
		}
	}

	m.entries = append(m.entries, e)
	if len(m.entries) > m.capacity {
		sortEntries(m.entries)
		m.entries = slices.Clip(m.entries[:m.capacity])
	}

	return rank, nil
}

func (m *MemoryStore) Top(_ context.Context, mode domain.Mode, limit int) ([]domain.LeaderboardEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.LeaderboardEntry
	for _, e := range m.entries {
		if mode == "" || e.Mode == mode {
			out = append(out, e)
		}
	}

	sortEntries(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// sortEntries orders by score descending, earlier submissions first on ties.
func sortEntries(es []domain.LeaderboardEntry) {
	slices.SortStableFunc(es, func(a, b domain.LeaderboardEntry) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return a.SubmitTime.Compare(b.SubmitTime)
	})
}
