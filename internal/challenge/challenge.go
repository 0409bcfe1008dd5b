package challenge

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/victornm/avidquiz/internal/domain"
	"github.com/victornm/avidquiz/internal/errors"
)

const (
	DefaultDifficulty = "advanced"
	anyFilter         = "any"
)

// Set is an immutable collection of challenges indexed by id.
type Set struct {
	list []domain.Challenge
	byID map[string]domain.Challenge
}

func NewSet(list []domain.Challenge) (*Set, error) {
	s := &Set{byID: make(map[string]domain.Challenge, len(list))}
	for _, ch := range list {
		if ch.ID == "" {
			return nil, fmt.Errorf("challenge %q: id is required", ch.Title)
		}
		if strings.Contains(ch.ID, "..") || strings.ContainsAny(ch.ID, `/\`) {
			return nil, fmt.Errorf("challenge %q: invalid id", ch.ID)
		}
		if _, ok := s.byID[ch.ID]; ok {
			return nil, fmt.Errorf("challenge %q: duplicate id", ch.ID)
		}
		s.byID[ch.ID] = ch
		s.list = append(s.list, ch)
	}
	return s, nil
}

// LoadFile reads a JSON array of challenges.
func LoadFile(path string) (*Set, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var list []domain.Challenge
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	return NewSet(list)
}

func (s *Set) Len() int { return len(s.list) }

func (s *Set) Get(id string) (domain.Challenge, error) {
	ch, ok := s.byID[id]
	if !ok {
		return domain.Challenge{}, errors.NotFound("challenge not found")
	}
	return ch, nil
}

// Pick returns a random challenge of the given difficulty and topic. An empty
// difficulty means DefaultDifficulty; "any" or an empty topic match all.
func (s *Set) Pick(difficulty, topic string, rng *rand.Rand) (domain.Challenge, error) {
	difficulty = strings.ToLower(strings.TrimSpace(difficulty))
	if difficulty == "" {
		difficulty = DefaultDifficulty
	}
	topic = strings.ToLower(strings.TrimSpace(topic))

	var pool []domain.Challenge
	for _, ch := range s.list {
		if difficulty != anyFilter && !strings.EqualFold(ch.Difficulty, difficulty) {
			continue
		}
		if topic != "" && topic != anyFilter && !hasTopic(ch, topic) {
			continue
		}
		pool = append(pool, ch)
	}

	if len(pool) == 0 {
		return domain.Challenge{}, errors.NotFound("no challenge found for difficulty=%q topic=%q", difficulty, topic)
	}
	return pool[rng.IntN(len(pool))], nil
}

func hasTopic(ch domain.Challenge, topic string) bool {
	for _, t := range ch.Topics {
		if strings.EqualFold(t, topic) {
			return true
		}
	}
	return false
}
