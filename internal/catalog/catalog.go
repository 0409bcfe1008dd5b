// Package catalog holds the lessons the quiz engine draws from.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	"github.com/victornm/avidquiz/internal/domain"
	"github.com/victornm/avidquiz/internal/errors"
)

const (
	// CategoryAny disables the category filter.
	CategoryAny = "any"
	// SourceAll disables the source filter.
	SourceAll = "all"
)

// Store persists lessons added after startup.
type Store interface {
	SaveLesson(ctx context.Context, l domain.Lesson) error
	ListLessons(ctx context.Context) ([]domain.Lesson, error)
}

type Config struct {
	Lessons []domain.Lesson
	Store   Store
}

// Catalog is a read-mostly, concurrency safe set of lessons grouped by category.
type Catalog struct {
	store Store

	mu         sync.RWMutex
	byCategory map[string][]domain.Lesson
	categories []string
}

// New builds a catalog from the given lessons plus whatever the store holds.
func New(ctx context.Context, c Config) (*Catalog, error) {
	cat := &Catalog{
		store:      c.Store,
		byCategory: make(map[string][]domain.Lesson),
	}

	for _, l := range c.Lessons {
		cat.put(l)
	}

	if c.Store != nil {
		stored, err := c.Store.ListLessons(ctx)
		if err != nil {
			return nil, fmt.Errorf("catalog: list stored lessons: %w", err)
		}
		for _, l := range stored {
			cat.put(l)
		}
	}

	cat.categories = cat.sortedCategories()
	return cat, nil
}

// Categories returns the category names, sorted and deduplicated.
func (c *Catalog) Categories() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]string(nil), c.categories...)
}

// ByCategory returns a snapshot of all lessons grouped by category.
func (c *Catalog) ByCategory() map[string][]domain.Lesson {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string][]domain.Lesson, len(c.byCategory))
	for k, ls := range c.byCategory {
		out[k] = append([]domain.Lesson(nil), ls...)
	}
	return out
}

// All returns every lesson, ordered by category then insertion.
func (c *Catalog) All() []domain.Lesson {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []domain.Lesson
	for _, cat := range c.categories {
		out = append(out, c.byCategory[cat]...)
	}
	return out
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, ls := range c.byCategory {
		n += len(ls)
	}
	return n
}

// Find returns the lesson with the given title in any category.
func (c *Catalog) Find(title string) (domain.Lesson, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, cat := range c.categories {
		for _, l := range c.byCategory[cat] {
			if l.Title == title {
				return l, true
			}
		}
	}
	return domain.Lesson{}, false
}

// Candidates returns the lessons matching the category and source filters.
func (c *Catalog) Candidates(category, source string) []domain.Lesson {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var pool []domain.Lesson
	if category == "" || strings.EqualFold(category, CategoryAny) {
		for _, cat := range c.categories {
			pool = append(pool, c.byCategory[cat]...)
		}
	} else {
		pool = append(pool, c.byCategory[category]...)
	}

	if source == "" || strings.EqualFold(source, SourceAll) {
		return pool
	}

	filtered := pool[:0]
	for _, l := range pool {
		if string(l.Source) == source {
			filtered = append(filtered, l)
		}
	}
	return filtered
}

// Lesson picks a lesson uniformly at random among those matching the filters.
func (c *Catalog) Lesson(category, source string, rng *rand.Rand) (domain.Lesson, error) {
	pool := c.Candidates(category, source)
	if len(pool) == 0 {
		return domain.Lesson{}, errors.NotFound("no lessons for category=%q source=%q", category, source)
	}

	return pool[rng.IntN(len(pool))], nil
}

// Sample returns up to n distinct lessons drawn at random from the whole catalog.
func (c *Catalog) Sample(n int, rng *rand.Rand) []domain.Lesson {
	all := c.All()
	rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	if n >= 0 && n < len(all) {
		all = all[:n]
	}
	return all
}

// Add merges a lesson into the catalog, replacing one with the same title in
// the same category, and persists it when a store is configured.
func (c *Catalog) Add(ctx context.Context, l domain.Lesson) error {
	if strings.TrimSpace(l.Title) == "" {
		return errors.InvalidArgument("lesson title is required")
	}

	if c.store != nil {
		if err := c.store.SaveLesson(ctx, l); err != nil {
			return fmt.Errorf("catalog: save lesson: %w", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.put(l)
	c.categories = c.sortedCategories()

	slog.InfoContext(ctx, "catalog: lesson added", "title", l.Title, "category", l.Category, "source", l.Source)
	return nil
}

func (c *Catalog) put(l domain.Lesson) {
	if l.Source == "" {
		l.Source = domain.SourceLocal
	}

	ls := c.byCategory[l.Category]
	for i := range ls {
		if ls[i].Title == l.Title {
			ls[i] = l
			return
		}
	}
	c.byCategory[l.Category] = append(ls, l)
}

func (c *Catalog) sortedCategories() []string {
	out := make([]string, 0, len(c.byCategory))
	for k, ls := range c.byCategory {
		if len(ls) > 0 {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
