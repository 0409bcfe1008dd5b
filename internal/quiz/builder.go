// Package quiz builds multiple choice questions from lessons and computes
// quiz rewards. Everything here is pure; randomness comes from the caller.
package quiz

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/victornm/avidquiz/internal/domain"
)

// OptionCount is the number of options of every question.
const OptionCount = 4

// fillers pad a question when the catalog is too small to supply decoys.
var fillers = []string{
	"This option does not apply to the concept.",
	"None of the other statements describe this concept.",
	"This concept is unrelated to software engineering.",
}

// Answer is the statement a lesson is quizzed on: its explanation, or its
// text when the explanation is empty.
func Answer(l domain.Lesson) string {
	if s := strings.TrimSpace(l.Explain); s != "" {
		return s
	}
	return strings.TrimSpace(l.Text)
}

// BuildQuestion derives a question from l with three decoys taken from the
// other lessons in pool. Option texts are distinct and shuffled.
func BuildQuestion(l domain.Lesson, pool []domain.Lesson, rng *rand.Rand) domain.Question {
	correct := Answer(l)
	if correct == "" {
		correct = l.Title
	}

	seen := map[string]struct{}{correct: {}}
	var decoys []string
	for _, x := range pool {
		if x.Title == l.Title && x.Category == l.Category {
			continue
		}
		d := Answer(x)
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		decoys = append(decoys, d)
	}
	rng.Shuffle(len(decoys), func(i, j int) { decoys[i], decoys[j] = decoys[j], decoys[i] })

	opts := make([]string, 0, OptionCount)
	opts = append(opts, correct)
	for i := 0; i < len(decoys) && len(opts) < OptionCount; i++ {
		opts = append(opts, decoys[i])
	}
	for _, f := range fillers {
		if len(opts) == OptionCount {
			break
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		opts = append(opts, f)
	}
	for n := 1; len(opts) < OptionCount; n++ {
		f := fmt.Sprintf("None of the above (%d).", n)
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		opts = append(opts, f)
	}

	rng.Shuffle(len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })

	idx := 0
	for i, o := range opts {
		if o == correct {
			idx = i
			break
		}
	}

	return domain.Question{
		LessonTitle:        l.Title,
		Prompt:             fmt.Sprintf("Which statement best matches the concept '%s'?", l.Title),
		Options:            opts,
		CorrectOptionIndex: idx,
	}
}

// Build creates a quiz with one question per lesson, in random order.
// Duplicate titles are quizzed once.
func Build(lessons []domain.Lesson, pool []domain.Lesson, rng *rand.Rand) *domain.Quiz {
	seen := make(map[string]struct{}, len(lessons))
	q := &domain.Quiz{}
	for _, l := range lessons {
		if _, ok := seen[l.Title]; ok {
			continue
		}
		seen[l.Title] = struct{}{}
		q.Questions = append(q.Questions, BuildQuestion(l, pool, rng))
	}

	rng.Shuffle(len(q.Questions), func(i, j int) {
		q.Questions[i], q.Questions[j] = q.Questions[j], q.Questions[i]
	})

	return q
}
