package quiz_test

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/avidquiz/internal/domain"
	"github.com/victornm/avidquiz/internal/quiz"
)

func TestBuildQuestion(t *testing.T) {
	type outputs struct {
		question domain.Question
	}

	tests := map[string]struct {
		lesson domain.Lesson
		pool   []domain.Lesson
		assert func(t *testing.T, out outputs)
	}{
		"should use the explanation as the correct option and three decoys": {
			lesson: lesson("Caching", "Keep hot data close"),
			pool: []domain.Lesson{
				lesson("Caching", "Keep hot data close"),
				lesson("Sharding", "Split data across nodes"),
				lesson("Indexes", "Speed up lookups"),
				lesson("Retries", "Try again on transient errors"),
				lesson("Queues", "Decouple producers and consumers"),
			},
			assert: func(t *testing.T, out outputs) {
				q := out.question
				require.Len(t, q.Options, quiz.OptionCount)
				assert.Equal(t, "Keep hot data close", q.Options[q.CorrectOptionIndex])
				assert.Equal(t, "Which statement best matches the concept 'Caching'?", q.Prompt)
				assert.Equal(t, "Caching", q.LessonTitle)
			},
		},

		"should fall back to the text when the explanation is empty": {
			lesson: domain.Lesson{Title: "Idempotency", Text: "Same request, same effect"},
			pool: []domain.Lesson{
				lesson("Sharding", "Split data across nodes"),
			},
			assert: func(t *testing.T, out outputs) {
				q := out.question
				assert.Equal(t, "Same request, same effect", q.Options[q.CorrectOptionIndex])
			},
		},

		"should pad with distinct fillers when the pool is small": {
			lesson: lesson("Caching", "Keep hot data close"),
			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.question.Options, quiz.OptionCount)
			},
		},

		"should not repeat option text even when lessons share explanations": {
			lesson: lesson("Caching", "Same"),
			pool: []domain.Lesson{
				lesson("A", "Same"),
				lesson("B", "Other"),
				lesson("C", "Other"),
				lesson("D", "Third"),
			},
			assert: func(t *testing.T, out outputs) {
				q := out.question
				require.Len(t, q.Options, quiz.OptionCount)
				assert.Equal(t, "Same", q.Options[q.CorrectOptionIndex])
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			q := quiz.BuildQuestion(tt.lesson, tt.pool, rand.New(rand.NewPCG(7, 7)))

			uniq := map[string]struct{}{}
			for _, o := range q.Options {
				uniq[o] = struct{}{}
			}
			require.Len(t, uniq, len(q.Options), "options must be distinct")

			correct := 0
			for i := range q.Options {
				if q.IsCorrect(i) {
					correct++
				}
			}
			require.Equal(t, 1, correct, "exactly one option must be correct")

			tt.assert(t, outputs{question: q})
		})
	}
}

func TestBuildQuestion_Deterministic(t *testing.T) {
	pool := makePool(10)

	a := quiz.BuildQuestion(pool[0], pool, rand.New(rand.NewPCG(42, 1)))
	b := quiz.BuildQuestion(pool[0], pool, rand.New(rand.NewPCG(42, 1)))

	assert.Equal(t, a, b, "same seed should give the same option order")
}

func TestBuildQuestion_CorrectIndexVaries(t *testing.T) {
	pool := makePool(10)
	rng := rand.New(rand.NewPCG(1, 1))

	positions := map[int]bool{}
	for range 100 {
		q := quiz.BuildQuestion(pool[0], pool, rng)
		positions[q.CorrectOptionIndex] = true
	}

	assert.Greater(t, len(positions), 1, "the correct option should not always be at the same index")
}

func TestBuild(t *testing.T) {
	pool := makePool(6)
	read := []domain.Lesson{pool[0], pool[2], pool[2], pool[4]}

	q := quiz.Build(read, pool, rand.New(rand.NewPCG(5, 5)))

	require.Equal(t, 3, q.Total(), "one question per distinct lesson")
	assert.Equal(t, 0, q.CurrentIndex)
	assert.Equal(t, 0, q.CorrectCount)

	var titles []string
	for _, qq := range q.Questions {
		titles = append(titles, qq.LessonTitle)
	}
	assert.ElementsMatch(t, []string{pool[0].Title, pool[2].Title, pool[4].Title}, titles)
}

func TestQuestion_IsCorrect(t *testing.T) {
	q := domain.Question{Options: []string{"a", "b", "c", "d"}, CorrectOptionIndex: 2}

	assert.True(t, q.IsCorrect(2))
	assert.False(t, q.IsCorrect(1))
	assert.False(t, q.IsCorrect(-1))
	assert.False(t, q.IsCorrect(4))
	assert.False(t, q.IsCorrect(1<<30))
}

func TestRewards_XP(t *testing.T) {
	r := quiz.Rewards{CoinsPerCorrect: 10, XPPerQuiz: 30}

	tests := map[string]struct {
		correct, total int
		want           int
	}{
		"perfect":         {correct: 3, total: 3, want: 30},
		"two of three":    {correct: 2, total: 3, want: 20},
		"one of three":    {correct: 1, total: 3, want: 10},
		"rounds down":     {correct: 1, total: 7, want: 4},
		"none":            {correct: 0, total: 3, want: 0},
		"empty quiz":      {correct: 0, total: 0, want: 0},
		"clamped to full": {correct: 5, total: 3, want: 30},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.XP(tt.correct, tt.total))
		})
	}
}

func TestRewards_Validate(t *testing.T) {
	assert.NoError(t, quiz.DefaultRewards().Validate())
	assert.NoError(t, quiz.Rewards{}.Validate())
	assert.Error(t, quiz.Rewards{CoinsPerCorrect: -1, XPPerQuiz: 30}.Validate())
	assert.Error(t, quiz.Rewards{CoinsPerCorrect: 10, XPPerQuiz: -1}.Validate())
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Perfect score! 3/3 correct. +30 coins · +30 XP", quiz.Message(3, 3, 30, 30))
	assert.Equal(t, "Nice work! 2/3 correct. +20 coins · +20 XP", quiz.Message(2, 3, 20, 20))
	assert.Equal(t, "Keep practicing! 0/3 correct. +0 coins · +0 XP", quiz.Message(0, 3, 0, 0))
}

func lesson(title, explain string) domain.Lesson {
	return domain.Lesson{Title: title, Category: "general", Explain: explain}
}

func makePool(n int) []domain.Lesson {
	out := make([]domain.Lesson, n)
	for i := range out {
		out[i] = lesson(fmt.Sprintf("Lesson %d", i), fmt.Sprintf("Explanation %d", i))
	}
	return out
}
