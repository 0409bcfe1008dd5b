package leaderboard_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/avidquiz/internal/catalog"
	"github.com/victornm/avidquiz/internal/domain"
	"github.com/victornm/avidquiz/internal/errors"
	"github.com/victornm/avidquiz/internal/event"
	"github.com/victornm/avidquiz/internal/leaderboard"
	"github.com/victornm/avidquiz/internal/session"
)

var stores = map[string]func(t *testing.T) leaderboard.Store{
	"memory": func(t *testing.T) leaderboard.Store {
		return leaderboard.NewMemoryStore(0)
	},
	"redis": func(t *testing.T) leaderboard.Store {
		rs := miniredis.RunT(t)
		rc := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{rs.Addr()},
		})
		t.Cleanup(func() { rc.Close() })
		return leaderboard.NewRedisStore(rc, "test", 0)
	},
}

func TestStore_InsertAndTop(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entry := func(id string, score int, mode domain.Mode, offset int) domain.LeaderboardEntry {
		return domain.LeaderboardEntry{
			ID:         id,
			Name:       "player " + id,
			Score:      score,
			Mode:       mode,
			SubmitTime: base.Add(time.Duration(offset) * time.Second),
		}
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := newStore(t)

			for _, tc := range []struct {
				e        domain.LeaderboardEntry
				wantRank int
			}{
				{entry("a", 50, domain.ModeQuiz, 0), 1},
				{entry("b", 80, domain.ModeQuiz, 1), 1},
				{entry("c", 50, domain.ModeQuiz, 2), 2},
				{entry("d", 10, domain.ModeTyping, 3), 1},
				{entry("e", 20, domain.ModeQuiz, 4), 4},
			} {
				rank, err := st.Insert(ctx, tc.e)
				require.NoError(t, err)
				assert.Equal(t, tc.wantRank, rank, "rank of %s", tc.e.ID)
			}

			top, err := st.Top(ctx, domain.ModeQuiz, 3)
			require.NoError(t, err)
			assert.Equal(t, []string{"b", "a", "c"}, ids(top), "score desc, earlier first on ties")

			all, err := st.Top(ctx, "", 10)
			require.NoError(t, err)
			assert.Len(t, all, 5)

			typing, err := st.Top(ctx, domain.ModeTyping, 10)
			require.NoError(t, err)
			require.Len(t, typing, 1)
			assert.Equal(t, "player d", typing[0].Name)
			assert.True(t, typing[0].SubmitTime.Equal(base.Add(3*time.Second)))
		})
	}
}

func TestStore_Capacity(t *testing.T) {
	for name, newStore := range map[string]func(t *testing.T) leaderboard.Store{
		"memory": func(t *testing.T) leaderboard.Store { return leaderboard.NewMemoryStore(3) },
		"redis": func(t *testing.T) leaderboard.Store {
			rs := miniredis.RunT(t)
			rc := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{rs.Addr()}})
			return leaderboard.NewRedisStore(rc, "test", 3)
		},
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := newStore(t)

			for i := range 5 {
				_, err := st.Insert(ctx, domain.LeaderboardEntry{ID: fmt.Sprint(i), Score: i * 10, Mode: domain.ModeQuiz})
				require.NoError(t, err)
			}

			top, err := st.Top(ctx, domain.ModeQuiz, 10)
			require.NoError(t, err)
			assert.Equal(t, []string{"4", "3", "2"}, ids(top), "only the best entries are kept")
		})
	}
}

func TestService_Submit(t *testing.T) {
	type (
		inputs struct {
			quizScore int
			req       leaderboard.SubmitRequest
		}

		outputs struct {
			resp            *leaderboard.SubmitResponse
			err             error
			publishedEvents []domain.EventLeaderboardUpdated
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"should store the verified score and publish leaderboard.updated": {
			arrange: func() inputs {
				return inputs{
					quizScore: 3,
					req:       leaderboard.SubmitRequest{Name: "  Ada ", Mode: domain.ModeQuiz, Score: 1, Category: "go"},
				}
			},
			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err)
				assert.Equal(t, 3, out.resp.Entry.Score, "the verified score is stored, not the claim")
				assert.Equal(t, "Ada", out.resp.Entry.Name)
				assert.Equal(t, "go", out.resp.Entry.Category)
				assert.NotEmpty(t, out.resp.Entry.ID)
				assert.Equal(t, 1, out.resp.Rank)

				require.Len(t, out.publishedEvents, 1)
				assert.Equal(t, out.resp.Entry, out.publishedEvents[0].Entry)
			},
		},

		"should default an empty name": {
			arrange: func() inputs {
				return inputs{req: leaderboard.SubmitRequest{Name: "", Mode: domain.ModeQuiz}}
			},
			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err)
				assert.Equal(t, "Anonymous", out.resp.Entry.Name)
			},
		},

		"should truncate names to 30 characters": {
			arrange: func() inputs {
				return inputs{req: leaderboard.SubmitRequest{Name: strings.Repeat("é", 40), Mode: domain.ModeQuiz}}
			},
			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err)
				assert.Equal(t, strings.Repeat("é", 30), out.resp.Entry.Name)
			},
		},

		"should reject a missing mode": {
			arrange: func() inputs {
				return inputs{req: leaderboard.SubmitRequest{Name: "x"}}
			},
			assert: func(t *testing.T, out outputs) {
				assertInvalid(t, out.err, "mode is required")
				assert.Empty(t, out.publishedEvents)
			},
		},

		"should reject an unknown mode": {
			arrange: func() inputs {
				return inputs{req: leaderboard.SubmitRequest{Mode: "chess"}}
			},
			assert: func(t *testing.T, out outputs) {
				assertInvalid(t, out.err, "invalid mode")
			},
		},

		"should reject a negative score": {
			arrange: func() inputs {
				return inputs{req: leaderboard.SubmitRequest{Mode: domain.ModeTyping, Score: -5}}
			},
			assert: func(t *testing.T, out outputs) {
				assertInvalid(t, out.err, "invalid score")
			},
		},

		"should reject a claim above the verified score": {
			arrange: func() inputs {
				return inputs{quizScore: 2, req: leaderboard.SubmitRequest{Mode: domain.ModeQuiz, Score: 9}}
			},
			assert: func(t *testing.T, out outputs) {
				require.True(t, stderrors.Is(out.err, errors.ScoreRejected("")), "got %v", out.err)
				assert.Empty(t, out.publishedEvents)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			in, out := tt.arrange(), outputs{}

			eb := event.NewBus()

			var mu sync.Mutex
			eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
				mu.Lock()
				out.publishedEvents = append(out.publishedEvents, e.(domain.EventLeaderboardUpdated))
				mu.Unlock()
				return nil
			})

			f := makeFixture(t, withEventBus(eb))
			f.earnQuizScore(t, "s1", in.quizScore)

			in.req.SessionID = "s1"
			out.resp, out.err = f.s.Submit(context.Background(), in.req)

			eb.Stop()

			tt.assert(t, out)
		})
	}
}

func TestService_SubmitCooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f := makeFixture(t, withNow(func() time.Time { return now }))

	req := leaderboard.SubmitRequest{SessionID: "s1", Mode: domain.ModeQuiz}
	_, err := f.s.Submit(context.Background(), req)
	require.NoError(t, err)

	_, err = f.s.Submit(context.Background(), req)
	assert.True(t, stderrors.Is(err, errors.CooldownActive("")), "got %v", err)

	now = now.Add(time.Minute)
	_, err = f.s.Submit(context.Background(), req)
	assert.NoError(t, err)

	_, err = f.s.Submit(context.Background(), leaderboard.SubmitRequest{SessionID: "s2", Mode: domain.ModeQuiz})
	assert.NoError(t, err, "the cooldown is per session")
}

func TestService_Top(t *testing.T) {
	f := makeFixture(t)

	l, err := f.s.Top(context.Background(), leaderboard.TopRequest{})
	require.NoError(t, err)
	assert.NotNil(t, l.Entries, "an empty board is an empty list")

	_, err = f.s.Top(context.Background(), leaderboard.TopRequest{Mode: "chess"})
	assertInvalid(t, err, "invalid mode")

	f.earnQuizScore(t, "s1", 2)
	_, err = f.s.Submit(context.Background(), leaderboard.SubmitRequest{SessionID: "s1", Mode: domain.ModeQuiz, Name: "Ada"})
	require.NoError(t, err)

	l, err = f.s.Top(context.Background(), leaderboard.TopRequest{Mode: domain.ModeQuiz})
	require.NoError(t, err)
	require.Len(t, l.Entries, 1)
	assert.Equal(t, domain.ModeQuiz, l.Mode)
	assert.Equal(t, 2, l.Entries[0].Score)
}

type fixture struct {
	s       *leaderboard.Service
	session *session.Service
	store   session.Store
}

// earnQuizScore plays a quiz of n questions, answering every one correctly.
func (f *fixture) earnQuizScore(t *testing.T, sessionID string, n int) {
	t.Helper()
	ctx := context.Background()

	if n == 0 {
		return
	}
	for i := range n {
		_, err := f.session.MarkRead(ctx, session.MarkReadRequest{SessionID: sessionID, Title: fmt.Sprintf("Lesson %d", i)})
		require.NoError(t, err)
	}
	_, err := f.session.StartQuiz(ctx, sessionID)
	require.NoError(t, err)

	for range n {
		resp, err := f.session.Answer(ctx, session.AnswerRequest{SessionID: sessionID, AnswerIndex: f.correctIndex(t, sessionID)})
		require.NoError(t, err)
		require.True(t, resp.Correct)
	}
}

func (f *fixture) correctIndex(t *testing.T, sessionID string) int {
	ss, err := f.store.Get(context.Background(), sessionID)
	require.NoError(t, err)
	return ss.Quiz.Current().CorrectOptionIndex
}

type options func(c *leaderboard.Config)

func withEventBus(eb *event.Bus) options {
	return func(c *leaderboard.Config) {
		c.EventBus = eb
	}
}

func withNow(now func() time.Time) options {
	return func(c *leaderboard.Config) {
		c.Now = now
	}
}

func makeFixture(t *testing.T, opts ...options) *fixture {
	t.Helper()

	var lessons []domain.Lesson
	for i := range 10 {
		lessons = append(lessons, domain.Lesson{
			Title:    fmt.Sprintf("Lesson %d", i),
			Category: "go",
			Explain:  fmt.Sprintf("Explanation %d", i),
		})
	}
	cat, err := catalog.New(context.Background(), catalog.Config{Lessons: lessons})
	require.NoError(t, err)

	c := leaderboard.Config{
		EventBus: event.NewBus(),
	}
	for _, opt := range opts {
		opt(&c)
	}

	store := session.NewMemoryStore(0)
	c.Session = session.NewService(session.Config{
		Store:   store,
		Catalog: cat,
		Now:     c.Now,
	})

	return &fixture{
		s:       leaderboard.NewService(c),
		session: c.Session,
		store:   store,
	}
}

func assertInvalid(t *testing.T, err error, msg string) {
	t.Helper()

	require.True(t, stderrors.Is(err, errors.InvalidArgument("")), "got %v", err)
	assert.Equal(t, msg, errors.Convert(err).Message)
}

func ids(es []domain.LeaderboardEntry) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.ID)
	}
	return out
}
