package challenge_test

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/avidquiz/internal/catalog"
	"github.com/victornm/avidquiz/internal/challenge"
	"github.com/victornm/avidquiz/internal/domain"
	"github.com/victornm/avidquiz/internal/errors"
	"github.com/victornm/avidquiz/internal/session"
)

var challenges = []domain.Challenge{
	{
		ID:         "worker-pool-backpressure",
		Title:      "Worker pool with backpressure",
		Difficulty: "advanced",
		Topics:     []string{"concurrency", "channels"},
		Hints:      []string{"use a buffered channel", "close jobs when done"},
		Reward:     domain.Reward{XP: 40, Coins: 15},
	},
	{
		ID:         "clean-error-wrap",
		Title:      "Wrap errors cleanly",
		Difficulty: "intermediate",
		Topics:     []string{"errors"},
		Hints:      []string{"use %w"},
		Reward:     domain.Reward{XP: 20, Coins: 5},
	},
}

func TestSet_Pick(t *testing.T) {
	set, err := challenge.NewSet(challenges)
	require.NoError(t, err)

	tests := map[string]struct {
		difficulty string
		topic      string
		wantID     string
		wantErr    bool
	}{
		"should default to advanced":               {wantID: "worker-pool-backpressure"},
		"should match difficulty case-insensitive": {difficulty: "Intermediate", wantID: "clean-error-wrap"},
		"should match topic case-insensitive":      {difficulty: "any", topic: "ERRORS", wantID: "clean-error-wrap"},
		"should treat any topic as no filter":      {topic: "any", wantID: "worker-pool-backpressure"},
		"should fail when nothing matches":         {difficulty: "advanced", topic: "errors", wantErr: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			ch, err := set.Pick(tt.difficulty, tt.topic, rand.New(rand.NewPCG(1, 2)))
			if tt.wantErr {
				assert.True(t, stderrors.Is(err, errors.NotFound("")), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, ch.ID)
		})
	}
}

func TestNewSet_RejectsBadIDs(t *testing.T) {
	for _, id := range []string{"", "../etc", "a/b"} {
		_, err := challenge.NewSet([]domain.Challenge{{ID: id}})
		assert.Error(t, err, "id %q", id)
	}

	_, err := challenge.NewSet([]domain.Challenge{{ID: "x"}, {ID: "x"}})
	assert.Error(t, err, "duplicate id")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "challenges.json")
	b, err := json.Marshal(challenges)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o644))

	set, err := challenge.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())

	ch, err := set.Get("clean-error-wrap")
	require.NoError(t, err)
	assert.Equal(t, []string{"use %w"}, ch.Hints)
}

func TestService_Hint(t *testing.T) {
	ctx := context.Background()
	f := makeFixture(t, nil)

	_, err := f.session.ApplyReward(ctx, "s1", 3, 0)
	require.NoError(t, err)

	r, err := f.s.Hint(ctx, challenge.HintRequest{SessionID: "s1", ID: "worker-pool-backpressure"})
	require.NoError(t, err)
	assert.Equal(t, "use a buffered channel", r.Hint)
	assert.True(t, r.HasMore)
	assert.Equal(t, 1, r.Totals.Coins)

	_, err = f.s.Hint(ctx, challenge.HintRequest{SessionID: "s1", ID: "nope"})
	assert.True(t, stderrors.Is(err, errors.NotFound("")), "got %v", err)

	_, err = f.s.Hint(ctx, challenge.HintRequest{SessionID: "s1"})
	assert.True(t, stderrors.Is(err, errors.InvalidArgument("")), "got %v", err)
}

func TestService_Submit(t *testing.T) {
	type judgeReply struct {
		status int
		result challenge.Result
	}

	tests := map[string]struct {
		reply  judgeReply
		code   string
		assert func(t *testing.T, f *fixture, resp *challenge.SubmitResponse, err error, calls int)
	}{
		"should credit the reward when all tests pass": {
			reply: judgeReply{status: http.StatusOK, result: challenge.Result{Passed: true, Total: 3}},
			code:  "package challenge",
			assert: func(t *testing.T, f *fixture, resp *challenge.SubmitResponse, err error, calls int) {
				require.NoError(t, err)
				assert.True(t, resp.Passed)
				assert.Equal(t, 3, resp.Total)
				assert.Equal(t, 15, resp.CoinsEarned)
				assert.Equal(t, 40, resp.XPEarned)
				assert.Equal(t, domain.Totals{Coins: 15, XP: 40}, resp.Totals)
				assert.Equal(t, "All tests passed! +15 coins · +40 XP", resp.Message)

				score, err := f.session.ClaimScore(context.Background(), session.ClaimScoreRequest{SessionID: "s1", Mode: domain.ModeCoding, Score: 40})
				require.NoError(t, err)
				assert.Equal(t, 40, score, "coding score tracks earned XP")
			},
		},

		"should return failures without credit": {
			reply: judgeReply{status: http.StatusOK, result: challenge.Result{
				Total:    3,
				Failures: []challenge.Failure{{Name: "TestPool", Output: "deadlock"}},
				Stderr:   "FAIL",
			}},
			code: "package challenge",
			assert: func(t *testing.T, f *fixture, resp *challenge.SubmitResponse, err error, calls int) {
				require.NoError(t, err)
				assert.False(t, resp.Passed)
				require.Len(t, resp.Failures, 1)
				assert.Equal(t, "TestPool", resp.Failures[0].Name)

				totals, err := f.session.Totals(context.Background(), "s1")
				require.NoError(t, err)
				assert.Equal(t, domain.Totals{}, totals)
			},
		},

		"should not call the judge for empty code": {
			code: "   ",
			assert: func(t *testing.T, f *fixture, resp *challenge.SubmitResponse, err error, calls int) {
				require.NoError(t, err)
				assert.False(t, resp.Passed)
				assert.Equal(t, "no code submitted", resp.Failures[0].Output)
				assert.Equal(t, 0, calls)
			},
		},

		"should report a judge outage as unavailable": {
			reply: judgeReply{status: http.StatusBadGateway},
			code:  "package challenge",
			assert: func(t *testing.T, f *fixture, resp *challenge.SubmitResponse, err error, calls int) {
				require.Error(t, err)
				assert.Equal(t, errors.CodeUnavailable, errors.Convert(err).Code)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var calls int
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				assert.Equal(t, "/run", r.URL.Path)

				var body struct{ ID, Code string }
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "worker-pool-backpressure", body.ID)

				w.WriteHeader(tt.reply.status)
				_ = json.NewEncoder(w).Encode(tt.reply.result)
			}))
			t.Cleanup(srv.Close)

			f := makeFixture(t, challenge.NewHTTPJudge(srv.URL, 0))
			resp, err := f.s.Submit(context.Background(), challenge.SubmitRequest{
				SessionID: "s1",
				ID:        "worker-pool-backpressure",
				Code:      tt.code,
			})
			tt.assert(t, f, resp, err, calls)
		})
	}
}

func TestService_SubmitWithoutJudge(t *testing.T) {
	f := makeFixture(t, nil)

	_, err := f.s.Submit(context.Background(), challenge.SubmitRequest{SessionID: "s1", ID: "clean-error-wrap", Code: "package x"})
	assert.Equal(t, errors.CodeUnavailable, errors.Convert(err).Code)
}

type fixture struct {
	s       *challenge.Service
	session *session.Service
}

func makeFixture(t *testing.T, judge challenge.Judge) *fixture {
	t.Helper()

	set, err := challenge.NewSet(challenges)
	require.NoError(t, err)

	cat, err := catalog.New(context.Background(), catalog.Config{})
	require.NoError(t, err)

	ss := session.NewService(session.Config{
		Store:   session.NewMemoryStore(0),
		Catalog: cat,
	})

	return &fixture{
		session: ss,
		s: challenge.NewService(challenge.Config{
			Challenges: set,
			Judge:      judge,
			Session:    ss,
		}),
	}
}
