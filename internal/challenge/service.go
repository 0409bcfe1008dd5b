package challenge

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/victornm/avidquiz/internal/domain"
	"github.com/victornm/avidquiz/internal/errors"
	"github.com/victornm/avidquiz/internal/session"
)

const defaultHintCost = 2

type Config struct {
	Challenges *Set
	// Judge may be nil, submissions then fail with Unavailable.
	Judge    Judge
	Session  *session.Service
	HintCost int
	NewRand  func() *rand.Rand
}

// Service serves pro mode: challenge selection, paid hints and graded submissions.
type Service struct {
	set      *Set
	judge    Judge
	session  *session.Service
	hintCost int
	newRand  func() *rand.Rand
}

func NewService(c Config) *Service {
	s := &Service{
		set:      c.Challenges,
		judge:    c.Judge,
		session:  c.Session,
		hintCost: c.HintCost,
		newRand:  c.NewRand,
	}

	if s.set == nil {
		s.set, _ = NewSet(nil)
	}
	if s.hintCost <= 0 {
		s.hintCost = defaultHintCost
	}
	if s.newRand == nil {
		s.newRand = func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		}
	}

	return s
}

type PickRequest struct {
	Difficulty string
	Topic      string
}

func (s *Service) Pick(_ context.Context, req PickRequest) (domain.Challenge, error) {
	if s.set.Len() == 0 {
		return domain.Challenge{}, errors.New(errors.CodeUnavailable, errors.WithMessagef("no challenges available"))
	}
	return s.set.Pick(req.Difficulty, req.Topic, s.newRand())
}

type HintRequest struct {
	SessionID string
	ID        string
}

// Hint charges the hint cost and returns the next hint of the challenge.
func (s *Service) Hint(ctx context.Context, req HintRequest) (*session.HintResponse, error) {
	if req.ID == "" {
		return nil, errors.InvalidArgument("challenge id is required")
	}
	ch, err := s.set.Get(req.ID)
	if err != nil {
		return nil, err
	}

	return s.session.AdvanceHint(ctx, session.HintRequest{
		SessionID:   req.SessionID,
		ChallengeID: ch.ID,
		Hints:       ch.Hints,
		Cost:        s.hintCost,
	})
}

type SubmitRequest struct {
	SessionID string
	ID        string
	Code      string
}

type SubmitResponse struct {
	Result
	CoinsEarned int
	XPEarned    int
	Totals      domain.Totals
	Message     string
}

// Submit grades code with the judge and credits the reward when every test passed.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	ch, err := s.set.Get(req.ID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.Code) == "" {
		return &SubmitResponse{Result: Result{
			Failures: []Failure{{Name: "submission", Output: "no code submitted"}},
		}}, nil
	}

	if s.judge == nil {
		return nil, errors.New(errors.CodeUnavailable, errors.WithMessagef("code judge is not configured"))
	}

	res, err := s.judge.Run(ctx, ch.ID, req.Code)
	if err != nil {
		slog.ErrorContext(ctx, "challenge: judge failed", "challenge", ch.ID, "error", err)
		return nil, errors.New(errors.CodeUnavailable, errors.WithMessagef("test execution failed"), errors.WithCause(err))
	}

	resp := &SubmitResponse{Result: *res}
	if !res.Passed {
		return resp, nil
	}

	totals, err := s.session.CreditChallenge(ctx, req.SessionID, ch.Reward)
	if err != nil {
		return nil, err
	}

	resp.CoinsEarned = ch.Reward.Coins
	resp.XPEarned = ch.Reward.XP
	resp.Totals = totals
	resp.Message = fmt.Sprintf("All tests passed! +%d coins · +%d XP", ch.Reward.Coins, ch.Reward.XP)

	slog.InfoContext(ctx, "challenge: passed", "challenge", ch.ID, "session", req.SessionID)
	return resp, nil
}
