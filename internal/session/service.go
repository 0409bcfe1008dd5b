package session

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/victornm/avidquiz/internal/catalog"
	"github.com/victornm/avidquiz/internal/domain"
	"github.com/victornm/avidquiz/internal/errors"
	"github.com/victornm/avidquiz/internal/event"
	"github.com/victornm/avidquiz/internal/quiz"
	"github.com/victornm/avidquiz/internal/telemetry"
)

const (
	defaultFallbackSize  = 5
	defaultRepeatWindow  = 100
	defaultScoreCooldown = time.Minute
)

type Config struct {
	Store    Store
	Catalog  *catalog.Catalog
	EventBus *event.Bus

	// Rewards defaults to quiz.DefaultRewards when nil. Zero amounts are kept.
	Rewards *quiz.Rewards

	// FallbackSize bounds the number of lessons quizzed when nothing was read.
	FallbackSize int
	// RepeatWindow is how many recently served lessons are avoided.
	// Negative disables avoidance.
	RepeatWindow int
	// ScoreCooldown is the minimum time between two leaderboard submissions.
	// Negative disables it.
	ScoreCooldown time.Duration

	NewRand func() *rand.Rand
	Now     func() time.Time
}

// Service tracks per-session reading, quizzes and rewards. Every mutation is
// applied through Store.Update and is therefore atomic per session.
type Service struct {
	store   Store
	catalog *catalog.Catalog
	eb      *event.Bus
	rewards quiz.Rewards

	fallbackSize  int
	repeatWindow  int
	scoreCooldown time.Duration

	newRand func() *rand.Rand
	now     func() time.Time
}

func NewService(c Config) *Service {
	s := &Service{
		store:         c.Store,
		catalog:       c.Catalog,
		eb:            c.EventBus,
		fallbackSize:  c.FallbackSize,
		repeatWindow:  c.RepeatWindow,
		scoreCooldown: c.ScoreCooldown,
		newRand:       c.NewRand,
		now:           c.Now,
	}

	s.rewards = quiz.DefaultRewards()
	if c.Rewards != nil {
		s.rewards = *c.Rewards
	}
	if s.fallbackSize <= 0 {
		s.fallbackSize = defaultFallbackSize
	}
	if s.repeatWindow == 0 {
		s.repeatWindow = defaultRepeatWindow
	}
	if s.scoreCooldown == 0 {
		s.scoreCooldown = defaultScoreCooldown
	}
	if s.newRand == nil {
		s.newRand = func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		}
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s
}

// QuestionView is a question as shown to the client: no correct index.
type QuestionView struct {
	Prompt  string
	Options []string
	Index   int
	Total   int
}

func viewOf(q *domain.Quiz) QuestionView {
	cur := q.Current()
	return QuestionView{
		Prompt:  cur.Prompt,
		Options: append([]string(nil), cur.Options...),
		Index:   q.CurrentIndex + 1,
		Total:   q.Total(),
	}
}

type NextLessonRequest struct {
	SessionID string
	Category  string
	Source    string
}

type NextLessonResponse struct {
	Lesson domain.Lesson
	Totals domain.Totals
}

// NextLesson picks a lesson for the session, avoiding the ones it was served
// recently when other candidates exist.
func (s *Service) NextLesson(ctx context.Context, req NextLessonRequest) (*NextLessonResponse, error) {
	var resp NextLessonResponse

	_, err := s.store.Update(ctx, req.SessionID, func(ss *domain.Session) error {
		pool := s.catalog.Candidates(req.Category, req.Source)
		if len(pool) == 0 {
			return errors.NotFound("no lessons for category=%q source=%q", req.Category, req.Source)
		}

		selection := s.avoidRecent(pool, ss.RecentLessons)
		chosen := selection[s.newRand().IntN(len(selection))]

		ss.RecentLessons = append(ss.RecentLessons, chosen.Title)
		if s.repeatWindow > 0 && len(ss.RecentLessons) > 2*s.repeatWindow {
			ss.RecentLessons = slices.Clone(ss.RecentLessons[len(ss.RecentLessons)-s.repeatWindow:])
		}
		ss.LastLesson = chosen.Title

		resp = NextLessonResponse{Lesson: chosen, Totals: ss.Totals()}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &resp, nil
}

func (s *Service) avoidRecent(pool []domain.Lesson, recent []string) []domain.Lesson {
	maxAvoid := min(s.repeatWindow, len(pool)-1)
	if maxAvoid <= 0 {
		return pool
	}

	avoid := make(map[string]struct{}, maxAvoid)
	for i := len(recent) - 1; i >= 0 && len(avoid) < maxAvoid; i-- {
		if recent[i] != "" {
			avoid[recent[i]] = struct{}{}
		}
	}

	var candidates []domain.Lesson
	for _, l := range pool {
		if _, ok := avoid[l.Title]; !ok {
			candidates = append(candidates, l)
		}
	}
	if len(candidates) == 0 {
		return pool
	}
	return candidates
}

type MarkReadRequest struct {
	SessionID string
	Title     string
}

type MarkReadResponse struct {
	ReadTitles []string
	Known      bool
}

// MarkRead adds a catalog lesson to the read-set. It is idempotent. Unknown
// titles are ignored so a stale client does not break the reading flow.
func (s *Service) MarkRead(ctx context.Context, req MarkReadRequest) (*MarkReadResponse, error) {
	_, known := s.catalog.Find(req.Title)
	if !known {
		slog.WarnContext(ctx, "session: mark read of unknown lesson", "session", req.SessionID, "title", req.Title)
	}

	ss, err := s.store.Update(ctx, req.SessionID, func(ss *domain.Session) error {
		if known && !ss.HasRead(req.Title) {
			ss.ReadTitles = append(ss.ReadTitles, req.Title)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.eb.Publish(ctx, domain.EventLessonRead{
		SessionID: req.SessionID,
		Title:     req.Title,
		Known:     known,
	})

	return &MarkReadResponse{ReadTitles: ss.ReadTitles, Known: known}, nil
}

// Totals returns the cumulative rewards of a session.
func (s *Service) Totals(ctx context.Context, sessionID string) (domain.Totals, error) {
	ss, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return domain.Totals{}, err
	}
	return ss.Totals(), nil
}

// ApplyReward adds the deltas, which may be negative, clamping totals at 0.
func (s *Service) ApplyReward(ctx context.Context, sessionID string, coinsDelta, xpDelta int) (domain.Totals, error) {
	ss, err := s.store.Update(ctx, sessionID, func(ss *domain.Session) error {
		applyReward(ss, coinsDelta, xpDelta)
		return nil
	})
	if err != nil {
		return domain.Totals{}, err
	}
	return ss.Totals(), nil
}

func applyReward(ss *domain.Session, coinsDelta, xpDelta int) {
	ss.CoinsTotal = max(ss.CoinsTotal+coinsDelta, 0)
	ss.XPTotal = max(ss.XPTotal+xpDelta, 0)
}

func onCorrectAnswer(ss *domain.Session) int {
	ss.Streak++
	return ss.Streak
}

func onWrongAnswer(ss *domain.Session) int {
	ss.Streak = 0
	return ss.Streak
}

type StartQuizResponse struct {
	Question QuestionView
	Totals   domain.Totals
	// Fallback is set when the quiz was drawn from the catalog because
	// nothing had been read.
	Fallback bool
}

// StartQuiz builds a quiz from the read-set, or from a bounded random sample
// of the catalog when nothing was read, and returns its first question.
// A quiz already in progress is replaced.
func (s *Service) StartQuiz(ctx context.Context, sessionID string) (*StartQuizResponse, error) {
	var resp StartQuizResponse

	_, err := s.store.Update(ctx, sessionID, func(ss *domain.Session) error {
		rng := s.newRand()

		var lessons []domain.Lesson
		for _, title := range ss.ReadTitles {
			if l, ok := s.catalog.Find(title); ok {
				lessons = append(lessons, l)
			}
		}

		fallback := len(lessons) == 0
		if fallback {
			lessons = s.catalog.Sample(s.fallbackSize, rng)
		}
		if len(lessons) == 0 {
			return errors.NoQuizAvailable()
		}

		ss.Quiz = quiz.Build(lessons, s.catalog.All(), rng)
		ss.QuizScore = 0

		resp = StartQuizResponse{
			Question: viewOf(ss.Quiz),
			Totals:   ss.Totals(),
			Fallback: fallback,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	telemetry.QuizzesStarted.Inc()
	return &resp, nil
}

// CurrentQuestion returns the question awaiting an answer.
func (s *Service) CurrentQuestion(ctx context.Context, sessionID string) (*StartQuizResponse, error) {
	ss, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if ss.Quiz == nil || ss.Quiz.Done() {
		return nil, errors.NoActiveQuiz()
	}

	return &StartQuizResponse{Question: viewOf(ss.Quiz), Totals: ss.Totals()}, nil
}

type Stage string

const (
	StageQuiz   Stage = "quiz"
	StageResult Stage = "result"
)

type AnswerRequest struct {
	SessionID   string
	AnswerIndex int
}

type AnswerResponse struct {
	Stage Stage
	// Correct grades the answer just given.
	Correct bool
	// CoinsEarned is the reward of this answer while the quiz goes on, and
	// of the whole quiz in the result stage.
	CoinsEarned  int
	XPEarned     int
	CorrectCount int
	Total        int
	// Next is set in the quiz stage.
	Next    *QuestionView
	Totals  domain.Totals
	Message string
}

// Answer grades the current question and advances the quiz. The last answer
// finalizes the quiz: XP is awarded, the quiz and the read-set are cleared.
func (s *Service) Answer(ctx context.Context, req AnswerRequest) (*AnswerResponse, error) {
	var (
		resp     AnswerResponse
		finished *domain.EventQuizFinished
	)

	_, err := s.store.Update(ctx, req.SessionID, func(ss *domain.Session) error {
		resp, finished = AnswerResponse{}, nil

		q := ss.Quiz
		if q == nil || q.Done() {
			return errors.NoActiveQuiz()
		}

		cur := q.Current()
		resp.Correct = cur.IsCorrect(req.AnswerIndex)
		if resp.Correct {
			q.CorrectCount++
			onCorrectAnswer(ss)
			q.CoinsEarned += s.rewards.CoinsPerCorrect
			applyReward(ss, s.rewards.CoinsPerCorrect, 0)
			resp.CoinsEarned = s.rewards.CoinsPerCorrect
			resp.Message = fmt.Sprintf("Correct! +%d coins", s.rewards.CoinsPerCorrect)
		} else {
			onWrongAnswer(ss)
			resp.Message = "Not quite. Keep going!"
		}
		q.CurrentIndex++

		resp.CorrectCount = q.CorrectCount
		resp.Total = q.Total()

		if !q.Done() {
			next := viewOf(q)
			resp.Stage = StageQuiz
			resp.Next = &next
			resp.Totals = ss.Totals()
			return nil
		}

		xp := s.rewards.XP(q.CorrectCount, q.Total())
		applyReward(ss, 0, xp)
		ss.QuizScore = q.CorrectCount
		ss.Quiz = nil
		ss.ReadTitles = nil

		resp.Stage = StageResult
		resp.CoinsEarned = q.CoinsEarned
		resp.XPEarned = xp
		resp.Totals = ss.Totals()
		resp.Message = quiz.Message(q.CorrectCount, q.Total(), q.CoinsEarned, xp)

		finished = &domain.EventQuizFinished{
			SessionID:    req.SessionID,
			Total:        q.Total(),
			CorrectCount: q.CorrectCount,
			CoinsEarned:  q.CoinsEarned,
			XPEarned:     xp,
			Totals:       ss.Totals(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	telemetry.AnswersGraded.WithLabelValues(outcome(resp.Correct)).Inc()
	if finished != nil {
		telemetry.QuizzesFinished.Inc()
		s.eb.Publish(ctx, *finished)
	}

	return &resp, nil
}

func outcome(correct bool) string {
	if correct {
		return "correct"
	}
	return "wrong"
}

type HintRequest struct {
	SessionID   string
	ChallengeID string
	Hints       []string
	Cost        int
}

type HintResponse struct {
	Hint    string
	Index   int
	HasMore bool
	Totals  domain.Totals
}

// AdvanceHint charges the hint cost and moves to the next hint of a
// challenge. Once all hints were given the last one is repeated.
func (s *Service) AdvanceHint(ctx context.Context, req HintRequest) (*HintResponse, error) {
	var resp HintResponse

	_, err := s.store.Update(ctx, req.SessionID, func(ss *domain.Session) error {
		applyReward(ss, -req.Cost, 0)
		if ss.HintIndex == nil {
			ss.HintIndex = make(map[string]int)
		}

		idx := ss.HintIndex[req.ChallengeID]
		resp = HintResponse{}
		switch {
		case idx < len(req.Hints):
			resp.Hint = req.Hints[idx]
			idx++
			resp.HasMore = idx < len(req.Hints)
		case len(req.Hints) > 0:
			resp.Hint = req.Hints[len(req.Hints)-1]
			idx = len(req.Hints)
		}
		ss.HintIndex[req.ChallengeID] = idx

		resp.Index = idx
		resp.Totals = ss.Totals()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &resp, nil
}

// CreditChallenge pays the reward of a passed challenge.
func (s *Service) CreditChallenge(ctx context.Context, sessionID string, r domain.Reward) (domain.Totals, error) {
	ss, err := s.store.Update(ctx, sessionID, func(ss *domain.Session) error {
		applyReward(ss, r.Coins, r.XP)
		ss.CodingScore += max(r.XP, 0)
		return nil
	})
	if err != nil {
		return domain.Totals{}, err
	}
	return ss.Totals(), nil
}

// RecordTypingScore keeps the best typing drill score and returns it.
func (s *Service) RecordTypingScore(ctx context.Context, sessionID string, score int) (int, error) {
	if score < 0 {
		return 0, errors.InvalidArgument("invalid score")
	}

	ss, err := s.store.Update(ctx, sessionID, func(ss *domain.Session) error {
		ss.TypingBest = max(ss.TypingBest, score)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return ss.TypingBest, nil
}

type ClaimScoreRequest struct {
	SessionID string
	Mode      domain.Mode
	Score     int
}

// ClaimScore checks a leaderboard claim against what the server recorded for
// the session and starts the submission cooldown. It returns the verified
// score, which is what gets published.
func (s *Service) ClaimScore(ctx context.Context, req ClaimScoreRequest) (int, error) {
	var verified int

	_, err := s.store.Update(ctx, req.SessionID, func(ss *domain.Session) error {
		v, ok := ss.VerifiedScore(req.Mode)
		if !ok {
			return errors.InvalidArgument("invalid mode %q", req.Mode)
		}
		if req.Score < 0 {
			return errors.InvalidArgument("invalid score")
		}
		if req.Score > v {
			return errors.ScoreRejected("invalid score: server validation failed")
		}

		now := s.now()
		if now.Sub(ss.LastScoreSubmit) < s.scoreCooldown {
			return errors.CooldownActive("please wait before submitting another score")
		}
		ss.LastScoreSubmit = now

		verified = v
		return nil
	})
	if err != nil {
		return 0, err
	}

	return verified, nil
}
