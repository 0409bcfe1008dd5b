package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/victornm/avidquiz/internal/catalog"
	"github.com/victornm/avidquiz/internal/challenge"
	"github.com/victornm/avidquiz/internal/domain"
	"github.com/victornm/avidquiz/internal/event"
	"github.com/victornm/avidquiz/internal/generator"
	"github.com/victornm/avidquiz/internal/leaderboard"
	"github.com/victornm/avidquiz/internal/session"
)

type Config struct {
	HTTP gin.IRouter
	GRPC grpc.ServiceRegistrar

	EventBus    *event.Bus
	Catalog     *catalog.Catalog
	Session     *session.Service
	Generator   *generator.Service
	Challenge   *challenge.Service
	Leaderboard *leaderboard.Service

	// Redis receives notifications; nil disables them.
	Redis        Redis
	PubsubPrefix string

	AllowedOrigin string
	SecureCookie  bool
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	cat *catalog.Catalog
	qss *session.Service
	gs  *generator.Service
	cs  *challenge.Service
	ls  *leaderboard.Service

	redis  Redis
	prefix string

	secureCookie bool
}

func New(c Config) *API {
	a := &API{
		cat:          c.Catalog,
		qss:          c.Session,
		gs:           c.Generator,
		cs:           c.Challenge,
		ls:           c.Leaderboard,
		redis:        c.Redis,
		prefix:       c.PubsubPrefix,
		secureCookie: c.SecureCookie,
	}

	// HTTP APIs
	if c.HTTP != nil {
		a.registerHTTP(c.HTTP, c.AllowedOrigin)
	}

	// gRPC APIs
	if c.GRPC != nil {
		RegisterSessionServiceServer(c.GRPC, a)
	}

	// Register event handlers
	if a.redis != nil {
		c.EventBus.Subscribe(domain.EventNameQuizFinished, func(ctx context.Context, e event.Event) error {
			return a.PublishQuizFinished(ctx, e.(domain.EventQuizFinished))
		})
		c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
			return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
		})
	}

	return a
}

// QuizState is the session state returned by the lesson and quiz stages.
// Correct grades the last answer and CorrectCount is the running tally.
type QuizState struct {
	Stage        string         `json:"stage"`
	Lesson       *domain.Lesson `json:"lesson,omitempty"`
	Question     string         `json:"question,omitempty"`
	Options      []string       `json:"options,omitempty"`
	Index        int            `json:"index,omitempty"`
	Total        int            `json:"total,omitempty"`
	Correct      bool           `json:"correct"`
	CorrectCount int            `json:"correctCount"`
	CoinsEarned  int            `json:"coinsEarned,omitempty"`
	XPEarned     int            `json:"xpEarned,omitempty"`
	CoinsTotal   int            `json:"coinsTotal"`
	XPTotal      int            `json:"xpTotal"`
	Streak       int            `json:"streak"`
	More         bool           `json:"more"`
	Message      string         `json:"message,omitempty"`
}

func lessonState(l domain.Lesson, t domain.Totals) *QuizState {
	return &QuizState{
		Stage:      "lesson",
		Lesson:     &l,
		CoinsTotal: t.Coins,
		XPTotal:    t.XP,
		Streak:     t.Streak,
	}
}

func questionState(q session.QuestionView, t domain.Totals) *QuizState {
	return &QuizState{
		Stage:      string(session.StageQuiz),
		Question:   q.Prompt,
		Options:    q.Options,
		Index:      q.Index,
		Total:      q.Total,
		CoinsTotal: t.Coins,
		XPTotal:    t.XP,
		Streak:     t.Streak,
		More:       true,
	}
}

func answerState(r *session.AnswerResponse) *QuizState {
	st := &QuizState{
		Stage:        string(r.Stage),
		Correct:      r.Correct,
		CorrectCount: r.CorrectCount,
		CoinsEarned:  r.CoinsEarned,
		XPEarned:     r.XPEarned,
		Total:        r.Total,
		CoinsTotal:   r.Totals.Coins,
		XPTotal:      r.Totals.XP,
		Streak:       r.Totals.Streak,
		Message:      r.Message,
	}

	if r.Next != nil {
		st.Question = r.Next.Prompt
		st.Options = r.Next.Options
		st.Index = r.Next.Index
		st.More = true
	}

	return st
}
