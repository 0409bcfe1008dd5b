package leaderboard

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/victornm/avidquiz/internal/domain"
	"github.com/victornm/avidquiz/internal/errors"
	"github.com/victornm/avidquiz/internal/event"
	"github.com/victornm/avidquiz/internal/session"
	"github.com/victornm/avidquiz/internal/telemetry"
)

const (
	defaultCapacity = 1000
	defaultLimit    = 100
	anonymous       = "Anonymous"
	maxNameLen      = 30
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type Config struct {
	EventBus *event.Bus
	Store    Store
	Session  *session.Service
	Now      func() time.Time
}

type Service struct {
	eb      *event.Bus
	store   Store
	session *session.Service
	now     func() time.Time
}

func NewService(c Config) *Service {
	s := &Service{
		eb:      c.EventBus,
		store:   c.Store,
		session: c.Session,
		now:     c.Now,
	}

	if s.store == nil {
		s.store = NewMemoryStore(defaultCapacity)
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s
}

type SubmitRequest struct {
	SessionID string `validate:"required"`
	Name      string
	Mode      domain.Mode `validate:"required,oneof=quiz typing coding"`
	Score     int         `validate:"gte=0"`
	Category  string      `validate:"max=100"`
}

type SubmitResponse struct {
	Entry domain.LeaderboardEntry
	Rank  int
}

// Submit publishes the score the server verified for the session. The claimed
// score is only checked against it, never stored.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	score, err := s.session.ClaimScore(ctx, session.ClaimScoreRequest{
		SessionID: req.SessionID,
		Mode:      req.Mode,
		Score:     req.Score,
	})
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Internal(err)
	}

	entry := domain.LeaderboardEntry{
		ID:         id.String(),
		Name:       sanitizeName(req.Name),
		Score:      score,
		Mode:       req.Mode,
		Category:   strings.TrimSpace(req.Category),
		SubmitTime: s.now().UTC(),
	}

	rank, err := s.store.Insert(ctx, entry)
	if err != nil {
		return nil, err
	}

	telemetry.LeaderboardSubmissions.WithLabelValues(string(entry.Mode)).Inc()
	slog.InfoContext(ctx, "leaderboard: score submitted", "mode", entry.Mode, "score", entry.Score, "rank", rank)

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{Entry: entry, Rank: rank})

	return &SubmitResponse{Entry: entry, Rank: rank}, nil
}

type TopRequest struct {
	Mode  domain.Mode `validate:"omitempty,oneof=quiz typing coding"`
	Limit int         `validate:"gte=0"`
}

// Top lists the best entries, of one mode or of all modes when Mode is empty.
func (s *Service) Top(ctx context.Context, req TopRequest) (*domain.Leaderboard, error) {
	if err := validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	limit := req.Limit
	if limit == 0 || limit > defaultLimit {
		limit = defaultLimit
	}

	entries, err := s.store.Top(ctx, req.Mode, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}

	return &domain.Leaderboard{Mode: req.Mode, Entries: entries}, nil
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return anonymous
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		name = string([]rune(name)[:maxNameLen])
	}
	return name
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) || len(verrs) == 0 {
		return errors.InvalidArgument("invalid request")
	}

	fe := verrs[0]
	switch fe.Field() {
	case "Mode":
		if fe.Tag() == "required" {
			return errors.InvalidArgument("mode is required")
		}
		return errors.InvalidArgument("invalid mode")
	case "Score":
		return errors.InvalidArgument("invalid score")
	}
	return errors.InvalidArgument("invalid %s", strings.ToLower(fe.Field()))
}
