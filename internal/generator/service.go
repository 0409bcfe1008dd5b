package generator

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/victornm/avidquiz/internal/catalog"
	"github.com/victornm/avidquiz/internal/domain"
	"github.com/victornm/avidquiz/internal/errors"
	"github.com/victornm/avidquiz/internal/event"
	"github.com/victornm/avidquiz/internal/llm"
	"github.com/victornm/avidquiz/internal/telemetry"
)

const (
	defaultCategory  = "general"
	defaultMaxPerDay = 10
	defaultTimeout   = 30 * time.Second
)

type Config struct {
	Enabled bool
	// Provider may be nil when generation is disabled.
	Provider llm.Provider
	// MaxPerDay caps generated lessons per UTC day. 0 means the default,
	// negative means unlimited.
	MaxPerDay int
	Timeout   time.Duration

	Catalog  *catalog.Catalog
	EventBus *event.Bus
	Now      func() time.Time
}

// Service generates lessons with a language model and adds them to the catalog.
type Service struct {
	enabled   bool
	provider  llm.Provider
	maxPerDay int
	timeout   time.Duration

	catalog *catalog.Catalog
	eb      *event.Bus
	now     func() time.Time

	mu    sync.Mutex
	day   string
	count int
}

func NewService(c Config) *Service {
	s := &Service{
		enabled:   c.Enabled && c.Provider != nil,
		provider:  c.Provider,
		maxPerDay: c.MaxPerDay,
		timeout:   c.Timeout,
		catalog:   c.Catalog,
		eb:        c.EventBus,
		now:       c.Now,
	}

	if s.maxPerDay == 0 {
		s.maxPerDay = defaultMaxPerDay
	}
	if s.timeout <= 0 {
		s.timeout = defaultTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s
}

type ConfigReport struct {
	AIEnabled bool   `json:"aiEnabled"`
	Provider  string `json:"provider"`
	MaxPerDay int    `json:"maxPerDay"`
}

// Config reports whether generation is available to clients.
func (s *Service) Config() ConfigReport {
	r := ConfigReport{AIEnabled: s.enabled, MaxPerDay: s.maxPerDay}
	if s.provider != nil {
		r.Provider = s.provider.Name()
	}
	return r
}

type GenerateLessonRequest struct {
	Category string
	Topic    string
}

type GenerateLessonResponse struct {
	Lesson domain.Lesson
}

// GenerateLesson asks the model for a lesson on topic. The call holds no
// session state and may take tens of seconds.
func (s *Service) GenerateLesson(ctx context.Context, req GenerateLessonRequest) (*GenerateLessonResponse, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, errors.GenerationFailed(errors.CodeInvalidArgument, nil, "topic is required")
	}
	if !s.enabled {
		return nil, errors.GenerationFailed(errors.CodeUnavailable, nil, "AI lesson generation is currently disabled")
	}

	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = defaultCategory
	}

	if !s.reserve() {
		return nil, errors.GenerationFailed(errors.CodeResourceExhausted, nil, "daily AI lesson limit of %d reached", s.maxPerDay)
	}

	l, err := s.generate(ctx, category, topic)
	if err != nil {
		s.release()
		telemetry.LessonsGenerated.WithLabelValues(s.provider.Name(), "error").Inc()
		slog.ErrorContext(ctx, "generator: generate lesson failed", "topic", topic, "category", category, "error", err)
		return nil, generationError(err)
	}
	telemetry.LessonsGenerated.WithLabelValues(s.provider.Name(), "ok").Inc()

	if err := s.catalog.Add(ctx, l); err != nil {
		s.release()
		slog.ErrorContext(ctx, "generator: save lesson failed", "topic", topic, "title", l.Title, "error", err)
		return nil, saveError(err)
	}

	s.eb.Publish(ctx, domain.EventLessonGenerated{Lesson: l})

	return &GenerateLessonResponse{Lesson: l}, nil
}

func (s *Service) generate(ctx context.Context, category, topic string) (domain.Lesson, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.provider.Generate(ctx, llm.Prompt(systemPrompt, userPrompt(category, topic), lessonSchema))
	if err != nil {
		return domain.Lesson{}, err
	}

	var l domain.Lesson
	if err := json.Unmarshal(resp.Content, &l); err != nil {
		return domain.Lesson{}, &llm.ErrInvalidResponse{Content: resp.Content, Err: err}
	}

	l.Title = strings.TrimSpace(l.Title)
	l.Category = category
	l.Source = domain.SourceAI
	return l, nil
}

func (s *Service) reserve() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if day := s.now().UTC().Format(time.DateOnly); day != s.day {
		s.day, s.count = day, 0
	}
	if s.maxPerDay > 0 && s.count >= s.maxPerDay {
		return false
	}
	s.count++
	return true
}

func (s *Service) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count > 0 {
		s.count--
	}
}

// saveError reports a generated lesson the catalog did not accept. A rejected
// lesson is the model's fault; anything else is a storage failure.
func saveError(err error) error {
	if errors.Convert(err).Code == errors.CodeInvalidArgument {
		return errors.GenerationFailed(errors.CodeUnavailable, err, "failed to generate lesson: the model returned an unusable lesson")
	}
	return errors.GenerationFailed(errors.CodeInternal, err, "failed to save the generated lesson")
}

func generationError(err error) error {
	var (
		invalid *llm.ErrInvalidResponse
		limited *llm.ErrRateLimit
	)

	switch {
	case stderrors.As(err, &invalid):
		return errors.GenerationFailed(errors.CodeUnavailable, err, "failed to generate lesson: the model returned an unusable lesson")
	case stderrors.As(err, &limited):
		return errors.GenerationFailed(errors.CodeResourceExhausted, err, "failed to generate lesson: provider rate limit reached")
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.GenerationFailed(errors.CodeUnavailable, err, "failed to generate lesson: timed out")
	default:
		return errors.GenerationFailed(errors.CodeUnavailable, err, "failed to generate lesson: %v", err)
	}
}
