package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/victornm/avidquiz/internal/api"
	"github.com/victornm/avidquiz/internal/catalog"
	"github.com/victornm/avidquiz/internal/challenge"
	"github.com/victornm/avidquiz/internal/domain"
	"github.com/victornm/avidquiz/internal/event"
	"github.com/victornm/avidquiz/internal/generator"
	"github.com/victornm/avidquiz/internal/leaderboard"
	"github.com/victornm/avidquiz/internal/llm"
	"github.com/victornm/avidquiz/internal/quiz"
	"github.com/victornm/avidquiz/internal/session"
	"github.com/victornm/avidquiz/internal/telemetry"
)

type RedisConfig struct {
	Addrs  []string
	Pass   string
	Prefix string
}

type PostgresConfig struct {
	Addr string
	User string
	Pass string
	Name string
}

// Config of the server. Every piece of infrastructure is optional: without
// Redis sessions and the leaderboard live in memory, without Postgres the
// leaderboard falls back to Redis or memory.
type Config struct {
	HTTP struct {
		Port          int32
		AllowedOrigin string
		SecureCookie  bool
	}

	GRPC struct {
		Port int32
	}

	Log struct {
		Level string
	}

	Redis struct {
		Session     RedisConfig
		Pubsub      RedisConfig
		Leaderboard RedisConfig
	}

	Postgres struct {
		Leaderboard PostgresConfig
	}

	Session struct {
		TTL time.Duration
	}

	Catalog struct {
		Files      []catalog.File
		SQLitePath string
	}

	Quiz struct {
		CoinsPerCorrect int
		XPPerQuiz       int
		FallbackSize    int
		RepeatWindow    int
	}

	AI struct {
		Enabled   bool
		Provider  string
		Model     string
		APIKey    string
		BaseURL   string
		MaxPerDay int
		Timeout   time.Duration
	}

	Challenge struct {
		File         string
		HintCost     int
		JudgeURL     string
		JudgeTimeout time.Duration
	}

	Leaderboard struct {
		Capacity int
		Cooldown time.Duration
	}
}

// DefaultConfig is overridden by the config file and the environment.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.GRPC.Port = 9090
	c.Log.Level = "info"
	c.Redis.Session.Prefix = "avidquiz"
	c.Redis.Pubsub.Prefix = "avidquiz"
	c.Redis.Leaderboard.Prefix = "avidquiz"
	c.Session.TTL = 30 * 24 * time.Hour
	c.Catalog.Files = []catalog.File{{Path: "data/lessons.json", Source: string(domain.SourceLocal)}}

	r := quiz.DefaultRewards()
	c.Quiz.CoinsPerCorrect = r.CoinsPerCorrect
	c.Quiz.XPPerQuiz = r.XPPerQuiz
	c.Quiz.FallbackSize = 5
	c.Quiz.RepeatWindow = 100

	c.AI.Provider = llm.ProviderAnthropic
	c.AI.MaxPerDay = 10
	c.AI.Timeout = 30 * time.Second
	c.Challenge.HintCost = 2
	c.Challenge.JudgeTimeout = 30 * time.Second
	c.Leaderboard.Capacity = 1000
	c.Leaderboard.Cooldown = time.Minute
	return c
}

// Validate rejects negative amounts. Zero is a valid setting: zero rewards
// disable coins or XP, and zero sizes fall back to the service defaults.
func (c Config) Validate() error {
	r := quiz.Rewards{CoinsPerCorrect: c.Quiz.CoinsPerCorrect, XPPerQuiz: c.Quiz.XPPerQuiz}
	if err := r.Validate(); err != nil {
		return fmt.Errorf("quiz: %w", err)
	}

	for name, v := range map[string]int{
		"quiz.fallbackSize":    c.Quiz.FallbackSize,
		"ai.maxPerDay":         c.AI.MaxPerDay,
		"challenge.hintCost":   c.Challenge.HintCost,
		"leaderboard.capacity": c.Leaderboard.Capacity,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative, got %d", name, v)
		}
	}

	return nil
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			session     redis.UniversalClient
			pubsub      redis.UniversalClient
			leaderboard redis.UniversalClient
		}

		postgres struct {
			leaderboard *pgxpool.Pool
		}

		sqlite *catalog.SQLiteStore
	}

	service struct {
		catalog     *catalog.Catalog
		session     *session.Service
		generator   *generator.Service
		challenge   *challenge.Service
		leaderboard *leaderboard.Service
	}

	http *http.Server
	grpc *grpc.Server
}

func Init(c Config) (*Server, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("server: invalid config: %w", err)
	}

	s := &Server{c: c}

	initLogger(c.Log.Level)

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	s.initAPI()
	return s, nil
}

func initLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	if p := s.c.Catalog.SQLitePath; p != "" {
		st, err := catalog.NewSQLiteStore(p)
		if err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
		s.infra.sqlite = st
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(rc RedisConfig) (redis.UniversalClient, error) {
		if len(rc.Addrs) == 0 {
			return nil, nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    rc.Addrs,
			Password: rc.Pass,
		})

		if err := telemetry.MonitorRedis(r); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			_ = r.Close()
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.session, err = connect(s.c.Redis.Session)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	s.infra.redis.pubsub, err = connect(s.c.Redis.Pubsub)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	s.infra.redis.leaderboard, err = connect(s.c.Redis.Leaderboard)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	return nil
}

func (s *Server) initPostgres() (err error) {
	connect := func(pc PostgresConfig) (*pgxpool.Pool, error) {
		if pc.Addr == "" {
			return nil, nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", pc.User, pc.Pass, pc.Addr, pc.Name))
		if err != nil {
			return nil, err
		}

		db, err := pgxpool.NewWithConfig(ctx, cc)
		if err != nil {
			return nil, err
		}

		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, err
		}

		return db, nil
	}

	s.infra.postgres.leaderboard, err = connect(s.c.Postgres.Leaderboard)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	return nil
}

func (s *Server) initService() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	lessons, err := catalog.LoadFiles(s.c.Catalog.Files)
	if err != nil {
		return err
	}

	cc := catalog.Config{Lessons: lessons}
	if s.infra.sqlite != nil {
		cc.Store = s.infra.sqlite
	}
	s.service.catalog, err = catalog.New(ctx, cc)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "server: catalog loaded", "lessons", s.service.catalog.Len(), "categories", len(s.service.catalog.Categories()))

	var sessionStore session.Store = session.NewMemoryStore(s.c.Session.TTL)
	if r := s.infra.redis.session; r != nil {
		sessionStore = session.NewRedisStore(r, s.c.Redis.Session.Prefix, s.c.Session.TTL)
	}

	s.service.session = session.NewService(session.Config{
		Store:    sessionStore,
		Catalog:  s.service.catalog,
		EventBus: s.eb,
		Rewards: &quiz.Rewards{
			CoinsPerCorrect: s.c.Quiz.CoinsPerCorrect,
			XPPerQuiz:       s.c.Quiz.XPPerQuiz,
		},
		FallbackSize:  s.c.Quiz.FallbackSize,
		RepeatWindow:  s.c.Quiz.RepeatWindow,
		ScoreCooldown: s.c.Leaderboard.Cooldown,
	})

	gc := generator.Config{
		Enabled:   s.c.AI.Enabled,
		MaxPerDay: s.c.AI.MaxPerDay,
		Timeout:   s.c.AI.Timeout,
		Catalog:   s.service.catalog,
		EventBus:  s.eb,
	}
	if s.c.AI.Enabled {
		gc.Provider, err = llm.NewProvider(ctx, llm.Config{
			Provider: s.c.AI.Provider,
			Model:    s.c.AI.Model,
			APIKey:   s.c.AI.APIKey,
			BaseURL:  s.c.AI.BaseURL,
		})
		if err != nil {
			return fmt.Errorf("ai provider: %w", err)
		}
	}
	s.service.generator = generator.NewService(gc)

	challenges, err := challenge.NewSet(nil)
	if err != nil {
		return err
	}
	if p := s.c.Challenge.File; p != "" {
		challenges, err = challenge.LoadFile(p)
		if err != nil {
			return err
		}
	}

	chc := challenge.Config{
		Challenges: challenges,
		Session:    s.service.session,
		HintCost:   s.c.Challenge.HintCost,
	}
	if u := s.c.Challenge.JudgeURL; u != "" {
		chc.Judge = challenge.NewHTTPJudge(u, s.c.Challenge.JudgeTimeout)
	}
	s.service.challenge = challenge.NewService(chc)

	var board leaderboard.Store = leaderboard.NewMemoryStore(s.c.Leaderboard.Capacity)
	switch {
	case s.infra.postgres.leaderboard != nil:
		board, err = leaderboard.NewPostgresStore(ctx, s.infra.postgres.leaderboard)
		if err != nil {
			return err
		}
	case s.infra.redis.leaderboard != nil:
		board = leaderboard.NewRedisStore(s.infra.redis.leaderboard, s.c.Redis.Leaderboard.Prefix, s.c.Leaderboard.Capacity)
	}

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Store:    board,
		Session:  s.service.session,
	})

	telemetry.CountEvents(s.eb)
	s.eb.Subscribe(domain.EventNameLessonGenerated, func(ctx context.Context, e event.Event) error {
		l := e.(domain.EventLessonGenerated).Lesson
		slog.InfoContext(ctx, "server: lesson generated", "title", l.Title, "category", l.Category)
		return nil
	})

	return nil
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery(), telemetry.GinMetrics())

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor())

	a := api.Config{
		HTTP:          e,
		GRPC:          s.grpc,
		EventBus:      s.eb,
		Catalog:       s.service.catalog,
		Session:       s.service.session,
		Generator:     s.service.generator,
		Challenge:     s.service.challenge,
		Leaderboard:   s.service.leaderboard,
		PubsubPrefix:  s.c.Redis.Pubsub.Prefix,
		AllowedOrigin: s.c.HTTP.AllowedOrigin,
		SecureCookie:  s.c.HTTP.SecureCookie,
	}
	if s.infra.redis.pubsub != nil {
		a.Redis = s.infra.redis.pubsub
	}
	api.New(a)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

// Handler is the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) Start() {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()
	s.closeInfra(ctx)

	slog.InfoContext(ctx, "server: shutdown completed")
}

func (s *Server) closeInfra(ctx context.Context) {
	for name, r := range map[string]redis.UniversalClient{
		"session":     s.infra.redis.session,
		"pubsub":      s.infra.redis.pubsub,
		"leaderboard": s.infra.redis.leaderboard,
	} {
		if r == nil {
			continue
		}
		if err := r.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close redis failed", "client", name, "error", err)
		}
	}

	if db := s.infra.postgres.leaderboard; db != nil {
		db.Close()
	}

	if st := s.infra.sqlite; st != nil {
		if err := st.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close sqlite failed", "error", err)
		}
	}
}
