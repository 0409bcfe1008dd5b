package telemetry

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const namespace = "avidquiz"

var (
	QuizzesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "quiz",
		Name:      "started_total",
		Help:      "Number of quizzes started.",
	})

	QuizzesFinished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "quiz",
		Name:      "finished_total",
		Help:      "Number of quizzes answered to the end.",
	})

	AnswersGraded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "quiz",
		Name:      "answers_total",
		Help:      "Number of graded answers by outcome.",
	}, []string{"outcome"})

	LessonsRead = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "lessons_read_total",
		Help:      "Number of lessons marked as read, by whether the catalog knows the title.",
	}, []string{"known"})

	LessonsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "generator",
		Name:      "lessons_total",
		Help:      "Number of AI lesson generation attempts by outcome.",
	}, []string{"provider", "outcome"})

	LeaderboardSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "leaderboard",
		Name:      "submissions_total",
		Help:      "Number of accepted leaderboard submissions by mode.",
	}, []string{"mode"})

	requestCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Total number of API requests.",
	}, []string{"transport", "method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_duration_seconds",
		Help:      "API request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"transport", "method"})
)

// GinMetrics records count and latency of HTTP requests by route.
func GinMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method + " " + route

		requestCounter.WithLabelValues("http", method, strconv.Itoa(c.Writer.Status())).Inc()
		requestDuration.WithLabelValues("http", method).Observe(time.Since(start).Seconds())
	}
}

func grpcMetricsInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		requestCounter.WithLabelValues("grpc", info.FullMethod, status.Code(err).String()).Inc()
		requestDuration.WithLabelValues("grpc", info.FullMethod).Observe(time.Since(start).Seconds())
		return resp, err
	}
}
