package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	SubmissionsJudged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submissions_judged_total",
			Help: "Judged submissions by final status",
		},
		[]string{"status"},
	)

	XPAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xp_awarded_total",
			Help: "Experience points awarded, by problem difficulty",
		},
		[]string{"difficulty"},
	)

	LevelUps = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "user_level_ups_total",
		Help: "Number of level-up events",
	})

	AchievementsUnlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "achievements_unlocked_total",
			Help: "Achievements unlocked, by name",
		},
		[]string{"name"},
	)

	StreakRepairs = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "streak_repairs_total",
		Help: "Streaks reset by the daily repair sweep",
	})

	ProgressionFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "progression_update_failures_total",
		Help: "Rolled back progression transactions",
	})

	JudgeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "judge_request_duration_seconds",
		Help:    "Latency of calls to the code execution service",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	OnlineLearners = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "notification_connections",
		Help: "Open progress notification websocket connections on this instance",
	})
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			SubmissionsJudged,
			XPAwarded,
			LevelUps,
			AchievementsUnlocked,
			StreakRepairs,
			ProgressionFailures,
			JudgeDuration,
			OnlineLearners,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
