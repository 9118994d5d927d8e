package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	httpRequestsTotal    *prometheus.CounterVec
	httpLatencySeconds   *prometheus.HistogramVec
	httpErrorsTotal      *prometheus.CounterVec
	xpAwardedTotal       *prometheus.CounterVec
	levelUpsTotal        prometheus.Counter
	rewardsUnlockedTotal *prometheus.CounterVec
	answersGradedTotal   *prometheus.CounterVec
	submissionsFinalized prometheus.Counter
	rewardStreamClients  prometheus.Gauge
	rewardEventsTotal    *prometheus.CounterVec
	hintRequestsTotal    *prometheus.CounterVec
	cacheLookupsTotal    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "levelup_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "levelup_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "levelup_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		xpAwardedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "levelup_xp_awarded_total",
			Help: "Experience points granted, by origin.",
		}, []string{"origin"})

		levelUpsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "levelup_level_ups_total",
			Help: "Number of levels gained by all users.",
		})

		rewardsUnlockedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "levelup_rewards_unlocked_total",
			Help: "Rewards unlocked, split by special and threshold rewards.",
		}, []string{"kind"})

		answersGradedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "levelup_answers_graded_total",
			Help: "Item answers graded, by minigame kind and correctness.",
		}, []string{"kind", "correct"})

		submissionsFinalized = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "levelup_submissions_finalized_total",
			Help: "Attempts closed by students.",
		})

		rewardStreamClients = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "levelup_reward_stream_clients",
			Help: "Websocket clients listening for reward events.",
		})

		rewardEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "levelup_reward_events_total",
			Help: "Reward events delivered to the local broker, by origin.",
		}, []string{"source"})

		hintRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "levelup_hint_requests_total",
			Help: "Hints served, by source.",
		}, []string{"source"})

		cacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "levelup_cache_lookups_total",
			Help: "Redis cache lookups, by cache and result.",
		}, []string{"cache", "result"})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			xpAwardedTotal, levelUpsTotal, rewardsUnlockedTotal,
			answersGradedTotal, submissionsFinalized, rewardStreamClients,
			rewardEventsTotal, hintRequestsTotal, cacheLookupsTotal,
		)
	})
}

// ObserveRequest records one served API request.
func ObserveRequest(method, route string, status int, elapsed time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, statusLabel).Inc()
	httpLatencySeconds.WithLabelValues(method, route).Observe(elapsed.Seconds())
	if status >= 400 {
		httpErrorsTotal.WithLabelValues(method, route, statusLabel).Inc()
	}
}

// XPAwarded counts experience points by origin.
func XPAwarded() *prometheus.CounterVec {
	RegisterMetrics()
	return xpAwardedTotal
}

// LevelUps counts levels gained.
func LevelUps() prometheus.Counter {
	RegisterMetrics()
	return levelUpsTotal
}

// RewardsUnlocked counts unlocked rewards.
func RewardsUnlocked() *prometheus.CounterVec {
	RegisterMetrics()
	return rewardsUnlockedTotal
}

// AnswersGraded counts graded item answers.
func AnswersGraded() *prometheus.CounterVec {
	RegisterMetrics()
	return answersGradedTotal
}

// SubmissionsFinalized counts closed attempts.
func SubmissionsFinalized() prometheus.Counter {
	RegisterMetrics()
	return submissionsFinalized
}

// RewardStreamClients tracks connected websocket listeners.
func RewardStreamClients() prometheus.Gauge {
	RegisterMetrics()
	return rewardStreamClients
}

// RewardEvents counts events handed to the local broker.
func RewardEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return rewardEventsTotal
}

// HintRequests counts served hints.
func HintRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return hintRequestsTotal
}

// CacheLookups counts redis cache hits and misses.
func CacheLookups() *prometheus.CounterVec {
	RegisterMetrics()
	return cacheLookupsTotal
}
