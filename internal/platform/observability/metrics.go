// Package observability holds the Prometheus collectors and the OpenTelemetry
// tracer used across the discussion service.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CommentOps counts comment service operations by outcome. result is "ok"
	// or the lower-case error kind.
	CommentOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discussion_comment_operations_total",
		Help: "Comment service operations by operation and result",
	}, []string{"operation", "result"})

	// CommentOpLatency records comment service latency by operation.
	CommentOpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "discussion_comment_operation_seconds",
		Help:    "Comment service operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// StoreTxConflicts counts optimistic transaction attempts that lost a race.
	StoreTxConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discussion_store_tx_conflicts_total",
		Help: "Single-document transaction attempts retried after a write conflict",
	}, []string{"backend"})

	// StoreTxExhausted counts transactions that gave up after the retry budget.
	StoreTxExhausted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discussion_store_tx_exhausted_total",
		Help: "Single-document transactions that exhausted their retry budget",
	}, []string{"backend"})

	// ReplyCounterDrift counts parent counter updates that failed after the
	// child write had already committed.
	ReplyCounterDrift = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discussion_reply_counter_drift_total",
		Help: "Parent reply counter updates that failed after the child write committed",
	}, []string{"operation"})

	// ShareIncrements counts recorded share clicks by platform.
	ShareIncrements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discussion_share_increments_total",
		Help: "Share clicks recorded by platform",
	}, []string{"platform"})

	// RedisErrors counts failed Redis commands by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discussion_redis_errors_total",
		Help: "Redis commands that returned an error other than a cache miss",
	}, []string{"command"})

	// RateLimited counts write requests rejected by the per-user limiter.
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discussion_rate_limited_total",
		Help: "Requests rejected by the per-user rate limiter",
	}, []string{"route"})

	// EventsPublishFailures counts domain events that could not be published.
	EventsPublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discussion_events_publish_failures_total",
		Help: "Domain events dropped because publishing failed",
	}, []string{"subject"})
)
