// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LedgerOps counts ledger transactions by operation and outcome.
var LedgerOps = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "famhub",
	Subsystem: "ledger",
	Name:      "operations_total",
	Help:      "Ledger transactions by operation and result.",
}, []string{"op", "result"})

// PointsMoved sums points credited to or debited from balances.
var PointsMoved = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "famhub",
	Subsystem: "ledger",
	Name:      "points_total",
	Help:      "Points moved by the ledger, by direction.",
}, []string{"direction"})

// Broadcasts counts realtime messages published by table and event type.
var Broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "famhub",
	Subsystem: "realtime",
	Name:      "broadcasts_total",
	Help:      "Realtime change events published.",
}, []string{"table", "event"})

// Subscribers is the number of connected realtime clients.
var Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "famhub",
	Subsystem: "realtime",
	Name:      "subscribers",
	Help:      "Connected realtime subscribers.",
})

// DroppedMessages counts messages dropped because a subscriber was too slow.
var DroppedMessages = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "famhub",
	Subsystem: "realtime",
	Name:      "dropped_messages_total",
	Help:      "Messages dropped for slow subscribers.",
})

// HTTPRequests counts API requests by route pattern and status class.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "famhub",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "HTTP requests by route and status class.",
}, []string{"route", "class"})

// PushNotifications counts web push deliveries by result.
var PushNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "famhub",
	Subsystem: "push",
	Name:      "notifications_total",
	Help:      "Web push deliveries by result.",
}, []string{"result"})

// Backups counts database snapshots by outcome: completed or failed.
var Backups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "famhub",
	Subsystem: "backup",
	Name:      "runs_total",
	Help:      "Database backups by result.",
}, []string{"result"})

// RateLimited counts requests refused by a named rate limit.
var RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "famhub",
	Subsystem: "http",
	Name:      "rate_limited_total",
	Help:      "Requests refused by a rate limit, by limit name.",
}, []string{"limit"})
