package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	settlements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ecoprado",
			Subsystem: "settlement",
			Name:      "results_total",
			Help:      "Settlement outcomes by workflow, status and classification code.",
		},
		[]string{"workflow", "status", "code"},
	)

	ledgerCalls = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ecoprado",
			Subsystem: "ledger",
			Name:      "call_duration_seconds",
			Help:      "Duration of external ledger calls.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"operation", "success"},
	)

	balanceChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ecoprado",
			Subsystem: "balance",
			Name:      "changes_total",
			Help:      "Local balance mutations by type.",
		},
		[]string{"type"},
	)

	tokensMoved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ecoprado",
			Subsystem: "balance",
			Name:      "tokens_total",
			Help:      "Tokens credited or debited locally.",
		},
		[]string{"type"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ecoprado",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ecoprado",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)
)

func init() {
	Registry.MustRegister(
		settlements,
		ledgerCalls,
		balanceChanges,
		tokensMoved,
		httpRequests,
		httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordSettlement workflow: report / calculator / airdrop / purchase
func RecordSettlement(workflow, status, code string) {
	settlements.WithLabelValues(workflow, status, code).Inc()
}

func ObserveLedgerCall(operation string, start time.Time, err error) {
	ledgerCalls.WithLabelValues(operation, strconv.FormatBool(err == nil)).Observe(time.Since(start).Seconds())
}

func RecordBalanceChange(entryType string, amount int64) {
	balanceChanges.WithLabelValues(entryType).Inc()
	if amount < 0 {
		amount = -amount
	}
	tokensMoved.WithLabelValues(entryType).Add(float64(amount))
}

func ObserveHTTP(method, path string, status int, latency time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(latency.Seconds())
}
