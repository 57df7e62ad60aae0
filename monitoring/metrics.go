package monitoring

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ticket-ledger/internal/status"
	"ticket-ledger/logger"
	"ticket-ledger/models"
)

var (
	ledgerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Total ledger operations by outcome",
		},
		[]string{"operation", "status"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Duration of ledger operations including outbound payouts",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		},
		[]string{"operation"},
	)

	eventCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ledger_events_total",
			Help: "Events created, by status",
		},
		[]string{"status"},
	)

	ticketsSold = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_tickets_sold_total",
			Help: "Tickets sold across all tiers",
		},
	)

	logLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_log_length",
			Help: "Committed domain events in the log",
		},
	)

	auditFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_audit_failures_total",
			Help: "Invariant audits that found a violation",
		},
	)

	goroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_goroutines_total",
			Help: "Current number of active goroutines",
		},
	)
)

// Recorder counts and times every ledger operation.
type Recorder struct{}

func (Recorder) ObserveOperation(op string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = status.KindOf(err).String()
	}
	ledgerOperations.WithLabelValues(op, outcome).Inc()
	operationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// Source is the ledger surface the monitor samples.
type Source interface {
	Stats(ctx context.Context) models.LedgerStats
	Audit(ctx context.Context) error
}

type Monitor struct {
	source   Source
	interval time.Duration
}

func NewMonitor(source Source, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{source: source, interval: interval}
}

// Start samples the ledger until ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	go m.collectMetrics(ctx)
}

func (m *Monitor) collectMetrics(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Collect(ctx)
		}
	}
}

// Collect takes one sample of the ledger gauges and runs the audit.
func (m *Monitor) Collect(ctx context.Context) {
	stats := m.source.Stats(ctx)
	eventCount.WithLabelValues("all").Set(float64(stats.Events))
	eventCount.WithLabelValues("cancelled").Set(float64(stats.CancelledCount))
	ticketsSold.Set(float64(stats.TicketsSold))
	logLength.Set(float64(stats.LogLength))
	goroutineCount.Set(float64(runtime.NumGoroutine()))

	if err := m.source.Audit(ctx); err != nil {
		auditFailures.Inc()
		logger.Errorf(ctx, "ledger audit failed: %v", err)
	}
}
