package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SyncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storesync_sync_runs_total",
			Help: "Sync runs by entity type and outcome (success, failure, skipped)",
		},
		[]string{"sync_type", "outcome"},
	)

	SyncRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storesync_sync_records_total",
			Help: "Upstream records reconciled by pull syncs",
		},
		[]string{"sync_type", "result"},
	)

	SyncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storesync_sync_duration_seconds",
			Help:    "Wall time of one tenant sync for one entity type",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"sync_type"},
	)

	UpstreamRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storesync_upstream_retries_total",
			Help: "Upstream page fetches retried after a transient failure",
		},
	)

	WebhookRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storesync_webhook_requests_total",
			Help: "Webhook deliveries by topic family and HTTP status",
		},
		[]string{"family", "status"},
	)

	WebhookProcessingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storesync_webhook_processing_duration_seconds",
			Help:    "Duration of webhook verification and dispatch",
			Buckets: prometheus.DefBuckets,
		},
	)

	AbandonmentChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storesync_abandonment_checks_total",
			Help: "Settled abandonment checks by outcome",
		},
		[]string{"outcome"},
	)
)

var registerOnce sync.Once

// Register registers all collectors with the default registry. Safe to call
// more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(SyncRunsTotal)
		prometheus.MustRegister(SyncRecordsTotal)
		prometheus.MustRegister(SyncDuration)
		prometheus.MustRegister(UpstreamRetriesTotal)
		prometheus.MustRegister(WebhookRequestsTotal)
		prometheus.MustRegister(WebhookProcessingDuration)
		prometheus.MustRegister(AbandonmentChecksTotal)
	})
}

func ObserveSync(syncType, outcome string, processed, failed int, d time.Duration) {
	SyncRunsTotal.WithLabelValues(syncType, outcome).Inc()
	if outcome == "skipped" {
		return
	}
	SyncRecordsTotal.WithLabelValues(syncType, "ok").Add(float64(processed))
	SyncRecordsTotal.WithLabelValues(syncType, "failed").Add(float64(failed))
	SyncDuration.WithLabelValues(syncType).Observe(d.Seconds())
}
