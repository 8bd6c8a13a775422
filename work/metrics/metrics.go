package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CatalogAssets tracks the current number of assets the catalog holds per channel.
// This metric is a gauge, updated after every sync and catalog mutation.
var CatalogAssets = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "tempest_catalog_assets",
	Help: "Number of catalog assets assigned to each channel",
}, []string{"channel"})

// ScheduleItems tracks the number of in-memory schedule items per channel after
// the most recent generation or override. Placeholder filler is counted separately
// via the "placeholder" label so empty-channel fallback is visible at a glance.
var ScheduleItems = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "tempest_schedule_items",
	Help: "Number of scheduled items per channel",
}, []string{"channel", "placeholder"})

// Regenerations counts completed full schedule regenerations. The "trigger" label
// distinguishes timer-driven regenerations from forced ones.
var Regenerations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tempest_schedule_regenerations_total",
	Help: "Total number of full schedule regenerations",
}, []string{"trigger"})

// RegenerationDuration observes how long a full regeneration across all channels
// takes, in seconds.
var RegenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "tempest_schedule_regeneration_seconds",
	Help:    "Duration of full schedule regenerations",
	Buckets: prometheus.DefBuckets,
})

// SourceSyncErrors counts failed sync attempts against the external asset source.
// This metric is a counter and only increases; a climbing rate while the catalog
// gauge stays flat means the engine is serving stale-but-available data.
var SourceSyncErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "tempest_source_sync_errors_total",
	Help: "Number of failed catalog syncs against the asset source",
})

// ScheduleOverrides counts explicit manual scheduling operations. The "op" label
// separates insertions from removals.
var ScheduleOverrides = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tempest_schedule_overrides_total",
	Help: "Number of manual schedule override operations",
}, []string{"op"})
