package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pinboard_sync_cycles_started",
		Help: "Number of populate cycles started",
	})
	cyclesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pinboard_sync_cycles_failed",
		Help: "Number of populate cycles aborted by a search or store failure",
	})
	photosStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pinboard_sync_photos_stored",
		Help: "Number of photos downloaded and persisted",
	})
	fetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pinboard_sync_fetch_failures",
		Help: "Number of per-image download failures",
	})
	duplicatesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pinboard_sync_duplicates_skipped",
		Help: "Number of downloads skipped because the payload was already stored for the location",
	})
)
