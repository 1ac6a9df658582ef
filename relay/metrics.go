package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/omni/job-relay/state"
)

var (
	LastScrapedBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Subsystem: "scraper",
		Name:      "last_scraped_block",
	})
	LastObservedBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Subsystem: "scraper",
		Name:      "last_observed_block",
	})
	SkippedBlocks = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Subsystem: "scraper",
		Name:      "skipped_blocks",
	})
	ScrapeCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Subsystem: "scraper",
		Name:      "cycles_total",
	}, []string{"result"})
	ScrapedLogs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "relay",
		Subsystem: "scraper",
		Name:      "logs_total",
	})
	PendingLogs = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Subsystem: "jobs",
		Name:      "pending_logs",
	})
	CompletedLogs = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Subsystem: "jobs",
		Name:      "completed_logs",
	})
	ScheduledJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Subsystem: "jobs",
		Name:      "scheduled_jobs",
	})
	Jobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Subsystem: "jobs",
		Name:      "dispatched_total",
	}, []string{"mode"})
	Nonce = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Subsystem: "submitter",
		Name:      "nonce",
	})
	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Subsystem: "submitter",
		Name:      "submissions_total",
	}, []string{"kind", "status"})
)

func observeState(s *state.Store) {
	LastScrapedBlock.Set(float64(s.LastScrapedBlock()))
	if observed, ok := s.LastObservedBlock(); ok {
		LastObservedBlock.Set(float64(observed))
	}
	SkippedBlocks.Set(float64(len(s.SkippedBlocks())))
	PendingLogs.Set(float64(s.PendingCount()))
	CompletedLogs.Set(float64(s.CompletedCount()))
	ScheduledJobs.Set(float64(len(s.ScheduledJobs())))
	Nonce.Set(float64(s.Nonce()))
}
