package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/ashaw315/hotdog-diaries-sub014/internal/scheduler"
	"github.com/ashaw315/hotdog-diaries-sub014/pkg/logging"
)

// AnomalyMetrics counts reconciliation anomalies; nil disables counting.
type AnomalyMetrics interface {
	IncAnomaly(kind string)
}

// ReconcileJob periodically repairs drift between candidate status and
// posting history.
type ReconcileJob struct {
	reconciler *scheduler.Reconciler
	logger     logging.Logger
	metrics    AnomalyMetrics
	interval   time.Duration
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// ReconcileJobConfig holds configuration for the reconcile job.
type ReconcileJobConfig struct {
	Reconciler *scheduler.Reconciler
	Logger     logging.Logger
	Metrics    AnomalyMetrics
	Interval   time.Duration // How often to run (default: 1 hour)
}

func NewReconcileJob(cfg ReconcileJobConfig) *ReconcileJob {
	interval := cfg.Interval
	if interval == 0 {
		interval = time.Hour
	}
	return &ReconcileJob{
		reconciler: cfg.Reconciler,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		interval:   interval,
		stopCh:     make(chan struct{}),
	}
}

// Start begins the background reconciliation loop.
func (j *ReconcileJob) Start() {
	j.wg.Add(1)
	go j.run()
	j.logger.Info("Reconcile job started")
}

// Stop gracefully stops the job.
func (j *ReconcileJob) Stop() {
	close(j.stopCh)
	j.wg.Wait()
	j.logger.Info("Reconcile job stopped")
}

func (j *ReconcileJob) run() {
	defer j.wg.Done()
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// Stagger the first run so startup is not dominated by repair scans.
	select {
	case <-time.After(time.Minute):
		j.reconcile()
	case <-j.stopCh:
		return
	}

	for {
		select {
		case <-ticker.C:
			j.reconcile()
		case <-j.stopCh:
			return
		}
	}
}

func (j *ReconcileJob) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	report, err := j.reconciler.Run(ctx)
	if err != nil {
		j.logger.WithError(err).Error("Scheduled reconciliation failed")
		return
	}
	if j.metrics != nil {
		for range report.OrphanedPosted {
			j.metrics.IncAnomaly("orphaned_posted")
		}
		for range report.CorrectedDrift {
			j.metrics.IncAnomaly("status_drift")
		}
		for range report.DuplicateAnomalies {
			j.metrics.IncAnomaly("duplicate_posted_records")
		}
	}
}
