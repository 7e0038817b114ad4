package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/ashaw315/hotdog-diaries-sub014/internal/scheduler"
	"github.com/ashaw315/hotdog-diaries-sub014/pkg/logging"
)

// PublishMetrics counts publish outcomes. Implemented by the handler layer's
// metrics wrapper; nil disables counting.
type PublishMetrics interface {
	IncPublish(status string)
}

// PublishJob periodically posts filled slots whose time has arrived.
type PublishJob struct {
	publisher *scheduler.Publisher
	logger    logging.Logger
	metrics   PublishMetrics
	interval  time.Duration
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// PublishJobConfig holds configuration for the publish job.
type PublishJobConfig struct {
	Publisher *scheduler.Publisher
	Logger    logging.Logger
	Metrics   PublishMetrics
	Interval  time.Duration // How often to check for due slots (default: 1 minute)
}

func NewPublishJob(cfg PublishJobConfig) *PublishJob {
	interval := cfg.Interval
	if interval == 0 {
		interval = time.Minute
	}
	return &PublishJob{
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the background publish loop.
func (j *PublishJob) Start() {
	j.wg.Add(1)
	go j.run()
	j.logger.Info("Publish job started")
}

// Stop gracefully stops the job.
func (j *PublishJob) Stop() {
	close(j.stopCh)
	j.wg.Wait()
	j.logger.Info("Publish job stopped")
}

func (j *PublishJob) run() {
	defer j.wg.Done()
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// Run once at startup so a restart does not delay overdue slots.
	j.publishDue()

	for {
		select {
		case <-ticker.C:
			j.publishDue()
		case <-j.stopCh:
			return
		}
	}
}

func (j *PublishJob) publishDue() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	results, err := j.publisher.PublishDue(ctx)
	if err != nil {
		j.logger.WithError(err).Error("Publish sweep failed")
		return
	}

	published := 0
	for _, res := range results {
		if j.metrics != nil {
			j.metrics.IncPublish(res.Outcome)
		}
		if res.Outcome == scheduler.PublishOutcomePublished {
			published++
		}
	}
	if published > 0 {
		j.logger.WithField("published", published).Info("Publish sweep posted due slots")
	}
}
