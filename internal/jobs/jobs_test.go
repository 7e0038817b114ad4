package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/ashaw315/hotdog-diaries-sub014/internal/scheduler"
	"github.com/ashaw315/hotdog-diaries-sub014/pkg/logging"
	"github.com/ashaw315/hotdog-diaries-sub014/pkg/models"
)

type sweepSignalStore struct {
	calls chan struct{}
}

func (s *sweepSignalStore) DueSlots(ctx context.Context, cutoff time.Time) ([]models.ScheduleSlot, error) {
	select {
	case s.calls <- struct{}{}:
	default:
	}
	return nil, nil
}

func (s *sweepSignalStore) HasPostedRecord(ctx context.Context, candidateID int64) (bool, error) {
	return false, nil
}

func (s *sweepSignalStore) PublishSlot(ctx context.Context, slot models.ScheduleSlot, recordID string, postedAt, dayStart, dayEnd time.Time) error {
	return nil
}

func (s *sweepSignalStore) MarkSlotFailed(ctx context.Context, slotID int64, maxFailures int) (bool, error) {
	return false, nil
}

func TestPublishJobSweepsImmediatelyOnStart(t *testing.T) {
	st := &sweepSignalStore{calls: make(chan struct{}, 1)}
	logger := logging.NewLogger()
	publisher := scheduler.NewPublisher(st, logger, "UTC", 5*time.Minute, 3)

	job := NewPublishJob(PublishJobConfig{
		Publisher: publisher,
		Logger:    logger,
		Interval:  time.Hour, // only the startup sweep should fire
	})
	job.Start()
	defer job.Stop()

	select {
	case <-st.calls:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a publish sweep right after start")
	}
}

type idleReconcilerStore struct{}

func (idleReconcilerStore) OrphanedPostedCandidates(ctx context.Context) ([]int64, error) {
	return nil, nil
}
func (idleReconcilerStore) ResetToApproved(ctx context.Context, candidateID int64) error {
	return nil
}
func (idleReconcilerStore) DriftedPostedCandidates(ctx context.Context) ([]int64, error) {
	return nil, nil
}
func (idleReconcilerStore) ForcePostedStatus(ctx context.Context, candidateID int64, postedAt time.Time) error {
	return nil
}
func (idleReconcilerStore) DuplicatePostedCandidates(ctx context.Context) ([]int64, error) {
	return nil, nil
}

func TestReconcileJobStopsBeforeStaggeredFirstRun(t *testing.T) {
	logger := logging.NewLogger()
	job := NewReconcileJob(ReconcileJobConfig{
		Reconciler: scheduler.NewReconciler(idleReconcilerStore{}, logger),
		Logger:     logger,
		Interval:   time.Hour,
	})
	job.Start()

	done := make(chan struct{})
	go func() {
		job.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop did not return promptly")
	}
}
