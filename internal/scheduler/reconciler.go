package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/ashaw315/hotdog-diaries-sub014/pkg/logging"
	"github.com/ashaw315/hotdog-diaries-sub014/pkg/models"
)

// ReconcilerStore is the slice of the content store the reconciliation pass
// depends on.
type ReconcilerStore interface {
	OrphanedPostedCandidates(ctx context.Context) ([]int64, error)
	ResetToApproved(ctx context.Context, candidateID int64) error
	DriftedPostedCandidates(ctx context.Context) ([]int64, error)
	ForcePostedStatus(ctx context.Context, candidateID int64, postedAt time.Time) error
	DuplicatePostedCandidates(ctx context.Context) ([]int64, error)
}

// Reconciler repairs drift between candidate status and posting history.
// Unambiguous drift is auto-corrected; ambiguous anomalies (multiple posted
// records for one candidate) are logged and escalated, never auto-deleted.
type Reconciler struct {
	store  ReconcilerStore
	logger logging.Logger
	now    func() time.Time
}

func NewReconciler(st ReconcilerStore, logger logging.Logger) *Reconciler {
	return &Reconciler{store: st, logger: logger, now: time.Now}
}

// Run executes one reconciliation pass and reports what it found.
func (r *Reconciler) Run(ctx context.Context) (models.ReconcileReport, error) {
	var report models.ReconcileReport

	// (a) Candidates marked posted without a record: no publish actually
	// happened, so make them selectable again.
	orphaned, err := r.store.OrphanedPostedCandidates(ctx)
	if err != nil {
		return report, fmt.Errorf("scan orphaned posted: %w", err)
	}
	for _, id := range orphaned {
		if err := r.store.ResetToApproved(ctx, id); err != nil {
			r.logger.WithError(err).WithField("candidate_id", id).Error("Failed to reset orphaned posted candidate")
			continue
		}
		r.logger.WithField("candidate_id", id).Warn("Reset posted candidate with no posted record back to approved")
		report.OrphanedPosted = append(report.OrphanedPosted, id)
	}

	// (b) Posted records whose candidate status drifted: the record is the
	// source of truth, force-correct the candidate.
	drifted, err := r.store.DriftedPostedCandidates(ctx)
	if err != nil {
		return report, fmt.Errorf("scan drifted posted: %w", err)
	}
	for _, id := range drifted {
		if err := r.store.ForcePostedStatus(ctx, id, r.now()); err != nil {
			r.logger.WithError(err).WithField("candidate_id", id).Error("Failed to force-correct drifted candidate")
			continue
		}
		r.logger.WithField("candidate_id", id).Warn("Force-corrected candidate status to posted to match posting history")
		report.CorrectedDrift = append(report.CorrectedDrift, id)
	}

	// (c) Multiple posted records per candidate: the resolution is
	// ambiguous, so escalate with full context and leave the data alone.
	duplicates, err := r.store.DuplicatePostedCandidates(ctx)
	if err != nil {
		return report, fmt.Errorf("scan duplicate posted: %w", err)
	}
	for _, id := range duplicates {
		r.logger.WithFields(logging.Fields{
			"candidate_id": id,
			"anomaly":      "duplicate_posted_records",
		}).Error("Candidate has multiple posted records; manual audit required")
		report.DuplicateAnomalies = append(report.DuplicateAnomalies, id)
	}

	if len(orphaned)+len(drifted)+len(duplicates) > 0 {
		r.logger.WithFields(logging.Fields{
			"orphaned":   len(orphaned),
			"drifted":    len(drifted),
			"duplicates": len(duplicates),
		}).Info("Reconciliation pass repaired drift")
	}
	return report, nil
}
