package store

import (
	"context"
	"fmt"
	"time"
)

// Reconciliation queries. These find and repair drift between candidate
// status and the posting history; the repairs themselves are single
// conditional updates so a concurrent publish cannot be clobbered.

// OrphanedPostedCandidates returns candidates marked posted that have no
// posted record. No actual publish happened for these.
func (s *ContentStore) OrphanedPostedCandidates(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id
		FROM content_candidates c
		WHERE c.status = 'posted'
		  AND NOT EXISTS (SELECT 1 FROM posted_records pr WHERE pr.candidate_id = c.id)
		ORDER BY c.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("orphaned posted: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// ResetToApproved reverts an orphaned posted candidate so it becomes
// selectable again.
func (s *ContentStore) ResetToApproved(ctx context.Context, candidateID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE content_candidates
		SET status = 'approved', posted_at = NULL, scheduled_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'posted'
		  AND NOT EXISTS (SELECT 1 FROM posted_records pr WHERE pr.candidate_id = content_candidates.id)
	`, candidateID)
	if err != nil {
		return fmt.Errorf("reset to approved: %w", err)
	}
	return nil
}

// DriftedPostedCandidates returns candidates that have a posted record but a
// status other than posted.
func (s *ContentStore) DriftedPostedCandidates(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT c.id
		FROM posted_records pr
		JOIN content_candidates c ON c.id = pr.candidate_id
		WHERE c.status <> 'posted'
		ORDER BY c.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("drifted posted: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// ForcePostedStatus corrects a candidate whose posting history says it was
// published but whose status drifted.
func (s *ContentStore) ForcePostedStatus(ctx context.Context, candidateID int64, postedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE content_candidates
		SET status = 'posted', posted_at = COALESCE(posted_at, $2), updated_at = NOW()
		WHERE id = $1 AND status <> 'posted'
		  AND EXISTS (SELECT 1 FROM posted_records pr WHERE pr.candidate_id = content_candidates.id)
	`, candidateID, postedAt)
	if err != nil {
		return fmt.Errorf("force posted status: %w", err)
	}
	return nil
}

// DuplicatePostedCandidates returns candidates referenced by more than one
// posted record. These are escalated, never auto-deleted.
func (s *ContentStore) DuplicatePostedCandidates(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT candidate_id
		FROM posted_records
		GROUP BY candidate_id
		HAVING COUNT(*) > 1
		ORDER BY candidate_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("duplicate posted: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func scanIDs(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}
	return ids, nil
}
