package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ashaw315/hotdog-diaries-sub014/pkg/database"
	"github.com/ashaw315/hotdog-diaries-sub014/pkg/models"
)

// ErrConflict is returned when a conditional update matched no rows, meaning
// another run already claimed the row. Callers treat this as "skip", not as
// a failure.
var ErrConflict = errors.New("store: conditional update matched no rows")

// ContentStore provides candidate, slot and posting-history access. Every
// mutation is a single parameterized statement; multi-row units run inside
// one transaction.
type ContentStore struct {
	db *sql.DB
}

func NewContentStore(db *sql.DB) *ContentStore {
	return &ContentStore{db: db}
}

const candidateColumns = `
	id, platform, content_type, title, content_text, source_url,
	confidence_score, content_hash, status, scheduled_at, posted_at,
	created_at, updated_at`

func scanCandidate(row interface{ Scan(...any) error }) (models.CandidateContent, error) {
	var c models.CandidateContent
	var scheduledAt, postedAt sql.NullTime
	err := row.Scan(
		&c.ID,
		&c.Platform,
		&c.ContentType,
		&c.Title,
		&c.ContentText,
		&c.SourceURL,
		&c.ConfidenceScore,
		&c.ContentHash,
		&c.Status,
		&scheduledAt,
		&postedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return models.CandidateContent{}, err
	}
	if scheduledAt.Valid {
		c.ScheduledAt = &scheduledAt.Time
	}
	if postedAt.Valid {
		c.PostedAt = &postedAt.Time
	}
	return c, nil
}

// FindApproved returns approved candidates not referenced by any live slot,
// best confidence first. The caller applies diversity ranking on top.
func (s *ContentStore) FindApproved(ctx context.Context, limit int) ([]models.CandidateContent, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+candidateColumns+`
		FROM content_candidates c
		WHERE c.status = 'approved'
		  AND NOT EXISTS (
		      SELECT 1 FROM schedule_slots sl
		      WHERE sl.candidate_id = c.id AND sl.status <> 'cancelled'
		  )
		ORDER BY c.confidence_score DESC, c.id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("find approved: %w", err)
	}
	defer rows.Close()

	var candidates []models.CandidateContent
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return candidates, nil
}

// CandidateByID fetches a single candidate. Returns nil when absent.
func (s *ContentStore) CandidateByID(ctx context.Context, id int64) (*models.CandidateContent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+candidateColumns+`
		FROM content_candidates
		WHERE id = $1
	`, id)
	c, err := scanCandidate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("candidate by id: %w", err)
	}
	return &c, nil
}

// RecentPosted returns the (platform, content type) projection of the most
// recent posted records, newest first. Feeds the diversity snapshot.
func (s *ContentStore) RecentPosted(ctx context.Context, limit int) ([]models.PostedMeta, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.platform, c.content_type, pr.posted_at
		FROM posted_records pr
		JOIN content_candidates c ON c.id = pr.candidate_id
		ORDER BY pr.posted_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent posted: %w", err)
	}
	defer rows.Close()

	var metas []models.PostedMeta
	for rows.Next() {
		var m models.PostedMeta
		if err := rows.Scan(&m.Platform, &m.ContentType, &m.PostedAt); err != nil {
			return nil, fmt.Errorf("scan posted meta: %w", err)
		}
		metas = append(metas, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posted meta: %w", err)
	}
	return metas, nil
}

// PostedHashesSince returns content hashes published since the cutoff. Guards
// against re-scheduling near-duplicate reposts beyond the unique-hash index.
func (s *ContentStore) PostedHashesSince(ctx context.Context, since time.Time) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.content_hash
		FROM posted_records pr
		JOIN content_candidates c ON c.id = pr.candidate_id
		WHERE pr.posted_at >= $1
	`, since)
	if err != nil {
		return nil, fmt.Errorf("posted hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]struct{})
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan hash: %w", err)
		}
		hashes[h] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hashes: %w", err)
	}
	return hashes, nil
}

// SlotsBetween returns non-cancelled slots inside [from, to), chronological.
func (s *ContentStore) SlotsBetween(ctx context.Context, from, to time.Time) ([]models.ScheduleSlot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, slot_time, candidate_id, status
		FROM schedule_slots
		WHERE status <> 'cancelled' AND slot_time >= $1 AND slot_time < $2
		ORDER BY slot_time ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("slots between: %w", err)
	}
	defer rows.Close()
	return scanSlots(rows)
}

// DueSlots returns filled slots whose time has arrived, oldest first.
func (s *ContentStore) DueSlots(ctx context.Context, cutoff time.Time) ([]models.ScheduleSlot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, slot_time, candidate_id, status
		FROM schedule_slots
		WHERE status = 'filled' AND slot_time <= $1
		ORDER BY slot_time ASC
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("due slots: %w", err)
	}
	defer rows.Close()
	return scanSlots(rows)
}

func scanSlots(rows *sql.Rows) ([]models.ScheduleSlot, error) {
	var slots []models.ScheduleSlot
	for rows.Next() {
		var slot models.ScheduleSlot
		var candidateID sql.NullInt64
		if err := rows.Scan(&slot.ID, &slot.SlotTime, &candidateID, &slot.Status); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		if candidateID.Valid {
			id := candidateID.Int64
			slot.CandidateID = &id
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", err)
	}
	return slots, nil
}

// SlotOccupied reports whether a live slot already exists at the instant.
func (s *ContentStore) SlotOccupied(ctx context.Context, t time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM schedule_slots
			WHERE slot_time = $1 AND status <> 'cancelled'
		)
	`, t).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("slot occupied: %w", err)
	}
	return exists, nil
}

// AssignCandidate atomically claims an approved candidate and fills a slot at
// slotTime. The claim is a conditional update: zero rows affected means a
// concurrent run got there first, reported as ok=false rather than an error.
func (s *ContentStore) AssignCandidate(ctx context.Context, slotTime time.Time, candidateID int64) (int64, bool, error) {
	var slotID int64
	claimed := false
	err := database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE content_candidates
			SET status = 'scheduled', scheduled_at = $2, updated_at = NOW()
			WHERE id = $1 AND status = 'approved'
		`, candidateID, slotTime)
		if err != nil {
			return fmt.Errorf("claim candidate: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("claim candidate rows: %w", err)
		}
		if affected == 0 {
			return ErrConflict
		}

		// Reuse an existing empty slot at this instant, otherwise insert one.
		err = tx.QueryRowContext(ctx, `
			UPDATE schedule_slots
			SET candidate_id = $2, status = 'filled', updated_at = NOW()
			WHERE slot_time = $1 AND status = 'empty'
			RETURNING id
		`, slotTime, candidateID).Scan(&slotID)
		if err == sql.ErrNoRows {
			err = tx.QueryRowContext(ctx, `
				INSERT INTO schedule_slots (slot_time, candidate_id, status)
				VALUES ($1, $2, 'filled')
				RETURNING id
			`, slotTime, candidateID).Scan(&slotID)
		}
		if err != nil {
			return fmt.Errorf("fill slot: %w", err)
		}
		claimed = true
		return nil
	})
	if errors.Is(err, ErrConflict) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return slotID, claimed, nil
}

// FreeSlot cancels a filled slot and reverts its candidate to approved.
// Used by overwrite planning. Posted slots are never touched.
func (s *ContentStore) FreeSlot(ctx context.Context, slotID int64) (bool, error) {
	freed := false
	err := database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		var candidateID sql.NullInt64
		err := tx.QueryRowContext(ctx, `
			UPDATE schedule_slots
			SET status = 'cancelled', updated_at = NOW()
			WHERE id = $1 AND status = 'filled'
			RETURNING candidate_id
		`, slotID).Scan(&candidateID)
		if err == sql.ErrNoRows {
			return ErrConflict
		}
		if err != nil {
			return fmt.Errorf("cancel slot: %w", err)
		}
		if candidateID.Valid {
			if _, err := tx.ExecContext(ctx, `
				UPDATE content_candidates
				SET status = 'approved', scheduled_at = NULL, updated_at = NOW()
				WHERE id = $1 AND status = 'scheduled'
			`, candidateID.Int64); err != nil {
				return fmt.Errorf("release candidate: %w", err)
			}
		}
		freed = true
		return nil
	})
	if errors.Is(err, ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return freed, nil
}

// CancelScheduled reverts a scheduled candidate to approved and cancels its
// slot. Returns false when the candidate was not in a cancellable state,
// which is an expected outcome.
func (s *ContentStore) CancelScheduled(ctx context.Context, candidateID int64) (bool, error) {
	cancelled := false
	err := database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE content_candidates
			SET status = 'approved', scheduled_at = NULL, updated_at = NOW()
			WHERE id = $1 AND status = 'scheduled'
		`, candidateID)
		if err != nil {
			return fmt.Errorf("revert candidate: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("revert candidate rows: %w", err)
		}
		if affected == 0 {
			return ErrConflict
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE schedule_slots
			SET status = 'cancelled', updated_at = NOW()
			WHERE candidate_id = $1 AND status = 'filled'
		`, candidateID); err != nil {
			return fmt.Errorf("cancel slot: %w", err)
		}
		cancelled = true
		return nil
	})
	if errors.Is(err, ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return cancelled, nil
}

// isUniqueViolation reports whether the error is a Postgres unique-index
// violation, which on slot_time means another run filled the instant first.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// RescheduleCandidate atomically moves a scheduled candidate's slot to a new
// instant. Returns false when the candidate is not scheduled, has no filled
// slot, or a concurrent run took the target instant; the live-slot unique
// index is the authority on occupancy, not any pre-check.
func (s *ContentStore) RescheduleCandidate(ctx context.Context, candidateID int64, newTime time.Time) (bool, error) {
	moved := false
	err := database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE schedule_slots
			SET slot_time = $2, updated_at = NOW()
			WHERE candidate_id = $1 AND status = 'filled'
		`, candidateID, newTime)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("move slot: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("move slot rows: %w", err)
		}
		if affected == 0 {
			return ErrConflict
		}
		res, err = tx.ExecContext(ctx, `
			UPDATE content_candidates
			SET scheduled_at = $2, updated_at = NOW()
			WHERE id = $1 AND status = 'scheduled'
		`, candidateID, newTime)
		if err != nil {
			return fmt.Errorf("move candidate: %w", err)
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("move candidate rows: %w", err)
		}
		if affected == 0 {
			return ErrConflict
		}
		moved = true
		return nil
	})
	if errors.Is(err, ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return moved, nil
}

// MarkSlotFailed increments a filled slot's failure counter. Once the
// counter reaches maxFailures the slot is cancelled and its candidate
// reverts to approved, so one broken item cannot wedge the publish sweep
// forever. Returns whether the slot was freed.
func (s *ContentStore) MarkSlotFailed(ctx context.Context, slotID int64, maxFailures int) (bool, error) {
	freed := false
	err := database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		var failCount int
		var candidateID sql.NullInt64
		err := tx.QueryRowContext(ctx, `
			UPDATE schedule_slots
			SET fail_count = fail_count + 1, updated_at = NOW()
			WHERE id = $1 AND status = 'filled'
			RETURNING fail_count, candidate_id
		`, slotID).Scan(&failCount, &candidateID)
		if err == sql.ErrNoRows {
			return ErrConflict
		}
		if err != nil {
			return fmt.Errorf("bump fail count: %w", err)
		}
		if failCount < maxFailures {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE schedule_slots
			SET status = 'cancelled', updated_at = NOW()
			WHERE id = $1 AND status = 'filled'
		`, slotID); err != nil {
			return fmt.Errorf("cancel failing slot: %w", err)
		}
		if candidateID.Valid {
			if _, err := tx.ExecContext(ctx, `
				UPDATE content_candidates
				SET status = 'approved', scheduled_at = NULL, updated_at = NOW()
				WHERE id = $1 AND status = 'scheduled'
			`, candidateID.Int64); err != nil {
				return fmt.Errorf("release failing candidate: %w", err)
			}
		}
		freed = true
		return nil
	})
	if errors.Is(err, ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return freed, nil
}

// SlotStatusCounts aggregates slot statuses within [from, to).
func (s *ContentStore) SlotStatusCounts(ctx context.Context, from, to time.Time) (map[models.SlotStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM schedule_slots
		WHERE slot_time >= $1 AND slot_time < $2
		GROUP BY status
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("slot status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.SlotStatus]int)
	for rows.Next() {
		var status models.SlotStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return counts, nil
}

// HasPostedRecord reports whether a posted record exists for the candidate.
// This is the idempotency check for publish.
func (s *ContentStore) HasPostedRecord(ctx context.Context, candidateID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM posted_records WHERE candidate_id = $1)
	`, candidateID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has posted record: %w", err)
	}
	return exists, nil
}

// PublishSlot performs the publish unit atomically: append the posted record,
// flip the candidate to posted, flip the slot to posted. Either all three
// writes land or none do; a lost race on either conditional update rolls the
// whole unit back and surfaces as ErrConflict.
func (s *ContentStore) PublishSlot(ctx context.Context, slot models.ScheduleSlot, recordID string, postedAt, dayStart, dayEnd time.Time) error {
	if slot.CandidateID == nil {
		return fmt.Errorf("publish slot %d: no candidate attached", slot.ID)
	}
	candidateID := *slot.CandidateID

	return database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		var ordinal int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) + 1 FROM posted_records
			WHERE slot_time >= $1 AND slot_time < $2
		`, dayStart, dayEnd).Scan(&ordinal); err != nil {
			return fmt.Errorf("compute ordinal: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO posted_records (id, candidate_id, posted_at, slot_time, ordinal)
			VALUES ($1, $2, $3, $4, $5)
		`, recordID, candidateID, postedAt, slot.SlotTime, ordinal); err != nil {
			return fmt.Errorf("insert posted record: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE content_candidates
			SET status = 'posted', posted_at = $2, updated_at = NOW()
			WHERE id = $1 AND status = 'scheduled'
		`, candidateID, postedAt)
		if err != nil {
			return fmt.Errorf("mark candidate posted: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("mark candidate posted rows: %w", err)
		}
		if affected == 0 {
			return ErrConflict
		}

		res, err = tx.ExecContext(ctx, `
			UPDATE schedule_slots
			SET status = 'posted', updated_at = NOW()
			WHERE id = $1 AND status = 'filled'
		`, slot.ID)
		if err != nil {
			return fmt.Errorf("mark slot posted: %w", err)
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("mark slot posted rows: %w", err)
		}
		if affected == 0 {
			return ErrConflict
		}
		return nil
	})
}

// UpcomingItems projects filled slots within [from, to) for the admin view.
func (s *ContentStore) UpcomingItems(ctx context.Context, from, to time.Time) ([]models.UpcomingItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.content_text, c.platform, sl.slot_time, sl.status
		FROM schedule_slots sl
		JOIN content_candidates c ON c.id = sl.candidate_id
		WHERE sl.status = 'filled' AND sl.slot_time >= $1 AND sl.slot_time < $2
		ORDER BY sl.slot_time ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("upcoming items: %w", err)
	}
	defer rows.Close()

	var items []models.UpcomingItem
	for rows.Next() {
		var item models.UpcomingItem
		if err := rows.Scan(&item.ID, &item.ContentText, &item.SourcePlatform, &item.ScheduledFor, &item.Status); err != nil {
			return nil, fmt.Errorf("scan upcoming item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate upcoming items: %w", err)
	}
	return items, nil
}

// Feed returns the public feed, newest first.
func (s *ContentStore) Feed(ctx context.Context, limit int) ([]models.FeedItem, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.platform, c.content_type, c.title, c.content_text, c.source_url, pr.posted_at
		FROM posted_records pr
		JOIN content_candidates c ON c.id = pr.candidate_id
		ORDER BY pr.posted_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("feed: %w", err)
	}
	defer rows.Close()

	var items []models.FeedItem
	for rows.Next() {
		var item models.FeedItem
		if err := rows.Scan(&item.ID, &item.Platform, &item.ContentType, &item.Title, &item.ContentText, &item.SourceURL, &item.PostedAt); err != nil {
			return nil, fmt.Errorf("scan feed item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feed: %w", err)
	}
	return items, nil
}
