package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/ashaw315/hotdog-diaries-sub014/pkg/models"
)

func newMockStore(t *testing.T) (*ContentStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return NewContentStore(db), mock, func() { db.Close() }
}

func TestFindApproved_ExcludesLiveSlotReferences(t *testing.T) {
	st, mock, cleanup := newMockStore(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "platform", "content_type", "title", "content_text", "source_url",
		"confidence_score", "content_hash", "status", "scheduled_at", "posted_at",
		"created_at", "updated_at",
	}).AddRow(
		int64(7), "reddit", "image", "Glizzy", "a hotdog", "https://example.com/7",
		0.91, "hash-7", "approved", nil, nil, now, now,
	)

	mock.ExpectQuery("FROM content_candidates c").
		WithArgs(200).
		WillReturnRows(rows)

	candidates, err := st.FindApproved(context.Background(), 0)
	if err != nil {
		t.Fatalf("FindApproved returned error: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].ID != 7 || candidates[0].Platform != models.PlatformReddit {
		t.Fatalf("unexpected candidate: %+v", candidates[0])
	}
	if candidates[0].ScheduledAt != nil {
		t.Fatalf("expected nil scheduled_at")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAssignCandidate_ReusesEmptySlot(t *testing.T) {
	st, mock, cleanup := newMockStore(t)
	defer cleanup()

	slotTime := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE content_candidates").
		WithArgs(int64(42), slotTime).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("UPDATE schedule_slots").
		WithArgs(slotTime, int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))
	mock.ExpectCommit()

	slotID, ok, err := st.AssignCandidate(context.Background(), slotTime, 42)
	if err != nil {
		t.Fatalf("AssignCandidate returned error: %v", err)
	}
	if !ok || slotID != 9 {
		t.Fatalf("expected (9, true), got (%d, %v)", slotID, ok)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAssignCandidate_InsertsSlotWhenNoneEmpty(t *testing.T) {
	st, mock, cleanup := newMockStore(t)
	defer cleanup()

	slotTime := time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE content_candidates").
		WithArgs(int64(42), slotTime).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("UPDATE schedule_slots").
		WithArgs(slotTime, int64(42)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("INSERT INTO schedule_slots").
		WithArgs(slotTime, int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(31)))
	mock.ExpectCommit()

	slotID, ok, err := st.AssignCandidate(context.Background(), slotTime, 42)
	if err != nil {
		t.Fatalf("AssignCandidate returned error: %v", err)
	}
	if !ok || slotID != 31 {
		t.Fatalf("expected (31, true), got (%d, %v)", slotID, ok)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAssignCandidate_LostClaimRaceIsNotAnError(t *testing.T) {
	st, mock, cleanup := newMockStore(t)
	defer cleanup()

	slotTime := time.Date(2026, 3, 9, 18, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE content_candidates").
		WithArgs(int64(42), slotTime).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	slotID, ok, err := st.AssignCandidate(context.Background(), slotTime, 42)
	if err != nil {
		t.Fatalf("lost race should not be an error, got: %v", err)
	}
	if ok || slotID != 0 {
		t.Fatalf("expected (0, false), got (%d, %v)", slotID, ok)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPublishSlot_AllWritesInOneTransaction(t *testing.T) {
	st, mock, cleanup := newMockStore(t)
	defer cleanup()

	candidateID := int64(42)
	slotTime := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	postedAt := slotTime.Add(30 * time.Second)
	dayStart := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)
	slot := models.ScheduleSlot{ID: 9, SlotTime: slotTime, CandidateID: &candidateID, Status: models.SlotFilled}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(dayStart, dayEnd).
		WillReturnRows(sqlmock.NewRows([]string{"ordinal"}).AddRow(3))
	mock.ExpectExec("INSERT INTO posted_records").
		WithArgs("rec-1", candidateID, postedAt, slotTime, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE content_candidates").
		WithArgs(candidateID, postedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE schedule_slots").
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := st.PublishSlot(context.Background(), slot, "rec-1", postedAt, dayStart, dayEnd); err != nil {
		t.Fatalf("PublishSlot returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPublishSlot_ConflictRollsBackRecordInsert(t *testing.T) {
	st, mock, cleanup := newMockStore(t)
	defer cleanup()

	candidateID := int64(42)
	slotTime := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	postedAt := slotTime.Add(time.Minute)
	dayStart := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)
	slot := models.ScheduleSlot{ID: 9, SlotTime: slotTime, CandidateID: &candidateID, Status: models.SlotFilled}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(dayStart, dayEnd).
		WillReturnRows(sqlmock.NewRows([]string{"ordinal"}).AddRow(1))
	mock.ExpectExec("INSERT INTO posted_records").
		WithArgs("rec-2", candidateID, postedAt, slotTime, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE content_candidates").
		WithArgs(candidateID, postedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := st.PublishSlot(context.Background(), slot, "rec-2", postedAt, dayStart, dayEnd)
	if err != ErrConflict {
		t.Fatalf("expected ErrConflict, got: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCancelScheduled_GuardMissReturnsFalse(t *testing.T) {
	st, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE content_candidates").
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	ok, err := st.CancelScheduled(context.Background(), 42)
	if err != nil {
		t.Fatalf("guard miss should not be an error, got: %v", err)
	}
	if ok {
		t.Fatalf("expected false for non-scheduled candidate")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCancelScheduled_CancelsSlotWithCandidate(t *testing.T) {
	st, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE content_candidates").
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE schedule_slots").
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := st.CancelScheduled(context.Background(), 42)
	if err != nil {
		t.Fatalf("CancelScheduled returned error: %v", err)
	}
	if !ok {
		t.Fatalf("expected cancel to succeed")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMarkSlotFailed_BelowBudgetKeepsSlot(t *testing.T) {
	st, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE schedule_slots").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"fail_count", "candidate_id"}).AddRow(1, int64(42)))
	mock.ExpectCommit()

	freed, err := st.MarkSlotFailed(context.Background(), 9, 3)
	if err != nil {
		t.Fatalf("MarkSlotFailed returned error: %v", err)
	}
	if freed {
		t.Fatalf("one failure must not free the slot")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMarkSlotFailed_ExhaustedBudgetFreesSlot(t *testing.T) {
	st, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE schedule_slots").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"fail_count", "candidate_id"}).AddRow(3, int64(42)))
	mock.ExpectExec("UPDATE schedule_slots").
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE content_candidates").
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	freed, err := st.MarkSlotFailed(context.Background(), 9, 3)
	if err != nil {
		t.Fatalf("MarkSlotFailed returned error: %v", err)
	}
	if !freed {
		t.Fatalf("expected the slot to be freed at the failure budget")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestHasPostedRecord(t *testing.T) {
	st, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := st.HasPostedRecord(context.Background(), 42)
	if err != nil {
		t.Fatalf("HasPostedRecord returned error: %v", err)
	}
	if !exists {
		t.Fatalf("expected existing record")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRescheduleCandidate_MovesSlotAndCandidate(t *testing.T) {
	st, mock, cleanup := newMockStore(t)
	defer cleanup()

	newTime := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE schedule_slots").
		WithArgs(int64(42), newTime).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE content_candidates").
		WithArgs(int64(42), newTime).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	moved, err := st.RescheduleCandidate(context.Background(), 42, newTime)
	if err != nil {
		t.Fatalf("RescheduleCandidate returned error: %v", err)
	}
	if !moved {
		t.Fatalf("expected the candidate to move")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRescheduleCandidate_TargetInstantTakenIsNotAnError(t *testing.T) {
	st, mock, cleanup := newMockStore(t)
	defer cleanup()

	newTime := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	// A concurrent fill between any occupancy pre-check and the move lands
	// here as a unique violation on the live-slot index.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE schedule_slots").
		WithArgs(int64(42), newTime).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	moved, err := st.RescheduleCandidate(context.Background(), 42, newTime)
	if err != nil {
		t.Fatalf("a lost slot race must not be an error: %v", err)
	}
	if moved {
		t.Fatalf("expected moved=false when the instant is taken")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
