package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ashaw315/hotdog-diaries-sub014/internal/store"
	"github.com/ashaw315/hotdog-diaries-sub014/pkg/logging"
	"github.com/ashaw315/hotdog-diaries-sub014/pkg/models"
)

// PublisherStore is the slice of the content store the posting state machine
// depends on.
type PublisherStore interface {
	DueSlots(ctx context.Context, cutoff time.Time) ([]models.ScheduleSlot, error)
	HasPostedRecord(ctx context.Context, candidateID int64) (bool, error)
	PublishSlot(ctx context.Context, slot models.ScheduleSlot, recordID string, postedAt, dayStart, dayEnd time.Time) error
	MarkSlotFailed(ctx context.Context, slotID int64, maxFailures int) (bool, error)
}

// Publish outcomes.
const (
	PublishOutcomePublished     = "published"
	PublishOutcomeAlreadyPosted = "already_posted"
	PublishOutcomeNotDue        = "not_due"
	PublishOutcomeConflict      = "conflict"
)

// PublishResult reports what happened to one slot.
type PublishResult struct {
	SlotID      int64  `json:"slot_id"`
	CandidateID int64  `json:"candidate_id"`
	Outcome     string `json:"outcome"`
	RecordID    string `json:"record_id,omitempty"`
}

// Publisher transitions filled slots to posted. All writes of one publish
// land in a single transaction; a second publish of the same slot is a
// no-op detected via the existing posted record.
type Publisher struct {
	store       PublisherStore
	logger      logging.Logger
	timezone    string
	grace       time.Duration
	maxFailures int
	now         func() time.Time
}

func NewPublisher(st PublisherStore, logger logging.Logger, timezone string, grace time.Duration, maxFailures int) *Publisher {
	if maxFailures < 1 {
		maxFailures = 3
	}
	return &Publisher{
		store:       st,
		logger:      logger,
		timezone:    timezone,
		grace:       grace,
		maxFailures: maxFailures,
		now:         time.Now,
	}
}

// Publish posts one slot's candidate to the feed. Preconditions: the slot is
// filled and its time has arrived (a small grace window absorbs clock skew;
// the engine never publishes meaningfully early).
func (p *Publisher) Publish(ctx context.Context, slot models.ScheduleSlot) (PublishResult, error) {
	result := PublishResult{SlotID: slot.ID}
	if slot.CandidateID != nil {
		result.CandidateID = *slot.CandidateID
	}

	if slot.Status != models.SlotFilled || slot.CandidateID == nil {
		result.Outcome = PublishOutcomeConflict
		return result, fmt.Errorf("slot %d is not publishable (status %s)", slot.ID, slot.Status)
	}

	now := p.now()
	if now.Add(p.grace).Before(slot.SlotTime) {
		result.Outcome = PublishOutcomeNotDue
		return result, nil
	}

	// Idempotency backstop: an existing record means a previous publish
	// already succeeded (possibly with partial status writes that the
	// reconciler will repair). Never post twice.
	exists, err := p.store.HasPostedRecord(ctx, *slot.CandidateID)
	if err != nil {
		return result, fmt.Errorf("idempotency check: %w", err)
	}
	if exists {
		result.Outcome = PublishOutcomeAlreadyPosted
		return result, nil
	}

	loc, err := time.LoadLocation(p.timezone)
	if err != nil {
		return result, fmt.Errorf("load timezone: %w", err)
	}
	localDay := slot.SlotTime.In(loc)
	dayStart := time.Date(localDay.Year(), localDay.Month(), localDay.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	recordID := uuid.NewString()
	err = p.store.PublishSlot(ctx, slot, recordID, now, dayStart, dayEnd)
	if errors.Is(err, store.ErrConflict) {
		// A concurrent publish won the conditional update. Not a failure.
		result.Outcome = PublishOutcomeConflict
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("publish slot %d: %w", slot.ID, err)
	}

	result.Outcome = PublishOutcomePublished
	result.RecordID = recordID
	p.logger.WithFields(logging.Fields{
		"slot_id":      slot.ID,
		"candidate_id": *slot.CandidateID,
		"record_id":    recordID,
	}).Info("Published candidate to feed")
	return result, nil
}

// PublishDue publishes every filled slot whose time has arrived. Each slot
// is handled independently: one failure does not stop the rest. A failing
// slot is retried on later sweeps until its failure budget runs out, at
// which point it is freed and its candidate reverts to approved.
func (p *Publisher) PublishDue(ctx context.Context) ([]PublishResult, error) {
	slots, err := p.store.DueSlots(ctx, p.now())
	if err != nil {
		return nil, fmt.Errorf("find due slots: %w", err)
	}

	results := make([]PublishResult, 0, len(slots))
	for _, slot := range slots {
		result, err := p.Publish(ctx, slot)
		if err != nil {
			p.logger.WithError(err).WithField("slot_id", slot.ID).Error("Publish failed, slot stays filled for retry")
			freed, failErr := p.store.MarkSlotFailed(ctx, slot.ID, p.maxFailures)
			if failErr != nil {
				p.logger.WithError(failErr).WithField("slot_id", slot.ID).Error("Failed to record publish failure")
			} else if freed {
				p.logger.WithField("slot_id", slot.ID).Warn("Slot exhausted its failure budget and was freed")
			}
			continue
		}
		results = append(results, result)
	}
	return results, nil
}
