package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ashaw315/hotdog-diaries-sub014/internal/config"
	"github.com/ashaw315/hotdog-diaries-sub014/pkg/logging"
	"github.com/ashaw315/hotdog-diaries-sub014/pkg/models"
)

// PlannerStore is the slice of the content store the planner depends on.
// Every operation is individually atomic at the storage layer.
type PlannerStore interface {
	FindApproved(ctx context.Context, limit int) ([]models.CandidateContent, error)
	PostedHashesSince(ctx context.Context, since time.Time) (map[string]struct{}, error)
	SlotsBetween(ctx context.Context, from, to time.Time) ([]models.ScheduleSlot, error)
	AssignCandidate(ctx context.Context, slotTime time.Time, candidateID int64) (int64, bool, error)
	FreeSlot(ctx context.Context, slotID int64) (bool, error)
	SlotOccupied(ctx context.Context, t time.Time) (bool, error)
	CancelScheduled(ctx context.Context, candidateID int64) (bool, error)
	RescheduleCandidate(ctx context.Context, candidateID int64, newTime time.Time) (bool, error)
	UpcomingItems(ctx context.Context, from, to time.Time) ([]models.UpcomingItem, error)
	SlotStatusCounts(ctx context.Context, from, to time.Time) (map[models.SlotStatus]int, error)
}

// SnapshotSource produces diversity snapshots from posting history.
type SnapshotSource interface {
	Snapshot(ctx context.Context, lookback int) (models.DiversitySnapshot, error)
}

// Planner maps selected candidates onto concrete slot instants. Each
// assignment commits independently, so an aborted run leaves a valid,
// merely incomplete schedule.
type Planner struct {
	store    PlannerStore
	analyzer SnapshotSource
	selector *Selector
	cfg      config.Config
	logger   logging.Logger
	now      func() time.Time
}

func NewPlanner(store PlannerStore, analyzer SnapshotSource, selector *Selector, cfg config.Config, logger logging.Logger) *Planner {
	return &Planner{
		store:    store,
		analyzer: analyzer,
		selector: selector,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// PlanSchedule fills publish slots for the coming window. Validation happens
// before any mutation. In create-or-reuse mode existing filled and posted
// slots are left untouched; overwrite additionally frees filled (never
// posted) slots first.
func (p *Planner) PlanSchedule(ctx context.Context, daysAhead, postsPerDay int, mode string) (models.ScheduleResult, error) {
	result := models.ScheduleResult{
		Summary: models.ScheduleSummary{PlatformDistribution: make(map[models.Platform]int)},
	}

	if daysAhead < 1 || daysAhead > 30 {
		return result, fmt.Errorf("days_ahead must be within [1,30], got %d", daysAhead)
	}
	if postsPerDay < 1 || postsPerDay > 12 {
		return result, fmt.Errorf("posts_per_day must be within [1,12], got %d", postsPerDay)
	}
	if mode != models.ModeCreateOrReuse && mode != models.ModeOverwrite {
		return result, fmt.Errorf("unknown planning mode %q", mode)
	}

	loc, err := time.LoadLocation(p.cfg.Timezone)
	if err != nil {
		return result, fmt.Errorf("load timezone %q: %w", p.cfg.Timezone, err)
	}

	now := p.now()
	targets, err := p.slotInstants(now, loc, daysAhead, postsPerDay)
	if err != nil {
		return result, err
	}
	if len(targets) == 0 {
		return result, nil
	}
	windowEnd := targets[len(targets)-1].Add(time.Minute)

	existing, err := p.store.SlotsBetween(ctx, now, windowEnd)
	if err != nil {
		return result, fmt.Errorf("load existing slots: %w", err)
	}

	if mode == models.ModeOverwrite {
		for _, slot := range existing {
			if slot.Status != models.SlotFilled {
				continue
			}
			if _, err := p.store.FreeSlot(ctx, slot.ID); err != nil {
				result.Errors = append(result.Errors, models.ScheduleError{
					SlotTime: slot.SlotTime,
					Message:  fmt.Sprintf("free slot: %v", err),
				})
			}
		}
		existing, err = p.store.SlotsBetween(ctx, now, windowEnd)
		if err != nil {
			return result, fmt.Errorf("reload slots: %w", err)
		}
	}

	occupied := make(map[int64]models.SlotStatus, len(existing))
	for _, slot := range existing {
		if slot.Status == models.SlotFilled || slot.Status == models.SlotPosted {
			occupied[slot.SlotTime.Unix()] = slot.Status
		}
	}

	var unfilled []time.Time
	for _, t := range targets {
		if _, taken := occupied[t.Unix()]; !taken {
			unfilled = append(unfilled, t)
		}
	}
	if len(unfilled) == 0 {
		return result, nil
	}

	snapshot, err := p.analyzer.Snapshot(ctx, p.cfg.DiversityLookback)
	if err != nil {
		return result, fmt.Errorf("diversity snapshot: %w", err)
	}
	candidates, err := p.store.FindApproved(ctx, 0)
	if err != nil {
		return result, fmt.Errorf("find approved: %w", err)
	}
	recentHashes, err := p.store.PostedHashesSince(ctx, now.Add(-p.cfg.DuplicateWindow))
	if err != nil {
		return result, fmt.Errorf("recent hashes: %w", err)
	}

	picks, skips := p.selector.SelectForSlots(len(unfilled), SelectionConstraints{
		MinConfidence: p.cfg.MinConfidence,
		RecentHashes:  recentHashes,
	}, snapshot, candidates)

	// Assign picks to slots in chronological order. A lost claim race is not
	// an error: the next pick takes the slot instead.
	slotIdx := 0
	for _, pick := range picks {
		if slotIdx >= len(unfilled) {
			break
		}
		slotTime := unfilled[slotIdx]
		slotID, ok, err := p.store.AssignCandidate(ctx, slotTime, pick.Candidate.ID)
		if err != nil {
			result.Errors = append(result.Errors, models.ScheduleError{
				SlotTime: slotTime,
				Message:  fmt.Sprintf("assign candidate %d: %v", pick.Candidate.ID, err),
			})
			slotIdx++
			continue
		}
		if !ok {
			p.logger.WithFields(logging.Fields{
				"candidate_id": pick.Candidate.ID,
				"slot_time":    slotTime,
			}).Info("Candidate claimed by concurrent run, skipping")
			continue
		}
		result.Scheduled = append(result.Scheduled, models.ScheduledItem{
			SlotID:      slotID,
			SlotTime:    slotTime,
			CandidateID: pick.Candidate.ID,
			Platform:    pick.Candidate.Platform,
		})
		result.Summary.PlatformDistribution[pick.Candidate.Platform]++
		slotIdx++
	}

	// Remaining target instants stay empty; attach the selector's reasons.
	for _, reason := range skips {
		if slotIdx >= len(unfilled) {
			break
		}
		result.Skipped = append(result.Skipped, models.SkippedSlot{
			SlotTime: unfilled[slotIdx],
			Reason:   reason,
		})
		slotIdx++
	}
	for ; slotIdx < len(unfilled); slotIdx++ {
		result.Skipped = append(result.Skipped, models.SkippedSlot{
			SlotTime: unfilled[slotIdx],
			Reason:   models.SkipInsufficientContent,
		})
	}

	result.Summary.TotalScheduled = len(result.Scheduled)
	result.Summary.Shortfall = len(result.Skipped)

	p.logger.WithFields(logging.Fields{
		"mode":      mode,
		"scheduled": result.Summary.TotalScheduled,
		"skipped":   len(result.Skipped),
		"errors":    len(result.Errors),
	}).Info("Schedule planning run complete")

	return result, nil
}

// slotInstants computes the absolute publish instants for the window. Times
// of day are interpreted in the configured location so DST transitions can
// not double-book or skip slots; instants already in the past are dropped.
func (p *Planner) slotInstants(now time.Time, loc *time.Location, daysAhead, postsPerDay int) ([]time.Time, error) {
	times, err := dailyTimes(p.cfg.DailyPostTimes, postsPerDay)
	if err != nil {
		return nil, err
	}

	local := now.In(loc)
	var instants []time.Time
	seen := make(map[int64]struct{})
	for day := 0; day < daysAhead; day++ {
		date := local.AddDate(0, 0, day)
		for _, tod := range times {
			instant := time.Date(date.Year(), date.Month(), date.Day(), tod.hour, tod.minute, 0, 0, loc)
			if !instant.After(now) {
				continue
			}
			// A nonexistent wall time on a DST transition day normalizes to
			// the same instant as its neighbor; keep one, never double-book.
			if _, dup := seen[instant.Unix()]; dup {
				continue
			}
			seen[instant.Unix()] = struct{}{}
			instants = append(instants, instant)
		}
	}
	sort.Slice(instants, func(i, j int) bool { return instants[i].Before(instants[j]) })
	return instants, nil
}

type timeOfDay struct {
	hour   int
	minute int
}

// dailyTimes returns postsPerDay times of day: the configured list when it
// is long enough, otherwise instants spread evenly across the day.
func dailyTimes(configured []string, postsPerDay int) ([]timeOfDay, error) {
	if postsPerDay <= len(configured) {
		times := make([]timeOfDay, 0, postsPerDay)
		for _, raw := range configured[:postsPerDay] {
			tod, err := parseTimeOfDay(raw)
			if err != nil {
				return nil, err
			}
			times = append(times, tod)
		}
		sort.Slice(times, func(i, j int) bool {
			if times[i].hour != times[j].hour {
				return times[i].hour < times[j].hour
			}
			return times[i].minute < times[j].minute
		})
		return times, nil
	}

	step := 24 * 60 / postsPerDay
	times := make([]timeOfDay, 0, postsPerDay)
	for i := 0; i < postsPerDay; i++ {
		minutes := i * step
		times = append(times, timeOfDay{hour: minutes / 60, minute: minutes % 60})
	}
	return times, nil
}

func parseTimeOfDay(raw string) (timeOfDay, error) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return timeOfDay{}, fmt.Errorf("invalid time of day %q", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return timeOfDay{}, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return timeOfDay{}, fmt.Errorf("invalid minute in %q", raw)
	}
	return timeOfDay{hour: hour, minute: minute}, nil
}

// UpcomingSchedule returns the read-only projection of filled slots within
// the next days.
func (p *Planner) UpcomingSchedule(ctx context.Context, days int) ([]models.UpcomingItem, error) {
	if days < 1 {
		days = 1
	}
	now := p.now()
	return p.store.UpcomingItems(ctx, now, now.AddDate(0, 0, days))
}

// ScheduleOverview summarizes the coming window: slot counts by status plus
// the current diversity snapshot.
func (p *Planner) ScheduleOverview(ctx context.Context, days int) (models.ScheduleOverview, error) {
	if days < 1 {
		days = 1
	}
	now := p.now()
	counts, err := p.store.SlotStatusCounts(ctx, now, now.AddDate(0, 0, days))
	if err != nil {
		return models.ScheduleOverview{}, err
	}
	snapshot, err := p.analyzer.Snapshot(ctx, p.cfg.DiversityLookback)
	if err != nil {
		return models.ScheduleOverview{}, err
	}
	return models.ScheduleOverview{
		WindowDays: days,
		SlotCounts: counts,
		Diversity:  snapshot,
	}, nil
}

// CancelScheduledContent reverts a scheduled candidate to approved and frees
// its slot. Returns false when the candidate is not in a cancellable state;
// that is a common outcome, not an error.
func (p *Planner) CancelScheduledContent(ctx context.Context, contentID int64) (bool, error) {
	return p.store.CancelScheduled(ctx, contentID)
}

// RescheduleContent moves a scheduled candidate to a new instant. The
// occupancy pre-check is a fast path; a concurrent fill between check and
// move is caught by the store's unique index and also reported as false.
func (p *Planner) RescheduleContent(ctx context.Context, contentID int64, newTime time.Time) (bool, error) {
	occupied, err := p.store.SlotOccupied(ctx, newTime)
	if err != nil {
		return false, err
	}
	if occupied {
		return false, nil
	}
	return p.store.RescheduleCandidate(ctx, contentID, newTime)
}
