package models

import "time"

// Skip reasons reported per unfilled slot.
const (
	SkipInsufficientContent = "insufficient_content"
	SkipDiversityExhausted  = "diversity_exhausted"
)

// Planning modes.
const (
	ModeCreateOrReuse = "create-or-reuse"
	ModeOverwrite     = "overwrite"
)

// ScheduleRequest is the body of POST /api/schedule. The window fields are
// pointers so an absent field (take the default) stays distinguishable from
// an explicit zero (rejected by validation).
type ScheduleRequest struct {
	DaysAhead   *int   `json:"days_ahead"`
	PostsPerDay *int   `json:"posts_per_day"`
	Mode        string `json:"mode"`
}

// ScheduledItem is one (candidate, slot) assignment in a plan result.
type ScheduledItem struct {
	SlotID      int64     `json:"slot_id"`
	SlotTime    time.Time `json:"slot_time"`
	CandidateID int64     `json:"candidate_id"`
	Platform    Platform  `json:"platform"`
}

// SkippedSlot reports an unfilled slot and why it stayed empty.
type SkippedSlot struct {
	SlotTime time.Time `json:"slot_time"`
	Reason   string    `json:"reason"`
}

// ScheduleError is a run-level error tied to a specific slot or operation.
type ScheduleError struct {
	SlotTime time.Time `json:"slot_time,omitempty"`
	Message  string    `json:"message"`
}

// ScheduleSummary aggregates a planning run.
type ScheduleSummary struct {
	TotalScheduled       int              `json:"total_scheduled"`
	Shortfall            int              `json:"shortfall"`
	PlatformDistribution map[Platform]int `json:"platform_distribution"`
}

// ScheduleResult is the outcome of a planning run. Batch operations return
// partial success: itemized scheduled/skipped/errors instead of failing the
// whole batch for one bad item.
type ScheduleResult struct {
	Scheduled []ScheduledItem `json:"scheduled"`
	Skipped   []SkippedSlot   `json:"skipped"`
	Errors    []ScheduleError `json:"errors"`
	Summary   ScheduleSummary `json:"summary"`
}

// UpcomingItem is the read-only projection of a non-posted slot.
type UpcomingItem struct {
	ID             int64      `json:"id"`
	ContentText    string     `json:"content_text"`
	SourcePlatform Platform   `json:"source_platform"`
	ScheduledFor   time.Time  `json:"scheduled_for"`
	Status         SlotStatus `json:"status"`
}

// ContentActionRequest is the body of POST /api/schedule/content.
type ContentActionRequest struct {
	ContentID       int64  `json:"content_id"`
	Action          string `json:"action"`
	NewScheduleTime string `json:"new_schedule_time,omitempty"`
}

// PostedMeta is the (platform, content type) projection of one posted
// record, the unit the diversity snapshot is built from.
type PostedMeta struct {
	Platform    Platform    `json:"platform"`
	ContentType ContentType `json:"content_type"`
	PostedAt    time.Time   `json:"posted_at"`
}

// DiversitySnapshot is a derived view over recent posting history. It is
// recomputed on demand and never persisted.
type DiversitySnapshot struct {
	TotalPosts      int                 `json:"total_posts"`
	PlatformCounts  map[Platform]int    `json:"platform_counts"`
	TypeCounts      map[ContentType]int `json:"type_counts"`
	RecentPlatforms []Platform          `json:"recent_platforms"` // most recent first
}

// ScheduleOverview is the read-only summary of the coming window.
type ScheduleOverview struct {
	WindowDays int                `json:"window_days"`
	SlotCounts map[SlotStatus]int `json:"slot_counts"`
	Diversity  DiversitySnapshot  `json:"diversity"`
}

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	OrphanedPosted     []int64 `json:"orphaned_posted"`     // posted candidates without a record, reset to approved
	CorrectedDrift     []int64 `json:"corrected_drift"`     // candidates force-corrected to posted
	DuplicateAnomalies []int64 `json:"duplicate_anomalies"` // candidates with multiple posted records, escalated
}
