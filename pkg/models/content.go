package models

import "time"

// Platform identifies the source a candidate was scraped from.
type Platform string

const (
	PlatformReddit   Platform = "reddit"
	PlatformYouTube  Platform = "youtube"
	PlatformGiphy    Platform = "giphy"
	PlatformImgur    Platform = "imgur"
	PlatformBluesky  Platform = "bluesky"
	PlatformTumblr   Platform = "tumblr"
	PlatformLemmy    Platform = "lemmy"
	PlatformPixabay  Platform = "pixabay"
	PlatformUnsplash Platform = "unsplash"
)

// ContentType classifies the primary media of a candidate.
type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
	ContentTypeVideo ContentType = "video"
	ContentTypeGif   ContentType = "gif"
	ContentTypeMixed ContentType = "mixed"
)

// CandidateStatus is the single closed-set lifecycle state of a candidate.
// Transitions move forward only; the engine proposes transitions through
// conditional updates and never regresses a row except where reconciliation
// repairs drift.
type CandidateStatus string

const (
	StatusDiscovered    CandidateStatus = "discovered"
	StatusPendingReview CandidateStatus = "pending_review"
	StatusApproved      CandidateStatus = "approved"
	StatusRejected      CandidateStatus = "rejected"
	StatusScheduled     CandidateStatus = "scheduled"
	StatusPosted        CandidateStatus = "posted"
)

// SlotStatus is the lifecycle state of a schedule slot.
type SlotStatus string

const (
	SlotEmpty     SlotStatus = "empty"
	SlotFilled    SlotStatus = "filled"
	SlotPosted    SlotStatus = "posted"
	SlotCancelled SlotStatus = "cancelled"
)

// CandidateContent is a content item discovered by a scanner, owned by the
// candidate store. ContentHash is unique across all candidates and backs
// duplicate detection.
type CandidateContent struct {
	ID              int64           `json:"id"`
	Platform        Platform        `json:"platform"`
	ContentType     ContentType     `json:"content_type"`
	Title           string          `json:"title"`
	ContentText     string          `json:"content_text"`
	SourceURL       string          `json:"source_url"`
	ConfidenceScore float64         `json:"confidence_score"`
	ContentHash     string          `json:"content_hash"`
	Status          CandidateStatus `json:"status"`
	ScheduledAt     *time.Time      `json:"scheduled_at,omitempty"`
	PostedAt        *time.Time      `json:"posted_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// PostedRecord is one entry in the public feed history. At most one exists
// per candidate; reconciliation treats a violation as a critical anomaly.
type PostedRecord struct {
	ID          string    `json:"id"`
	CandidateID int64     `json:"candidate_id"`
	PostedAt    time.Time `json:"posted_at"`
	SlotTime    time.Time `json:"slot_time"`
	Ordinal     int       `json:"ordinal"`
}

// ScheduleSlot is a fixed future timestamp allocated for one published item.
type ScheduleSlot struct {
	ID          int64      `json:"id"`
	SlotTime    time.Time  `json:"slot_time"`
	CandidateID *int64     `json:"candidate_id,omitempty"`
	Status      SlotStatus `json:"status"`
}

// FeedItem is the public projection of a published candidate.
type FeedItem struct {
	ID          int64       `json:"id"`
	Platform    Platform    `json:"platform"`
	ContentType ContentType `json:"content_type"`
	Title       string      `json:"title"`
	ContentText string      `json:"content_text"`
	SourceURL   string      `json:"source_url"`
	PostedAt    time.Time   `json:"posted_at"`
}
