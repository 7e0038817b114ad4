package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ashaw315/hotdog-diaries-sub014/pkg/logging"
	"github.com/ashaw315/hotdog-diaries-sub014/pkg/models"
)

// SchedulePlanner is the planning surface the HTTP layer drives.
type SchedulePlanner interface {
	PlanSchedule(ctx context.Context, daysAhead, postsPerDay int, mode string) (models.ScheduleResult, error)
	UpcomingSchedule(ctx context.Context, days int) ([]models.UpcomingItem, error)
	ScheduleOverview(ctx context.Context, days int) (models.ScheduleOverview, error)
	CancelScheduledContent(ctx context.Context, contentID int64) (bool, error)
	RescheduleContent(ctx context.Context, contentID int64, newTime time.Time) (bool, error)
}

// FeedSource serves the public feed projection.
type FeedSource interface {
	Feed(ctx context.Context, limit int) ([]models.FeedItem, error)
}

// ReconcileRunner triggers a consistency-repair pass.
type ReconcileRunner interface {
	Run(ctx context.Context) (models.ReconcileReport, error)
}

const (
	defaultDaysAhead   = 7
	defaultPostsPerDay = 6
	requestTimeout     = 30 * time.Second
)

// ScheduleHandler exposes the scheduling engine over HTTP.
type ScheduleHandler struct {
	planner    SchedulePlanner
	feed       FeedSource
	reconciler ReconcileRunner
	logger     logging.Logger
	metrics    *SchedulerMetrics
}

func NewScheduleHandler(planner SchedulePlanner, feed FeedSource, reconciler ReconcileRunner, logger logging.Logger, metrics *SchedulerMetrics) *ScheduleHandler {
	return &ScheduleHandler{
		planner:    planner,
		feed:       feed,
		reconciler: reconciler,
		logger:     logger,
		metrics:    metrics,
	}
}

// RegisterRoutes mounts the API on the service router.
func (h *ScheduleHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/schedule", h.ScheduleBatch)
	api.GET("/schedule/upcoming", h.Upcoming)
	api.GET("/schedule/summary", h.Summary)
	api.POST("/schedule/content", h.MutateContent)
	api.GET("/feed", h.PublicFeed)
	api.POST("/admin/reconcile", h.Reconcile)
}

// ScheduleBatch triggers a planning run. An empty body or absent field
// applies the default window; an explicit out-of-range value, zero included,
// is rejected before any mutation.
func (h *ScheduleHandler) ScheduleBatch(c *gin.Context) {
	var req models.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	daysAhead := defaultDaysAhead
	if req.DaysAhead != nil {
		daysAhead = *req.DaysAhead
	}
	postsPerDay := defaultPostsPerDay
	if req.PostsPerDay != nil {
		postsPerDay = *req.PostsPerDay
	}
	mode := req.Mode
	if mode == "" {
		mode = models.ModeCreateOrReuse
	}

	if daysAhead < 1 || daysAhead > 30 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days_ahead must be between 1 and 30"})
		return
	}
	if postsPerDay < 1 || postsPerDay > 12 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "posts_per_day must be between 1 and 12"})
		return
	}
	if mode != models.ModeCreateOrReuse && mode != models.ModeOverwrite {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be create-or-reuse or overwrite"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	result, err := h.planner.PlanSchedule(ctx, daysAhead, postsPerDay, mode)
	if err != nil {
		h.metrics.IncRun(mode, "error")
		h.logger.WithError(err).Error("Schedule planning run failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Schedule planning failed"})
		return
	}

	h.metrics.IncRun(mode, "ok")
	c.JSON(http.StatusOK, result)
}

// Upcoming returns non-posted slots within the requested window.
func (h *ScheduleHandler) Upcoming(c *gin.Context) {
	days := defaultDaysAhead
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 30 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be between 1 and 30"})
			return
		}
		days = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	items, err := h.planner.UpcomingSchedule(ctx, days)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load upcoming schedule")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load upcoming schedule"})
		return
	}
	if items == nil {
		items = []models.UpcomingItem{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// Summary reports slot counts and the diversity snapshot for the window.
func (h *ScheduleHandler) Summary(c *gin.Context) {
	days := defaultDaysAhead
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 30 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be between 1 and 30"})
			return
		}
		days = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	overview, err := h.planner.ScheduleOverview(ctx, days)
	if err != nil {
		h.logger.WithError(err).Error("Failed to build schedule overview")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build schedule overview"})
		return
	}
	c.JSON(http.StatusOK, overview)
}

// MutateContent cancels or reschedules one scheduled candidate. A state
// guard miss (e.g. cancelling an already posted item) is a normal outcome
// reported as success=false, not an error status.
func (h *ScheduleHandler) MutateContent(c *gin.Context) {
	var req models.ContentActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if req.ContentID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content_id is required"})
		return
	}
	if req.Action == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	switch req.Action {
	case "cancel":
		ok, err := h.planner.CancelScheduledContent(ctx, req.ContentID)
		if err != nil {
			h.logger.WithError(err).WithField("content_id", req.ContentID).Error("Cancel failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Cancel failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": ok})
	case "reschedule":
		if req.NewScheduleTime == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "new_schedule_time is required for reschedule"})
			return
		}
		newTime, err := time.Parse(time.RFC3339, req.NewScheduleTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "new_schedule_time must be an RFC3339 timestamp"})
			return
		}
		ok, err := h.planner.RescheduleContent(ctx, req.ContentID, newTime)
		if err != nil {
			h.logger.WithError(err).WithField("content_id", req.ContentID).Error("Reschedule failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Reschedule failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": ok})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
	}
}

// PublicFeed serves the published feed, newest first.
func (h *ScheduleHandler) PublicFeed(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	items, err := h.feed.Feed(ctx, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load feed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load feed"})
		return
	}
	if items == nil {
		items = []models.FeedItem{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// Reconcile runs a consistency-repair pass on demand.
func (h *ScheduleHandler) Reconcile(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	report, err := h.reconciler.Run(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Reconciliation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Reconciliation failed"})
		return
	}
	for range report.DuplicateAnomalies {
		h.metrics.IncAnomaly("duplicate_posted_records")
	}
	c.JSON(http.StatusOK, report)
}
