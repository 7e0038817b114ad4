package config

import (
	"strings"
	"time"

	"github.com/ashaw315/hotdog-diaries-sub014/pkg/config"
	"github.com/ashaw315/hotdog-diaries-sub014/pkg/models"
)

// SelectionWeights are the tunable coefficients of the diversity score.
type SelectionWeights struct {
	RecencyPenaltyLast1 float64 // platform posted in the most recent slot
	RecencyPenaltyLast2 float64 // platform posted two slots ago
	OverrepWeight       float64 // scales how far a platform exceeds its fair share
	UnderrepTypeBonus   float64 // scales how far a content type trails its target
}

// Config stores environment configuration for the curator service.
type Config struct {
	Port        string
	DatabaseURL string

	// Scheduling
	Timezone       string
	DailyPostTimes []string // "HH:MM", sorted chronologically
	DaysAhead      int
	PostsPerDay    int

	// Selection
	MinConfidence     float64
	DiversityLookback int
	DuplicateWindow   time.Duration
	Weights           SelectionWeights
	TypeTargets       map[models.ContentType]float64

	// Jobs
	PublishInterval    time.Duration
	PublishGrace       time.Duration
	PublishMaxFailures int
	ReconcileInterval  time.Duration
}

// LoadConfig loads the curator configuration from environment variables.
func LoadConfig() Config {
	return Config{
		Port:        config.GetEnv("PORT", "18080"),
		DatabaseURL: config.RequireEnv("DATABASE_URL"),

		Timezone:       config.GetEnv("SCHEDULE_TIMEZONE", "America/New_York"),
		DailyPostTimes: splitTimes(config.GetEnv("DAILY_POST_TIMES", "08:00,12:00,15:00,18:00,21:00,23:30")),
		DaysAhead:      config.GetEnvInt("SCHEDULE_DAYS_AHEAD", 7),
		PostsPerDay:    config.GetEnvInt("SCHEDULE_POSTS_PER_DAY", 6),

		MinConfidence:     config.GetEnvFloat("MIN_CONFIDENCE", 0.6),
		DiversityLookback: config.GetEnvInt("DIVERSITY_LOOKBACK", 20),
		DuplicateWindow:   config.GetEnvDuration("DUPLICATE_WINDOW", 30*24*time.Hour),
		Weights: SelectionWeights{
			RecencyPenaltyLast1: config.GetEnvFloat("WEIGHT_RECENCY_LAST1", 0.30),
			RecencyPenaltyLast2: config.GetEnvFloat("WEIGHT_RECENCY_LAST2", 0.15),
			OverrepWeight:       config.GetEnvFloat("WEIGHT_OVERREP", 0.50),
			UnderrepTypeBonus:   config.GetEnvFloat("WEIGHT_UNDERREP_TYPE", 0.20),
		},
		TypeTargets: map[models.ContentType]float64{
			models.ContentTypeImage: config.GetEnvFloat("TARGET_IMAGE_PCT", 0.40),
			models.ContentTypeGif:   config.GetEnvFloat("TARGET_GIF_PCT", 0.25),
			models.ContentTypeVideo: config.GetEnvFloat("TARGET_VIDEO_PCT", 0.30),
			models.ContentTypeText:  config.GetEnvFloat("TARGET_TEXT_PCT", 0.05),
		},

		PublishInterval:    config.GetEnvDuration("PUBLISH_INTERVAL", time.Minute),
		PublishGrace:       config.GetEnvDuration("PUBLISH_GRACE", 5*time.Minute),
		PublishMaxFailures: config.GetEnvInt("PUBLISH_MAX_FAILURES", 3),
		ReconcileInterval:  config.GetEnvDuration("RECONCILE_INTERVAL", time.Hour),
	}
}

func splitTimes(raw string) []string {
	parts := strings.Split(raw, ",")
	times := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			times = append(times, trimmed)
		}
	}
	return times
}
