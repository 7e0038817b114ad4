package diversity

import (
	"context"

	"github.com/ashaw315/hotdog-diaries-sub014/internal/config"
	"github.com/ashaw315/hotdog-diaries-sub014/pkg/models"
)

// HistorySource supplies recent posting history, newest first.
type HistorySource interface {
	RecentPosted(ctx context.Context, limit int) ([]models.PostedMeta, error)
}

// Analyzer computes diversity snapshots and per-candidate scores. It holds
// no state of its own: every snapshot is recomputed from the store, so the
// engine stays restartable.
type Analyzer struct {
	history HistorySource
	weights config.SelectionWeights
	targets map[models.ContentType]float64
}

func NewAnalyzer(history HistorySource, weights config.SelectionWeights, targets map[models.ContentType]float64) *Analyzer {
	return &Analyzer{
		history: history,
		weights: weights,
		targets: targets,
	}
}

// Snapshot builds a diversity snapshot from the last lookback posted
// records. Fewer records than requested is fine; zero records yields an
// empty snapshot that applies no penalties.
func (a *Analyzer) Snapshot(ctx context.Context, lookback int) (models.DiversitySnapshot, error) {
	snapshot := models.DiversitySnapshot{
		PlatformCounts: make(map[models.Platform]int),
		TypeCounts:     make(map[models.ContentType]int),
	}

	metas, err := a.history.RecentPosted(ctx, lookback)
	if err != nil {
		return snapshot, err
	}

	snapshot.TotalPosts = len(metas)
	for _, m := range metas {
		snapshot.PlatformCounts[m.Platform]++
		snapshot.TypeCounts[m.ContentType]++
		snapshot.RecentPlatforms = append(snapshot.RecentPlatforms, m.Platform)
	}
	return snapshot, nil
}

// Score ranks a candidate against the snapshot:
//
//	confidence
//	  - recency penalty  (platform posted in the last one or two slots)
//	  - overrepresentation penalty (platform share above its fair share)
//	  + underrepresentation bonus  (content type below its target share)
//
// The no-immediate-repeat rule is not part of the score; the selector
// enforces it as a hard constraint.
func (a *Analyzer) Score(candidate models.CandidateContent, snapshot models.DiversitySnapshot) float64 {
	score := candidate.ConfidenceScore

	if len(snapshot.RecentPlatforms) > 0 && snapshot.RecentPlatforms[0] == candidate.Platform {
		score -= a.weights.RecencyPenaltyLast1
	}
	if len(snapshot.RecentPlatforms) > 1 && snapshot.RecentPlatforms[1] == candidate.Platform {
		score -= a.weights.RecencyPenaltyLast2
	}

	if snapshot.TotalPosts > 0 {
		platforms := len(snapshot.PlatformCounts)
		if platforms > 0 {
			fairShare := 1.0 / float64(platforms)
			share := float64(snapshot.PlatformCounts[candidate.Platform]) / float64(snapshot.TotalPosts)
			if share > fairShare {
				score -= a.weights.OverrepWeight * (share - fairShare)
			}
		}

		if target, ok := a.targets[candidate.ContentType]; ok {
			typeShare := float64(snapshot.TypeCounts[candidate.ContentType]) / float64(snapshot.TotalPosts)
			if typeShare < target {
				score += a.weights.UnderrepTypeBonus * (target - typeShare)
			}
		}
	}

	return score
}
