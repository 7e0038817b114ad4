package scheduler

import (
	"testing"

	"github.com/ashaw315/hotdog-diaries-sub014/pkg/models"
)

// confidenceScorer ranks purely by confidence, which keeps the hard
// constraint behavior under test independent of the scoring weights.
type confidenceScorer struct{}

func (confidenceScorer) Score(c models.CandidateContent, _ models.DiversitySnapshot) float64 {
	return c.ConfidenceScore
}

func approvedCandidate(id int64, platform models.Platform, confidence float64) models.CandidateContent {
	return models.CandidateContent{
		ID:              id,
		Platform:        platform,
		ContentType:     models.ContentTypeImage,
		ConfidenceScore: confidence,
		ContentHash:     "hash-" + string(rune('a'+id)),
		Status:          models.StatusApproved,
	}
}

func TestSelectForSlots_NoImmediatePlatformRepeat(t *testing.T) {
	selector := NewSelector(confidenceScorer{})
	candidates := []models.CandidateContent{
		approvedCandidate(1, models.PlatformReddit, 0.9),
		approvedCandidate(2, models.PlatformReddit, 0.8),
		approvedCandidate(3, models.PlatformGiphy, 0.5),
	}

	picks, skips := selector.SelectForSlots(2, SelectionConstraints{MinConfidence: 0.5}, models.DiversitySnapshot{}, candidates)
	if len(skips) != 0 {
		t.Fatalf("expected no skips, got %v", skips)
	}
	if len(picks) != 2 {
		t.Fatalf("expected 2 picks, got %d", len(picks))
	}
	// The second reddit candidate outranks giphy but would repeat the platform.
	if picks[0].Candidate.ID != 1 || picks[1].Candidate.ID != 3 {
		t.Fatalf("expected picks [1, 3], got [%d, %d]", picks[0].Candidate.ID, picks[1].Candidate.ID)
	}
}

func TestSelectForSlots_FirstPickAvoidsMostRecentPostedPlatform(t *testing.T) {
	selector := NewSelector(confidenceScorer{})
	candidates := []models.CandidateContent{
		approvedCandidate(1, models.PlatformReddit, 0.9),
		approvedCandidate(2, models.PlatformGiphy, 0.7),
	}
	snapshot := models.DiversitySnapshot{RecentPlatforms: []models.Platform{models.PlatformReddit}}

	picks, _ := selector.SelectForSlots(1, SelectionConstraints{MinConfidence: 0.5}, snapshot, candidates)
	if len(picks) != 1 || picks[0].Candidate.ID != 2 {
		t.Fatalf("expected giphy first after a reddit post, got %+v", picks)
	}
}

func TestSelectForSlots_SinglePlatformPoolRelaxesRepeatRule(t *testing.T) {
	selector := NewSelector(confidenceScorer{})
	candidates := []models.CandidateContent{
		approvedCandidate(1, models.PlatformReddit, 0.9),
		approvedCandidate(2, models.PlatformReddit, 0.8),
		approvedCandidate(3, models.PlatformReddit, 0.7),
	}

	picks, skips := selector.SelectForSlots(3, SelectionConstraints{MinConfidence: 0.5}, models.DiversitySnapshot{}, candidates)
	if len(picks) != 3 {
		t.Fatalf("single-platform pool should fill all slots, got %d picks, skips %v", len(picks), skips)
	}
}

func TestSelectForSlots_DiversityExhaustedWhenRepeatUnavoidable(t *testing.T) {
	selector := NewSelector(confidenceScorer{})
	// Two platforms existed in the pool, so the repeat rule stays hard: after
	// reddit, giphy, reddit, only reddit remains and the last slot is skipped.
	candidates := []models.CandidateContent{
		approvedCandidate(1, models.PlatformReddit, 0.9),
		approvedCandidate(2, models.PlatformReddit, 0.8),
		approvedCandidate(3, models.PlatformReddit, 0.7),
		approvedCandidate(4, models.PlatformGiphy, 0.6),
	}

	picks, skips := selector.SelectForSlots(4, SelectionConstraints{MinConfidence: 0.5}, models.DiversitySnapshot{}, candidates)
	if len(picks) != 3 {
		t.Fatalf("expected 3 picks, got %d", len(picks))
	}
	if len(skips) != 1 || skips[0] != models.SkipDiversityExhausted {
		t.Fatalf("expected one diversity_exhausted skip, got %v", skips)
	}
	for i := 1; i < len(picks); i++ {
		if picks[i].Candidate.Platform == picks[i-1].Candidate.Platform {
			t.Fatalf("consecutive picks share platform at %d", i)
		}
	}
}

func TestSelectForSlots_ShortfallReportsInsufficientContent(t *testing.T) {
	selector := NewSelector(confidenceScorer{})
	candidates := []models.CandidateContent{
		approvedCandidate(1, models.PlatformReddit, 0.9),
		approvedCandidate(2, models.PlatformGiphy, 0.8),
	}

	picks, skips := selector.SelectForSlots(6, SelectionConstraints{MinConfidence: 0.5}, models.DiversitySnapshot{}, candidates)
	if len(picks) != 2 {
		t.Fatalf("expected 2 picks, got %d", len(picks))
	}
	if len(skips) != 4 {
		t.Fatalf("expected 4 skips, got %d", len(skips))
	}
	for _, reason := range skips {
		if reason != models.SkipInsufficientContent {
			t.Fatalf("expected insufficient_content, got %s", reason)
		}
	}
}

func TestSelectForSlots_FiltersBelowThresholdAndDuplicates(t *testing.T) {
	selector := NewSelector(confidenceScorer{})
	dup := approvedCandidate(1, models.PlatformReddit, 0.9)
	low := approvedCandidate(2, models.PlatformGiphy, 0.4)
	ok := approvedCandidate(3, models.PlatformImgur, 0.7)
	pending := approvedCandidate(4, models.PlatformTumblr, 0.9)
	pending.Status = models.StatusPendingReview

	picks, _ := selector.SelectForSlots(4, SelectionConstraints{
		MinConfidence: 0.6,
		RecentHashes:  map[string]struct{}{dup.ContentHash: {}},
	}, models.DiversitySnapshot{}, []models.CandidateContent{dup, low, ok, pending})

	if len(picks) != 1 || picks[0].Candidate.ID != 3 {
		t.Fatalf("expected only candidate 3 eligible, got %+v", picks)
	}
}

func TestSelectForSlots_PlatformGating(t *testing.T) {
	selector := NewSelector(confidenceScorer{})
	candidates := []models.CandidateContent{
		approvedCandidate(1, models.PlatformReddit, 0.9),
		approvedCandidate(2, models.PlatformGiphy, 0.8),
		approvedCandidate(3, models.PlatformImgur, 0.7),
	}

	picks, _ := selector.SelectForSlots(3, SelectionConstraints{
		MinConfidence:  0.5,
		AllowPlatforms: []models.Platform{models.PlatformGiphy, models.PlatformImgur},
		DenyPlatforms:  []models.Platform{models.PlatformImgur},
	}, models.DiversitySnapshot{}, candidates)

	if len(picks) != 1 || picks[0].Candidate.Platform != models.PlatformGiphy {
		t.Fatalf("gating should leave only giphy, got %+v", picks)
	}
}

func TestSelectForSlots_DeterministicTieBreakByID(t *testing.T) {
	selector := NewSelector(confidenceScorer{})
	candidates := []models.CandidateContent{
		approvedCandidate(9, models.PlatformReddit, 0.8),
		approvedCandidate(2, models.PlatformGiphy, 0.8),
	}

	picks, _ := selector.SelectForSlots(1, SelectionConstraints{MinConfidence: 0.5}, models.DiversitySnapshot{}, candidates)
	if len(picks) != 1 || picks[0].Candidate.ID != 2 {
		t.Fatalf("equal scores must break ties by earliest id, got %+v", picks)
	}
}
