package scheduler

import (
	"sort"

	"github.com/ashaw315/hotdog-diaries-sub014/pkg/models"
)

// SelectionConstraints gate eligibility before any diversity ranking runs.
// Manual platform gating therefore always wins over automatic scoring.
type SelectionConstraints struct {
	MinConfidence  float64
	AllowPlatforms []models.Platform // empty means all platforms
	DenyPlatforms  []models.Platform
	RecentHashes   map[string]struct{} // content hashes posted within the duplicate window
}

// SelectedCandidate pairs a pick with the diversity score that ranked it.
type SelectedCandidate struct {
	Candidate models.CandidateContent
	Score     float64
}

// Scorer ranks one candidate against a diversity snapshot.
type Scorer interface {
	Score(candidate models.CandidateContent, snapshot models.DiversitySnapshot) float64
}

// Selector picks candidates for publish slots, enforcing the
// no-immediate-repeat platform constraint as a hard rule.
type Selector struct {
	scorer Scorer
}

func NewSelector(scorer Scorer) *Selector {
	return &Selector{scorer: scorer}
}

// SelectForSlots returns at most slotCount picks plus a skip reason for each
// slot it could not fill. A shortfall is a success with skips, never an
// error; the selector never fabricates candidates.
//
// Picks are greedy over diversity score. No pick may share a platform with
// the immediately preceding pick in the same batch (the first pick compares
// against the most recently posted platform) unless the entire eligible pool
// is a single platform.
func (s *Selector) SelectForSlots(slotCount int, constraints SelectionConstraints, snapshot models.DiversitySnapshot, candidates []models.CandidateContent) ([]SelectedCandidate, []string) {
	if slotCount <= 0 {
		return nil, nil
	}

	pool := make([]SelectedCandidate, 0, len(candidates))
	platforms := make(map[models.Platform]struct{})
	for _, c := range candidates {
		if !eligible(c, constraints) {
			continue
		}
		pool = append(pool, SelectedCandidate{
			Candidate: c,
			Score:     s.scorer.Score(c, snapshot),
		})
		platforms[c.Platform] = struct{}{}
	}
	singlePlatformPool := len(platforms) == 1

	// Deterministic ranking: score, then confidence, then earliest id.
	sort.Slice(pool, func(i, j int) bool {
		if pool[i].Score != pool[j].Score {
			return pool[i].Score > pool[j].Score
		}
		if pool[i].Candidate.ConfidenceScore != pool[j].Candidate.ConfidenceScore {
			return pool[i].Candidate.ConfidenceScore > pool[j].Candidate.ConfidenceScore
		}
		return pool[i].Candidate.ID < pool[j].Candidate.ID
	})

	var prevPlatform models.Platform
	if len(snapshot.RecentPlatforms) > 0 {
		prevPlatform = snapshot.RecentPlatforms[0]
	}

	var picks []SelectedCandidate
	var skips []string
	for len(picks) < slotCount {
		if len(pool) == 0 {
			skips = append(skips, models.SkipInsufficientContent)
			if len(picks)+len(skips) == slotCount {
				break
			}
			continue
		}

		idx := -1
		for i, sc := range pool {
			if sc.Candidate.Platform != prevPlatform {
				idx = i
				break
			}
		}
		if idx == -1 {
			// Everything left repeats the previous platform. Allowed only
			// when no other platform ever had eligible content.
			if singlePlatformPool {
				idx = 0
			} else {
				skips = append(skips, models.SkipDiversityExhausted)
				if len(picks)+len(skips) == slotCount {
					break
				}
				continue
			}
		}

		pick := pool[idx]
		pool = append(pool[:idx], pool[idx+1:]...)
		picks = append(picks, pick)
		prevPlatform = pick.Candidate.Platform
	}

	return picks, skips
}

func eligible(c models.CandidateContent, constraints SelectionConstraints) bool {
	if c.Status != models.StatusApproved {
		return false
	}
	if c.ConfidenceScore < constraints.MinConfidence {
		return false
	}
	if _, dup := constraints.RecentHashes[c.ContentHash]; dup {
		return false
	}
	for _, p := range constraints.DenyPlatforms {
		if c.Platform == p {
			return false
		}
	}
	if len(constraints.AllowPlatforms) > 0 {
		allowed := false
		for _, p := range constraints.AllowPlatforms {
			if c.Platform == p {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	return true
}
