// internal/matching/scoring.go
// Weighted tutor ranking. Pure functions, no I/O.

package matching

import (
	"math"
	"sort"
	"strings"
)

// Factor ceilings. They add up to MaxScore.
const (
	locationMax   = 25.0
	timeFitMax    = 25.0
	trackMax      = 20.0
	ratingMax     = 15.0
	completionMax = 10.0
	bonusMax      = 5.0

	MaxScore = 100.0

	provinceScore    = 15.0
	otherCityScore   = 5.0
	partialTimeScore = 15.0
	baseTimeScore    = 10.0
	newTutorBonus    = 2.0
	newTutorClasses  = 10
	maxStars         = 5.0
)

// ScoreBreakdown holds the per-factor contribution of a score
type ScoreBreakdown struct {
	Location   float64 `json:"location"`
	TimeFit    float64 `json:"timeFit"`
	Track      float64 `json:"trackRecord"`
	Rating     float64 `json:"rating"`
	Completion float64 `json:"completion"`
	Bonus      float64 `json:"bonus"`
}

// Total is the clamped sum of all factors
func (b ScoreBreakdown) Total() float64 {
	sum := b.Location + b.TimeFit + b.Track + b.Rating + b.Completion + b.Bonus
	return clamp(sum, 0, MaxScore)
}

// ScoringEngine ranks candidates against a request
type ScoringEngine struct{}

func NewScoringEngine() *ScoringEngine {
	return &ScoringEngine{}
}

// Score returns the candidate's match score in [0,100]
func (e *ScoringEngine) Score(c *Candidate, r *MatchRequest) float64 {
	return e.Breakdown(c, r).Total()
}

// Breakdown computes each weighted factor
func (e *ScoringEngine) Breakdown(c *Candidate, r *MatchRequest) ScoreBreakdown {
	return ScoreBreakdown{
		Location:   locationScore(c, r.PreferredCity),
		TimeFit:    timeFitScore(c.Availability, r.PreferredTimes),
		Track:      clamp(c.PerformanceScore, 0, maxStars) / maxStars * trackMax,
		Rating:     clamp(c.AverageRating, 0, maxStars) / maxStars * ratingMax,
		Completion: completionRate(c) * completionMax,
		Bonus:      bonusScore(c),
	}
}

// Rank scores every candidate and orders them best first.
// Equal scores fall back to candidate id, ascending.
func (e *ScoringEngine) Rank(candidates []*Candidate, r *MatchRequest) []ScoredCandidate {
	ranked := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, ScoredCandidate{Candidate: c, Score: e.Score(c, r)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Candidate.ID.String() < ranked[j].Candidate.ID.String()
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// TopK returns at most k entries from an already ranked slice
func TopK(ranked []ScoredCandidate, k int) []ScoredCandidate {
	if k < 0 {
		k = 0
	}
	if len(ranked) > k {
		return ranked[:k]
	}
	return ranked
}

func locationScore(c *Candidate, preferredCity string) float64 {
	city := strings.TrimSpace(preferredCity)
	switch {
	case city != "" && strings.EqualFold(strings.TrimSpace(c.City), city):
		return locationMax
	case city != "" && strings.EqualFold(strings.TrimSpace(c.Province), city):
		return provinceScore
	default:
		return otherCityScore
	}
}

// timeFitScore only compares days of the week; slot hours are informational
func timeFitScore(availability []AvailabilitySlot, preferred []TimeSlot) float64 {
	if len(preferred) == 0 || len(availability) == 0 {
		return baseTimeScore
	}

	activeDays := make(map[int]bool, len(availability))
	for _, a := range availability {
		if a.IsActive {
			activeDays[a.DayOfWeek] = true
		}
	}

	matched := 0
	for _, p := range preferred {
		if activeDays[p.DayOfWeek] {
			matched++
		}
	}

	switch {
	case matched == len(preferred):
		return timeFitMax
	case matched > 0:
		return partialTimeScore
	default:
		return baseTimeScore
	}
}

func completionRate(c *Candidate) float64 {
	if c.TotalClasses <= 0 {
		return 0
	}
	return clamp(float64(c.CompletedClasses)/float64(c.TotalClasses), 0, 1)
}

func bonusScore(c *Candidate) float64 {
	if c.HasBadge(BadgePriority) {
		return bonusMax
	}
	if c.TotalClasses < newTutorClasses {
		return newTutorBonus
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(hi, math.Max(lo, v))
}
