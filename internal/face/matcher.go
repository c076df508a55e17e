// Package face matches a probe face embedding against enrolled accounts.
package face

import (
	"math"

	"github.com/BradenHooton/sentinel/internal/models"
)

// DefaultThreshold is the largest distance, exclusive, accepted as a match
const DefaultThreshold = 0.5

// Matcher selects the closest enrolled account by Euclidean distance
type Matcher struct {
	threshold float64
}

func NewMatcher(threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{threshold: threshold}
}

// Distance returns the Euclidean distance between a and b, which must have equal length
func Distance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Match returns the candidate with the globally smallest distance to probe, or
// nil when that distance is not strictly below the threshold. Only user
// accounts are eligible. Candidates without an embedding, or whose embedding
// length differs from the probe, are skipped. Ties keep the earlier candidate.
func (m *Matcher) Match(probe []float64, candidates []*models.Account) *models.Account {
	if len(probe) == 0 {
		return nil
	}

	var best *models.Account
	bestDistance := math.Inf(1)
	for _, c := range candidates {
		if c == nil || c.Role != models.RoleUser || len(c.FaceEmbedding) != len(probe) {
			continue
		}
		if d := Distance(probe, c.FaceEmbedding); d < bestDistance {
			best, bestDistance = c, d
		}
	}

	if best == nil || bestDistance >= m.threshold {
		return nil
	}
	return best
}
