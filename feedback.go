package oracle

import (
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/store"
)

// ReliabilityUpdate is the result of recording a feedback event.
type ReliabilityUpdate struct {
	PatternID    string
	UsageCount   int
	SuccessCount int
	SuccessRate  float64
}

// Feedback records one usage outcome for patternID: usageCount always
// increments, successCount only on succeeded=true.
func (c *Core) Feedback(patternID string, succeeded bool) (ReliabilityUpdate, error) {
	p, err := c.local.RecordUsage(patternID, succeeded)
	if err != nil {
		return ReliabilityUpdate{}, err
	}
	rate := 0.0
	if p.UsageCount > 0 {
		rate = float64(p.SuccessCount) / float64(p.UsageCount)
	}
	return ReliabilityUpdate{
		PatternID:    p.ID,
		UsageCount:   p.UsageCount,
		SuccessCount: p.SuccessCount,
		SuccessRate:  rate,
	}, nil
}

// Inspect returns the full stored record for patternID, or a NotFound
// error if absent.
func (c *Core) Inspect(patternID string) (store.Pattern, error) {
	return c.local.Get(patternID)
}

// StoreSummary is the aggregate counter set Stats returns.
type StoreSummary struct {
	TotalPatterns     int
	CandidateCount    int
	ProvenCount       int
	RetiredCount      int
	TotalUsageCount   int
	TotalSuccessCount int
	AverageCoherency  float64
}

// Stats summarizes the local store's current contents.
func (c *Core) Stats() (StoreSummary, error) {
	all, err := c.local.List(store.Filter{})
	if err != nil {
		return StoreSummary{}, err
	}
	var s StoreSummary
	var coherencySum float64
	for _, p := range all {
		s.TotalPatterns++
		switch p.Status {
		case store.StatusCandidate:
			s.CandidateCount++
		case store.StatusProven:
			s.ProvenCount++
		case store.StatusRetired:
			s.RetiredCount++
		}
		s.TotalUsageCount += p.UsageCount
		s.TotalSuccessCount += p.SuccessCount
		coherencySum += p.CoherencyScore.Total
	}
	if s.TotalPatterns > 0 {
		s.AverageCoherency = coherencySum / float64(s.TotalPatterns)
	}
	return s, nil
}
