// Package store implements the pattern store: a persistent,
// content-addressed, versioned record store with candidate/proven/retired
// lifecycle, healing-variant lineage, and an append-only audit log,
// backed by SQLite.
package store

import (
	"time"

	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/coherency"
)

// Status is a Pattern's lifecycle state.
type Status string

const (
	StatusCandidate Status = "candidate"
	StatusProven    Status = "proven"
	StatusRetired   Status = "retired"
)

// Pattern is the canonical stored record.
type Pattern struct {
	ID       string
	Name     string
	Language coherency.Language

	Code        string
	TestCode    string
	Description string
	Tags        []string
	PatternType string
	Complexity  string

	CoherencyScore coherency.Score
	TestPassed     bool
	Author         string

	UsageCount   int
	SuccessCount int
	LastUsed     *time.Time
	CreatedAt    time.Time

	ParentPatternID  *string
	EvolutionHistory []string
	Status           Status
}

// HealedVariant is an immutable improvement derived from a parent Pattern.
type HealedVariant struct {
	ID                string
	ParentPatternID   string
	HealedCode        string
	OriginalCoherency float64
	HealedCoherency   float64
	HealingLoops      int
	HealingStrategy   string
	Whisper           string
	HealedAt          time.Time
}

// HealingStats are rolling per-pattern counters.
type HealingStats struct {
	PatternID     string
	Attempts      int
	Successes     int
	PeakCoherency float64
	LastDeltaBest float64
}

// SuccessRate is successes/attempts, optimistically 1.0 when attempts=0.
func (h HealingStats) SuccessRate() float64 {
	if h.Attempts == 0 {
		return 1.0
	}
	return float64(h.Successes) / float64(h.Attempts)
}

// CompositeBoost is B(p) = clamp(successRate * (1 + bestDelta), 0, 1.5).
func (h HealingStats) CompositeBoost() float64 {
	boost := h.SuccessRate() * (1 + h.LastDeltaBest)
	if boost < 0 {
		return 0
	}
	if boost > 1.5 {
		return 1.5
	}
	return boost
}

// DebugCategory is the closed set of error classes a DebugPattern belongs to.
type DebugCategory string

const (
	CategorySyntax     DebugCategory = "syntax"
	CategoryType       DebugCategory = "type"
	CategoryReference  DebugCategory = "reference"
	CategoryLogic      DebugCategory = "logic"
	CategoryRuntime    DebugCategory = "runtime"
	CategoryBuild      DebugCategory = "build"
	CategoryNetwork    DebugCategory = "network"
	CategoryPermission DebugCategory = "permission"
	CategoryAsync      DebugCategory = "async"
	CategoryData       DebugCategory = "data"
)

// DebugPattern is an error->fix record keyed by a stable fingerprint.
type DebugPattern struct {
	Fingerprint   string
	ErrorMessage  string
	StackTrace    string
	FixCode       string
	Language      coherency.Language
	Category      DebugCategory
	Confidence    float64
	TimesApplied  int
	TimesResolved int
}

// AuditLogEntry is an append-only record of one mutation.
type AuditLogEntry struct {
	Timestamp time.Time
	Action    string
	Table     string
	RecordID  string
	Actor     string
	Detail    string
}

// Tier names a federation tier a pattern may live in.
type Tier string

const (
	TierLocal     Tier = "local"
	TierPersonal  Tier = "personal"
	TierCommunity Tier = "community"
)

// RemoteTier returns a Tier value for a named remote.
func RemoteTier(name string) Tier { return Tier("remote:" + name) }

// Filter narrows List/Candidates queries.
type Filter struct {
	Language     coherency.Language
	Tags         []string
	MinCoherency float64
	Status       Status
	HasStatus    bool
}
