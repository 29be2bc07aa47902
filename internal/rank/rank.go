// Package rank scores candidate patterns against a query: a four-term
// relevance blend (token overlap, tag Jaccard, concept-cluster expansion,
// language match) folded with coherency, reliability, and the healing
// boost into one deterministic composite.
package rank

import (
	"sort"
	"strings"

	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/coherency"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/store"
)

const (
	weightTokenOverlap   = 0.35
	weightTagJaccard     = 0.25
	weightConceptCluster = 0.20
	weightLanguageMatch  = 0.20

	compositeRelevance   = 0.45
	compositeCoherency   = 0.30
	compositeReliability = 0.15
	compositeHealing     = 0.10

	partialFamilyMatch    = 0.7
	optimisticReliability = 0.5
)

// conceptClusters is a fixed concept -> related-tags table. Bounded and
// hand-authored, not learned embeddings.
var conceptClusters = map[string][]string{
	"concurrency": {"goroutine", "channel", "mutex", "async", "parallel", "worker-pool"},
	"networking":  {"http", "tcp", "socket", "rpc", "grpc", "rest"},
	"persistence": {"database", "sql", "cache", "storage", "serialization"},
	"testing":     {"mock", "fixture", "assertion", "coverage"},
	"security":    {"auth", "crypto", "sanitize", "validation"},
	"parsing":     {"lexer", "parser", "ast", "tokenizer", "grammar"},
}

// Query is a search request against the pattern store.
type Query struct {
	Description string
	Tags        []string
	Language    coherency.Language
}

// Ranked pairs a Pattern with its computed scores.
type Ranked struct {
	Pattern   store.Pattern
	Relevance float64
	Composite float64
}

func relevance(q Query, p store.Pattern) float64 {
	tokenScore := tokenOverlap(q.Description, p.Name+" "+p.Description)
	tagScore := tagJaccard(q.Tags, p.Tags)
	conceptScore := conceptClusterOverlap(q.Tags, p.Tags)
	langScore := languageMatch(q.Language, p.Language)

	return weightTokenOverlap*tokenScore +
		weightTagJaccard*tagScore +
		weightConceptCluster*conceptScore +
		weightLanguageMatch*langScore
}

// Rank scores every candidate against q and returns them sorted by
// composite descending, with deterministic tie-breaks: higher coherency,
// then higher usageCount, then earlier createdAt. Healing boosts default
// to 0; use RankWithBoost to fold in store.HealingStatsFor(id).CompositeBoost().
func Rank(q Query, candidates []store.Pattern) []Ranked {
	return RankWithBoost(q, candidates, nil)
}

// RankWithBoost is Rank, but accepts a precomputed healing boost per
// pattern ID (from store.HealingStatsFor(id).CompositeBoost()), since
// Ranker is pure and does not itself query the store.
func RankWithBoost(q Query, candidates []store.Pattern, boosts map[string]float64) []Ranked {
	out := make([]Ranked, 0, len(candidates))
	for _, p := range candidates {
		rel := relevance(q, p)
		reliability := optimisticReliability
		if p.UsageCount > 0 {
			reliability = float64(p.SuccessCount) / float64(p.UsageCount)
		}
		boost := boosts[p.ID]
		comp := compositeRelevance*rel +
			compositeCoherency*p.CoherencyScore.Total +
			compositeReliability*reliability +
			compositeHealing*(boost/1.5)
		out = append(out, Ranked{Pattern: p, Relevance: rel, Composite: comp})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Composite != b.Composite {
			return a.Composite > b.Composite
		}
		if a.Pattern.CoherencyScore.Total != b.Pattern.CoherencyScore.Total {
			return a.Pattern.CoherencyScore.Total > b.Pattern.CoherencyScore.Total
		}
		if a.Pattern.UsageCount != b.Pattern.UsageCount {
			return a.Pattern.UsageCount > b.Pattern.UsageCount
		}
		return a.Pattern.CreatedAt.Before(b.Pattern.CreatedAt)
	})
	return out
}

func tokenOverlap(query, target string) float64 {
	qTokens := tokenize(query)
	if len(qTokens) == 0 {
		return 0
	}
	tSet := make(map[string]bool)
	for _, t := range tokenize(target) {
		tSet[t] = true
	}
	matches := 0
	for _, t := range qTokens {
		if tSet[t] {
			matches++
		}
	}
	return float64(matches) / float64(len(qTokens))
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	return fields
}

func tagJaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	aSet := toSet(a)
	bSet := toSet(b)
	intersection := 0
	for t := range aSet {
		if bSet[t] {
			intersection++
		}
	}
	union := len(aSet)
	for t := range bSet {
		if !aSet[t] {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func toSet(tags []string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[strings.ToLower(t)] = true
	}
	return set
}

func conceptClusterOverlap(queryTags, patternTags []string) float64 {
	expanded := make(map[string]bool)
	for _, qt := range queryTags {
		expanded[strings.ToLower(qt)] = true
		if related, ok := conceptClusters[strings.ToLower(qt)]; ok {
			for _, r := range related {
				expanded[r] = true
			}
		}
	}
	if len(expanded) == 0 {
		return 0
	}
	pSet := toSet(patternTags)
	matches := 0
	for t := range expanded {
		if pSet[t] {
			matches++
		}
	}
	return float64(matches) / float64(len(expanded))
}

func languageMatch(query, candidate coherency.Language) float64 {
	if query == "" {
		return 1
	}
	if query == candidate {
		return 1
	}
	if coherency.SameFamily(query, candidate) {
		return partialFamilyMatch
	}
	return 0
}
