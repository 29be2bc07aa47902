package oracle

import (
	"context"

	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/coherency"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/eventbus"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/federation"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/oracleerr"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/rank"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/reflection"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/resolve"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/store"
)

// SearchQuery is the public search request shape: a natural-language
// description plus optional tag/language narrowing.
type SearchQuery struct {
	Description string
	Tags        []string
	Language    coherency.Language
}

func (q SearchQuery) toRankQuery() rank.Query {
	return rank.Query{Description: q.Description, Tags: q.Tags, Language: q.Language}
}

// Query ranks every local pattern matching q.Language against q, applying
// each candidate's current healing boost. Candidates below the configured
// query-time coherency floor are excluded before ranking. Results are
// returned in composite-descending order with deterministic tie-breaks.
func (c *Core) Query(q SearchQuery) ([]rank.Ranked, error) {
	candidates, err := c.local.List(store.Filter{Language: q.Language, Tags: q.Tags, MinCoherency: c.cfg.MinCoherencyQuery})
	if err != nil {
		return nil, err
	}
	boosts := make(map[string]float64, len(candidates))
	for _, p := range candidates {
		stats, err := c.local.HealingStatsFor(p.ID)
		if err != nil {
			continue
		}
		boosts[p.ID] = stats.CompositeBoost()
	}
	return rank.RankWithBoost(q.toRankQuery(), candidates, boosts), nil
}

// Resolve runs Query then applies the PULL/EVOLVE/GENERATE decision ladder
// over the result. On a PULL or EVOLVE decision it also runs the bounded
// heal loop the decision assigns (3 loops for PULL, 5 for EVOLVE,
// overridable in config) over the chosen pattern, attaching the Healing
// report.
func (c *Core) Resolve(q SearchQuery) (resolve.Result, error) {
	ranked, err := c.Query(q)
	if err != nil {
		return resolve.Result{}, err
	}
	result := resolve.Resolve(ranked)
	if result.Best == nil {
		return result, nil
	}
	loops := c.cfg.MaxHealLoops(result.Decision == resolve.DecisionEvolve)
	report, err := c.engine.Heal(result.Best.Pattern.Code, result.Best.Pattern.Language, loops)
	if err != nil {
		return result, err
	}
	result.Healing = &report
	return result, nil
}

// FederatedSearch fans q out across local/personal/community and any
// configured remote tiers, merging and ranking the result. limit <= 0
// means unbounded.
func (c *Core) FederatedSearch(ctx context.Context, q SearchQuery, limit int) federation.Result {
	return c.fed.Search(ctx, q.toRankQuery(), limit)
}

// Heal runs ReflectionEngine's bounded fixed-point loop directly over a
// stored pattern's code without going through Resolve, for callers that
// already have a specific pattern id in hand (e.g. a manual "heal this"
// action).
func (c *Core) Heal(patternID string, maxLoops int) (reflection.Report, error) {
	p, err := c.local.Get(patternID)
	if err != nil {
		return reflection.Report{}, err
	}
	return c.engine.Heal(p.Code, p.Language, maxLoops)
}

// Share copies a pattern from the personal store (falling back to local if
// it only exists there) into the community store. Sharing requires
// test-backed proof and coherency at or above the configured share floor.
func (c *Core) Share(patternID string) (store.Pattern, error) {
	p, err := c.personal.Get(patternID)
	if err != nil {
		p, err = c.local.Get(patternID)
		if err != nil {
			return store.Pattern{}, err
		}
	}

	if !p.TestPassed {
		return store.Pattern{}, oracleerr.Newf(oracleerr.Internal, "pattern %q cannot be shared without passing tests", patternID)
	}
	if p.CoherencyScore.Total < c.cfg.MinCoherencyShare {
		return store.Pattern{}, oracleerr.Newf(oracleerr.CoherencyTooLow,
			"pattern %q coherency %.4f is below the share floor %.4f", patternID, p.CoherencyScore.Total, c.cfg.MinCoherencyShare)
	}

	shared := p
	shared.ID = ""
	shared.UsageCount = 0
	shared.SuccessCount = 0
	shared.LastUsed = nil
	inserted, err := c.community.Insert(shared)
	if err != nil {
		return store.Pattern{}, err
	}
	c.bus.Publish(eventbus.Event{Name: eventbus.FederationSync, Data: map[string]any{"id": inserted.ID, "tier": string(store.TierCommunity)}})
	return inserted, nil
}
