// Package federation implements parallel search fan-out across the
// local, personal, community, and remote tiers, with per-tier timeouts,
// dedup-by-(name,language) merge, and partial-failure tolerance.
package federation

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/rank"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/store"
)

const (
	personalTimeout  = 2 * time.Second
	communityTimeout = 2 * time.Second
	remoteTimeout    = 5 * time.Second
)

// Tier is a single searchable source, local or remote.
type Tier interface {
	Name() store.Tier
	Search(ctx context.Context, q rank.Query) ([]store.Pattern, error)
}

// LocalTier wraps an in-process *store.Store as a federation Tier with no
// imposed timeout (the caller's ctx still bounds it).
type LocalTier struct {
	TierName store.Tier
	Patterns *store.Store
}

func (t LocalTier) Name() store.Tier { return t.TierName }

func (t LocalTier) Search(ctx context.Context, q rank.Query) ([]store.Pattern, error) {
	filter := store.Filter{Language: q.Language, Tags: q.Tags}
	return t.Patterns.List(filter)
}

// Result is the outcome of a federated search.
type Result struct {
	Patterns []rank.Ranked
	Errors   map[store.Tier]error
}

// Federation fans a query out across every registered tier.
type Federation struct {
	tiers []Tier
}

// New constructs a Federation from an ordered set of tiers. Order among
// remote tiers is registration order.
func New(tiers ...Tier) *Federation {
	return &Federation{tiers: tiers}
}

func timeoutFor(name store.Tier) time.Duration {
	switch name {
	case store.TierLocal:
		return 0
	case store.TierPersonal:
		return personalTimeout
	case store.TierCommunity:
		return communityTimeout
	default:
		return remoteTimeout
	}
}

// tierPrecedence ranks tiers for dedup: local > personal > community > remote.
func tierPrecedence(name store.Tier) int {
	switch name {
	case store.TierLocal:
		return 0
	case store.TierPersonal:
		return 1
	case store.TierCommunity:
		return 2
	default:
		return 3
	}
}

// Search fans out to every tier in parallel, merges by (name, language)
// with tier precedence, ranks the merged set, and trims to limit. A
// failing tier is recorded in Result.Errors and does not fail the whole
// search.
func (f *Federation) Search(ctx context.Context, q rank.Query, limit int) Result {
	type tierOutcome struct {
		tier     store.Tier
		patterns []store.Pattern
		err      error
	}

	outcomes := make([]tierOutcome, len(f.tiers))
	g, gctx := errgroup.WithContext(ctx)

	for i, t := range f.tiers {
		i, t := i, t
		g.Go(func() error {
			tierCtx := gctx
			if d := timeoutFor(t.Name()); d > 0 {
				var cancel context.CancelFunc
				tierCtx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}
			patterns, err := t.Search(tierCtx, q)
			outcomes[i] = tierOutcome{tier: t.Name(), patterns: patterns, err: err}
			return nil
		})
	}
	_ = g.Wait()

	errs := make(map[store.Tier]error)
	type merged struct {
		pattern    store.Pattern
		precedence int
	}
	byKey := make(map[string]merged)

	for _, o := range outcomes {
		if o.err != nil {
			errs[o.tier] = o.err
			continue
		}
		prec := tierPrecedence(o.tier)
		for _, p := range o.patterns {
			key := string(p.Language) + "::" + p.Name
			if existing, ok := byKey[key]; ok && existing.precedence <= prec {
				continue
			}
			byKey[key] = merged{pattern: p, precedence: prec}
		}
	}

	all := make([]store.Pattern, 0, len(byKey))
	for _, m := range byKey {
		all = append(all, m.pattern)
	}

	ranked := rank.Rank(q, all)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return Result{Patterns: ranked, Errors: errs}
}
