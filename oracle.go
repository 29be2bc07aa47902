// Package oracle is the root of the remembrance-oracle-toolkit core: a
// content-addressed code pattern memory with a test-gated admission
// pipeline and an iterative self-improvement loop. Core is the top-level
// struct that owns every subsystem (pattern store, safety gate, sandbox,
// coherency scorer, reflection engine, admission pipeline, healing
// supervisor, federation, event bus, external assistant) and exposes the
// stable public API. Every subsystem holds a plain value or pointer
// handed to it at construction time, never a pointer back into Core.
package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/admission"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/assistant"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/coherency"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/config"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/debugpattern"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/eventbus"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/federation"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/healing"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/logging"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/reflection"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/safety"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/sandbox"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/store"
)

// Core owns every subsystem and is the sole entry point client code uses.
// Its fields are all value handles or pointers into subsystems it
// constructed; no subsystem is given a pointer back to Core itself.
type Core struct {
	cfg *config.OracleConfig

	local     *store.Store
	personal  *store.Store
	community *store.Store

	gate   *safety.Gate
	sbox   *sandbox.Sandbox
	scorer *coherency.Scorer
	engine *reflection.Engine

	pipeline   *admission.Pipeline
	supervisor *healing.Supervisor
	fed        *federation.Federation
	bus        *eventbus.Bus
	assist     *assistant.Fallback
	debug      *debugpattern.Store
}

// Open boots a Core from cfg: store directories for local/personal/
// community (creating them if absent), then every stateless subsystem,
// then the subsystems that depend on the store.
func Open(cfg *config.OracleConfig) (*Core, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	if err := logging.Initialize(cfg.StorePath(), cfg.Logging.DebugMode, cfg.Logging.Categories, cfg.Logging.Level, cfg.Logging.JSONFormat); err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}
	logging.Boot("opening oracle core at %s", cfg.StorePath())

	local, err := store.Open(cfg.StorePath())
	if err != nil {
		return nil, err
	}
	personal, err := store.Open(cfg.PersonalStorePath)
	if err != nil {
		local.Close()
		return nil, err
	}
	community, err := store.Open(cfg.CommunityStorePath)
	if err != nil {
		local.Close()
		personal.Close()
		return nil, err
	}

	gate := safety.NewGate()
	scorer := coherency.NewScorer()
	sbox := sandbox.New(time.Duration(cfg.SandboxTimeoutMs) * time.Millisecond)
	engine := reflection.NewEngine(scorer)
	bus := eventbus.New()

	pipeline := admission.New(gate, sbox, scorer, local, bus, cfg.AdmissionThreshold, time.Duration(cfg.SandboxTimeoutMs)*time.Millisecond)
	supervisor := healing.New(local, engine, sbox, bus)

	tiers := []federation.Tier{
		federation.LocalTier{TierName: store.TierLocal, Patterns: local},
		federation.LocalTier{TierName: store.TierPersonal, Patterns: personal},
		federation.LocalTier{TierName: store.TierCommunity, Patterns: community},
	}
	for _, r := range cfg.Remotes {
		timeout := time.Duration(cfg.FederationTimeoutMs) * time.Millisecond
		tiers = append(tiers, federation.NewRemoteTier(r.Name, r.BaseURL, r.BearerKey, timeout))
	}
	fed := federation.New(tiers...)

	assist := assistant.NewFallback(nil, engine)
	debug := debugpattern.New(local)

	logging.Boot("oracle core ready: %d federation tier(s)", len(tiers))

	return &Core{
		cfg: cfg,

		local:     local,
		personal:  personal,
		community: community,

		gate:   gate,
		sbox:   sbox,
		scorer: scorer,
		engine: engine,

		pipeline:   pipeline,
		supervisor: supervisor,
		fed:        fed,
		bus:        bus,
		assist:     assist,
		debug:      debug,
	}, nil
}

// Close releases every store handle. A second call is harmless: the
// handles are already closed and report no error.
func (c *Core) Close() error {
	logging.Boot("closing oracle core")
	var firstErr error
	for _, s := range []*store.Store{c.local, c.personal, c.community} {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Config returns the OracleConfig this Core was opened with.
func (c *Core) Config() *config.OracleConfig { return c.cfg }

// SetAssistant installs an external capability adapter (e.g. an LLM
// bridge) behind the deterministic fallback every operation already has.
// Passing nil restores NoAssistant.
func (c *Core) SetAssistant(a assistant.Assistant) {
	c.assist = assistant.NewFallback(a, c.engine)
}

// Transpile converts code between languages: the installed assistant is
// asked first, then the built-in syntactic converter. ok=false means
// nothing was actually converted.
func (c *Core) Transpile(ctx context.Context, code string, from, to coherency.Language) (string, bool, error) {
	return c.assist.Transpile(ctx, code, from, to)
}

// Refine improves code: the installed assistant is asked first, falling
// back to the reflection engine's bounded heal loop.
func (c *Core) Refine(ctx context.Context, code string, lang coherency.Language) (string, bool, error) {
	return c.assist.Refine(ctx, code, lang)
}

// GenerateTests synthesizes test code for a snippet via the installed
// assistant; with none present it fails with NoTestSynthesis, since there
// is no deterministic substitute.
func (c *Core) GenerateTests(ctx context.Context, code string, lang coherency.Language) (string, bool, error) {
	return c.assist.GenerateTests(ctx, code, lang)
}

// Subscribe registers an EventBus listener for lifecycle events
// (pattern_added, healing_start, auto_promote, security_veto, ...).
func (c *Core) Subscribe(name eventbus.Name, l eventbus.Listener) {
	c.bus.Subscribe(name, l)
}

// RunHealing triggers one healing pass using the configured heal target,
// promote threshold, and pool size. Intended to be called periodically by
// the host process; Core does not run its own ticker.
func (c *Core) RunHealing(ctx context.Context) (healing.RunReport, error) {
	return c.supervisor.RunOnce(ctx, healing.RunOptions{
		HealTarget:       c.cfg.HealTarget,
		PromoteThreshold: c.cfg.PromoteThreshold,
		MaxHealsPerRun:   c.cfg.MaxHealsPerRun,
		MaxHealLoops:     c.cfg.MaxHealLoopsEvolve,
		WorkerPoolSize:   c.cfg.WorkerPoolSize,
	})
}

// RollbackPattern restores a pattern's most recent pre-swap code snapshot
// after a healing promotion went wrong.
func (c *Core) RollbackPattern(patternID string) error {
	return c.supervisor.Rollback(patternID, 0)
}

// VerifyOrRollback re-runs a pattern's stored test against its current
// code and, on failure, restores the previous snapshot and records a
// failed healing attempt.
func (c *Core) VerifyOrRollback(ctx context.Context, patternID string) error {
	return c.supervisor.VerifyOrRollback(ctx, patternID)
}

// HealingRate reports the healing success rate for one pattern,
// optimistically 1.0 before any attempt has been recorded.
func (c *Core) HealingRate(patternID string) (float64, error) {
	return c.supervisor.HealingRate(patternID)
}

// HealingRates reports healing success rates for the given patterns.
func (c *Core) HealingRates(patternIDs []string) (map[string]float64, error) {
	return c.supervisor.HealingRates(patternIDs)
}

// Prune retires every proven local pattern below minCoherency, returning
// the affected ids. A Backup snapshot is taken first per the supplemented
// backup-snapshot feature.
func (c *Core) Prune(minCoherency float64) ([]string, error) {
	if _, err := c.local.Backup("prune"); err != nil {
		return nil, err
	}
	return c.local.Prune(minCoherency)
}

// AuditTrail returns every audit log entry recorded for recordID, for
// reconciling a partially-failed multi-step operation.
func (c *Core) AuditTrail(recordID string) ([]store.AuditLogEntry, error) {
	return c.local.AuditTrail(recordID)
}
