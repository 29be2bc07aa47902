package oracle

import (
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/coherency"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/eventbus"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/store"
)

// CaptureResult is the outcome of DebugCapture.
type CaptureResult struct {
	Pattern store.DebugPattern
	Created bool
}

// DebugCapture records an error->fix pair keyed by its normalized
// fingerprint. Category is inferred automatically from the error message.
func (c *Core) DebugCapture(errorMessage, stackTrace, fixCode string, language coherency.Language) (CaptureResult, error) {
	before, existed, err := c.debug.Search(errorMessage)
	if err != nil {
		return CaptureResult{}, err
	}
	p, err := c.debug.Capture(errorMessage, stackTrace, fixCode, language)
	if err != nil {
		return CaptureResult{}, err
	}
	created := !existed || before.Fingerprint != p.Fingerprint
	return CaptureResult{Pattern: p, Created: created}, nil
}

// DebugSearch returns every stored DebugPattern relevant to errorMessage:
// the exact fingerprint match first (if any), then related patterns
// sharing its category or error class, ranked by confidence. A stack
// trace does not affect fingerprinting; the fingerprint already
// normalizes file:line and address noise out of errorMessage.
func (c *Core) DebugSearch(errorMessage string, language coherency.Language) ([]store.DebugPattern, error) {
	return c.debug.SearchAll(errorMessage, language)
}

// ConfidenceUpdate is the outcome of DebugFeedback.
type ConfidenceUpdate struct {
	Fingerprint   string
	Confidence    float64
	TimesApplied  int
	TimesResolved int
}

// DebugFeedback records whether applying a DebugPattern's fix resolved the
// error, recalibrating its confidence. When the update carries confidence
// across the configured cascade threshold a debug_promote notice is
// published, once per crossing.
func (c *Core) DebugFeedback(fingerprint string, resolved bool) (ConfidenceUpdate, error) {
	before, found, err := c.local.GetDebugPattern(fingerprint)
	if err != nil {
		return ConfidenceUpdate{}, err
	}

	p, err := c.debug.Feedback(fingerprint, resolved)
	if err != nil {
		return ConfidenceUpdate{}, err
	}

	threshold := c.cfg.CascadeConfidenceThreshold
	if found && before.Confidence < threshold && p.Confidence >= threshold {
		c.bus.Publish(eventbus.Event{Name: eventbus.DebugPromote, Data: map[string]any{
			"fingerprint": p.Fingerprint,
			"confidence":  p.Confidence,
			"category":    string(p.Category),
		}})
	}

	return ConfidenceUpdate{
		Fingerprint:   p.Fingerprint,
		Confidence:    p.Confidence,
		TimesApplied:  p.TimesApplied,
		TimesResolved: p.TimesResolved,
	}, nil
}
