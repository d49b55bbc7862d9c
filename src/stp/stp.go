// Package stp implements Self-Trade Prevention: detecting when an
// incoming tradable would cross with a resting tradable belonging to
// the same trader, and applying one of four configurable actions. The
// trader identity is an explicit field lookup (TraderIDExtractor)
// rather than anything scraped out of the order id, which stays opaque.
package stp

import "matchcore/src/tradable"

// Mode selects the action taken when a self-trade is detected.
type Mode string

const (
	Allow          Mode = "ALLOW"
	CancelIncoming Mode = "CANCEL_INCOMING"
	CancelResting  Mode = "CANCEL_RESTING"
	CancelBoth     Mode = "CANCEL_BOTH"
)

// DefaultMode is CANCEL_RESTING.
const DefaultMode = CancelResting

// TraderIDExtractor resolves the trader identity responsible for a
// tradable. The default extractor simply returns the tradable's User
// field; it exists as a pluggable capability so alternate id schemes
// (sub-accounts, desk groupings) can be layered on without touching the
// crossing loop.
type TraderIDExtractor func(t *tradable.Order) string

// DefaultExtractor returns the tradable's User field.
func DefaultExtractor(t *tradable.Order) string {
	return t.User
}

// Engine applies a configured Mode using a configured extractor. The
// Mode can be changed at runtime by calling SetMode; readers always
// observe a fully-formed Mode value.
type Engine struct {
	mode      Mode
	extractor TraderIDExtractor
}

// New constructs an Engine with the given mode (DefaultMode if empty)
// and the default trader-id extractor.
func New(mode Mode) *Engine {
	if mode == "" {
		mode = DefaultMode
	}
	return &Engine{mode: mode, extractor: DefaultExtractor}
}

// WithExtractor swaps in a custom TraderIDExtractor.
func (e *Engine) WithExtractor(extractor TraderIDExtractor) *Engine {
	e.extractor = extractor
	return e
}

// SetMode reconfigures the STP action. Callers must hold the owning
// ProductBook's exclusive lock when calling this, since Engine itself
// carries no lock; it is always accessed from inside the critical
// section.
func (e *Engine) SetMode(mode Mode) {
	e.mode = mode
}

func (e *Engine) Mode() Mode {
	return e.mode
}

// IsSelfTrade reports whether incoming and resting belong to the same
// trader.
func (e *Engine) IsSelfTrade(incoming, resting *tradable.Order) bool {
	return e.extractor(incoming) == e.extractor(resting)
}

// Action describes what the crossing loop must do for a detected
// self-trade.
type Action struct {
	CancelIncoming bool
	CancelResting  bool
	// ContinueLoop is false when the crossing loop must stop entirely
	// (CANCEL_INCOMING, CANCEL_BOTH); true when it should skip the
	// resting head and keep trying (CANCEL_RESTING).
	ContinueLoop bool
}

// Decide returns the Action for the configured mode. Callers must check
// IsSelfTrade first and only call Decide when it returned true; an
// ALLOW decision then means "proceed to trade".
func (e *Engine) Decide() Action {
	switch e.mode {
	case Allow:
		return Action{ContinueLoop: true}
	case CancelIncoming:
		return Action{CancelIncoming: true, ContinueLoop: false}
	case CancelBoth:
		return Action{CancelIncoming: true, CancelResting: true, ContinueLoop: false}
	case CancelResting:
		fallthrough
	default:
		return Action{CancelResting: true, ContinueLoop: true}
	}
}
