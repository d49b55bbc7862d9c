// Package latency instruments the admission critical section with a
// fixed set of named checkpoints, and aggregates completed timelines
// into percentile statistics plus a Prometheus histogram.
package latency

import "time"

// Timeline captures the T0..T10 monotonic-clock checkpoints for a single
// admission. Checkpoints are stamped in order, so T0 <= T1 <= ... <= T10.
type Timeline struct {
	OrderID    string
	Instrument string

	T0Arrival          int64
	T1Deserialized     int64
	T2Validated        int64
	T3LockAcquired     int64
	T4MatchingBegins   int64
	T5MatchingComplete int64
	T6ExecutionBegins  int64
	T7ExecutionDone    int64
	T8AuditBegins      int64
	T9AuditComplete    int64
	T10ResponseSent    int64
}

// NewTimeline starts a timeline at T0 = now (monotonic nanoseconds).
func NewTimeline(orderID, instrument string) *Timeline {
	return &Timeline{OrderID: orderID, Instrument: instrument, T0Arrival: nowNanos()}
}

// clockBase anchors checkpoint readings; time.Since uses the monotonic
// clock reading carried by time.Now, so wall-clock steps do not leak in.
var clockBase = time.Now()

func nowNanos() int64 { return int64(time.Since(clockBase)) }

// Every Mark* method is a no-op on a nil receiver so call sites in the
// engine package can accept an optional *Timeline without branching on
// every checkpoint (most unit tests and internal calls pass nil).
func (t *Timeline) MarkDeserialized() {
	if t == nil {
		return
	}
	t.T1Deserialized = nowNanos()
}
func (t *Timeline) MarkValidated() {
	if t == nil {
		return
	}
	t.T2Validated = nowNanos()
}
func (t *Timeline) MarkLockAcquired() {
	if t == nil {
		return
	}
	t.T3LockAcquired = nowNanos()
}
func (t *Timeline) MarkMatchingBegins() {
	if t == nil {
		return
	}
	t.T4MatchingBegins = nowNanos()
}
func (t *Timeline) MarkMatchingComplete() {
	if t == nil {
		return
	}
	t.T5MatchingComplete = nowNanos()
}
func (t *Timeline) MarkExecutionBegins() {
	if t == nil {
		return
	}
	t.T6ExecutionBegins = nowNanos()
}
func (t *Timeline) MarkExecutionDone() {
	if t == nil {
		return
	}
	t.T7ExecutionDone = nowNanos()
}
func (t *Timeline) MarkAuditBegins() {
	if t == nil {
		return
	}
	t.T8AuditBegins = nowNanos()
}
func (t *Timeline) MarkAuditComplete() {
	if t == nil {
		return
	}
	t.T9AuditComplete = nowNanos()
}
func (t *Timeline) MarkResponseSent() {
	if t == nil {
		return
	}
	t.T10ResponseSent = nowNanos()
}

// EndToEndNanos returns the T10-T0 latency.
func (t *Timeline) EndToEndNanos() int64 { return t.T10ResponseSent - t.T0Arrival }

// MatchingNanos returns the T5-T4 latency.
func (t *Timeline) MatchingNanos() int64 { return t.T5MatchingComplete - t.T4MatchingBegins }

// AuditNanos returns the T9-T8 latency.
func (t *Timeline) AuditNanos() int64 { return t.T9AuditComplete - t.T8AuditBegins }

// PhaseBreakdown returns a named-phase duration map for diagnostics,
// beyond the bare threshold check.
func (t *Timeline) PhaseBreakdown() map[string]int64 {
	return map[string]int64{
		"deserialization": t.T1Deserialized - t.T0Arrival,
		"validation":      t.T2Validated - t.T1Deserialized,
		"lock_acquired":   t.T3LockAcquired - t.T2Validated,
		"matching":        t.T5MatchingComplete - t.T4MatchingBegins,
		"execution":       t.T7ExecutionDone - t.T6ExecutionBegins,
		"audit":           t.T9AuditComplete - t.T8AuditBegins,
		"response":        t.T10ResponseSent - t.T9AuditComplete,
	}
}

// Monotonic reports whether T0 <= T1 <= ... <= T10 holds.
func (t *Timeline) Monotonic() bool {
	stamps := []int64{
		t.T0Arrival, t.T1Deserialized, t.T2Validated, t.T3LockAcquired,
		t.T4MatchingBegins, t.T5MatchingComplete, t.T6ExecutionBegins,
		t.T7ExecutionDone, t.T8AuditBegins, t.T9AuditComplete, t.T10ResponseSent,
	}
	for i := 1; i < len(stamps); i++ {
		if stamps[i] < stamps[i-1] {
			return false
		}
	}
	return true
}

// Thresholds are the latency budgets an admission is held to,
// overridable via src/config.
type Thresholds struct {
	E2ENanos      int64
	MatchingNanos int64
	AuditNanos    int64
}

// DefaultThresholds are the out-of-the-box latency budgets.
var DefaultThresholds = Thresholds{
	E2ENanos:      1_000_000,
	MatchingNanos: 100_000,
	AuditNanos:    500_000,
}

// Violation describes a single threshold breach.
type Violation struct {
	Phase          string
	ActualNanos    int64
	ThresholdNanos int64
	OrderID        string
	Instrument     string
}

// CheckThresholds returns the first violated phase, or nil if the
// timeline is within every documented budget.
func (t *Timeline) CheckThresholds(th Thresholds) *Violation {
	if e2e := t.EndToEndNanos(); e2e > th.E2ENanos {
		return &Violation{Phase: "E2E", ActualNanos: e2e, ThresholdNanos: th.E2ENanos, OrderID: t.OrderID, Instrument: t.Instrument}
	}
	if m := t.MatchingNanos(); m > th.MatchingNanos {
		return &Violation{Phase: "Matching", ActualNanos: m, ThresholdNanos: th.MatchingNanos, OrderID: t.OrderID, Instrument: t.Instrument}
	}
	if a := t.AuditNanos(); a > th.AuditNanos {
		return &Violation{Phase: "Auditing", ActualNanos: a, ThresholdNanos: th.AuditNanos, OrderID: t.OrderID, Instrument: t.Instrument}
	}
	return nil
}
