package stp

import (
	"testing"

	"matchcore/src/price"
	"matchcore/src/tradable"
)

func newOrder(t *testing.T, user string, side tradable.Side) *tradable.Order {
	t.Helper()
	p, err := price.FromDecimalString("10.00")
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	o, err := tradable.NewOrder("id-"+user+"-"+string(side), user, "AAPL", side, p, 10, tradable.TypeLimit)
	if err != nil {
		t.Fatalf("NewOrder: %v", err)
	}
	return o
}

func TestIsSelfTrade(t *testing.T) {
	e := New(DefaultMode)
	incoming := newOrder(t, "trader1", tradable.Buy)
	resting := newOrder(t, "trader1", tradable.Sell)
	other := newOrder(t, "trader2", tradable.Sell)

	if !e.IsSelfTrade(incoming, resting) {
		t.Error("expected self-trade for matching users")
	}
	if e.IsSelfTrade(incoming, other) {
		t.Error("expected no self-trade for distinct users")
	}
}

func TestDecideAllow(t *testing.T) {
	e := New(Allow)
	action := e.Decide()
	if action.CancelIncoming || action.CancelResting {
		t.Errorf("expected ALLOW to cancel nothing, got %+v", action)
	}
	if !action.ContinueLoop {
		t.Error("expected ALLOW to continue the crossing loop")
	}
}

func TestDecideCancelIncoming(t *testing.T) {
	e := New(CancelIncoming)
	action := e.Decide()
	if !action.CancelIncoming || action.CancelResting {
		t.Errorf("unexpected action for CANCEL_INCOMING: %+v", action)
	}
	if action.ContinueLoop {
		t.Error("expected CANCEL_INCOMING to stop the crossing loop")
	}
}

func TestDecideCancelResting(t *testing.T) {
	e := New(CancelResting)
	action := e.Decide()
	if action.CancelIncoming || !action.CancelResting {
		t.Errorf("unexpected action for CANCEL_RESTING: %+v", action)
	}
	if !action.ContinueLoop {
		t.Error("expected CANCEL_RESTING to continue the crossing loop, skipping the resting head")
	}
}

func TestDecideCancelBoth(t *testing.T) {
	e := New(CancelBoth)
	action := e.Decide()
	if !action.CancelIncoming || !action.CancelResting {
		t.Errorf("unexpected action for CANCEL_BOTH: %+v", action)
	}
	if action.ContinueLoop {
		t.Error("expected CANCEL_BOTH to stop the crossing loop")
	}
}

func TestSetModeIsLive(t *testing.T) {
	e := New(Allow)
	if e.Mode() != Allow {
		t.Fatalf("expected ALLOW, got %s", e.Mode())
	}
	e.SetMode(CancelBoth)
	if e.Mode() != CancelBoth {
		t.Errorf("expected mode to update to CANCEL_BOTH, got %s", e.Mode())
	}
}

func TestNewDefaultsEmptyModeToCancelResting(t *testing.T) {
	e := New("")
	if e.Mode() != DefaultMode {
		t.Errorf("expected default mode %s, got %s", DefaultMode, e.Mode())
	}
}

func TestWithExtractorOverridesTraderIdentity(t *testing.T) {
	e := New(DefaultMode).WithExtractor(func(o *tradable.Order) string {
		return o.Instrument // collapses identity so every order "belongs" to the same trader
	})
	incoming := newOrder(t, "trader1", tradable.Buy)
	resting := newOrder(t, "trader2", tradable.Sell)

	if !e.IsSelfTrade(incoming, resting) {
		t.Error("expected custom extractor to treat same-instrument orders as self-trades")
	}
}
