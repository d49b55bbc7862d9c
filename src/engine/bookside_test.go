package engine

import (
	"testing"

	"matchcore/src/price"
	"matchcore/src/stp"
	"matchcore/src/tradable"
)

func TestTopOfBookPriceOrdering(t *testing.T) {
	buy := NewBookSide(tradable.Buy)
	buy.Add(mustOrder(t, "b1", "maker", tradable.Buy, "99.00", 10, tradable.TypeLimit))
	buy.Add(mustOrder(t, "b2", "maker", tradable.Buy, "101.00", 10, tradable.TypeLimit))
	buy.Add(mustOrder(t, "b3", "maker", tradable.Buy, "100.00", 10, tradable.TypeLimit))

	if best, ok := buy.TopOfBookPrice(); !ok || !best.Equal(mustPrice(t, "101.00")) {
		t.Errorf("expected best bid 101.00, got %v ok=%v", best, ok)
	}

	sell := NewBookSide(tradable.Sell)
	sell.Add(mustOrder(t, "s1", "maker", tradable.Sell, "102.00", 10, tradable.TypeLimit))
	sell.Add(mustOrder(t, "s2", "maker", tradable.Sell, "100.00", 10, tradable.TypeLimit))

	if best, ok := sell.TopOfBookPrice(); !ok || !best.Equal(mustPrice(t, "100.00")) {
		t.Errorf("expected best ask 100.00, got %v ok=%v", best, ok)
	}
}

func TestTopOfBookEmptySide(t *testing.T) {
	side := NewBookSide(tradable.Buy)
	if _, ok := side.TopOfBookPrice(); ok {
		t.Error("expected no top-of-book price on an empty side")
	}
	if v := side.TopOfBookVolume(); v != 0 {
		t.Errorf("expected zero volume on an empty side, got %d", v)
	}
}

func TestAddRejectsNilAndZeroVolume(t *testing.T) {
	side := NewBookSide(tradable.Buy)
	if _, err := side.Add(nil); err == nil {
		t.Error("expected an error adding nil")
	}

	o := mustOrder(t, "b1", "maker", tradable.Buy, "100.00", 10, tradable.TypeLimit)
	o.Fill(10)
	if _, err := side.Add(o); err == nil {
		t.Error("expected an error adding a zero-remaining tradable")
	}
}

// trade_out consumes resting tradables strictly in arrival order: the
// earliest order at the level is fully consumed before the next one is
// touched.
func TestTradeOutRespectsTimePriority(t *testing.T) {
	side := NewBookSide(tradable.Sell)
	first := mustOrder(t, "s1", "userA", tradable.Sell, "100.00", 30, tradable.TypeLimit)
	second := mustOrder(t, "s2", "userB", tradable.Sell, "100.00", 30, tradable.TypeLimit)
	side.Add(first)
	side.Add(second)

	fills := side.TradeOut(mustPrice(t, "100.00"), 40)

	if len(fills) != 2 {
		t.Fatalf("expected two fills, got %d", len(fills))
	}
	if fills[0].Order.ID != "s1" || fills[0].FillType != "FULL" || fills[0].Quantity != 30 {
		t.Errorf("expected s1 fully consumed first, got %+v", fills[0])
	}
	if fills[1].Order.ID != "s2" || fills[1].FillType != "PARTIAL" || fills[1].Quantity != 10 {
		t.Errorf("expected s2 partially consumed second, got %+v", fills[1])
	}
	if second.RemainingVolume() != 20 {
		t.Errorf("expected 20 remaining on s2, got %d", second.RemainingVolume())
	}
	if v := side.TopOfBookVolume(); v != 20 {
		t.Errorf("expected level volume 20 after trade-out, got %d", v)
	}
}

func TestTradeOutRemovesEmptyLevel(t *testing.T) {
	side := NewBookSide(tradable.Sell)
	side.Add(mustOrder(t, "s1", "userA", tradable.Sell, "100.00", 30, tradable.TypeLimit))

	side.TradeOut(mustPrice(t, "100.00"), 30)

	if side.Len() != 0 {
		t.Errorf("expected no levels after consuming the only order, got %d", side.Len())
	}
	if _, ok := side.Get("s1"); ok {
		t.Error("expected the consumed order removed from the id index")
	}
}

func TestCancelUnknownID(t *testing.T) {
	side := NewBookSide(tradable.Buy)
	if _, ok := side.Cancel("nope"); ok {
		t.Error("expected cancel of unknown id to report not found")
	}
}

// remove_quotes_for_user collects across every level the user rests on,
// leaving other users' tradables untouched.
func TestRemoveQuotesForUserSweepsAllLevels(t *testing.T) {
	side := NewBookSide(tradable.Buy)
	side.Add(mustOrder(t, "b1", "userA", tradable.Buy, "100.00", 10, tradable.TypeLimit))
	side.Add(mustOrder(t, "b2", "userB", tradable.Buy, "100.00", 10, tradable.TypeLimit))
	side.Add(mustOrder(t, "b3", "userA", tradable.Buy, "99.00", 10, tradable.TypeLimit))

	removed := side.RemoveQuotesForUser("userA")

	if len(removed) != 2 {
		t.Fatalf("expected two removed tradables, got %d", len(removed))
	}
	for _, dto := range removed {
		if dto.User != "userA" || dto.Status != tradable.StatusCancelled {
			t.Errorf("unexpected removed DTO %+v", dto)
		}
	}
	if side.Len() != 1 {
		t.Errorf("expected only userB's level to survive, got %d levels", side.Len())
	}
	if _, ok := side.Get("b2"); !ok {
		t.Error("expected userB's order untouched")
	}
}

// EligibleLiquidity stops at the price bound and excludes skipped
// tradables, the two behaviors the FOK gate composes.
func TestEligibleLiquidityBoundsAndSkips(t *testing.T) {
	side := NewBookSide(tradable.Sell)
	side.Add(mustOrder(t, "s1", "userA", tradable.Sell, "100.00", 30, tradable.TypeLimit))
	side.Add(mustOrder(t, "s2", "selfX", tradable.Sell, "100.00", 40, tradable.TypeLimit))
	side.Add(mustOrder(t, "s3", "userB", tradable.Sell, "101.00", 20, tradable.TypeLimit))
	side.Add(mustOrder(t, "s4", "userC", tradable.Sell, "102.00", 99, tradable.TypeLimit))

	limit := mustPrice(t, "101.00")
	qualifies := func(p price.Price) bool { return p.Compare(limit) <= 0 }
	skip := func(o *tradable.Order) bool { return o.User == "selfX" }

	if got := side.EligibleLiquidity(qualifies, skip); got != 50 {
		t.Errorf("expected 30+20 eligible, got %d", got)
	}
	if got := side.EligibleLiquidity(qualifies, nil); got != 90 {
		t.Errorf("expected 90 eligible with no skip, got %d", got)
	}
}

// The FOK gate subtracts STP-ineligible volume: a gate that counted the
// taker's own resting liquidity would admit an order the crossing loop
// can never fully fill.
func TestFOKGateExcludesSelfLiquidity(t *testing.T) {
	book, _ := newTestBook(t, stp.CancelResting)

	own := mustOrder(t, "s-own", "taker", tradable.Sell, "100.00", 40, tradable.TypeLimit)
	other := mustOrder(t, "s-oth", "maker", tradable.Sell, "100.00", 20, tradable.TypeLimit)
	book.Add(own, nil)
	book.Add(other, nil)

	fok := mustOrder(t, "b-fok", "taker", tradable.Buy, "100.00", 50, tradable.TypeFOK)
	result, err := book.Add(fok, nil)
	if err != nil {
		t.Fatalf("Add FOK: %v", err)
	}
	if result.DTO.Status != tradable.StatusRejectedFOK {
		t.Errorf("expected REJECTED_FOK when own liquidity is excluded, got %s", result.DTO.Status)
	}
}
