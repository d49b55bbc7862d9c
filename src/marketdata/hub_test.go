package marketdata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"matchcore/src/engine"
	"matchcore/src/price"
)

func TestPublishWithNoSubscribersDoesNotPanic(t *testing.T) {
	hub := NewHub()
	hub.Publish(engine.TopOfBookSnapshot{Instrument: "AAPL", BidEmpty: true, AskEmpty: true})
}

func TestToWireOmitsEmptySides(t *testing.T) {
	snap := engine.TopOfBookSnapshot{Instrument: "AAPL", BidEmpty: true, AskEmpty: true}
	w := toWire(snap)
	if w.Bid != nil || w.Ask != nil {
		t.Errorf("expected both sides nil for an empty book, got %+v", w)
	}
}

func TestToWirePopulatesNonEmptySides(t *testing.T) {
	bid, _ := price.FromDecimalString("100.00")
	ask, _ := price.FromDecimalString("101.00")
	snap := engine.TopOfBookSnapshot{
		Instrument: "AAPL",
		BidPrice:   bid, BidVolume: 10,
		AskPrice: ask, AskVolume: 20,
	}
	w := toWire(snap)
	if w.Bid == nil || *w.Bid != "100.00" {
		t.Errorf("expected bid 100.00, got %+v", w.Bid)
	}
	if w.Ask == nil || *w.Ask != "101.00" {
		t.Errorf("expected ask 101.00, got %+v", w.Ask)
	}
	if w.BidVolume != 10 || w.AskVolume != 20 {
		t.Errorf("expected volumes 10/20, got %d/%d", w.BidVolume, w.AskVolume)
	}
}

func TestHandlerRejectsEmptyInstrument(t *testing.T) {
	hub := NewHub()
	handler := hub.Handler()
	if handler == nil {
		t.Fatal("expected a non-nil handler")
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/marketdata/", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an empty instrument, got %d", rec.Code)
	}
}
