// Package coordinator implements the single admission entry point: it
// owns request validation, resolves the target ProductBook, drives the
// per-admission latency timeline, and forwards the already-validated
// tradable into the book's exclusive critical section.
package coordinator

import (
	"fmt"

	"github.com/google/uuid"

	"matchcore/src/engine"
	"matchcore/src/latency"
	"matchcore/src/price"
	"matchcore/src/tradable"
)

// Coordinator is the process-wide admission entry point. It is itself
// stateless beyond its collaborators, so multiple goroutines may call
// into it concurrently for distinct (or the same) instruments; the
// ProductBook's own lock serializes per-instrument mutations.
type Coordinator struct {
	manager *engine.ProductManager
	monitor *latency.Monitor
}

// New constructs a Coordinator over an already-populated ProductManager
// and latency.Monitor.
func New(manager *engine.ProductManager, monitor *latency.Monitor) *Coordinator {
	return &Coordinator{manager: manager, monitor: monitor}
}

// UnknownInstrumentError is returned when a request names an instrument
// the ProductManager never registered at startup.
type UnknownInstrumentError struct {
	Instrument string
}

func (e *UnknownInstrumentError) Error() string {
	return fmt.Sprintf("coordinator: unknown instrument %q", e.Instrument)
}

// SubmitOrderRequest carries the already-deserialized fields of an
// order submission. PriceDecimal is the external wire-format price
// string; parsing into price.Price happens during validation (T2).
type SubmitOrderRequest struct {
	User          string
	Instrument    string
	Side          tradable.Side
	PriceDecimal  string
	Volume        int64
	OrderType     tradable.OrderType
	LinkedOrderID string
	LinkType      tradable.LinkType
}

// SubmitOrderResult is what the HTTP layer renders back to the caller.
type SubmitOrderResult struct {
	OrderID string
	Status  tradable.Status
	Trades  []tradable.Trade
}

// SubmitOrder runs the full admission timeline around ProductBook.Add.
// T0 is stamped by the caller (handler) at request arrival, before JSON
// deserialization; SubmitOrder picks up from T1.
func (c *Coordinator) SubmitOrder(req SubmitOrderRequest, tl *latency.Timeline) (SubmitOrderResult, error) {
	tl.MarkDeserialized()

	if err := tradable.ValidateUserID(req.User); err != nil {
		return SubmitOrderResult{}, err
	}
	if err := tradable.ValidateInstrumentID(req.Instrument); err != nil {
		return SubmitOrderResult{}, err
	}
	if req.Side != tradable.Buy && req.Side != tradable.Sell {
		return SubmitOrderResult{}, fmt.Errorf("coordinator: invalid side %q", req.Side)
	}
	p, err := price.FromDecimalString(req.PriceDecimal)
	if err != nil {
		return SubmitOrderResult{}, err
	}

	book, ok := c.manager.Get(req.Instrument)
	if !ok {
		return SubmitOrderResult{}, &UnknownInstrumentError{Instrument: req.Instrument}
	}

	orderType := req.OrderType
	if orderType == "" {
		orderType = tradable.TypeLimit
	}

	order, err := tradable.NewOrder(uuid.New().String(), req.User, req.Instrument, req.Side, p, req.Volume, orderType)
	if err != nil {
		return SubmitOrderResult{}, err
	}
	if req.LinkedOrderID != "" {
		order.LinkType = req.LinkType
		order.LinkedOrderID = req.LinkedOrderID
	}
	tl.MarkValidated()

	result, err := book.Add(order, tl)
	if err != nil {
		return SubmitOrderResult{}, err
	}

	c.monitor.IncTrades(len(result.Trades))

	return SubmitOrderResult{
		OrderID: result.DTO.ID,
		Status:  result.DTO.Status,
		Trades:  result.Trades,
	}, nil
}

// SubmitQuoteRequest carries a two-sided quote submission's fields.
type SubmitQuoteRequest struct {
	User             string
	Instrument       string
	BuyPriceDecimal  string
	BuyVolume        int64
	SellPriceDecimal string
	SellVolume       int64
}

// SubmitQuoteResult returns both sides' generated ids.
type SubmitQuoteResult struct {
	BuyID  string
	SellID string
	Trades []tradable.Trade
}

// SubmitQuote admits a two-sided quote atomically.
func (c *Coordinator) SubmitQuote(req SubmitQuoteRequest, tl *latency.Timeline) (SubmitQuoteResult, error) {
	tl.MarkDeserialized()

	if err := tradable.ValidateUserID(req.User); err != nil {
		return SubmitQuoteResult{}, err
	}
	if err := tradable.ValidateInstrumentID(req.Instrument); err != nil {
		return SubmitQuoteResult{}, err
	}
	buyPrice, err := price.FromDecimalString(req.BuyPriceDecimal)
	if err != nil {
		return SubmitQuoteResult{}, err
	}
	sellPrice, err := price.FromDecimalString(req.SellPriceDecimal)
	if err != nil {
		return SubmitQuoteResult{}, err
	}

	book, ok := c.manager.Get(req.Instrument)
	if !ok {
		return SubmitQuoteResult{}, &UnknownInstrumentError{Instrument: req.Instrument}
	}

	buySide, err := tradable.NewQuoteSide(uuid.New().String(), req.User, req.Instrument, tradable.Buy, buyPrice, req.BuyVolume)
	if err != nil {
		return SubmitQuoteResult{}, err
	}
	sellSide, err := tradable.NewQuoteSide(uuid.New().String(), req.User, req.Instrument, tradable.Sell, sellPrice, req.SellVolume)
	if err != nil {
		return SubmitQuoteResult{}, err
	}
	tl.MarkValidated()

	dtos, trades, err := book.AddQuote(buySide, sellSide, req.User, tl)
	if err != nil {
		return SubmitQuoteResult{}, err
	}

	c.monitor.IncTrades(len(trades))

	return SubmitQuoteResult{BuyID: dtos[0].ID, SellID: dtos[1].ID, Trades: trades}, nil
}

// CancelOrder delegates straight to the owning ProductBook; no FOK/OCO
// gating applies to a cancel.
func (c *Coordinator) CancelOrder(instrument string, side tradable.Side, orderID string) (tradable.DTO, bool, error) {
	book, ok := c.manager.Get(instrument)
	if !ok {
		return tradable.DTO{}, false, &UnknownInstrumentError{Instrument: instrument}
	}
	dto, found := book.Cancel(side, orderID)
	if found {
		c.monitor.IncCancels(1)
	}
	return dto, found, nil
}

// RemoveQuotesForUser cancels both resting quote sides for user.
func (c *Coordinator) RemoveQuotesForUser(instrument, user string) ([]tradable.DTO, error) {
	book, ok := c.manager.Get(instrument)
	if !ok {
		return nil, &UnknownInstrumentError{Instrument: instrument}
	}
	dtos := book.RemoveQuotesForUser(user)
	c.monitor.IncCancels(len(dtos))
	return dtos, nil
}

// QueryTopOfBook returns the instrument's current top-of-book snapshot.
func (c *Coordinator) QueryTopOfBook(instrument string) (engine.TopOfBookSnapshot, error) {
	book, ok := c.manager.Get(instrument)
	if !ok {
		return engine.TopOfBookSnapshot{}, &UnknownInstrumentError{Instrument: instrument}
	}
	return book.Snapshot(), nil
}

// Monitor exposes the latency monitor for the metrics/summary handler.
func (c *Coordinator) Monitor() *latency.Monitor { return c.monitor }

// Manager exposes the product manager for handlers needing instrument
// listings or book-depth diagnostics.
func (c *Coordinator) Manager() *engine.ProductManager { return c.manager }
