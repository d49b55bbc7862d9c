package engine

import (
	"fmt"
	"sync"

	"matchcore/src/audit"
	"matchcore/src/latency"
	"matchcore/src/logger"
	"matchcore/src/price"
	"matchcore/src/registry"
	"matchcore/src/stp"
	"matchcore/src/tradable"
)

// TopOfBookSnapshot is the (bid, bid_volume, ask, ask_volume) tuple
// published whenever either field changes.
type TopOfBookSnapshot struct {
	Instrument string
	BidPrice   price.Price
	BidVolume  int64
	BidEmpty   bool
	AskPrice   price.Price
	AskVolume  int64
	AskEmpty   bool
}

// Publisher delivers top-of-book snapshots to observers. Implementations
// must never block or panic back into the critical section; the concrete
// websocket-backed publisher lives in package marketdata.
type Publisher interface {
	Publish(TopOfBookSnapshot)
}

// noopPublisher discards snapshots; used when a ProductBook is
// constructed without a real publisher (unit tests, scratch books).
type noopPublisher struct{}

func (noopPublisher) Publish(TopOfBookSnapshot) {}

// ProductBook is one instrument's matching unit: two BookSides, the
// crossing loop, and the collaborators needed to enforce STP/OCO/FOK and
// emit the audit trail.
type ProductBook struct {
	mu sync.RWMutex

	Instrument string
	buy        *BookSide
	sell       *BookSide

	stpEngine *stp.Engine
	registry  *registry.Registry
	chain     *audit.HashChain
	publisher Publisher

	lastSnapshot TopOfBookSnapshot
}

// NewProductBook constructs an empty book for instrument. publisher may
// be nil, in which case snapshots are discarded.
func NewProductBook(instrument string, stpEngine *stp.Engine, reg *registry.Registry, chain *audit.HashChain, publisher Publisher) *ProductBook {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &ProductBook{
		Instrument: instrument,
		buy:        NewBookSide(tradable.Buy),
		sell:       NewBookSide(tradable.Sell),
		stpEngine:  stpEngine,
		registry:   reg,
		chain:      chain,
		publisher:  publisher,
	}
}

func (pb *ProductBook) sideFor(side tradable.Side) *BookSide {
	if side == tradable.Buy {
		return pb.buy
	}
	return pb.sell
}

// AddResult carries everything the admission coordinator needs to finish
// its timeline and response after ProductBook.Add returns.
type AddResult struct {
	DTO    tradable.DTO
	Trades []tradable.Trade
}

// Add admits a single-sided order: FOK gate, insertion, crossing,
// top-of-book publication, and OCO registration, all under the book's
// exclusive lock. tl may be nil; when non-nil its T3..T9 checkpoints
// are captured at the matching boundaries. Matching and execution are
// fused into one crossing loop in this design (TradeOut runs inside the
// same iteration that discovers the cross), so T4/T5 bracket the whole
// loop and T6/T7 are stamped immediately after it.
func (pb *ProductBook) Add(t *tradable.Order, tl *latency.Timeline) (AddResult, error) {
	if t == nil {
		return AddResult{}, fmt.Errorf("engine: %w: nil tradable", ErrInvalidInput)
	}
	if t.RemainingVolume() <= 0 {
		return AddResult{}, fmt.Errorf("engine: %w: non-positive volume", ErrInvalidInput)
	}
	if t.Instrument != pb.Instrument {
		return AddResult{}, fmt.Errorf("engine: %w: instrument mismatch %s/%s", ErrInvalidInput, t.Instrument, pb.Instrument)
	}

	pb.mu.Lock()
	defer pb.mu.Unlock()
	tl.MarkLockAcquired()

	// FOK gate runs inside the exclusive lock so the eligibility snapshot
	// is consistent with the crossing that immediately follows.
	if t.IsFOK() {
		opposite := pb.sideFor(t.Side.Opposite())
		eligible := pb.eligibleLiquidity(opposite, t)
		if required := t.RemainingVolume(); eligible < required {
			t.Reject(tradable.StatusRejectedFOK)
			tl.MarkMatchingBegins()
			tl.MarkMatchingComplete()
			tl.MarkExecutionBegins()
			tl.MarkExecutionDone()
			tl.MarkAuditBegins()
			pb.emit(audit.NewBuilder(audit.OrderRejected).
				User(t.User).Product(t.Instrument).
				Add("order_id", t.ID).
				Add("reason", "FOK_INSUFFICIENT_LIQUIDITY").
				Add("required_volume", required).
				Add("eligible_volume", eligible).
				Build())
			tl.MarkAuditComplete()
			return AddResult{DTO: t.ToDTO()}, nil
		}
	}

	t.Accept()
	pb.emit(audit.NewBuilder(audit.OrderPlaced).
		User(t.User).Product(t.Instrument).
		Add("order_id", t.ID).
		Add("side", string(t.Side)).
		Add("price", t.Price.DecimalString()).
		Add("volume", t.OriginalVolume()).
		Add("order_type", string(t.OrderType)).
		Build())

	if _, err := pb.sideFor(t.Side).Add(t); err != nil {
		return AddResult{}, err
	}

	tl.MarkMatchingBegins()
	trades := pb.tryTrade()
	tl.MarkMatchingComplete()
	tl.MarkExecutionBegins()
	tl.MarkExecutionDone()

	if t.IsFOK() && t.RemainingVolume() != 0 {
		logger.Logger.Fatal().
			Str("instrument", pb.Instrument).
			Str("order_id", t.ID).
			Int64("remaining", t.RemainingVolume()).
			Msg("FOK order passed the liquidity gate but did not fully fill")
	}

	// Audit events for placement/fills are emitted as they happen inside
	// the phases above; T8/T9 bracket the trailing publication and
	// registry bookkeeping so the checkpoint sequence stays monotonic.
	tl.MarkAuditBegins()
	pb.publishTopOfBook()

	if t.LinkType == tradable.LinkOCO && t.LinkedOrderID != "" && t.Status.IsExecutable() {
		pb.registry.Link(t.ID, t.LinkedOrderID, tradable.LinkOCO)
	}

	tl.MarkAuditComplete()
	return AddResult{DTO: t.ToDTO(), Trades: trades}, nil
}

// AddQuote atomically replaces any existing quote sides for user on this
// instrument, admits the two new sides, and crosses.
func (pb *ProductBook) AddQuote(buySide, sellSide *tradable.Order, user string, tl *latency.Timeline) ([]tradable.DTO, []tradable.Trade, error) {
	if buySide == nil || sellSide == nil {
		return nil, nil, fmt.Errorf("engine: %w: nil quote side", ErrInvalidInput)
	}

	pb.mu.Lock()
	defer pb.mu.Unlock()
	tl.MarkLockAcquired()

	pb.removeQuotesForUserLocked(user)

	buySide.Accept()
	sellSide.Accept()

	pb.emit(audit.NewBuilder(audit.QuoteSubmitted).
		User(user).Product(pb.Instrument).
		Add("buy_id", buySide.ID).Add("sell_id", sellSide.ID).
		Add("buy_price", buySide.Price.DecimalString()).
		Add("sell_price", sellSide.Price.DecimalString()).
		Build())

	if _, err := pb.buy.Add(buySide); err != nil {
		return nil, nil, err
	}
	if _, err := pb.sell.Add(sellSide); err != nil {
		return nil, nil, err
	}

	tl.MarkMatchingBegins()
	trades := pb.tryTrade()
	tl.MarkMatchingComplete()
	tl.MarkExecutionBegins()
	tl.MarkExecutionDone()
	tl.MarkAuditBegins()
	pb.publishTopOfBook()
	tl.MarkAuditComplete()

	return []tradable.DTO{buySide.ToDTO(), sellSide.ToDTO()}, trades, nil
}

// Cancel removes id from side, emits ORDER_CANCELLED, deactivates (but
// never cascades) any OCO relationship, and republishes top-of-book.
func (pb *ProductBook) Cancel(side tradable.Side, id string) (tradable.DTO, bool) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	dto, ok := pb.sideFor(side).Cancel(id)
	if !ok {
		return tradable.DTO{}, false
	}

	pb.emit(audit.NewBuilder(audit.OrderCancelled).
		User(dto.User).Product(pb.Instrument).
		Add("order_id", dto.ID).
		Add("reason", "USER_REQUEST").
		Add("remaining_cancelled", dto.CancelledVolume).
		Build())

	if pb.registry.HasActive(id) {
		pb.registry.Deactivate(id)
	}

	pb.publishTopOfBook()
	return dto, true
}

// RemoveQuotesForUser cancels both resting quote sides for user, each
// producing its own ORDER_CANCELLED event.
func (pb *ProductBook) RemoveQuotesForUser(user string) []tradable.DTO {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	out := pb.removeQuotesForUserLocked(user)
	pb.publishTopOfBook()
	return out
}

func (pb *ProductBook) removeQuotesForUserLocked(user string) []tradable.DTO {
	var out []tradable.DTO
	for _, dto := range pb.buy.RemoveQuotesForUser(user) {
		pb.emit(audit.NewBuilder(audit.OrderCancelled).
			User(user).Product(pb.Instrument).
			Add("order_id", dto.ID).Add("reason", "QUOTE_REPLACED").Build())
		out = append(out, dto)
	}
	for _, dto := range pb.sell.RemoveQuotesForUser(user) {
		pb.emit(audit.NewBuilder(audit.OrderCancelled).
			User(user).Product(pb.Instrument).
			Add("order_id", dto.ID).Add("reason", "QUOTE_REPLACED").Build())
		out = append(out, dto)
	}
	return out
}

// tryTrade runs the crossing loop: while the book is crossed, trade out
// the head tradables at the resting side's price, applying STP and the
// OCO cascade as fills land. Caller must hold pb.mu for writing.
func (pb *ProductBook) tryTrade() []tradable.Trade {
	var trades []tradable.Trade

	for {
		bidPrice, bidOK := pb.buy.TopOfBookPrice()
		askPrice, askOK := pb.sell.TopOfBookPrice()
		if !bidOK || !askOK || bidPrice.LessThan(askPrice) {
			return trades
		}

		bidHead := pb.buy.PeekTop()
		askHead := pb.sell.PeekTop()
		if bidHead == nil || askHead == nil {
			return trades
		}

		if pb.stpEngine.IsSelfTrade(bidHead, askHead) {
			action := pb.stpEngine.Decide()
			if action.CancelIncoming || action.CancelResting {
				if action.CancelIncoming {
					pb.stpCancel(pb.resolveIncoming(bidHead, askHead))
				}
				if action.CancelResting {
					pb.stpCancel(pb.resolveResting(bidHead, askHead))
				}
				if !action.ContinueLoop {
					return trades
				}
				// A head was removed, so re-peeking makes progress.
				continue
			}
			// ALLOW: neither head was touched; fall through and trade,
			// otherwise the loop would re-peek the same pair forever.
		}

		tradeVolume := bidHead.RemainingVolume()
		if askHead.RemainingVolume() < tradeVolume {
			tradeVolume = askHead.RemainingVolume()
		}

		tradePrice := pb.restingPrice(bidHead, askHead)

		pb.emit(audit.NewBuilder(audit.TradeExecuted).
			Product(pb.Instrument).
			Add("price", tradePrice.DecimalString()).
			Add("quantity", tradeVolume).
			Add("buy_id", bidHead.ID).
			Add("sell_id", askHead.ID).
			Build())

		buyFills := pb.buy.TradeOut(bidPrice, tradeVolume)
		sellFills := pb.sell.TradeOut(askPrice, tradeVolume)

		pb.emitFills(buyFills)
		pb.emitFills(sellFills)

		trades = append(trades, tradable.Trade{
			Instrument:  pb.Instrument,
			Price:       tradePrice,
			Quantity:    tradeVolume,
			BuyOrderID:  bidHead.ID,
			SellOrderID: askHead.ID,
		})

		pb.cascadeOCO(buyFills)
		pb.cascadeOCO(sellFills)
	}
}

// resolveIncoming and resolveResting determine which of the two crossed
// tradables is the one admitted by the current Add call: the resting
// side is the one with the lower creation timestamp, ties broken by id
// lexicographically.
func (pb *ProductBook) isResting(a, b *tradable.Order) bool {
	if a.CreatedTS != b.CreatedTS {
		return a.CreatedTS < b.CreatedTS
	}
	return a.ID < b.ID
}

func (pb *ProductBook) resolveResting(bid, ask *tradable.Order) *tradable.Order {
	if pb.isResting(bid, ask) {
		return bid
	}
	return ask
}

func (pb *ProductBook) resolveIncoming(bid, ask *tradable.Order) *tradable.Order {
	if pb.isResting(bid, ask) {
		return ask
	}
	return bid
}

// restingPrice returns the price of whichever tradable was admitted
// earlier: the trade prints at the resting side's price.
func (pb *ProductBook) restingPrice(bid, ask *tradable.Order) price.Price {
	return pb.resolveResting(bid, ask).Price
}

func (pb *ProductBook) stpCancel(o *tradable.Order) {
	side := pb.sideFor(o.Side)
	dto, ok := side.CancelWithStatus(o.ID, tradable.StatusCancelledSTP)
	if !ok {
		return
	}
	pb.emit(audit.NewBuilder(audit.OrderCancelled).
		User(dto.User).Product(pb.Instrument).
		Add("order_id", dto.ID).
		Add("reason", "STP").
		Build())
}

func (pb *ProductBook) emitFills(fills []FillEvent) {
	for _, f := range fills {
		eventType := audit.OrderFilled
		if f.FillType == "PARTIAL" {
			eventType = audit.OrderPartiallyFilled
		}
		pb.emit(audit.NewBuilder(eventType).
			User(f.Order.User).Product(pb.Instrument).
			Add("order_id", f.Order.ID).
			Add("fill_type", f.FillType).
			Add("quantity", f.Quantity).
			Add("remaining_volume", f.Order.RemainingVolume()).
			Build())

		if !f.Order.Invariant() {
			logger.Logger.Fatal().
				Str("instrument", pb.Instrument).
				Str("order_id", f.Order.ID).
				Msg("volume accounting invariant violated after fill")
		}
	}
}

// cascadeOCO cancels the active OCO counterpart of every tradable that
// reached FULLY_FILLED, if the counterpart is still resting.
func (pb *ProductBook) cascadeOCO(fills []FillEvent) {
	for _, f := range fills {
		if f.Order.Status != tradable.StatusFullyFilled {
			continue
		}
		rel := pb.registry.Get(f.Order.ID)
		if rel == nil || !rel.Active {
			continue
		}
		counterpartyID := rel.CounterpartyOf(f.Order.ID)
		if counterpartyID == "" {
			continue
		}

		for _, side := range []*BookSide{pb.buy, pb.sell} {
			if _, ok := side.Get(counterpartyID); ok {
				if dto, ok := side.CancelWithStatus(counterpartyID, tradable.StatusCancelledOCO); ok {
					pb.emit(audit.NewBuilder(audit.OrderCancelled).
						User(dto.User).Product(pb.Instrument).
						Add("order_id", dto.ID).
						Add("reason", "OCO").
						Add("triggered_by", f.Order.ID).
						Build())
				}
				break
			}
		}
		pb.registry.Remove(f.Order.ID)
	}
}

// eligibleLiquidity computes the FOK gate's eligible counter-side
// liquidity: remaining volume on opposite at a qualifying price, minus
// any volume that would be skipped by STP against incoming. Without the
// subtraction an FOK could pass the gate and then fail to fully fill
// once STP removes eligible volume mid-loop. Under CANCEL_RESTING only
// the self-owned tradables are excluded, since the loop cancels them and
// keeps going; under CANCEL_INCOMING and CANCEL_BOTH the loop stops at
// the first self-owned tradable, so it and everything behind it in
// price-time order are excluded.
func (pb *ProductBook) eligibleLiquidity(opposite *BookSide, incoming *tradable.Order) int64 {
	qualifies := func(levelPrice price.Price) bool {
		if incoming.Side == tradable.Buy {
			return levelPrice.Compare(incoming.Price) <= 0
		}
		return levelPrice.Compare(incoming.Price) >= 0
	}
	mode := pb.stpEngine.Mode()
	blocked := false
	skip := func(resting *tradable.Order) bool {
		if blocked {
			return true
		}
		if mode == stp.Allow || !pb.stpEngine.IsSelfTrade(incoming, resting) {
			return false
		}
		if mode != stp.CancelResting {
			blocked = true
		}
		return true
	}
	return opposite.EligibleLiquidity(qualifies, skip)
}

func (pb *ProductBook) emit(e audit.Event) {
	if _, err := pb.chain.Append(e); err != nil {
		if _, fatal := err.(*audit.PrimarySinkError); fatal {
			logger.Logger.Fatal().Err(err).Msg("primary audit sink failed, aborting")
		}
		logger.Logger.Error().Err(err).Msg("advisory audit sink failed")
	}
}

// publishTopOfBook recomputes both sides' top-of-book and, if either
// field changed, emits a MARKET_UPDATE event and publishes a snapshot,
// inside the still-held exclusive lock. Caller must hold pb.mu.
func (pb *ProductBook) publishTopOfBook() {
	snap := TopOfBookSnapshot{Instrument: pb.Instrument}

	if bp, ok := pb.buy.TopOfBookPrice(); ok {
		snap.BidPrice = bp
		snap.BidVolume = pb.buy.TopOfBookVolume()
	} else {
		snap.BidEmpty = true
	}

	if ap, ok := pb.sell.TopOfBookPrice(); ok {
		snap.AskPrice = ap
		snap.AskVolume = pb.sell.TopOfBookVolume()
	} else {
		snap.AskEmpty = true
	}

	if snap == pb.lastSnapshot {
		return
	}
	pb.lastSnapshot = snap

	b := audit.NewBuilder(audit.MarketUpdate).Product(pb.Instrument)
	if snap.BidEmpty {
		b.Add("bid", "empty")
	} else {
		b.Add("bid", snap.BidPrice.DecimalString()).Add("bid_volume", snap.BidVolume)
	}
	if snap.AskEmpty {
		b.Add("ask", "empty")
	} else {
		b.Add("ask", snap.AskPrice.DecimalString()).Add("ask_volume", snap.AskVolume)
	}
	pb.emit(b.Build())

	pb.publisher.Publish(snap)
}

// Snapshot returns the current top-of-book under a shared lock, for
// read-only queries outside the admission path.
func (pb *ProductBook) Snapshot() TopOfBookSnapshot {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	snap := TopOfBookSnapshot{Instrument: pb.Instrument}
	if bp, ok := pb.buy.TopOfBookPrice(); ok {
		snap.BidPrice = bp
		snap.BidVolume = pb.buy.TopOfBookVolume()
	} else {
		snap.BidEmpty = true
	}
	if ap, ok := pb.sell.TopOfBookPrice(); ok {
		snap.AskPrice = ap
		snap.AskVolume = pb.sell.TopOfBookVolume()
	} else {
		snap.AskEmpty = true
	}
	return snap
}

// Depth returns up to levels price levels on each side, for a book-depth
// diagnostic endpoint.
func (pb *ProductBook) Depth(levels int) (bids, asks []Snapshot) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	return pb.buy.Depth(levels), pb.sell.Depth(levels)
}
