package engine

import (
	"fmt"

	"github.com/google/btree"

	"matchcore/src/price"
	"matchcore/src/tradable"
)

// BookSide holds one side (BUY or SELL) of one instrument's book. It
// carries no lock of its own: every mutating call happens under the
// owning ProductBook's exclusive lock; read-only top-of-book calls may
// be issued under the ProductBook's shared lock by callers that accept
// a point-in-time snapshot with no cross-side consistency guarantee.
type BookSide struct {
	Side  tradable.Side
	tree  *btree.BTree
	index map[string]*tradable.Order // id -> order, for O(1) cancel lookup
}

// NewBookSide constructs an empty side.
func NewBookSide(side tradable.Side) *BookSide {
	return &BookSide{
		Side:  side,
		tree:  btree.New(32),
		index: make(map[string]*tradable.Order),
	}
}

func (bs *BookSide) levelItem(p price.Price) btree.Item {
	lvl := &PriceLevel{Price: p}
	if bs.Side == tradable.Buy {
		return &bidLevelItem{level: lvl}
	}
	return &askLevelItem{level: lvl}
}

func (bs *BookSide) levelOf(item btree.Item) *PriceLevel {
	switch v := item.(type) {
	case *bidLevelItem:
		return v.level
	case *askLevelItem:
		return v.level
	default:
		return nil
	}
}

func (bs *BookSide) wrap(lvl *PriceLevel) btree.Item {
	if bs.Side == tradable.Buy {
		return &bidLevelItem{level: lvl}
	}
	return &askLevelItem{level: lvl}
}

// Add appends t to the price level at t.Price, creating the level if
// absent. Insertion order at a price defines time priority.
func (bs *BookSide) Add(t *tradable.Order) (tradable.DTO, error) {
	if t == nil {
		return tradable.DTO{}, fmt.Errorf("engine: cannot add nil tradable")
	}
	if t.RemainingVolume() <= 0 {
		return tradable.DTO{}, fmt.Errorf("engine: cannot add tradable with non-positive volume")
	}

	existing := bs.tree.Get(bs.levelItem(t.Price))
	var lvl *PriceLevel
	if existing != nil {
		lvl = bs.levelOf(existing)
	} else {
		lvl = newPriceLevel(t.Price)
		bs.tree.ReplaceOrInsert(bs.wrap(lvl))
	}
	lvl.Orders = append(lvl.Orders, t)
	bs.index[t.ID] = t

	return t.ToDTO(), nil
}

// Cancel removes the tradable with the given id, moving its remaining
// volume to cancelled. Returns ok=false if not found.
func (bs *BookSide) Cancel(id string) (tradable.DTO, bool) {
	o, ok := bs.index[id]
	if !ok {
		return tradable.DTO{}, false
	}

	item := bs.tree.Get(bs.levelItem(o.Price))
	if item == nil {
		delete(bs.index, id)
		return tradable.DTO{}, false
	}
	lvl := bs.levelOf(item)

	for i, each := range lvl.Orders {
		if each.ID == id {
			lvl.Orders = append(lvl.Orders[:i], lvl.Orders[i+1:]...)
			break
		}
	}
	o.Cancel(tradable.StatusCancelled)
	delete(bs.index, id)

	if len(lvl.Orders) == 0 {
		bs.tree.Delete(bs.levelItem(o.Price))
	}

	return o.ToDTO(), true
}

// CancelWithStatus is like Cancel but tags the terminal status
// (CANCELLED_OCO, CANCELLED_STP) instead of the plain CANCELLED used by
// an explicit user cancel.
func (bs *BookSide) CancelWithStatus(id string, status tradable.Status) (tradable.DTO, bool) {
	o, ok := bs.index[id]
	if !ok {
		return tradable.DTO{}, false
	}

	item := bs.tree.Get(bs.levelItem(o.Price))
	if item != nil {
		lvl := bs.levelOf(item)
		for i, each := range lvl.Orders {
			if each.ID == id {
				lvl.Orders = append(lvl.Orders[:i], lvl.Orders[i+1:]...)
				break
			}
		}
		if len(lvl.Orders) == 0 {
			bs.tree.Delete(bs.levelItem(o.Price))
		}
	}

	o.Cancel(status)
	delete(bs.index, id)
	return o.ToDTO(), true
}

// RemoveQuotesForUser removes every tradable belonging to user,
// collecting ids in a first pass and removing in a second to avoid
// iterator invalidation.
func (bs *BookSide) RemoveQuotesForUser(user string) []tradable.DTO {
	var ids []string
	bs.tree.Ascend(func(item btree.Item) bool {
		lvl := bs.levelOf(item)
		for _, o := range lvl.Orders {
			if o.User == user {
				ids = append(ids, o.ID)
			}
		}
		return true
	})

	out := make([]tradable.DTO, 0, len(ids))
	for _, id := range ids {
		if dto, ok := bs.Cancel(id); ok {
			out = append(out, dto)
		}
	}
	return out
}

// TopOfBookPrice returns the best price on this side, or ok=false if
// empty.
func (bs *BookSide) TopOfBookPrice() (price.Price, bool) {
	item := bs.tree.Min()
	if item == nil {
		return price.Zero, false
	}
	return bs.levelOf(item).Price, true
}

// TopOfBookVolume returns the aggregate remaining volume at the best
// price, or 0 if empty.
func (bs *BookSide) TopOfBookVolume() int64 {
	item := bs.tree.Min()
	if item == nil {
		return 0
	}
	return bs.levelOf(item).totalRemaining()
}

// PeekTop returns the head (earliest-arrived) tradable at the best
// price, or nil if the side is empty.
func (bs *BookSide) PeekTop() *tradable.Order {
	item := bs.tree.Min()
	if item == nil {
		return nil
	}
	lvl := bs.levelOf(item)
	if len(lvl.Orders) == 0 {
		return nil
	}
	return lvl.Orders[0]
}

// RemoveHeadAt drops the head tradable of the level at price from the
// side and its id index, leaving the tradable's volumes and status
// untouched (unlike TradeOut and CancelWithStatus).
func (bs *BookSide) RemoveHeadAt(p price.Price) {
	item := bs.tree.Get(bs.levelItem(p))
	if item == nil {
		return
	}
	lvl := bs.levelOf(item)
	if len(lvl.Orders) == 0 {
		return
	}
	removed := lvl.Orders[0]
	lvl.Orders = lvl.Orders[1:]
	delete(bs.index, removed.ID)
	if len(lvl.Orders) == 0 {
		bs.tree.Delete(bs.levelItem(p))
	}
}

// FillEvent describes one tradable's fill, for audit emission by the
// caller (ProductBook owns the AuditLogger, not BookSide).
type FillEvent struct {
	Order    *tradable.Order
	Quantity int64
	FillType string // "PARTIAL" | "FULL"
}

// TradeOut removes volume units at exactly price, consuming tradables in
// time-priority order. The caller guarantees the level
// holds at least volume. Returns one FillEvent per affected tradable so
// the caller can emit ORDER_FILLED audit events in order.
func (bs *BookSide) TradeOut(p price.Price, volume int64) []FillEvent {
	item := bs.tree.Get(bs.levelItem(p))
	if item == nil {
		return nil
	}
	lvl := bs.levelOf(item)

	var fills []FillEvent
	remaining := volume

	for remaining > 0 && len(lvl.Orders) > 0 {
		head := lvl.Orders[0]
		headRemaining := head.RemainingVolume()

		if headRemaining <= remaining {
			head.Fill(headRemaining)
			remaining -= headRemaining
			lvl.Orders = lvl.Orders[1:]
			delete(bs.index, head.ID)
			fills = append(fills, FillEvent{Order: head, Quantity: headRemaining, FillType: "FULL"})
		} else {
			head.Fill(remaining)
			fills = append(fills, FillEvent{Order: head, Quantity: remaining, FillType: "PARTIAL"})
			remaining = 0
		}
	}

	if len(lvl.Orders) == 0 {
		bs.tree.Delete(bs.levelItem(p))
	}

	return fills
}

// Snapshot is one aggregated (price, quantity) row for book-depth
// responses.
type Snapshot struct {
	Price    price.Price
	Quantity int64
}

// Depth returns up to depth levels from the best price outward.
func (bs *BookSide) Depth(depth int) []Snapshot {
	out := make([]Snapshot, 0, depth)
	count := 0
	bs.tree.Ascend(func(item btree.Item) bool {
		if count >= depth {
			return false
		}
		lvl := bs.levelOf(item)
		out = append(out, Snapshot{Price: lvl.Price, Quantity: lvl.totalRemaining()})
		count++
		return true
	})
	return out
}

// EligibleLiquidity sums remaining volume across levels, from best price
// outward, stopping at the first level that fails qualifies. skip, if
// non-nil, excludes individual tradables (used by the FOK gate to
// subtract STP-skipped liquidity).
func (bs *BookSide) EligibleLiquidity(qualifies func(price.Price) bool, skip func(*tradable.Order) bool) int64 {
	var total int64
	bs.tree.Ascend(func(item btree.Item) bool {
		lvl := bs.levelOf(item)
		if !qualifies(lvl.Price) {
			return false
		}
		for _, o := range lvl.Orders {
			if skip != nil && skip(o) {
				continue
			}
			total += o.RemainingVolume()
		}
		return true
	})
	return total
}

// Len reports how many distinct price levels are resting on this side.
func (bs *BookSide) Len() int { return bs.tree.Len() }

// Get returns the tradable with the given id, if resting on this side.
func (bs *BookSide) Get(id string) (*tradable.Order, bool) {
	o, ok := bs.index[id]
	return o, ok
}
