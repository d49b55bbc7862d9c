// Package engine implements the per-instrument matching unit: BookSide,
// ProductBook, and the crossing algorithm. Price levels are kept in a
// google/btree keyed on price.Price, each level holding a time-ordered
// queue of resting tradables.
package engine

import (
	"github.com/google/btree"

	"matchcore/src/price"
	"matchcore/src/tradable"
)

// PriceLevel holds every tradable resting at one price, in arrival
// (time-priority) order.
type PriceLevel struct {
	Price  price.Price
	Orders []*tradable.Order
}

func newPriceLevel(p price.Price) *PriceLevel {
	return &PriceLevel{Price: p}
}

func (lvl *PriceLevel) totalRemaining() int64 {
	var total int64
	for _, o := range lvl.Orders {
		total += o.RemainingVolume()
	}
	return total
}

// bidLevelItem orders the buy-side btree descending (highest price
// first).
type bidLevelItem struct {
	level *PriceLevel
}

func (i *bidLevelItem) Less(than btree.Item) bool {
	return i.level.Price.GreaterThan(than.(*bidLevelItem).level.Price)
}

// askLevelItem orders the sell-side btree ascending (lowest price
// first), mirroring PriceLevelItemAscending.
type askLevelItem struct {
	level *PriceLevel
}

func (i *askLevelItem) Less(than btree.Item) bool {
	return i.level.Price.LessThan(than.(*askLevelItem).level.Price)
}
