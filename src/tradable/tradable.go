// Package tradable models anything that can rest on a book side and
// match: a single-sided Order, or one side of a two-sided Quote. Both
// are represented as the Order type tagged with an Origin; the common
// lifecycle fields (remaining/filled/cancelled volume, status) live on
// the shared struct.
package tradable

import (
	"fmt"
	"regexp"
	"time"

	"matchcore/src/price"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

type OrderType string

const (
	TypeLimit OrderType = "LIMIT"
	TypeFOK   OrderType = "FOK"
)

type LinkType string

const (
	LinkStandalone LinkType = "STANDALONE"
	LinkOCO        LinkType = "OCO"
	LinkOSO        LinkType = "OSO"
	LinkOTO        LinkType = "OTO"
)

type Status string

const (
	StatusPending         Status = "PENDING"
	StatusAccepted        Status = "ACCEPTED"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusFullyFilled     Status = "FULLY_FILLED"
	StatusCancelled       Status = "CANCELLED"
	StatusCancelledOCO    Status = "CANCELLED_OCO"
	StatusCancelledSTP    Status = "CANCELLED_STP"
	StatusRejectedFOK     Status = "REJECTED_FOK"
	StatusRejected        Status = "REJECTED"
)

// IsFinal reports whether no further lifecycle transitions are expected.
func (s Status) IsFinal() bool {
	switch s {
	case StatusFullyFilled, StatusCancelled, StatusCancelledOCO, StatusCancelledSTP, StatusRejectedFOK, StatusRejected:
		return true
	default:
		return false
	}
}

// IsExecutable reports whether the tradable can still match on the book.
func (s Status) IsExecutable() bool {
	return s == StatusAccepted || s == StatusPartiallyFilled
}

// Origin distinguishes a single-sided Order from one side of a Quote.
type Origin string

const (
	OriginOrder Origin = "ORDER"
	OriginQuote Origin = "QUOTE"
)

var (
	userIDRegex       = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)
	instrumentIDRegex = regexp.MustCompile(`^[a-zA-Z0-9.]{1,5}$`)
)

// ValidateUserID enforces the user-identifier grammar.
func ValidateUserID(user string) error {
	if !userIDRegex.MatchString(user) {
		return fmt.Errorf("tradable: invalid user id %q", user)
	}
	return nil
}

// ValidateInstrumentID enforces the instrument-identifier grammar.
func ValidateInstrumentID(instrument string) error {
	if !instrumentIDRegex.MatchString(instrument) {
		return fmt.Errorf("tradable: invalid instrument id %q", instrument)
	}
	return nil
}

// Order is the single concrete Tradable implementation, tagged by Origin
// to distinguish a standalone order from a quote side. remaining + filled
// + cancelled == original is a permanent invariant enforced by every
// mutator below.
type Order struct {
	ID         string
	User       string
	Instrument string
	Price      price.Price
	Side       Side
	Origin     Origin

	originalVolume  int64
	remainingVolume int64
	filledVolume    int64
	cancelledVolume int64

	Status    Status
	CreatedTS int64 // monotonic-ish creation order surrogate; see NewOrder

	OrderType     OrderType
	LinkType      LinkType
	LinkedOrderID string
}

// NewOrder constructs a PENDING order after validating identities and
// the [1, 9999] volume bounds.
func NewOrder(id, user, instrument string, side Side, p price.Price, volume int64, orderType OrderType) (*Order, error) {
	if id == "" {
		return nil, fmt.Errorf("tradable: order id cannot be empty")
	}
	if err := ValidateUserID(user); err != nil {
		return nil, err
	}
	if err := ValidateInstrumentID(instrument); err != nil {
		return nil, err
	}
	if volume < 1 || volume > 9999 {
		return nil, fmt.Errorf("tradable: volume %d out of range [1, 9999]", volume)
	}
	if side != Buy && side != Sell {
		return nil, fmt.Errorf("tradable: invalid side %q", side)
	}
	if orderType == "" {
		orderType = TypeLimit
	}

	return &Order{
		ID:              id,
		User:            user,
		Instrument:      instrument,
		Price:           p,
		Side:            side,
		Origin:          OriginOrder,
		originalVolume:  volume,
		remainingVolume: volume,
		Status:          StatusPending,
		CreatedTS:       time.Now().UnixNano(),
		OrderType:       orderType,
		LinkType:        LinkStandalone,
	}, nil
}

// NewQuoteSide constructs one side of a Quote. Quote sides are always
// LIMIT and STANDALONE: a quote never participates in OCO or FOK.
func NewQuoteSide(id, user, instrument string, side Side, p price.Price, volume int64) (*Order, error) {
	o, err := NewOrder(id, user, instrument, side, p, volume, TypeLimit)
	if err != nil {
		return nil, err
	}
	o.Origin = OriginQuote
	return o, nil
}

func (o *Order) OriginalVolume() int64  { return o.originalVolume }
func (o *Order) RemainingVolume() int64 { return o.remainingVolume }
func (o *Order) FilledVolume() int64    { return o.filledVolume }
func (o *Order) CancelledVolume() int64 { return o.cancelledVolume }

func (o *Order) IsFOK() bool { return o.OrderType == TypeFOK }

// Accept transitions PENDING -> ACCEPTED once admitted to the book.
func (o *Order) Accept() {
	if o.Status == StatusPending {
		o.Status = StatusAccepted
	}
}

// Fill applies qty of execution to the tradable, moving it from remaining
// to filled and updating status. qty must not exceed RemainingVolume.
func (o *Order) Fill(qty int64) {
	if qty <= 0 {
		return
	}
	if qty > o.remainingVolume {
		qty = o.remainingVolume
	}
	o.remainingVolume -= qty
	o.filledVolume += qty
	if o.remainingVolume == 0 {
		o.Status = StatusFullyFilled
	} else {
		o.Status = StatusPartiallyFilled
	}
}

// Cancel moves all remaining volume to cancelled and sets the given
// terminal status (CANCELLED, CANCELLED_OCO, or CANCELLED_STP).
func (o *Order) Cancel(status Status) {
	o.cancelledVolume += o.remainingVolume
	o.remainingVolume = 0
	o.Status = status
}

// Reject marks the tradable as rejected without ever having rested. The
// unfilled volume is accounted as cancelled so the permanent volume
// invariant holds for rejected tradables too.
func (o *Order) Reject(status Status) {
	o.cancelledVolume += o.remainingVolume
	o.remainingVolume = 0
	o.Status = status
}

// Invariant reports whether the permanent per-tradable invariant
// (remaining + filled + cancelled == original) still holds.
func (o *Order) Invariant() bool {
	return o.remainingVolume+o.filledVolume+o.cancelledVolume == o.originalVolume && o.remainingVolume >= 0
}

func (o *Order) String() string {
	return fmt.Sprintf("%s order: %s %s @ %s orig=%d rem=%d filled=%d cxl=%d id=%s status=%s",
		o.User, o.Side, o.Instrument, o.Price, o.originalVolume, o.remainingVolume, o.filledVolume, o.cancelledVolume, o.ID, o.Status)
}

// DTO is the immutable snapshot handed back to callers after a book
// mutation, decoupling external consumers from the live, mutable Order.
type DTO struct {
	ID              string
	User            string
	Instrument      string
	Price           price.Price
	Side            Side
	OriginalVolume  int64
	RemainingVolume int64
	FilledVolume    int64
	CancelledVolume int64
	Status          Status
}

// ToDTO snapshots the current state of the tradable.
func (o *Order) ToDTO() DTO {
	return DTO{
		ID:              o.ID,
		User:            o.User,
		Instrument:      o.Instrument,
		Price:           o.Price,
		Side:            o.Side,
		OriginalVolume:  o.originalVolume,
		RemainingVolume: o.remainingVolume,
		FilledVolume:    o.filledVolume,
		CancelledVolume: o.cancelledVolume,
		Status:          o.Status,
	}
}

// Trade records one execution between a buy and a sell tradable.
type Trade struct {
	TradeID     string
	Instrument  string
	Price       price.Price
	Quantity    int64
	Timestamp   int64
	BuyOrderID  string
	SellOrderID string
}
