// Package audit implements the tamper-evident, hash-chained record of
// every admission, cancellation, fill, and trade. The chain is an owned
// collaborator created once at startup and passed explicitly, so tests
// instantiate fresh, isolated chains.
package audit

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// EventType is the fixed set of audit event kinds.
type EventType string

const (
	OrderPlaced          EventType = "ORDER_PLACED"
	OrderCancelled       EventType = "ORDER_CANCELLED"
	OrderFilled          EventType = "ORDER_FILLED"
	OrderPartiallyFilled EventType = "ORDER_PARTIALLY_FILLED"
	OrderRejected        EventType = "ORDER_REJECTED"
	QuoteSubmitted       EventType = "QUOTE_SUBMITTED"
	TradeExecuted        EventType = "TRADE_EXECUTED"
	MarketUpdate         EventType = "MARKET_UPDATE"
	SystemStart          EventType = "SYSTEM_START"
	SystemShutdown       EventType = "SYSTEM_SHUTDOWN"
)

// Description returns a human-readable label for operator tooling; it
// is never part of the wire format.
func (t EventType) Description() string {
	switch t {
	case OrderPlaced:
		return "Order placed in the system"
	case OrderCancelled:
		return "Order cancelled by user or system"
	case OrderFilled:
		return "Order fully filled"
	case OrderPartiallyFilled:
		return "Order partially filled"
	case OrderRejected:
		return "Order rejected"
	case QuoteSubmitted:
		return "Quote submitted to market"
	case TradeExecuted:
		return "Trade executed between buy and sell orders"
	case MarketUpdate:
		return "Market data updated"
	case SystemStart:
		return "Trading system started"
	case SystemShutdown:
		return "Trading system shutdown"
	default:
		return ""
	}
}

// Event is an immutable audit record. Once Hash and PreviousHash are
// assigned by HashChain.Append, an Event must never be mutated again.
type Event struct {
	EventID      string         `json:"eventId"`
	EventType    EventType      `json:"eventType"`
	Timestamp    time.Time      `json:"timestamp"`
	UserID       string         `json:"userId,omitempty"`
	Product      string         `json:"product,omitempty"`
	Data         map[string]any `json:"data"`
	Hash         string         `json:"hash"`
	PreviousHash string         `json:"previousHash"`
}

// Builder constructs an Event before it is handed to a HashChain for
// appending. The zero value is ready to use via NewBuilder.
type Builder struct {
	eventType EventType
	userID    string
	product   string
	data      map[string]any
}

func NewBuilder(eventType EventType) *Builder {
	return &Builder{eventType: eventType, data: make(map[string]any)}
}

func (b *Builder) User(userID string) *Builder {
	b.userID = userID
	return b
}

func (b *Builder) Product(product string) *Builder {
	b.product = product
	return b
}

func (b *Builder) Add(key string, value any) *Builder {
	b.data[key] = value
	return b
}

// Build assembles the immutable Event. EventID and Timestamp are stamped
// here; Hash/PreviousHash remain empty until HashChain.Append runs.
func (b *Builder) Build() Event {
	return Event{
		EventID:   uuid.New().String(),
		EventType: b.eventType,
		Timestamp: time.Now(),
		UserID:    b.userID,
		Product:   b.product,
		Data:      b.data,
	}
}

// canonicalJSON serializes the hashed subset of an Event in a fixed
// order: event id, type, timestamp, user, instrument, then data with
// keys in lexicographic order. Changing this function's output for a
// historical event is a breaking change to every downstream chain.
func canonicalJSON(e Event) ([]byte, error) {
	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	orderedData := make([]canonicalKV, 0, len(keys))
	for _, k := range keys {
		orderedData = append(orderedData, canonicalKV{Key: k, Value: canonicalValue(e.Data[k])})
	}

	payload := canonicalEvent{
		EventID:   e.EventID,
		EventType: string(e.EventType),
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
		UserID:    e.UserID,
		Product:   e.Product,
		Data:      orderedData,
	}
	return json.Marshal(payload)
}

// canonicalValue renders floats as strings so the canonical form never
// depends on a JSON number's textual representation.
func canonicalValue(v any) any {
	switch x := v.(type) {
	case float32, float64:
		return jsonNumberString(x)
	default:
		return v
	}
}

func jsonNumberString(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

type canonicalKV struct {
	Key   string `json:"k"`
	Value any    `json:"v"`
}

type canonicalEvent struct {
	EventID   string        `json:"eventId"`
	EventType string        `json:"eventType"`
	Timestamp string        `json:"timestamp"`
	UserID    string        `json:"userId"`
	Product   string        `json:"product"`
	Data      []canonicalKV `json:"data"`
}
