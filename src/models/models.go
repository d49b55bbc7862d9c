// Package models defines the HTTP-facing request/response DTOs for the
// order admission API. All prices cross the wire as decimal strings
// with at most two fractional digits; conversion to the internal
// price.Price happens in the coordinator, never here.
package models

type SubmitOrderRequest struct {
	User          string `json:"user"`
	Instrument    string `json:"instrument"`
	Side          string `json:"side"`
	Price         string `json:"price"`
	Volume        int64  `json:"volume"`
	OrderType     string `json:"order_type,omitempty"`
	LinkedOrderID string `json:"linked_order_id,omitempty"`
	LinkType      string `json:"link_type,omitempty"`
}

type SubmitOrderResponse struct {
	OrderID string      `json:"order_id"`
	Status  string      `json:"status"`
	Trades  []TradeInfo `json:"trades,omitempty"`
}

type SubmitQuoteRequest struct {
	User       string `json:"user"`
	Instrument string `json:"instrument"`
	BuyPrice   string `json:"buy_price"`
	BuyVolume  int64  `json:"buy_volume"`
	SellPrice  string `json:"sell_price"`
	SellVolume int64  `json:"sell_volume"`
}

type SubmitQuoteResponse struct {
	BuyID  string      `json:"buy_id"`
	SellID string      `json:"sell_id"`
	Trades []TradeInfo `json:"trades,omitempty"`
}

type TradeInfo struct {
	Price       string `json:"price"`
	Quantity    int64  `json:"quantity"`
	BuyOrderID  string `json:"buy_order_id"`
	SellOrderID string `json:"sell_order_id"`
}

type CancelOrderRequest struct {
	Side string `json:"side"`
}

type CancelOrderResponse struct {
	OrderID         string `json:"order_id"`
	Status          string `json:"status"`
	RemainingVolume int64  `json:"remaining_volume"`
	FilledVolume    int64  `json:"filled_volume"`
	CancelledVolume int64  `json:"cancelled_volume"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type RemoveQuotesResponse struct {
	Instrument string                `json:"instrument"`
	User       string                `json:"user"`
	Cancelled  []CancelOrderResponse `json:"cancelled"`
}

type TopOfBookResponse struct {
	Instrument string  `json:"instrument"`
	Bid        *string `json:"bid"`
	BidVolume  int64   `json:"bid_volume"`
	Ask        *string `json:"ask"`
	AskVolume  int64   `json:"ask_volume"`
}

type PriceLevelInfo struct {
	Price    string `json:"price"`
	Quantity int64  `json:"quantity"`
}

type BookDepthResponse struct {
	Instrument string           `json:"instrument"`
	Bids       []PriceLevelInfo `json:"bids"`
	Asks       []PriceLevelInfo `json:"asks"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type MetricsSummaryResponse struct {
	LatencyCount         int     `json:"latency_count"`
	LatencyP50Ns         int64   `json:"latency_p50_ns"`
	LatencyP95Ns         int64   `json:"latency_p95_ns"`
	LatencyP99Ns         int64   `json:"latency_p99_ns"`
	LatencyP999Ns        int64   `json:"latency_p999_ns"`
	ViolationCount       int     `json:"violation_count"`
	ViolationRatePercent float64 `json:"violation_rate_percent"`
	RelationshipsTotal   int     `json:"relationships_total"`
	RelationshipsActive  int     `json:"relationships_active"`
}

type AuditVerifyResponse struct {
	Valid      bool               `json:"valid"`
	EventCount int                `json:"event_count"`
	Errors     []AuditVerifyError `json:"errors,omitempty"`
}

type AuditVerifyError struct {
	Offset       int    `json:"offset"`
	ExpectedHash string `json:"expected_hash"`
	ObservedHash string `json:"observed_hash"`
	Reason       string `json:"reason"`
}
