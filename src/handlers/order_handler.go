// Package handlers adapts the coordinator's admission API onto fiber's
// HTTP routing: orders, quotes, cancels, top-of-book, book depth, audit
// verification, and the latency/registry metrics summary.
package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"matchcore/src/audit"
	"matchcore/src/coordinator"
	"matchcore/src/latency"
	"matchcore/src/logger"
	"matchcore/src/models"
	"matchcore/src/registry"
	"matchcore/src/tradable"
)

// OrderHandler wires fiber routes to the coordinator and the
// collaborators a few read-only endpoints need directly (audit chain
// for verification, registry for relationship stats).
type OrderHandler struct {
	coord    *coordinator.Coordinator
	listener *audit.ListenerSink
	registry *registry.Registry
}

// NewOrderHandler constructs a handler set. listener may be nil if no
// in-memory audit feed is wired (the /audit/verify endpoint then has
// nothing to verify against and returns an empty report).
func NewOrderHandler(coord *coordinator.Coordinator, listener *audit.ListenerSink, reg *registry.Registry) *OrderHandler {
	return &OrderHandler{coord: coord, listener: listener, registry: reg}
}

func (h *OrderHandler) badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{Error: err.Error()})
}

// SubmitOrder handles POST /api/v1/orders.
func (h *OrderHandler) SubmitOrder(c *fiber.Ctx) error {
	tl := latency.NewTimeline("", "")

	var req models.SubmitOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return h.badRequest(c, err)
	}

	result, err := h.coord.SubmitOrder(coordinator.SubmitOrderRequest{
		User:          req.User,
		Instrument:    req.Instrument,
		Side:          tradable.Side(req.Side),
		PriceDecimal:  req.Price,
		Volume:        req.Volume,
		OrderType:     tradable.OrderType(req.OrderType),
		LinkedOrderID: req.LinkedOrderID,
		LinkType:      tradable.LinkType(req.LinkType),
	}, tl)
	if err != nil {
		h.coord.Monitor().IncRejects(1)
		var unknown *coordinator.UnknownInstrumentError
		if errors.As(err, &unknown) {
			return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{Error: err.Error()})
		}
		return h.badRequest(c, err)
	}

	tl.MarkResponseSent()
	if v := h.coord.Monitor().RecordTimeline(tl); v != nil {
		logger.Logger.Warn().
			Str("order_id", result.OrderID).
			Str("phase", v.Phase).
			Int64("actual_ns", v.ActualNanos).
			Int64("threshold_ns", v.ThresholdNanos).
			Msg("latency threshold violated")
	}

	status := fiber.StatusCreated
	if result.Status == tradable.StatusRejectedFOK {
		status = fiber.StatusUnprocessableEntity
		h.coord.Monitor().IncRejects(1)
	}

	return c.Status(status).JSON(models.SubmitOrderResponse{
		OrderID: result.OrderID,
		Status:  string(result.Status),
		Trades:  toTradeInfos(result.Trades),
	})
}

// SubmitQuote handles POST /api/v1/quotes.
func (h *OrderHandler) SubmitQuote(c *fiber.Ctx) error {
	tl := latency.NewTimeline("", "")

	var req models.SubmitQuoteRequest
	if err := c.BodyParser(&req); err != nil {
		return h.badRequest(c, err)
	}

	result, err := h.coord.SubmitQuote(coordinator.SubmitQuoteRequest{
		User:             req.User,
		Instrument:       req.Instrument,
		BuyPriceDecimal:  req.BuyPrice,
		BuyVolume:        req.BuyVolume,
		SellPriceDecimal: req.SellPrice,
		SellVolume:       req.SellVolume,
	}, tl)
	if err != nil {
		var unknown *coordinator.UnknownInstrumentError
		if errors.As(err, &unknown) {
			return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{Error: err.Error()})
		}
		return h.badRequest(c, err)
	}

	tl.MarkResponseSent()
	h.coord.Monitor().RecordTimeline(tl)

	return c.Status(fiber.StatusCreated).JSON(models.SubmitQuoteResponse{
		BuyID:  result.BuyID,
		SellID: result.SellID,
		Trades: toTradeInfos(result.Trades),
	})
}

// CancelOrder handles DELETE /api/v1/instruments/:instrument/orders/:id.
func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	instrument := c.Params("instrument")
	id := c.Params("id")

	var req models.CancelOrderRequest
	_ = c.BodyParser(&req)
	side := tradable.Side(c.Query("side", req.Side))

	dto, found, err := h.coord.CancelOrder(instrument, side, id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{Error: err.Error()})
	}
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{Error: "order not found"})
	}

	return c.Status(fiber.StatusOK).JSON(models.CancelOrderResponse{
		OrderID:         dto.ID,
		Status:          string(dto.Status),
		RemainingVolume: dto.RemainingVolume,
		FilledVolume:    dto.FilledVolume,
		CancelledVolume: dto.CancelledVolume,
	})
}

// RemoveQuotes handles DELETE /api/v1/instruments/:instrument/quotes,
// cancelling both resting quote sides for the user named in the query.
func (h *OrderHandler) RemoveQuotes(c *fiber.Ctx) error {
	instrument := c.Params("instrument")
	user := c.Query("user")
	if user == "" {
		return h.badRequest(c, errors.New("user query parameter required"))
	}

	dtos, err := h.coord.RemoveQuotesForUser(instrument, user)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{Error: err.Error()})
	}

	resp := models.RemoveQuotesResponse{Instrument: instrument, User: user}
	for _, dto := range dtos {
		resp.Cancelled = append(resp.Cancelled, models.CancelOrderResponse{
			OrderID:         dto.ID,
			Status:          string(dto.Status),
			RemainingVolume: dto.RemainingVolume,
			FilledVolume:    dto.FilledVolume,
			CancelledVolume: dto.CancelledVolume,
		})
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

// TopOfBook handles GET /api/v1/instruments/:instrument/top.
func (h *OrderHandler) TopOfBook(c *fiber.Ctx) error {
	instrument := c.Params("instrument")

	snap, err := h.coord.QueryTopOfBook(instrument)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{Error: err.Error()})
	}

	resp := models.TopOfBookResponse{Instrument: instrument}
	if !snap.BidEmpty {
		bid := snap.BidPrice.DecimalString()
		resp.Bid = &bid
		resp.BidVolume = snap.BidVolume
	}
	if !snap.AskEmpty {
		ask := snap.AskPrice.DecimalString()
		resp.Ask = &ask
		resp.AskVolume = snap.AskVolume
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

// BookDepth handles GET /api/v1/instruments/:instrument/depth, a
// diagnostic extension beyond top-of-book.
func (h *OrderHandler) BookDepth(c *fiber.Ctx) error {
	instrument := c.Params("instrument")
	book, ok := h.coord.Manager().Get(instrument)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{Error: "unknown instrument"})
	}

	bids, asks := book.Depth(10)
	resp := models.BookDepthResponse{Instrument: instrument}
	for _, b := range bids {
		resp.Bids = append(resp.Bids, models.PriceLevelInfo{Price: b.Price.DecimalString(), Quantity: b.Quantity})
	}
	for _, a := range asks {
		resp.Asks = append(resp.Asks, models.PriceLevelInfo{Price: a.Price.DecimalString(), Quantity: a.Quantity})
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

// AuditVerify handles GET /api/v1/audit/verify, running chain
// verification over every event seen by the in-memory listener sink.
func (h *OrderHandler) AuditVerify(c *fiber.Ctx) error {
	if h.listener == nil {
		return c.Status(fiber.StatusOK).JSON(models.AuditVerifyResponse{Valid: true})
	}

	events := h.listener.Events()
	report := audit.VerifyChain(events)

	resp := models.AuditVerifyResponse{Valid: report.Valid, EventCount: len(events)}
	for _, e := range report.Errors {
		resp.Errors = append(resp.Errors, models.AuditVerifyError{
			Offset:       e.Index,
			ExpectedHash: e.ExpectedHash,
			ObservedHash: e.ObservedHash,
			Reason:       e.Reason,
		})
	}

	status := fiber.StatusOK
	if !report.Valid {
		status = fiber.StatusConflict
	}
	return c.Status(status).JSON(resp)
}

// HealthCheck handles GET /health.
func (h *OrderHandler) HealthCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(models.HealthResponse{Status: "ok"})
}

// MetricsSummary handles GET /api/v1/metrics/summary, the JSON
// companion to the Prometheus /metrics endpoint, surfacing the bounded
// reservoir percentiles that a Prometheus histogram cannot reproduce
// exactly.
func (h *OrderHandler) MetricsSummary(c *fiber.Ctx) error {
	stats := h.coord.Monitor().Stats()
	violations := h.coord.Monitor().ViolationStats()
	relationships := h.registry.Stats()

	return c.Status(fiber.StatusOK).JSON(models.MetricsSummaryResponse{
		LatencyCount:         stats.Count,
		LatencyP50Ns:         stats.P50,
		LatencyP95Ns:         stats.P95,
		LatencyP99Ns:         stats.P99,
		LatencyP999Ns:        stats.P999,
		ViolationCount:       violations.Count,
		ViolationRatePercent: violations.RatePercent,
		RelationshipsTotal:   relationships.Total,
		RelationshipsActive:  relationships.Active,
	})
}

func toTradeInfos(trades []tradable.Trade) []models.TradeInfo {
	if len(trades) == 0 {
		return nil
	}
	out := make([]models.TradeInfo, 0, len(trades))
	for _, t := range trades {
		out = append(out, models.TradeInfo{
			Price:       t.Price.DecimalString(),
			Quantity:    t.Quantity,
			BuyOrderID:  t.BuyOrderID,
			SellOrderID: t.SellOrderID,
		})
	}
	return out
}
