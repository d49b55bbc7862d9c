// Package marketdata implements the top-of-book publication channel: a
// Hub that fans out per-instrument snapshots to subscribed websocket
// observers, non-blocking by contract so a slow or dead client can
// never stall the admission critical section. One topic per instrument,
// no client-driven replay protocol.
package marketdata

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"matchcore/src/engine"
	"matchcore/src/logger"
)

// wireSnapshot is the JSON frame delivered to subscribers.
type wireSnapshot struct {
	Instrument string  `json:"instrument"`
	Bid        *string `json:"bid"`
	BidVolume  int64   `json:"bidVolume"`
	Ask        *string `json:"ask"`
	AskVolume  int64   `json:"askVolume"`
}

func toWire(s engine.TopOfBookSnapshot) wireSnapshot {
	w := wireSnapshot{Instrument: s.Instrument}
	if !s.BidEmpty {
		bid := s.BidPrice.DecimalString()
		w.Bid = &bid
		w.BidVolume = s.BidVolume
	}
	if !s.AskEmpty {
		ask := s.AskPrice.DecimalString()
		w.Ask = &ask
		w.AskVolume = s.AskVolume
	}
	return w
}

type client struct {
	conn       *websocket.Conn
	send       chan []byte
	instrument string
}

// Hub is a Publisher (engine.Publisher) and the HTTP upgrade endpoint
// for /ws/marketdata/:instrument.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*client]struct{} // instrument -> set
	upgrader websocket.Upgrader
}

// NewHub constructs an empty Hub. CheckOrigin always allows; a
// production deployment behind a reverse proxy would narrow this.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Publish implements engine.Publisher. It must never block: every
// client has a bounded buffered channel and a full channel is dropped
// rather than awaited.
func (h *Hub) Publish(snap engine.TopOfBookSnapshot) {
	payload, err := json.Marshal(toWire(snap))
	if err != nil {
		logger.Logger.Error().Err(err).Msg("marketdata: failed to marshal snapshot")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[snap.Instrument] {
		select {
		case c.send <- payload:
		default:
			logger.Logger.Warn().
				Str("instrument", snap.Instrument).
				Msg("marketdata: dropping snapshot for slow subscriber")
		}
	}
}

// ServeWS upgrades the HTTP connection and registers it against
// instrument. Callers should have already validated the instrument
// exists; a subscription to an instrument with no book simply never
// receives anything.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, instrument string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{conn: conn, send: make(chan []byte, 64), instrument: instrument}

	h.mu.Lock()
	if h.clients[instrument] == nil {
		h.clients[instrument] = make(map[*client]struct{})
	}
	h.clients[instrument][c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	h.readPump(c)
	return nil
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients[c.instrument], c)
	h.mu.Unlock()
	close(c.send)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
