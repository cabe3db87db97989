package stream

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Event types pushed to stream subscribers.
const (
	EventMarketCreated   = "market_created"
	EventBetPlaced       = "bet_placed"
	EventMarketResolved  = "market_resolved"
	EventMarketCancelled = "market_cancelled"
	EventWinningsClaimed = "winnings_claimed"
	EventRefundClaimed   = "refund_claimed"
	EventBettingClosed   = "betting_closed"
)

// Event is one market lifecycle notification.
type Event struct {
	Type     string    `json:"type"`
	MarketID string    `json:"market_id,omitempty"`
	At       time.Time `json:"at"`
	Payload  any       `json:"payload,omitempty"`
}

// Hub fans market events out to websocket subscribers so UI collaborators
// do not have to poll market snapshots. Slow subscribers are dropped
// rather than allowed to backpressure the settlement path.
type Hub struct {
	Logger *zap.Logger

	buffer int

	mu      sync.Mutex
	clients map[chan Event]struct{}
}

func NewHub(logger *zap.Logger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		Logger:  logger,
		buffer:  buffer,
		clients: map[chan Event]struct{}{},
	}
}

// Broadcast delivers the event to every subscriber without blocking.
// Subscribers whose buffer is full miss the event; the stream is a
// convenience feed, not the ledger of record.
func (h *Hub) Broadcast(ev Event) {
	if h == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
			if h.Logger != nil {
				h.Logger.Debug("stream subscriber lagging, event dropped",
					zap.String("type", ev.Type),
					zap.String("market_id", ev.MarketID),
				)
			}
		}
	}
}

// Subscribe registers a new event channel; the returned func removes it.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.clients, ch)
		h.mu.Unlock()
	}
}

// SubscriberCount reports the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Handle upgrades the request to a websocket and writes events until the
// client goes away.
func (h *Hub) Handle(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("websocket accept failed", zap.Error(err))
		}
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	// CloseRead surfaces client disconnects as context cancellation; we
	// never expect inbound messages.
	ctx := conn.CloseRead(c.Request.Context())

	events, unsubscribe := h.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "bye")
			return
		case ev := <-events:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, ev)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
