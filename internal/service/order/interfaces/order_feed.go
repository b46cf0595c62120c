package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ordersaga/internal/pkg/logger"
	"ordersaga/internal/service/order/application"
	"ordersaga/internal/service/order/domain"
	"ordersaga/internal/service/order/domain/port"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// OrderFeed pushes every confirmed order to connected websocket clients.
// A client may filter by customerId.
type OrderFeed struct {
	mu      sync.RWMutex
	clients map[string]*feedClient
}

var _ port.OrderNotifier = (*OrderFeed)(nil)

type feedClient struct {
	id         string
	customerID string
	conn       *websocket.Conn
	send       chan []byte
}

func NewOrderFeed() *OrderFeed {
	return &OrderFeed{clients: make(map[string]*feedClient)}
}

func (f *OrderFeed) register(c *feedClient) {
	f.mu.Lock()
	f.clients[c.id] = c
	f.mu.Unlock()
}

func (f *OrderFeed) unregister(c *feedClient) {
	f.mu.Lock()
	if _, ok := f.clients[c.id]; ok {
		delete(f.clients, c.id)
		close(c.send)
	}
	f.mu.Unlock()
}

// Clients reports the number of connected clients.
func (f *OrderFeed) Clients() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

// OrderConfirmed broadcasts the order. Slow clients drop messages.
func (f *OrderFeed) OrderConfirmed(ctx context.Context, order *domain.Order) {
	payload, err := json.Marshal(application.ToOrderView(order))
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_id", order.ID).Msg("failed to encode order for feed")
		return
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, c := range f.clients {
		if c.customerID != "" && c.customerID != order.Snapshot.CustomerID {
			continue
		}
		select {
		case c.send <- payload:
		default:
			logger.Ctx(ctx).Warn().Str("client", c.id).Msg("feed client too slow, message dropped")
		}
	}
}

// ServeHTTP upgrades the request and streams confirmed orders.
func (f *OrderFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &feedClient{
		id:         uuid.NewString(),
		customerID: r.URL.Query().Get("customerId"),
		conn:       conn,
		send:       make(chan []byte, 256),
	}
	f.register(c)
	logger.L().Info().Str("client", c.id).Str("customer_id", c.customerID).Msg("feed client connected")

	go f.writePump(c)
	go f.readPump(c)
}

func (f *OrderFeed) writePump(c *feedClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only services pongs and detects disconnects.
func (f *OrderFeed) readPump(c *feedClient) {
	defer func() {
		f.unregister(c)
		c.conn.Close()
		logger.L().Info().Str("client", c.id).Msg("feed client disconnected")
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
