package realtime

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ecoshare/internal/common"
	"ecoshare/internal/config"
	"ecoshare/internal/metrics"
)

// Authenticator turns a bearer token into the session identity.
type Authenticator interface {
	Authenticate(token string) (common.AuthenticatedUser, error)
}

// WSHandler upgrades authenticated requests and streams the user's topic.
type WSHandler struct {
	hub          *Hub
	auth         Authenticator
	upgrader     websocket.Upgrader
	sendBuffer   int
	pingInterval time.Duration
	pongTimeout  time.Duration
	log          *zap.Logger
	metrics      *metrics.ChatMetrics
}

func NewWSHandler(hub *Hub, auth Authenticator, cfg config.RealtimeConfig, log *zap.Logger, m *metrics.ChatMetrics) *WSHandler {
	h := &WSHandler{
		hub:          hub,
		auth:         auth,
		sendBuffer:   cfg.SendBufferSize,
		pingInterval: time.Duration(cfg.PingInterval) * time.Second,
		pongTimeout:  time.Duration(cfg.PongTimeout) * time.Second,
		log:          log,
		metrics:      m,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	if h.sendBuffer <= 0 {
		h.sendBuffer = 64
	}
	if h.pingInterval <= 0 {
		h.pingInterval = 10 * time.Second
	}
	if h.pongTimeout <= h.pingInterval {
		h.pongTimeout = h.pingInterval + 5*time.Second
	}
	return h
}

func bearerToken(r *http.Request) string {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return r.URL.Query().Get("token")
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Authenticate(bearerToken(r))
	if err != nil {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	topic := r.URL.Query().Get("topic")
	if topic == "" {
		topic = Topic(user.ID)
	}
	if owner, ok := TopicOwner(topic); !ok || owner != user.ID {
		http.Error(w, "topic does not belong to user", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket_upgrade_failed", zap.Error(err))
		return
	}

	c := &wsClient{
		conn:  conn,
		send:  make(chan Event, h.sendBuffer),
		done:  make(chan struct{}),
		topic: topic,
	}

	unsubscribe, err := h.hub.Subscribe(topic, func(row Row) {
		select {
		case c.send <- NewInsertEvent(row):
		case <-c.done:
		default:
			h.metrics.RealtimeDropped.Inc()
			h.log.Warn("websocket_client_slow", zap.String("topic", topic), zap.String("message_id", row.ID))
		}
	})
	if err != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
		conn.Close()
		return
	}

	h.log.Info("websocket_connected", zap.String("user_id", user.ID), zap.String("topic", topic))

	go h.writePump(c)
	h.readPump(c)

	unsubscribe()
	c.close()
	h.log.Info("websocket_disconnected", zap.String("user_id", user.ID), zap.String("topic", topic))
}

type wsClient struct {
	conn      *websocket.Conn
	send      chan Event
	done      chan struct{}
	topic     string
	closeOnce sync.Once
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump only watches for close frames and pongs; clients never send data.
func (h *WSHandler) readPump(c *wsClient) {
	c.conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WSHandler) writePump(c *wsClient) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case event := <-c.send:
			payload, err := json.Marshal(event)
			if err != nil {
				h.log.Error("websocket_encode_failed", zap.Error(err))
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(h.pingInterval))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.pingInterval))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
