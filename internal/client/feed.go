package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ecoshare/internal/realtime"
)

// TokenSource yields the bearer token used when dialing.
type TokenSource interface {
	Token() string
}

// Feed subscribes to chat-svc's websocket endpoint, one connection per
// subscription. It satisfies coordinator.Feed.
type Feed struct {
	wsURL  string
	tokens TokenSource
	dialer *websocket.Dialer
	log    *zap.Logger
}

func NewFeed(baseURL string, tokens TokenSource, log *zap.Logger) (*Feed, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/ws"

	return &Feed{
		wsURL:  u.String(),
		tokens: tokens,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:    log,
	}, nil
}

// Subscribe dials the feed for topic and calls handler for every insert
// frame until the returned Unsubscribe is called or the server goes away.
func (f *Feed) Subscribe(topic string, handler func(realtime.Row)) (realtime.Unsubscribe, error) {
	header := http.Header{}
	if token := f.tokens.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := f.dialer.Dial(f.wsURL+"?topic="+url.QueryEscape(topic), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial feed: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial feed: %w", err)
	}

	s := &feedSubscription{conn: conn, done: make(chan struct{})}
	go f.readLoop(s, topic, handler)

	f.log.Debug("feed_subscribed", zap.String("topic", topic))
	return s.close, nil
}

type feedSubscription struct {
	conn    *websocket.Conn
	done    chan struct{}
	once    sync.Once
	closing bool
	mu      sync.Mutex
}

func (s *feedSubscription) close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closing = true
		s.mu.Unlock()

		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.conn.Close()
		<-s.done
	})
}

func (s *feedSubscription) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (f *Feed) readLoop(s *feedSubscription, topic string, handler func(realtime.Row)) {
	defer close(s.done)

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if !s.isClosing() {
				f.log.Warn("feed_disconnected", zap.String("topic", topic), zap.Error(err))
			}
			return
		}

		var event realtime.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			f.log.Warn("feed_bad_frame", zap.String("topic", topic), zap.Error(err))
			continue
		}
		if event.Type != realtime.EventInsert || event.Table != realtime.MessagesTable {
			continue
		}
		handler(event.Record)
	}
}
