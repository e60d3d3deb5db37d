package realtime

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"go.uber.org/zap"

	"ecoshare/internal/config"
	"ecoshare/internal/metrics"
)

var ErrHubClosed = errors.New("realtime hub is shut down")

type publication struct {
	topic string
	row   Row
}

// subscription serialises its handler against removal: once closed is set
// under mu the handler never runs again.
type subscription struct {
	topic   string
	handler func(Row)
	mu      sync.Mutex
	closed  bool
}

func (s *subscription) deliver(row Row) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.handler(row)
	return true
}

// Hub routes published rows to the handlers subscribed on a topic. Each topic
// is pinned to one worker so rows on a topic are delivered in publish order.
type Hub struct {
	topics  map[string]map[*subscription]struct{}
	queues  []chan publication
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.RWMutex
	wg      sync.WaitGroup
	closed  bool
	log     *zap.Logger
	metrics *metrics.ChatMetrics
}

func NewHub(cfg config.RealtimeConfig, log *zap.Logger, m *metrics.ChatMetrics) *Hub {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	buffer := cfg.ChannelBufferSize
	if buffer <= 0 {
		buffer = 1000
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		topics:  make(map[string]map[*subscription]struct{}),
		queues:  make([]chan publication, workers),
		ctx:     ctx,
		cancel:  cancel,
		log:     log,
		metrics: m,
	}

	for i := range h.queues {
		h.queues[i] = make(chan publication, buffer)
		h.wg.Add(1)
		go h.processEvents(h.queues[i])
	}

	return h
}

// Subscribe registers handler for rows published on topic. The returned
// Unsubscribe waits for a delivery already under way, so it must not be
// called from inside handler.
func (h *Hub) Subscribe(topic string, handler func(Row)) (Unsubscribe, error) {
	if topic == "" {
		return nil, errors.New("topic cannot be empty")
	}
	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}

	sub := &subscription{topic: topic, handler: handler}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*subscription]struct{})
	}
	h.topics[topic][sub] = struct{}{}
	h.metrics.Subscribers.Inc()
	h.log.Debug("topic_subscribed", zap.String("topic", topic))

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(sub) })
	}, nil
}

func (h *Hub) remove(sub *subscription) {
	h.mu.Lock()
	subs, ok := h.topics[sub.topic]
	if ok {
		if _, ok = subs[sub]; ok {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(h.topics, sub.topic)
			}
			h.metrics.Subscribers.Dec()
			h.log.Debug("topic_unsubscribed", zap.String("topic", sub.topic))
		}
	}
	h.mu.Unlock()

	sub.mu.Lock()
	sub.closed = true
	sub.mu.Unlock()
}

// Publish queues row for delivery on topic without blocking. Rows are dropped
// when the worker queue is full.
func (h *Hub) Publish(topic string, row Row) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}

	select {
	case h.queues[h.shard(topic)] <- publication{topic: topic, row: row}:
		h.metrics.RealtimePublished.Inc()
	default:
		h.metrics.RealtimeDropped.Inc()
		h.log.Warn("realtime_queue_full", zap.String("topic", topic), zap.String("message_id", row.ID))
	}
}

// SubscriberCount reports how many handlers are registered on topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) shard(topic string) int {
	hasher := fnv.New32a()
	hasher.Write([]byte(topic))
	return int(hasher.Sum32() % uint32(len(h.queues)))
}

func (h *Hub) processEvents(queue chan publication) {
	defer h.wg.Done()

	for {
		select {
		case pub, ok := <-queue:
			if !ok {
				return
			}
			h.deliver(pub)
		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) deliver(pub publication) {
	h.mu.RLock()
	subs := make([]*subscription, 0, len(h.topics[pub.topic]))
	for sub := range h.topics[pub.topic] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		if sub.deliver(pub.row) {
			h.metrics.RealtimeDelivered.Inc()
		}
	}
}

// Shutdown stops the workers. Rows still queued are discarded.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.cancel()
	h.mu.Unlock()

	h.wg.Wait()
	h.log.Info("realtime_hub_shutdown")
}
