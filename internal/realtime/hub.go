// Package realtime fans database change notifications out to in-process
// subscribers. Rows are announced by triggers through pg_notify on the
// table_changes channel.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/postreview/internal/metrics"
	"go.uber.org/zap"
)

const (
	Channel = "table_changes"

	subscriberBuffer = 16
	pingInterval     = 90 * time.Second
)

var ErrHubClosed = errors.New("realtime hub closed")

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
	// EventResync is broadcast to every subscriber after the database
	// connection was re-established and notifications may have been lost.
	EventResync EventType = "RESYNC"
)

type ChangeEvent struct {
	Table  string            `json:"table"`
	Type   EventType         `json:"type"`
	Record map[string]string `json:"record"`
}

// Filter restricts a subscription to rows whose column equals a value.
type Filter struct {
	Column string
	Value  string
}

func Eq(column, value string) *Filter {
	return &Filter{Column: column, Value: value}
}

func (f *Filter) Match(ev ChangeEvent) bool {
	if f == nil || ev.Type == EventResync {
		return true
	}
	return ev.Record[f.Column] == f.Value
}

type Subscription struct {
	id     uint64
	table  string
	filter *Filter
	events chan ChangeEvent
	hub    *Hub
	once   sync.Once
}

// Events is closed when the subscription or the hub is closed.
func (s *Subscription) Events() <-chan ChangeEvent {
	return s.events
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s.id)
	})
}

type Hub struct {
	logger *zap.Logger

	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger,
		subs:   make(map[uint64]*Subscription),
	}
}

func (h *Hub) Subscribe(table string, filter *Filter) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	h.nextID++
	sub := &Subscription{
		id:     h.nextID,
		table:  table,
		filter: filter,
		events: make(chan ChangeEvent, subscriberBuffer),
		hub:    h,
	}
	h.subs[sub.id] = sub
	return sub, nil
}

// Publish delivers ev to every matching subscriber without blocking. A
// subscriber whose buffer is full misses the event.
func (h *Hub) Publish(ev ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if ev.Type != EventResync && sub.table != ev.Table {
			continue
		}
		if !sub.filter.Match(ev) {
			continue
		}
		select {
		case sub.events <- ev:
		default:
			metrics.RealtimeDropped.Inc()
			h.logger.Warn("realtime subscriber full, dropping event",
				zap.String("table", ev.Table),
				zap.String("type", string(ev.Type)))
		}
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, sub := range h.subs {
		close(sub.events)
		delete(h.subs, id)
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subs[id]; ok {
		close(sub.events)
		delete(h.subs, id)
	}
}

// ListenPostgres starts forwarding notifications from the database until ctx
// is cancelled.
func (h *Hub) ListenPostgres(ctx context.Context, dsn string) error {
	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			h.logger.Warn("realtime listener", zap.Error(err))
		}
	})

	if err := listener.Listen(Channel); err != nil {
		listener.Close()
		return err
	}

	go h.run(ctx, listener)
	return nil
}

func (h *Hub) run(ctx context.Context, listener *pq.Listener) {
	defer listener.Close()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				h.logger.Info("realtime connection re-established, requesting resync")
				h.Publish(ChangeEvent{Type: EventResync})
				continue
			}
			h.Dispatch(n.Extra)
		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					h.logger.Warn("realtime ping", zap.Error(err))
				}
			}()
		}
	}
}

// Dispatch decodes a trigger payload and publishes it.
func (h *Hub) Dispatch(payload string) {
	var ev ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		h.logger.Warn("realtime payload", zap.String("payload", payload), zap.Error(err))
		return
	}
	metrics.RealtimeEvents.WithLabelValues(ev.Table, string(ev.Type)).Inc()
	h.Publish(ev)
}
