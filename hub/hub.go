package hub

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/magland/hchat/protocol"
	"go.uber.org/atomic"
)

var (
	ErrClosed               = errors.New("hub closed")
	ErrMissingSecret        = errors.New("hub secret key is required")
	ErrUnauthorized         = errors.New("invalid read credential")
	ErrChannelNotGranted    = errors.New("channel not covered by credential")
	ErrSubscribeKeyMismatch = errors.New("unknown subscribe key")
)

// DefaultBuffer is the number of undelivered events a subscription holds
// before further events for it are dropped.
const DefaultBuffer = 64

// Event is one message delivered on one channel.
type Event struct {
	Channel string                  `json:"channel"`
	Message *protocol.PubsubMessage `json:"message"`
}

// Config configures a Hub.
type Config struct {
	// SubscribeKey is handed to subscribers and must accompany every
	// attach request.
	SubscribeKey string

	// SecretKey signs read credentials.
	SecretKey []byte

	// Buffer is the per-subscription event buffer; zero means
	// DefaultBuffer.
	Buffer int

	Clock clock.Clock
	Log   *slog.Logger
}

// Hub is an in-process distribution substrate: it fans published messages
// out to attached subscribers and issues the read credentials that let them
// attach. It implements protocol.Distributor and protocol.AccessGranter.
type Hub struct {
	subscribeKey string
	secret       []byte
	buffer       int
	clock        clock.Clock
	log          *slog.Logger

	mu       sync.RWMutex
	channels map[string]map[*Subscription]struct{}
	closed   bool

	subscribers atomic.Int64
	delivered   atomic.Uint64
	dropped     atomic.Uint64
}

// New creates a Hub.
func New(cfg Config) (*Hub, error) {
	if len(cfg.SecretKey) == 0 {
		return nil, ErrMissingSecret
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBuffer
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Hub{
		subscribeKey: cfg.SubscribeKey,
		secret:       cfg.SecretKey,
		buffer:       cfg.Buffer,
		clock:        cfg.Clock,
		log:          cfg.Log,
		channels:     make(map[string]map[*Subscription]struct{}),
	}, nil
}

// Subscription receives the events of a fixed set of channels on C until it
// is closed. C is closed when the subscription or the hub closes.
type Subscription struct {
	ID       string
	Channels []string
	C        <-chan *Event

	ch   chan *Event
	hub  *Hub
	once sync.Once
}

// Close detaches the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.detach(s)
	})
}

// Publish implements protocol.Distributor. Delivery never blocks: a
// subscriber whose buffer is full misses the event.
func (h *Hub) Publish(ctx context.Context, channel string, msg *protocol.PubsubMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrClosed
	}

	event := &Event{Channel: channel, Message: msg}
	for sub := range h.channels[channel] {
		select {
		case sub.ch <- event:
			h.delivered.Inc()
		default:
			h.dropped.Inc()
			h.log.Debug("dropping event for slow subscriber", "subscription", sub.ID, "channel", channel)
		}
	}
	return nil
}

// Attach subscribes to channels. Duplicate channel names are ignored.
func (h *Hub) Attach(channels []string) (*Subscription, error) {
	ch := make(chan *Event, h.buffer)
	sub := &Subscription{
		ID:       uuid.NewString(),
		Channels: slices.Compact(slices.Sorted(slices.Values(channels))),
		C:        ch,
		ch:       ch,
		hub:      h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	for _, name := range sub.Channels {
		subs, ok := h.channels[name]
		if !ok {
			subs = make(map[*Subscription]struct{})
			h.channels[name] = subs
		}
		subs[sub] = struct{}{}
	}
	h.subscribers.Inc()
	return sub, nil
}

func (h *Hub) detach(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for _, name := range sub.Channels {
		delete(h.channels[name], sub)
		if len(h.channels[name]) == 0 {
			delete(h.channels, name)
		}
	}
	close(sub.ch)
	h.subscribers.Dec()
}

// Close detaches every subscription. Publish and Attach fail afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true

	seen := make(map[*Subscription]struct{})
	for _, subs := range h.channels {
		for sub := range subs {
			if _, ok := seen[sub]; !ok {
				seen[sub] = struct{}{}
				close(sub.ch)
			}
		}
	}
	h.channels = nil
	h.subscribers.Store(0)
}

// SubscribeKey returns the key subscribers attach with.
func (h *Hub) SubscribeKey() string {
	return h.subscribeKey
}

// Stats reports current subscribers and cumulative delivered and dropped
// events.
func (h *Hub) Stats() (subscribers int64, delivered, dropped uint64) {
	return h.subscribers.Load(), h.delivered.Load(), h.dropped.Load()
}
