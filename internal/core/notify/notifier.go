// Package notify carries best-effort "something changed" signals between the
// host and companion processes. Signals have no payload and may be dropped;
// the sync marker poll is the backstop.
package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/penwyp/go-scholar-sync/internal/util"
)

// TopicEntities announces that entity values or projections were written.
const TopicEntities = "scholars.changed"

// Handler is invoked once per observed signal. The calling goroutine is
// unspecified; handlers must not assume any particular execution context.
type Handler func()

// Notifier is the publish/subscribe contract. Publish never blocks on
// subscribers and gives no delivery guarantee.
type Notifier interface {
	Publish(topic string)
	Subscribe(topic string, h Handler) (cancel func())
}

// Transport moves signals between processes.
type Transport interface {
	// Signal announces topic to every other listener.
	Signal(topic string) error
	// Listen calls deliver for each signal from another process until ctx is done.
	Listen(ctx context.Context, deliver func(topic string)) error
}

// Hub is a Notifier over a Transport. Remote signals are fanned out to local
// subscribers through an in-process pub/sub.
type Hub struct {
	transport Transport
	pubsub    *gochannel.GoChannel
	log       util.LoggerInterface

	mu     sync.Mutex
	closed bool
}

var _ Notifier = (*Hub)(nil)

func NewHub(transport Transport, log util.LoggerInterface) *Hub {
	log = util.Component(log, "notify")
	return &Hub{
		transport: transport,
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 16,
		}, newWatermillLogger(log)),
		log: log,
	}
}

// Run listens on the transport until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	if h.transport == nil {
		<-ctx.Done()
		return nil
	}
	return h.transport.Listen(ctx, h.Deliver)
}

// Publish signals other processes. Failures are logged, never returned.
func (h *Hub) Publish(topic string) {
	if h.transport == nil {
		return
	}
	if err := h.transport.Signal(topic); err != nil {
		h.log.Warn("signal dropped",
			util.Field{Key: "topic", Value: topic},
			util.Field{Key: "error", Value: err})
	}
}

// Deliver invokes local subscribers of topic as if a remote signal arrived.
func (h *Hub) Deliver(topic string) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return
	}

	msg := message.NewMessage(uuid.NewString(), nil)
	if err := h.pubsub.Publish(topic, msg); err != nil {
		h.log.Debug("local delivery failed",
			util.Field{Key: "topic", Value: topic},
			util.Field{Key: "error", Value: err})
	}
}

func (h *Hub) Subscribe(topic string, handler Handler) (cancel func()) {
	ctx, stop := context.WithCancel(context.Background())
	messages, err := h.pubsub.Subscribe(ctx, topic)
	if err != nil {
		stop()
		h.log.Warn("subscribe failed",
			util.Field{Key: "topic", Value: topic},
			util.Field{Key: "error", Value: err})
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range messages {
			handler()
			msg.Ack()
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			<-done
		})
	}
}

func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	if err := h.pubsub.Close(); err != nil {
		return fmt.Errorf("close pubsub: %w", err)
	}
	return nil
}

// Guard wraps h so that deliveries after the owner is torn down are dropped.
func Guard(alive func() bool, h Handler) Handler {
	return func() {
		if !alive() {
			return
		}
		h()
	}
}

// watermillLogger adapts the structured logger to watermill.LoggerAdapter.
type watermillLogger struct {
	log util.LoggerInterface
}

func newWatermillLogger(log util.LoggerInterface) watermill.LoggerAdapter {
	return &watermillLogger{log: log}
}

func toFields(fields watermill.LogFields) []util.Field {
	out := make([]util.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, util.Field{Key: k, Value: v})
	}
	return out
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.log.Error(msg, append(toFields(fields), util.Field{Key: "error", Value: err})...)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	// Watermill's info level is lifecycle chatter.
	l.log.Debug(msg, toFields(fields)...)
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.log.Debug(msg, toFields(fields)...)
}

func (l *watermillLogger) Trace(string, watermill.LogFields) {}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillLogger{log: l.log.With(toFields(fields)...)}
}
