package notify

import (
	"context"
	"sync"
)

// MemoryBus connects transports inside one process, standing in for the
// cross-process channel in tests.
type MemoryBus struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]memoryListener
}

type memoryListener struct {
	origin  *MemoryTransport
	deliver func(topic string)
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{listeners: make(map[int]memoryListener)}
}

// Transport returns a new endpoint on the bus.
func (b *MemoryBus) Transport() *MemoryTransport {
	return &MemoryTransport{bus: b}
}

// Listeners reports how many endpoints are currently listening.
func (b *MemoryBus) Listeners() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// MemoryTransport is one endpoint of a MemoryBus. A signal reaches every other
// listening endpoint, never the sender.
type MemoryTransport struct {
	bus *MemoryBus

	mu      sync.Mutex
	signals int
	drop    bool
}

var _ Transport = (*MemoryTransport)(nil)

func (t *MemoryTransport) Signal(topic string) error {
	t.mu.Lock()
	t.signals++
	drop := t.drop
	t.mu.Unlock()
	if drop {
		return nil
	}

	t.bus.mu.Lock()
	targets := make([]func(string), 0, len(t.bus.listeners))
	for _, l := range t.bus.listeners {
		if l.origin != t {
			targets = append(targets, l.deliver)
		}
	}
	t.bus.mu.Unlock()

	for _, deliver := range targets {
		deliver(topic)
	}
	return nil
}

func (t *MemoryTransport) Listen(ctx context.Context, deliver func(topic string)) error {
	t.bus.mu.Lock()
	id := t.bus.nextID
	t.bus.nextID++
	t.bus.listeners[id] = memoryListener{origin: t, deliver: deliver}
	t.bus.mu.Unlock()

	<-ctx.Done()

	t.bus.mu.Lock()
	delete(t.bus.listeners, id)
	t.bus.mu.Unlock()
	return nil
}

// Signals counts Signal calls, including dropped ones.
func (t *MemoryTransport) Signals() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.signals
}

// SetDrop makes every later signal vanish, simulating a lost push.
func (t *MemoryTransport) SetDrop(drop bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.drop = drop
}
