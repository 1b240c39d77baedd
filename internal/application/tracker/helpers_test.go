package tracker

import (
	"sync"
	"testing"
	"time"

	"github.com/penwyp/go-scholar-sync/internal/core/notify"
	"github.com/penwyp/go-scholar-sync/internal/data/store"
	"github.com/penwyp/go-scholar-sync/internal/util"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

type recordingNotifier struct {
	mu        sync.Mutex
	published []string
}

func (n *recordingNotifier) Publish(topic string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.published = append(n.published, topic)
}

func (n *recordingNotifier) Subscribe(string, notify.Handler) func() {
	return func() {}
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.published)
}

type fixture struct {
	shared   *store.MemoryStore
	clock    *util.ManualClock
	notifier *recordingNotifier
}

func newFixture() *fixture {
	return &fixture{
		shared:   store.NewMemoryStore(),
		clock:    util.NewManualClock(t0),
		notifier: &recordingNotifier{},
	}
}

func (f *fixture) deps() Deps {
	return Deps{
		Shared:   f.shared,
		Clock:    f.clock,
		Notifier: f.notifier,
	}
}

func (f *fixture) host() *Host {
	return NewHost(f.deps())
}

func (f *fixture) companion() *Companion {
	return NewCompanion(f.deps(), store.NewMemoryStore())
}

func ids(t *testing.T, h *Host) []string {
	t.Helper()
	var out []string
	for _, e := range h.ListEntities() {
		out = append(out, e.ID)
	}
	return out
}
