package notify

import (
	"context"
	"sync"
	"time"

	"github.com/penwyp/go-scholar-sync/internal/core/constants"
	"github.com/penwyp/go-scholar-sync/internal/core/model"
	"github.com/penwyp/go-scholar-sync/internal/data/store"
	"github.com/penwyp/go-scholar-sync/internal/util"
)

// Poller compares the global sync marker with the last observed one and calls
// onChange when it moved. It is the fallback for dropped signals.
type Poller struct {
	store    store.Store
	interval time.Duration
	onChange func()
	log      util.LoggerInterface

	mu     sync.Mutex // Serializes comparisons
	last   model.SyncMarker
	primed bool
}

// NewPoller creates a poller. A non-positive interval uses the default.
func NewPoller(s store.Store, interval time.Duration, onChange func(), log util.LoggerInterface) *Poller {
	if interval <= 0 {
		interval = constants.DefaultPollInterval
	}
	return &Poller{
		store:    s,
		interval: interval,
		onChange: onChange,
		log:      util.Component(log, "poller"),
	}
}

// Interval returns the tick period.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Prime records the current marker as seen without firing.
func (p *Poller) Prime() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = ReadSyncMarker(p.store, p.log)
	p.primed = true
}

// CheckNow compares immediately and reports whether a change was observed.
// The first comparison of an unprimed poller only records the baseline.
func (p *Poller) CheckNow() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := ReadSyncMarker(p.store, p.log)
	if !p.primed {
		p.last = current
		p.primed = true
		return false
	}
	if SameMarker(current, p.last) {
		return false
	}

	p.log.Debug("sync marker moved",
		util.Field{Key: "from", Value: p.last.Version},
		util.Field{Key: "to", Value: current.Version})
	p.last = current
	if p.onChange != nil {
		p.onChange()
	}
	return true
}

// Resync is the foreground trigger: an immediate comparison regardless of
// where the tick schedule is.
func (p *Poller) Resync() bool {
	p.log.Debug("foreground resync")
	return p.CheckNow()
}

// Ticket controls one running poll schedule.
type Ticket struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Cancel stops future ticks and waits for an in-flight comparison to finish.
func (t *Ticket) Cancel() {
	t.once.Do(t.cancel)
	<-t.done
}

// Done is closed once the schedule has stopped.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Start runs the schedule until ctx is done or the ticket is cancelled.
func (p *Poller) Start(ctx context.Context) *Ticket {
	ctx, cancel := context.WithCancel(ctx)
	ticket := &Ticket{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(ticket.done)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.CheckNow()
			}
		}
	}()

	return ticket
}
