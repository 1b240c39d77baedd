package tracker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/penwyp/go-scholar-sync/internal/core/migration"
	"github.com/penwyp/go-scholar-sync/internal/core/notify"
	"github.com/penwyp/go-scholar-sync/internal/util"
	"golang.org/x/sync/errgroup"
)

// Runner is the long-lived host loop: push signals, the poll fallback and
// foreground transitions all lead to one reconciliation pass.
type Runner struct {
	host      *Host
	hub       *notify.Hub
	migration *migration.Service
	poller    *notify.Poller
	topic     string
	log       util.LoggerInterface

	foreground <-chan struct{}
	onUpdate   func(changedIDs []string)

	alive  atomic.Bool
	passes atomic.Int64
}

// RunnerOptions configures NewRunner.
type RunnerOptions struct {
	PollInterval time.Duration
	// Foreground receives one value per background-to-active transition.
	Foreground <-chan struct{}
	// OnUpdate is called after a reconciliation pass changed entities.
	OnUpdate func(changedIDs []string)
	// Migration runs once before the first reconciliation. Optional.
	Migration *migration.Service
}

func NewRunner(host *Host, hub *notify.Hub, opts RunnerOptions) *Runner {
	r := &Runner{
		host:       host,
		hub:        hub,
		migration:  opts.Migration,
		topic:      host.deps.Topic,
		log:        util.Component(host.deps.Log, "runner"),
		foreground: opts.Foreground,
		onUpdate:   opts.OnUpdate,
	}
	r.poller = notify.NewPoller(host.deps.Shared, opts.PollInterval, func() {
		hub.Deliver(r.topic)
	}, host.deps.Log)
	return r
}

// Poller exposes the poll fallback.
func (r *Runner) Poller() *notify.Poller {
	return r.poller
}

// Passes counts reconciliation passes since start.
func (r *Runner) Passes() int64 {
	return r.passes.Load()
}

// Run blocks until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("Starting host loop...", util.Field{Key: "poll_interval", Value: r.poller.Interval().String()})

	if r.migration != nil {
		if outcome, err := r.migration.RunOnce(); err != nil {
			r.log.Error("migration failed", util.Field{Key: "error", Value: err})
		} else {
			r.log.Debug("migration checked", util.Field{Key: "outcome", Value: string(outcome)})
		}
	}

	// Initial pass catches anything written while no host was running.
	r.poller.Prime()
	r.reconcile()

	if _, err := r.host.History().PruneExpired(); err != nil {
		r.log.Warn("history prune failed", util.Field{Key: "error", Value: err})
	}
	// Growth windows are relative to now; projections written before a
	// long pause still carry the old ones.
	if err := r.host.RegenerateProjections(); err != nil {
		r.log.Warn("regenerating projections failed", util.Field{Key: "error", Value: err})
	}

	r.alive.Store(true)
	defer r.alive.Store(false)

	cancel := r.hub.Subscribe(r.topic, notify.Guard(r.alive.Load, r.reconcile))
	defer cancel()

	ticket := r.poller.Start(ctx)
	defer ticket.Cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := r.hub.Run(gctx); err != nil {
			r.log.Warn("push listener stopped, relying on poll", util.Field{Key: "error", Value: err})
		}
		<-gctx.Done()
		return nil
	})
	g.Go(func() error {
		foreground := r.foreground
		for {
			select {
			case <-gctx.Done():
				return nil
			case _, ok := <-foreground:
				if !ok {
					foreground = nil
					continue
				}
				r.poller.Resync()
			}
		}
	})

	err := g.Wait()
	r.log.Info("Shutting down host loop...")
	return err
}

// reconcile reloads the model, which other host-role commands may have
// rewritten, then folds in peer projections.
func (r *Runner) reconcile() {
	r.passes.Add(1)
	r.host.Load()
	result, err := r.host.Reconcile()
	if err != nil {
		r.log.Error("reconcile failed", util.Field{Key: "error", Value: err})
		return
	}
	if result.Changed && r.onUpdate != nil {
		r.onUpdate(result.ChangedIDs)
	}
}
