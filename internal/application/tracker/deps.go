package tracker

import (
	"errors"
	"time"

	"github.com/penwyp/go-scholar-sync/internal/core/constants"
	"github.com/penwyp/go-scholar-sync/internal/core/growth"
	"github.com/penwyp/go-scholar-sync/internal/core/history"
	"github.com/penwyp/go-scholar-sync/internal/core/notify"
	"github.com/penwyp/go-scholar-sync/internal/core/refresh"
	"github.com/penwyp/go-scholar-sync/internal/data/store"
	"github.com/penwyp/go-scholar-sync/internal/util"
)

var (
	ErrUnknownEntity = errors.New("unknown entity")
	ErrInvalidEntity = errors.New("entity id must not be empty")
	ErrInvalidValue  = errors.New("metric value must not be negative")
	ErrInvalidIndex  = errors.New("index out of range")
)

// Deps is everything a facade needs. Nothing is reached through globals.
type Deps struct {
	Shared       store.Store
	Clock        util.Clock
	Notifier     notify.Notifier
	Log          util.LoggerInterface
	Topic        string
	StaleTimeout time.Duration
	Durable      bool
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = realClock{}
	}
	if d.Topic == "" {
		d.Topic = notify.TopicEntities
	}
	if d.StaleTimeout <= 0 {
		d.StaleTimeout = constants.StaleRefreshTimeout
	}
	d.Log = util.OrNop(d.Log)
	return d
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// components are the core services both facades are built from.
type components struct {
	history *history.Log
	refresh *refresh.Coordinator
	growth  *growth.Calculator
}

func newComponents(d Deps) components {
	h := history.NewLog(d.Shared, d.Clock, d.Log)
	return components{
		history: h,
		refresh: refresh.NewCoordinator(d.Shared, d.Clock, d.StaleTimeout, d.Log),
		growth:  growth.NewCalculator(h, d.Clock),
	}
}

func validateCommit(entityID string, value int) error {
	if entityID == "" {
		return ErrInvalidEntity
	}
	if value < 0 {
		return ErrInvalidValue
	}
	return nil
}
