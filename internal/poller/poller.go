// Package poller drives periodic polling of sensor entities.
package poller

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/mcp23017-sensor/internal/logic"
	"github.com/sweeney/mcp23017-sensor/internal/sensor"
)

// Result is the outcome of one poll.
type Result struct {
	Entity sensor.Entity
	Time   time.Time
	// State is the entity's state after the poll. A failed poll leaves it unchanged.
	State logic.State
	Err   error
}

// Poller polls every entity on its own goroutine.
// Polls of one entity never overlap.
type Poller struct {
	interval time.Duration
	log      logrus.FieldLogger
	now      func() time.Time
}

// Option customizes a Poller.
type Option func(*Poller)

// WithLogger sets the logger used for poll failures.
func WithLogger(log logrus.FieldLogger) Option {
	return func(p *Poller) { p.log = log }
}

// WithClock sets the time source for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) { p.now = now }
}

// New creates a Poller with the given interval between polls of each entity.
func New(interval time.Duration, opts ...Option) *Poller {
	p := &Poller{
		interval: interval,
		log:      logrus.StandardLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls each entity immediately and then once per interval until ctx
// is cancelled. Results are sent to out. A failed poll is logged and
// reported; it never stops polling.
func (p *Poller) Run(ctx context.Context, entities []sensor.Entity, out chan<- Result) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, e := range entities {
		if !e.ShouldPoll() {
			p.log.WithField("sensor", e.UniqueID()).Debug("entity does not require polling")
			continue
		}
		e := e
		g.Go(func() error {
			p.loop(ctx, e, out)
			return nil
		})
	}
	return g.Wait()
}

func (p *Poller) loop(ctx context.Context, e sensor.Entity, out chan<- Result) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	if !p.pollOnce(ctx, e, out) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !p.pollOnce(ctx, e, out) {
				return
			}
		}
	}
}

// pollOnce returns false once ctx is done.
func (p *Poller) pollOnce(ctx context.Context, e sensor.Entity, out chan<- Result) bool {
	err := e.Poll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.log.WithFields(logrus.Fields{
			"sensor": e.UniqueID(),
			"name":   e.Name(),
		}).WithError(err).Warn("poll failed, keeping last state")
	}

	res := Result{
		Entity: e,
		Time:   p.now(),
		State:  StateOf(e),
		Err:    err,
	}
	select {
	case out <- res:
		return true
	case <-ctx.Done():
		return false
	}
}

// StateOf returns the entity's current state.
func StateOf(e sensor.Entity) logic.State {
	on, known := e.IsOn()
	if !known {
		return logic.StateUnknown
	}
	return logic.StateOf(on)
}
