// Package monitor drives the lifecycle of the native clipboard service.
//
// The controller moves through Idle, Starting, Active, Stopping and Failed.
// Every Start and Stop bumps a generation counter; a start that resumes
// after its generation was superseded discards its result instead of
// moving the controller back to Active.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/yiblet/cliphist/internal/apperr"
	"github.com/yiblet/cliphist/internal/clipboard"
	"github.com/yiblet/cliphist/internal/content"
)

// ErrSuperseded is returned by Start when a Stop or a newer Start
// invalidated it before it completed.
var ErrSuperseded = errors.New("monitor: start superseded")

// State is the lifecycle state of a Controller.
type State int

const (
	Idle State = iota
	Starting
	Active
	Stopping
	Failed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Active:
		return "active"
	case Stopping:
		return "stopping"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Handlers receive what the native service produces while monitoring.
// Nil handlers are skipped.
type Handlers struct {
	OnSnapshot func([]content.Record)
	OnChange   clipboard.ChangeHandler
	OnProgress clipboard.ProgressHandler
}

// Option configures a Controller.
type Option func(*Controller)

// WithReporter sets where start failures are reported.
func WithReporter(r apperr.Reporter) Option {
	return func(c *Controller) {
		c.reporter = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.log = l
	}
}

// WithNow sets the time source used to stamp reported errors.
func WithNow(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithOnStop registers a hook run by Stop after the subscriptions are gone
// and before the native service is stopped.
func WithOnStop(fn func()) Option {
	return func(c *Controller) {
		c.onStop = fn
	}
}

// Controller is the monitoring lifecycle state machine.
//
// Handlers run while holding a read lock that Stop acquires exclusively
// once it has unsubscribed, so no handler is running or will run after Stop
// returns. Handlers must therefore not call Stop themselves.
type Controller struct {
	svc      clipboard.Service
	handlers Handlers
	reporter apperr.Reporter
	log      *slog.Logger
	now      func() time.Time
	onStop   func()

	mu      sync.Mutex
	state   State
	gen     uint64
	unsubs  []clipboard.Unsubscribe
	stopped chan struct{}

	// stopMu serializes Stop calls.
	stopMu sync.Mutex

	dispatch sync.RWMutex
}

// New creates an idle controller for svc.
func New(svc clipboard.Service, h Handlers, opts ...Option) *Controller {
	c := &Controller{
		svc:      svc,
		handlers: h,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsMonitoring reports whether the controller is Active.
func (c *Controller) IsMonitoring() bool {
	return c.State() == Active
}

// Start reads the native history snapshot, subscribes to change and
// progress events and starts the native service, in that order. It is a
// no-op while Starting or Active and waits for an in-flight Stop to
// finish before starting again. On failure the subscriptions made so far
// are removed, the controller moves to Failed and the error is reported
// with a retry bound to Start.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if err := c.awaitStop(ctx); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.state == Active || c.state == Starting {
		c.mu.Unlock()
		return nil
	}
	c.gen++
	gen := c.gen
	c.transition(Starting)
	c.mu.Unlock()

	snapshot, err := c.svc.ReadHistory(ctx)
	if err != nil {
		return c.fail(gen, "read_history", err)
	}
	if !c.current(gen) {
		return c.superseded(ctx, gen)
	}
	if c.handlers.OnSnapshot != nil {
		c.handlers.OnSnapshot(snapshot)
	}

	unsub, err := c.svc.SubscribeChange(c.changeHandler(gen))
	if err != nil {
		return c.fail(gen, "subscribe_change", err)
	}
	if !c.track(gen, unsub) {
		return c.superseded(ctx, gen)
	}

	unsub, err = c.svc.SubscribeProgress(c.progressHandler(gen))
	if err != nil {
		return c.fail(gen, "subscribe_progress", err)
	}
	if !c.track(gen, unsub) {
		return c.superseded(ctx, gen)
	}

	if err := c.svc.Start(ctx); err != nil {
		return c.fail(gen, "start", err)
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return c.superseded(ctx, gen)
	}
	c.transition(Active)
	c.mu.Unlock()
	return nil
}

// Stop removes the subscriptions, waits for running handlers, runs the
// stop hook and stops the native service. It always leaves the controller
// Idle, may be called at any time and never fails; native stop errors are
// logged.
func (c *Controller) Stop(ctx context.Context) {
	c.stopMu.Lock()
	defer c.stopMu.Unlock()

	stopped := make(chan struct{})
	defer close(stopped)

	c.mu.Lock()
	c.gen++
	gen := c.gen
	prev := c.state
	unsubs := c.unsubs
	c.unsubs = nil
	c.stopped = stopped
	c.transition(Stopping)
	c.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	// Wait for in-flight handlers.
	c.dispatch.Lock()
	c.dispatch.Unlock()

	if c.onStop != nil {
		c.onStop()
	}

	if prev == Active || prev == Starting {
		if err := c.svc.Stop(ctx); err != nil {
			c.log.Warn("failed to stop native clipboard service", "error", err)
		}
	}

	c.mu.Lock()
	if c.gen == gen {
		c.transition(Idle)
	}
	c.mu.Unlock()
}

// awaitStop blocks until no Stop is in flight. Callers hold c.mu; it is
// released while waiting and held again on return.
func (c *Controller) awaitStop(ctx context.Context) error {
	for c.state == Stopping {
		stopped := c.stopped
		c.mu.Unlock()
		select {
		case <-stopped:
		case <-ctx.Done():
			c.mu.Lock()
			return ctx.Err()
		}
		c.mu.Lock()
	}
	return nil
}

// current reports whether gen is still the live generation.
func (c *Controller) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

// track records unsub for generation gen. When gen is stale the
// subscription is removed immediately and track reports false.
func (c *Controller) track(gen uint64, unsub clipboard.Unsubscribe) bool {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		unsub()
		return false
	}
	c.unsubs = append(c.unsubs, unsub)
	c.mu.Unlock()
	return true
}

// superseded discards the result of a start whose generation is stale. If
// nothing else took over, the native service is stopped again since its
// start may have completed after Stop ran.
func (c *Controller) superseded(ctx context.Context, gen uint64) error {
	c.mu.Lock()
	_ = c.awaitStop(ctx)
	idle := c.state == Idle
	c.mu.Unlock()

	c.log.Info("discarding superseded start", "generation", gen)
	if idle {
		if err := c.svc.Stop(ctx); err != nil {
			c.log.Warn("failed to stop native clipboard service", "error", err)
		}
	}
	return ErrSuperseded
}

// fail tears down the subscriptions of gen and moves to Failed.
func (c *Controller) fail(gen uint64, step string, err error) error {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		c.log.Info("start failed after being superseded", "step", step, "error", err)
		return ErrSuperseded
	}
	unsubs := c.unsubs
	c.unsubs = nil
	c.transition(Failed)
	c.mu.Unlock()

	for _, u := range unsubs {
		u()
	}

	c.log.Error("failed to start monitoring", "step", step, "error", err)
	d := apperr.New(apperr.Classify(err, apperr.CodeMonitoringStartFailed), apperr.SeverityError, c.now(), err).
		WithContext("step", step).
		WithRetry(c.Start)
	if c.reporter != nil {
		c.reporter.Report(d)
	}
	return d
}

// live reports whether events of generation gen may still be delivered.
func (c *Controller) live(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen && (c.state == Starting || c.state == Active)
}

func (c *Controller) changeHandler(gen uint64) clipboard.ChangeHandler {
	return func(r content.Record) {
		c.dispatch.RLock()
		defer c.dispatch.RUnlock()
		if c.handlers.OnChange == nil || !c.live(gen) {
			return
		}
		c.handlers.OnChange(r)
	}
}

func (c *Controller) progressHandler(gen uint64) clipboard.ProgressHandler {
	return func(p content.Progress) {
		c.dispatch.RLock()
		defer c.dispatch.RUnlock()
		if c.handlers.OnProgress == nil || !c.live(gen) {
			return
		}
		c.handlers.OnProgress(p)
	}
}

// transition sets the state. Callers hold c.mu.
func (c *Controller) transition(to State) {
	if c.state == to {
		return
	}
	c.log.Debug("monitor state changed", "from", c.state, "to", to)
	c.state = to
}
