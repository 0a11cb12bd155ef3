// Package engine wires the clipboard history together: the native service,
// the ingestion pipeline, the monitoring controller, the history store and
// persistence. An Engine is an explicit instance with injected
// dependencies; there is no package-level state.
package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yiblet/cliphist/internal/apperr"
	"github.com/yiblet/cliphist/internal/clipboard"
	"github.com/yiblet/cliphist/internal/clock"
	"github.com/yiblet/cliphist/internal/content"
	"github.com/yiblet/cliphist/internal/filter"
	"github.com/yiblet/cliphist/internal/history"
	"github.com/yiblet/cliphist/internal/ingest"
	"github.com/yiblet/cliphist/internal/monitor"
	"github.com/yiblet/cliphist/internal/persist"
)

// DefaultDebounce is the default change coalescing window.
const DefaultDebounce = ingest.DefaultWindow

// DefaultSaveTimeout bounds a single history save.
const DefaultSaveTimeout = 10 * time.Second

// ErrNothingToRetry is returned by Retry when the current error has no
// retry action.
var ErrNothingToRetry = errors.New("engine: no retryable error")

type options struct {
	capacity int
	window   time.Duration
	clock    clock.Clock
	log      *slog.Logger
	newID    func() string
	onRecord func(content.Record)
	saveTO   time.Duration
}

// Option configures an Engine.
type Option func(*options)

// WithCapacity sets the maximum number of history records.
func WithCapacity(n int) Option {
	return func(o *options) {
		o.capacity = n
	}
}

// WithDebounce sets the change coalescing window.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		o.window = d
	}
}

// WithClock sets the clock used for timestamps and the debounce timer.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithLogger sets the logger shared by all components.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithIDs sets the record ID generator.
func WithIDs(gen func() string) Option {
	return func(o *options) {
		o.newID = gen
	}
}

// WithOnRecord registers fn to be called with every record that becomes
// the current content.
func WithOnRecord(fn func(content.Record)) Option {
	return func(o *options) {
		o.onRecord = fn
	}
}

// WithSaveTimeout bounds each save made after a history change. A save
// that runs longer fails and is reported like any other write failure.
func WithSaveTimeout(d time.Duration) Option {
	return func(o *options) {
		o.saveTO = d
	}
}

// Engine is the clipboard history engine exposed to the presentation
// layer.
type Engine struct {
	svc     clipboard.Service
	adapter *persist.Adapter
	clock   clock.Clock
	log     *slog.Logger
	newID   func() string
	onRec   func(content.Record)
	saveTO  time.Duration

	errs     apperr.Slot
	history  *history.Store
	pipeline *ingest.Pipeline
	monitor  *monitor.Controller

	mu      sync.Mutex
	current *content.Record
}

// New creates an engine over the native service svc and the persistence
// backend store, restoring any previously saved history. Loading never
// fails; unreadable state starts empty.
func New(ctx context.Context, svc clipboard.Service, store persist.Store, opts ...Option) *Engine {
	o := options{
		capacity: history.DefaultCapacity,
		window:   DefaultDebounce,
		clock:    clock.Real{},
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		newID: func() string {
			return uuid.Must(uuid.NewV7()).String()
		},
		saveTO: DefaultSaveTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{
		svc:    svc,
		clock:  o.clock,
		log:    o.log,
		newID:  o.newID,
		onRec:  o.onRecord,
		saveTO: o.saveTO,
	}
	e.adapter = persist.NewAdapter(store,
		persist.WithLogger(o.log),
		persist.WithIDs(o.newID),
		persist.WithNow(o.clock.Now),
	)
	e.history = history.New(
		history.WithCapacity(o.capacity),
		history.WithNative(svc),
		history.WithReporter(&e.errs),
		history.WithNow(o.clock.Now),
		history.WithOnChange(e.save),
	)
	e.pipeline = ingest.New(e.history,
		ingest.WithWindow(o.window),
		ingest.WithClock(o.clock),
		ingest.WithLogger(o.log),
		ingest.WithIDs(o.newID),
		ingest.WithReporter(&e.errs),
		ingest.WithOnRecord(e.setCurrent),
	)
	e.monitor = monitor.New(svc,
		monitor.Handlers{
			OnSnapshot: e.history.Merge,
			OnChange:   e.pipeline.HandleChange,
			OnProgress: e.pipeline.HandleProgress,
		},
		monitor.WithReporter(&e.errs),
		monitor.WithLogger(o.log),
		monitor.WithNow(o.clock.Now),
		monitor.WithOnStop(e.drain),
	)

	st := e.adapter.Load(ctx)
	search := st.Search
	e.history.Restore(st.Entries, filter.Merge(filter.Default(), filter.Patch{Search: &search}))
	e.log.Debug("history restored", "entries", e.history.Len())
	return e
}

// History returns the records newest first.
func (e *Engine) History() []content.Record {
	return e.history.History()
}

// FilteredHistory returns the records matching the current filter.
func (e *Engine) FilteredHistory() []content.Record {
	return e.history.Filtered()
}

// View returns history, filtered history and filter as one snapshot.
func (e *Engine) View() history.View {
	return e.history.View()
}

// Filter returns the current filter.
func (e *Engine) Filter() filter.Spec {
	return e.history.Filter()
}

// Get returns the record with the given ID.
func (e *Engine) Get(id string) (content.Record, bool) {
	return e.history.Get(id)
}

// IsMonitoring reports whether the native service is being observed.
func (e *Engine) IsMonitoring() bool {
	return e.monitor.IsMonitoring()
}

// MonitorState returns the lifecycle state of monitoring.
func (e *Engine) MonitorState() monitor.State {
	return e.monitor.State()
}

// CurrentProgress returns the latest progress update, or nil.
func (e *Engine) CurrentProgress() *content.Progress {
	return e.pipeline.CurrentProgress()
}

// CurrentError returns the latest error, or nil.
func (e *Engine) CurrentError() *apperr.Details {
	return e.errs.Current()
}

// CurrentContent returns the most recently captured record, or nil.
func (e *Engine) CurrentContent() *content.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return nil
	}
	r := *e.current
	return &r
}

// StartMonitoring starts observing the native service. Failures are also
// reported to the error slot with a bound retry.
func (e *Engine) StartMonitoring(ctx context.Context) error {
	return e.monitor.Start(ctx)
}

// StopMonitoring stops observing the native service. A change still
// waiting for the debounce window is stored before it returns; a partial
// transfer is abandoned and the progress slot cleared.
func (e *Engine) StopMonitoring(ctx context.Context) {
	e.monitor.Stop(ctx)
}

// SetFilter merges p into the current filter.
func (e *Engine) SetFilter(p filter.Patch) filter.Spec {
	return e.history.SetFilter(p)
}

// ToggleFavorite flips the favorite flag of a record. Missing IDs are
// ignored.
func (e *Engine) ToggleFavorite(id string) bool {
	return e.history.ToggleFavorite(id)
}

// DeleteItem removes a record. Missing IDs are ignored.
func (e *Engine) DeleteItem(id string) bool {
	return e.history.Delete(id)
}

// ClearHistory empties the history locally and on the native side.
func (e *Engine) ClearHistory(ctx context.Context) error {
	e.setCurrent(content.Record{})
	return e.history.ClearHistory(ctx)
}

// CopyToClipboard writes r to the system clipboard.
func (e *Engine) CopyToClipboard(ctx context.Context, r content.Record) error {
	return e.history.CopyToClipboard(ctx, r)
}

// Capture records a local copy of v, bypassing the native service.
func (e *Engine) Capture(v content.Variant) content.Record {
	r := content.Record{ID: e.newID(), Format: v, Timestamp: e.clock.Now()}
	e.history.Append(r)
	e.setCurrent(r)
	return r
}

// ClearError empties the error slot.
func (e *Engine) ClearError() {
	e.errs.Clear()
}

// Retry re-runs the command that produced the current error. The slot is
// cleared first; a failing retry reports a fresh error.
func (e *Engine) Retry(ctx context.Context) error {
	d := e.errs.Current()
	if d == nil || d.Retry == nil {
		return ErrNothingToRetry
	}
	e.errs.Clear()
	return d.Retry(ctx)
}

// Close stops monitoring and releases the persistence backend.
func (e *Engine) Close(ctx context.Context) error {
	e.monitor.Stop(ctx)
	return e.adapter.Close()
}

// save persists a history view. It runs as the history change hook, so
// saves are serialized with mutations and bounded by the save timeout.
func (e *Engine) save(v history.View) {
	ctx := context.Background()
	if e.saveTO > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.saveTO)
		defer cancel()
	}
	_ = e.persist(ctx, v)
}

// persist writes v and reports a failure with a retry that saves the
// latest view.
func (e *Engine) persist(ctx context.Context, v history.View) error {
	err := e.adapter.Save(ctx, persist.State{Entries: v.History, Search: v.Filter.Search})
	if err == nil {
		return nil
	}
	e.log.Warn("failed to persist history", "error", err)
	d := apperr.New(apperr.Classify(err, apperr.CodeWriteFailed), apperr.SeverityWarning, e.clock.Now(), err).
		WithContext("operation", "save_history").
		WithRetry(func(ctx context.Context) error {
			return e.persist(ctx, e.history.View())
		})
	e.errs.Report(d)
	return d
}

// drain runs when monitoring stops: the pending change is stored and any
// partial transfer with its progress is dropped.
func (e *Engine) drain() {
	e.pipeline.Flush()
	e.pipeline.Reset()
}

// setCurrent records r as the current content. A record without payload
// clears it.
func (e *Engine) setCurrent(r content.Record) {
	e.mu.Lock()
	if r.Format == nil {
		e.current = nil
		e.mu.Unlock()
		return
	}
	e.current = &r
	e.mu.Unlock()

	if e.onRec != nil {
		e.onRec(r)
	}
}
