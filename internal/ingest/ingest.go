// Package ingest turns native clipboard notifications into history records.
//
// Change notifications are coalesced over a debounce window: each event
// replaces the pending record and restarts the timer, so a burst produces a
// single record equal to its last payload. Progress notifications bypass
// the window and overwrite a single progress slot. Chunked file transfers
// are assembled by chunk index and only scheduled once complete.
package ingest

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yiblet/cliphist/internal/apperr"
	"github.com/yiblet/cliphist/internal/clock"
	"github.com/yiblet/cliphist/internal/content"
)

// DefaultWindow is the debounce window used when none is configured.
const DefaultWindow = 100 * time.Millisecond

// OperationReceive is the progress operation reported for chunked
// transfers assembled by the pipeline.
const OperationReceive = "receive"

// Sink receives the records produced by the pipeline.
type Sink interface {
	Append(r content.Record)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWindow sets the debounce window. A window of zero or less delivers
// records synchronously.
func WithWindow(d time.Duration) Option {
	return func(p *Pipeline) {
		p.window = d
	}
}

// WithClock sets the clock used for timers and timestamps.
func WithClock(c clock.Clock) Option {
	return func(p *Pipeline) {
		p.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		p.log = l
	}
}

// WithIDs sets the generator used for records that arrive without an ID.
func WithIDs(gen func() string) Option {
	return func(p *Pipeline) {
		p.newID = gen
	}
}

// WithReporter sets where malformed input is reported.
func WithReporter(r apperr.Reporter) Option {
	return func(p *Pipeline) {
		p.reporter = r
	}
}

// WithOnRecord registers a callback invoked after each record is delivered
// to the sink.
func WithOnRecord(fn func(content.Record)) Option {
	return func(p *Pipeline) {
		p.onRecord = fn
	}
}

// Pipeline is the event ingestion pipeline. It is safe for concurrent use.
type Pipeline struct {
	sink     Sink
	clock    clock.Clock
	window   time.Duration
	log      *slog.Logger
	newID    func() string
	reporter apperr.Reporter
	onRecord func(content.Record)

	mu       sync.Mutex
	pending  *content.Record
	timer    clock.Timer
	seq      uint64
	progress *content.Progress
	transfer *transfer
}

// New creates a pipeline delivering to sink.
func New(sink Sink, opts ...Option) *Pipeline {
	p := &Pipeline{
		sink:   sink,
		clock:  clock.Real{},
		window: DefaultWindow,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		newID: func() string {
			return uuid.Must(uuid.NewV7()).String()
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// HandleChange ingests a change notification. Records without an ID or
// timestamp get one. FileContent fragments are merged into the current
// transfer; the assembled record is scheduled once every chunk is present.
func (p *Pipeline) HandleChange(r content.Record) {
	if r.Format == nil {
		p.log.Warn("ignoring change without payload", "id", r.ID)
		return
	}
	if r.ID == "" {
		r.ID = p.newID()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = p.clock.Now()
	}

	if fc, ok := r.Format.(content.FileContent); ok {
		assembled, ok := p.receive(r, fc)
		if !ok {
			return
		}
		r = assembled
	}

	p.schedule(r)
}

// HandleProgress overwrites the progress slot.
func (p *Pipeline) HandleProgress(pr content.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress = &pr
}

// CurrentProgress returns the most recent progress update, or nil.
func (p *Pipeline) CurrentProgress() *content.Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.progress == nil {
		return nil
	}
	pr := *p.progress
	return &pr
}

// Pending reports whether a record is waiting for the window to close.
func (p *Pipeline) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending != nil
}

// Flush delivers the pending record immediately, if there is one.
func (p *Pipeline) Flush() {
	p.mu.Lock()
	r, ok := p.takePending()
	p.mu.Unlock()
	if ok {
		p.deliver(r)
	}
}

// Reset drops any partial transfer and empties the progress slot. A
// pending record is left for Flush.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.transfer != nil {
		p.log.Info("abandoning chunked transfer", "path", p.transfer.key.path)
	}
	p.transfer = nil
	p.progress = nil
}

func (p *Pipeline) schedule(r content.Record) {
	if p.window <= 0 {
		p.mu.Lock()
		p.takePending()
		p.mu.Unlock()
		p.deliver(r)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.seq++
	seq := p.seq
	p.pending = &r
	p.timer = p.clock.AfterFunc(p.window, func() {
		p.fire(seq)
	})
}

func (p *Pipeline) fire(seq uint64) {
	p.mu.Lock()
	if seq != p.seq {
		p.mu.Unlock()
		return
	}
	r, ok := p.takePending()
	p.mu.Unlock()
	if ok {
		p.deliver(r)
	}
}

// takePending clears the pending slot and stops its timer. Callers hold
// p.mu.
func (p *Pipeline) takePending() (content.Record, bool) {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.seq++
	if p.pending == nil {
		return content.Record{}, false
	}
	r := *p.pending
	p.pending = nil
	return r, true
}

func (p *Pipeline) deliver(r content.Record) {
	p.log.Debug("flushing clipboard change", "id", r.ID, "kind", r.Kind())
	if _, ok := r.Format.(content.FileContent); ok {
		p.clearReceiveProgress()
	}
	p.sink.Append(r)
	if p.onRecord != nil {
		p.onRecord(r)
	}
}

// clearReceiveProgress empties the progress slot once a transfer has been
// stored. Progress reported by the native service is left alone.
func (p *Pipeline) clearReceiveProgress() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.progress != nil && p.progress.Operation == OperationReceive && p.transfer == nil {
		p.progress = nil
	}
}
