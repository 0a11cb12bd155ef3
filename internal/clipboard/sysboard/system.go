// Package sysboard implements clipboard.Service on top of the system
// clipboard via golang.design/x/clipboard. Text and PNG images are watched
// and written natively; when the native clipboard cannot be initialized,
// text writes fall back to pbcopy on macOS and xclip or xsel on Linux.
package sysboard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.design/x/clipboard"

	cb "github.com/yiblet/cliphist/internal/clipboard"
	"github.com/yiblet/cliphist/internal/content"
)

// DefaultHistory is how many observed records the service remembers for
// ReadHistory.
const DefaultHistory = 50

var _ cb.Service = (*SystemClipboard)(nil)

// Option configures a SystemClipboard.
type Option func(*SystemClipboard)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *SystemClipboard) {
		s.log = l
	}
}

// WithHistory sets how many observed records are remembered.
func WithHistory(n int) Option {
	return func(s *SystemClipboard) {
		if n > 0 {
			s.limit = n
		}
	}
}

// SystemClipboard watches and writes the system clipboard.
type SystemClipboard struct {
	log   *slog.Logger
	limit int

	initOnce sync.Once
	initErr  error

	mu       sync.Mutex
	nextSub  int
	changes  map[int]cb.ChangeHandler
	progress map[int]cb.ProgressHandler
	history  []content.Record
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a new SystemClipboard instance
func New(opts ...Option) *SystemClipboard {
	s := &SystemClipboard{
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		limit:    DefaultHistory,
		changes:  make(map[int]cb.ChangeHandler),
		progress: make(map[int]cb.ProgressHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SystemClipboard) init() error {
	s.initOnce.Do(func() {
		if err := clipboard.Init(); err != nil {
			s.initErr = fmt.Errorf("failed to initialize clipboard: %w", err)
		}
	})
	return s.initErr
}

// SubscribeChange implements clipboard.Service.
func (s *SystemClipboard) SubscribeChange(h cb.ChangeHandler) (cb.Unsubscribe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.changes[id] = h
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.changes, id)
	}, nil
}

// SubscribeProgress implements clipboard.Service. The system clipboard
// has no long running operations, so handlers are never called.
func (s *SystemClipboard) SubscribeProgress(h cb.ProgressHandler) (cb.Unsubscribe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.progress[id] = h
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.progress, id)
	}, nil
}

// Start watches the text and image formats until Stop is called.
func (s *SystemClipboard) Start(ctx context.Context) error {
	if err := s.init(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.watch(watchCtx, clipboard.FmtText, recordFromText)
	s.watch(watchCtx, clipboard.FmtImage, recordFromImage)
	s.log.Debug("watching system clipboard")
	return nil
}

// Stop ends watching and waits for the watchers to exit. Calling Stop on a
// stopped service is a no-op.
func (s *SystemClipboard) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// watch starts a goroutine delivering changes of one format. Callers hold
// s.mu.
func (s *SystemClipboard) watch(ctx context.Context, format clipboard.Format, build func([]byte, time.Time) (content.Record, bool)) {
	ch := clipboard.Watch(ctx, format)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for data := range ch {
			r, ok := build(data, time.Now())
			if !ok {
				continue
			}
			s.observe(r)
		}
	}()
}

// observe remembers r and delivers it to the change handlers.
func (s *SystemClipboard) observe(r content.Record) {
	s.mu.Lock()
	s.history = append([]content.Record{r}, s.history...)
	if len(s.history) > s.limit {
		s.history = s.history[:s.limit]
	}
	handlers := make([]cb.ChangeHandler, 0, len(s.changes))
	for _, h := range s.changes {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(r)
	}
}

// ReadHistory returns the records observed since the service was created,
// newest first.
func (s *SystemClipboard) ReadHistory(ctx context.Context) ([]content.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]content.Record, len(s.history))
	copy(out, s.history)
	return out, nil
}

// ClearHistory forgets the observed records.
func (s *SystemClipboard) ClearHistory(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	return nil
}

// Write places r on the system clipboard.
func (s *SystemClipboard) Write(ctx context.Context, r content.Record) error {
	p, err := payloadFor(r)
	if err != nil {
		return err
	}

	if err := s.init(); err != nil {
		if p.image {
			return err
		}
		s.log.Debug("native clipboard unavailable, using command fallback", "error", err)
		return writeText(ctx, p.data)
	}

	format := clipboard.FmtText
	if p.image {
		format = clipboard.FmtImage
	}
	clipboard.Write(format, p.data)
	return nil
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}
