// Package mockboard provides a scriptable clipboard.Service for tests and
// demos. Events are delivered synchronously by Emit and EmitProgress.
package mockboard

import (
	"context"
	"sync"

	"github.com/yiblet/cliphist/internal/clipboard"
	"github.com/yiblet/cliphist/internal/content"
)

var _ clipboard.Service = (*MockClipboard)(nil)

// MockClipboard implements clipboard.Service in memory.
type MockClipboard struct {
	mu sync.Mutex

	nextSub  int
	changes  map[int]clipboard.ChangeHandler
	progress map[int]clipboard.ProgressHandler

	history []content.Record
	written []content.Record
	running bool

	startCalls int
	stopCalls  int
	clearCalls int

	// Error hooks. A non-nil value makes the matching call fail.
	StartErr       error
	StopErr        error
	ReadErr        error
	ClearErr       error
	WriteErr       error
	SubscribeErr   error
	ProgressSubErr error

	// StartGate, when set, makes Start block until it is closed or the
	// context is done. StartEntered is closed by the next call to Start.
	StartGate    chan struct{}
	StartEntered chan struct{}
}

// New creates a new MockClipboard instance
func New() *MockClipboard {
	return &MockClipboard{
		changes:  make(map[int]clipboard.ChangeHandler),
		progress: make(map[int]clipboard.ProgressHandler),
	}
}

// SubscribeChange implements clipboard.Service.
func (m *MockClipboard) SubscribeChange(h clipboard.ChangeHandler) (clipboard.Unsubscribe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SubscribeErr != nil {
		return nil, m.SubscribeErr
	}
	m.nextSub++
	id := m.nextSub
	m.changes[id] = h
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.changes, id)
	}, nil
}

// SubscribeProgress implements clipboard.Service.
func (m *MockClipboard) SubscribeProgress(h clipboard.ProgressHandler) (clipboard.Unsubscribe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ProgressSubErr != nil {
		return nil, m.ProgressSubErr
	}
	m.nextSub++
	id := m.nextSub
	m.progress[id] = h
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.progress, id)
	}, nil
}

// Start implements clipboard.Service.
func (m *MockClipboard) Start(ctx context.Context) error {
	m.mu.Lock()
	m.startCalls++
	gate, entered := m.StartGate, m.StartEntered
	m.StartEntered = nil
	m.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartErr != nil {
		return m.StartErr
	}
	m.running = true
	return nil
}

// Stop implements clipboard.Service.
func (m *MockClipboard) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls++
	m.running = false
	return m.StopErr
}

// ReadHistory implements clipboard.Service.
func (m *MockClipboard) ReadHistory(ctx context.Context) ([]content.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	out := make([]content.Record, len(m.history))
	copy(out, m.history)
	return out, nil
}

// ClearHistory implements clipboard.Service.
func (m *MockClipboard) ClearHistory(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearCalls++
	if m.ClearErr != nil {
		return m.ClearErr
	}
	m.history = nil
	return nil
}

// Write implements clipboard.Service.
func (m *MockClipboard) Write(ctx context.Context, r content.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.written = append(m.written, r)
	return nil
}

// Emit delivers r to every change subscriber.
func (m *MockClipboard) Emit(r content.Record) {
	m.mu.Lock()
	handlers := make([]clipboard.ChangeHandler, 0, len(m.changes))
	for _, h := range m.changes {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()

	for _, h := range handlers {
		h(r)
	}
}

// EmitProgress delivers p to every progress subscriber.
func (m *MockClipboard) EmitProgress(p content.Progress) {
	m.mu.Lock()
	handlers := make([]clipboard.ProgressHandler, 0, len(m.progress))
	for _, h := range m.progress {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()

	for _, h := range handlers {
		h(p)
	}
}

// SetHistory sets the records returned by ReadHistory (for testing)
func (m *MockClipboard) SetHistory(records []content.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = records
}

// Written returns the records passed to Write (for testing)
func (m *MockClipboard) Written() []content.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]content.Record, len(m.written))
	copy(out, m.written)
	return out
}

// Subscribers returns the number of active change and progress handlers.
func (m *MockClipboard) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.changes) + len(m.progress)
}

// Running reports whether Start succeeded without a later Stop.
func (m *MockClipboard) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Calls returns how often Start, Stop and ClearHistory were invoked.
func (m *MockClipboard) Calls() (starts, stops, clears int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startCalls, m.stopCalls, m.clearCalls
}

// SetErrors is a helper for tests that reconfigure failures while other
// goroutines may be calling into the mock.
func (m *MockClipboard) SetErrors(fn func(m *MockClipboard)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}
