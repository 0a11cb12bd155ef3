package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yiblet/cliphist/internal/apperr"
	"github.com/yiblet/cliphist/internal/clipboard/mockboard"
	"github.com/yiblet/cliphist/internal/content"
)

type events struct {
	mu        sync.Mutex
	snapshots [][]content.Record
	changes   []content.Record
	progress  []content.Progress
}

func (e *events) handlers() Handlers {
	return Handlers{
		OnSnapshot: func(rs []content.Record) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.snapshots = append(e.snapshots, rs)
		},
		OnChange: func(r content.Record) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.changes = append(e.changes, r)
		},
		OnProgress: func(p content.Progress) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.progress = append(e.progress, p)
		},
	}
}

func (e *events) counts() (snapshots, changes, progress int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.snapshots), len(e.changes), len(e.progress)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "starting", Starting.String())
	assert.Equal(t, "active", Active.String())
	assert.Equal(t, "stopping", Stopping.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "State(42)", State(42).String())
}

func TestStartAndStop(t *testing.T) {
	ctx := context.Background()
	board := mockboard.New()
	board.SetHistory([]content.Record{{ID: "n1", Format: content.Text{Content: "native"}}})
	ev := &events{}
	c := New(board, ev.handlers())

	require.NoError(t, c.Start(ctx))
	assert.Equal(t, Active, c.State())
	assert.True(t, c.IsMonitoring())
	assert.True(t, board.Running())
	assert.Equal(t, 2, board.Subscribers())

	board.Emit(content.Record{ID: "a", Format: content.Text{Content: "a"}})
	board.EmitProgress(content.Progress{Operation: "upload", Fraction: 0.5})
	snapshots, changes, progress := ev.counts()
	assert.Equal(t, 1, snapshots)
	assert.Equal(t, 1, changes)
	assert.Equal(t, 1, progress)

	c.Stop(ctx)
	assert.Equal(t, Idle, c.State())
	assert.False(t, board.Running())
	assert.Equal(t, 0, board.Subscribers())

	board.Emit(content.Record{ID: "b", Format: content.Text{Content: "b"}})
	_, changes, _ = ev.counts()
	assert.Equal(t, 1, changes, "no delivery after stop")
}

func TestStart_Idempotent(t *testing.T) {
	ctx := context.Background()
	board := mockboard.New()
	c := New(board, Handlers{})

	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.Start(ctx))

	starts, _, _ := board.Calls()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 2, board.Subscribers())
}

func TestStart_ConcurrentCallsStartOnce(t *testing.T) {
	ctx := context.Background()
	board := mockboard.New()
	board.StartGate = make(chan struct{})
	board.StartEntered = make(chan struct{})
	c := New(board, Handlers{})

	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()
	<-board.StartEntered

	assert.Equal(t, Starting, c.State())
	require.NoError(t, c.Start(ctx), "second start is a no-op while starting")

	close(board.StartGate)
	require.NoError(t, <-done)
	assert.Equal(t, Active, c.State())
	starts, _, _ := board.Calls()
	assert.Equal(t, 1, starts)
}

func TestStop_DuringStartDiscardsCompletion(t *testing.T) {
	ctx := context.Background()
	board := mockboard.New()
	board.StartGate = make(chan struct{})
	board.StartEntered = make(chan struct{})
	ev := &events{}
	c := New(board, ev.handlers())

	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()
	<-board.StartEntered

	c.Stop(ctx)
	assert.Equal(t, Idle, c.State())
	assert.Equal(t, 0, board.Subscribers())

	close(board.StartGate)
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(5 * time.Second):
		t.Fatal("start did not return")
	}

	assert.Equal(t, Idle, c.State())
	assert.False(t, c.IsMonitoring())
	assert.Equal(t, 0, board.Subscribers())
	assert.False(t, board.Running(), "late native start is stopped again")

	board.Emit(content.Record{ID: "late", Format: content.Text{Content: "late"}})
	_, changes, _ := ev.counts()
	assert.Equal(t, 0, changes)
}

func TestStop_WithoutStart(t *testing.T) {
	board := mockboard.New()
	c := New(board, Handlers{})

	c.Stop(context.Background())
	c.Stop(context.Background())

	assert.Equal(t, Idle, c.State())
	_, stops, _ := board.Calls()
	assert.Equal(t, 0, stops, "native stop is only called after a start")
}

func TestStop_NativeErrorIsSwallowed(t *testing.T) {
	ctx := context.Background()
	board := mockboard.New()
	board.StopErr = errors.New("already stopped")
	c := New(board, Handlers{})
	require.NoError(t, c.Start(ctx))

	c.Stop(ctx)

	assert.Equal(t, Idle, c.State())
}

func TestStop_RunsHookAfterUnsubscribe(t *testing.T) {
	ctx := context.Background()
	board := mockboard.New()
	var subsAtHook int
	var c *Controller
	c = New(board, Handlers{}, WithOnStop(func() {
		subsAtHook = board.Subscribers()
		assert.Equal(t, Stopping, c.State())
	}))
	require.NoError(t, c.Start(ctx))

	c.Stop(ctx)

	assert.Equal(t, 0, subsAtHook)
}

func TestStart_FailureTearsDownAndRetries(t *testing.T) {
	tests := []struct {
		name   string
		inject func(m *mockboard.MockClipboard, err error)
		step   string
	}{
		{"read history", func(m *mockboard.MockClipboard, err error) { m.ReadErr = err }, "read_history"},
		{"subscribe change", func(m *mockboard.MockClipboard, err error) { m.SubscribeErr = err }, "subscribe_change"},
		{"subscribe progress", func(m *mockboard.MockClipboard, err error) { m.ProgressSubErr = err }, "subscribe_progress"},
		{"native start", func(m *mockboard.MockClipboard, err error) { m.StartErr = err }, "start"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			board := mockboard.New()
			boom := errors.New("boom")
			board.SetErrors(func(m *mockboard.MockClipboard) { tt.inject(m, boom) })
			var slot apperr.Slot
			c := New(board, Handlers{}, WithReporter(&slot))

			err := c.Start(ctx)
			require.Error(t, err)
			assert.ErrorIs(t, err, boom)
			assert.Equal(t, Failed, c.State())
			assert.Equal(t, 0, board.Subscribers(), "no partial subscriptions")

			current := slot.Current()
			require.NotNil(t, current)
			assert.Equal(t, apperr.CodeMonitoringStartFailed, current.Code)
			assert.Equal(t, tt.step, current.Context["step"])
			require.NotNil(t, current.Retry)

			board.SetErrors(func(m *mockboard.MockClipboard) { tt.inject(m, nil) })
			require.NoError(t, current.Retry(ctx))
			assert.Equal(t, Active, c.State())
			assert.Equal(t, 2, board.Subscribers())
		})
	}
}

func TestStart_PermissionFailureClassified(t *testing.T) {
	board := mockboard.New()
	board.StartErr = apperr.ErrPermissionDenied
	var slot apperr.Slot
	c := New(board, Handlers{}, WithReporter(&slot))

	require.Error(t, c.Start(context.Background()))

	require.NotNil(t, slot.Current())
	assert.Equal(t, apperr.CodePermissionDenied, slot.Current().Code)
	assert.Equal(t, Failed, c.State())
}

func TestStopThenRestart(t *testing.T) {
	ctx := context.Background()
	board := mockboard.New()
	ev := &events{}
	c := New(board, ev.handlers())

	require.NoError(t, c.Start(ctx))
	c.Stop(ctx)
	require.NoError(t, c.Start(ctx))

	board.Emit(content.Record{ID: "x", Format: content.Text{Content: "x"}})
	_, changes, _ := ev.counts()
	assert.Equal(t, 1, changes)
	assert.Equal(t, 2, board.Subscribers())
}

func TestStart_WaitsForInFlightStop(t *testing.T) {
	ctx := context.Background()
	board := mockboard.New()
	hookEntered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	c := New(board, Handlers{}, WithOnStop(func() {
		once.Do(func() {
			close(hookEntered)
			<-release
		})
	}))
	require.NoError(t, c.Start(ctx))

	stopped := make(chan struct{})
	go func() {
		c.Stop(ctx)
		close(stopped)
	}()
	<-hookEntered

	started := make(chan error, 1)
	go func() { started <- c.Start(ctx) }()

	select {
	case err := <-started:
		t.Fatalf("start returned while stop was in flight: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, Stopping, c.State())

	close(release)
	<-stopped
	select {
	case err := <-started:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("start did not return")
	}

	assert.Equal(t, Active, c.State())
	assert.True(t, board.Running(), "native service runs while active")
	assert.Equal(t, 2, board.Subscribers())
	starts, stops, _ := board.Calls()
	assert.Equal(t, 2, starts)
	assert.Equal(t, 1, stops)
}

func TestStart_CancelledWhileWaitingForStop(t *testing.T) {
	board := mockboard.New()
	hookEntered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	c := New(board, Handlers{}, WithOnStop(func() {
		once.Do(func() {
			close(hookEntered)
			<-release
		})
	}))
	require.NoError(t, c.Start(context.Background()))

	stopped := make(chan struct{})
	go func() {
		c.Stop(context.Background())
		close(stopped)
	}()
	<-hookEntered

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Start(ctx), context.Canceled)

	close(release)
	<-stopped
	assert.Equal(t, Idle, c.State())
	assert.False(t, board.Running())
}
