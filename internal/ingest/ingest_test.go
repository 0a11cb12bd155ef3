package ingest

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yiblet/cliphist/internal/apperr"
	"github.com/yiblet/cliphist/internal/clock"
	"github.com/yiblet/cliphist/internal/content"
)

type recorder struct {
	mu      sync.Mutex
	records []content.Record
}

func (r *recorder) Append(rec content.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *recorder) all() []content.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]content.Record, len(r.records))
	copy(out, r.records)
	return out
}

var start = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestPipeline(opts ...Option) (*Pipeline, *recorder, *clock.Fake) {
	sink := &recorder{}
	clk := clock.NewFake(start)
	n := 0
	base := []Option{
		WithClock(clk),
		WithIDs(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	}
	return New(sink, append(base, opts...)...), sink, clk
}

func textRecord(s string) content.Record {
	return content.Record{Format: content.Text{Content: s}}
}

func TestHandleChange_CoalescesBurst(t *testing.T) {
	p, sink, clk := newTestPipeline()

	for i := 1; i <= 5; i++ {
		p.HandleChange(textRecord(fmt.Sprintf("copy %d", i)))
		clk.Advance(20 * time.Millisecond)
	}
	assert.Empty(t, sink.all(), "window still open")
	assert.True(t, p.Pending())
	assert.Equal(t, 1, clk.Pending(), "at most one pending timer")

	clk.Advance(DefaultWindow)

	records := sink.all()
	require.Len(t, records, 1)
	assert.Equal(t, content.Text{Content: "copy 5"}, records[0].Format)
	assert.False(t, p.Pending())
}

func TestHandleChange_SeparateWindowsProduceSeparateRecords(t *testing.T) {
	p, sink, clk := newTestPipeline()

	p.HandleChange(textRecord("one"))
	clk.Advance(DefaultWindow)
	p.HandleChange(textRecord("two"))
	clk.Advance(DefaultWindow)

	records := sink.all()
	require.Len(t, records, 2)
	assert.Equal(t, content.Text{Content: "one"}, records[0].Format)
	assert.Equal(t, content.Text{Content: "two"}, records[1].Format)
	assert.NotEqual(t, records[0].ID, records[1].ID)
}

func TestHandleChange_AssignsIDAndTimestamp(t *testing.T) {
	p, sink, clk := newTestPipeline()

	p.HandleChange(textRecord("x"))
	given := content.Record{ID: "keep", Format: content.Text{Content: "y"}, Timestamp: start.Add(-time.Hour)}
	clk.Advance(DefaultWindow)
	p.HandleChange(given)
	clk.Advance(DefaultWindow)

	records := sink.all()
	require.Len(t, records, 2)
	assert.Equal(t, "id-1", records[0].ID)
	assert.Equal(t, start, records[0].Timestamp)
	assert.Equal(t, "keep", records[1].ID)
	assert.Equal(t, start.Add(-time.Hour), records[1].Timestamp)
}

func TestHandleChange_IgnoresEmptyPayload(t *testing.T) {
	p, sink, clk := newTestPipeline()

	p.HandleChange(content.Record{ID: "nil"})
	clk.Advance(DefaultWindow)

	assert.Empty(t, sink.all())
}

func TestZeroWindowDeliversSynchronously(t *testing.T) {
	var seen []string
	p, sink, _ := newTestPipeline(WithWindow(0), WithOnRecord(func(r content.Record) {
		seen = append(seen, r.ID)
	}))

	p.HandleChange(textRecord("now"))

	require.Len(t, sink.all(), 1)
	assert.Equal(t, []string{"id-1"}, seen)
}

func TestFlush(t *testing.T) {
	p, sink, clk := newTestPipeline()

	p.HandleChange(textRecord("flushed"))
	p.Flush()
	require.Len(t, sink.all(), 1)
	assert.Equal(t, 0, clk.Pending())

	// Flushing with nothing pending is a no-op.
	p.Flush()
	assert.Len(t, sink.all(), 1)
}

func TestReset_DropsPartialTransferKeepsPending(t *testing.T) {
	p, sink, clk := newTestPipeline()

	p.HandleChange(textRecord("pending"))
	p.HandleChange(chunkEvent("/tmp/f", 0, 2, "ab"))
	require.NotNil(t, p.CurrentProgress())

	p.Reset()
	assert.Nil(t, p.CurrentProgress())
	assert.True(t, p.Pending())

	// The second half alone no longer completes the transfer.
	p.HandleChange(chunkEvent("/tmp/f", 1, 2, "cd"))
	clk.Advance(DefaultWindow)
	records := sink.all()
	require.Len(t, records, 1)
	assert.Equal(t, content.KindText, records[0].Kind())
}

func TestHandleProgress_LastWriteWins(t *testing.T) {
	p, _, _ := newTestPipeline()
	assert.Nil(t, p.CurrentProgress())

	p.HandleProgress(content.Progress{Operation: "upload", Fraction: 0.25})
	p.HandleProgress(content.Progress{Operation: "upload", Fraction: 0.75})

	got := p.CurrentProgress()
	require.NotNil(t, got)
	assert.Equal(t, 0.75, got.Fraction)

	p.Reset()
	assert.Nil(t, p.CurrentProgress())
}

func chunkEvent(path string, index, total int, data string) content.Record {
	return content.Record{Format: content.FileContent{
		OriginalPath: path,
		MimeType:     "text/plain",
		TotalSize:    int64(total * len(data)),
		Chunks: []content.Chunk{{
			Index:       index,
			TotalChunks: total,
			Data:        []byte(data),
			Complete:    true,
		}},
	}}
}

func assembleInOrder(t *testing.T, order []int) content.Record {
	t.Helper()
	p, sink, clk := newTestPipeline()
	parts := []string{"aa", "bb", "cc"}

	for i, idx := range order {
		p.HandleChange(chunkEvent("/tmp/f.txt", idx, 3, parts[idx]))
		if i < len(order)-1 {
			clk.Advance(time.Second)
			require.Empty(t, sink.all(), "incomplete transfer must not be stored")
		}
	}
	clk.Advance(DefaultWindow)

	records := sink.all()
	require.Len(t, records, 1)
	return records[0]
}

func TestChunkedTransfer_OrderIndependent(t *testing.T) {
	inOrder := assembleInOrder(t, []int{0, 1, 2})
	shuffled := assembleInOrder(t, []int{2, 0, 1})

	assert.Equal(t, inOrder.Format, shuffled.Format)

	fc, ok := shuffled.Format.(content.FileContent)
	require.True(t, ok)
	assert.True(t, fc.IsComplete())
	payload, err := fc.Payload()
	require.NoError(t, err)
	assert.Equal(t, "aabbcc", string(payload))
}

func TestChunkedTransfer_ProgressWithSpeedAndETA(t *testing.T) {
	p, _, clk := newTestPipeline()

	p.HandleChange(chunkEvent("/tmp/big.bin", 0, 4, "0123456789"))
	first := p.CurrentProgress()
	require.NotNil(t, first)
	assert.Equal(t, OperationReceive, first.Operation)
	assert.Equal(t, 0.25, first.Fraction)
	assert.Nil(t, first.Speed, "no elapsed time yet")

	clk.Advance(time.Second)
	p.HandleChange(chunkEvent("/tmp/big.bin", 1, 4, "0123456789"))

	got := p.CurrentProgress()
	require.NotNil(t, got)
	assert.Equal(t, 0.5, got.Fraction)
	assert.Equal(t, int64(20), got.BytesProcessed)
	assert.Equal(t, int64(40), got.TotalBytes)
	require.NotNil(t, got.Speed)
	assert.InDelta(t, 20.0, *got.Speed, 1e-9)
	require.NotNil(t, got.ETA)
	assert.Equal(t, time.Second, *got.ETA)
}

func TestChunkedTransfer_DuplicateChunkKeyedByIndex(t *testing.T) {
	p, sink, clk := newTestPipeline()

	p.HandleChange(chunkEvent("/tmp/f", 0, 2, "old"))
	p.HandleChange(chunkEvent("/tmp/f", 0, 2, "new"))
	assert.Equal(t, 0.5, p.CurrentProgress().Fraction)

	p.HandleChange(chunkEvent("/tmp/f", 1, 2, "end"))
	clk.Advance(DefaultWindow)

	records := sink.all()
	require.Len(t, records, 1)
	payload, err := records[0].Format.(content.FileContent).Payload()
	require.NoError(t, err)
	assert.Equal(t, "newend", string(payload))
	assert.Nil(t, p.CurrentProgress(), "progress is cleared once the transfer is stored")
}

func TestChunkedTransfer_NewKeyResets(t *testing.T) {
	p, sink, clk := newTestPipeline()

	p.HandleChange(chunkEvent("/tmp/first", 0, 2, "x"))
	p.HandleChange(chunkEvent("/tmp/second", 1, 2, "y"))
	p.HandleChange(chunkEvent("/tmp/first", 1, 2, "x"))
	clk.Advance(DefaultWindow)

	assert.Empty(t, sink.all(), "each switch discards the other transfer")
}

func TestChunkedTransfer_InvalidChunkReported(t *testing.T) {
	var slot apperr.Slot
	p, sink, clk := newTestPipeline(WithReporter(&slot))

	bad := content.Record{Format: content.FileContent{
		OriginalPath: "/tmp/bad",
		Chunks:       []content.Chunk{{Index: 5, TotalChunks: 2, Complete: true}},
	}}
	p.HandleChange(bad)
	clk.Advance(DefaultWindow)

	assert.Empty(t, sink.all())
	require.NotNil(t, slot.Current())
	assert.Equal(t, apperr.CodeInvalidData, slot.Current().Code)
}

func TestTransferProgress(t *testing.T) {
	st := content.ChunkStatus{Fraction: 1, BytesProcessed: 50, Received: 5, TotalChunks: 5, Complete: true}

	pr := transferProgress(st, 0, 2*time.Second)

	assert.Equal(t, int64(50), pr.TotalBytes)
	require.NotNil(t, pr.Speed)
	assert.InDelta(t, 25.0, *pr.Speed, 1e-9)
	require.NotNil(t, pr.ETA)
	assert.Equal(t, time.Duration(0), *pr.ETA)
}

func TestChunkedTransfer_CompletedProgressVisibleUntilStored(t *testing.T) {
	p, sink, clk := newTestPipeline()

	p.HandleChange(chunkEvent("/tmp/f", 0, 2, "ab"))
	p.HandleChange(chunkEvent("/tmp/f", 1, 2, "cd"))
	require.NotNil(t, p.CurrentProgress())
	assert.Equal(t, 1.0, p.CurrentProgress().Fraction)

	clk.Advance(DefaultWindow)
	require.Len(t, sink.all(), 1)
	assert.Nil(t, p.CurrentProgress())
}

func TestNativeProgressSurvivesTransferDelivery(t *testing.T) {
	p, sink, clk := newTestPipeline()

	p.HandleChange(chunkEvent("/tmp/f", 0, 1, "ab"))
	p.HandleProgress(content.Progress{Operation: "upload", Fraction: 0.5})
	clk.Advance(DefaultWindow)

	require.Len(t, sink.all(), 1)
	got := p.CurrentProgress()
	require.NotNil(t, got)
	assert.Equal(t, "upload", got.Operation)
}
