package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/yiblet/cliphist/internal/clipboard/mockboard"
	"github.com/yiblet/cliphist/internal/content"
	"github.com/yiblet/cliphist/internal/engine"
	"github.com/yiblet/cliphist/internal/filter"
	"github.com/yiblet/cliphist/internal/persist/memstore"
)

func main() {
	fmt.Println("cliphist Engine Demo")

	ctx := context.Background()
	board := mockboard.New()
	store := memstore.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	eng := engine.New(ctx, board, store,
		engine.WithCapacity(10),
		engine.WithDebounce(50*time.Millisecond),
		engine.WithLogger(logger),
	)

	board.SetHistory([]content.Record{
		{ID: "native-1", Format: content.Text{Content: "copied before cliphist started"}, Timestamp: time.Now().Add(-time.Minute)},
	})
	if err := eng.StartMonitoring(ctx); err != nil {
		log.Fatalf("Failed to start monitoring: %v", err)
	}
	fmt.Printf("Monitoring: %v, history after snapshot: %d\n\n", eng.IsMonitoring(), len(eng.History()))

	// A burst of changes inside one debounce window is stored once.
	fmt.Println("Emitting a burst of 5 changes:")
	for i := 1; i <= 5; i++ {
		board.Emit(content.Record{Format: content.Text{Content: fmt.Sprintf("draft %d", i)}})
	}
	time.Sleep(100 * time.Millisecond)
	fmt.Printf("  stored: %s\n\n", content.Summary(*eng.CurrentContent()))

	testContent := []content.Variant{
		content.Text{Content: "package main\n\nfunc main() {}"},
		content.HTML{Content: "<p>Hello <b>HTML</b></p>", PlainText: "Hello HTML"},
		content.Files{Files: []content.FileInfo{{Path: "/tmp/report.pdf", Name: "report.pdf"}}},
	}
	for _, v := range testContent {
		board.Emit(content.Record{Format: v})
		time.Sleep(100 * time.Millisecond)
	}

	// A chunked, compressed file transfer arrives out of order.
	fmt.Println("Receiving a chunked transfer:")
	parts := [][]byte{gzipped("first half, "), gzipped("second half")}
	for _, i := range []int{1, 0} {
		board.Emit(content.Record{Format: content.FileContent{
			OriginalPath: "/tmp/notes.txt",
			MimeType:     "text/plain",
			TotalSize:    int64(len(parts[0]) + len(parts[1])),
			Compressed:   true,
			Chunks:       []content.Chunk{{Index: i, TotalChunks: 2, Data: parts[i], Complete: true, Compressed: true}},
		}})
		if p := eng.CurrentProgress(); p != nil {
			fmt.Printf("  progress: %.0f%% (%d/%d bytes)\n", p.Fraction*100, p.BytesProcessed, p.TotalBytes)
		}
	}
	time.Sleep(100 * time.Millisecond)
	if fc, ok := eng.CurrentContent().Format.(content.FileContent); ok {
		payload, err := fc.Payload()
		if err != nil {
			log.Fatalf("Failed to reassemble transfer: %v", err)
		}
		fmt.Printf("  reassembled: %q\n\n", payload)
	}

	eng.StopMonitoring(ctx)

	fmt.Println("History (newest first):")
	for i, r := range eng.History() {
		fmt.Printf("%d. [%s] %-11s %s\n", i, r.Timestamp.Format("15:04:05"), r.Kind(), content.Summary(r))
	}

	latest := eng.History()[0]
	eng.ToggleFavorite(latest.ID)
	search := "hello"
	eng.SetFilter(filter.Patch{Search: &search})
	fmt.Printf("\nFiltered by %q:\n", search)
	for _, r := range eng.FilteredHistory() {
		fmt.Printf("  %s\n", content.Summary(r))
	}

	if err := eng.CopyToClipboard(ctx, latest); err != nil {
		log.Printf("Failed to copy: %v", err)
	}
	fmt.Printf("\nCopied back to clipboard: %s\n", content.Summary(board.Written()[0]))

	// A fresh engine over the same store restores history and search.
	reloaded := engine.New(ctx, mockboard.New(), store)
	fmt.Printf("Reloaded %d entries, search %q, %d saves\n",
		len(reloaded.History()), reloaded.Filter().Search, store.Saves())

	if err := eng.Close(ctx); err != nil {
		log.Printf("Failed to close engine: %v", err)
	}
	fmt.Printf("\nDemo complete! (Using in-memory store)\n")
}

func gzipped(s string) []byte {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte(s))
	zw.Close()
	return buf.Bytes()
}
