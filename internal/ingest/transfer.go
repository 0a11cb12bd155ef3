package ingest

import (
	"time"

	"github.com/yiblet/cliphist/internal/apperr"
	"github.com/yiblet/cliphist/internal/content"
)

// transferKey identifies one chunked transfer. Only one transfer is
// assembled at a time; a fragment with a different key starts over.
type transferKey struct {
	path        string
	totalSize   int64
	totalChunks int
}

type transfer struct {
	key     transferKey
	meta    content.FileContent
	chunks  *content.ChunkSet
	started time.Time
}

func keyOf(fc content.FileContent) transferKey {
	total := 0
	for _, c := range fc.Chunks {
		if c.TotalChunks > total {
			total = c.TotalChunks
		}
	}
	return transferKey{path: fc.OriginalPath, totalSize: fc.TotalSize, totalChunks: total}
}

// receive merges the fragments of fc into the current transfer and updates
// the progress slot. It returns the assembled record once every chunk has
// arrived.
func (p *Pipeline) receive(r content.Record, fc content.FileContent) (content.Record, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	key := keyOf(fc)
	if p.transfer == nil || p.transfer.key != key {
		if p.transfer != nil {
			p.log.Info("resetting chunked transfer", "previous", p.transfer.key.path, "next", key.path)
		}
		p.transfer = &transfer{key: key, chunks: content.NewChunkSet(), started: now}
	}
	t := p.transfer
	t.meta = fc

	for _, c := range fc.Chunks {
		if err := t.chunks.Put(c); err != nil {
			p.log.Warn("dropping invalid chunk", "path", fc.OriginalPath, "index", c.Index, "error", err)
			if p.reporter != nil {
				p.reporter.Report(apperr.New(apperr.CodeInvalidData, apperr.SeverityWarning, now, err).
					WithContext("path", fc.OriginalPath))
			}
		}
	}

	status := t.chunks.Status()
	pr := transferProgress(status, fc.TotalSize, now.Sub(t.started))
	p.progress = &pr

	if !status.Complete {
		return content.Record{}, false
	}

	p.transfer = nil
	assembled := t.meta
	assembled.Chunks = t.chunks.Chunks()
	r.Format = assembled
	return r, true
}

// transferProgress derives a progress update from a chunk status. Speed and
// ETA are only known once some time has passed and bytes have arrived.
func transferProgress(st content.ChunkStatus, totalSize int64, elapsed time.Duration) content.Progress {
	total := totalSize
	if total < st.BytesProcessed {
		total = st.BytesProcessed
	}
	pr := content.Progress{
		Operation:      OperationReceive,
		Fraction:       st.Fraction,
		BytesProcessed: st.BytesProcessed,
		TotalBytes:     total,
	}
	if elapsed <= 0 || st.BytesProcessed == 0 {
		return pr
	}

	speed := float64(st.BytesProcessed) / elapsed.Seconds()
	pr.Speed = &speed
	remaining := total - st.BytesProcessed
	if st.Complete {
		remaining = 0
	}
	eta := time.Duration(float64(remaining) / speed * float64(time.Second))
	pr.ETA = &eta
	return pr
}
