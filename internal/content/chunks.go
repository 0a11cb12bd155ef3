package content

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"sort"
)

var (
	ErrInvalidChunk       = errors.New("content: invalid chunk")
	ErrIncompleteTransfer = errors.New("content: chunked transfer is incomplete")
)

// ChunkStatus summarizes how much of a chunked transfer has arrived.
type ChunkStatus struct {
	Fraction       float64
	BytesProcessed int64
	Received       int
	TotalChunks    int
	Complete       bool
}

// ChunkProgress computes the completion of a set of fragments. Fragments are
// keyed by index (a later duplicate replaces an earlier one), so the result
// does not depend on arrival order. Fraction is exactly 1 only when every
// index in [0, TotalChunks) is present and marked complete.
func ChunkProgress(chunks []Chunk) ChunkStatus {
	total := 0
	for _, c := range chunks {
		if c.TotalChunks > total {
			total = c.TotalChunks
		}
	}
	if total == 0 {
		return ChunkStatus{}
	}

	latest := make(map[int]Chunk, len(chunks))
	for _, c := range chunks {
		if c.Index >= 0 && c.Index < total {
			latest[c.Index] = c
		}
	}

	st := ChunkStatus{TotalChunks: total}
	for _, c := range latest {
		if !c.Complete {
			continue
		}
		st.Received++
		st.BytesProcessed += int64(len(c.Data))
	}
	if st.Received == total {
		st.Fraction = 1
		st.Complete = true
	} else {
		st.Fraction = float64(st.Received) / float64(total)
	}
	return st
}

// ChunkSet accumulates the fragments of one transfer keyed by index.
// The zero value is not usable; call NewChunkSet.
type ChunkSet struct {
	total  int
	chunks map[int]Chunk
}

// NewChunkSet returns an empty set.
func NewChunkSet() *ChunkSet {
	return &ChunkSet{chunks: make(map[int]Chunk)}
}

// Put stores a fragment, replacing any fragment already held at its index.
// All fragments of a set must agree on TotalChunks.
func (s *ChunkSet) Put(c Chunk) error {
	if c.TotalChunks <= 0 {
		return fmt.Errorf("%w: total chunks %d", ErrInvalidChunk, c.TotalChunks)
	}
	if c.Index < 0 || c.Index >= c.TotalChunks {
		return fmt.Errorf("%w: index %d out of range [0,%d)", ErrInvalidChunk, c.Index, c.TotalChunks)
	}
	if s.total != 0 && s.total != c.TotalChunks {
		return fmt.Errorf("%w: total chunks %d, transfer has %d", ErrInvalidChunk, c.TotalChunks, s.total)
	}
	s.total = c.TotalChunks
	s.chunks[c.Index] = c
	return nil
}

// Total returns the number of fragments the transfer is made of, or 0 when
// nothing has been received.
func (s *ChunkSet) Total() int {
	return s.total
}

// Len returns the number of distinct indices held.
func (s *ChunkSet) Len() int {
	return len(s.chunks)
}

// Chunks returns the held fragments ordered by index.
func (s *ChunkSet) Chunks() []Chunk {
	out := make([]Chunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Index < out[j].Index
	})
	return out
}

// Status reports the progress of the transfer.
func (s *ChunkSet) Status() ChunkStatus {
	return ChunkProgress(s.Chunks())
}

// Complete reports whether every fragment has arrived complete.
func (s *ChunkSet) Complete() bool {
	return s.Status().Complete
}

// IsComplete reports whether every chunk of the transfer has arrived.
func (f FileContent) IsComplete() bool {
	return ChunkProgress(f.Chunks).Complete
}

// Payload reassembles the file bytes in index order. Chunks flagged as
// compressed are gunzipped individually; otherwise a compressed FileContent
// is gunzipped as a whole after concatenation.
func (f FileContent) Payload() ([]byte, error) {
	set := NewChunkSet()
	for _, c := range f.Chunks {
		if err := set.Put(c); err != nil {
			return nil, err
		}
	}
	if !set.Complete() {
		return nil, ErrIncompleteTransfer
	}

	var buf bytes.Buffer
	perChunk := false
	for _, c := range set.Chunks() {
		if !c.Compressed {
			buf.Write(c.Data)
			continue
		}
		perChunk = true
		data, err := gunzip(c.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to inflate chunk %d: %w", c.Index, err)
		}
		buf.Write(data)
	}

	if f.Compressed && !perChunk {
		data, err := gunzip(buf.Bytes())
		if err != nil {
			return nil, fmt.Errorf("failed to inflate payload: %w", err)
		}
		return data, nil
	}
	return buf.Bytes(), nil
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
