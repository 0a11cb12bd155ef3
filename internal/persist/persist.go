// Package persist saves and restores the clipboard history as a single
// versioned document. The document is stored under one name by a pluggable
// backend; see the memstore, filestore, dbstore, boltstore and s3store
// subpackages.
//
// Loading never fails: a missing, unreadable or unknown document yields an
// empty state, and individual entries that cannot be decoded are skipped.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yiblet/cliphist/internal/content"
)

const (
	// RecordName is the name the document is stored under.
	RecordName = "clipboard-storage"

	// CurrentVersion is the document version written by Save.
	CurrentVersion = 2
)

// ErrNotFound is returned by a backend when no document has been saved.
var ErrNotFound = errors.New("persist: record not found")

// Store is a backend holding one opaque document.
type Store interface {
	// Load returns the saved document, or ErrNotFound.
	Load(ctx context.Context) ([]byte, error)

	// Save replaces the saved document.
	Save(ctx context.Context, data []byte) error

	// Close releases any resources held by the backend.
	Close() error
}

// State is the persisted part of the engine: the history entries, newest
// first, and the free-text search of the filter.
type State struct {
	Entries []content.Record
	Search  string
}

// Empty returns the state used when nothing valid was persisted.
func Empty() State {
	return State{Entries: []content.Record{}}
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger used to report degraded loads.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		a.log = l
	}
}

// WithIDs sets the generator used for legacy entries without an ID.
func WithIDs(gen func() string) Option {
	return func(a *Adapter) {
		a.newID = gen
	}
}

// WithNow sets the time assigned to legacy entries without a timestamp.
func WithNow(now func() time.Time) Option {
	return func(a *Adapter) {
		a.now = now
	}
}

// Adapter converts State to and from the stored document.
type Adapter struct {
	store Store
	log   *slog.Logger
	newID func() string
	now   func() time.Time
}

// NewAdapter creates an adapter over store.
func NewAdapter(store Store, opts ...Option) *Adapter {
	a := &Adapter{
		store: store,
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		newID: func() string {
			return uuid.Must(uuid.NewV7()).String()
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Load reads the persisted state. It never fails; anything that cannot be
// read degrades to Empty.
func (a *Adapter) Load(ctx context.Context) State {
	data, err := a.store.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		return Empty()
	}
	if err != nil {
		a.log.Warn("failed to load persisted history, starting empty", "error", err)
		return Empty()
	}

	st, err := a.Decode(data)
	if err != nil {
		a.log.Warn("discarding unreadable persisted history", "error", err)
		return Empty()
	}
	return st
}

// Save writes st as a current-version document.
func (a *Adapter) Save(ctx context.Context, st State) error {
	data, err := Encode(st)
	if err != nil {
		return err
	}
	if err := a.store.Save(ctx, data); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}

// Close closes the backend.
func (a *Adapter) Close() error {
	return a.store.Close()
}

type filterDoc struct {
	Search string `json:"search"`
}

type entryDoc struct {
	ID        string          `json:"id"`
	Format    json.RawMessage `json:"format"`
	Timestamp string          `json:"timestamp"`
	Favorite  bool            `json:"favorite"`
}

type document struct {
	Version int        `json:"version"`
	Entries []entryDoc `json:"entries"`
	Filter  filterDoc  `json:"filter"`
}

// Encode serializes st as a current-version document.
func Encode(st State) ([]byte, error) {
	doc := document{
		Version: CurrentVersion,
		Entries: make([]entryDoc, 0, len(st.Entries)),
		Filter:  filterDoc{Search: st.Search},
	}
	for _, r := range st.Entries {
		format, err := EncodeVariant(r.Format)
		if err != nil {
			return nil, fmt.Errorf("failed to encode entry %s: %w", r.ID, err)
		}
		doc.Entries = append(doc.Entries, entryDoc{
			ID:        r.ID,
			Format:    format,
			Timestamp: r.Timestamp.UTC().Format(time.RFC3339Nano),
			Favorite:  r.Favorite,
		})
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode history document: %w", err)
	}
	return data, nil
}
