// Package history keeps the bounded, newest-first clipboard history and the
// filtered view derived from it.
package history

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/yiblet/cliphist/internal/apperr"
	"github.com/yiblet/cliphist/internal/content"
	"github.com/yiblet/cliphist/internal/filter"
)

const (
	DefaultCapacity = 100
	MaxCapacity     = 10000
)

// Native is the part of the native clipboard service the store drives.
type Native interface {
	ClearHistory(ctx context.Context) error
	Write(ctx context.Context, r content.Record) error
}

// View is a consistent snapshot of the store. Filtered is always exactly
// filter.Apply(History, Filter). The slices are shared and must not be
// modified.
type View struct {
	History  []content.Record
	Filtered []content.Record
	Filter   filter.Spec
}

// Option configures a Store.
type Option func(*Store)

// WithCapacity sets the maximum number of records kept. Values outside
// [1, MaxCapacity] fall back to DefaultCapacity.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n <= 0 || n > MaxCapacity {
			n = DefaultCapacity
		}
		s.capacity = n
	}
}

// WithNative sets the native service used by ClearHistory and
// CopyToClipboard.
func WithNative(n Native) Option {
	return func(s *Store) {
		s.native = n
	}
}

// WithReporter sets where native failures are reported.
func WithReporter(r apperr.Reporter) Option {
	return func(s *Store) {
		s.reporter = r
	}
}

// WithOnChange registers a hook called after every mutation with the new
// view. Calls are serialized; the hook must not call back into the store.
func WithOnChange(fn func(View)) Option {
	return func(s *Store) {
		s.onChange = fn
	}
}

// WithNow sets the time source used to stamp reported errors.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store is the clipboard history. Every mutation replaces the history and
// filtered slices together under one lock, so readers never observe one
// without the other.
type Store struct {
	mu       sync.RWMutex
	capacity int
	history  []content.Record
	filtered []content.Record
	spec     filter.Spec

	native   Native
	reporter apperr.Reporter
	onChange func(View)
	now      func() time.Time
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		capacity: DefaultCapacity,
		history:  []content.Record{},
		filtered: []content.Record{},
		spec:     filter.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore replaces the history and filter without invoking the change
// hook. It is used when loading persisted state.
func (s *Store) Restore(records []content.Record, spec filter.Spec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = s.truncate(dedupe(records))
	s.spec = spec.Clone()
	s.filtered = filter.Apply(s.history, s.spec)
}

// Append adds r as the newest record, dropping the oldest records beyond
// capacity. A record already present under the same ID is replaced.
func (s *Store) Append(r content.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]content.Record, 0, len(s.history)+1)
	next = append(next, r)
	for _, existing := range s.history {
		if existing.ID != r.ID {
			next = append(next, existing)
		}
	}
	s.commit(next)
}

// Merge inserts records whose IDs are not yet present, keeping the history
// newest-first by timestamp and bounded by capacity.
func (s *Store) Merge(records []content.Record) {
	if len(records) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(s.history))
	next := make([]content.Record, 0, len(s.history)+len(records))
	for _, r := range s.history {
		seen[r.ID] = true
		next = append(next, r)
	}
	added := 0
	for _, r := range records {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		next = append(next, r)
		added++
	}
	if added == 0 {
		return
	}

	sort.SliceStable(next, func(i, j int) bool {
		return next[i].Timestamp.After(next[j].Timestamp)
	})
	s.commit(next)
}

// ToggleFavorite flips the favorite flag of the record with the given ID.
// It reports whether the record was found; a missing ID is a no-op.
func (s *Store) ToggleFavorite(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return false
	}

	next := make([]content.Record, len(s.history))
	copy(next, s.history)
	next[idx].Favorite = !next[idx].Favorite
	s.commit(next)
	return true
}

// Delete removes the record with the given ID. It reports whether a record
// was removed; deleting a missing ID is a no-op.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return false
	}

	next := make([]content.Record, 0, len(s.history)-1)
	next = append(next, s.history[:idx]...)
	next = append(next, s.history[idx+1:]...)
	s.commit(next)
	return true
}

// SetFilter merges p into the current filter and recomputes the view.
func (s *Store) SetFilter(p filter.Patch) filter.Spec {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.spec = filter.Merge(s.spec, p)
	s.commit(s.history)
	return s.spec.Clone()
}

// ClearHistory empties the local history and then asks the native service
// to purge its own. The local clear happens even when the native call
// fails; the failure is reported and returned.
func (s *Store) ClearHistory(ctx context.Context) error {
	s.mu.Lock()
	s.commit([]content.Record{})
	s.mu.Unlock()

	if s.native == nil {
		return nil
	}
	if err := s.native.ClearHistory(ctx); err != nil {
		d := apperr.New(apperr.Classify(err, apperr.CodeWriteFailed), apperr.SeverityWarning, s.now(), err).
			WithContext("operation", "clear_history").
			WithRetry(s.ClearHistory)
		s.report(d)
		return d
	}
	return nil
}

// CopyToClipboard writes r back to the system clipboard. History is never
// modified; failures are reported with a retry bound to the same record.
func (s *Store) CopyToClipboard(ctx context.Context, r content.Record) error {
	if s.native == nil {
		return fmt.Errorf("no native clipboard configured")
	}
	if err := s.native.Write(ctx, r); err != nil {
		d := apperr.New(apperr.Classify(err, apperr.CodeCopyFailed), apperr.SeverityError, s.now(), err).
			WithContext("id", r.ID).
			WithRetry(func(ctx context.Context) error {
				return s.CopyToClipboard(ctx, r)
			})
		s.report(d)
		return d
	}
	return nil
}

// Get returns the record with the given ID.
func (s *Store) Get(id string) (content.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return content.Record{}, false
	}
	return s.history[idx], true
}

// View returns the current history, filtered view and filter together.
func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return View{History: s.history, Filtered: s.filtered, Filter: s.spec.Clone()}
}

// History returns the records newest first.
func (s *Store) History() []content.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history
}

// Filtered returns the records matching the current filter, newest first.
func (s *Store) Filtered() []content.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filtered
}

// Filter returns a copy of the current filter.
func (s *Store) Filter() filter.Spec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.spec.Clone()
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// Capacity returns the configured maximum number of records.
func (s *Store) Capacity() int {
	return s.capacity
}

// commit installs next as the history, recomputes the filtered view and
// runs the change hook. Callers hold s.mu.
func (s *Store) commit(next []content.Record) {
	s.history = s.truncate(next)
	s.filtered = filter.Apply(s.history, s.spec)
	if s.onChange != nil {
		s.onChange(View{History: s.history, Filtered: s.filtered, Filter: s.spec.Clone()})
	}
}

func (s *Store) truncate(records []content.Record) []content.Record {
	if len(records) > s.capacity {
		return records[:s.capacity:s.capacity]
	}
	return records
}

func (s *Store) indexOf(id string) int {
	for i, r := range s.history {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) report(d *apperr.Details) {
	if s.reporter != nil {
		s.reporter.Report(d)
	}
}

func dedupe(records []content.Record) []content.Record {
	seen := make(map[string]bool, len(records))
	out := make([]content.Record, 0, len(records))
	for _, r := range records {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out
}
