package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yiblet/cliphist/internal/apperr"
	"github.com/yiblet/cliphist/internal/clipboard/mockboard"
	"github.com/yiblet/cliphist/internal/content"
	"github.com/yiblet/cliphist/internal/filter"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func text(id, s string, offset int) content.Record {
	return content.Record{
		ID:        id,
		Format:    content.Text{Content: s},
		Timestamp: base.Add(time.Duration(offset) * time.Second),
	}
}

func ids(records []content.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

// assertConsistent checks the filtered view against a fresh evaluation.
func assertConsistent(t *testing.T, s *Store) {
	t.Helper()
	v := s.View()
	assert.Equal(t, ids(filter.Apply(v.History, v.Filter)), ids(v.Filtered))
	assert.LessOrEqual(t, len(v.History), s.Capacity())
}

func TestAppend_NewestFirstAndBounded(t *testing.T) {
	s := New(WithCapacity(3))

	for i, id := range []string{"A", "B", "C", "D"} {
		s.Append(text(id, id, i))
		assertConsistent(t, s)
	}

	assert.Equal(t, []string{"D", "C", "B"}, ids(s.History()))
	_, ok := s.Get("A")
	assert.False(t, ok, "oldest record should be evicted")
}

func TestAppend_ReplacesSameID(t *testing.T) {
	s := New()
	s.Append(text("a", "one", 0))
	s.Append(text("b", "two", 1))
	s.Append(text("a", "three", 2))

	assert.Equal(t, []string{"a", "b"}, ids(s.History()))
	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, content.Text{Content: "three"}, got.Format)
}

func TestWithCapacity_InvalidFallsBack(t *testing.T) {
	assert.Equal(t, DefaultCapacity, New(WithCapacity(0)).Capacity())
	assert.Equal(t, DefaultCapacity, New(WithCapacity(MaxCapacity+1)).Capacity())
	assert.Equal(t, 7, New(WithCapacity(7)).Capacity())
}

func TestDelete_Idempotent(t *testing.T) {
	s := New()
	s.Append(text("a", "one", 0))
	s.Append(text("b", "two", 1))

	assert.True(t, s.Delete("a"))
	assertConsistent(t, s)
	assert.False(t, s.Delete("a"))
	assert.False(t, s.Delete("missing"))
	assert.Equal(t, []string{"b"}, ids(s.History()))
}

func TestToggleFavorite(t *testing.T) {
	s := New()
	s.Append(text("a", "one", 0))
	s.Append(text("b", "two", 1))

	require.True(t, s.ToggleFavorite("a"))
	got, _ := s.Get("a")
	assert.True(t, got.Favorite)

	other, _ := s.Get("b")
	assert.False(t, other.Favorite)

	require.True(t, s.ToggleFavorite("a"))
	got, _ = s.Get("a")
	assert.False(t, got.Favorite)

	assert.False(t, s.ToggleFavorite("missing"))
}

func TestToggleFavorite_DoesNotMutatePreviousView(t *testing.T) {
	s := New()
	s.Append(text("a", "one", 0))
	before := s.History()

	s.ToggleFavorite("a")

	assert.False(t, before[0].Favorite)
}

func TestSetFilter_RecomputesView(t *testing.T) {
	s := New()
	s.Append(text("a", "hello world", 0))
	s.Append(text("b", "goodbye", 1))

	search := "HELLO"
	spec := s.SetFilter(filter.Patch{Search: &search})
	assert.Equal(t, "HELLO", spec.Search)
	assert.Equal(t, []string{"a"}, ids(s.Filtered()))
	assertConsistent(t, s)

	// New records are filtered against the current spec.
	s.Append(text("c", "hello again", 2))
	assert.Equal(t, []string{"c", "a"}, ids(s.Filtered()))
	assertConsistent(t, s)
}

func TestFavoritesFilterFollowsToggle(t *testing.T) {
	s := New()
	s.Append(text("a", "one", 0))
	s.Append(text("b", "two", 1))

	only := true
	s.SetFilter(filter.Patch{OnlyFavorites: &only})
	assert.Empty(t, s.Filtered())

	s.ToggleFavorite("a")
	assert.Equal(t, []string{"a"}, ids(s.Filtered()))
	assertConsistent(t, s)
}

func TestMerge(t *testing.T) {
	s := New(WithCapacity(4))
	s.Append(text("b", "b", 2))
	s.Append(text("d", "d", 4))

	s.Merge([]content.Record{
		text("a", "a", 1),
		text("c", "c", 3),
		text("d", "dup", 9),
		text("e", "e", 5),
	})

	assert.Equal(t, []string{"e", "d", "c", "b"}, ids(s.History()))
	got, _ := s.Get("d")
	assert.Equal(t, content.Text{Content: "d"}, got.Format, "existing record wins")
	assertConsistent(t, s)
}

func TestMerge_NothingNewSkipsHook(t *testing.T) {
	calls := 0
	s := New(WithOnChange(func(View) { calls++ }))
	s.Append(text("a", "a", 0))
	require.Equal(t, 1, calls)

	s.Merge([]content.Record{text("a", "again", 1)})
	s.Merge(nil)

	assert.Equal(t, 1, calls)
}

func TestRestore_DoesNotInvokeHook(t *testing.T) {
	calls := 0
	s := New(WithCapacity(2), WithOnChange(func(View) { calls++ }))

	s.Restore([]content.Record{text("a", "a", 3), text("a", "dup", 2), text("b", "b", 1), text("c", "c", 0)}, filter.Spec{Search: "b"})

	assert.Equal(t, 0, calls)
	assert.Equal(t, []string{"a", "b"}, ids(s.History()))
	assert.Equal(t, []string{"b"}, ids(s.Filtered()))
}

func TestOnChange_SeesConsistentView(t *testing.T) {
	var views []View
	s := New(WithOnChange(func(v View) { views = append(views, v) }))

	s.Append(text("a", "alpha", 0))
	s.Append(text("b", "beta", 1))
	search := "alp"
	s.SetFilter(filter.Patch{Search: &search})
	s.Delete("a")

	require.Len(t, views, 4)
	for _, v := range views {
		assert.Equal(t, ids(filter.Apply(v.History, v.Filter)), ids(v.Filtered))
	}
	assert.Empty(t, views[3].Filtered)
}

func TestClearHistory(t *testing.T) {
	board := mockboard.New()
	board.SetHistory([]content.Record{text("n", "native", 0)})
	s := New(WithNative(board))
	s.Append(text("a", "a", 0))

	require.NoError(t, s.ClearHistory(context.Background()))

	assert.Empty(t, s.History())
	assert.Empty(t, s.Filtered())
	native, err := board.ReadHistory(context.Background())
	require.NoError(t, err)
	assert.Empty(t, native)
}

func TestClearHistory_NativeFailureStillClearsLocally(t *testing.T) {
	board := mockboard.New()
	board.ClearErr = errors.New("native refused")
	var slot apperr.Slot
	s := New(WithNative(board), WithReporter(&slot))
	s.Append(text("a", "a", 0))

	err := s.ClearHistory(context.Background())
	require.Error(t, err)

	assert.Empty(t, s.History())
	current := slot.Current()
	require.NotNil(t, current)
	assert.Equal(t, apperr.CodeWriteFailed, current.Code)
	assert.Equal(t, apperr.SeverityWarning, current.Severity)
	assert.Equal(t, "clear_history", current.Context["operation"])
	require.NotNil(t, current.Retry)

	board.SetErrors(func(m *mockboard.MockClipboard) { m.ClearErr = nil })
	require.NoError(t, current.Retry(context.Background()))
	_, _, clears := board.Calls()
	assert.Equal(t, 2, clears)
}

func TestCopyToClipboard(t *testing.T) {
	board := mockboard.New()
	s := New(WithNative(board))
	r := text("a", "copy me", 0)
	s.Append(r)

	require.NoError(t, s.CopyToClipboard(context.Background(), r))

	written := board.Written()
	require.Len(t, written, 1)
	assert.Equal(t, "a", written[0].ID)
	assert.Equal(t, []string{"a"}, ids(s.History()))
}

func TestCopyToClipboard_FailureReportsWithoutMutation(t *testing.T) {
	board := mockboard.New()
	board.WriteErr = errors.New("clipboard busy")
	var slot apperr.Slot
	s := New(WithNative(board), WithReporter(&slot))
	r := text("a", "copy me", 0)
	s.Append(r)
	before := s.View()

	err := s.CopyToClipboard(context.Background(), r)
	require.Error(t, err)

	after := s.View()
	assert.Equal(t, ids(before.History), ids(after.History))
	current := slot.Current()
	require.NotNil(t, current)
	assert.Equal(t, apperr.CodeCopyFailed, current.Code)
	assert.Equal(t, "a", current.Context["id"])

	board.SetErrors(func(m *mockboard.MockClipboard) { m.WriteErr = nil })
	require.NoError(t, current.Retry(context.Background()))
	assert.Len(t, board.Written(), 1)
}

func TestCopyToClipboard_PermissionClassified(t *testing.T) {
	board := mockboard.New()
	board.WriteErr = apperr.ErrPermissionDenied
	var slot apperr.Slot
	s := New(WithNative(board), WithReporter(&slot))

	require.Error(t, s.CopyToClipboard(context.Background(), text("a", "x", 0)))
	require.NotNil(t, slot.Current())
	assert.Equal(t, apperr.CodePermissionDenied, slot.Current().Code)
}
