package apperr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yiblet/cliphist/internal/content"
)

func TestNew(t *testing.T) {
	now := time.Unix(1700000000, 0)
	cause := errors.New("boom")

	d := New(CodeCopyFailed, SeverityError, now, cause).WithContext("id", "r1")

	assert.Equal(t, CodeCopyFailed, d.Code)
	assert.Equal(t, "Failed to copy content to clipboard", d.Message)
	assert.Equal(t, SeverityError, d.Severity)
	assert.Equal(t, now, d.Timestamp)
	assert.Equal(t, "boom", d.Context["error"])
	assert.Equal(t, "r1", d.Context["id"])
	assert.ErrorIs(t, d, cause)
	assert.Contains(t, d.Error(), "COPY_FAILED")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"permission sentinel", fmt.Errorf("read: %w", ErrPermissionDenied), CodePermissionDenied},
		{"os permission", &os.PathError{Op: "open", Path: "/x", Err: os.ErrPermission}, CodePermissionDenied},
		{"invalid chunk", fmt.Errorf("merge: %w", content.ErrInvalidChunk), CodeInvalidData},
		{"network sentinel", ErrNetwork, CodeNetworkError},
		{"deadline", context.DeadlineExceeded, CodeNetworkError},
		{"details keep their code", New(CodeInvalidData, SeverityWarning, time.Now(), nil), CodeInvalidData},
		{"unknown uses fallback", errors.New("other"), CodeWriteFailed},
		{"nil uses fallback", nil, CodeWriteFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err, CodeWriteFailed))
		})
	}
}

func TestSlot_LastErrorWins(t *testing.T) {
	var s Slot
	assert.Nil(t, s.Current())

	first := New(CodeCopyFailed, SeverityError, time.Now(), nil)
	second := New(CodeNetworkError, SeverityWarning, time.Now(), nil)
	s.Report(first)
	s.Report(second)

	require.NotNil(t, s.Current())
	assert.Equal(t, CodeNetworkError, s.Current().Code)

	s.Clear()
	assert.Nil(t, s.Current())
}

func TestWithRetry(t *testing.T) {
	calls := 0
	d := New(CodeMonitoringStartFailed, SeverityError, time.Now(), nil).
		WithRetry(func(context.Context) error {
			calls++
			return nil
		})

	require.NotNil(t, d.Retry)
	require.NoError(t, d.Retry(context.Background()))
	assert.Equal(t, 1, calls)
}
