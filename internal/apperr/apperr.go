// Package apperr defines the structured errors surfaced to the presentation
// layer and the single slot that holds the most recent one.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/yiblet/cliphist/internal/content"
)

// Code identifies an error kind.
type Code string

const (
	CodeMonitoringStartFailed Code = "MONITORING_START_FAILED"
	CodeCopyFailed            Code = "COPY_FAILED"
	CodeWriteFailed           Code = "WRITE_FAILED"
	CodePermissionDenied      Code = "PERMISSION_DENIED"
	CodeInvalidData           Code = "INVALID_DATA"
	CodeNetworkError          Code = "NETWORK_ERROR"
)

// Message returns the human readable description of a code.
func (c Code) Message() string {
	switch c {
	case CodeMonitoringStartFailed:
		return "Failed to start clipboard monitoring"
	case CodeCopyFailed:
		return "Failed to copy content to clipboard"
	case CodeWriteFailed:
		return "Failed to write content to clipboard"
	case CodePermissionDenied:
		return "Permission denied to access clipboard"
	case CodeInvalidData:
		return "Invalid clipboard data format"
	case CodeNetworkError:
		return "Network connection error"
	default:
		return string(c)
	}
}

// Severity grades how disruptive an error is.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeverityFatal   Severity = "fatal"
)

// Sentinel causes that native services and backends wrap so that Classify
// can map them onto a kind.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNetwork          = errors.New("network unavailable")
)

// Details is a structured error. Retry, when set, re-invokes the command
// that failed; it is only ever called on explicit request.
type Details struct {
	Code      Code
	Message   string
	Severity  Severity
	Timestamp time.Time
	Context   map[string]string
	Retry     func(ctx context.Context) error
	Cause     error
}

// Error implements the error interface.
func (d *Details) Error() string {
	if d.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", d.Code, d.Message, d.Cause)
	}
	return fmt.Sprintf("%s: %s", d.Code, d.Message)
}

// Unwrap returns the underlying cause.
func (d *Details) Unwrap() error {
	return d.Cause
}

// New builds Details for code at time now. The cause text is recorded in
// Context under "error".
func New(code Code, severity Severity, now time.Time, cause error) *Details {
	d := &Details{
		Code:      code,
		Message:   code.Message(),
		Severity:  severity,
		Timestamp: now,
		Context:   map[string]string{},
		Cause:     cause,
	}
	if cause != nil {
		d.Context["error"] = cause.Error()
	}
	return d
}

// WithContext records a key/value pair and returns d.
func (d *Details) WithContext(key, value string) *Details {
	d.Context[key] = value
	return d
}

// WithRetry binds a retry action and returns d.
func (d *Details) WithRetry(retry func(ctx context.Context) error) *Details {
	d.Retry = retry
	return d
}

// Classify maps err onto an error kind, returning fallback when nothing
// more specific applies.
func Classify(err error, fallback Code) Code {
	var d *Details
	switch {
	case err == nil:
		return fallback
	case errors.As(err, &d):
		return d.Code
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, os.ErrPermission):
		return CodePermissionDenied
	case errors.Is(err, content.ErrInvalidChunk), errors.Is(err, content.ErrIncompleteTransfer):
		return CodeInvalidData
	case errors.Is(err, ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return CodeNetworkError
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return CodeNetworkError
	}
	return fallback
}

// Reporter receives structured errors.
type Reporter interface {
	Report(d *Details)
}

// Slot holds the most recent error. A new report replaces the previous
// one; there is no queue.
type Slot struct {
	mu      sync.Mutex
	current *Details
}

// Report stores d as the current error.
func (s *Slot) Report(d *Details) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = d
}

// Current returns the current error, or nil.
func (s *Slot) Current() *Details {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Clear empties the slot.
func (s *Slot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}
