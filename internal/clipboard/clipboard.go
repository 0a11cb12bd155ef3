// Package clipboard defines the contract of the native clipboard service
// the engine consumes. Implementations live in sysboard (system clipboard)
// and mockboard (scriptable fake).
package clipboard

import (
	"context"

	"github.com/yiblet/cliphist/internal/content"
)

// ChangeHandler is called when the native service observes new clipboard
// content.
type ChangeHandler func(content.Record)

// ProgressHandler is called with updates of long running native
// operations.
type ProgressHandler func(content.Progress)

// Unsubscribe removes a handler. After it returns the handler is not
// called again. It is safe to call more than once.
type Unsubscribe func()

// Service is the native clipboard service.
type Service interface {
	// SubscribeChange registers a change handler.
	SubscribeChange(h ChangeHandler) (Unsubscribe, error)

	// SubscribeProgress registers a progress handler.
	SubscribeProgress(h ProgressHandler) (Unsubscribe, error)

	// Start begins observing the clipboard.
	Start(ctx context.Context) error

	// Stop ends observation. Redundant calls must not fail.
	Stop(ctx context.Context) error

	// ReadHistory returns the history known to the native side.
	ReadHistory(ctx context.Context) ([]content.Record, error)

	// ClearHistory purges the native side's history.
	ClearHistory(ctx context.Context) error

	// Write places a record's payload on the system clipboard.
	Write(ctx context.Context, r content.Record) error
}
