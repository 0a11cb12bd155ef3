package sysboard

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// writeText writes text using platform commands. On macOS it uses pbcopy,
// on Linux it uses xclip or xsel as a fallback.
func writeText(ctx context.Context, data []byte) error {
	switch runtime.GOOS {
	case "darwin":
		if err := writeWithCommand(ctx, data, "pbcopy"); err != nil {
			return fmt.Errorf("failed to run pbcopy: %w", err)
		}
		return nil
	case "linux":
		// Try xclip first
		if err := writeWithCommand(ctx, data, "xclip", "-selection", "clipboard"); err == nil {
			return nil
		}
		// Fall back to xsel
		if err := writeWithCommand(ctx, data, "xsel", "--clipboard", "--input"); err != nil {
			return fmt.Errorf("failed to write clipboard (tried xclip and xsel): %w", err)
		}
		return nil
	default:
		return fmt.Errorf("clipboard operations not supported on %s", runtime.GOOS)
	}
}

// writeWithCommand executes a command with data as stdin
func writeWithCommand(ctx context.Context, data []byte, name string, args ...string) error {
	if _, err := exec.LookPath(name); err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(data)
	return cmd.Run()
}
