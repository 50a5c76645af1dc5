// Package evidence writes the artifacts a scenario leaves behind: screenshots,
// the page's console output and the calls it made against the bridge.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/bridgecheck/api/schemas"
	"github.com/xkilldash9x/bridgecheck/internal/failures"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Screenshotter renders the current page as PNG bytes.
type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// Capture writes a PNG of page to path, creating parent directories. An
// existing file is replaced. Every failure is a CaptureError naming path.
func Capture(ctx context.Context, page Screenshotter, path string) error {
	if page == nil {
		return &failures.CaptureError{Path: path, Err: errors.New("no page to capture")}
	}
	png, err := page.Screenshot(ctx)
	if err != nil {
		return &failures.CaptureError{Path: path, Err: err}
	}
	if len(png) == 0 {
		return &failures.CaptureError{Path: path, Err: errors.New("empty image")}
	}
	if err := writeFile(path, png); err != nil {
		return &failures.CaptureError{Path: path, Err: err}
	}
	return nil
}

// WriteConsoleLog writes one line per console entry.
func WriteConsoleLog(path string, logs []schemas.ConsoleLog) error {
	var b strings.Builder
	for _, l := range logs {
		fmt.Fprintf(&b, "%s [%s]", l.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"), l.Type)
		if l.Source != "" {
			fmt.Fprintf(&b, " (%s)", l.Source)
		}
		b.WriteString(" ")
		b.WriteString(l.Text)
		if l.URL != "" {
			fmt.Fprintf(&b, " @ %s", l.URL)
			if l.Line > 0 {
				fmt.Fprintf(&b, ":%d", l.Line)
			}
		}
		b.WriteString("\n")
	}
	if err := writeFile(path, []byte(b.String())); err != nil {
		return &failures.CaptureError{Path: path, Err: err}
	}
	return nil
}

// WriteBridgeCalls writes the call log as indented JSON.
func WriteBridgeCalls(path string, calls []schemas.BridgeCall) error {
	if calls == nil {
		calls = []schemas.BridgeCall{}
	}
	data, err := json.MarshalIndent(calls, "", "  ")
	if err != nil {
		return &failures.CaptureError{Path: path, Err: fmt.Errorf("failed to encode bridge calls: %w", err)}
	}
	if err := writeFile(path, append(data, '\n')); err != nil {
		return &failures.CaptureError{Path: path, Err: err}
	}
	return nil
}

// writeFile replaces path through a temporary file in the same directory, so
// a reader never sees a partial artifact.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to set artifact permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return nil
}
