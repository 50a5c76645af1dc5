package evidence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/bridgecheck/api/schemas"
	"github.com/xkilldash9x/bridgecheck/internal/failures"
)

type fakePage struct {
	png []byte
	err error
}

func (f fakePage) Screenshot(context.Context) ([]byte, error) { return f.png, f.err }

var pngBytes = []byte("\x89PNG\r\n\x1a\nrest")

func TestCaptureCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verification", "nested", "app_screenshot.png")

	require.NoError(t, Capture(context.Background(), fakePage{png: pngBytes}, path))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestCaptureOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	require.NoError(t, Capture(context.Background(), fakePage{png: pngBytes}, path))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, got)
}

func TestCaptureFailures(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	cases := []struct {
		name string
		page Screenshotter
		path string
	}{
		{"screenshot error", fakePage{err: errors.New("target closed")}, filepath.Join(dir, "a.png")},
		{"empty image", fakePage{}, filepath.Join(dir, "b.png")},
		{"no page", nil, filepath.Join(dir, "c.png")},
		{"unwritable directory", fakePage{png: pngBytes}, filepath.Join(blocker, "d.png")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Capture(context.Background(), tc.page, tc.path)
			require.Error(t, err)

			var capErr *failures.CaptureError
			require.ErrorAs(t, err, &capErr)
			assert.Equal(t, tc.path, capErr.Path)
			assert.Equal(t, failures.KindCapture, failures.Classify(err))

			_, statErr := os.Stat(tc.path)
			assert.Error(t, statErr, "nothing written on failure")
		})
	}
}

func TestWriteConsoleLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app_console.log")
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, WriteConsoleLog(path, []schemas.ConsoleLog{
		{Type: "log", Timestamp: at, Text: "[bridge] invoke get-all-samples", Source: "console-api"},
		{Type: "exception", Timestamp: at, Text: "TypeError", Source: "runtime", URL: "http://localhost:5173/main.js", Line: 7},
	}))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"2025-03-01T12:00:00.000Z [log] (console-api) [bridge] invoke get-all-samples\n"+
			"2025-03-01T12:00:00.000Z [exception] (runtime) TypeError @ http://localhost:5173/main.js:7\n",
		string(got))
}

func TestWriteBridgeCalls(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty_bridge.json")
	require.NoError(t, WriteBridgeCalls(empty, nil))
	got, err := os.ReadFile(empty)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(got))

	path := filepath.Join(dir, "app_bridge.json")
	require.NoError(t, WriteBridgeCalls(path, []schemas.BridgeCall{
		{Seq: 1, Kind: schemas.BridgeInvoke, Channel: "get-all-samples", Handled: true},
	}))
	got, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(got), `"channel": "get-all-samples"`)
}

func TestLayout(t *testing.T) {
	l := Layout{Dir: "verification"}
	assert.Equal(t, filepath.Join("verification", "app_screenshot.png"), l.Path("app_screenshot.png"))
	assert.Equal(t, "/tmp/x.png", l.Path("/tmp/x.png"))
	assert.Equal(t, filepath.Join("verification", "app_error.png"), l.ErrorShot("app"))
	assert.Equal(t, filepath.Join("verification", "app_console.log"), l.ConsoleLog("app"))
	assert.Equal(t, filepath.Join("verification", "app_bridge.json"), l.BridgeCalls("app"))
}
