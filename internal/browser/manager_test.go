package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/bridgecheck/internal/browser/dom"
	"github.com/xkilldash9x/bridgecheck/internal/config"
	"github.com/xkilldash9x/bridgecheck/internal/failures"
	"github.com/xkilldash9x/bridgecheck/internal/fixtures"
)

func TestOpenRejectsUnbuildableBridge(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.BridgeCfg.BindingName = ""
	m := NewManager(cfg, zaptest.NewLogger(t))

	s, err := m.Open(context.Background(), fixtures.NewSpec())
	require.Error(t, err)
	assert.Nil(t, s)
	assert.Equal(t, failures.KindInjection, failures.Classify(err))

	opened, closed := m.Stats()
	assert.Zero(t, opened)
	assert.Zero(t, closed)
}

func TestOpenMissingBrowserIsLaunchFailure(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.BrowserCfg.ExecPath = filepath.Join(t.TempDir(), "no-such-chrome")
	cfg.HarnessCfg.LaunchTimeout = 10 * time.Second
	m := NewManager(cfg, zaptest.NewLogger(t))

	s, err := m.Open(context.Background(), fixtures.NewSpec())
	require.Error(t, err)
	assert.Nil(t, s)
	assert.Equal(t, failures.KindLaunch, failures.Classify(err))
	assert.Zero(t, m.Active())
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestSessionClosedDuringSetupIsCounted(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.HarnessCfg.CloseTimeout = time.Second
	m := NewManager(cfg, zaptest.NewLogger(t))

	// A launched session whose setup then fails is closed without ever
	// being registered.
	tabCtx, tabCancel := context.WithCancel(context.Background())
	var allocCancelled bool
	s := newSession(tabCtx, tabCancel, func() { allocCancelled = true }, cfg, m.logger)
	m.track(s)

	_ = s.Close(context.Background())
	assert.True(t, allocCancelled)

	opened, closed := m.Stats()
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, closed)
	assert.Zero(t, m.Active())
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "created", StateCreated.String())
	assert.Equal(t, "navigated", StateNavigated.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "state(9)", State(9).String())
}

// -- Browser-backed tests --

func chromeConfig(t *testing.T) *config.Config {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	cfg := config.NewDefaultConfig()
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"} {
		if path, err := exec.LookPath(name); err == nil {
			cfg.BrowserCfg.ExecPath = path
			return cfg
		}
	}
	t.Skip("no Chrome or Chromium binary on PATH")
	return nil
}

const testPage = `<!doctype html>
<html><head><title>Bridge page</title></head>
<body>
<div id="list">pending</div>
<button id="scan" style="width:120px;height:40px">Scan</button>
<div id="hovered"></div>
<script>
var api = window.electron.ipcRenderer;
var results = {};
function settle(key, p) {
  p.then(function (v) { results[key] = JSON.stringify(v); },
         function (e) { results[key] = 'rejected: ' + e; });
}
api.invoke('get-all-samples').then(function (rows) {
  document.getElementById('list').textContent = rows.map(function (r) { return r.name; }).join(',');
});
settle('unmapped', api.invoke('read-file-buffer', '/x'));
window.importAgain = function () {
  settle('dynamic', api.invoke('import-content', { type: 'folder', paths: [] }));
};
var scan = document.getElementById('scan');
scan.addEventListener('mouseenter', function () { document.getElementById('hovered').textContent = 'yes'; });
scan.addEventListener('click', function () {
  api.send('ondragstart', '/audio/Kick_01.wav');
  api.invoke('import-content', { type: 'folder', paths: [] }).then(function (res) {
    document.getElementById('list').textContent = res.files.map(function (f) { return f.name; }).join(',');
  });
});
</script>
</body></html>`

func TestSessionAgainstPage(t *testing.T) {
	cfg := chromeConfig(t)
	cfg.BridgeCfg.DynamicTimeout = 300 * time.Millisecond
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, testPage)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	m := NewManager(cfg, zaptest.NewLogger(t))
	s, err := m.Open(ctx, fixtures.SamplesSpec(fixtures.TwoSamples()))
	require.NoError(t, err)
	assert.Equal(t, StateCreated, s.State())

	require.NoError(t, s.Navigate(ctx, srv.URL))
	assert.Equal(t, StateNavigated, s.State())

	text := func() string {
		var out string
		require.NoError(t, s.Evaluate(ctx, `document.getElementById('list').textContent`, &out))
		return out
	}
	settled := func(key string) string {
		var out string
		require.NoError(t, s.Evaluate(ctx, `results[`+fmt.Sprintf("%q", key)+`] || ''`, &out))
		return out
	}
	assert.Eventually(t, func() bool { return text() == "Kick_01.wav,Snare_01.wav" }, 5*time.Second, 50*time.Millisecond)
	assert.Eventually(t, func() bool { return settled("unmapped") == "[]" }, 5*time.Second, 50*time.Millisecond,
		"unmapped channel resolves to an empty collection")

	require.NoError(t, s.Hover(ctx, dom.CSS("#scan")))
	var hovered string
	require.NoError(t, s.Evaluate(ctx, `document.getElementById('hovered').textContent`, &hovered))
	assert.Equal(t, "yes", hovered)

	require.NoError(t, s.Click(ctx, dom.Text("Scan")))
	assert.Eventually(t, func() bool { return text() == "Loop 120bpm Am.wav" }, 5*time.Second, 50*time.Millisecond)

	err = s.Click(ctx, dom.Text("Nowhere"))
	assert.Equal(t, failures.KindInteraction, failures.Classify(err))

	assert.Equal(t, 1, s.BridgeCallCount(fixtures.ChannelGetAllSamples))
	assert.Equal(t, 1, s.BridgeCallCount(fixtures.ChannelReadFileBuffer))
	assert.Equal(t, 1, s.BridgeCallCount(fixtures.ChannelImportContent))
	assert.Equal(t, 1, s.BridgeCallCount(fixtures.ChannelDragStart))
	calls := s.BridgeCalls()
	require.Len(t, calls, 4)
	assert.False(t, calls[1].Handled, "read-file-buffer has no rule")
	assert.False(t, calls[2].Handled, "ondragstart has no rule")

	// With replies withheld, a dynamic invoke still resolves to [] once
	// the dynamic timeout passes.
	s.dispatcher.Close()
	require.NoError(t, s.Evaluate(ctx, `window.importAgain()`, nil))
	assert.Eventually(t, func() bool { return settled("dynamic") == "[]" }, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, 2, s.BridgeCallCount(fixtures.ChannelImportContent))

	png, err := s.Screenshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])

	err = s.Navigate(ctx, srv.URL+"/missing")
	var navErr *failures.NavigationError
	require.ErrorAs(t, err, &navErr)
	assert.EqualValues(t, http.StatusNotFound, navErr.Status)

	// Nothing listens on port 1.
	err = s.Navigate(ctx, "http://127.0.0.1:1/")
	navErr = nil
	require.ErrorAs(t, err, &navErr)
	assert.Equal(t, "http://127.0.0.1:1/", navErr.URL)
	assert.Equal(t, failures.KindNavigation, failures.Classify(err))

	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx), "second close is a no-op")
	assert.Equal(t, StateClosed, s.State())
	assert.ErrorIs(t, s.Navigate(ctx, srv.URL), ErrSessionClosed)

	opened, closed := m.Stats()
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, closed)
}

func TestTextDirectlyInBodyIsFound(t *testing.T) {
	cfg := chromeConfig(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<!doctype html><html><body>Soundstarter</body></html>`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	m := NewManager(cfg, zaptest.NewLogger(t))
	s, err := m.Open(ctx, fixtures.NewSpec())
	require.NoError(t, err)
	defer s.Close(ctx)
	require.NoError(t, s.Navigate(ctx, srv.URL))

	var visible bool
	require.NoError(t, s.Evaluate(ctx, dom.Text("Soundstarter").VisibleExpr(), &visible))
	assert.True(t, visible)

	var count int
	require.NoError(t, s.Evaluate(ctx, dom.Text("Soundstarter").CountExpr(), &count))
	assert.Equal(t, 1, count)
}

func TestShutdownClosesLeftoverSessions(t *testing.T) {
	cfg := chromeConfig(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	m := NewManager(cfg, zaptest.NewLogger(t))
	s, err := m.Open(ctx, fixtures.NewSpec())
	require.NoError(t, err)
	require.Equal(t, 1, m.Active())

	require.NoError(t, m.Shutdown(ctx))
	assert.Zero(t, m.Active())
	assert.Equal(t, StateClosed, s.State())
}
