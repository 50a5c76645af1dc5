// Package bridge builds and installs the in-page stand-in for the desktop
// host's IPC object, and routes the calls it reports back to Go.
package bridge

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/bridgecheck/internal/config"
	"github.com/xkilldash9x/bridgecheck/internal/fixtures"
)

// Sorted map keys keep the generated script byte-stable between runs.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

//go:embed bridge.js
var scriptTemplate string

// ConfigPlaceholder is replaced in the template with the JSON configuration.
const ConfigPlaceholder = "/*{{BRIDGE_CONFIG}}*/"

// StateGlobal is the window property the script keeps its own state under.
const StateGlobal = "__bridgecheck"

// Options shape the stand-in independently of the fixture data.
type Options struct {
	// GlobalPath is the dotted path under window, e.g. "electron.ipcRenderer".
	GlobalPath     string
	BindingName    string
	DynamicTimeout time.Duration
	ConsoleLog     bool
}

// OptionsFromConfig maps the bridge configuration section onto Options.
func OptionsFromConfig(cfg config.BridgeConfig) Options {
	return Options{
		GlobalPath:     cfg.GlobalPath,
		BindingName:    cfg.BindingName,
		DynamicTimeout: cfg.DynamicTimeout,
		ConsoleLog:     cfg.ConsoleLog,
	}
}

// scriptConfig is what the template sees as `cfg`.
type scriptConfig struct {
	GlobalPath       []string       `json:"globalPath"`
	Binding          string         `json:"binding"`
	Static           map[string]any `json:"static"`
	Dynamic          []string       `json:"dynamic"`
	DynamicTimeoutMs int64          `json:"dynamicTimeoutMs"`
	ConsoleLog       bool           `json:"consoleLog"`
}

// BuildScript renders template with the spec's static table and the options.
func BuildScript(template string, spec *fixtures.Spec, opts Options) (string, error) {
	if template == "" {
		return "", fmt.Errorf("template is empty")
	}
	if !strings.Contains(template, ConfigPlaceholder) {
		return "", fmt.Errorf("template does not contain the required placeholder: %s", ConfigPlaceholder)
	}
	segments, err := splitPath(opts.GlobalPath)
	if err != nil {
		return "", err
	}
	if opts.BindingName == "" {
		return "", fmt.Errorf("binding name is required")
	}
	if spec == nil {
		spec = fixtures.NewSpec()
	}

	static, dynamic := spec.StaticTable()
	if dynamic == nil {
		dynamic = []string{}
	}
	timeout := opts.DynamicTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	cfgJSON, err := json.Marshal(scriptConfig{
		GlobalPath:       segments,
		Binding:          opts.BindingName,
		Static:           static,
		Dynamic:          dynamic,
		DynamicTimeoutMs: timeout.Milliseconds(),
		ConsoleLog:       opts.ConsoleLog,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode bridge config: %w", err)
	}
	return strings.Replace(template, ConfigPlaceholder, string(cfgJSON), 1), nil
}

// Script renders the embedded template.
func Script(spec *fixtures.Spec, opts Options) (string, error) {
	return BuildScript(scriptTemplate, spec, opts)
}

func splitPath(p string) ([]string, error) {
	if p == "" {
		return nil, fmt.Errorf("global path is required")
	}
	segments := strings.Split(p, ".")
	for _, s := range segments {
		if s == "" {
			return nil, fmt.Errorf("global path %q has an empty segment", p)
		}
	}
	return segments, nil
}

// Install registers the reporting binding and schedules script to run in
// every new document ahead of the page's own scripts. It must run before the
// first navigation.
func Install(script, bindingName string, logger *zap.Logger) chromedp.Tasks {
	return chromedp.Tasks{
		runtime.AddBinding(bindingName),
		chromedp.ActionFunc(func(ctx context.Context) error {
			id, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			if err != nil {
				return fmt.Errorf("failed to register bridge script: %w", err)
			}
			logger.Debug("Bridge script registered", zap.String("script_id", string(id)), zap.Int("bytes", len(script)))
			return nil
		}),
	}
}

// Probe is what the page reports about the stand-in after navigation.
type Probe struct {
	Installed        bool   `json:"installed"`
	Reachable        bool   `json:"reachable"`
	ScriptsAtInstall int    `json:"scriptsAtInstall"`
	ReadyState       string `json:"readyState"`
	Calls            int    `json:"calls"`
}

// ProbeExpression returns a JS expression evaluating to a Probe.
func ProbeExpression(globalPath string) string {
	segments, _ := json.Marshal(strings.Split(globalPath, "."))
	return fmt.Sprintf(`(function () {
  var s = window.%s;
  var o = window;
  var path = %s;
  for (var i = 0; i < path.length && o; i++) { o = o[path[i]]; }
  var reachable = !!o && typeof o.invoke === 'function' && typeof o.send === 'function';
  if (!s) { return { installed: false, reachable: reachable, scriptsAtInstall: 0, readyState: '', calls: 0 }; }
  return { installed: true, reachable: reachable, scriptsAtInstall: s.scriptsAtInstall, readyState: s.readyStateAtInstall, calls: s.calls };
})()`, StateGlobal, segments)
}

// Check explains why a probe shows the stand-in arrived too late or not at
// all. It returns "" when installation preceded every page script.
func (p Probe) Check() string {
	switch {
	case !p.Installed:
		return "bridge script never ran in the document"
	case !p.Reachable:
		return "bridge object is not reachable at its global path"
	case p.ScriptsAtInstall > 0 || p.ReadyState != "loading":
		return fmt.Sprintf("bridge installed after page scripts started (scripts=%d readyState=%q)", p.ScriptsAtInstall, p.ReadyState)
	}
	return ""
}

// ResolveExpression returns the JS that settles a pending dynamic invoke.
func ResolveExpression(id int64, value []byte) string {
	return fmt.Sprintf("window.%s.resolve(%d, %s)", StateGlobal, id, value)
}
