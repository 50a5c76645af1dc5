// Package scenario sequences page interactions into verification scripts
// and turns each run into exactly one classified outcome.
package scenario

import (
	"context"

	"github.com/xkilldash9x/bridgecheck/api/schemas"
	"github.com/xkilldash9x/bridgecheck/internal/browser"
	"github.com/xkilldash9x/bridgecheck/internal/browser/dom"
	"github.com/xkilldash9x/bridgecheck/internal/fixtures"
)

// Page is the browser surface a scenario drives.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Evaluate(ctx context.Context, expression string, res any) error
	Hover(ctx context.Context, target dom.Target) error
	Click(ctx context.Context, target dom.Target) error
	Screenshot(ctx context.Context) ([]byte, error)
	ConsoleLogs() []schemas.ConsoleLog
	BridgeCalls() []schemas.BridgeCall
	BridgeCallCount(channel string) int
	Close(ctx context.Context) error
}

// Launcher opens a page whose bridge answers from spec.
type Launcher interface {
	Open(ctx context.Context, spec *fixtures.Spec) (Page, error)
}

var _ Page = (*browser.Session)(nil)

type managerLauncher struct {
	m *browser.Manager
}

// BrowserLauncher opens pages as sessions of m.
func BrowserLauncher(m *browser.Manager) Launcher {
	return managerLauncher{m: m}
}

func (l managerLauncher) Open(ctx context.Context, spec *fixtures.Spec) (Page, error) {
	s, err := l.m.Open(ctx, spec)
	if err != nil {
		// Keep the interface nil rather than holding a nil *Session.
		return nil, err
	}
	return s, nil
}
