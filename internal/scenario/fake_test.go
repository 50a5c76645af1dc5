package scenario

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/xkilldash9x/bridgecheck/api/schemas"
	"github.com/xkilldash9x/bridgecheck/internal/browser/dom"
	"github.com/xkilldash9x/bridgecheck/internal/failures"
	"github.com/xkilldash9x/bridgecheck/internal/fixtures"
)

// fakePage models just enough of the application to answer the
// expressions the dom package generates.
type fakePage struct {
	mu sync.Mutex

	visible     map[string]bool
	rowSelector string
	rows        int
	onClick     map[string]func(p *fakePage)
	calls       []schemas.BridgeCall

	navigateErr   error
	screenshotErr error
	blockWaits    bool

	navigations int
	clicks      []string
	hovers      []string
	screenshots int
	closes      int
}

func newFakePage(visibleTexts ...string) *fakePage {
	p := &fakePage{visible: map[string]bool{}, onClick: map[string]func(*fakePage){}}
	for _, t := range visibleTexts {
		p.visible[t] = true
	}
	return p
}

func (p *fakePage) show(texts ...string) {
	for _, t := range texts {
		p.visible[t] = true
	}
}

func (p *fakePage) call(kind schemas.BridgeCallKind, channel string) {
	p.calls = append(p.calls, schemas.BridgeCall{Seq: len(p.calls) + 1, Kind: kind, Channel: channel, Handled: true})
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigations++
	if p.navigateErr != nil {
		return p.navigateErr
	}
	p.call(schemas.BridgeInvoke, fixtures.ChannelGetAllSamples)
	return nil
}

func (p *fakePage) Evaluate(ctx context.Context, expr string, res any) error {
	p.mu.Lock()
	block := p.blockWaits
	p.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	switch out := res.(type) {
	case *bool:
		for text, vis := range p.visible {
			t := dom.Text(text)
			switch expr {
			case t.VisibleExpr():
				*out = vis
				return nil
			case t.HiddenExpr():
				*out = !vis
				return nil
			}
		}
		// Unknown elements are absent.
		*out = strings.Contains(expr, "return !found.some(__bcVisible);")
		return nil
	case *int:
		if p.rowSelector != "" && expr == dom.CSS(p.rowSelector).CountExpr() {
			*out = p.rows
			return nil
		}
		*out = 0
		return nil
	}
	return errors.New("unsupported expression")
}

func (p *fakePage) interact(action string, target dom.Target) error {
	key := target.Text
	if key == "" {
		key = target.Selector
	}
	if target.Text != "" && !p.visible[target.Text] {
		if _, ok := p.onClick[key]; !ok {
			return &failures.InteractionError{Action: action, Target: target.String(), Err: errors.New("no matching element")}
		}
	}
	if target.Text == "" {
		if _, ok := p.onClick[key]; !ok {
			return &failures.InteractionError{Action: action, Target: target.String(), Err: errors.New("no matching element")}
		}
	}
	return nil
}

func (p *fakePage) Hover(ctx context.Context, target dom.Target) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.interact("hover", target); err != nil {
		return err
	}
	p.hovers = append(p.hovers, target.String())
	return nil
}

func (p *fakePage) Click(ctx context.Context, target dom.Target) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.interact("click", target); err != nil {
		return err
	}
	p.clicks = append(p.clicks, target.String())
	key := target.Text
	if key == "" {
		key = target.Selector
	}
	if fn, ok := p.onClick[key]; ok {
		fn(p)
	}
	return nil
}

func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.screenshots++
	if p.screenshotErr != nil {
		return nil, p.screenshotErr
	}
	return []byte("\x89PNG fake"), nil
}

func (p *fakePage) ConsoleLogs() []schemas.ConsoleLog {
	return []schemas.ConsoleLog{{Type: "log", Text: "ready"}}
}

func (p *fakePage) BridgeCalls() []schemas.BridgeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]schemas.BridgeCall(nil), p.calls...)
}

func (p *fakePage) BridgeCallCount(channel string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c.Channel == channel {
			n++
		}
	}
	return n
}

func (p *fakePage) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closes++
	return nil
}

// fakeLauncher hands out pages built by newPage, or fails with openErr.
type fakeLauncher struct {
	mu      sync.Mutex
	newPage func(spec *fixtures.Spec) *fakePage
	openErr error
	opened  []*fakePage
	specs   []*fixtures.Spec
}

func (l *fakeLauncher) Open(ctx context.Context, spec *fixtures.Spec) (Page, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.specs = append(l.specs, spec)
	if l.openErr != nil {
		return nil, l.openErr
	}
	p := l.newPage(spec)
	l.opened = append(l.opened, p)
	return p, nil
}

// closesPerOpen returns how many times each opened page was closed.
func (l *fakeLauncher) closesPerOpen() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]int, len(l.opened))
	for i, p := range l.opened {
		p.mu.Lock()
		out[i] = p.closes
		p.mu.Unlock()
	}
	return out
}
