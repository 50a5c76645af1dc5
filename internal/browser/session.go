// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/bridgecheck/api/schemas"
	"github.com/xkilldash9x/bridgecheck/internal/browser/bridge"
	"github.com/xkilldash9x/bridgecheck/internal/browser/dom"
	"github.com/xkilldash9x/bridgecheck/internal/config"
	"github.com/xkilldash9x/bridgecheck/internal/failures"
)

// State is where a session is in its lifecycle.
type State int

const (
	StateCreated State = iota
	StateNavigated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateNavigated:
		return "navigated"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ErrSessionClosed is returned by operations on a closed session.
var ErrSessionClosed = errors.New("browser session is closed")

// Session is one headless browser process with a single tab that has the
// bridge stand-in installed.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	// allocCancel stops the browser process after the tab is gone.
	allocCancel context.CancelFunc
	logger      *zap.Logger
	harness     config.HarnessConfig
	bridgeOpts  bridge.Options

	harvester  *Harvester
	dispatcher *bridge.Dispatcher

	onClose func()

	mu       sync.Mutex
	state    State
	isClosed bool
}

// newSession wraps an allocated tab. ctx must already carry the chromedp target.
func newSession(
	ctx context.Context,
	cancel, allocCancel context.CancelFunc,
	cfg config.Interface,
	logger *zap.Logger,
) *Session {
	sessionID := uuid.New().String()
	return &Session{
		id:          sessionID,
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		logger:      logger.With(zap.String("session_id", sessionID)),
		harness:     cfg.Harness(),
		bridgeOpts:  bridge.OptionsFromConfig(cfg.Bridge()),
	}
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string {
	return s.id
}

// State reports the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed {
		return ErrSessionClosed
	}
	return nil
}

// runActions executes chromedp actions bounded by both the session lifetime
// (s.ctx) and the caller's context.
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and confirms the bridge stand-in was in place before the
// page's own scripts ran. It fails with a NavigationError on transport errors
// or non-2xx statuses, and an InjectionError when the stand-in is missing.
func (s *Session) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, s.harness.NavigationTimeout)
	defer cancel()

	s.logger.Info("Navigating", zap.String("url", url))
	var resp *network.Response
	err := s.runActions(navCtx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		resp, err = chromedp.RunResponse(c, chromedp.Navigate(url))
		return err
	}))
	if err != nil {
		if errors.Is(err, ErrSessionClosed) {
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("navigation to %s interrupted: %w", url, ctx.Err())
		}
		if navCtx.Err() != nil {
			err = fmt.Errorf("no load event within %s: %w", s.harness.NavigationTimeout, navCtx.Err())
		}
		return &failures.NavigationError{URL: url, Err: err}
	}
	if resp != nil && (resp.Status < 200 || resp.Status > 299) {
		return &failures.NavigationError{URL: url, Status: resp.Status}
	}

	probe, err := s.probe(ctx)
	if err != nil {
		return &failures.InjectionError{Reason: "could not inspect the bridge after navigation", Err: err}
	}
	if reason := probe.Check(); reason != "" {
		return &failures.InjectionError{Reason: reason}
	}

	s.mu.Lock()
	if !s.isClosed {
		s.state = StateNavigated
	}
	s.mu.Unlock()
	s.logger.Debug("Navigation complete", zap.Int("bridge_calls_at_load", probe.Calls))
	return nil
}

func (s *Session) probe(ctx context.Context) (bridge.Probe, error) {
	var probe bridge.Probe
	err := s.Evaluate(ctx, bridge.ProbeExpression(s.bridgeOpts.GlobalPath), &probe)
	return probe, err
}

// Evaluate runs a JS expression in the page and decodes its result into res.
// A nil res discards the value.
func (s *Session) Evaluate(ctx context.Context, expression string, res any) error {
	return s.runActions(ctx, chromedp.Evaluate(expression, res))
}

// Hover moves the pointer over the centre of the first visible match.
func (s *Session) Hover(ctx context.Context, target dom.Target) error {
	return s.pointerAction(ctx, "hover", target, func(x, y float64) chromedp.Action {
		return chromedp.MouseEvent(input.MouseMoved, x, y)
	})
}

// Click presses and releases the primary button on the first visible match.
func (s *Session) Click(ctx context.Context, target dom.Target) error {
	return s.pointerAction(ctx, "click", target, func(x, y float64) chromedp.Action {
		return chromedp.MouseClickXY(x, y)
	})
}

func (s *Session) pointerAction(ctx context.Context, action string, target dom.Target, do func(x, y float64) chromedp.Action) error {
	actCtx, cancel := context.WithTimeout(ctx, s.harness.ActionTimeout)
	defer cancel()

	var pt dom.Point
	if err := s.Evaluate(actCtx, target.PointExpr(), &pt); err != nil {
		return s.interactionErr(ctx, action, target, err)
	}
	switch {
	case !pt.Found:
		return &failures.InteractionError{Action: action, Target: target.String(), Err: errors.New("no matching element")}
	case !pt.Visible:
		return &failures.InteractionError{Action: action, Target: target.String(), Err: errors.New("element is not visible")}
	}

	if err := s.runActions(actCtx, do(pt.X, pt.Y)); err != nil {
		return s.interactionErr(ctx, action, target, err)
	}
	s.logger.Debug("Pointer action", zap.String("action", action), zap.Stringer("target", target),
		zap.Float64("x", pt.X), zap.Float64("y", pt.Y))
	return nil
}

func (s *Session) interactionErr(ctx context.Context, action string, target dom.Target, err error) error {
	if errors.Is(err, ErrSessionClosed) {
		return err
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s on %s interrupted: %w", action, target, ctx.Err())
	}
	return &failures.InteractionError{Action: action, Target: target.String(), Err: err}
}

// Screenshot returns a full-page PNG of the current viewport content.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	capCtx, cancel := context.WithTimeout(ctx, s.harness.CaptureTimeout)
	defer cancel()

	var buf []byte
	if err := s.runActions(capCtx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, err
	}
	if len(buf) == 0 {
		return nil, errors.New("browser returned an empty screenshot")
	}
	return buf, nil
}

// ConsoleLogs returns the console, exception and network evidence so far.
func (s *Session) ConsoleLogs() []schemas.ConsoleLog {
	if s.harvester == nil {
		return nil
	}
	return s.harvester.ConsoleLogs()
}

// BridgeCalls returns every call the page made against the stand-in.
func (s *Session) BridgeCalls() []schemas.BridgeCall {
	if s.dispatcher == nil {
		return nil
	}
	return s.dispatcher.Log().Calls()
}

// BridgeCallCount returns how many calls were made on channel.
func (s *Session) BridgeCallCount(channel string) int {
	if s.dispatcher == nil {
		return 0
	}
	return s.dispatcher.Log().Count(channel)
}

// Close tears the session down exactly once: event listening stops,
// outstanding bridge replies are abandoned, the tab is closed, then the
// browser process is stopped. It is safe to call from any goroutine and
// after ctx has been cancelled.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.state = StateClosed
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")

	// Events stop first so no binding payload reaches a closing dispatcher.
	if s.harvester != nil {
		stopCtx, cancel := context.WithTimeout(Detach(ctx), time.Second)
		s.harvester.Stop(stopCtx)
		cancel()
	}
	if s.dispatcher != nil {
		s.dispatcher.Close()
	}

	// chromedp.Cancel blocks until the browser acknowledges; bound it.
	timeout := s.harness.CloseTimeout
	if dl, ok := ctx.Deadline(); ok && ctx.Err() == nil {
		timeout = min(timeout, time.Until(dl))
	}
	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(s.ctx) }()

	var closeErr error
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			closeErr = fmt.Errorf("failed to close tab: %w", err)
		}
	case <-time.After(timeout):
		closeErr = fmt.Errorf("tab did not close within %s", timeout)
	}

	if s.cancel != nil {
		s.cancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}

	if closeErr != nil {
		s.logger.Warn("Browser did not shut down cleanly.", zap.Error(closeErr))
	}
	if s.onClose != nil {
		s.onClose()
	}
	return closeErr
}
