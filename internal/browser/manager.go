// internal/browser/manager.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/bridgecheck/internal/browser/bridge"
	"github.com/xkilldash9x/bridgecheck/internal/config"
	"github.com/xkilldash9x/bridgecheck/internal/failures"
	"github.com/xkilldash9x/bridgecheck/internal/fixtures"
)

// Manager launches one browser process per session and tracks the sessions
// still open so Shutdown can reap them.
type Manager struct {
	logger *zap.Logger
	cfg    config.Interface

	sessions map[string]*Session
	mu       sync.RWMutex
	wg       sync.WaitGroup // Counts sessions not yet closed.

	opened, closed int
}

const shutdownGracePeriod = 15 * time.Second

// NewManager creates a browser manager. No browser is started until Open.
func NewManager(cfg config.Interface, logger *zap.Logger) *Manager {
	m := &Manager{
		logger:   logger.Named("browser_manager"),
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
	m.logger.Debug("Browser manager created.")
	return m
}

// Open launches a browser with the bridge stand-in answering from spec. The
// stand-in is registered before Open returns, so it is present in the first
// document the session navigates to. Errors are LaunchError or
// InjectionError; nothing is left running when Open fails.
func (m *Manager) Open(ctx context.Context, spec *fixtures.Spec) (*Session, error) {
	bridgeOpts := bridge.OptionsFromConfig(m.cfg.Bridge())
	script, err := bridge.Script(spec, bridgeOpts)
	if err != nil {
		return nil, &failures.InjectionError{Reason: "could not build the bridge script", Err: err}
	}

	// The process must not die with ctx: teardown still needs it to close
	// the tab, and Close cancels it explicitly.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), DefaultAllocatorOptions(m.cfg.Browser())...)
	var ctxOpts []chromedp.ContextOption
	if m.cfg.Browser().Debug {
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(m.logger.Sugar().Debugf))
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, ctxOpts...)

	session := newSession(browserCtx, browserCancel, allocCancel, m.cfg, m.logger)

	if err := m.launch(ctx, browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, err
	}

	m.track(session)

	if err := m.initialize(ctx, session, spec, script, bridgeOpts); err != nil {
		// ctx may be the reason initialization failed.
		cleanupCtx, cancel := context.WithTimeout(context.Background(), m.cfg.Harness().CloseTimeout)
		defer cancel()
		_ = session.Close(cleanupCtx)
		return nil, err
	}

	m.mu.Lock()
	m.sessions[session.ID()] = session
	m.mu.Unlock()

	m.logger.Info("New session created.", zap.String("session_id", session.ID()))
	return session, nil
}

// track counts a launched session as opened and arranges for its Close to
// count it as closed, whether or not its setup completes.
func (m *Manager) track(session *Session) {
	m.mu.Lock()
	m.opened++
	m.mu.Unlock()
	m.wg.Add(1)
	session.onClose = func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.sessions, session.ID())
		m.closed++
		m.wg.Done()
		m.logger.Debug("Session removed from manager.", zap.String("session_id", session.ID()))
	}
}

// launch starts the browser process. The first Run on a fresh context
// allocates the browser and ties its lifetime to the Run context, so the
// launch deadline is enforced from outside instead of through Run's context.
func (m *Manager) launch(ctx context.Context, browserCtx context.Context) error {
	timeout := m.cfg.Harness().LaunchTimeout
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(browserCtx) }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return &failures.LaunchError{Err: err}
		}
		return nil
	case <-timer.C:
		return &failures.LaunchError{Err: fmt.Errorf("browser did not start within %s", timeout)}
	case <-ctx.Done():
		return fmt.Errorf("browser launch interrupted: %w", ctx.Err())
	}
}

func (m *Manager) initialize(ctx context.Context, s *Session, spec *fixtures.Spec, script string, opts bridge.Options) error {
	initCtx, cancel := context.WithTimeout(ctx, m.cfg.Harness().LaunchTimeout)
	defer cancel()

	s.dispatcher = bridge.NewDispatcher(spec, func(c context.Context, expr string) error {
		return s.Evaluate(c, expr, nil)
	}, s.logger)
	s.harvester = NewHarvester(s.ctx, s.logger, opts.BindingName, s.dispatcher.Handle)

	if err := s.harvester.Start(initCtx); err != nil {
		return m.initErr(ctx, "could not attach to the tab", err)
	}
	if err := s.runActions(initCtx, bridge.Install(script, opts.BindingName, s.logger)); err != nil {
		return m.initErr(ctx, "could not register the bridge script", err)
	}
	return nil
}

func (m *Manager) initErr(ctx context.Context, reason string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("session setup interrupted: %w", ctx.Err())
	}
	return &failures.InjectionError{Reason: reason, Err: err}
}

// Stats reports how many browsers were launched and how many of those were
// closed, including sessions whose setup failed after launch.
func (m *Manager) Stats() (opened, closed int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.opened, m.closed
}

// Active returns the number of sessions not yet closed.
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown closes every session still open and waits for them, up to ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	sessionsToClose := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessionsToClose = append(sessionsToClose, s)
	}
	m.mu.RUnlock()

	if len(sessionsToClose) > 0 {
		m.logger.Info("Closing sessions left open.", zap.Int("count", len(sessionsToClose)))
	}

	var (
		mu      sync.Mutex
		errs    []error
		closers sync.WaitGroup
	)
	for _, s := range sessionsToClose {
		closers.Add(1)
		go func(s *Session) {
			defer closers.Done()
			if err := s.Close(ctx); err != nil {
				m.logger.Warn("Error during session close in shutdown.", zap.String("session_id", s.ID()), zap.Error(err))
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(s)
	}

	done := make(chan struct{})
	go func() {
		closers.Wait()
		m.wg.Wait()
		close(done)
	}()

	grace := time.NewTimer(shutdownGracePeriod)
	defer grace.Stop()
	select {
	case <-done:
		m.logger.Debug("All sessions closed.")
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for sessions to close: %w", ctx.Err())
	case <-grace.C:
		return errors.New("sessions still open after shutdown grace period")
	}

	mu.Lock()
	defer mu.Unlock()
	return errors.Join(errs...)
}
