package scenario

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/bridgecheck/internal/browser/dom"
	"github.com/xkilldash9x/bridgecheck/internal/browser/wait"
	"github.com/xkilldash9x/bridgecheck/internal/config"
	"github.com/xkilldash9x/bridgecheck/internal/evidence"
	"github.com/xkilldash9x/bridgecheck/internal/failures"
)

// Env is what a step sees while it runs.
type Env struct {
	Page    Page
	Waiter  *wait.Waiter
	Layout  evidence.Layout
	BaseURL string
	Params  config.ScenarioConfig
	Logger  *zap.Logger

	mu        sync.Mutex
	artifacts []string
	lastWait  string
	url       string
}

func (e *Env) addArtifact(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.artifacts = append(e.artifacts, path)
}

func (e *Env) setLastWait(cond wait.Condition) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastWait = cond.String()
}

func (e *Env) setURL(u string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.url = u
}

// Artifacts returns the files written so far, in order.
func (e *Env) Artifacts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.artifacts...)
}

// Step is one action of a scenario.
type Step struct {
	Name string
	Run  func(ctx context.Context, env *Env) error
}

// Navigate loads path relative to the base URL. An empty path loads the
// base URL itself.
func Navigate(path string) Step {
	name := "navigate"
	if path != "" {
		name = "navigate " + path
	}
	return Step{Name: name, Run: func(ctx context.Context, env *Env) error {
		target, err := resolveURL(env.BaseURL, path)
		if err != nil {
			return &failures.NavigationError{URL: env.BaseURL, Err: err}
		}
		env.setURL(target)
		return env.Page.Navigate(ctx, target)
	}}
}

func resolveURL(base, path string) (string, error) {
	if path == "" {
		return base, nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", path, err)
	}
	return b.ResolveReference(ref).String(), nil
}

// WaitFor blocks until cond holds. A zero timeout uses the configured default.
func WaitFor(cond wait.Condition, timeout time.Duration) Step {
	return Step{Name: "wait for " + cond.String(), Run: func(ctx context.Context, env *Env) error {
		env.setLastWait(cond)
		return env.Waiter.For(ctx, cond, timeout)
	}}
}

// WaitText waits for text to be visible anywhere on the page.
func WaitText(text string, timeout time.Duration) Step {
	return WaitFor(wait.TextVisible(text), timeout)
}

// Hover moves the pointer over target.
func Hover(target dom.Target) Step {
	return Step{Name: "hover " + target.String(), Run: func(ctx context.Context, env *Env) error {
		return env.Page.Hover(ctx, target)
	}}
}

// Click clicks target.
func Click(target dom.Target) Step {
	return Step{Name: "click " + target.String(), Run: func(ctx context.Context, env *Env) error {
		return env.Page.Click(ctx, target)
	}}
}

// ClickIfVisible clicks target when it is visible right now and does
// nothing otherwise.
func ClickIfVisible(target dom.Target) Step {
	return Step{Name: "click if visible " + target.String(), Run: func(ctx context.Context, env *Env) error {
		visible, err := env.Waiter.Once(ctx, wait.Visible(target))
		if err != nil || !visible {
			env.Logger.Debug("Optional click skipped", zap.Stringer("target", target), zap.Error(err))
			return nil
		}
		return env.Page.Click(ctx, target)
	}}
}

// Expect checks cond once, without waiting.
func Expect(cond wait.Condition) Step {
	return Step{Name: "expect " + cond.String(), Run: func(ctx context.Context, env *Env) error {
		ok, err := env.Waiter.Once(ctx, cond)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("checking %s: %w", cond, ctx.Err())
			}
			return &failures.AssertionError{Expectation: cond.String(), Detail: err.Error()}
		}
		if !ok {
			return &failures.AssertionError{Expectation: cond.String()}
		}
		return nil
	}}
}

func bridgeCalled(env *Env, channel string, n int) wait.Condition {
	return wait.Func(fmt.Sprintf("at least %d bridge call(s) on %q", n, channel), func(context.Context) (bool, error) {
		return env.Page.BridgeCallCount(channel) >= n, nil
	})
}

// ExpectBridgeCall checks that the page already called channel at least n times.
func ExpectBridgeCall(channel string, n int) Step {
	return Step{Name: fmt.Sprintf("expect bridge call %s", channel), Run: func(ctx context.Context, env *Env) error {
		got := env.Page.BridgeCallCount(channel)
		if got < n {
			return &failures.AssertionError{
				Expectation: fmt.Sprintf("at least %d bridge call(s) on %q", n, channel),
				Detail:      fmt.Sprintf("saw %d", got),
			}
		}
		return nil
	}}
}

// WaitForBridgeCall waits until the page has called channel at least n times.
func WaitForBridgeCall(channel string, n int, timeout time.Duration) Step {
	return Step{Name: fmt.Sprintf("wait for bridge call %s", channel), Run: func(ctx context.Context, env *Env) error {
		cond := bridgeCalled(env, channel, n)
		env.setLastWait(cond)
		return env.Waiter.For(ctx, cond, timeout)
	}}
}

// Capture writes a screenshot named name under the artifact directory.
func Capture(name string) Step {
	return Step{Name: "capture " + name, Run: func(ctx context.Context, env *Env) error {
		path := env.Layout.Path(name)
		if err := evidence.Capture(ctx, env.Page, path); err != nil {
			return err
		}
		env.addArtifact(path)
		env.Logger.Info("Screenshot saved", zap.String("path", path))
		return nil
	}}
}

// describe renders a step list for the list command.
func describe(steps []Step) string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = fmt.Sprintf("%d. %s", i+1, s.Name)
	}
	return strings.Join(names, "\n")
}
