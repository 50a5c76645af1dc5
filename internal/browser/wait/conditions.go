package wait

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/bridgecheck/internal/browser/dom"
)

// Evaluator runs a JavaScript expression in the page and decodes the result into res.
type Evaluator interface {
	Evaluate(ctx context.Context, expression string, res any) error
}

// Condition is a predicate over observable state. String describes it for
// timeout reports.
type Condition interface {
	fmt.Stringer
	Check(ctx context.Context, ev Evaluator) (bool, error)
}

type visible struct{ target dom.Target }

// Visible holds when at least one element matching target is visible.
func Visible(target dom.Target) Condition { return visible{target} }

// TextVisible holds when text is visible anywhere in the page.
func TextVisible(text string) Condition { return visible{dom.Text(text)} }

// SelectorVisible holds when an element matching the CSS selector is visible.
func SelectorVisible(selector string) Condition { return visible{dom.CSS(selector)} }

func (c visible) String() string { return c.target.String() + " visible" }

func (c visible) Check(ctx context.Context, ev Evaluator) (bool, error) {
	var ok bool
	err := ev.Evaluate(ctx, c.target.VisibleExpr(), &ok)
	return ok, err
}

type hidden struct{ target dom.Target }

// Hidden holds when no element matching target is visible.
func Hidden(target dom.Target) Condition { return hidden{target} }

func (c hidden) String() string { return c.target.String() + " hidden" }

func (c hidden) Check(ctx context.Context, ev Evaluator) (bool, error) {
	var ok bool
	err := ev.Evaluate(ctx, c.target.HiddenExpr(), &ok)
	return ok, err
}

type count struct {
	target  dom.Target
	n       int
	atLeast bool
}

// Count holds when exactly n elements match target.
func Count(target dom.Target, n int) Condition { return count{target: target, n: n} }

// AtLeast holds when n or more elements match target.
func AtLeast(target dom.Target, n int) Condition { return count{target: target, n: n, atLeast: true} }

func (c count) String() string {
	if c.atLeast {
		return fmt.Sprintf("at least %d of %s", c.n, c.target)
	}
	return fmt.Sprintf("exactly %d of %s", c.n, c.target)
}

func (c count) Check(ctx context.Context, ev Evaluator) (bool, error) {
	var got int
	if err := ev.Evaluate(ctx, c.target.CountExpr(), &got); err != nil {
		return false, err
	}
	if c.atLeast {
		return got >= c.n, nil
	}
	return got == c.n, nil
}

type predicate struct {
	desc string
	fn   func(ctx context.Context) (bool, error)
}

// Func adapts a Go-side predicate, such as "the page invoked channel X",
// into a Condition.
func Func(desc string, fn func(ctx context.Context) (bool, error)) Condition {
	return predicate{desc: desc, fn: fn}
}

func (p predicate) String() string { return p.desc }

func (p predicate) Check(ctx context.Context, _ Evaluator) (bool, error) { return p.fn(ctx) }
