package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/bridgecheck/api/schemas"
	"github.com/xkilldash9x/bridgecheck/internal/browser/wait"
	"github.com/xkilldash9x/bridgecheck/internal/config"
	"github.com/xkilldash9x/bridgecheck/internal/evidence"
	"github.com/xkilldash9x/bridgecheck/internal/failures"
	"github.com/xkilldash9x/bridgecheck/internal/fixtures"
)

// Scenario is a named, ordered script of steps run against one page.
type Scenario struct {
	Name        string
	Description string
	// Spec returns the bridge mapping the page is opened with.
	Spec func(p config.ScenarioConfig) *fixtures.Spec
	// Steps returns the script for the given scenario parameters.
	Steps func(p config.ScenarioConfig) []Step
}

// Runner executes scenarios, one page per scenario.
type Runner struct {
	launcher Launcher
	cfg      config.Interface
	logger   *zap.Logger
}

// NewRunner creates a runner opening pages through launcher.
func NewRunner(launcher Launcher, cfg config.Interface, logger *zap.Logger) *Runner {
	return &Runner{launcher: launcher, cfg: cfg, logger: logger.Named("runner")}
}

// diagnosticBudget bounds the evidence work done after a failure or interrupt.
const diagnosticBudget = 10 * time.Second

// Run executes sc and returns its report together with the error that ended
// it, nil on success. Steps run strictly in order and the first failure
// aborts the rest. The page is closed exactly once on every path. A failed
// scenario still gets a diagnostic screenshot; a failure to take it is
// recorded on the report but never replaces the original error.
func (r *Runner) Run(ctx context.Context, sc Scenario, runID string) (*schemas.ScenarioReport, error) {
	logger := r.logger.With(zap.String("scenario", sc.Name), zap.String("run_id", runID))
	harness := r.cfg.Harness()
	params := r.cfg.Scenario()

	report := &schemas.ScenarioReport{
		RunID:     runID,
		Scenario:  sc.Name,
		StartedAt: time.Now(),
		URL:       harness.BaseURL,
		Steps:     []schemas.StepReport{},
	}
	finish := func(err error) (*schemas.ScenarioReport, error) {
		report.Duration = time.Since(report.StartedAt)
		if err != nil && kindOf(err, ctx) == failures.KindInterrupted && failures.Classify(err) != failures.KindInterrupted {
			err = &failures.InterruptedError{Err: err}
		}
		classify(report, err, ctx)
		if err != nil {
			logger.Warn("Scenario did not pass",
				zap.String("outcome", string(report.Outcome)),
				zap.String("kind", report.Kind),
				zap.String("step", report.FailedStep),
				zap.String("url", report.URL),
				zap.String("last_wait", report.LastWait),
				zap.Int("bridge_calls", len(report.BridgeCalls)),
				zap.Error(err))
		} else {
			logger.Info("Scenario passed", zap.Duration("duration", report.Duration))
		}
		return report, err
	}

	var spec *fixtures.Spec
	if sc.Spec != nil {
		spec = sc.Spec(params)
	}
	if spec == nil {
		spec = fixtures.NewSpec()
	}

	if err := ctx.Err(); err != nil {
		report.FailedStep = "open browser"
		return finish(fmt.Errorf("interrupted before start: %w", err))
	}

	logger.Info("Starting scenario")
	page, err := r.launcher.Open(ctx, spec)
	if err != nil {
		report.FailedStep = "open browser"
		return finish(err)
	}

	layout := evidence.Layout{Dir: harness.ArtifactDir}
	env := &Env{
		Page:    page,
		Waiter:  wait.NewWaiter(page, harness.PollInterval, harness.WaitTimeout, logger),
		Layout:  layout,
		BaseURL: harness.BaseURL,
		Params:  params,
		Logger:  logger,
	}

	var steps []Step
	if sc.Steps != nil {
		steps = sc.Steps(params)
	}
	runErr := r.runSteps(ctx, env, steps, report, logger)

	// Evidence and teardown must happen even when ctx is already cancelled.
	diagCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), diagnosticBudget)
	defer cancel()

	var captureErrs []string
	if runErr != nil {
		shot := layout.ErrorShot(sc.Name)
		if err := evidence.Capture(diagCtx, page, shot); err != nil {
			logger.Warn("Diagnostic screenshot failed", zap.Error(err))
			captureErrs = append(captureErrs, err.Error())
		} else {
			env.addArtifact(shot)
		}
	}

	consolePath := layout.ConsoleLog(sc.Name)
	if err := evidence.WriteConsoleLog(consolePath, page.ConsoleLogs()); err != nil {
		captureErrs = append(captureErrs, err.Error())
	} else {
		env.addArtifact(consolePath)
	}
	calls := page.BridgeCalls()
	bridgePath := layout.BridgeCalls(sc.Name)
	if err := evidence.WriteBridgeCalls(bridgePath, calls); err != nil {
		captureErrs = append(captureErrs, err.Error())
	} else {
		env.addArtifact(bridgePath)
	}

	if err := page.Close(diagCtx); err != nil {
		logger.Warn("Page did not close cleanly", zap.Error(err))
	}

	env.mu.Lock()
	report.LastWait = env.lastWait
	if env.url != "" {
		report.URL = env.url
	}
	env.mu.Unlock()
	report.Artifacts = env.Artifacts()
	report.BridgeCalls = calls
	report.CaptureError = strings.Join(captureErrs, "; ")

	return finish(runErr)
}

func (r *Runner) runSteps(ctx context.Context, env *Env, steps []Step, report *schemas.ScenarioReport, logger *zap.Logger) error {
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			report.FailedStep = step.Name
			return fmt.Errorf("interrupted before %q: %w", step.Name, err)
		}

		stepLogger := logger.With(zap.Int("step", i+1), zap.String("step_name", step.Name))
		stepLogger.Debug("Running step")
		start := time.Now()
		err := step.Run(ctx, env)
		sr := schemas.StepReport{Index: i + 1, Name: step.Name, Duration: time.Since(start)}
		if err != nil {
			sr.Error = err.Error()
			sr.Kind = kindOf(err, ctx).String()
			report.Steps = append(report.Steps, sr)
			report.FailedStep = step.Name
			return err
		}
		report.Steps = append(report.Steps, sr)
	}
	return nil
}

// kindOf classifies err, giving an interrupt precedence over whatever error
// the cancellation surfaced as.
func kindOf(err error, ctx context.Context) failures.Kind {
	if err == nil {
		return failures.KindNone
	}
	if ctx.Err() != nil && errors.Is(context.Cause(ctx), context.Canceled) {
		return failures.KindInterrupted
	}
	return failures.Classify(err)
}

func classify(report *schemas.ScenarioReport, err error, ctx context.Context) {
	kind := kindOf(err, ctx)
	switch {
	case kind == failures.KindNone:
		report.Outcome = schemas.OutcomePass
		report.Kind = ""
		report.Message = ""
		return
	case kind.Regression():
		report.Outcome = schemas.OutcomeFail
	default:
		report.Outcome = schemas.OutcomeError
	}
	report.Kind = kind.String()
	report.Message = err.Error()
}
