// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/bridgecheck/api/schemas"
	"github.com/xkilldash9x/bridgecheck/internal/browser"
	"github.com/xkilldash9x/bridgecheck/internal/config"
	"github.com/xkilldash9x/bridgecheck/internal/reporting"
	"github.com/xkilldash9x/bridgecheck/internal/scenario"
)

// launcherFactory returns a page launcher and the function that reaps
// whatever it left running.
type launcherFactory func(cfg config.Interface, logger *zap.Logger) (scenario.Launcher, func(context.Context) error)

func browserLauncher(cfg config.Interface, logger *zap.Logger) (scenario.Launcher, func(context.Context) error) {
	m := browser.NewManager(cfg, logger)
	return scenario.BrowserLauncher(m), m.Shutdown
}

// shutdownTimeout bounds reaping browsers after the last scenario.
const shutdownTimeout = 20 * time.Second

type runFlags struct {
	baseURL     string
	artifactDir string
	format      string
	report      string
	parallel    int
	headed      bool
	filtersOpen bool
}

func newRunCommand(opts *globalOptions) *cobra.Command {
	var flags runFlags

	runCmd := &cobra.Command{
		Use:   "run [scenario...]",
		Short: "Run verification scenarios (all of them when none are named)",
		Example: `  bridgecheck run
  bridgecheck run app sidebar --base-url http://localhost:5173
  bridgecheck run --parallel 3 --format junit --report results.xml`,
		ValidArgsFunction: completeScenarioNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyRunFlags(cmd, opts.cfg, flags); err != nil {
				return err
			}
			scenarios, err := scenario.Select(args...)
			if err != nil {
				return err
			}
			return runScenarios(cmd.Context(), opts, scenarios, cmd.OutOrStdout())
		},
	}

	f := runCmd.Flags()
	f.StringVar(&flags.baseURL, "base-url", "", "URL the application is served from (overrides harness.base_url)")
	f.StringVar(&flags.artifactDir, "artifact-dir", "", "directory screenshots and logs are written to (overrides harness.artifact_dir)")
	f.StringVarP(&flags.format, "format", "f", "", "report format: text, json or junit (overrides harness.report_format)")
	f.StringVarP(&flags.report, "report", "o", "", "report file, stdout when empty (overrides harness.report_path)")
	f.IntVarP(&flags.parallel, "parallel", "p", 0, "scenarios run at once, each in its own browser (overrides harness.parallel)")
	f.BoolVar(&flags.headed, "headed", false, "show the browser window")
	f.BoolVar(&flags.filtersOpen, "filters-open", true, "the filter panel is open when the app starts (overrides scenario.filters_open)")
	return runCmd
}

// applyRunFlags lays explicitly set flags over the loaded configuration.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, flags runFlags) error {
	changed := cmd.Flags().Changed
	if changed("base-url") {
		cfg.SetHarnessBaseURL(flags.baseURL)
	}
	if changed("artifact-dir") {
		cfg.SetHarnessArtifactDir(flags.artifactDir)
	}
	if changed("format") {
		cfg.SetHarnessReportFormat(flags.format)
	}
	if changed("report") {
		cfg.SetHarnessReportPath(flags.report)
	}
	if changed("parallel") {
		cfg.SetHarnessParallel(flags.parallel)
	}
	if changed("headed") {
		cfg.SetBrowserHeadless(!flags.headed)
	}
	if changed("filters-open") {
		cfg.SetScenarioFiltersOpen(flags.filtersOpen)
	}
	if err := cfg.ExpandPaths(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// runScenarios runs the suite, streams each outcome to the reporter and
// returns the first failing scenario's error, annotated with where it failed.
func runScenarios(ctx context.Context, opts *globalOptions, scenarios []scenario.Scenario, stdout io.Writer) error {
	harness := opts.cfg.Harness()
	runID := uuid.New().String()
	logger := opts.logger.With(zap.String("run_id", runID))

	rep, err := reporting.NewWithStdout(harness.ReportFormat, harness.ReportPath, runID, stdout)
	if err != nil {
		return err
	}

	launcher, shutdown := opts.launcher(opts.cfg, logger)
	runner := scenario.NewRunner(launcher, opts.cfg, logger)

	var mu sync.Mutex
	sink := func(r *schemas.ScenarioReport) error {
		mu.Lock()
		defer mu.Unlock()
		return rep.Write(r)
	}

	logger.Info("Running scenarios",
		zap.Int("count", len(scenarios)),
		zap.Int("parallel", harness.Parallel),
		zap.String("base_url", harness.BaseURL))
	reports, runErr := runner.RunAll(ctx, scenarios, harness.Parallel, runID, sink)

	// Browsers are reaped even after an interrupt.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := shutdown(shutdownCtx); err != nil {
		logger.Warn("Browsers did not shut down cleanly", zap.Error(err))
	}

	if err := rep.Close(); err != nil {
		if runErr == nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		logger.Error("Failed to write report", zap.Error(err))
	}
	if runErr != nil {
		return annotate(reports, runErr)
	}
	return nil
}

// annotate names the scenario and step runErr came from.
func annotate(reports []*schemas.ScenarioReport, runErr error) error {
	for _, r := range reports {
		if r == nil || r.Outcome == schemas.OutcomePass {
			continue
		}
		if r.FailedStep == "" {
			return fmt.Errorf("scenario %q: %w", r.Scenario, runErr)
		}
		return fmt.Errorf("scenario %q failed at step %q: %w", r.Scenario, r.FailedStep, runErr)
	}
	return runErr
}

func completeScenarioNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return scenario.Names(), cobra.ShellCompDirectiveNoFileComp
}
