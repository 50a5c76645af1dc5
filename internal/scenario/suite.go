package scenario

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/bridgecheck/api/schemas"
)

// Sink receives each scenario report as soon as the scenario finishes.
// It may be called from several goroutines.
type Sink func(report *schemas.ScenarioReport) error

// RunAll runs scenarios with at most parallel of them in flight, each on its
// own page. A failing scenario does not stop the others. The returned error
// is that of the first failing scenario in the order given, so the outcome
// does not depend on scheduling. Reports come back in the same order.
func (r *Runner) RunAll(ctx context.Context, scenarios []Scenario, parallel int, runID string, sink Sink) ([]*schemas.ScenarioReport, error) {
	if parallel < 1 {
		parallel = 1
	}
	reports := make([]*schemas.ScenarioReport, len(scenarios))
	errs := make([]error, len(scenarios))

	var g errgroup.Group
	g.SetLimit(parallel)
	for i, sc := range scenarios {
		g.Go(func() error {
			// Scenarios queued behind the limit still report an interrupt.
			rep, err := r.Run(ctx, sc, runID)
			reports[i], errs[i] = rep, err
			if sink != nil {
				if sinkErr := sink(rep); sinkErr != nil {
					r.logger.Error("Failed to record scenario report", zap.String("scenario", sc.Name), zap.Error(sinkErr))
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}
