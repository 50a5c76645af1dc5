package reporting

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/xkilldash9x/bridgecheck/api/schemas"
)

// TextReporter prints one block per scenario as it finishes and a summary
// line on Close. It is safe for concurrent use.
type TextReporter struct {
	writer io.WriteCloser
	suite  *suiteCollector
	mu     sync.Mutex
}

// Write prints the outcome of one scenario.
func (r *TextReporter) Write(report *schemas.ScenarioReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.suite.add(report); err != nil {
		return err
	}
	_, err := io.WriteString(r.writer, formatScenario(report))
	return err
}

// Close prints the summary.
func (r *TextReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	suite := r.suite.report()
	_, err := io.WriteString(r.writer, formatSummary(suite))
	return finish(r.writer, err)
}

func formatScenario(r *schemas.ScenarioReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-4s %s (%s)\n", strings.ToUpper(string(r.Outcome)), r.Scenario, r.Duration.Round(time.Millisecond))
	if r.Outcome != schemas.OutcomePass {
		if r.FailedStep != "" {
			fmt.Fprintf(&b, "     step:  %s\n", r.FailedStep)
		}
		fmt.Fprintf(&b, "     kind:  %s\n", r.Kind)
		fmt.Fprintf(&b, "     error: %s\n", r.Message)
		if r.LastWait != "" {
			fmt.Fprintf(&b, "     last wait: %s\n", r.LastWait)
		}
		if r.URL != "" {
			fmt.Fprintf(&b, "     url:   %s\n", r.URL)
		}
		fmt.Fprintf(&b, "     bridge calls: %d\n", len(r.BridgeCalls))
	}
	if r.CaptureError != "" {
		fmt.Fprintf(&b, "     capture: %s\n", r.CaptureError)
	}
	for _, a := range r.Artifacts {
		fmt.Fprintf(&b, "     artifact: %s\n", a)
	}
	return b.String()
}

func formatSummary(s schemas.SuiteReport) string {
	counts := map[schemas.Outcome]int{}
	for _, sc := range s.Scenarios {
		counts[sc.Outcome]++
	}
	return fmt.Sprintf("%d scenarios: %d passed, %d failed, %d errors (%s)\n",
		len(s.Scenarios), counts[schemas.OutcomePass], counts[schemas.OutcomeFail], counts[schemas.OutcomeError],
		s.Duration.Round(time.Millisecond))
}
