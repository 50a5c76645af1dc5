// internal/reporting/reporter.go
package reporting

import (
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/xkilldash9x/bridgecheck/api/schemas"
)

// Reporter receives scenario outcomes as they finish and renders the suite.
type Reporter interface {
	// Write records a single scenario outcome.
	Write(report *schemas.ScenarioReport) error
	// Close finalizes the report and closes any underlying resources (e.g., file handles).
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a new reporter based on the specified format and output path.
// An empty path or "stdout" writes to standard output.
func New(format, outputPath, runID string) (Reporter, error) {
	return NewWithStdout(format, outputPath, runID, os.Stdout)
}

// NewWithStdout is New with standard output replaced by stdout.
func NewWithStdout(format, outputPath, runID string, stdout io.Writer) (Reporter, error) {
	if !slices.Contains(ValidFormats(), format) {
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	var writer io.WriteCloser
	if outputPath == "" || outputPath == "stdout" {
		writer = &nopWriteCloser{stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	suite := &suiteCollector{runID: runID, started: time.Now()}
	switch format {
	case "json":
		return &JSONReporter{writer: writer, suite: suite}, nil
	case "junit":
		return &JUnitReporter{writer: writer, suite: suite}, nil
	default:
		return &TextReporter{writer: writer, suite: suite}, nil
	}
}

// suiteCollector accumulates scenario outcomes in arrival order.
type suiteCollector struct {
	runID     string
	started   time.Time
	scenarios []schemas.ScenarioReport
}

func (c *suiteCollector) add(r *schemas.ScenarioReport) error {
	if r == nil {
		return fmt.Errorf("nil scenario report")
	}
	c.scenarios = append(c.scenarios, *r)
	return nil
}

func (c *suiteCollector) report() schemas.SuiteReport {
	scenarios := c.scenarios
	if scenarios == nil {
		scenarios = []schemas.ScenarioReport{}
	}
	return schemas.SuiteReport{
		RunID:     c.runID,
		StartedAt: c.started,
		Duration:  time.Since(c.started),
		Scenarios: scenarios,
	}
}

// finish closes w after the encoder ran, keeping the encoder's error first.
func finish(w io.Closer, encodeErr error) error {
	closeErr := w.Close()
	if encodeErr != nil {
		return encodeErr
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}

// ValidFormats lists the formats New accepts.
func ValidFormats() []string {
	return []string{"text", "json", "junit"}
}
