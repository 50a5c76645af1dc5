package reporting

import (
	"fmt"
	"io"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/bridgecheck/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONReporter writes the whole suite as one JSON document on Close.
type JSONReporter struct {
	writer io.WriteCloser
	suite  *suiteCollector
	mu     sync.Mutex
}

// Write records one scenario.
func (r *JSONReporter) Write(report *schemas.ScenarioReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.suite.add(report)
}

// Close encodes the suite and closes the output.
func (r *JSONReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	var encodeErr error
	if err := encoder.Encode(r.suite.report()); err != nil {
		encodeErr = fmt.Errorf("failed to encode JSON report: %w", err)
	}
	return finish(r.writer, encodeErr)
}
