package reporting

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/beevik/etree"

	"github.com/xkilldash9x/bridgecheck/api/schemas"
)

// JUnitReporter writes the suite as JUnit XML on Close, one testcase per
// scenario. Regressions become <failure>, harness problems <error>.
type JUnitReporter struct {
	writer io.WriteCloser
	suite  *suiteCollector
	mu     sync.Mutex
}

// Write records one scenario.
func (r *JUnitReporter) Write(report *schemas.ScenarioReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.suite.add(report)
}

// Close renders the document and closes the output.
func (r *JUnitReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := buildJUnit(r.suite.report())
	var encodeErr error
	if _, err := doc.WriteTo(r.writer); err != nil {
		encodeErr = fmt.Errorf("failed to write JUnit report: %w", err)
	}
	return finish(r.writer, encodeErr)
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func buildJUnit(s schemas.SuiteReport) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	var failed, errored int
	for _, sc := range s.Scenarios {
		switch sc.Outcome {
		case schemas.OutcomeFail:
			failed++
		case schemas.OutcomeError:
			errored++
		}
	}

	root := doc.CreateElement("testsuites")
	suite := root.CreateElement("testsuite")
	suite.CreateAttr("name", "bridgecheck")
	suite.CreateAttr("tests", strconv.Itoa(len(s.Scenarios)))
	suite.CreateAttr("failures", strconv.Itoa(failed))
	suite.CreateAttr("errors", strconv.Itoa(errored))
	suite.CreateAttr("time", seconds(s.Duration))
	suite.CreateAttr("timestamp", s.StartedAt.UTC().Format(time.RFC3339))
	if s.RunID != "" {
		props := suite.CreateElement("properties")
		p := props.CreateElement("property")
		p.CreateAttr("name", "run_id")
		p.CreateAttr("value", s.RunID)
	}

	for _, sc := range s.Scenarios {
		tc := suite.CreateElement("testcase")
		tc.CreateAttr("name", sc.Scenario)
		tc.CreateAttr("classname", "bridgecheck")
		tc.CreateAttr("time", seconds(sc.Duration))

		var detail *etree.Element
		switch sc.Outcome {
		case schemas.OutcomeFail:
			detail = tc.CreateElement("failure")
		case schemas.OutcomeError:
			detail = tc.CreateElement("error")
		}
		if detail != nil {
			detail.CreateAttr("message", sc.Message)
			detail.CreateAttr("type", sc.Kind)
			detail.SetText(failureText(sc))
		}

		if len(sc.Artifacts) > 0 || sc.CaptureError != "" {
			var out strings.Builder
			for _, a := range sc.Artifacts {
				fmt.Fprintf(&out, "artifact: %s\n", a)
			}
			if sc.CaptureError != "" {
				fmt.Fprintf(&out, "capture: %s\n", sc.CaptureError)
			}
			tc.CreateElement("system-out").SetText(out.String())
		}
	}

	doc.Indent(2)
	return doc
}

func failureText(sc schemas.ScenarioReport) string {
	var b strings.Builder
	if sc.FailedStep != "" {
		fmt.Fprintf(&b, "step: %s\n", sc.FailedStep)
	}
	if sc.LastWait != "" {
		fmt.Fprintf(&b, "last wait: %s\n", sc.LastWait)
	}
	if sc.URL != "" {
		fmt.Fprintf(&b, "url: %s\n", sc.URL)
	}
	fmt.Fprintf(&b, "bridge calls: %d\n", len(sc.BridgeCalls))
	for _, c := range sc.BridgeCalls {
		fmt.Fprintf(&b, "  #%d %s %s handled=%t\n", c.Seq, c.Kind, c.Channel, c.Handled)
	}
	return b.String()
}
