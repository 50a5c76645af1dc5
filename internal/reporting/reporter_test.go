// internal/reporting/reporter_test.go
package reporting

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/bridgecheck/api/schemas"
)

func sampleReports() []*schemas.ScenarioReport {
	return []*schemas.ScenarioReport{
		{
			RunID:     "run-1",
			Scenario:  "app",
			Outcome:   schemas.OutcomePass,
			Duration:  1200 * time.Millisecond,
			Artifacts: []string{"verification/app_screenshot.png"},
		},
		{
			RunID:      "run-1",
			Scenario:   "pagination",
			Outcome:    schemas.OutcomeFail,
			Kind:       "timeout",
			Message:    `timed out after 10s waiting for text "Cargar más" visible`,
			FailedStep: "wait for text \"Cargar más\" visible",
			LastWait:   `text "Cargar más" visible`,
			URL:        "http://localhost:5173",
			BridgeCalls: []schemas.BridgeCall{
				{Seq: 1, Kind: schemas.BridgeInvoke, Channel: "get-all-samples", Handled: true},
			},
			Artifacts: []string{"verification/pagination_error.png"},
		},
		{
			RunID:        "run-1",
			Scenario:     "import",
			Outcome:      schemas.OutcomeError,
			Kind:         "navigation",
			Message:      "navigation to http://localhost:5173 failed: connection refused",
			FailedStep:   "navigate",
			CaptureError: "capture verification/import_error.png: empty image",
		},
	}
}

func writeAll(t *testing.T, r Reporter) {
	t.Helper()
	for _, rep := range sampleReports() {
		require.NoError(t, r.Write(rep))
	}
	require.NoError(t, r.Close())
}

func TestNewUnsupportedFormatCreatesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.sarif")
	r, err := New("sarif", path, "run-1")
	require.Error(t, err)
	assert.Nil(t, r)
	assert.Contains(t, err.Error(), "unsupported output format: sarif")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestNewStdoutCloseIsNoop(t *testing.T) {
	for _, path := range []string{"", "stdout"} {
		r, err := New("json", path, "run-1")
		require.NoError(t, err)
		_, isNop := r.(*JSONReporter).writer.(*nopWriteCloser)
		assert.True(t, isNop)
	}
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	r, err := New("json", path, "run-1")
	require.NoError(t, err)
	writeAll(t, r)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var suite schemas.SuiteReport
	require.NoError(t, json.Unmarshal(data, &suite))
	assert.Equal(t, "run-1", suite.RunID)
	require.Len(t, suite.Scenarios, 3)
	assert.False(t, suite.Passed())
}

func TestTextReporter(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewWithStdout("text", "", "run-1", &buf)
	require.NoError(t, err)
	writeAll(t, r)

	out := buf.String()
	assert.Contains(t, out, "PASS app (1.2s)")
	assert.Contains(t, out, "artifact: verification/app_screenshot.png")
	assert.Contains(t, out, "FAIL pagination")
	assert.Contains(t, out, "kind:  timeout")
	assert.Contains(t, out, "bridge calls: 1")
	assert.Contains(t, out, "ERROR import")
	assert.Contains(t, out, "capture: capture verification/import_error.png: empty image")
	assert.Contains(t, out, "3 scenarios: 1 passed, 1 failed, 1 errors")
}

func TestJSONReporterEmptySuite(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewWithStdout("json", "", "run-2", &buf)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	var suite schemas.SuiteReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &suite))
	assert.NotNil(t, suite.Scenarios)
	assert.Empty(t, suite.Scenarios)
	assert.True(t, suite.Passed())
}

func TestWriteRejectsNil(t *testing.T) {
	for _, format := range ValidFormats() {
		r, err := NewWithStdout(format, "", "run", &bytes.Buffer{})
		require.NoError(t, err)
		assert.Error(t, r.Write(nil), format)
	}
}

func TestJUnitReporter(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewWithStdout("junit", "", "run-1", &buf)
	require.NoError(t, err)
	writeAll(t, r)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(buf.Bytes()))

	suite := doc.FindElement("/testsuites/testsuite")
	require.NotNil(t, suite)
	assert.Equal(t, "3", suite.SelectAttrValue("tests", ""))
	assert.Equal(t, "1", suite.SelectAttrValue("failures", ""))
	assert.Equal(t, "1", suite.SelectAttrValue("errors", ""))
	assert.Equal(t, "run-1", suite.FindElement("properties/property[@name='run_id']").SelectAttrValue("value", ""))

	cases := suite.SelectElements("testcase")
	require.Len(t, cases, 3)
	assert.Equal(t, "app", cases[0].SelectAttrValue("name", ""))
	assert.Equal(t, "1.200", cases[0].SelectAttrValue("time", ""))
	assert.Nil(t, cases[0].SelectElement("failure"))

	failure := cases[1].SelectElement("failure")
	require.NotNil(t, failure)
	assert.Equal(t, "timeout", failure.SelectAttrValue("type", ""))
	assert.Contains(t, failure.Text(), "#1 invoke get-all-samples handled=true")

	errEl := cases[2].SelectElement("error")
	require.NotNil(t, errEl)
	assert.Equal(t, "navigation", errEl.SelectAttrValue("type", ""))
	assert.Contains(t, cases[2].SelectElement("system-out").Text(), "capture:")
}
