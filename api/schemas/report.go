package schemas

import "time"

// Outcome is the terminal state of a scenario.
type Outcome string

const (
	// OutcomePass means every step succeeded.
	OutcomePass Outcome = "pass"
	// OutcomeFail means the application under test regressed (timeouts, failed expectations).
	OutcomeFail Outcome = "fail"
	// OutcomeError means the harness or its environment broke (launch, navigation, interaction, capture).
	OutcomeError Outcome = "error"
)

// StepReport records one executed step.
type StepReport struct {
	Index    int           `json:"index"`
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
	Kind     string        `json:"kind,omitempty"`
}

// ScenarioReport is the serializable outcome of a single scenario run.
type ScenarioReport struct {
	RunID      string        `json:"run_id"`
	Scenario   string        `json:"scenario"`
	Outcome    Outcome       `json:"outcome"`
	Kind       string        `json:"kind,omitempty"`
	Message    string        `json:"message,omitempty"`
	FailedStep string        `json:"failed_step,omitempty"`
	URL        string        `json:"url,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
	Steps      []StepReport  `json:"steps"`
	Artifacts  []string      `json:"artifacts,omitempty"`
	// CaptureError is set when a diagnostic capture failed after an earlier failure.
	CaptureError string       `json:"capture_error,omitempty"`
	BridgeCalls  []BridgeCall `json:"bridge_calls,omitempty"`
	LastWait     string       `json:"last_wait,omitempty"`
}

// SuiteReport aggregates the scenarios of one invocation.
type SuiteReport struct {
	RunID     string           `json:"run_id"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration_ns"`
	Scenarios []ScenarioReport `json:"scenarios"`
}

// Passed reports whether every scenario passed.
func (s SuiteReport) Passed() bool {
	for _, sc := range s.Scenarios {
		if sc.Outcome != OutcomePass {
			return false
		}
	}
	return true
}
