package runner

import (
	"encoding/json"
	"time"
)

// TestSuite defines a complete integration test scenario
// Can either be a regular test with Steps, or a suite that references other Cases
type TestSuite struct {
	Name  string     `json:"name"`
	Steps []TestStep `json:"steps,omitempty"` // Used for regular tests
	Cases []string   `json:"cases,omitempty"` // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep is one HTTP call and its expected outcome. A step with only
// wait_seconds just sleeps, letting the world's clock run.
type TestStep struct {
	Name         string          `json:"name,omitempty"`
	Method       string          `json:"method,omitempty"`
	Path         string          `json:"path,omitempty"`
	Body         json.RawMessage `json:"body,omitempty"`
	WaitSeconds  float64         `json:"wait_seconds,omitempty"`
	PollSeconds  float64         `json:"poll_seconds,omitempty"` // retry until expectations hold or this elapses
	Expectations Expectations    `json:"expect"`
}

// Expectations defines what to check after a step executes
type Expectations struct {
	Status       *int           `json:"status,omitempty"`
	Fields       map[string]any `json:"fields,omitempty"` // dotted JSON path to expected value
	BodyContains []string       `json:"body_contains,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	StepName     string
	Success      bool
	Error        error
	Duration     time.Duration
	ResponseText string
	IsWait       bool
}

// TestJob represents a test suite to be executed
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job      TestJob
	Results  []TestResult
	Duration time.Duration
	Error    error
}
