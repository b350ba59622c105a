package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// PollInterval is how often a polling step retries
const PollInterval = 250 * time.Millisecond

// Runner executes integration tests against a running verse-engine API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration
	Logger            func(format string, args ...interface{})
	ErrorHandlingMode ErrorHandlingMode
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 30 * time.Second},
		Timeout:           30 * time.Second,
		Logger:            func(string, ...interface{}) {},
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a JSON file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := json.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}

	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
// Returns a list of actual test suites (expanded from the sequence if needed)
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		casePath := filepath.Join(casesDir, caseFile)

		// Recursively load (in case a sequence references another sequence)
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}

		jobs = append(jobs, subJobs...)
	}

	return jobs, nil
}

// RunSuite executes a complete test suite
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job:     TestJob{Name: suite.Name, Suite: suite},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)
		stepResult := r.runStep(ctx, step)
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}

		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

// runStep executes a step, retrying it while a poll window is open
func (r *Runner) runStep(ctx context.Context, step TestStep) TestResult {
	start := time.Now()
	if step.Path == "" {
		select {
		case <-ctx.Done():
			return TestResult{StepName: step.Name, Error: ctx.Err(), IsWait: true}
		case <-time.After(seconds(step.WaitSeconds)):
		}
		return TestResult{StepName: step.Name, Success: true, IsWait: true, Duration: time.Since(start)}
	}

	deadline := start.Add(seconds(step.PollSeconds))
	for {
		result := r.executeStep(ctx, step)
		if result.Success || time.Now().After(deadline) {
			result.Duration = time.Since(start)
			return result
		}
		select {
		case <-ctx.Done():
			result.Error = ctx.Err()
			return result
		case <-time.After(PollInterval):
		}
	}
}

// executeStep performs the actual step execution
func (r *Runner) executeStep(ctx context.Context, step TestStep) TestResult {
	result := TestResult{StepName: step.Name}

	method := step.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(step.Body) > 0 {
		body = bytes.NewReader(step.Body)
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, method, r.BaseURL+step.Path, body)
	if err != nil {
		result.Error = fmt.Errorf("failed to create request: %w", err)
		return result
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		result.Error = fmt.Errorf("request failed: %w", err)
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		result.Error = fmt.Errorf("failed to read response: %w", err)
		return result
	}
	result.ResponseText = string(data)

	if err := checkExpectations(step.Expectations, resp.StatusCode, data); err != nil {
		result.Error = fmt.Errorf("expectation failed: %w", err)
		return result
	}

	result.Success = true
	return result
}

// checkExpectations validates a response against the step's expectations
func checkExpectations(exp Expectations, status int, body []byte) error {
	if exp.Status != nil && status != *exp.Status {
		return fmt.Errorf("expected status %d, got %d: %s", *exp.Status, status, string(body))
	}

	for _, text := range exp.BodyContains {
		if !strings.Contains(string(body), text) {
			return fmt.Errorf("expected response to contain '%s', but it didn't", text)
		}
	}

	if len(exp.Fields) == 0 {
		return nil
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("response is not JSON: %w", err)
	}
	for path, want := range exp.Fields {
		got, ok := lookupPath(doc, path)
		if !ok {
			return fmt.Errorf("expected field %s to exist, but it doesn't", path)
		}
		if !reflect.DeepEqual(got, want) {
			return fmt.Errorf("expected field %s to be %v, got %v", path, want, got)
		}
	}
	return nil
}

// lookupPath walks a decoded JSON document along a dotted path; numeric
// segments index arrays
func lookupPath(doc any, path string) (any, bool) {
	cur := doc
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
