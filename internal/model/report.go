package model

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// State identifies one phase of the deployment pipeline state machine.
type State string

const (
	StateInit           State = "Init"
	StatePrereqCheck    State = "PrereqCheck"
	StateEnvSetup       State = "EnvSetup"
	StateCleanup        State = "Cleanup"
	StateBuild          State = "Build"
	StateFixtureLoad    State = "FixtureLoad"
	StateInfraStage     State = "InfraStage"
	StateAppStage       State = "AppStage"
	StateTestStage      State = "TestStage"
	StateValidationGate State = "ValidationGate"
	StateSummary        State = "Summary"
	StateSuccess        State = "Success"
	StateFailed         State = "Failed"
)

// Terminal reports whether the state machine halts in this state.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed
}

// HealthStatus classifies the outcome of a health probe.
type HealthStatus string

const (
	Healthy   HealthStatus = "healthy"
	Unhealthy HealthStatus = "unhealthy"
	Unknown   HealthStatus = "unknown"
)

// HealthCheckResult is the outcome of waiting for one service to become
// healthy: terminal status, attempts spent, wall time, and a human-readable
// message carrying the last probe error when the wait gave up.
type HealthCheckResult struct {
	Service  string        `json:"service"`
	Status   HealthStatus  `json:"status"`
	Attempts int           `json:"attempts"`
	Elapsed  time.Duration `json:"elapsed"`
	Message  string        `json:"message,omitempty"`
}

// Outcome classifies a finished step, stage, test suite, or run.
type Outcome string

const (
	OutcomePass           Outcome = "pass"
	OutcomeFail           Outcome = "fail"
	OutcomeSkipped        Outcome = "skipped"
	OutcomeBestEffortFail Outcome = "best_effort_failed"
)

// Failed reports whether the outcome should fail the run. Skipped steps and
// best-effort failures never do.
func (o Outcome) Failed() bool {
	return o == OutcomeFail
}

// StepResult records how one step of a stage went
type StepResult struct {
	Service  string        `json:"service"`
	Outcome  Outcome       `json:"outcome"`
	Attempts int           `json:"attempts,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
	Message  string        `json:"message,omitempty"`
}

// StageResult records how one stage went
type StageResult struct {
	Name    string        `json:"name"`
	Outcome Outcome       `json:"outcome"`
	Elapsed time.Duration `json:"elapsed"`
	Steps   []StepResult  `json:"steps"`
}

// TestSuiteResult records how one test suite invocation went
type TestSuiteResult struct {
	Suite   string        `json:"suite"`
	Outcome Outcome       `json:"outcome"`
	Elapsed time.Duration `json:"elapsed"`
	Message string        `json:"message,omitempty"`
}

// TargetResult records one validation-gate target check
type TargetResult struct {
	Name    string        `json:"name"`
	Kind    string        `json:"kind"`
	Outcome Outcome       `json:"outcome"`
	Elapsed time.Duration `json:"elapsed"`
	Message string        `json:"message,omitempty"`
}

// ValidationResult aggregates every target check of the validation gate.
// The gate never short-circuits, so Targets always holds one entry per
// configured target.
type ValidationResult struct {
	Outcome Outcome        `json:"outcome"`
	Elapsed time.Duration  `json:"elapsed"`
	Targets []TargetResult `json:"targets"`
}

// FailedTargets returns the names of every target that did not pass.
func (v *ValidationResult) FailedTargets() []string {
	var failed []string
	for _, t := range v.Targets {
		if t.Outcome == OutcomeFail {
			failed = append(failed, t.Name)
		}
	}
	return failed
}

// StateRecord is one entry of the state-machine trace.
type StateRecord struct {
	State     State     `json:"state"`
	EnteredAt time.Time `json:"entered_at"`
}

// RunReport is the full record of one pipeline run. Append methods are safe
// for concurrent use; the controller finalizes the report exactly once and
// the stored copy is never mutated afterwards.
type RunReport struct {
	mu sync.Mutex

	ID          string            `json:"id"`
	Environment string            `json:"environment"`
	StackName   string            `json:"stack_name"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at,omitempty"`
	States      []StateRecord     `json:"states"`
	Stages      []StageResult     `json:"stages,omitempty"`
	Tests       []TestSuiteResult `json:"tests,omitempty"`
	Validation  *ValidationResult `json:"validation,omitempty"`
	LogPath     string            `json:"log_path,omitempty"`
	Status      Outcome           `json:"status"`
}

// NewRunReport starts a report for a fresh run.
func NewRunReport(environment, stackName string) *RunReport {
	return &RunReport{
		ID:          uuid.New().String(),
		Environment: environment,
		StackName:   stackName,
		StartedAt:   time.Now(),
	}
}

// RecordState appends a state transition to the trace.
func (r *RunReport) RecordState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.States = append(r.States, StateRecord{State: s, EnteredAt: time.Now()})
}

// AddStage appends a finished stage result.
func (r *RunReport) AddStage(sr StageResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Stages = append(r.Stages, sr)
}

// AddTest appends a finished test suite result.
func (r *RunReport) AddTest(tr TestSuiteResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Tests = append(r.Tests, tr)
}

// SetValidation records the validation gate outcome.
func (r *RunReport) SetValidation(vr *ValidationResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Validation = vr
}

// SetLogPath records where the per-run log file was written.
func (r *RunReport) SetLogPath(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.LogPath = path
}

// Succeeded reports whether every stage, every executed test suite, and the
// validation gate (when it ran) passed.
func (r *RunReport) Succeeded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sr := range r.Stages {
		if sr.Outcome.Failed() {
			return false
		}
	}
	for _, tr := range r.Tests {
		if tr.Outcome.Failed() {
			return false
		}
	}
	if r.Validation != nil && r.Validation.Outcome.Failed() {
		return false
	}
	return true
}

// Finalize stamps the finish time and overall status. Called exactly once.
func (r *RunReport) Finalize(success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinishedAt = time.Now()
	if success {
		r.Status = OutcomePass
	} else {
		r.Status = OutcomeFail
	}
}

// Duration returns total wall time, live runs measured up to now.
func (r *RunReport) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
