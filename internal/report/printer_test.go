package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/bankops/bankctl/internal/model"
)

func setupPrinter(t *testing.T) (*Printer, *bytes.Buffer, func()) {
	t.Helper()

	prev := color.NoColor
	color.NoColor = true

	var buf bytes.Buffer
	return NewPrinter(&buf), &buf, func() {
		color.NoColor = prev
	}
}

func failedTestReport() *model.RunReport {
	r := model.NewRunReport("local", "banking-stack")
	r.AddStage(model.StageResult{
		Name:    "infrastructure",
		Outcome: model.OutcomeFail,
		Elapsed: 42 * time.Second,
		Steps: []model.StepResult{
			{Service: "postgres", Outcome: model.OutcomePass, Attempts: 3, Elapsed: 6 * time.Second},
			{Service: "kafka", Outcome: model.OutcomeFail, Attempts: 45, Elapsed: 90 * time.Second, Message: "gave up after 90s"},
			{Service: "openldap", Outcome: model.OutcomeSkipped, Message: "directory disabled"},
		},
	})
	r.AddTest(model.TestSuiteResult{Suite: "unit", Outcome: model.OutcomePass, Elapsed: 30 * time.Second})
	r.AddTest(model.TestSuiteResult{Suite: "e2e", Outcome: model.OutcomeSkipped})
	r.SetValidation(&model.ValidationResult{
		Outcome: model.OutcomeFail,
		Elapsed: 5 * time.Second,
		Targets: []model.TargetResult{
			{Name: "banking-api", Kind: "service", Outcome: model.OutcomePass},
			{Name: "message-broker", Kind: "message-broker", Outcome: model.OutcomeFail, Message: "connection refused"},
		},
	})
	r.Finalize(false)
	return r
}

func TestSummaryRendersStagesTestsAndValidation(t *testing.T) {
	p, buf, cleanup := setupPrinter(t)
	defer cleanup()

	p.Summary(failedTestReport())
	out := buf.String()

	for _, want := range []string{
		"Deployment summary",
		"Environment: local",
		"Stage infrastructure",
		"healthy after 3 attempts",
		"gave up after 90s",
		"directory disabled",
		"Test suites",
		"Validation gate",
		"connection refused",
		"Deployment failed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Summary output missing %q:\n%s", want, out)
		}
	}
}

func TestSummaryListsEveryFailure(t *testing.T) {
	p, buf, cleanup := setupPrinter(t)
	defer cleanup()

	p.Summary(failedTestReport())
	out := buf.String()

	if !strings.Contains(out, "Failures (2)") {
		t.Errorf("Summary should count 2 failures:\n%s", out)
	}
	if !strings.Contains(out, "step infrastructure/kafka") {
		t.Errorf("Summary should name the failed step:\n%s", out)
	}
	if !strings.Contains(out, "validation target message-broker") {
		t.Errorf("Summary should name the failed validation target:\n%s", out)
	}
}

func TestSummarySuccessHasNoFailureSection(t *testing.T) {
	p, buf, cleanup := setupPrinter(t)
	defer cleanup()

	r := model.NewRunReport("local", "banking-stack")
	r.AddStage(model.StageResult{
		Name:    "application",
		Outcome: model.OutcomePass,
		Steps: []model.StepResult{
			{Service: "banking-api", Outcome: model.OutcomePass, Attempts: 1, Elapsed: 12 * time.Second},
		},
	})
	r.Finalize(true)

	p.Summary(r)
	out := buf.String()

	if strings.Contains(out, "Failures") {
		t.Errorf("Successful run should not print a failure section:\n%s", out)
	}
	if !strings.Contains(out, "Deployment succeeded") {
		t.Errorf("Successful run should print the success verdict:\n%s", out)
	}
	if !strings.Contains(out, "1 healthy, 0 failed") {
		t.Errorf("Footer counts do not match: %s", out)
	}
}

func TestGateRendersVerdict(t *testing.T) {
	p, buf, cleanup := setupPrinter(t)
	defer cleanup()

	p.Gate(&model.ValidationResult{
		Outcome: model.OutcomePass,
		Elapsed: 3 * time.Second,
		Targets: []model.TargetResult{
			{Name: "banking-api", Kind: "service", Outcome: model.OutcomePass},
			{Name: "database", Kind: "database", Outcome: model.OutcomePass},
		},
	})
	if !strings.Contains(buf.String(), "All 2 targets healthy") {
		t.Errorf("Gate verdict does not match: got output\n%s", buf.String())
	}

	buf.Reset()
	p.Gate(&model.ValidationResult{
		Outcome: model.OutcomeFail,
		Elapsed: 3 * time.Second,
		Targets: []model.TargetResult{
			{Name: "banking-api", Kind: "service", Outcome: model.OutcomePass},
			{Name: "database", Kind: "database", Outcome: model.OutcomeFail, Message: "connection refused"},
		},
	})
	out := buf.String()
	if !strings.Contains(out, "1 of 2 targets failed") {
		t.Errorf("Gate verdict does not match: got output\n%s", out)
	}
	if !strings.Contains(out, "connection refused") {
		t.Errorf("Gate should carry target messages:\n%s", out)
	}
}

func TestStatusTableCountsHealthyServices(t *testing.T) {
	p, buf, cleanup := setupPrinter(t)
	defer cleanup()

	rows := []ServiceRow{
		{Service: "postgres", State: "running", Health: model.Healthy, Uptime: 90 * time.Minute},
		{Service: "kafka", State: "running", Health: model.Healthy, Uptime: time.Hour},
		{Service: "banking-api", State: "exited", Health: model.Unhealthy, Detail: "exit code 1"},
	}
	p.StatusTable("local", rows)
	out := buf.String()

	if !strings.Contains(out, "Environment local") {
		t.Errorf("StatusTable missing environment header:\n%s", out)
	}
	if !strings.Contains(out, "SERVICE") || !strings.Contains(out, "HEALTH") {
		t.Errorf("StatusTable missing column headers:\n%s", out)
	}
	if !strings.Contains(out, "2/3 services healthy") {
		t.Errorf("StatusTable health count does not match: got output\n%s", out)
	}
	if !strings.Contains(out, "exit code 1") {
		t.Errorf("StatusTable should carry the detail column:\n%s", out)
	}
}

func TestRunListEmpty(t *testing.T) {
	p, buf, cleanup := setupPrinter(t)
	defer cleanup()

	p.RunList(nil)
	if !strings.Contains(buf.String(), "no recorded runs") {
		t.Errorf("Empty run list should say so, got %q", buf.String())
	}
}

func TestRunListFormatsRows(t *testing.T) {
	p, buf, cleanup := setupPrinter(t)
	defer cleanup()

	pass := model.NewRunReport("local", "banking-stack")
	pass.Finalize(true)
	fail := model.NewRunReport("staging", "banking-stack")
	fail.Finalize(false)

	p.RunList([]*model.RunReport{pass, fail})
	out := buf.String()

	if !strings.Contains(out, pass.ID) || !strings.Contains(out, fail.ID) {
		t.Errorf("RunList should print both run IDs:\n%s", out)
	}
	if !strings.Contains(out, "staging") {
		t.Errorf("RunList missing environment column:\n%s", out)
	}
}

func TestRunDetailIncludesStateTrace(t *testing.T) {
	p, buf, cleanup := setupPrinter(t)
	defer cleanup()

	r := failedTestReport()
	r.RecordState(model.StateInit)
	r.RecordState(model.StateFailed)

	p.RunDetail(r)
	out := buf.String()

	if !strings.Contains(out, "State trace") {
		t.Errorf("RunDetail missing state trace:\n%s", out)
	}
	if !strings.Contains(out, string(model.StateInit)) || !strings.Contains(out, string(model.StateFailed)) {
		t.Errorf("RunDetail should list recorded states:\n%s", out)
	}
}
