package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bankops/bankctl/internal/config"
	"github.com/bankops/bankctl/internal/model"
)

type recordedRun struct {
	dir  string
	argv []string
}

type fakeSuiteCommandRunner struct {
	runs   []recordedRun
	failOn string
}

func (f *fakeSuiteCommandRunner) Run(_ context.Context, dir string, argv []string) error {
	f.runs = append(f.runs, recordedRun{dir: dir, argv: argv})
	if f.failOn != "" && strings.Contains(strings.Join(argv, " "), f.failOn) {
		return errors.New("exit status 1")
	}
	return nil
}

func suiteTestConfig() *config.PipelineConfig {
	cfg := config.Default()
	cfg.Build.Dir = "/repo/banking"
	cfg.Tests = config.TestsConfig{
		Unit:        []string{"./gradlew", "test"},
		Integration: []string{"./gradlew", "integrationTest"},
		E2E:         []string{"./gradlew", "e2eTest"},
		API:         []string{"./gradlew", "apiTest"},
	}
	return &cfg
}

func suiteOutcomes(results []model.TestSuiteResult) map[string]model.Outcome {
	out := make(map[string]model.Outcome, len(results))
	for _, r := range results {
		out[r.Suite] = r.Outcome
	}
	return out
}

func TestSuitesRunInOrder(t *testing.T) {
	runner := &fakeSuiteCommandRunner{}
	results := NewTestRunner(suiteTestConfig(), runner).Run(context.Background())

	if len(results) != 4 {
		t.Fatalf("Expected 4 suite results, got %d", len(results))
	}
	wantOrder := []string{"test", "integrationTest", "e2eTest", "apiTest"}
	if len(runner.runs) != len(wantOrder) {
		t.Fatalf("Run count does not match: got %d, want %d", len(runner.runs), len(wantOrder))
	}
	for i, run := range runner.runs {
		if run.argv[1] != wantOrder[i] {
			t.Errorf("Suite %d does not match: got %s, want %s", i, run.argv[1], wantOrder[i])
		}
		if run.dir != "/repo/banking" {
			t.Errorf("Suite %d ran in %s, want /repo/banking", i, run.dir)
		}
	}
	for suite, outcome := range suiteOutcomes(results) {
		if outcome != model.OutcomePass {
			t.Errorf("Suite %s outcome does not match: got %s, want %s", suite, outcome, model.OutcomePass)
		}
	}
}

func TestSkipFlagsSkipSuites(t *testing.T) {
	cfg := suiteTestConfig()
	cfg.SkipUnit = true
	cfg.SkipE2E = true

	runner := &fakeSuiteCommandRunner{}
	results := NewTestRunner(cfg, runner).Run(context.Background())

	outcomes := suiteOutcomes(results)
	if outcomes["unit"] != model.OutcomeSkipped {
		t.Errorf("unit should be skipped, got %s", outcomes["unit"])
	}
	if outcomes["e2e"] != model.OutcomeSkipped {
		t.Errorf("e2e should be skipped, got %s", outcomes["e2e"])
	}
	if outcomes["integration"] != model.OutcomePass || outcomes["api"] != model.OutcomePass {
		t.Errorf("Remaining suites should still run: %v", outcomes)
	}
	if len(runner.runs) != 2 {
		t.Errorf("Skipped suites must not invoke the runner: got %d runs", len(runner.runs))
	}
}

func TestSuiteFailureDoesNotStopRemaining(t *testing.T) {
	runner := &fakeSuiteCommandRunner{failOn: "integrationTest"}
	results := NewTestRunner(suiteTestConfig(), runner).Run(context.Background())

	outcomes := suiteOutcomes(results)
	if outcomes["integration"] != model.OutcomeFail {
		t.Fatalf("integration should fail, got %s", outcomes["integration"])
	}
	if outcomes["e2e"] != model.OutcomePass || outcomes["api"] != model.OutcomePass {
		t.Errorf("Suites after a failure must still run: %v", outcomes)
	}
	if len(runner.runs) != 4 {
		t.Errorf("All four suites should have been invoked, got %d", len(runner.runs))
	}

	for _, r := range results {
		if r.Suite == "integration" && !strings.Contains(r.Message, "exit status 1") {
			t.Errorf("Failure message does not match: got %q", r.Message)
		}
	}
}

func TestUnconfiguredSuiteIsSkipped(t *testing.T) {
	cfg := suiteTestConfig()
	cfg.Tests.API = nil

	runner := &fakeSuiteCommandRunner{}
	results := NewTestRunner(cfg, runner).Run(context.Background())

	outcomes := suiteOutcomes(results)
	if outcomes["api"] != model.OutcomeSkipped {
		t.Errorf("Unconfigured suite should be skipped, got %s", outcomes["api"])
	}
	if len(runner.runs) != 3 {
		t.Errorf("Expected 3 runs, got %d", len(runner.runs))
	}
}

func TestInterruptedRunSkipsLaterSuites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &fakeSuiteCommandRunner{}
	results := NewTestRunner(suiteTestConfig(), runner).Run(ctx)

	if len(runner.runs) != 0 {
		t.Fatalf("Canceled context must not invoke the runner, got %d runs", len(runner.runs))
	}
	for _, r := range results {
		if r.Outcome != model.OutcomeSkipped {
			t.Errorf("Suite %s should be skipped on interrupt, got %s", r.Suite, r.Outcome)
		}
	}
}
