package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bankops/bankctl/internal/build"
	"github.com/bankops/bankctl/internal/config"
	"github.com/bankops/bankctl/internal/model"
	"github.com/bankops/bankctl/internal/utils/logger"
)

// TestRunner executes the configured test suites in order. Suites run
// independently: a failed suite is recorded and the next one still runs, so
// one bad suite never hides the results of the others.
type TestRunner struct {
	cfg    *config.PipelineConfig
	runner build.CommandRunner
	logger *zap.Logger
}

// NewTestRunner creates a test runner executing suites through runner.
func NewTestRunner(cfg *config.PipelineConfig, runner build.CommandRunner) *TestRunner {
	return &TestRunner{
		cfg:    cfg,
		runner: runner,
		logger: logger.With(zap.String("component", "test-runner")),
	}
}

type testSuite struct {
	name string
	argv []string
	skip bool
}

// Run executes unit, integration, end-to-end, and API suites, honoring the
// per-suite skip flags. Suites with no configured command are skipped.
func (t *TestRunner) Run(ctx context.Context) []model.TestSuiteResult {
	suites := []testSuite{
		{name: "unit", argv: t.cfg.Tests.Unit, skip: t.cfg.SkipUnit},
		{name: "integration", argv: t.cfg.Tests.Integration, skip: t.cfg.SkipIntegration},
		{name: "e2e", argv: t.cfg.Tests.E2E, skip: t.cfg.SkipE2E},
		{name: "api", argv: t.cfg.Tests.API, skip: t.cfg.SkipAPITests},
	}

	results := make([]model.TestSuiteResult, 0, len(suites))
	for _, s := range suites {
		if s.skip || len(s.argv) == 0 {
			t.logger.Info("Skipping test suite", zap.String("suite", s.name))
			results = append(results, model.TestSuiteResult{
				Suite:   s.name,
				Outcome: model.OutcomeSkipped,
				Message: "skipped by configuration",
			})
			continue
		}
		if err := ctx.Err(); err != nil {
			results = append(results, model.TestSuiteResult{
				Suite:   s.name,
				Outcome: model.OutcomeSkipped,
				Message: "run interrupted",
			})
			continue
		}

		t.logger.Info("Running test suite",
			zap.String("suite", s.name),
			zap.Strings("command", s.argv))
		start := time.Now()
		err := t.runner.Run(ctx, t.cfg.Build.Dir, s.argv)
		res := model.TestSuiteResult{
			Suite:   s.name,
			Elapsed: time.Since(start),
		}
		if err != nil {
			res.Outcome = model.OutcomeFail
			res.Message = err.Error()
			t.logger.Error("Test suite failed",
				zap.String("suite", s.name),
				zap.Error(err))
		} else {
			res.Outcome = model.OutcomePass
			t.logger.Info("Test suite passed",
				zap.String("suite", s.name),
				zap.Duration("elapsed", res.Elapsed))
		}
		results = append(results, res)
	}
	return results
}
