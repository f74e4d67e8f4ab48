package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bankops/bankctl/internal/build"
	"github.com/bankops/bankctl/internal/config"
	"github.com/bankops/bankctl/internal/model"
	"github.com/bankops/bankctl/internal/orchestrator"
	"github.com/bankops/bankctl/internal/report"
	"github.com/bankops/bankctl/internal/storage"
	"github.com/bankops/bankctl/internal/utils/logger"
)

// Runtime is the slice of the container orchestrator the controller drives
// directly; step execution goes through the stage runner and its launcher.
type Runtime interface {
	Ping(ctx context.Context) error
	EnsureNetwork(ctx context.Context) error
	RemoveAll(ctx context.Context, opts orchestrator.RemoveOptions) error
}

// ArtifactBuilder produces the application container images.
type ArtifactBuilder interface {
	Build(ctx context.Context, force bool) error
}

// FixtureStager writes seed fixtures for container startup.
type FixtureStager interface {
	Stage(ctx context.Context) ([]string, error)
}

// StageExecutor runs one stack stage to completion.
type StageExecutor interface {
	Run(ctx context.Context, stage model.Stage) model.StageResult
}

// SuiteRunner runs the configured test suites.
type SuiteRunner interface {
	Run(ctx context.Context) []model.TestSuiteResult
}

// GateValidator re-probes the deployed stack.
type GateValidator interface {
	Validate(ctx context.Context) *model.ValidationResult
}

// Deps bundles the collaborators one pipeline run drives. Store may be nil
// when run history is not wanted; Printer may be nil to suppress the
// terminal summary.
type Deps struct {
	Runtime  Runtime
	Stages   StageExecutor
	Builder  ArtifactBuilder
	Fixtures FixtureStager
	Tests    SuiteRunner
	Gate     GateValidator
	Store    storage.RunStore
	Printer  *report.Printer
}

// Controller drives one deployment run through the pipeline state machine.
// States execute in fixed order; a fatal failure skips the remaining states,
// tears the environment down best-effort, and lands in Failed. Test and
// validation failures are not fatal mid-pipeline: they are collected in the
// report and fail the run at the end.
type Controller struct {
	cfg    *config.PipelineConfig
	stack  *model.Stack
	deps   Deps
	report *model.RunReport
	logger *zap.Logger
}

// NewController creates a controller for one run of the given stack.
func NewController(cfg *config.PipelineConfig, st *model.Stack, deps Deps) *Controller {
	return &Controller{
		cfg:    cfg,
		stack:  st,
		deps:   deps,
		report: model.NewRunReport(cfg.Environment, st.Name),
		logger: logger.With(zap.String("component", "controller")),
	}
}

// Run drives the pipeline to a terminal state and returns the finalized
// report. A nil error means the run succeeded end to end; the report is
// valid either way.
func (c *Controller) Run(ctx context.Context) (*model.RunReport, error) {
	c.enter(model.StateInit)
	c.attachRunLog()
	c.logger.Info("Starting deployment",
		zap.String("run_id", c.report.ID),
		zap.String("environment", c.cfg.Environment),
		zap.String("stack", c.stack.Name))

	type transition struct {
		state model.State
		fn    func(context.Context) error
	}
	transitions := []transition{
		{model.StatePrereqCheck, c.prereqCheck},
		{model.StateEnvSetup, c.envSetup},
		{model.StateCleanup, c.cleanup},
		{model.StateBuild, c.buildImages},
		{model.StateFixtureLoad, c.loadFixtures},
		{model.StateInfraStage, c.runInfraStages},
		{model.StateAppStage, c.runAppStage},
		{model.StateTestStage, c.runTests},
		{model.StateValidationGate, c.runGate},
	}

	var fatal error
	for _, tr := range transitions {
		if err := ctx.Err(); err != nil {
			fatal = fmt.Errorf("run interrupted: %w", err)
			break
		}
		c.enter(tr.state)
		if err := tr.fn(ctx); err != nil {
			fatal = fmt.Errorf("%s: %w", tr.state, err)
			c.logger.Error("Pipeline state failed",
				zap.String("state", string(tr.state)),
				zap.Error(err))
			break
		}
	}

	if fatal != nil {
		// Best-effort teardown so an aborted run does not leave half a
		// stack behind.
		c.enter(model.StateCleanup)
		c.teardownAfterFailure()
		return c.finish(model.StateFailed, false, fatal)
	}

	c.enter(model.StateSummary)
	if c.report.Succeeded() {
		return c.finish(model.StateSuccess, true, nil)
	}
	return c.finish(model.StateFailed, false, fmt.Errorf("deployment verification failed"))
}

// Report returns the live run report.
func (c *Controller) Report() *model.RunReport {
	return c.report
}

func (c *Controller) finish(terminal model.State, success bool, err error) (*model.RunReport, error) {
	c.enter(terminal)
	c.report.Finalize(success)
	if c.deps.Printer != nil {
		c.deps.Printer.Summary(c.report)
	}
	c.persist()
	return c.report, err
}

func (c *Controller) enter(s model.State) {
	c.report.RecordState(s)
	c.logger.Info("Entering state", zap.String("state", string(s)))
}

// attachRunLog tees log output to a per-run file so every deployment leaves
// a reviewable trace. Failure to open the file is not fatal.
func (c *Controller) attachRunLog() {
	name := fmt.Sprintf("deploy-%s-%s.log",
		c.cfg.Environment, c.report.StartedAt.Format("20060102-150405"))
	path := filepath.Join(c.cfg.LogDir, name)
	if err := logger.AttachFile(path); err != nil {
		c.logger.Warn("Failed to attach run log", zap.Error(err))
		return
	}
	c.report.SetLogPath(path)
}

// prereqCheck verifies the container runtime, the build tool, and free disk
// space before anything is mutated.
func (c *Controller) prereqCheck(ctx context.Context) error {
	if err := c.deps.Runtime.Ping(ctx); err != nil {
		return fmt.Errorf("container runtime unavailable: %w", err)
	}
	if err := build.Available(c.cfg.Build.Dir, c.cfg.Build.Command); err != nil {
		return fmt.Errorf("build tool unavailable: %w", err)
	}

	free, err := diskFreeGB(".")
	if err != nil {
		c.logger.Warn("Failed to measure free disk space", zap.Error(err))
		return nil
	}
	if free < c.cfg.MinDiskGB {
		return fmt.Errorf("insufficient disk space: %dGB free, %dGB required", free, c.cfg.MinDiskGB)
	}
	c.logger.Info("Prerequisites satisfied", zap.Int("free_disk_gb", free))
	return nil
}

// envSetup creates the per-environment directory layout, attaches the
// rotating log, and ensures the container network exists.
func (c *Controller) envSetup(ctx context.Context) error {
	for _, dir := range []string{c.cfg.EnvDir(), c.cfg.FixturesDir(), c.cfg.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	if err := logger.AttachRotating(logger.RotationConfig{
		Path:       filepath.Join(c.cfg.LogDir, "bankctl.log"),
		MaxSizeMB:  c.cfg.Rotate.MaxSizeMB,
		MaxBackups: c.cfg.Rotate.MaxBackups,
		MaxAgeDays: c.cfg.Rotate.MaxAgeDays,
		Compress:   c.cfg.Rotate.Compress,
	}); err != nil {
		c.logger.Warn("Failed to attach rotating log", zap.Error(err))
	}

	if err := c.deps.Runtime.EnsureNetwork(ctx); err != nil {
		return fmt.Errorf("failed to ensure network: %w", err)
	}
	return nil
}

// cleanup removes leftovers of previous runs, volumes included, so the new
// deployment starts from seeded state. Errors are logged and swallowed: a
// partially failed cleanup must not block a fresh deploy.
func (c *Controller) cleanup(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, c.cfg.CleanupTimeout)
	defer cancel()
	if err := c.deps.Runtime.RemoveAll(cctx, orchestrator.RemoveOptions{Volumes: true}); err != nil {
		c.logger.Warn("Cleanup incomplete, continuing", zap.Error(err))
	}
	return nil
}

// teardownAfterFailure tears the stack down after a fatal error. It runs on
// a fresh context because the run context may already be canceled. Volumes
// are kept for postmortem inspection; the next run's cleanup purges them.
func (c *Controller) teardownAfterFailure() {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CleanupTimeout)
	defer cancel()
	if err := c.deps.Runtime.RemoveAll(ctx, orchestrator.RemoveOptions{}); err != nil {
		c.logger.Warn("Post-failure cleanup incomplete", zap.Error(err))
	}
}

func (c *Controller) buildImages(ctx context.Context) error {
	return c.deps.Builder.Build(ctx, c.cfg.ForceRebuild)
}

// loadFixtures stages seed data for container startup. Partial failure is
// not fatal: services missing their fixtures surface later through health
// checks and the validation gate.
func (c *Controller) loadFixtures(ctx context.Context) error {
	staged, err := c.deps.Fixtures.Stage(ctx)
	if err != nil {
		c.logger.Warn("Fixture staging incomplete", zap.Error(err))
	}
	c.logger.Info("Fixtures staged", zap.Int("files", len(staged)))
	return nil
}

// runInfraStages runs every stage except the last. The application stage
// runs separately so its failure is attributed to the right state.
func (c *Controller) runInfraStages(ctx context.Context) error {
	if len(c.stack.Stages) < 2 {
		return nil
	}
	for _, stage := range c.stack.Stages[:len(c.stack.Stages)-1] {
		if err := c.runStage(ctx, stage); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) runAppStage(ctx context.Context) error {
	if len(c.stack.Stages) == 0 {
		return nil
	}
	return c.runStage(ctx, c.stack.Stages[len(c.stack.Stages)-1])
}

func (c *Controller) runStage(ctx context.Context, stage model.Stage) error {
	result := c.deps.Stages.Run(ctx, stage)
	c.report.AddStage(result)
	if result.Outcome.Failed() {
		return fmt.Errorf("stage %s failed", stage.Name)
	}
	return nil
}

// runTests executes the suites and records every result. Suite failures are
// not fatal here; they fail the run at the summary.
func (c *Controller) runTests(ctx context.Context) error {
	for _, res := range c.deps.Tests.Run(ctx) {
		c.report.AddTest(res)
	}
	return nil
}

func (c *Controller) runGate(ctx context.Context) error {
	c.report.SetValidation(c.deps.Gate.Validate(ctx))
	return nil
}

// persist saves the finished report. History must never fail a run.
func (c *Controller) persist() {
	if c.deps.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.deps.Store.SaveRun(ctx, c.report); err != nil {
		c.logger.Warn("Failed to persist run history", zap.Error(err))
	}
}

// diskFreeGB returns the free space of the filesystem holding path.
func diskFreeGB(path string) (int, error) {
	var fs syscall.Statfs_t
	if err := syscall.Statfs(path, &fs); err != nil {
		return 0, err
	}
	return int(uint64(fs.Bavail) * uint64(fs.Bsize) / (1 << 30)), nil
}
