package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/bankops/bankctl/internal/config"
	"github.com/bankops/bankctl/internal/model"
	"github.com/bankops/bankctl/internal/probe"
	"github.com/bankops/bankctl/internal/utils/logger"
)

// Launcher starts a step's container together with its dependencies.
// Implemented by launch.Launcher.
type Launcher interface {
	Launch(ctx context.Context, step *model.Step) error
}

// ProberFunc resolves the health prober for one step.
type ProberFunc func(step *model.Step) (probe.Prober, error)

// StageRunner executes the steps of one stage: launch each container, then
// poll its probe until healthy. A failed required step aborts the stage and
// the remaining steps are marked skipped; best-effort steps never abort.
type StageRunner struct {
	cfg      *config.PipelineConfig
	launcher Launcher
	probers  ProberFunc
	logger   *zap.Logger
}

// NewStageRunner creates a stage runner over the given launcher and prober
// resolver.
func NewStageRunner(cfg *config.PipelineConfig, launcher Launcher, probers ProberFunc) *StageRunner {
	return &StageRunner{
		cfg:      cfg,
		launcher: launcher,
		probers:  probers,
		logger:   logger.With(zap.String("component", "stage-runner")),
	}
}

// Run executes every enabled step of the stage and returns the aggregate
// result. With cfg.Parallel > 1 independent steps run concurrently on a
// bounded pool.
func (r *StageRunner) Run(ctx context.Context, stage model.Stage) model.StageResult {
	start := time.Now()
	r.logger.Info("Running stage",
		zap.String("stage", stage.Name),
		zap.Int("steps", len(stage.Steps)))

	var result model.StageResult
	if r.cfg.Parallel > 1 {
		result = r.runParallel(ctx, stage)
	} else {
		result = r.runSequential(ctx, stage)
	}

	result.Elapsed = time.Since(start)
	if lo.SomeBy(result.Steps, func(s model.StepResult) bool { return s.Outcome.Failed() }) {
		result.Outcome = model.OutcomeFail
	} else {
		result.Outcome = model.OutcomePass
	}
	return result
}

func (r *StageRunner) runSequential(ctx context.Context, stage model.Stage) model.StageResult {
	result := model.StageResult{Name: stage.Name}
	aborted := false

	for i := range stage.Steps {
		step := &stage.Steps[i]
		if aborted {
			result.Steps = append(result.Steps, skippedStep(step, "stage aborted"))
			continue
		}
		if enabled, reason := stepEnabled(r.cfg, step); !enabled {
			r.logger.Info("Skipping service", zap.String("service", step.Service), zap.String("reason", reason))
			result.Steps = append(result.Steps, skippedStep(step, reason))
			continue
		}

		sr := r.runStep(ctx, step)
		result.Steps = append(result.Steps, sr)
		if sr.Outcome.Failed() {
			aborted = true
		}
	}
	return result
}

type stepOutcome struct {
	index  int
	result model.StepResult
}

// runParallel runs independent steps concurrently. A step only starts once
// every dependency inside the same stage has settled without a hard failure;
// dependencies from earlier stages were already health-gated when their
// stage ran.
func (r *StageRunner) runParallel(ctx context.Context, stage model.Stage) model.StageResult {
	inStage := make(map[string]int, len(stage.Steps))
	for i := range stage.Steps {
		inStage[stage.Steps[i].Service] = i
	}

	results := make([]*model.StepResult, len(stage.Steps))
	launched := make([]bool, len(stage.Steps))
	outcomes := make(chan stepOutcome)
	running := 0
	aborted := false

	// Resolve feature toggles up front so dependents do not wait on a step
	// that will never run.
	for i := range stage.Steps {
		if enabled, reason := stepEnabled(r.cfg, &stage.Steps[i]); !enabled {
			sr := skippedStep(&stage.Steps[i], reason)
			results[i] = &sr
		}
	}

	for {
		if !aborted {
			for i := range stage.Steps {
				if running >= r.cfg.Parallel {
					break
				}
				if launched[i] || results[i] != nil {
					continue
				}
				if !depsSettled(&stage.Steps[i], inStage, results) {
					continue
				}
				launched[i] = true
				running++
				go func(i int, step *model.Step) {
					outcomes <- stepOutcome{index: i, result: r.runStep(ctx, step)}
				}(i, &stage.Steps[i])
			}
		}
		if running == 0 {
			break
		}

		o := <-outcomes
		running--
		sr := o.result
		results[o.index] = &sr
		if sr.Outcome.Failed() {
			aborted = true
		}
	}

	result := model.StageResult{Name: stage.Name}
	for i := range stage.Steps {
		if results[i] == nil {
			result.Steps = append(result.Steps, skippedStep(&stage.Steps[i], "stage aborted"))
			continue
		}
		result.Steps = append(result.Steps, *results[i])
	}
	return result
}

// depsSettled reports whether every same-stage dependency of step has
// finished without failing the stage. Skipped and best-effort outcomes
// satisfy the gate; the dependent's own probe decides whether it can live
// without them.
func depsSettled(step *model.Step, inStage map[string]int, results []*model.StepResult) bool {
	for _, dep := range step.DependsOn {
		i, ok := inStage[dep]
		if !ok {
			continue
		}
		if results[i] == nil || results[i].Outcome.Failed() {
			return false
		}
	}
	return true
}

// runStep launches one service and waits for it to become healthy.
func (r *StageRunner) runStep(ctx context.Context, step *model.Step) model.StepResult {
	log := r.logger.With(zap.String("service", step.Service))
	log.Info("Launching service", zap.String("image", step.Image))

	if err := r.launcher.Launch(ctx, step); err != nil {
		log.Error("Failed to launch service", zap.Error(err))
		return failedStep(step, 0, 0, fmt.Sprintf("launch failed: %v", err))
	}

	p, err := r.probers(step)
	if err != nil {
		log.Error("Failed to resolve probe", zap.Error(err))
		return failedStep(step, 0, 0, fmt.Sprintf("invalid probe: %v", err))
	}

	res := probe.WaitHealthy(ctx, p, step.Service, probe.WaitOptions{
		Timeout:       r.stepTimeout(step),
		Interval:      r.cfg.PollInterval,
		ProgressEvery: r.cfg.ProgressInterval,
	})

	sr := model.StepResult{
		Service:  step.Service,
		Attempts: res.Attempts,
		Elapsed:  res.Elapsed,
		Message:  res.Message,
	}
	switch {
	case res.Status == model.Healthy:
		sr.Outcome = model.OutcomePass
		log.Info("Service healthy",
			zap.Int("attempts", res.Attempts),
			zap.Duration("elapsed", res.Elapsed))
	case step.BestEffort:
		sr.Outcome = model.OutcomeBestEffortFail
		log.Warn("Best-effort service unhealthy, continuing", zap.String("message", res.Message))
	default:
		sr.Outcome = model.OutcomeFail
		log.Error("Service failed health check", zap.String("message", res.Message))
	}
	return sr
}

// stepEnabled resolves a step's feature toggle against the run flags.
func stepEnabled(cfg *config.PipelineConfig, step *model.Step) (bool, string) {
	switch step.EnabledBy {
	case "":
		return true, ""
	case "monitoring":
		if cfg.Monitoring {
			return true, ""
		}
		return false, "monitoring disabled"
	case "directory":
		if cfg.Directory {
			return true, ""
		}
		return false, "directory disabled"
	default:
		return false, fmt.Sprintf("unknown toggle %q", step.EnabledBy)
	}
}

// stepTimeout returns the probe timeout for a step, the stack file's
// per-step override winning over the pipeline-wide default.
func (r *StageRunner) stepTimeout(step *model.Step) time.Duration {
	if step.Probe.Timeout != "" {
		if d, err := time.ParseDuration(step.Probe.Timeout); err == nil && d > 0 {
			return d
		}
	}
	return r.cfg.HealthTimeout
}

func failedStep(step *model.Step, attempts int, elapsed time.Duration, msg string) model.StepResult {
	outcome := model.OutcomeFail
	if step.BestEffort {
		outcome = model.OutcomeBestEffortFail
	}
	return model.StepResult{
		Service:  step.Service,
		Outcome:  outcome,
		Attempts: attempts,
		Elapsed:  elapsed,
		Message:  msg,
	}
}

func skippedStep(step *model.Step, reason string) model.StepResult {
	return model.StepResult{
		Service: step.Service,
		Outcome: model.OutcomeSkipped,
		Message: reason,
	}
}
