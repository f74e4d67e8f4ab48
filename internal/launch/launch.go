package launch

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/bankops/bankctl/internal/model"
	"github.com/bankops/bankctl/internal/orchestrator"
	"github.com/bankops/bankctl/internal/utils/logger"
)

// Runner is the slice of the orchestrator the launcher depends on.
type Runner interface {
	EnsureRunning(ctx context.Context, spec *orchestrator.ServiceSpec) error
}

// Launcher starts service containers in declared dependency order. It only
// ensures containers are running; readiness is the stage runner's concern.
// Within one run every service is launched at most once.
type Launcher struct {
	environment string
	stack       *model.Stack
	runner      Runner
	logger      *zap.Logger

	mu       sync.Mutex
	launched map[string]bool
}

// New creates a launcher for one environment and stack.
func New(environment string, stack *model.Stack, runner Runner) *Launcher {
	return &Launcher{
		environment: environment,
		stack:       stack,
		runner:      runner,
		logger:      logger.With(zap.String("environment", environment)),
		launched:    make(map[string]bool),
	}
}

// Launch brings up the step's dependencies depth-first, then the step's own
// service. Dependency lists are flat and validated acyclic at stack load, so
// no cycle detection is needed here. Launching an already-launched service
// is a no-op success.
func (l *Launcher) Launch(ctx context.Context, step *model.Step) error {
	for _, dep := range step.DependsOn {
		depStep, ok := l.stack.FindStep(dep)
		if !ok {
			return fmt.Errorf("service %s depends on unknown service %s", step.Service, dep)
		}
		if err := l.Launch(ctx, depStep); err != nil {
			return fmt.Errorf("failed to launch dependency %s: %w", dep, err)
		}
	}
	return l.launchService(ctx, step)
}

// Launched reports whether the named service has been launched in this run.
func (l *Launcher) Launched(service string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launched[service]
}

func (l *Launcher) launchService(ctx context.Context, step *model.Step) error {
	l.mu.Lock()
	if l.launched[step.Service] {
		l.mu.Unlock()
		return nil
	}
	l.launched[step.Service] = true
	l.mu.Unlock()

	l.logger.Info("Launching service",
		zap.String("service", step.Service),
		zap.String("image", step.Image))

	if err := l.runner.EnsureRunning(ctx, l.specFor(step)); err != nil {
		// Release the mark so a later dependent can retry the launch.
		l.mu.Lock()
		delete(l.launched, step.Service)
		l.mu.Unlock()
		return fmt.Errorf("failed to launch %s: %w", step.Service, err)
	}
	return nil
}

// specFor converts a stack step into launch material for the orchestrator.
func (l *Launcher) specFor(step *model.Step) *orchestrator.ServiceSpec {
	return &orchestrator.ServiceSpec{
		Name:    model.ContainerName(l.environment, step.Service),
		Service: step.Service,
		Image:   step.Image,
		Command: step.Command,
		Env:     step.Env,
		Ports:   step.Ports,
		Volumes: step.Volumes,
		Labels: map[string]string{
			orchestrator.LabelEnvironment: l.environment,
			orchestrator.LabelService:     step.Service,
		},
	}
}
