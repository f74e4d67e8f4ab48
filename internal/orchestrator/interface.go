package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bankops/bankctl/internal/model"
)

// Container labels applied to everything bankctl starts. RemoveAll and the
// status commands select on the environment label, so a single daemon can
// host several environments side by side.
const (
	LabelEnvironment = "bankctl.environment"
	LabelService     = "bankctl.service"
)

// ServiceSpec describes one service container to run: the resolved container
// name, the logical service name it came from, and the launch material.
type ServiceSpec struct {
	Name          string            `json:"name"`
	Service       string            `json:"service"`
	Image         string            `json:"image"`
	Command       []string          `json:"command,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
	Ports         []model.PortMapping
	Volumes       []model.VolumeMapping
	Labels        map[string]string `json:"labels,omitempty"`
	RestartPolicy string            `json:"restart_policy,omitempty"`
}

// ServiceStatus is a point-in-time view of one service container.
type ServiceStatus struct {
	Name        string    `json:"name"`
	ContainerID string    `json:"container_id"`
	Image       string    `json:"image"`
	State       string    `json:"state"`
	Running     bool      `json:"running"`
	Health      string    `json:"health,omitempty"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	ExitCode    int       `json:"exit_code,omitempty"`
}

// RemoveOptions controls environment teardown.
type RemoveOptions struct {
	// Volumes also removes anonymous volumes attached to the containers.
	Volumes bool
}

// LogsOptions controls log retrieval for a single service.
type LogsOptions struct {
	Follow bool
	Tail   int
}

// Orchestrator is the seam between the pipeline and the container runtime.
type Orchestrator interface {
	// Ping verifies the runtime is reachable.
	Ping(ctx context.Context) error

	// EnsureNetwork creates the environment network if it does not exist.
	EnsureNetwork(ctx context.Context) error

	// EnsureRunning brings the service container up. It is idempotent: an
	// already-running container is left alone, a stopped one is restarted,
	// a missing one is created and started.
	EnsureRunning(ctx context.Context, spec *ServiceSpec) error

	// Status returns the current state of a service container by name.
	Status(ctx context.Context, name string) (*ServiceStatus, error)

	// ContainerRunning reports whether the named container exists and is
	// running. Absence is not an error.
	ContainerRunning(ctx context.Context, name string) (bool, error)

	// Stop stops a running service container. Stopping an already-stopped
	// or missing container succeeds.
	Stop(ctx context.Context, name string) error

	// RemoveAll force-removes every container belonging to the environment.
	RemoveAll(ctx context.Context, opts RemoveOptions) error

	// RemoveNetwork removes the environment network if it exists.
	RemoveNetwork(ctx context.Context) error

	// Logs retrieves logs for a service container.
	Logs(ctx context.Context, name string, opts LogsOptions) (LogStream, error)

	// Close releases runtime client resources.
	Close() error
}

// LogStream represents a log stream from a service container
type LogStream interface {
	// Read reads log data
	Read(p []byte) (n int, err error)

	// Close closes the log stream
	Close() error
}

// OrchestratorError represents errors from the orchestrator
type OrchestratorError struct {
	Service   string
	Operation string
	Err       error
}

func (e *OrchestratorError) Error() string {
	return fmt.Sprintf("orchestrator error for service %s during %s: %v", e.Service, e.Operation, e.Err)
}

func (e *OrchestratorError) Unwrap() error {
	return e.Err
}

// ServiceNotFoundError indicates a service container was not found
type ServiceNotFoundError struct {
	Service string
}

func (e *ServiceNotFoundError) Error() string {
	return fmt.Sprintf("service container not found: %s", e.Service)
}

// IsNotFound reports whether err is, or wraps, a ServiceNotFoundError.
func IsNotFound(err error) bool {
	var nf *ServiceNotFoundError
	return errors.As(err, &nf)
}
