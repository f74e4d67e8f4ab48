package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"go.uber.org/zap"

	"github.com/bankops/bankctl/internal/utils/logger"
)

// DockerOrchestrator manages service containers through the docker CLI for
// lifecycle operations (run/start/stop/rm/network) and the Engine API for
// the read side (ping/inspect/list/logs).
type DockerOrchestrator struct {
	environment string
	network     string
	api         *client.Client
	logger      *zap.Logger
}

// NewDockerOrchestrator creates an orchestrator for one environment. The
// runtime is not contacted here; Ping does that so a dead daemon surfaces
// as a prerequisite failure, not a construction error.
func NewDockerOrchestrator(environment, network string) (*DockerOrchestrator, error) {
	api, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker API client: %w", err)
	}

	return &DockerOrchestrator{
		environment: environment,
		network:     network,
		api:         api,
		logger:      logger.With(zap.String("environment", environment)),
	}, nil
}

// Ping verifies both halves of the runtime access: the docker command on
// PATH and a responsive daemon behind the API socket.
func (d *DockerOrchestrator) Ping(ctx context.Context) error {
	if _, err := exec.LookPath("docker"); err != nil {
		return fmt.Errorf("docker command not found: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := d.api.Ping(pctx); err != nil {
		return fmt.Errorf("failed to connect to docker daemon (check DOCKER_HOST and socket permissions): %w", err)
	}
	return nil
}

// EnsureNetwork creates the environment network if it does not exist.
func (d *DockerOrchestrator) EnsureNetwork(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "docker", "network", "ls", "--format", "{{.Name}}")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to list networks: %w", classifyRuntimeError(string(output), err))
	}

	for _, name := range strings.Split(string(output), "\n") {
		if strings.TrimSpace(name) == d.network {
			d.logger.Debug("Network already exists", zap.String("network", d.network))
			return nil
		}
	}

	cmd = exec.CommandContext(ctx, "docker", "network", "create", d.network)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to create network %s: %w", d.network, classifyRuntimeError(string(output), err))
	}

	d.logger.Info("Network created", zap.String("network", d.network))
	return nil
}

// RemoveNetwork removes the environment network. A missing network is not
// an error.
func (d *DockerOrchestrator) RemoveNetwork(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "docker", "network", "rm", d.network)
	output, err := cmd.CombinedOutput()
	if err != nil {
		msg := string(output)
		if strings.Contains(msg, "not found") || strings.Contains(msg, "No such network") {
			return nil
		}
		return fmt.Errorf("failed to remove network %s: %w", d.network, classifyRuntimeError(msg, err))
	}

	d.logger.Info("Network removed", zap.String("network", d.network))
	return nil
}

// EnsureRunning brings the service container up. Already running is a
// no-op, stopped containers are restarted, missing ones created.
func (d *DockerOrchestrator) EnsureRunning(ctx context.Context, spec *ServiceSpec) error {
	inspect, err := d.api.ContainerInspect(ctx, spec.Name)
	switch {
	case err == nil:
		if inspect.State != nil && inspect.State.Running {
			d.logger.Debug("Container already running",
				zap.String("name", spec.Name),
				zap.String("id", shortID(inspect.ID)))
			return nil
		}
		return d.startExisting(ctx, spec)
	case client.IsErrNotFound(err):
		return d.runNew(ctx, spec)
	default:
		return &OrchestratorError{Service: spec.Service, Operation: "inspect", Err: err}
	}
}

// startExisting starts a container that exists but is not running.
func (d *DockerOrchestrator) startExisting(ctx context.Context, spec *ServiceSpec) error {
	cmd := exec.CommandContext(ctx, "docker", "start", spec.Name)
	if output, err := cmd.CombinedOutput(); err != nil {
		return &OrchestratorError{
			Service:   spec.Service,
			Operation: "start",
			Err:       classifyRuntimeError(string(output), err),
		}
	}

	d.logger.Info("Restarted stopped container", zap.String("name", spec.Name))
	return nil
}

// runNew creates and starts a fresh container via docker run.
func (d *DockerOrchestrator) runNew(ctx context.Context, spec *ServiceSpec) error {
	args := runArgs(d.network, spec)

	cmd := exec.CommandContext(ctx, "docker", args...)
	d.logger.Debug("Docker run command", zap.String("cmd", cmd.String()))

	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return &OrchestratorError{
				Service:   spec.Service,
				Operation: "run",
				Err:       classifyRuntimeError(string(exitErr.Stderr), err),
			}
		}
		return &OrchestratorError{Service: spec.Service, Operation: "run", Err: err}
	}

	containerID := strings.TrimSpace(string(output))
	d.logger.Info("Started container",
		zap.String("name", spec.Name),
		zap.String("id", shortID(containerID)),
		zap.String("image", spec.Image))
	return nil
}

// runArgs builds the docker run argument list for a service spec. Map-backed
// flags are emitted in sorted key order so the command line is stable.
func runArgs(network string, spec *ServiceSpec) []string {
	args := []string{"run", "-d", "--name", spec.Name}

	if network != "" {
		args = append(args, "--network", network)
	}

	if spec.RestartPolicy != "" && spec.RestartPolicy != "no" {
		args = append(args, "--restart", spec.RestartPolicy)
	}

	for _, k := range sortedKeys(spec.Labels) {
		args = append(args, "--label", fmt.Sprintf("%s=%s", k, spec.Labels[k]))
	}

	for _, k := range sortedKeys(spec.Env) {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, spec.Env[k]))
	}

	for _, port := range spec.Ports {
		portMap := fmt.Sprintf("%d:%d", port.Host, port.Container)
		if port.Protocol != "" && port.Protocol != "tcp" {
			portMap += "/" + strings.ToLower(port.Protocol)
		}
		args = append(args, "-p", portMap)
	}

	for _, vol := range spec.Volumes {
		mount := fmt.Sprintf("%s:%s", expandHostPath(vol.Host), vol.Container)
		if vol.ReadOnly {
			mount += ":ro"
		}
		args = append(args, "-v", mount)
	}

	args = append(args, spec.Image)
	args = append(args, spec.Command...)
	return args
}

// Status returns the current state of a service container.
func (d *DockerOrchestrator) Status(ctx context.Context, name string) (*ServiceStatus, error) {
	inspect, err := d.api.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, &ServiceNotFoundError{Service: name}
		}
		return nil, &OrchestratorError{Service: name, Operation: "inspect", Err: err}
	}

	status := &ServiceStatus{
		Name:        strings.TrimPrefix(inspect.Name, "/"),
		ContainerID: inspect.ID,
	}
	if inspect.Config != nil {
		status.Image = inspect.Config.Image
	}
	if inspect.State != nil {
		status.State = inspect.State.Status
		status.Running = inspect.State.Running
		status.ExitCode = inspect.State.ExitCode
		if inspect.State.Health != nil {
			status.Health = inspect.State.Health.Status
		}
		startedAt, err := time.Parse(time.RFC3339Nano, inspect.State.StartedAt)
		if err == nil {
			status.StartedAt = startedAt
		}
	}
	return status, nil
}

// ContainerRunning reports whether the named container is running. A
// missing container is simply not running.
func (d *DockerOrchestrator) ContainerRunning(ctx context.Context, name string) (bool, error) {
	inspect, err := d.api.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to inspect container %s: %w", name, err)
	}
	return inspect.State != nil && inspect.State.Running, nil
}

// Stop stops a service container. Already-stopped and missing containers
// are treated as success so teardown stays idempotent.
func (d *DockerOrchestrator) Stop(ctx context.Context, name string) error {
	cmd := exec.CommandContext(ctx, "docker", "stop", "--time", "10", name)
	output, err := cmd.CombinedOutput()
	if err != nil {
		msg := string(output)
		if strings.Contains(msg, "is not running") || strings.Contains(msg, "No such container") {
			return nil
		}
		return &OrchestratorError{Service: name, Operation: "stop", Err: classifyRuntimeError(msg, err)}
	}

	d.logger.Info("Container stopped", zap.String("name", name))
	return nil
}

// RemoveAll force-removes every container carrying the environment label.
// Failures are collected so one stuck container does not strand the rest.
func (d *DockerOrchestrator) RemoveAll(ctx context.Context, opts RemoveOptions) error {
	containers, err := d.api.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", LabelEnvironment+"="+d.environment)),
	})
	if err != nil {
		return fmt.Errorf("failed to list containers for environment %s: %w", d.environment, err)
	}

	if len(containers) == 0 {
		d.logger.Debug("No containers to remove", zap.String("environment", d.environment))
		return nil
	}

	var failed []string
	for _, c := range containers {
		name := containerName(c.Names)

		rmArgs := []string{"rm", "-f"}
		if opts.Volumes {
			rmArgs = append(rmArgs, "-v")
		}
		rmArgs = append(rmArgs, c.ID)

		cmd := exec.CommandContext(ctx, "docker", rmArgs...)
		if output, err := cmd.CombinedOutput(); err != nil {
			d.logger.Warn("Failed to remove container",
				zap.String("name", name),
				zap.String("output", strings.TrimSpace(string(output))),
				zap.Error(err))
			failed = append(failed, name)
			continue
		}
		d.logger.Info("Removed container", zap.String("name", name), zap.String("id", shortID(c.ID)))
	}

	if len(failed) > 0 {
		return fmt.Errorf("failed to remove %d of %d containers: %s",
			len(failed), len(containers), strings.Join(failed, ", "))
	}
	return nil
}

// Logs retrieves container logs through the Engine API so follow mode
// streams unbuffered.
func (d *DockerOrchestrator) Logs(ctx context.Context, name string, opts LogsOptions) (LogStream, error) {
	options := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     opts.Follow,
		Timestamps: true,
	}
	if opts.Tail > 0 {
		options.Tail = strconv.Itoa(opts.Tail)
	}

	reader, err := d.api.ContainerLogs(ctx, name, options)
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, &ServiceNotFoundError{Service: name}
		}
		return nil, &OrchestratorError{Service: name, Operation: "logs", Err: err}
	}

	d.logger.Debug("Started streaming logs", zap.String("name", name), zap.Bool("follow", opts.Follow))

	return &apiLogStream{
		reader: reader,
		name:   name,
		logger: d.logger,
	}, nil
}

// Close closes the Engine API client.
func (d *DockerOrchestrator) Close() error {
	return d.api.Close()
}

// apiLogStream implements LogStream for Engine API logs with demultiplexing
type apiLogStream struct {
	reader     io.ReadCloser
	name       string
	logger     *zap.Logger
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	started    bool
}

func (s *apiLogStream) Read(p []byte) (n int, err error) {
	// Lazy initialization of demultiplexer on first read
	if !s.started {
		s.started = true
		s.pipeReader, s.pipeWriter = io.Pipe()

		// The API returns a multiplexed stream; StdCopy writes both
		// stdout and stderr to the same writer for combined output.
		go func() {
			defer s.pipeWriter.Close()

			_, err := stdcopy.StdCopy(s.pipeWriter, s.pipeWriter, s.reader)
			if err != nil && err != io.EOF {
				s.logger.Debug("Log demultiplexing completed",
					zap.String("name", s.name),
					zap.Error(err))
			}
		}()
	}

	return s.pipeReader.Read(p)
}

func (s *apiLogStream) Close() error {
	if s.pipeReader != nil {
		s.pipeReader.Close()
	}
	if s.reader != nil {
		return s.reader.Close()
	}
	return nil
}

// classifyRuntimeError turns raw docker CLI output into an actionable error.
func classifyRuntimeError(output string, err error) error {
	msg := strings.TrimSpace(output)
	switch {
	case strings.Contains(msg, "permission denied") || strings.Contains(msg, "docker.sock"):
		return fmt.Errorf("permission denied accessing docker; add your user to the docker group or run with elevated privileges: %s", msg)
	case strings.Contains(msg, "Cannot connect to the Docker daemon") || strings.Contains(msg, "Is the docker daemon running"):
		return fmt.Errorf("docker daemon is not running: %s", msg)
	case msg != "":
		return fmt.Errorf("%s", msg)
	default:
		return err
	}
}

// expandHostPath expands environment variables in a volume host path, with
// $HOME and $PWD resolved even when absent from the environment.
func expandHostPath(hostPath string) string {
	hostPath = os.ExpandEnv(hostPath)

	if strings.Contains(hostPath, "$HOME") {
		home, _ := os.UserHomeDir()
		hostPath = strings.ReplaceAll(hostPath, "$HOME", home)
	}
	if strings.Contains(hostPath, "$PWD") {
		pwd, _ := os.Getwd()
		hostPath = strings.ReplaceAll(hostPath, "$PWD", pwd)
	}
	return hostPath
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func containerName(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return strings.TrimPrefix(names[0], "/")
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
