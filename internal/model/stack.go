package model

// Stack represents the ordered set of deployment stages for one environment
type Stack struct {
	Name         string  `yaml:"name" json:"name"`
	Network      string  `yaml:"network,omitempty" json:"network,omitempty"`
	VolumePrefix string  `yaml:"volume_prefix,omitempty" json:"volume_prefix,omitempty"`
	Stages       []Stage `yaml:"stages" json:"stages"`
}

// Stage is a named, ordered list of steps. Stages run strictly in declaration
// order; a stage never starts before the previous one has finished.
type Stage struct {
	Name  string `yaml:"name" json:"name"`
	Steps []Step `yaml:"steps" json:"steps"`
}

// Step describes one service to bring up and how to tell it is healthy
type Step struct {
	Service    string            `yaml:"service" json:"service"`
	Image      string            `yaml:"image" json:"image"`
	Command    []string          `yaml:"command,omitempty" json:"command,omitempty"`
	Env        map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Ports      []PortMapping     `yaml:"ports,omitempty" json:"ports,omitempty"`
	Volumes    []VolumeMapping   `yaml:"volumes,omitempty" json:"volumes,omitempty"`
	DependsOn  []string          `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Probe      ProbeSpec         `yaml:"probe" json:"probe"`
	BestEffort bool              `yaml:"best_effort,omitempty" json:"best_effort,omitempty"`
	EnabledBy  string            `yaml:"enabled_by,omitempty" json:"enabled_by,omitempty"`
}

// PortMapping represents a port mapping between host and container
type PortMapping struct {
	Host      int    `yaml:"host" json:"host"`
	Container int    `yaml:"container" json:"container"`
	Protocol  string `yaml:"protocol,omitempty" json:"protocol,omitempty"`
}

// VolumeMapping represents a volume mount
type VolumeMapping struct {
	Host      string `yaml:"host" json:"host"`
	Container string `yaml:"container" json:"container"`
	ReadOnly  bool   `yaml:"readonly,omitempty" json:"readonly,omitempty"`
}

// ProbeType identifies the mechanism used to decide a service is healthy.
type ProbeType string

const (
	ProbeHTTP    ProbeType = "http"
	ProbeTCP     ProbeType = "tcp"
	ProbeCommand ProbeType = "command"
	ProbeDocker  ProbeType = "docker"
	ProbeGRPC    ProbeType = "grpc"
)

// ProbeSpec describes how to check a single service for readiness. Exactly
// the fields for its Type are consulted; Timeout overrides the pipeline-wide
// health timeout for this step only and uses Go duration syntax ("90s").
type ProbeSpec struct {
	Type      ProbeType `yaml:"type" json:"type"`
	Endpoint  string    `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Address   string    `yaml:"address,omitempty" json:"address,omitempty"`
	Command   []string  `yaml:"command,omitempty" json:"command,omitempty"`
	Container string    `yaml:"container,omitempty" json:"container,omitempty"`
	Service   string    `yaml:"service,omitempty" json:"service,omitempty"`
	Timeout   string    `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// ContainerName returns the canonical container name for a service in an
// environment. Every component that touches the runtime uses this form.
func ContainerName(environment, service string) string {
	return environment + "-" + service
}

// FindStep returns the step for the named service, searching every stage.
func (s *Stack) FindStep(service string) (*Step, bool) {
	for i := range s.Stages {
		for j := range s.Stages[i].Steps {
			if s.Stages[i].Steps[j].Service == service {
				return &s.Stages[i].Steps[j], true
			}
		}
	}
	return nil, false
}

// Services returns every service name in stage order.
func (s *Stack) Services() []string {
	var names []string
	for _, stage := range s.Stages {
		for _, step := range stage.Steps {
			names = append(names, step.Service)
		}
	}
	return names
}
