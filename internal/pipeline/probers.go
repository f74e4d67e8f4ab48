package pipeline

import (
	"github.com/bankops/bankctl/internal/model"
	"github.com/bankops/bankctl/internal/probe"
)

// StackProbers returns a ProberFunc resolving each step's probe spec for the
// given environment. Docker probes with no explicit container name default
// to the step's own container.
func StackProbers(environment string, inspector probe.ContainerInspector) ProberFunc {
	return func(step *model.Step) (probe.Prober, error) {
		spec := step.Probe
		if spec.Type == model.ProbeDocker && spec.Container == "" {
			spec.Container = model.ContainerName(environment, step.Service)
		}
		return probe.New(spec, inspector)
	}
}
