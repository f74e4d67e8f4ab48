package stack

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/go-containerregistry/pkg/name"

	"github.com/bankops/bankctl/internal/model"
)

// ValidationResult represents the result of stack manifest validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationWarning
	stack    *model.Stack
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
	Fix     string
}

// ValidationWarning represents a validation warning
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// Validator validates stack manifests
type Validator struct {
	stack *model.Stack
}

// NewValidator creates a new validator
func NewValidator(stack *model.Stack) *Validator {
	return &Validator{stack: stack}
}

// knownToggles are the feature flags a step's enabled_by may reference.
// The set must stay in step with the run flags the pipeline resolves.
var knownToggles = map[string]bool{
	"monitoring": true,
	"directory":  true,
}

// position locates a service within the stack for ordering checks.
type position struct {
	stage int
	step  int
}

func (p position) before(other position) bool {
	if p.stage != other.stage {
		return p.stage < other.stage
	}
	return p.step < other.step
}

// Validate performs all validation checks
func (v *Validator) Validate() *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationWarning{},
		stack:    v.stack,
	}

	v.validateIdentity(result)
	index := v.validateServices(result)
	v.validateDependencies(result, index)
	v.validateProbes(result)
	v.validatePorts(result)

	result.Valid = len(result.Errors) == 0
	return result
}

// validateIdentity checks stack and stage naming
func (v *Validator) validateIdentity(result *ValidationResult) {
	if v.stack.Name == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "name",
			Message: "Stack name is required",
			Fix:     "Add a name to the stack manifest",
		})
	}

	if len(v.stack.Stages) == 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "stages",
			Message: "At least one stage is required",
			Fix:     "Add a stage with the services to deploy",
		})
	}

	seen := make(map[string]bool)
	for _, stage := range v.stack.Stages {
		if stage.Name == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "stages",
				Message: "Stage without a name",
				Fix:     "Name every stage",
			})
			continue
		}
		if seen[stage.Name] {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "stages",
				Message: fmt.Sprintf("Duplicate stage name '%s'", stage.Name),
				Fix:     "Use unique stage names",
			})
		}
		seen[stage.Name] = true
	}
}

// validateServices checks service naming and image references, and builds
// the position index the dependency checks run against.
func (v *Validator) validateServices(result *ValidationResult) map[string]position {
	index := make(map[string]position)

	for si, stage := range v.stack.Stages {
		if len(stage.Steps) == 0 {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   fmt.Sprintf("stages.%s", stage.Name),
				Message: "Stage has no steps",
				Hint:    "Empty stages are skipped",
			})
		}

		for pi, step := range stage.Steps {
			field := fmt.Sprintf("stages.%s.steps[%d]", stage.Name, pi)

			if step.Service == "" {
				result.Errors = append(result.Errors, ValidationError{
					Field:   field,
					Message: "Step without a service name",
					Fix:     "Name every step's service",
				})
				continue
			}

			if prev, exists := index[step.Service]; exists {
				result.Errors = append(result.Errors, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("Duplicate service '%s' (already defined in stage %s)", step.Service, v.stack.Stages[prev.stage].Name),
					Fix:     "Use unique service names across all stages",
				})
				continue
			}
			index[step.Service] = position{stage: si, step: pi}

			if step.Image == "" {
				result.Errors = append(result.Errors, ValidationError{
					Field:   field + ".image",
					Message: fmt.Sprintf("Service '%s' has no image", step.Service),
					Fix:     "Specify the container image to run",
				})
			} else if _, err := name.ParseReference(step.Image); err != nil {
				result.Errors = append(result.Errors, ValidationError{
					Field:   field + ".image",
					Message: fmt.Sprintf("Invalid image reference '%s': %v", step.Image, err),
					Fix:     "Use a valid OCI image reference",
				})
			}

			if step.EnabledBy != "" && !knownToggles[step.EnabledBy] {
				result.Errors = append(result.Errors, ValidationError{
					Field:   field + ".enabled_by",
					Message: fmt.Sprintf("Service '%s' references unknown toggle '%s'", step.Service, step.EnabledBy),
					Fix:     "Use one of: monitoring, directory, or remove enabled_by",
				})
			}
		}
	}

	return index
}

// validateDependencies checks that every dependency names a service defined
// strictly earlier in stack order. The ordering rule makes cycles impossible,
// so no separate cycle check is needed.
func (v *Validator) validateDependencies(result *ValidationResult, index map[string]position) {
	for si, stage := range v.stack.Stages {
		for pi, step := range stage.Steps {
			pos := position{stage: si, step: pi}
			field := fmt.Sprintf("stages.%s.%s.depends_on", stage.Name, step.Service)

			for _, dep := range step.DependsOn {
				depPos, exists := index[dep]
				if !exists {
					result.Errors = append(result.Errors, ValidationError{
						Field:   field,
						Message: fmt.Sprintf("Service '%s' depends on unknown service '%s'", step.Service, dep),
						Fix:     "Reference a service defined in the stack",
					})
					continue
				}

				if !depPos.before(pos) {
					result.Errors = append(result.Errors, ValidationError{
						Field:   field,
						Message: fmt.Sprintf("Service '%s' depends on '%s', which is not defined earlier in the stack", step.Service, dep),
						Fix:     "Order services so dependencies come first",
					})
					continue
				}

				depStep := v.stack.Stages[depPos.stage].Steps[depPos.step]
				if depStep.BestEffort && !step.BestEffort {
					result.Warnings = append(result.Warnings, ValidationWarning{
						Field:   field,
						Message: fmt.Sprintf("Service '%s' depends on best-effort service '%s'", step.Service, dep),
						Hint:    "The dependency may be absent when its launch fails",
					})
				}
				if depStep.EnabledBy != "" && depStep.EnabledBy != step.EnabledBy {
					result.Warnings = append(result.Warnings, ValidationWarning{
						Field:   field,
						Message: fmt.Sprintf("Service '%s' depends on '%s', which is gated by the '%s' toggle", step.Service, dep, depStep.EnabledBy),
						Hint:    "The dependency is skipped when the toggle is off",
					})
				}
			}
		}
	}
}

// validateProbes checks probe descriptors
func (v *Validator) validateProbes(result *ValidationResult) {
	for _, stage := range v.stack.Stages {
		for _, step := range stage.Steps {
			field := fmt.Sprintf("stages.%s.%s.probe", stage.Name, step.Service)

			switch step.Probe.Type {
			case model.ProbeHTTP:
				if step.Probe.Endpoint == "" {
					result.Errors = append(result.Errors, ValidationError{
						Field:   field,
						Message: fmt.Sprintf("HTTP probe for '%s' has no endpoint", step.Service),
						Fix:     "Set probe.endpoint to the health URL",
					})
				}
			case model.ProbeTCP, model.ProbeGRPC:
				if step.Probe.Address == "" {
					result.Errors = append(result.Errors, ValidationError{
						Field:   field,
						Message: fmt.Sprintf("%s probe for '%s' has no address", step.Probe.Type, step.Service),
						Fix:     "Set probe.address to host:port",
					})
				}
			case model.ProbeCommand:
				if len(step.Probe.Command) == 0 {
					result.Errors = append(result.Errors, ValidationError{
						Field:   field,
						Message: fmt.Sprintf("Command probe for '%s' has no command", step.Service),
						Fix:     "Set probe.command to the check command",
					})
				}
			case model.ProbeDocker:
				if step.Probe.Container == "" {
					result.Errors = append(result.Errors, ValidationError{
						Field:   field,
						Message: fmt.Sprintf("Docker probe for '%s' has no container name", step.Service),
						Fix:     "Set probe.container to the container to inspect",
					})
				}
			case "":
				result.Errors = append(result.Errors, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("Service '%s' has no probe", step.Service),
					Fix:     "Every step needs a probe so readiness can be decided",
				})
			default:
				result.Errors = append(result.Errors, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("Unknown probe type '%s' for service '%s'", step.Probe.Type, step.Service),
					Fix:     "Use one of: http, tcp, command, docker, grpc",
				})
			}

			if step.Probe.Timeout != "" {
				if _, err := time.ParseDuration(step.Probe.Timeout); err != nil {
					result.Errors = append(result.Errors, ValidationError{
						Field:   field + ".timeout",
						Message: fmt.Sprintf("Invalid probe timeout '%s' for service '%s'", step.Probe.Timeout, step.Service),
						Fix:     "Use Go duration syntax, e.g. 90s",
					})
				}
			}
		}
	}
}

// validatePorts checks for host port conflicts
func (v *Validator) validatePorts(result *ValidationResult) {
	ports := make(map[int][]string)

	for _, stage := range v.stack.Stages {
		for _, step := range stage.Steps {
			for _, p := range step.Ports {
				if p.Host <= 0 || p.Container <= 0 {
					result.Errors = append(result.Errors, ValidationError{
						Field:   fmt.Sprintf("stages.%s.%s.ports", stage.Name, step.Service),
						Message: fmt.Sprintf("Invalid port mapping %d:%d for service '%s'", p.Host, p.Container, step.Service),
						Fix:     "Use positive host and container ports",
					})
					continue
				}
				ports[p.Host] = append(ports[p.Host], step.Service)
			}
		}
	}

	for port, services := range ports {
		if len(services) > 1 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "ports",
				Message: fmt.Sprintf("Host port conflict: %d used by multiple services: %s", port, strings.Join(services, ", ")),
				Fix:     "Assign unique host ports to each service",
			})
		}
	}
}

// Format returns a human-readable string representation of the validation result
func (r *ValidationResult) Format() string {
	var sb strings.Builder

	if r.Valid {
		sb.WriteString("✓ Stack validation passed\n")
		sb.WriteString(fmt.Sprintf("  %d services across %d stages", r.countServices(), len(r.stack.Stages)))
		if len(r.Warnings) > 0 {
			sb.WriteString("\n")
		}
	} else {
		sb.WriteString(fmt.Sprintf("✗ Stack validation failed with %d error(s)\n", len(r.Errors)))
	}

	for _, err := range r.Errors {
		sb.WriteString(fmt.Sprintf("\nERROR: %s\n", err.Message))
		if err.Field != "" {
			sb.WriteString(fmt.Sprintf("  Field: %s\n", err.Field))
		}
		if err.Fix != "" {
			sb.WriteString(fmt.Sprintf("  Fix: %s\n", err.Fix))
		}
	}

	for _, warn := range r.Warnings {
		sb.WriteString(fmt.Sprintf("\nWARNING: %s\n", warn.Message))
		if warn.Field != "" {
			sb.WriteString(fmt.Sprintf("  Field: %s\n", warn.Field))
		}
		if warn.Hint != "" {
			sb.WriteString(fmt.Sprintf("  Hint: %s\n", warn.Hint))
		}
	}

	return sb.String()
}

// countServices counts total services in the result
func (r *ValidationResult) countServices() int {
	if r.stack == nil {
		return 0
	}
	count := 0
	for _, stage := range r.stack.Stages {
		count += len(stage.Steps)
	}
	return count
}
