package stack

import (
	"strings"
	"testing"

	"github.com/bankops/bankctl/internal/config"
	"github.com/bankops/bankctl/internal/model"
)

func testStep(service string, deps ...string) model.Step {
	return model.Step{
		Service:   service,
		Image:     "redis:7-alpine",
		DependsOn: deps,
		Probe:     model.ProbeSpec{Type: model.ProbeTCP, Address: "localhost:6379"},
	}
}

func singleStageStack(steps ...model.Step) *model.Stack {
	return &model.Stack{
		Name:   "banking",
		Stages: []model.Stage{{Name: "infrastructure", Steps: steps}},
	}
}

func TestValidator_DefaultStackIsValid(t *testing.T) {
	cfg := config.Default()
	result := NewValidator(Default(&cfg)).Validate()

	if !result.Valid {
		t.Fatalf("Default stack failed validation:\n%s", result.Format())
	}
}

func TestValidator_UnknownDependency(t *testing.T) {
	st := singleStageStack(testStep("kafka", "zookeeper"))

	result := NewValidator(st).Validate()
	if result.Valid {
		t.Fatalf("Expected validation failure for unknown dependency")
	}
	if !containsError(result, "unknown service 'zookeeper'") {
		t.Errorf("Expected unknown dependency error, got: %s", result.Format())
	}
}

func TestValidator_ForwardDependencyRejected(t *testing.T) {
	st := &model.Stack{
		Name: "banking",
		Stages: []model.Stage{
			{Name: "infrastructure", Steps: []model.Step{testStep("kafka", "banking-api")}},
			{Name: "application", Steps: []model.Step{testStep("banking-api")}},
		},
	}

	result := NewValidator(st).Validate()
	if result.Valid {
		t.Fatalf("Expected validation failure for forward dependency")
	}
	if !containsError(result, "not defined earlier") {
		t.Errorf("Expected ordering error, got: %s", result.Format())
	}
}

func TestValidator_SameStageDependencyOrder(t *testing.T) {
	// Earlier step in the same stage is a valid dependency target
	ok := singleStageStack(testStep("zookeeper"), testStep("kafka", "zookeeper"))
	if result := NewValidator(ok).Validate(); !result.Valid {
		t.Errorf("Expected same-stage earlier dependency to pass:\n%s", result.Format())
	}

	// A later step in the same stage is not
	bad := singleStageStack(testStep("kafka", "zookeeper"), testStep("zookeeper"))
	if result := NewValidator(bad).Validate(); result.Valid {
		t.Errorf("Expected same-stage forward dependency to fail")
	}
}

func TestValidator_SelfDependency(t *testing.T) {
	st := singleStageStack(testStep("redis", "redis"))

	if result := NewValidator(st).Validate(); result.Valid {
		t.Errorf("Expected self-dependency to fail validation")
	}
}

func TestValidator_DuplicateService(t *testing.T) {
	st := &model.Stack{
		Name: "banking",
		Stages: []model.Stage{
			{Name: "infrastructure", Steps: []model.Step{testStep("redis")}},
			{Name: "application", Steps: []model.Step{testStep("redis")}},
		},
	}

	result := NewValidator(st).Validate()
	if result.Valid {
		t.Fatalf("Expected validation failure for duplicate service")
	}
	if !containsError(result, "Duplicate service 'redis'") {
		t.Errorf("Expected duplicate service error, got: %s", result.Format())
	}
}

func TestValidator_InvalidImageReference(t *testing.T) {
	step := testStep("redis")
	step.Image = "not a valid image!!"
	st := singleStageStack(step)

	result := NewValidator(st).Validate()
	if result.Valid {
		t.Fatalf("Expected validation failure for invalid image reference")
	}
	if !containsError(result, "Invalid image reference") {
		t.Errorf("Expected image reference error, got: %s", result.Format())
	}
}

func TestValidator_MissingProbe(t *testing.T) {
	step := testStep("redis")
	step.Probe = model.ProbeSpec{}
	st := singleStageStack(step)

	result := NewValidator(st).Validate()
	if result.Valid {
		t.Fatalf("Expected validation failure for missing probe")
	}
}

func TestValidator_InvalidProbeTimeout(t *testing.T) {
	step := testStep("redis")
	step.Probe.Timeout = "ninety seconds"
	st := singleStageStack(step)

	result := NewValidator(st).Validate()
	if result.Valid {
		t.Fatalf("Expected validation failure for unparseable probe timeout")
	}
	if !containsError(result, "Invalid probe timeout") {
		t.Errorf("Expected probe timeout error, got: %s", result.Format())
	}
}

func TestValidator_HostPortConflict(t *testing.T) {
	a := testStep("redis")
	a.Ports = []model.PortMapping{{Host: 6379, Container: 6379}}
	b := testStep("redis-replica")
	b.Ports = []model.PortMapping{{Host: 6379, Container: 6379}}
	st := singleStageStack(a, b)

	result := NewValidator(st).Validate()
	if result.Valid {
		t.Fatalf("Expected validation failure for host port conflict")
	}
	if !containsError(result, "Host port conflict") {
		t.Errorf("Expected port conflict error, got: %s", result.Format())
	}
}

func TestValidator_BestEffortDependencyWarns(t *testing.T) {
	prom := testStep("prometheus")
	prom.BestEffort = true
	api := testStep("banking-api", "prometheus")
	st := singleStageStack(prom, api)

	result := NewValidator(st).Validate()
	if !result.Valid {
		t.Fatalf("Best-effort dependency should warn, not fail:\n%s", result.Format())
	}
	if len(result.Warnings) == 0 {
		t.Errorf("Expected a warning for depending on a best-effort service")
	}
}

func TestValidator_UnknownToggle(t *testing.T) {
	step := testStep("openldap")
	step.EnabledBy = "mainframe"
	st := singleStageStack(step)

	result := NewValidator(st).Validate()
	if result.Valid {
		t.Fatalf("Expected validation failure for unknown toggle")
	}
	if !containsError(result, "unknown toggle 'mainframe'") {
		t.Errorf("Expected unknown toggle error, got: %s", result.Format())
	}
}

func TestValidator_ToggledDependencyWarns(t *testing.T) {
	ldap := testStep("openldap")
	ldap.EnabledBy = "directory"
	api := testStep("banking-api", "openldap")
	st := singleStageStack(ldap, api)

	result := NewValidator(st).Validate()
	if !result.Valid {
		t.Fatalf("Toggled dependency should warn, not fail:\n%s", result.Format())
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w.Message, "'directory' toggle") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a toggle warning, got: %s", result.Format())
	}
}

func containsError(result *ValidationResult, fragment string) bool {
	for _, e := range result.Errors {
		if strings.Contains(e.Message, fragment) {
			return true
		}
	}
	return false
}
