package stack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bankops/bankctl/internal/config"
)

const sampleManifest = `
name: banking
network: test-banking
stages:
  - name: infrastructure
    steps:
      - service: postgres
        image: postgres:16-alpine
        ports:
          - host: 5432
            container: 5432
        probe:
          type: tcp
          address: localhost:5432
  - name: application
    steps:
      - service: banking-api
        image: bankops/banking-api:latest
        depends_on: [postgres]
        probe:
          type: http
          endpoint: http://localhost:8080/actuator/health
          timeout: 90s
`

func writeManifest(t *testing.T, content string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "stack.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write manifest: %v", err)
	}
	return path
}

func TestLoad_BuiltInStack(t *testing.T) {
	cfg := config.Default()

	st, err := Load("", &cfg)
	if err != nil {
		t.Fatalf("Failed to load built-in stack: %v", err)
	}

	if st.Name != "banking" {
		t.Errorf("Stack name does not match: got %s, want banking", st.Name)
	}
	if len(st.Stages) != 3 {
		t.Errorf("Stage count does not match: got %d, want 3", len(st.Stages))
	}
	if _, ok := st.FindStep("banking-api"); !ok {
		t.Errorf("Built-in stack is missing the banking-api step")
	}
}

func TestLoad_FromFile(t *testing.T) {
	cfg := config.Default()
	path := writeManifest(t, sampleManifest)

	st, err := Load(path, &cfg)
	if err != nil {
		t.Fatalf("Failed to load manifest: %v", err)
	}

	if len(st.Stages) != 2 {
		t.Fatalf("Stage count does not match: got %d, want 2", len(st.Stages))
	}

	step, ok := st.FindStep("banking-api")
	if !ok {
		t.Fatalf("Parsed stack is missing the banking-api step")
	}
	if len(step.DependsOn) != 1 || step.DependsOn[0] != "postgres" {
		t.Errorf("Dependencies do not match: got %v, want [postgres]", step.DependsOn)
	}
	if step.Probe.Timeout != "90s" {
		t.Errorf("Probe timeout does not match: got %s, want 90s", step.Probe.Timeout)
	}
}

func TestLoad_InvalidManifestFails(t *testing.T) {
	cfg := config.Default()
	path := writeManifest(t, `
name: banking
stages:
  - name: application
    steps:
      - service: banking-api
        image: bankops/banking-api:latest
        depends_on: [postgres]
        probe:
          type: http
          endpoint: http://localhost:8080/actuator/health
`)

	if _, err := Load(path, &cfg); err == nil {
		t.Fatalf("Expected load to fail for unknown dependency")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg := config.Default()

	if _, err := Load("/nonexistent/stack.yaml", &cfg); err == nil {
		t.Fatalf("Expected load to fail for missing file")
	}
}

func TestLoadAndValidate_SurfacesWarnings(t *testing.T) {
	cfg := config.Default()
	path := writeManifest(t, `
name: banking
stages:
  - name: infrastructure
    steps:
      - service: prometheus
        image: prom/prometheus:v2.51.0
        best_effort: true
        probe:
          type: http
          endpoint: http://localhost:9090/-/healthy
      - service: banking-api
        image: bankops/banking-api:latest
        depends_on: [prometheus]
        probe:
          type: http
          endpoint: http://localhost:8080/actuator/health
`)

	_, result, err := LoadAndValidate(path, &cfg)
	if err != nil {
		t.Fatalf("Failed to load manifest: %v", err)
	}
	if !result.Valid {
		t.Fatalf("Expected manifest to be valid:\n%s", result.Format())
	}
	if len(result.Warnings) == 0 {
		t.Errorf("Expected a best-effort dependency warning")
	}
}

func TestDefault_TogglesAndFixtures(t *testing.T) {
	cfg := config.Default()
	st := Default(&cfg)

	ldap, ok := st.FindStep("openldap")
	if !ok {
		t.Fatalf("Built-in stack is missing the openldap step")
	}
	if ldap.EnabledBy != "directory" {
		t.Errorf("openldap toggle does not match: got %s, want directory", ldap.EnabledBy)
	}
	if !ldap.BestEffort {
		t.Errorf("openldap should be best-effort")
	}

	grafana, ok := st.FindStep("grafana")
	if !ok {
		t.Fatalf("Built-in stack is missing the grafana step")
	}
	if grafana.EnabledBy != "monitoring" {
		t.Errorf("grafana toggle does not match: got %s, want monitoring", grafana.EnabledBy)
	}

	pg, ok := st.FindStep("postgres")
	if !ok {
		t.Fatalf("Built-in stack is missing the postgres step")
	}
	if len(pg.Volumes) == 0 {
		t.Fatalf("postgres should mount the staged seed directory")
	}
	if pg.Volumes[0].Container != "/docker-entrypoint-initdb.d" {
		t.Errorf("postgres seed mount does not match: got %s", pg.Volumes[0].Container)
	}
}
