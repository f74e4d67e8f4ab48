package stack

import (
	"fmt"
	"path/filepath"

	"github.com/bankops/bankctl/internal/config"
	"github.com/bankops/bankctl/internal/model"
)

// Default builds the built-in banking stack: core infrastructure, the
// optional monitoring and directory services, and the application tier.
// Seed data staged under the fixtures directory is mounted so containers
// ingest it on first boot.
func Default(cfg *config.PipelineConfig) *model.Stack {
	env := cfg.Environment
	db := cfg.Database
	fixtures := cfg.FixturesDir()

	postgres := model.ContainerName(env, "postgres")
	zookeeper := model.ContainerName(env, "zookeeper")

	return &model.Stack{
		Name:         "banking",
		Network:      fmt.Sprintf("%s-banking", env),
		VolumePrefix: fmt.Sprintf("%s-banking", env),
		Stages: []model.Stage{
			{
				Name: "infrastructure",
				Steps: []model.Step{
					{
						Service: "postgres",
						Image:   "postgres:16-alpine",
						Ports:   []model.PortMapping{{Host: 5432, Container: 5432}},
						Env: map[string]string{
							"POSTGRES_USER":     db.Username,
							"POSTGRES_PASSWORD": db.Password,
							"POSTGRES_DB":       db.Database,
						},
						Volumes: []model.VolumeMapping{
							{Host: filepath.Join(fixtures, "postgres"), Container: "/docker-entrypoint-initdb.d", ReadOnly: true},
						},
						Probe: model.ProbeSpec{
							Type:    model.ProbeCommand,
							Command: []string{"docker", "exec", postgres, "pg_isready", "-U", db.Username},
						},
					},
					{
						Service: "zookeeper",
						Image:   "confluentinc/cp-zookeeper:7.6.0",
						Ports:   []model.PortMapping{{Host: 2181, Container: 2181}},
						Env: map[string]string{
							"ZOOKEEPER_CLIENT_PORT": "2181",
							"ZOOKEEPER_TICK_TIME":   "2000",
						},
						Probe: model.ProbeSpec{Type: model.ProbeTCP, Address: "localhost:2181"},
					},
					{
						Service:   "kafka",
						Image:     "confluentinc/cp-kafka:7.6.0",
						Ports:     []model.PortMapping{{Host: 9092, Container: 9092}},
						DependsOn: []string{"zookeeper"},
						Env: map[string]string{
							"KAFKA_BROKER_ID":                        "1",
							"KAFKA_ZOOKEEPER_CONNECT":                fmt.Sprintf("%s:2181", zookeeper),
							"KAFKA_ADVERTISED_LISTENERS":             "PLAINTEXT://localhost:9092",
							"KAFKA_OFFSETS_TOPIC_REPLICATION_FACTOR": "1",
						},
						Probe: model.ProbeSpec{Type: model.ProbeTCP, Address: "localhost:9092", Timeout: "90s"},
					},
					{
						Service: "redis",
						Image:   "redis:7-alpine",
						Ports:   []model.PortMapping{{Host: 6379, Container: 6379}},
						Probe:   model.ProbeSpec{Type: model.ProbeTCP, Address: "localhost:6379"},
					},
					{
						Service:    "openldap",
						Image:      "osixia/openldap:1.5.0",
						Ports:      []model.PortMapping{{Host: 389, Container: 389}},
						BestEffort: true,
						EnabledBy:  "directory",
						Env: map[string]string{
							"LDAP_ORGANISATION": "BankOps",
							"LDAP_DOMAIN":       "bankops.example",
						},
						Volumes: []model.VolumeMapping{
							{Host: filepath.Join(fixtures, "ldap"), Container: "/container/service/slapd/assets/config/bootstrap/ldif/custom", ReadOnly: true},
						},
						Probe: model.ProbeSpec{Type: model.ProbeTCP, Address: "localhost:389"},
					},
					{
						Service:   "keycloak",
						Image:     "quay.io/keycloak/keycloak:24.0",
						Ports:     []model.PortMapping{{Host: 8180, Container: 8080}},
						DependsOn: []string{"postgres"},
						Command:   []string{"start-dev", "--import-realm", "--health-enabled=true"},
						Env: map[string]string{
							"KEYCLOAK_ADMIN":          "admin",
							"KEYCLOAK_ADMIN_PASSWORD": "admin",
							"KC_DB":                   "postgres",
							"KC_DB_URL_HOST":          postgres,
							"KC_DB_USERNAME":          db.Username,
							"KC_DB_PASSWORD":          db.Password,
						},
						Volumes: []model.VolumeMapping{
							{Host: filepath.Join(fixtures, "keycloak"), Container: "/opt/keycloak/data/import", ReadOnly: true},
						},
						Probe: model.ProbeSpec{
							Type:     model.ProbeHTTP,
							Endpoint: "http://localhost:8180/health/ready",
							Timeout:  "180s",
						},
					},
				},
			},
			{
				Name: "monitoring",
				Steps: []model.Step{
					{
						Service:    "prometheus",
						Image:      "prom/prometheus:v2.51.0",
						Ports:      []model.PortMapping{{Host: 9090, Container: 9090}},
						BestEffort: true,
						EnabledBy:  "monitoring",
						Probe:      model.ProbeSpec{Type: model.ProbeHTTP, Endpoint: "http://localhost:9090/-/healthy"},
					},
					{
						Service:    "grafana",
						Image:      "grafana/grafana:10.4.0",
						Ports:      []model.PortMapping{{Host: 3000, Container: 3000}},
						BestEffort: true,
						EnabledBy:  "monitoring",
						DependsOn:  []string{"prometheus"},
						Probe:      model.ProbeSpec{Type: model.ProbeHTTP, Endpoint: "http://localhost:3000/api/health"},
					},
				},
			},
			{
				Name: "application",
				Steps: []model.Step{
					{
						Service:   "banking-api",
						Image:     "bankops/banking-api:latest",
						Ports:     []model.PortMapping{{Host: 8080, Container: 8080}},
						DependsOn: []string{"postgres", "kafka", "keycloak"},
						Env: map[string]string{
							"SPRING_PROFILES_ACTIVE": env,
							"DB_HOST":                "localhost",
							"DB_PORT":                "5432",
							"DB_NAME":                db.Database,
							"KAFKA_BOOTSTRAP":        "localhost:9092",
							"KEYCLOAK_URL":           "http://localhost:8180",
						},
						Probe: model.ProbeSpec{
							Type:     model.ProbeHTTP,
							Endpoint: "http://localhost:8080/actuator/health",
							Timeout:  "180s",
						},
					},
					{
						Service:   "api-gateway",
						Image:     "bankops/api-gateway:latest",
						Ports:     []model.PortMapping{{Host: 8090, Container: 8080}},
						DependsOn: []string{"banking-api"},
						Env: map[string]string{
							"UPSTREAM_URL": "http://localhost:8080",
						},
						Probe: model.ProbeSpec{
							Type:     model.ProbeHTTP,
							Endpoint: "http://localhost:8090/actuator/health",
							Timeout:  "120s",
						},
					},
				},
			},
		},
	}
}
