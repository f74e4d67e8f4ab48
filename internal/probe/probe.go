package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/bankops/bankctl/internal/model"
)

// Prober performs a single readiness check against one service. Probe
// returns nil when the service is ready and an error describing the
// shortfall otherwise. Transport failures are ordinary not-yet-ready
// errors and are retried by the polling loop, never treated as fatal.
type Prober interface {
	Probe(ctx context.Context) error
}

// ContainerInspector reports container run state. The docker orchestrator
// implements it; docker probes are the only consumers.
type ContainerInspector interface {
	ContainerRunning(ctx context.Context, name string) (bool, error)
}

// New builds the prober for a probe spec. The inspector is only consulted
// for docker probes and may be nil otherwise.
func New(spec model.ProbeSpec, inspector ContainerInspector) (Prober, error) {
	switch spec.Type {
	case model.ProbeHTTP:
		if spec.Endpoint == "" {
			return nil, fmt.Errorf("http probe requires an endpoint")
		}
		return &httpProber{endpoint: spec.Endpoint, client: &http.Client{}}, nil
	case model.ProbeTCP:
		if spec.Address == "" {
			return nil, fmt.Errorf("tcp probe requires an address")
		}
		return &tcpProber{address: spec.Address}, nil
	case model.ProbeCommand:
		if len(spec.Command) == 0 {
			return nil, fmt.Errorf("command probe requires a command")
		}
		return &commandProber{argv: spec.Command}, nil
	case model.ProbeDocker:
		if spec.Container == "" {
			return nil, fmt.Errorf("docker probe requires a container name")
		}
		if inspector == nil {
			return nil, fmt.Errorf("docker probe requires a container inspector")
		}
		return &dockerProber{container: spec.Container, inspector: inspector}, nil
	case model.ProbeGRPC:
		if spec.Address == "" {
			return nil, fmt.Errorf("grpc probe requires an address")
		}
		return &grpcProber{address: spec.Address, service: spec.Service}, nil
	default:
		return nil, fmt.Errorf("unknown probe type %q", spec.Type)
	}
}

// httpProber performs a GET and expects a 2xx response. Actuator-style
// bodies carry an explicit status field that must read UP; plain 2xx
// endpoints pass without one.
type httpProber struct {
	endpoint string
	client   *http.Client
}

func (p *httpProber) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return fmt.Errorf("invalid endpoint %s: %w", p.endpoint, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil {
		if body.Status != "" && !strings.EqualFold(body.Status, "UP") {
			return fmt.Errorf("service reports status %q", body.Status)
		}
	}
	return nil
}

// tcpProber considers the service ready as soon as the port accepts a
// connection.
type tcpProber struct {
	address string
}

func (p *tcpProber) Probe(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.address)
	if err != nil {
		return fmt.Errorf("connect %s: %w", p.address, err)
	}
	return conn.Close()
}

// commandProber runs a command and maps exit code zero to ready.
type commandProber struct {
	argv []string
}

func (p *commandProber) Probe(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, p.argv[0], p.argv[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", p.argv[0], err, bytes.TrimSpace(out))
	}
	return nil
}

// dockerProber asks the container runtime whether the container is running.
type dockerProber struct {
	container string
	inspector ContainerInspector
}

func (p *dockerProber) Probe(ctx context.Context) error {
	running, err := p.inspector.ContainerRunning(ctx, p.container)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", p.container, err)
	}
	if !running {
		return fmt.Errorf("container %s is not running", p.container)
	}
	return nil
}

// grpcProber speaks the standard grpc.health.v1 protocol and requires a
// SERVING verdict.
type grpcProber struct {
	address string
	service string
}

func (p *grpcProber) Probe(ctx context.Context) error {
	conn, err := grpc.NewClient(p.address,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial %s: %w", p.address, err)
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{
		Service: p.service,
	})
	if err != nil {
		return fmt.Errorf("health check %s: %w", p.address, err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("service reports %s", resp.GetStatus())
	}
	return nil
}

// probeTimeout bounds a single attempt so one hung probe cannot consume the
// whole wait budget.
func probeTimeout(interval time.Duration) time.Duration {
	if interval < time.Second {
		return time.Second
	}
	return interval
}
