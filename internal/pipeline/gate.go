package pipeline

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/bankops/bankctl/internal/config"
	"github.com/bankops/bankctl/internal/model"
	"github.com/bankops/bankctl/internal/probe"
	"github.com/bankops/bankctl/internal/utils/logger"
)

// Target is one validation gate check: a named prober plus the kind recorded
// in the report.
type Target struct {
	Name   string
	Kind   string
	Prober probe.Prober
}

// Gate re-verifies the deployed stack after the test stage. Every target is
// probed exactly once per run; the gate never stops at the first failure, so
// a bad run reports the full set of broken targets.
type Gate struct {
	timeout time.Duration
	targets []Target
	logger  *zap.Logger
}

// NewGate creates a gate probing each target with the given per-target
// timeout.
func NewGate(timeout time.Duration, targets []Target) *Gate {
	return &Gate{
		timeout: timeout,
		targets: targets,
		logger:  logger.With(zap.String("component", "validation-gate")),
	}
}

// Validate probes every target once and aggregates the results.
func (g *Gate) Validate(ctx context.Context) *model.ValidationResult {
	start := time.Now()
	result := &model.ValidationResult{Outcome: model.OutcomePass}

	for _, t := range g.targets {
		tctx, cancel := context.WithTimeout(ctx, g.timeout)
		tstart := time.Now()
		err := t.Prober.Probe(tctx)
		cancel()

		tr := model.TargetResult{
			Name:    t.Name,
			Kind:    t.Kind,
			Elapsed: time.Since(tstart),
		}
		if err != nil {
			tr.Outcome = model.OutcomeFail
			tr.Message = err.Error()
			result.Outcome = model.OutcomeFail
			g.logger.Error("Validation target failed",
				zap.String("target", t.Name),
				zap.Error(err))
		} else {
			tr.Outcome = model.OutcomePass
			g.logger.Info("Validation target passed", zap.String("target", t.Name))
		}
		result.Targets = append(result.Targets, tr)
	}

	result.Elapsed = time.Since(start)
	return result
}

// GateTargets assembles the validation targets for a stack: the probe of
// every enabled required service, plus direct checks against the banking
// database and the message broker.
func GateTargets(cfg *config.PipelineConfig, st *model.Stack, inspector probe.ContainerInspector) ([]Target, error) {
	probers := StackProbers(cfg.Environment, inspector)

	var targets []Target
	for si := range st.Stages {
		for i := range st.Stages[si].Steps {
			step := &st.Stages[si].Steps[i]
			if step.BestEffort {
				continue
			}
			if enabled, _ := stepEnabled(cfg, step); !enabled {
				continue
			}
			p, err := probers(step)
			if err != nil {
				return nil, fmt.Errorf("invalid probe for %s: %w", step.Service, err)
			}
			targets = append(targets, Target{Name: step.Service, Kind: "service", Prober: p})
		}
	}

	targets = append(targets,
		Target{Name: "database", Kind: "database", Prober: &databaseProber{dsn: cfg.Database.DSN()}},
		Target{Name: "message-broker", Kind: "message-broker", Prober: &brokerProber{address: brokerAddress(st)}},
	)
	return targets, nil
}

// databaseProber verifies the banking database end to end: open a pooled
// connection through the postgres driver and ping it. Automatic ping is
// disabled so the context deadline governs the network round trip.
type databaseProber struct {
	dsn string
}

func (p *databaseProber) Probe(ctx context.Context) error {
	db, err := gorm.Open(postgres.Open(p.dsn), &gorm.Config{
		Logger:               gormlogger.Discard,
		DisableAutomaticPing: true,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access connection pool: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// brokerProber checks broker reachability with a plain TCP dial against the
// advertised listener.
type brokerProber struct {
	address string
}

func (p *brokerProber) Probe(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.address)
	if err != nil {
		return fmt.Errorf("broker unreachable at %s: %w", p.address, err)
	}
	return conn.Close()
}

// brokerAddress finds the Kafka listener address in the stack, falling back
// to the conventional local port.
func brokerAddress(st *model.Stack) string {
	for _, stage := range st.Stages {
		for _, step := range stage.Steps {
			if step.Service == "kafka" && step.Probe.Address != "" {
				return step.Probe.Address
			}
		}
	}
	return "localhost:9092"
}
