package build

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bankops/bankctl/internal/config"
	"github.com/bankops/bankctl/internal/utils/logger"
)

// Builder produces deployable service images by invoking the external build
// tool. Build tools are incremental on their own; a forced build runs the
// configured clean command first so cached artifacts cannot mask changes.
type Builder struct {
	cfg    config.BuildConfig
	runner CommandRunner
	logger *zap.Logger
}

// New creates a builder around the configured build command.
func New(cfg config.BuildConfig, runner CommandRunner) *Builder {
	return &Builder{
		cfg:    cfg,
		runner: runner,
		logger: logger.With(),
	}
}

// Build runs the build command once. Failure is fatal to the pipeline; the
// caller decides that, this method just reports it.
func (b *Builder) Build(ctx context.Context, force bool) error {
	start := time.Now()

	if force && len(b.cfg.Clean) > 0 {
		b.logger.Info("Forced rebuild, cleaning previous build output")
		if err := b.runner.Run(ctx, b.cfg.Dir, b.cfg.Clean); err != nil {
			return fmt.Errorf("clean failed: %w", err)
		}
	}

	if err := b.runner.Run(ctx, b.cfg.Dir, b.cfg.Command); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	b.logger.Info("Build finished", zap.Duration("elapsed", time.Since(start).Round(time.Millisecond)))
	return nil
}
