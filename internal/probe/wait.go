package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/bankops/bankctl/internal/model"
	"github.com/bankops/bankctl/internal/utils/logger"
)

// WaitOptions tunes a polling wait. ProgressEvery controls how often a
// still-waiting line is logged while the service stays unready; zero
// disables progress logging.
type WaitOptions struct {
	Timeout       time.Duration
	Interval      time.Duration
	ProgressEvery time.Duration
}

// WaitHealthy polls the prober at a fixed interval until the service is
// ready or the attempt budget runs out. The budget is timeout divided by
// interval, floored, with a minimum of one: a 10s timeout polled every 2s
// probes exactly 5 times. The first probe fires immediately; each attempt
// is individually bounded so a hung probe costs one attempt, not the whole
// budget. Cancelling ctx aborts the wait with status Unknown.
func WaitHealthy(ctx context.Context, p Prober, service string, opts WaitOptions) model.HealthCheckResult {
	attempts := int(opts.Timeout / opts.Interval)
	if attempts < 1 {
		attempts = 1
	}

	start := time.Now()
	if err := ctx.Err(); err != nil {
		return model.HealthCheckResult{
			Service: service,
			Status:  model.Unknown,
			Message: fmt.Sprintf("wait aborted before first probe: %v", err),
		}
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	var lastErr error
	lastProgress := start

	for attempt := 1; ; attempt++ {
		actx, cancel := context.WithTimeout(ctx, probeTimeout(opts.Interval))
		err := p.Probe(actx)
		cancel()

		if err == nil {
			return model.HealthCheckResult{
				Service:  service,
				Status:   model.Healthy,
				Attempts: attempt,
				Elapsed:  time.Since(start),
			}
		}
		lastErr = err
		logger.Debugf("health probe for %s failed (attempt %d/%d): %v", service, attempt, attempts, err)

		if attempt >= attempts {
			break
		}

		select {
		case <-ctx.Done():
			return model.HealthCheckResult{
				Service:  service,
				Status:   model.Unknown,
				Attempts: attempt,
				Elapsed:  time.Since(start),
				Message:  fmt.Sprintf("wait aborted: %v", ctx.Err()),
			}
		case <-ticker.C:
		}

		if opts.ProgressEvery > 0 && time.Since(lastProgress) >= opts.ProgressEvery {
			logger.Infof("still waiting for %s to become healthy (%s elapsed, attempt %d/%d)",
				service, time.Since(start).Round(time.Second), attempt, attempts)
			lastProgress = time.Now()
		}
	}

	return model.HealthCheckResult{
		Service:  service,
		Status:   model.Unhealthy,
		Attempts: attempts,
		Elapsed:  time.Since(start),
		Message:  fmt.Sprintf("not healthy after %d attempts over %s: %v", attempts, time.Since(start).Round(time.Millisecond), lastErr),
	}
}
