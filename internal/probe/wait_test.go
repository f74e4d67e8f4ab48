package probe

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bankops/bankctl/internal/model"
)

// fakeProber fails a fixed number of attempts before reporting ready.
// failures of -1 means it never becomes ready.
type fakeProber struct {
	mu       sync.Mutex
	calls    int
	failures int
}

func (p *fakeProber) Probe(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failures < 0 || p.calls <= p.failures {
		return fmt.Errorf("not ready yet")
	}
	return nil
}

func (p *fakeProber) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestWaitHealthy_ExactAttemptBudget(t *testing.T) {
	// A 100ms timeout polled every 20ms gives a budget of exactly 5 attempts.
	p := &fakeProber{failures: -1}
	result := WaitHealthy(context.Background(), p, "banking-api", WaitOptions{
		Timeout:  100 * time.Millisecond,
		Interval: 20 * time.Millisecond,
	})

	if result.Status != model.Unhealthy {
		t.Errorf("Status does not match: got %s, want %s", result.Status, model.Unhealthy)
	}
	if result.Attempts != 5 {
		t.Errorf("Attempts do not match: got %d, want 5", result.Attempts)
	}
	if p.callCount() != 5 {
		t.Errorf("Probe calls do not match: got %d, want 5", p.callCount())
	}
	if result.Message == "" {
		t.Errorf("Expected a message carrying the last probe error")
	}
}

func TestWaitHealthy_ShortCircuitsOnSuccess(t *testing.T) {
	p := &fakeProber{failures: 2}
	result := WaitHealthy(context.Background(), p, "redis", WaitOptions{
		Timeout:  200 * time.Millisecond,
		Interval: 10 * time.Millisecond,
	})

	if result.Status != model.Healthy {
		t.Fatalf("Expected healthy result, got %s (%s)", result.Status, result.Message)
	}
	if result.Attempts != 3 {
		t.Errorf("Attempts do not match: got %d, want 3", result.Attempts)
	}
	if p.callCount() != 3 {
		t.Errorf("Probe calls do not match: got %d, want 3", p.callCount())
	}
}

func TestWaitHealthy_FirstProbeImmediate(t *testing.T) {
	p := &fakeProber{failures: 0}
	start := time.Now()
	result := WaitHealthy(context.Background(), p, "postgres", WaitOptions{
		Timeout:  10 * time.Second,
		Interval: 2 * time.Second,
	})

	if result.Status != model.Healthy {
		t.Fatalf("Expected healthy result, got %s", result.Status)
	}
	if result.Attempts != 1 {
		t.Errorf("Attempts do not match: got %d, want 1", result.Attempts)
	}
	// An already-healthy service must not wait out an interval
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("First probe took too long: %s", elapsed)
	}
}

func TestWaitHealthy_MinimumOneAttempt(t *testing.T) {
	p := &fakeProber{failures: -1}
	result := WaitHealthy(context.Background(), p, "kafka", WaitOptions{
		Timeout:  5 * time.Millisecond,
		Interval: 20 * time.Millisecond,
	})

	if result.Attempts != 1 {
		t.Errorf("Attempts do not match: got %d, want 1", result.Attempts)
	}
	if result.Status != model.Unhealthy {
		t.Errorf("Status does not match: got %s, want %s", result.Status, model.Unhealthy)
	}
}

func TestWaitHealthy_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	p := &fakeProber{failures: -1}
	result := WaitHealthy(ctx, p, "keycloak", WaitOptions{
		Timeout:  10 * time.Second,
		Interval: 20 * time.Millisecond,
	})

	if result.Status != model.Unknown {
		t.Errorf("Status does not match: got %s, want %s", result.Status, model.Unknown)
	}
	if result.Attempts == 0 {
		t.Errorf("Expected at least one attempt before cancellation")
	}
}

func TestWaitHealthy_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &fakeProber{failures: 0}
	result := WaitHealthy(ctx, p, "grafana", WaitOptions{
		Timeout:  time.Second,
		Interval: 100 * time.Millisecond,
	})

	if result.Status != model.Unknown {
		t.Errorf("Status does not match: got %s, want %s", result.Status, model.Unknown)
	}
	if p.callCount() != 0 {
		t.Errorf("Expected no probe calls on a cancelled context, got %d", p.callCount())
	}
}
