package build

import (
	"context"
	"errors"
	"testing"

	"github.com/bankops/bankctl/internal/config"
)

type recordedCall struct {
	dir  string
	argv []string
}

// fakeCommandRunner records invocations and fails on a matching first arg.
type fakeCommandRunner struct {
	calls   []recordedCall
	failOn  string
	failErr error
}

func (f *fakeCommandRunner) Run(ctx context.Context, dir string, argv []string) error {
	f.calls = append(f.calls, recordedCall{dir: dir, argv: argv})
	if f.failOn != "" && len(argv) > 1 && argv[1] == f.failOn {
		return f.failErr
	}
	return nil
}

func buildConfig() config.BuildConfig {
	return config.BuildConfig{
		Command: []string{"./gradlew", "assemble", "jibDockerBuild"},
		Clean:   []string{"./gradlew", "clean"},
		Dir:     "/srv/banking-platform",
	}
}

func TestBuildRunsCommandOnce(t *testing.T) {
	runner := &fakeCommandRunner{}
	builder := New(buildConfig(), runner)

	if err := builder.Build(context.Background(), false); err != nil {
		t.Fatalf("Failed to build: %v", err)
	}

	if len(runner.calls) != 1 {
		t.Fatalf("Command call count does not match: got %d, want 1", len(runner.calls))
	}
	if runner.calls[0].dir != "/srv/banking-platform" {
		t.Errorf("Build dir does not match: got %s, want /srv/banking-platform", runner.calls[0].dir)
	}
	if runner.calls[0].argv[1] != "assemble" {
		t.Errorf("Build command does not match: got %v", runner.calls[0].argv)
	}
}

func TestBuildForceCleansFirst(t *testing.T) {
	runner := &fakeCommandRunner{}
	builder := New(buildConfig(), runner)

	if err := builder.Build(context.Background(), true); err != nil {
		t.Fatalf("Failed to build with force: %v", err)
	}

	if len(runner.calls) != 2 {
		t.Fatalf("Command call count does not match: got %d, want 2", len(runner.calls))
	}
	if runner.calls[0].argv[1] != "clean" {
		t.Errorf("First forced call is not clean: got %v", runner.calls[0].argv)
	}
	if runner.calls[1].argv[1] != "assemble" {
		t.Errorf("Second forced call is not the build: got %v", runner.calls[1].argv)
	}
}

func TestBuildCleanFailureAborts(t *testing.T) {
	runner := &fakeCommandRunner{failOn: "clean", failErr: errors.New("gradle daemon crashed")}
	builder := New(buildConfig(), runner)

	if err := builder.Build(context.Background(), true); err == nil {
		t.Fatal("Expected error when clean fails, got nil")
	}
	if len(runner.calls) != 1 {
		t.Errorf("Build command ran despite clean failure: got %d calls, want 1", len(runner.calls))
	}
}

func TestBuildFailurePropagates(t *testing.T) {
	runner := &fakeCommandRunner{failOn: "assemble", failErr: errors.New("compilation failed")}
	builder := New(buildConfig(), runner)

	err := builder.Build(context.Background(), false)
	if err == nil {
		t.Fatal("Expected build error, got nil")
	}
	if !errors.Is(err, runner.failErr) {
		t.Errorf("Build error does not wrap the command error: got %v", err)
	}
}

func TestExecRunnerExitCodes(t *testing.T) {
	runner := NewExecRunner()
	ctx := context.Background()

	if err := runner.Run(ctx, "", []string{"sh", "-c", "exit 0"}); err != nil {
		t.Fatalf("Failed to run successful command: %v", err)
	}

	err := runner.Run(ctx, "", []string{"sh", "-c", "exit 3"})
	if err == nil {
		t.Fatal("Expected error for non-zero exit, got nil")
	}
}

func TestExecRunnerEmptyCommand(t *testing.T) {
	runner := NewExecRunner()
	if err := runner.Run(context.Background(), "", nil); err == nil {
		t.Fatal("Expected error for empty command, got nil")
	}
}

func TestAvailable(t *testing.T) {
	if err := Available("", []string{"sh"}); err != nil {
		t.Errorf("Available(sh) = %v, want nil", err)
	}
	if err := Available("", []string{"bankctl-no-such-tool-zz"}); err == nil {
		t.Error("Available() = nil for missing tool, want error")
	}
	if err := Available("", nil); err == nil {
		t.Error("Available() = nil for empty command, want error")
	}
	if err := Available("/definitely/missing", []string{"./gradlew"}); err == nil {
		t.Error("Available() = nil for missing relative path, want error")
	}
}
