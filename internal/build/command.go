package build

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/bankops/bankctl/internal/utils/logger"
)

// CommandRunner executes one external command to completion.
type CommandRunner interface {
	Run(ctx context.Context, dir string, argv []string) error
}

// ExecRunner runs commands through os/exec, streaming combined output into
// the log line by line so build and test output lands in the run log.
type ExecRunner struct {
	logger *zap.Logger
}

// NewExecRunner creates a command runner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{logger: logger.With()}
}

// Run executes argv in dir and waits for it to finish. A relative
// executable path like ./gradlew resolves against dir, matching how the
// process itself runs.
func (r *ExecRunner) Run(ctx context.Context, dir string, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("no command configured")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	name := filepath.Base(argv[0])
	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			r.logger.Info(scanner.Text(), zap.String("cmd", name))
		}
	}()

	r.logger.Info("Running command",
		zap.String("cmd", strings.Join(argv, " ")),
		zap.String("dir", dir))

	err := cmd.Run()
	pw.Close()
	<-done

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return fmt.Errorf("%s exited with code %d", name, exitErr.ExitCode())
		}
		return fmt.Errorf("failed to run %s: %w", name, err)
	}
	return nil
}

// Available reports whether the command's executable can be found without
// running it: PATH lookup for bare names, a file check for explicit paths.
// Relative paths resolve against dir the same way Run resolves them.
func Available(dir string, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("no command configured")
	}

	name := argv[0]
	if !strings.Contains(name, "/") {
		if _, err := exec.LookPath(name); err != nil {
			return fmt.Errorf("%s not found on PATH: %w", name, err)
		}
		return nil
	}

	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s not found: %w", name, err)
	}
	if info.IsDir() || info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}
