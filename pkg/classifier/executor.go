package classifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	// Maximum output size kept from one classifier call (1MB)
	maxOutputSize = 1 * 1024 * 1024

	// Default per-call timeout
	defaultExecTimeout = 10 * time.Second
)

// Executor runs an external classifier program.
type Executor interface {
	// Execute runs path with stdin and extra environment and returns stdout,
	// stderr and the exit code. A non-zero exit is not an error.
	Execute(ctx context.Context, path, stdin string, env map[string]string) (stdout, stderr string, exitCode int, err error)
}

type execExecutor struct {
	timeout time.Duration
}

// NewExecutor returns an os/exec backed Executor with a per-call timeout.
func NewExecutor(timeout time.Duration) Executor {
	if timeout <= 0 {
		timeout = defaultExecTimeout
	}
	return &execExecutor{timeout: timeout}
}

// Execute implements Executor.
func (e *execExecutor) Execute(ctx context.Context, path, stdin string, env map[string]string) (stdout, stderr string, exitCode int, err error) {
	if err := ValidateProgram(path); err != nil {
		return "", "", -1, err
	}

	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, path)
	cmd.Env = mergeEnvironment(env)
	cmd.Stdin = strings.NewReader(stdin)

	var stdoutBuf, stderrBuf limitedBuffer
	stdoutBuf.limit = maxOutputSize
	stderrBuf.limit = maxOutputSize
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	runErr := cmd.Run()
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()
	exitCode = exitCodeOf(runErr)

	if runErr != nil {
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return stdout, stderr, exitCode, fmt.Errorf("classifier timed out after %v", e.timeout)
		}
		if exitCode > 0 {
			return stdout, stderr, exitCode, nil
		}
		return stdout, stderr, exitCode, fmt.Errorf("classifier execution failed: %w", runErr)
	}
	return stdout, stderr, 0, nil
}

// ValidateProgram checks that path is an absolute, clean path to an
// executable regular file.
func ValidateProgram(path string) error {
	if path == "" {
		return fmt.Errorf("classifier path cannot be empty")
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("classifier path cannot contain '..'")
	}
	if !filepath.IsAbs(path) {
		return fmt.Errorf("classifier path must be absolute, got: %s", path)
	}
	if filepath.Clean(path) != path {
		return fmt.Errorf("classifier path must be clean: %s", path)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("classifier does not exist: %s", path)
		}
		return fmt.Errorf("failed to stat classifier: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("classifier is not a regular file: %s", path)
	}
	if info.Mode().Perm()&0111 == 0 {
		return fmt.Errorf("classifier is not executable: %s (permissions: %s)", path, info.Mode().Perm())
	}
	return nil
}

func mergeEnvironment(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// limitedBuffer drops writes past its limit while reporting them as written.
type limitedBuffer struct {
	bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.limit > 0 && b.Len() >= b.limit {
		return len(p), nil
	}
	if remaining := b.limit - b.Len(); remaining < len(p) {
		_, err := b.Buffer.Write(p[:remaining])
		return len(p), err
	}
	return b.Buffer.Write(p)
}
