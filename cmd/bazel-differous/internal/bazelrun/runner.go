// Package bazelrun locates and executes the bazel binary that backs
// the query driver: every actual bazel query/cquery invocation goes
// through a Runner so that binary discovery and process plumbing live
// in one place.
package bazelrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// ErrBazelNotFound is returned when no bazel binary can be located.
var ErrBazelNotFound = errors.New("bazelrun: bazel binary not found")

// Runner finds and executes the bazel binary.
type Runner struct {
	bazelPath string
}

// Option configures a Runner.
type Option func(*Runner)

// WithBazelPath pins the bazel binary to an explicit path, bypassing
// PATH and environment lookup. Used for --bazelPath and in tests.
func WithBazelPath(path string) Option {
	return func(r *Runner) {
		r.bazelPath = path
	}
}

// New creates a Runner with the given options applied.
func New(opts ...Option) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve locates the bazel binary using, in order: an explicit path
// from WithBazelPath, the BAZEL_REAL or BAZEL environment variables
// (set by bazelisk wrapper scripts), then a PATH lookup for "bazel".
func (r *Runner) Resolve() (string, error) {
	if r.bazelPath != "" {
		return r.bazelPath, nil
	}
	for _, env := range []string{"BAZEL_REAL", "BAZEL"} {
		if v := os.Getenv(env); v != "" {
			return v, nil
		}
	}
	if path, err := exec.LookPath("bazel"); err == nil {
		return path, nil
	}
	return "", ErrBazelNotFound
}

// StreamResult exposes a running command's stdout for incremental
// reading, deferring exit-status inspection until the caller has
// finished consuming it.
type StreamResult struct {
	Stdout io.ReadCloser
	wait   func() error
	tail   *tailBuffer
	cmd    *exec.Cmd
}

// Read satisfies io.Reader by delegating to Stdout, letting a
// *StreamResult be handed directly to consumers that only need to read
// the subprocess's output.
func (s *StreamResult) Read(p []byte) (int, error) {
	return s.Stdout.Read(p)
}

// Wait blocks until the process exits, returning its exit code and the
// last bytes written to stderr (for QueryFailed error reporting).
func (s *StreamResult) Wait() (exitCode int, stderrTail string, err error) {
	err = s.wait()
	if s.cmd.ProcessState != nil {
		exitCode = s.cmd.ProcessState.ExitCode()
	} else {
		exitCode = -1
	}
	return exitCode, s.tail.String(), err
}

// StreamCommand starts `bazel <args...>` in dir and returns a pipe over
// its stdout. The caller must call StreamResult.Wait after it is done
// reading, both to reap the process and to observe its exit code.
func (r *Runner) StreamCommand(ctx context.Context, dir string, args []string) (*StreamResult, error) {
	bazelPath, err := r.Resolve()
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, bazelPath, args...)
	cmd.Dir = dir
	cmd.Stdin = nil

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("bazelrun: stdout pipe: %w", err)
	}
	tail := newTailBuffer(4096)
	cmd.Stderr = tail

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("bazelrun: starting %s: %w", bazelPath, err)
	}

	return &StreamResult{
		Stdout: stdout,
		wait:   cmd.Wait,
		tail:   tail,
		cmd:    cmd,
	}, nil
}

// Version runs `bazel --version` and returns its trimmed first line,
// e.g. "bazel 7.4.1".
func (r *Runner) Version(ctx context.Context, dir string) (string, error) {
	bazelPath, err := r.Resolve()
	if err != nil {
		return "", err
	}
	cmd := exec.CommandContext(ctx, bazelPath, "--version")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("bazelrun: bazel --version: %w", err)
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}
