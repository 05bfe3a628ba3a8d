// Package query builds bazel query/cquery invocations, streams their
// output through the proto decoder, and reports the driver-specific
// error conditions (query failure, truncated output) the hash engine
// and graph builder assume have already been ruled out.
package query

import (
	"context"
	"fmt"
	"io"
	"iter"

	"github.com/friel-openai/bazel-differous/internal/bazelpb"
	"github.com/friel-openai/bazel-differous/internal/protostream"
)

// Runner is the subset of bazelrun.Runner the query driver depends on,
// kept as an interface so tests can substitute a fake process.
type Runner interface {
	StreamCommand(ctx context.Context, dir string, args []string) (StreamHandle, error)
}

// StreamHandle is the subset of bazelrun.StreamResult the driver needs.
type StreamHandle interface {
	io.Reader
	Wait() (exitCode int, stderrTail string, err error)
}

// Options configures a single query or cquery invocation.
type Options struct {
	Workspace      string
	StartupOptions []string
	CommandOptions []string
	CqueryOptions  []string
	UseCquery      bool
	KeepGoing      bool
	Patterns       []string
}

// QueryFailedError reports that the bazel subprocess exited with a
// failure status not covered by --keep_going.
type QueryFailedError struct {
	ExitCode   int
	StderrTail string
}

func (e *QueryFailedError) Error() string {
	return fmt.Sprintf("query: bazel exited with code %d: %s", e.ExitCode, e.StderrTail)
}

// keepGoingPartialFailureCode is the exit code bazel uses for
// "succeeded with some errors", which --keep_going tolerates.
const keepGoingPartialFailureCode = 3

func allowedExitCode(code int, keepGoing bool) bool {
	return code == 0 || (keepGoing && code == keepGoingPartialFailureCode)
}

// Args builds the bazel argv (excluding the "bazel" binary itself) for
// opts, e.g. ["query", "--output=streamed_proto", "--order_output=no",
// "'//...'"].
func Args(opts Options) []string {
	args := make([]string, 0, len(opts.StartupOptions)+len(opts.CommandOptions)+8)
	args = append(args, opts.StartupOptions...)

	if opts.UseCquery {
		args = append(args, "cquery", "--output=streamed_proto")
	} else {
		args = append(args, "query", "--output=streamed_proto", "--order_output=no")
	}
	if opts.KeepGoing {
		args = append(args, "--keep_going")
	}
	args = append(args, opts.CommandOptions...)
	if opts.UseCquery {
		args = append(args, opts.CqueryOptions...)
	}
	args = append(args, Expression(opts.Patterns))
	return args
}

// Expression joins query patterns with Bazel's set-union operator, the
// same way `bazel query 'a' + 'b'` composes a universe from several
// patterns.
func Expression(patterns []string) string {
	if len(patterns) == 0 {
		return "//..."
	}
	expr := ""
	for i, p := range patterns {
		if i > 0 {
			expr += " + "
		}
		expr += "'" + p + "'"
	}
	return expr
}

// Run executes the query described by opts and returns a lazy sequence
// of decoded targets. The sequence's final iteration surfaces any
// QueryFailedError, protostream.ErrTruncatedStream, or decode error
// encountered; a well-formed, successful run ends the sequence with no
// error at all.
func Run(ctx context.Context, runner Runner, opts Options) iter.Seq2[*bazelpb.Target, error] {
	return func(yield func(*bazelpb.Target, error) bool) {
		handle, err := runner.StreamCommand(ctx, opts.Workspace, Args(opts))
		if err != nil {
			yield(nil, err)
			return
		}

		dec := protostream.NewDecoder(handle)
		decode := bazelpb.DecodeStreamedQueryFrame
		if opts.UseCquery {
			decode = bazelpb.DecodeCqueryResult
		}

		for frame, ferr := range dec.Frames() {
			if ferr != nil {
				handle.Wait()
				yield(nil, ferr)
				return
			}
			targets, derr := decode(frame)
			if derr != nil {
				handle.Wait()
				yield(nil, fmt.Errorf("query: decoding frame: %w", derr))
				return
			}
			for _, t := range targets {
				if !yield(t, nil) {
					handle.Wait()
					return
				}
			}
		}

		code, stderrTail, waitErr := handle.Wait()
		if !allowedExitCode(code, opts.KeepGoing) {
			yield(nil, &QueryFailedError{ExitCode: code, StderrTail: stderrTail})
			return
		}
		if waitErr != nil && code == 0 {
			yield(nil, fmt.Errorf("query: waiting for bazel: %w", waitErr))
		}
	}
}
