package bazelrun

import (
	"context"

	"github.com/friel-openai/bazel-differous/internal/query"
)

// AsQueryRunner adapts r to query.Runner, the narrow interface the
// query driver uses so it can be tested without a real bazel binary.
func (r *Runner) AsQueryRunner() query.Runner {
	return queryRunnerAdapter{r}
}

type queryRunnerAdapter struct{ r *Runner }

func (a queryRunnerAdapter) StreamCommand(ctx context.Context, dir string, args []string) (query.StreamHandle, error) {
	return a.r.StreamCommand(ctx, dir, args)
}
