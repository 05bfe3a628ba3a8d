// Command bazel-differous computes deterministic content hashes for a
// Bazel build graph and diffs two such snapshots into an impacted-target
// report.
package main

import "github.com/friel-openai/bazel-differous/cmd/bazel-differous/internal/cli"

func main() {
	cli.Execute()
}
