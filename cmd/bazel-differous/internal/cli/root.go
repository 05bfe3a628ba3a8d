// Package cli implements the bazel-differous command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/friel-openai/bazel-differous/internal/log"
	"github.com/friel-openai/bazel-differous/pkg/config"
)

// Version information (set via ldflags).
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// globalFlags holds persistent flags that apply to every subcommand.
var globalFlags struct {
	verbosity int
	logFormat string
}

// cfg is the layered configuration resolved once at startup and
// consulted by every subcommand as the base a command's own flags
// override.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "bazel-differous",
	Short: "Deterministic content hashing and diffing for Bazel build graphs",
	Long: `bazel-differous computes a deterministic content hash for every target
in a Bazel build graph, and reports the set of targets whose hashes
changed between two snapshots, a drop-in replacement for the reference
bazel-diff tool.`,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("bazel-differous %s (%s)\n", Version, GitCommit)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newGenerateHashesCmd())
	rootCmd.AddCommand(newGetImpactedTargetsCmd())

	rootCmd.PersistentFlags().IntVarP(&globalFlags.verbosity, "verbosity", "v", 2,
		"Verbosity level (0=error, 1=warn, 2=info, 3=debug, 4=trace)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.logFormat, "log-format", "text",
		"Log format (text, json)")

	cobra.OnInitialize(initConfig)
}

// initConfig loads layered configuration for the current directory and
// applies CLI flags on top, then initializes the logger. This runs
// after flags are parsed but before command execution.
func initConfig() {
	dir, err := os.Getwd()
	if err != nil {
		dir = "."
	}
	cfg = config.Load(dir)

	flags := rootCmd.PersistentFlags()
	if flags.Changed("verbosity") {
		cfg.Log.Verbosity = globalFlags.verbosity
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = globalFlags.logFormat
	}
	log.Init(cfg.Log.Verbosity, cfg.Log.Format)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// RootCmd returns the root command for testing.
func RootCmd() *cobra.Command {
	return rootCmd
}
