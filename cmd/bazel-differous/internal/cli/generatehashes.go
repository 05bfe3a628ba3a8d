package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/friel-openai/bazel-differous/cmd/bazel-differous/internal/bazelrun"
	"github.com/friel-openai/bazel-differous/cmd/bazel-differous/internal/workspacecache"
	"github.com/friel-openai/bazel-differous/internal/extrepo"
	"github.com/friel-openai/bazel-differous/internal/graph"
	"github.com/friel-openai/bazel-differous/internal/hashengine"
	"github.com/friel-openai/bazel-differous/internal/hashformat"
	"github.com/friel-openai/bazel-differous/internal/log"
	"github.com/friel-openai/bazel-differous/internal/query"
)

type generateHashesFlags struct {
	workspacePath                string
	bazelPath                    string
	outputPath                   string
	depEdgesOutputPath           string
	bazelCommandOptions          string
	seedFilepaths                string
	modifiedFilepaths            string
	modifiedGitPaths             string
	fingerprintWorkspace         bool
	contentHashPath              string
	fineGrainedHashExternalRepos string
	ignoredRuleHashingAttributes string
	useCquery                    bool
	excludeExternalTargets       bool
	includeTargetType            bool
	parallel                     bool
	workers                      int
}

func newGenerateHashesCmd() *cobra.Command {
	var flags generateHashesFlags

	cmd := &cobra.Command{
		Use:   "generate-hashes",
		Short: "Compute a content digest for every target in a Bazel build graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerateHashes(cmd.Context(), flags)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.workspacePath, "workspacePath", "w", ".", "Path to the Bazel workspace")
	f.StringVar(&flags.bazelPath, "bazelPath", "", "Explicit path to the bazel binary")
	f.StringVarP(&flags.outputPath, "outputPath", "o", "", "Path to write the hash JSON (default stdout)")
	f.StringVar(&flags.depEdgesOutputPath, "depEdgesOutputPath", "", "Path to write the dependency-edges JSON")
	f.StringVar(&flags.bazelCommandOptions, "bazelCommandOptions", "", "Space-separated options forwarded to bazel query/cquery")
	f.StringVar(&flags.seedFilepaths, "seed-filepaths", "", "Comma-separated JSON files of label->content-digest seeds")
	f.StringVar(&flags.modifiedFilepaths, "modified-filepaths", "", "Comma-separated files listing modified source labels, one per line")
	f.StringVar(&flags.modifiedGitPaths, "modified-git-paths", "", "Comma-separated files listing modified workspace-relative paths (e.g. git diff --name-only output), one per line")
	f.BoolVar(&flags.fingerprintWorkspace, "fingerprintWorkspace", false, "Log a diagnostic content fingerprint of the workspace tree before querying")
	f.StringVar(&flags.contentHashPath, "contentHashPath", "", "JSON file of label->content-digest overrides")
	f.StringVar(&flags.fineGrainedHashExternalRepos, "fineGrainedHashExternalRepos", "", "Comma-separated external repos hashed at full granularity")
	f.StringVar(&flags.ignoredRuleHashingAttributes, "ignoredRuleHashingAttributes", "", "Comma-separated attribute names excluded from rule hashes")
	f.BoolVar(&flags.useCquery, "useCquery", false, "Use bazel cquery instead of query")
	f.BoolVar(&flags.excludeExternalTargets, "excludeExternalTargets", false, "Exclude //external/... from the query universe")
	f.BoolVar(&flags.includeTargetType, "includeTargetType", false, "Prefix each output key with its target kind")
	f.BoolVar(&flags.parallel, "parallel", false, "Evaluate independent rule subtrees concurrently")
	f.IntVar(&flags.workers, "workers", 0, "Worker pool size when --parallel is set (0 = engine default)")

	return cmd
}

func runGenerateHashes(ctx context.Context, flags generateHashesFlags) error {
	logger := log.Component("generate-hashes")

	bazelPath := flags.bazelPath
	if bazelPath == "" {
		bazelPath = cfg.Bazel.Path
	}
	runner := bazelrun.New(bazelrun.WithBazelPath(bazelPath))

	fineGrained := toSet(splitCommaList(flags.fineGrainedHashExternalRepos))
	if len(fineGrained) == 0 {
		fineGrained = cfg.FineGrainedRepoSet()
	}

	patterns := extrepo.Patterns("//...", fineGrained)
	if flags.excludeExternalTargets {
		for i, p := range patterns {
			patterns[i] = p + " - //external/..."
		}
	}

	opts := query.Options{
		Workspace:      flags.workspacePath,
		StartupOptions: cfg.Bazel.StartupOptions,
		CommandOptions: append(append([]string(nil), cfg.Bazel.CommandOptions...), strings.Fields(flags.bazelCommandOptions)...),
		CqueryOptions:  cfg.Bazel.CqueryOptions,
		UseCquery:      flags.useCquery || cfg.Bazel.UseCquery,
		KeepGoing:      cfg.Bazel.KeepGoing,
		Patterns:       patterns,
	}

	if flags.fingerprintWorkspace {
		scanner := workspacecache.NewScanner(workspacecache.ScanConfig{Root: flags.workspacePath})
		entries, err := scanner.Scan(ctx)
		if err != nil {
			return fmt.Errorf("generate-hashes: %w", err)
		}
		logger.Debug("workspace fingerprint", "fingerprint", workspacecache.Fingerprint(entries), "files", len(entries))
	}

	logger.Info("querying workspace", "workspace", flags.workspacePath, "cquery", opts.UseCquery)

	g := graph.New()
	for target, err := range query.Run(ctx, runner.AsQueryRunner(), opts) {
		if err != nil {
			return fmt.Errorf("generate-hashes: %w", err)
		}
		if err := g.Add(target); err != nil {
			return fmt.Errorf("generate-hashes: %w", err)
		}
	}
	logger.Info("graph assembled", "targets", g.Len())

	seeds, err := readSeedFiles(splitCommaList(flags.seedFilepaths))
	if err != nil {
		return err
	}
	overrides, err := readContentHashOverrides(flags.contentHashPath)
	if err != nil {
		return err
	}
	modified, err := readModifiedFilepaths(splitCommaList(flags.modifiedFilepaths))
	if err != nil {
		return err
	}
	gitPaths, err := readRawModifiedPaths(splitCommaList(flags.modifiedGitPaths))
	if err != nil {
		return err
	}
	for l := range workspacecache.ToModifiedLabels(gitPaths) {
		modified[l] = struct{}{}
	}
	modifiedEnabled := flags.modifiedFilepaths != "" || flags.modifiedGitPaths != ""

	ignored := cfg.IgnoredAttrSet()
	for _, a := range splitCommaList(flags.ignoredRuleHashingAttributes) {
		ignored[a] = struct{}{}
	}

	hcfg := hashengine.Config{
		IgnoredAttrs:             ignored,
		Seeds:                    seeds,
		ContentOverrides:         overrides,
		ModifiedFiles:            hashengine.ModifiedFilePredicate{Enabled: modifiedEnabled, Paths: modified},
		FineGrainedExternalRepos: fineGrained,
		Parallel:                 flags.parallel || cfg.Hashing.Parallel,
		Workers:                  workersOrDefault(flags.workers, cfg.Hashing.Workers),
	}

	engine := hashengine.New(g, hcfg)
	digests, err := engine.DigestAll(ctx)
	if err != nil {
		return fmt.Errorf("generate-hashes: %w", err)
	}

	entries := make([]hashformat.Entry, 0, len(digests))
	for l, d := range digests {
		kind, _ := g.Kind(l)
		entries = append(entries, hashformat.Entry{Label: l, Digest: d, Kind: kind})
	}
	includeType := flags.includeTargetType || cfg.Hashing.IncludeTargetType
	out := hashformat.Format(entries, includeType)

	if err := writeJSON(flags.outputPath, out); err != nil {
		return err
	}
	if flags.depEdgesOutputPath != "" {
		if err := writeJSON(flags.depEdgesOutputPath, g.DepEdges()); err != nil {
			return err
		}
	}
	logger.Info("hashes written", "targets", len(out), "output", flags.outputPath)
	return nil
}

func workersOrDefault(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}
