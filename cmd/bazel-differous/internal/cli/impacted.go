package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friel-openai/bazel-differous/internal/hashformat"
	"github.com/friel-openai/bazel-differous/internal/impact"
	"github.com/friel-openai/bazel-differous/internal/log"
)

type getImpactedTargetsFlags struct {
	startingHashesJSONPath string
	finalHashesJSONPath    string
	depEdgesPath           string
	outputPath             string
	targetType             string
}

func newGetImpactedTargetsCmd() *cobra.Command {
	var flags getImpactedTargetsFlags

	cmd := &cobra.Command{
		Use:   "get-impacted-targets",
		Short: "Diff two hash maps and report the targets that changed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGetImpactedTargets(flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.startingHashesJSONPath, "startingHashesJSONPath", "", "Hash JSON from the earlier snapshot")
	f.StringVar(&flags.finalHashesJSONPath, "finalHashesJSONPath", "", "Hash JSON from the later snapshot")
	f.StringVarP(&flags.depEdgesPath, "depEdgesPath", "d", "", "Dependency-edges JSON; when set, output is distances instead of a plain label list")
	f.StringVarP(&flags.outputPath, "outputPath", "o", "", "Path to write the result (default stdout)")
	f.StringVar(&flags.targetType, "targetType", "", "Restrict output to one target kind (requires hashes generated with --includeTargetType)")

	cmd.MarkFlagRequired("startingHashesJSONPath")
	cmd.MarkFlagRequired("finalHashesJSONPath")

	return cmd
}

func runGetImpactedTargets(flags getImpactedTargetsFlags) error {
	logger := log.Component("get-impacted-targets")

	beforeRaw, err := readJSONStringMap(flags.startingHashesJSONPath)
	if err != nil {
		return err
	}
	afterRaw, err := readJSONStringMap(flags.finalHashesJSONPath)
	if err != nil {
		return err
	}

	beforeRawParsed, err := hashformat.Parse(beforeRaw)
	if err != nil {
		return fmt.Errorf("get-impacted-targets: starting hashes: %w", err)
	}
	afterRawParsed, err := hashformat.Parse(afterRaw)
	if err != nil {
		return fmt.Errorf("get-impacted-targets: final hashes: %w", err)
	}
	before := hashformat.ByLabel(beforeRawParsed)
	after := hashformat.ByLabel(afterRawParsed)

	changed, err := impact.DirectChanges(before, after)
	if err != nil {
		return fmt.Errorf("get-impacted-targets: %w", err)
	}
	logger.Debug("direct changes computed", "count", len(changed))

	if flags.targetType != "" {
		lookup := before
		for l, p := range after {
			lookup[l] = p
		}
		changed, err = impact.FilterByType(changed, lookup, flags.targetType)
		if err != nil {
			return fmt.Errorf("get-impacted-targets: %w", err)
		}
	}

	if flags.depEdgesPath == "" {
		return writeText(flags.outputPath, impact.PlainText(changed))
	}

	edges, err := readDepEdges(flags.depEdgesPath)
	if err != nil {
		return err
	}
	distances := impact.DistancesFromEdges(edges, changed)
	data, err := impact.JSON(distances)
	if err != nil {
		return fmt.Errorf("get-impacted-targets: %w", err)
	}
	return writeText(flags.outputPath, string(data)+"\n")
}
