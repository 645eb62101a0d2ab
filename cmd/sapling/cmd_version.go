package main

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/dhamidi/sapling/baml"
	"github.com/dhamidi/sapling/sitter"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := semver.NewVersion(version)
			if err != nil {
				return fmt.Errorf("invalid build version %q: %w", version, err)
			}
			lang := baml.Language()
			fmt.Fprintf(cmd.OutOrStdout(), "sapling v%s\n", v)
			fmt.Fprintf(cmd.OutOrStdout(), "%s grammar ABI %s (runtime accepts %s)\n", lang.Name(), lang.Version(), sitter.SupportedABI)
			fmt.Fprintf(cmd.OutOrStdout(), "%d symbols, %d states\n", lang.SymbolCount(), lang.StateCount())
			return nil
		},
	}
}
