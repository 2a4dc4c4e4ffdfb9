package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BaSui01/llmgate/internal/telemetry"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			version := Version
			if version == "dev" {
				version = telemetry.Version()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "llmgate %s\n  Git Commit: %s\n", version, GitCommit)
			return nil
		},
	}
}
