package main

import (
	"fmt"

	"github.com/cuemby/lookout/pkg/client"
	"github.com/cuemby/lookout/pkg/config"
	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a resource file",
	Long: `Apply Source and Dashboard resources from a YAML file to a running server.

Examples:
  # Apply sources and dashboards
  lookout apply -f ops.yaml

  # Apply to a remote server
  lookout apply -f ops.yaml --server lookout.internal:8080`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML file to apply (required)")
	_ = applyCmd.MarkFlagRequired("file")
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")
	server, _ := cmd.Flags().GetString("server")

	res, err := config.LoadResources(filename)
	if err != nil {
		return err
	}

	c := client.NewClient(server)
	out := cmd.OutOrStdout()

	for _, src := range res.Sources {
		if err := c.SaveSource(cmd.Context(), src); err != nil {
			return fmt.Errorf("failed to apply source %s: %w", src.ID, err)
		}
		fmt.Fprintf(out, "✓ Source applied: %s (%s)\n", src.ID, src.Kind)
	}
	for _, d := range res.Dashboards {
		if err := c.SaveDashboard(cmd.Context(), d); err != nil {
			return fmt.Errorf("failed to apply dashboard %s: %w", d.ID, err)
		}
		fmt.Fprintf(out, "✓ Dashboard applied: %s (%d widgets)\n", d.ID, len(d.Widgets))
	}
	return nil
}
