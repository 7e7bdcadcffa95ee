package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/cuemby/lookout/pkg/client"
	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:     "sources",
	Aliases: []string{"source"},
	Short:   "Manage event sources",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List event sources and their state",
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		list, err := client.NewClient(server).ListSources(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tENABLED\tSTATE\tFAILURES\tLAST RUN")
		for _, st := range list {
			last := "-"
			if st.LastRun != nil {
				result := "ok"
				if !st.LastRun.Success {
					result = "failed"
				}
				last = fmt.Sprintf("%s (%s)", st.LastRun.StartTime.Format(time.RFC3339), result)
			}
			state := string(st.State)
			if st.HaltReason != "" {
				state += " (" + string(st.HaltReason) + ")"
			}
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%d\t%s\n",
				st.Source.ID, st.Source.Kind, st.Source.Enabled, state, st.ConsecutiveFailures, last)
		}
		return w.Flush()
	},
}

var sourcesDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Stop and delete an event source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		if err := client.NewClient(server).DeleteSource(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Source deleted: %s\n", args[0])
		return nil
	},
}

// actionCmd builds a subcommand that posts one lifecycle action
func actionCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			server, _ := cmd.Flags().GetString("server")
			if err := client.NewClient(server).SourceAction(cmd.Context(), args[0], action); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: %s\n", action, args[0])
			return nil
		},
	}
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List the events cached by the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		events, err := client.NewClient(server).CachedEvents(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tUPDATED\tMESSAGE")
		for _, e := range events {
			kind, msg := "data", ""
			if client.IsError(e) {
				kind = "error"
				msg, _ = e["errorMessage"].(string)
			}
			updated := "-"
			if ts, ok := e["updatedAt"].(float64); ok {
				updated = time.Unix(int64(ts), 0).Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", client.EventID(e), kind, updated, msg)
		}
		return w.Flush()
	},
}

func init() {
	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(sourcesDeleteCmd)
	sourcesCmd.AddCommand(actionCmd("start", "Start an event source"))
	sourcesCmd.AddCommand(actionCmd("stop", "Stop an event source"))
	sourcesCmd.AddCommand(actionCmd("restart", "Restart an event source"))
	sourcesCmd.AddCommand(actionCmd("trigger", "Run an event source now"))
	sourcesCmd.AddCommand(actionCmd("enable", "Enable an event source"))
	sourcesCmd.AddCommand(actionCmd("disable", "Disable and stop an event source"))
}
