package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"notecast/internal/apiclient"
	"notecast/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and episode status",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			cfg := ctx.configValue()

			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil && !apiclient.IsUnavailable(err) {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, status)
			}

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if err != nil {
				fmt.Fprintln(stdout, renderStatusLine("Daemon", statusError, "not reachable at "+ctx.apiAddress(), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Database", statusInfo, cfg.DatabasePath(), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Audio", statusInfo, cfg.Paths.AudioDir, colorize))
				return nil
			}
			fmt.Fprintln(stdout, renderStatusLine("Daemon", statusOK, "running (pid "+strconv.Itoa(status.PID)+")", colorize))
			fmt.Fprintln(stdout, renderStatusLine("API", statusInfo, client.BaseURL(), colorize))
			fmt.Fprintln(stdout, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
			fmt.Fprintln(stdout, renderStatusLine("Audio", statusInfo, status.AudioDir, colorize))
			fmt.Fprintln(stdout, renderStatusLine("Token required", statusInfo, yesNo(cfg.Paths.APIToken != ""), colorize))
			fmt.Fprintln(stdout, renderStatusLine("Watchers", statusInfo, strconv.Itoa(status.Watchers), colorize))
			notifyKind, notifyDetail := statusWarn, "disabled"
			if cfg.Notifications.NtfyTopic != "" {
				notifyKind, notifyDetail = statusOK, "ntfy"
			}
			fmt.Fprintln(stdout, renderStatusLine("Notifications", notifyKind, notifyDetail, colorize))
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Episodes", colorize) {
				fmt.Fprintln(stdout, line)
			}
			rows := make([][]string, 0, 4)
			for _, st := range []store.Status{store.StatusPending, store.StatusGenerating, store.StatusCompleted, store.StatusFailed} {
				if n := status.EpisodeCounts[string(st)]; n > 0 {
					rows = append(rows, []string{colorStatus(string(st), colorize), strconv.Itoa(n)})
				}
			}
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "No episodes yet")
				return nil
			}
			fmt.Fprint(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}
