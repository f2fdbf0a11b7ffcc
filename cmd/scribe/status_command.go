package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"scribe/internal/api"
	"scribe/internal/deps"
	"scribe/internal/ipc"
)

var statusOrder = []string{"pending", "processing", "completed", "failed"}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and job status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			var status *ipc.StatusResponse
			dialErr := ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				status = resp
				return err
			})
			if asJSON {
				if dialErr != nil {
					return dialErr
				}
				return writeJSON(cmd, status)
			}

			for _, line := range renderSectionHeader("System Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if dialErr != nil || status == nil || !status.Running {
				fmt.Fprintln(stdout, renderStatusLine("Scribe", statusError, "Not running", colorize))
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				fmt.Fprintln(stdout)
				for _, line := range renderSectionHeader("Dependencies", colorize) {
					fmt.Fprintln(stdout, line)
				}
				for _, line := range dependencyLines(api.FromDependencies(deps.CheckSystem(cfg)), colorize) {
					fmt.Fprintln(stdout, line)
				}
				return nil
			}

			fmt.Fprintln(stdout, renderStatusLine("Scribe", statusOK, fmt.Sprintf("Running (PID %d)", status.PID), colorize))
			fmt.Fprintln(stdout, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
			fmt.Fprintln(stdout, renderStatusLine("Uploads", statusInfo, status.UploadDir, colorize))
			fmt.Fprintln(stdout, renderStatusLine("Queue", statusInfo, queueSummary(status.Queue), colorize))
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range dependencyLines(status.Dependencies, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Jobs", colorize) {
				fmt.Fprintln(stdout, line)
			}
			rows := make([][]string, 0, len(statusOrder))
			for _, name := range statusOrder {
				rows = append(rows, []string{jobStatusLabel(name), strconv.Itoa(status.JobCounts[name])})
			}
			fmt.Fprint(stdout, renderTable([]column{{header: "Status"}, {header: "Count", right: true}}, rows))
			return nil
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func queueSummary(q api.QueueStatus) string {
	return fmt.Sprintf("%d waiting, %d of %d slots busy", q.Waiting, q.CurrentlyProcessing, q.MaxConcurrent)
}
