package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/api"
	"scribe/internal/config"
	"scribe/internal/ipc"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var model string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Queue a media file for transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			info, err := os.Stat(abs)
			if err != nil {
				return fmt.Errorf("stat %s: %w", abs, err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", abs)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Submit(abs, model)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				fmt.Fprint(cmd.OutOrStdout(), submitSummary(*resp))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model size (tiny, base, small, medium, large)")
	addJSONFlag(cmd, &asJSON)
	return cmd
}

// submitSummary reports the job's position as of the response. The daemon
// refreshes it after dispatch, so a job that already started has none.
func submitSummary(resp api.SubmitResponse) string {
	summary := fmt.Sprintf("Queued %s as job %s (model %s)\n", resp.Job.Filename, resp.Job.ID, resp.Job.ModelSize)
	if resp.Job.QueuePosition > 0 {
		summary += fmt.Sprintf("Queue position: %d\n", resp.Job.QueuePosition)
	}
	return summary
}

func newQueueCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Show jobs waiting for a processing slot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Queue()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s\n", queueSummary(*resp))
				if len(resp.Next) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(resp.Next))
				for i, entry := range resp.Next {
					rows = append(rows, []string{
						strconv.Itoa(i + 1),
						entry.JobID,
						entry.ModelSize,
						formatAge(entry.EnqueuedAt),
					})
				}
				fmt.Fprint(out, renderTable([]column{
					{header: "#", right: true},
					{header: "Job"},
					{header: "Model"},
					{header: "Waiting Since"},
				}, rows))
				return nil
			})
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transcription jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.List(normalizeStatuses(statuses))
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(out, "No jobs found")
					return nil
				}
				fmt.Fprint(out, renderJobTable(resp.Jobs))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (pending, processing, completed, failed)")
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job and its transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Show(strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				renderJobDetail(cmd, resp.Job)
				return nil
			})
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Write a completed transcript to a file or stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Transcript(strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				target := strings.TrimSpace(output)
				if target == "-" {
					_, err := fmt.Fprintln(cmd.OutOrStdout(), resp.Text)
					return err
				}
				if target == "" {
					target = resp.Filename
				}
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve output path: %w", err)
				}
				if err := os.WriteFile(expanded, []byte(resp.Text+"\n"), 0o644); err != nil {
					return fmt.Errorf("write transcript: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved transcript to %s\n", expanded)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (\"-\" for stdout)")
	return cmd
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a job and its uploaded file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Delete(id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted job %s\n", id)
				return nil
			})
		},
	}
}

func normalizeStatuses(values []string) []string {
	var out []string
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func renderJobTable(jobs []api.Job) string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			job.ID,
			job.Filename,
			job.ModelSize,
			jobStatusLabel(job.Status),
			formatSeconds(job.DurationSeconds),
			formatAge(job.CreatedAt),
		})
	}
	return renderTable([]column{
		{header: "ID"},
		{header: "File", maxWidth: 40},
		{header: "Model"},
		{header: "Status"},
		{header: "Duration", right: true},
		{header: "Age"},
	}, rows)
}

func renderJobDetail(cmd *cobra.Command, job api.Job) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader("Job "+job.ID, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Status", jobStatusKind(job.Status), jobStatusLabel(job.Status), colorize))
	fmt.Fprintln(out, renderStatusLine("File", statusInfo, job.Filename, colorize))
	fmt.Fprintln(out, renderStatusLine("Size", statusInfo, formatBytes(job.OriginalSize), colorize))
	fmt.Fprintln(out, renderStatusLine("Model", statusInfo, job.ModelSize, colorize))
	fmt.Fprintln(out, renderStatusLine("Duration", statusInfo, formatSeconds(job.DurationSeconds), colorize))
	if job.ProcessingTimeSeconds > 0 {
		fmt.Fprintln(out, renderStatusLine("Processing time", statusInfo, formatSeconds(job.ProcessingTimeSeconds), colorize))
	}
	if job.QueuePosition > 0 {
		fmt.Fprintln(out, renderStatusLine("Queue position", statusInfo, strconv.Itoa(job.QueuePosition), colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Created", statusInfo, formatAge(job.CreatedAt), colorize))
	if job.CompletedAt != "" {
		fmt.Fprintln(out, renderStatusLine("Completed", statusInfo, formatAge(job.CompletedAt), colorize))
	}
	if job.ErrorMessage != "" {
		fmt.Fprintln(out, renderStatusLine("Error", statusError, job.ErrorMessage, colorize))
	}
	if job.Text != "" {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader("Transcript", colorize) {
			fmt.Fprintln(out, line)
		}
		fmt.Fprintln(out, job.Text)
	}
}
