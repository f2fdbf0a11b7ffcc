package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/media/ffprobe"
)

// newProbeCommand inspects a media file locally without contacting the daemon.
func newProbeCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "probe <file>",
		Short: "Inspect a media file with ffprobe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("stat %s: %w", path, err)
			}
			result, err := ffprobe.New(cfg.FFprobeBinary()).Inspect(cmd.Context(), path)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, result)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader(filepath.Base(path), colorize) {
				fmt.Fprintln(out, line)
			}
			audio := result.StreamCount("audio")
			audioKind := statusOK
			if audio == 0 {
				audioKind = statusError
			}
			fmt.Fprintln(out, renderStatusLine("Format", statusInfo, result.Format.FormatName, colorize))
			fmt.Fprintln(out, renderStatusLine("Duration", statusInfo, formatSeconds(result.DurationSeconds()), colorize))
			fmt.Fprintln(out, renderStatusLine("Size", statusInfo, formatBytes(result.SizeBytes()), colorize))
			fmt.Fprintln(out, renderStatusLine("Audio streams", audioKind, fmt.Sprintf("%d", audio), colorize))
			fmt.Fprintln(out, renderStatusLine("Video streams", statusInfo, fmt.Sprintf("%d", result.StreamCount("video")), colorize))
			return nil
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}
