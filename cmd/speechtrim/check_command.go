package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"speechtrim/internal/preflight"
	"speechtrim/internal/staging"
)

const daemonProbeTimeout = 2 * time.Second

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify directories, model, binaries and daemon reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Preflight", colorize) {
				fmt.Fprintln(out, line)
			}
			results := preflight.RunAll(cfg)
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}

			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Workspaces", colorize) {
				fmt.Fprintln(out, line)
			}
			dirs, err := staging.ListDirectories(cfg.Paths.StagingDir)
			if err != nil {
				fmt.Fprintln(out, renderStatusLine("Staging", statusWarn, err.Error(), colorize))
			} else {
				var total int64
				for _, d := range dirs {
					total += d.Size
				}
				fmt.Fprintln(out, renderStatusLine("Staging", statusInfo,
					fmt.Sprintf("%d workspace(s), %s", len(dirs), humanize.IBytes(uint64(total))), colorize))
			}

			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(out, line)
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			probeCtx, cancel := context.WithTimeout(cmd.Context(), daemonProbeTimeout)
			defer cancel()
			if status, err := client.DaemonStatus(probeCtx); err != nil {
				fmt.Fprintln(out, renderStatusLine("API", statusWarn, "not reachable", colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("API", statusOK,
					fmt.Sprintf("pid %d, %d active, %d pending", status.PID, len(status.Workflow.Active), status.Stats["pending"]), colorize))
				if status.Workflow.LastError != "" {
					fmt.Fprintln(out, renderStatusLine("Last error", statusWarn, status.Workflow.LastError, colorize))
				}
			}

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d preflight check(s) failed", len(failed))
			}
			return nil
		},
	}
}
