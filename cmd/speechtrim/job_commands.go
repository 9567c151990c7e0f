package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"speechtrim/internal/api"
	"speechtrim/internal/jobs"
)

const pollInterval = time.Second

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Upload a video to the running daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.Upload(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("submit %s: %w", filepath.Base(args[0]), err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Queued %s as job %s\n", filepath.Base(args[0]), resp.ID)
			if !wait {
				return nil
			}
			return waitAndRender(cmd, client, resp.ID)
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the job to finish")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the state of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if wait {
				return waitAndRender(cmd, client, args[0])
			}
			job, err := client.Status(cmd.Context(), args[0])
			if errors.Is(err, api.ErrJobNotFound) {
				return fmt.Errorf("job %s not found", args[0])
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			renderJob(out, *job, shouldColorize(out))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Follow progress until the job finishes")
	return cmd
}

func waitAndRender(cmd *cobra.Command, client *api.Client, id string) error {
	out := cmd.OutOrStdout()
	final, err := client.WaitForTerminal(cmd.Context(), id, pollInterval, func(job api.JobStatus) {
		renderProgress(out, job)
	})
	if errors.Is(err, api.ErrJobNotFound) {
		return fmt.Errorf("job %s not found", id)
	}
	if err != nil {
		return err
	}
	renderJob(out, *final, shouldColorize(out))
	if final.Status == string(jobs.StatusFailed) {
		return fmt.Errorf("job %s failed: %s", shortID(id), final.ErrorDetail)
	}
	return nil
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs known to the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			var statuses []jobs.Status
			for _, raw := range statusFlags {
				status, ok := jobs.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q (use pending, in_progress, completed or failed)", raw)
				}
				statuses = append(statuses, status)
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			list, err := client.List(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No jobs")
				return nil
			}
			fmt.Fprintln(out, renderTable(jobColumns, jobRows(list)))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (repeatable)")
	return cmd
}

var jobColumns = []column{
	{title: "ID"},
	{title: "File"},
	{title: "Size", numeric: true},
	{title: "Status"},
	{title: "Stage"},
	{title: "Progress", numeric: true},
	{title: "Updated"},
}

func jobRows(list []api.JobStatus) [][]string {
	rows := make([][]string, 0, len(list))
	for _, job := range list {
		size := ""
		if job.SourceBytes > 0 {
			size = humanize.IBytes(uint64(job.SourceBytes))
		}
		stage := job.CurrentStage
		if job.FailedStage != "" {
			stage = "Failed in " + jobs.Stage(job.FailedStage).Label()
		}
		rows = append(rows, []string{
			shortID(job.ID),
			truncate(job.FileName, 32),
			size,
			job.Status,
			stage,
			strconv.Itoa(job.Progress) + "%",
			relativeTime(job.UpdatedAt),
		})
	}
	return rows
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
