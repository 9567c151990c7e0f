package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"speechtrim/internal/jobs"
)

func newClearCommand(ctx *commandContext) *cobra.Command {
	var withFiles bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove completed and failed jobs from the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if withFiles {
				finished, err := store.List(cmd.Context(), jobs.StatusCompleted, jobs.StatusFailed)
				if err != nil {
					return err
				}
				for _, job := range finished {
					removeJobFiles(out, job)
				}
			}
			removed, err := store.ClearTerminal(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Removed %d finished job(s)\n", removed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&withFiles, "files", false, "Also delete the uploads and trimmed videos of removed jobs")
	return cmd
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	var withFiles bool
	cmd := &cobra.Command{
		Use:   "remove <job-id>",
		Short: "Remove one job that is not being processed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			job, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if job == nil {
				return fmt.Errorf("job %s not found", args[0])
			}
			removed, err := store.Remove(cmd.Context(), job.ID)
			if errors.Is(err, jobs.ErrJobActive) {
				return fmt.Errorf("job %s is being processed; wait for it to finish", shortID(job.ID))
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if removed && withFiles {
				removeJobFiles(out, job)
			}
			fmt.Fprintf(out, "Removed job %s\n", job.ID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&withFiles, "files", false, "Also delete the upload and trimmed video")
	return cmd
}

func removeJobFiles(out io.Writer, job *jobs.Job) {
	for _, path := range []string{job.SourcePath, job.OutputPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(out, "warn: could not delete %s: %v\n", path, err)
		}
	}
}
