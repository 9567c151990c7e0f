package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"speechtrim/internal/fileutil"
	"speechtrim/internal/intake"
	"speechtrim/internal/jobs"
	"speechtrim/internal/logging"
	"speechtrim/internal/pipeline"
)

// captureDispatcher keeps the job intake hands over so it can run in the
// foreground.
type captureDispatcher struct {
	job *jobs.Job
}

func (d *captureDispatcher) Submit(job *jobs.Job) error {
	d.job = job
	return nil
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	var verbose bool
	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Trim one video synchronously without a daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			lock := flock.New(cfg.LockPath())
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !locked {
				return errors.New("a speechtrim daemon is running; use `speechtrim submit` instead")
			}
			defer lock.Unlock() //nolint:errcheck

			level := "warn"
			if verbose {
				level = "debug"
			}
			logger, err := logging.New(logging.Options{Level: level, Format: cfg.Logging.Format, OutputPaths: []string{"stderr"}})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			out := cmd.OutOrStdout()
			rt, err := openRuntime(cfg, logger, pipeline.WithObserver(func(t pipeline.Transition) {
				fmt.Fprintf(out, "%s%3d%%  %s\n", statusIndent, t.Progress, t.Stage.Label())
			}))
			if err != nil {
				return err
			}
			defer rt.Close()

			source := args[0]
			f, err := os.Open(source)
			if err != nil {
				return fmt.Errorf("open %s: %w", source, err)
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return fmt.Errorf("stat %s: %w", source, err)
			}

			dispatch := &captureDispatcher{}
			svc := intake.NewService(cfg, rt.store, dispatch, logger)
			job, err := svc.Submit(signalCtx, intake.Upload{Filename: filepath.Base(source), Size: info.Size(), Reader: f})
			if err != nil {
				var rejection *intake.Rejection
				if errors.As(err, &rejection) {
					return fmt.Errorf("%s rejected: %s", filepath.Base(source), rejection.Reason)
				}
				return err
			}
			fmt.Fprintf(out, "Processing %s as job %s\n", filepath.Base(source), job.ID)

			outcome := rt.orchestrator.Run(signalCtx, dispatch.job)
			if outcome.Err != nil {
				return fmt.Errorf("processing failed during %s: %s", outcome.FailedStage.Label(), pipeline.FailureDetail(outcome.Err))
			}

			final := outcome.OutputPath
			if dest := strings.TrimSpace(outputPath); dest != "" {
				if err := fileutil.CopyFileVerified(outcome.OutputPath, dest); err != nil {
					return fmt.Errorf("copy output: %w", err)
				}
				final = dest
			}
			fmt.Fprintf(out, "Trimmed video written to %s (%s)\n", final, outcome.Duration.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Also copy the trimmed video to this path")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline detail to stderr")
	return cmd
}
