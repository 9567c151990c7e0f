package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"speechtrim/internal/fileutil"
	"speechtrim/internal/jobs"
	"speechtrim/internal/logging"
	"speechtrim/internal/media/ffmpeg"
	"speechtrim/internal/segments"
	"speechtrim/internal/services"
	"speechtrim/internal/trimplan"
)

type runState struct {
	job       *jobs.Job
	workspace string
	output    string
	logger    *slog.Logger
	current   jobs.Stage

	audioPath    string
	enhancedPath string
	detected     []segments.Segment
	kept         []segments.Segment
	keptSeconds  float64
	published    bool
}

type step struct {
	stage    jobs.Stage
	progress int
	run      func(ctx context.Context, run *runState) error
}

func (o *Orchestrator) steps() []step {
	return []step{
		{jobs.StageExtractingAudio, 10, o.extractAudio},
		{jobs.StageEnhancingAudio, 25, o.enhanceAudio},
		{jobs.StageDetectingSpeech, 50, o.detectSpeech},
		{jobs.StageFilteringSegments, 75, o.filterSegments},
		{jobs.StageTrimmingVideo, 90, o.trimVideo},
	}
}

func ioFailure(ctx context.Context, operation, message string, err error) error {
	stage, _ := services.StageFromContext(ctx)
	return services.NewError(services.KindIOFailure, stage, operation, message, err)
}

func (o *Orchestrator) extractAudio(ctx context.Context, run *runState) error {
	if _, err := os.Stat(run.job.SourcePath); err != nil {
		return ioFailure(ctx, "open_source", "source video unavailable", err)
	}
	if err := os.MkdirAll(run.workspace, 0o755); err != nil {
		return ioFailure(ctx, "workspace", "create job workspace", err)
	}
	run.audioPath = filepath.Join(run.workspace, "audio.wav")
	_, err := o.media.Run(ctx, ffmpeg.ExtractAudio{
		Source:     run.job.SourcePath,
		Dest:       run.audioPath,
		SampleRate: o.cfg.FFmpeg.SampleRate,
	})
	return err
}

func (o *Orchestrator) enhanceAudio(ctx context.Context, run *runState) error {
	run.enhancedPath = filepath.Join(run.workspace, "enhanced.wav")
	_, err := o.media.Run(ctx, ffmpeg.EnhanceAudio{
		Source: run.audioPath,
		Dest:   run.enhancedPath,
		Filter: o.cfg.FFmpeg.EnhanceFilter,
	})
	return err
}

func (o *Orchestrator) detectSpeech(ctx context.Context, run *runState) error {
	detected, err := o.detector.Transcribe(ctx, run.enhancedPath, run.workspace)
	if err != nil {
		return err
	}
	run.detected = detected
	logging.WithContext(ctx, o.logger).Debug("speech detected", logging.Int("segments", len(detected)))
	return nil
}

func (o *Orchestrator) filterSegments(ctx context.Context, run *runState) error {
	run.kept = segments.Filter(run.detected, o.fillers)
	if len(run.kept) == 0 {
		stage, _ := services.StageFromContext(ctx)
		return services.NewError(services.KindEmptySegmentsFailure, stage, "filter_segments", "no valid segments", nil)
	}
	logging.WithContext(ctx, o.logger).Debug("segments filtered",
		logging.Int("segments_detected", len(run.detected)),
		logging.Int("segments_kept", len(run.kept)),
	)
	return nil
}

func (o *Orchestrator) trimVideo(ctx context.Context, run *runState) error {
	plan, err := trimplan.Build(run.kept)
	if err != nil {
		return ioFailure(ctx, "build_plan", "build trim plan", err)
	}
	run.keptSeconds = plan.Duration()

	rendered := filepath.Join(run.workspace, "trimmed."+o.cfg.FFmpeg.OutputFormat)
	if _, err := o.media.Run(ctx, ffmpeg.TrimConcat{Source: run.job.SourcePath, Dest: rendered, Plan: plan}); err != nil {
		return err
	}
	if err := fileutil.MoveFile(rendered, run.output); err != nil {
		return ioFailure(ctx, "publish_output", "move trimmed video to output dir", err)
	}
	run.published = true
	return nil
}
