package main

import (
	"errors"
	"fmt"
	"log/slog"

	"speechtrim/internal/config"
	"speechtrim/internal/jobs"
	"speechtrim/internal/media/ffmpeg"
	"speechtrim/internal/pipeline"
	"speechtrim/internal/speech"
)

// runtime bundles what is needed to actually process jobs.
type runtime struct {
	store        *jobs.Store
	model        *speech.Model
	orchestrator *pipeline.Orchestrator
}

func openRuntime(cfg *config.Config, logger *slog.Logger, opts ...pipeline.Option) (*runtime, error) {
	model, err := speech.LoadModel(cfg)
	if err != nil {
		return nil, fmt.Errorf("load speech model: %w", err)
	}
	store, err := jobs.Open(cfg)
	if err != nil {
		_ = model.Close()
		return nil, fmt.Errorf("open job store: %w", err)
	}
	media := ffmpeg.New(cfg.FFmpegBinary())
	detector := speech.NewDetector(model)
	return &runtime{
		store:        store,
		model:        model,
		orchestrator: pipeline.New(cfg, store, media, detector, logger, opts...),
	}, nil
}

func (r *runtime) Close() error {
	return errors.Join(r.model.Close(), r.store.Close())
}
