// Package stages implements the pipeline stage handlers the CLI drives
// through the stage executor: clip rendering, chapter merging, and
// derived-chapter assembly.
package stages

import (
	"context"
	"fmt"
	"log/slog"

	"loom/internal/artifact"
	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/media/ffmpeg"
	"loom/internal/project"
	"loom/internal/queue"
	"loom/internal/render"
	"loom/internal/services"
)

// RenderStage renders every scene of one unit into clips.
type RenderStage struct {
	cfg    *config.Config
	layout project.ProjectLayout
	engine ffmpeg.Engine
	probe  render.Prober
	shorts bool
	logger *slog.Logger

	chapter project.Layout
	scenes  []project.Scene
}

func NewRenderStage(cfg *config.Config, layout project.ProjectLayout, engine ffmpeg.Engine, probe render.Prober, shorts bool) *RenderStage {
	return &RenderStage{
		cfg:    cfg,
		layout: layout,
		engine: engine,
		probe:  probe,
		shorts: shorts,
		logger: logging.NewNop(),
	}
}

func (s *RenderStage) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Prepare loads the unit's script and adopts any user-dropped footage
// into the canonical scene naming before presence checks run.
func (s *RenderStage) Prepare(ctx context.Context, unit *queue.Unit) error {
	s.chapter = s.layout.ChapterDir(unit.Dir())
	if err := s.chapter.EnsureDirs(); err != nil {
		return services.Wrap(services.ErrTransient, "render", "prepare directories", "", err)
	}

	script, err := project.LoadScript(s.chapter.ScriptFile())
	if err != nil {
		return services.Wrap(services.ErrValidation, "render", "load script", "", err)
	}
	s.scenes = script.Scenes

	adopted, err := project.NormalizeSceneFiles(s.chapter.ScenesDir(s.shorts), s.logger)
	if err != nil {
		return services.Wrap(services.ErrTransient, "render", "normalize scene files", "", err)
	}
	if adopted > 0 {
		s.logger.Info("adopted dropped footage", logging.Int("files", adopted))
	}
	return nil
}

// Execute renders all scenes. Any missing input or failed scene fails the
// stage; partial progress is preserved on disk for the next attempt.
func (s *RenderStage) Execute(ctx context.Context, unit *queue.Unit) error {
	store := artifact.NewDirStore(s.chapter, s.shorts)
	renderer := render.New(store, s.engine, s.probe, render.Options{
		FrameRate:    s.cfg.Media.FrameRate,
		VideoCRF:     s.cfg.Media.VideoCRF,
		VideoPreset:  s.cfg.Media.VideoPreset,
		AudioBitrate: s.cfg.Media.AudioBitrate,
		Format:       project.FormatFor(s.shorts),
	}, s.logger)

	summary, err := renderer.RenderAll(ctx, s.scenes)
	if err != nil {
		return err
	}
	if !summary.OK() {
		return services.Wrap(services.ErrExternalTool, "render", "finish chapter",
			fmt.Sprintf("%d of %d scenes failed: %v", len(summary.Failed), summary.Total, summary.FailedScenes()), nil)
	}
	return nil
}
