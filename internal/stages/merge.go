package stages

import (
	"context"
	"log/slog"
	"strings"

	"loom/internal/artifact"
	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/media/ffmpeg"
	"loom/internal/merge"
	"loom/internal/project"
	"loom/internal/queue"
	"loom/internal/render"
	"loom/internal/services"
)

// MergeStage concatenates a unit's rendered clips into its chapter video
// and, where configured, composites the end-card overlay.
type MergeStage struct {
	cfg    *config.Config
	layout project.ProjectLayout
	engine ffmpeg.Engine
	probe  render.Prober
	shorts bool
	logger *slog.Logger

	chapter project.Layout
	scenes  []project.Scene
}

func NewMergeStage(cfg *config.Config, layout project.ProjectLayout, engine ffmpeg.Engine, probe render.Prober, shorts bool) *MergeStage {
	return &MergeStage{
		cfg:    cfg,
		layout: layout,
		engine: engine,
		probe:  probe,
		shorts: shorts,
		logger: logging.NewNop(),
	}
}

func (s *MergeStage) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

func (s *MergeStage) Prepare(ctx context.Context, unit *queue.Unit) error {
	s.chapter = s.layout.ChapterDir(unit.Dir())
	script, err := project.LoadScript(s.chapter.ScriptFile())
	if err != nil {
		return services.Wrap(services.ErrValidation, "merge", "load script", "", err)
	}
	s.scenes = script.Scenes
	return nil
}

func (s *MergeStage) Execute(ctx context.Context, unit *queue.Unit) error {
	store := artifact.NewDirStore(s.chapter, s.shorts)

	var endCard *merge.EndCard
	if strings.TrimSpace(s.cfg.Paths.EndCardAsset) != "" {
		endCard = merge.NewEndCard(s.cfg.Paths.EndCardAsset, s.engine, s.probe, s.logger)
	}

	merger := merge.New(s.chapter, store, s.engine, s.shorts,
		merge.Options{AudioBitrate: s.cfg.Media.AudioBitrate}, endCard, s.logger)

	output, err := merger.Merge(ctx, s.scenes, s.withEndCard(unit))
	if err != nil {
		return err
	}
	unit.FinalFile = output
	return nil
}

// withEndCard reports whether this unit's merged output gets the call-to-
// action overlay: shorts always, plus the introduction chapter of a full
// project. Regular chapters end mid-story and stay clean.
func (s *MergeStage) withEndCard(unit *queue.Unit) bool {
	if s.shorts {
		return true
	}
	return unit.IsIntro()
}
