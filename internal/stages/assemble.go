package stages

import (
	"context"
	"log/slog"

	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/match"
	"loom/internal/project"
	"loom/internal/queue"
	"loom/internal/services"
)

// AssembleStage fills a derived unit's scene directory with footage
// matched from the rest of the project.
type AssembleStage struct {
	cfg    *config.Config
	layout project.ProjectLayout
	store  *queue.Store
	logger *slog.Logger
}

func NewAssembleStage(cfg *config.Config, layout project.ProjectLayout, store *queue.Store) *AssembleStage {
	return &AssembleStage{
		cfg:    cfg,
		layout: layout,
		store:  store,
		logger: logging.NewNop(),
	}
}

func (s *AssembleStage) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Prepare verifies the target script parses before any footage moves.
func (s *AssembleStage) Prepare(ctx context.Context, unit *queue.Unit) error {
	chapter := s.layout.ChapterDir(unit.Dir())
	if _, err := project.LoadScript(chapter.ScriptFile()); err != nil {
		return services.Wrap(services.ErrValidation, "assemble", "load script", "", err)
	}
	return nil
}

func (s *AssembleStage) Execute(ctx context.Context, unit *queue.Unit) error {
	sources, err := s.store.List(ctx, unit.ProjectDir)
	if err != nil {
		return services.Wrap(services.ErrTransient, "assemble", "list units", "", err)
	}

	weights := match.Weights{
		Text:         s.cfg.Match.TextWeight,
		Character:    s.cfg.Match.CharacterWeight,
		Keyword:      s.cfg.Match.KeywordWeight,
		ReusePenalty: s.cfg.Match.ReusePenalty,
	}
	assembler := match.NewAssembler(s.layout, weights, s.logger)

	summary, err := assembler.Assemble(ctx, unit, sources)
	if err != nil {
		return err
	}
	if summary.Unassigned > 0 {
		// Gaps are the operator's call; the audit file names them.
		s.logger.Warn("assembly left slots without footage",
			logging.Int("unassigned", summary.Unassigned),
			logging.Int("total", summary.Total))
	}
	return nil
}
