package match

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"loom/internal/artifact"
	"loom/internal/fileutil"
	"loom/internal/logging"
	"loom/internal/project"
	"loom/internal/queue"
)

// Assembler populates a chapter's scene directory by reusing footage
// already rendered for other chapters. It is how introduction and recap
// chapters get visuals without fresh renders.
type Assembler struct {
	layout  project.ProjectLayout
	weights Weights
	logger  *slog.Logger
}

func NewAssembler(layout project.ProjectLayout, weights Weights, logger *slog.Logger) *Assembler {
	return &Assembler{
		layout:  layout,
		weights: weights,
		logger:  logging.NewComponentLogger(logger, "assemble"),
	}
}

// Summary counts the outcome of one assembly run.
type Summary struct {
	Total      int
	Manual     int
	Auto       int
	Unassigned int
}

// Assemble matches every scene of the target unit's script against the
// footage of the source units, copies the chosen videos into the target's
// scene directory, and writes the assignment audit next to the project.
// Slots that match nothing are reported in the summary, not failed: the
// operator decides whether gaps are acceptable.
func (a *Assembler) Assemble(ctx context.Context, target *queue.Unit, sources []*queue.Unit) (Summary, error) {
	targetLayout := a.layout.ChapterDir(target.Dir())
	script, err := project.LoadScript(targetLayout.ScriptFile())
	if err != nil {
		return Summary{}, fmt.Errorf("load target script: %w", err)
	}

	slots := make([]Slot, 0, len(script.Scenes))
	for _, scene := range script.Scenes {
		slots = append(slots, Slot{
			ID:         scene.ID,
			Narration:  scene.Narration,
			Characters: scene.Characters,
			Prompt:     scene.Prompt,
		})
	}

	candidates, sourcePaths := a.buildCorpus(target, sources)
	manual, err := a.loadManualMap()
	if err != nil {
		return Summary{}, err
	}

	// Manual overrides resolve straight against disk, not through the
	// auto-match corpus: a curator may pin footage the matcher would
	// never consider, such as an outro's scenes.
	unitDirs := make(map[string]project.Layout, len(sources))
	for _, unit := range sources {
		unitDirs[unit.Slug] = a.layout.ChapterDir(unit.Dir())
	}
	resolve := func(unit string, sceneID int) (string, bool) {
		chapter, ok := unitDirs[unit]
		if !ok {
			return "", false
		}
		path := chapter.SceneVideo(sceneID, false)
		if !fileutil.FileLargerThan(path, artifact.SourceVideo.MinSize()) {
			return "", false
		}
		return path, true
	}
	matcher := NewMatcher(a.weights, resolve, a.logger)
	records := matcher.Assign(slots, candidates, manual)

	if err := targetLayout.EnsureDirs(); err != nil {
		return Summary{}, err
	}

	summary := Summary{Total: len(records)}
	for _, record := range records {
		switch record.Method {
		case MethodManual:
			summary.Manual++
		case MethodAuto:
			summary.Auto++
		default:
			summary.Unassigned++
			continue
		}

		src, ok := sourcePaths[sourceKey{record.SourceUnit, record.SourceSceneID}]
		if !ok {
			src, ok = resolve(record.SourceUnit, record.SourceSceneID)
		}
		if !ok {
			return summary, fmt.Errorf("assigned source %s scene %d has no path", record.SourceUnit, record.SourceSceneID)
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		dst := targetLayout.SceneVideo(record.SlotID, false)
		if err := fileutil.CopyFileVerified(src, dst); err != nil {
			return summary, fmt.Errorf("copy scene %d from %s: %w", record.SlotID, record.SourceUnit, err)
		}
	}

	if err := a.writeAuditMap(records); err != nil {
		return summary, err
	}

	a.logger.Info("assembly complete",
		logging.String("unit", target.Slug),
		logging.Int("total", summary.Total),
		logging.Int("manual", summary.Manual),
		logging.Int("auto", summary.Auto),
		logging.Int("unassigned", summary.Unassigned))
	return summary, nil
}

// buildCorpus collects every reusable scene across the source units. The
// target itself and outro chapters never contribute: the outro is branded
// filler, and self-matching would be circular.
func (a *Assembler) buildCorpus(target *queue.Unit, sources []*queue.Unit) ([]Candidate, map[sourceKey]string) {
	var candidates []Candidate
	paths := make(map[sourceKey]string)

	ordered := make([]*queue.Unit, len(sources))
	copy(ordered, sources)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ChapterIndex < ordered[j].ChapterIndex
	})

	for _, unit := range ordered {
		if unit.Slug == target.Slug || unit.IsOutro() {
			continue
		}
		chapter := a.layout.ChapterDir(unit.Dir())
		script, err := project.LoadScript(chapter.ScriptFile())
		if err != nil {
			a.logger.Warn("skipping source without readable script",
				logging.String("unit", unit.Slug),
				logging.Error(err))
			continue
		}
		for _, scene := range script.Scenes {
			path := chapter.SceneVideo(scene.ID, false)
			if !fileutil.FileLargerThan(path, artifact.SourceVideo.MinSize()) {
				continue
			}
			candidates = append(candidates, Candidate{
				Unit:       unit.Slug,
				SceneID:    scene.ID,
				Narration:  scene.Narration,
				Characters: scene.Characters,
				Prompt:     scene.Prompt,
				Path:       path,
			})
			paths[sourceKey{unit.Slug, scene.ID}] = path
		}
	}
	return candidates, paths
}

// loadManualMap reads the curated overrides if the file exists. A missing
// file means no overrides; a malformed one is an error, because silently
// ignoring a curator's file would be worse than stopping.
func (a *Assembler) loadManualMap() ([]ManualEntry, error) {
	data, err := os.ReadFile(a.layout.ManualMapFile())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manual map: %w", err)
	}

	var entries []ManualEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse manual map %s: %w", a.layout.ManualMapFile(), err)
	}
	a.logger.Info("manual map loaded", logging.Int("entries", len(entries)))
	return entries, nil
}

func (a *Assembler) writeAuditMap(records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(a.layout.AssemblyMapFile(), data, 0o644); err != nil {
		return fmt.Errorf("write assembly map: %w", err)
	}
	return nil
}
