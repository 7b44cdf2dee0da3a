package merge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"loom/internal/artifact"
	"loom/internal/logging"
	"loom/internal/media/ffmpeg"
	"loom/internal/project"
	"loom/internal/queue"
	"loom/internal/render"
	"loom/internal/services"
)

// ProjectMerger concatenates finished chapter videos into the master
// video for a whole project.
type ProjectMerger struct {
	layout project.ProjectLayout
	store  *queue.Store
	engine ffmpeg.Engine
	probe  render.Prober
	logger *slog.Logger
}

// NewProjectMerger constructs a project-level merger.
func NewProjectMerger(layout project.ProjectLayout, store *queue.Store, engine ffmpeg.Engine, probe render.Prober, logger *slog.Logger) *ProjectMerger {
	return &ProjectMerger{
		layout: layout,
		store:  store,
		engine: engine,
		probe:  probe,
		logger: logging.NewComponentLogger(logger, "merge"),
	}
}

// chapterVideo returns the path of a unit's chapter video when valid.
func (p *ProjectMerger) chapterVideo(unit *queue.Unit) (string, bool) {
	path := p.layout.ChapterDir(unit.Dir()).ChapterVideo(false)
	info, err := os.Stat(path)
	if err != nil || info.Size() <= artifact.ChapterVideo.MinSize() {
		return path, false
	}
	return path, true
}

// Merge concatenates every available chapter video, in unit order, into
// the master video. Chapters without a video are skipped with a warning;
// at least one is required. Units in status rendered advance to merged
// after a successful master build.
func (p *ProjectMerger) Merge(ctx context.Context, units []*queue.Unit) (string, error) {
	var videos []string
	for _, unit := range units {
		path, ok := p.chapterVideo(unit)
		if !ok {
			p.logger.Warn("chapter video missing, skipping",
				logging.String("slug", unit.Slug),
				logging.String("path", path))
			continue
		}
		videos = append(videos, path)
	}
	if len(videos) == 0 {
		return "", services.Wrap(services.ErrNotFound, "merge", "gather chapters",
			"no chapter videos found to merge", nil)
	}

	if err := os.MkdirAll(p.layout.FinalDir(), 0o755); err != nil {
		return "", services.Wrap(services.ErrTransient, "merge", "create final dir", "", err)
	}

	listPath := filepath.Join(p.layout.Root, "concat_chapters.txt")
	var list strings.Builder
	for _, video := range videos {
		fmt.Fprintf(&list, "file '%s'\n", escapeConcatPath(video))
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return "", services.Wrap(services.ErrTransient, "merge", "write concat list", "", err)
	}

	output := p.layout.MasterVideo()
	req := ffmpeg.Request{
		Inputs: []ffmpeg.Input{{Path: listPath, Args: []string{"-f", "concat", "-safe", "0"}}},
		Args:   []string{"-c", "copy"},
		Output: output,
	}
	if err := p.engine.Run(ctx, req); err != nil {
		_ = os.Remove(output)
		_ = os.Remove(listPath)
		return "", services.Wrap(services.ErrExternalTool, "merge", "concatenate chapters", "", err)
	}
	_ = os.Remove(listPath)

	p.logger.Info("master video created",
		logging.Int("chapters", len(videos)),
		logging.String("output", output))

	for _, unit := range units {
		if unit.Status != queue.StatusRendered {
			continue
		}
		unit.Status = queue.StatusMerged
		unit.FinalFile = output
		if err := p.store.Update(ctx, unit); err != nil {
			return output, fmt.Errorf("advance unit %s: %w", unit.Slug, err)
		}
	}
	return output, nil
}

// escapeConcatPath quotes a path for the concat demuxer list format.
// Single quotes cannot be escaped inside a quoted string, so the quote
// has to close, escape the character, and reopen.
func escapeConcatPath(path string) string {
	return strings.ReplaceAll(path, "'", `'\''`)
}

// Timestamp labels the start offset of one chapter inside the master.
type Timestamp struct {
	Title  string
	Offset string
}

// Timestamps computes cumulative MM:SS chapter offsets from the durations
// of the included chapter videos, for use in video descriptions.
func (p *ProjectMerger) Timestamps(ctx context.Context, units []*queue.Unit) []Timestamp {
	var stamps []Timestamp
	cumulative := 0.0
	for _, unit := range units {
		path, ok := p.chapterVideo(unit)
		if !ok {
			continue
		}
		minutes := int(cumulative) / 60
		seconds := int(cumulative) % 60
		title := unit.Title
		if title == "" {
			title = unit.Slug
		}
		stamps = append(stamps, Timestamp{
			Title:  title,
			Offset: fmt.Sprintf("%02d:%02d", minutes, seconds),
		})
		cumulative += p.probe.Duration(ctx, path)
	}
	return stamps
}
