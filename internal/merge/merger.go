// Package merge concatenates rendered clips into chapter videos and
// chapter videos into the project master. Merges are all-or-nothing: a
// failure leaves no partial output behind.
package merge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"loom/internal/artifact"
	"loom/internal/logging"
	"loom/internal/media/ffmpeg"
	"loom/internal/project"
	"loom/internal/services"
)

// Options carries encoding parameters for the normalization pass.
type Options struct {
	AudioBitrate string
}

// Merger builds one chapter video from that chapter's rendered clips.
type Merger struct {
	layout  project.Layout
	store   artifact.Store
	engine  ffmpeg.Engine
	shorts  bool
	opts    Options
	endCard *EndCard
	logger  *slog.Logger
}

// New constructs a chapter merger. endCard may be nil when no end-card
// asset is configured.
func New(layout project.Layout, store artifact.Store, engine ffmpeg.Engine, shorts bool, opts Options, endCard *EndCard, logger *slog.Logger) *Merger {
	if strings.TrimSpace(opts.AudioBitrate) == "" {
		opts.AudioBitrate = "192k"
	}
	return &Merger{
		layout:  layout,
		store:   store,
		engine:  engine,
		shorts:  shorts,
		opts:    opts,
		endCard: endCard,
		logger:  logging.NewComponentLogger(logger, "merge"),
	}
}

// Merge concatenates the clips for every scene into the chapter video.
// Every scene must have a valid clip; a single missing clip blocks the
// chapter rather than silently dropping a scene. withEndCard additionally
// runs the end-card overlay on the merged output; overlay failures are
// logged and swallowed, never fatal.
func (m *Merger) Merge(ctx context.Context, scenes []project.Scene, withEndCard bool) (string, error) {
	if len(scenes) == 0 {
		return "", services.Wrap(services.ErrValidation, "merge", "check script", "no scenes to merge", nil)
	}

	ids := make([]int, 0, len(scenes))
	var missing []int
	for _, scene := range scenes {
		key := artifact.Key{Kind: artifact.Clip, Scene: scene.ID}
		if m.store.Exists(key) {
			ids = append(ids, scene.ID)
		} else {
			missing = append(missing, scene.ID)
		}
	}
	if len(missing) > 0 {
		sort.Ints(missing)
		return "", services.Wrap(services.ErrNotFound, "merge", "gather clips",
			fmt.Sprintf("missing clips for scenes %v", missing), nil)
	}
	sort.Ints(ids)

	// Clips rendered under different audio policies carry heterogeneous
	// audio formats; raw stream-copy concat of mismatched audio corrupts
	// the output, so every clip's audio is first re-encoded to 48kHz
	// stereo in an ephemeral working area.
	normDir := filepath.Join(m.layout.ClipsDir(m.shorts), "_normalized")
	if err := os.MkdirAll(normDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrTransient, "merge", "create working area", "", err)
	}

	output := m.layout.ChapterVideo(m.shorts)
	if err := m.run(ctx, ids, normDir, output); err != nil {
		// All-or-nothing: leave neither the working area nor a
		// partial output behind.
		_ = os.RemoveAll(normDir)
		_ = os.Remove(output)
		return "", err
	}
	_ = os.RemoveAll(normDir)

	m.logger.Info("chapter merged",
		logging.Int("clips", len(ids)),
		logging.String("output", output))

	if withEndCard && m.endCard != nil {
		if err := m.endCard.Apply(ctx, output, project.FormatFor(m.shorts).IsPortrait()); err != nil {
			m.logger.Warn("end-card overlay failed, keeping merged video",
				logging.Error(err))
		}
	}
	return output, nil
}

func (m *Merger) run(ctx context.Context, ids []int, normDir, output string) error {
	for _, id := range ids {
		src := m.store.Path(artifact.Key{Kind: artifact.Clip, Scene: id})
		dst := filepath.Join(normDir, fmt.Sprintf("clip_%03d.mp4", id))
		req := ffmpeg.Request{
			Inputs: []ffmpeg.Input{{Path: src}},
			Args: []string{
				"-c:v", "copy",
				"-af", "aresample=48000,aformat=sample_fmts=fltp:channel_layouts=stereo",
				"-c:a", "aac", "-b:a", m.opts.AudioBitrate,
			},
			Output: dst,
		}
		if err := m.engine.Run(ctx, req); err != nil {
			return services.Wrap(services.ErrExternalTool, "merge", "normalize audio",
				fmt.Sprintf("clip %d", id), err)
		}
	}

	listPath := filepath.Join(normDir, "concat_list.txt")
	var list strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&list, "file 'clip_%03d.mp4'\n", id)
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "merge", "write concat list", "", err)
	}

	req := ffmpeg.Request{
		Inputs: []ffmpeg.Input{{Path: listPath, Args: []string{"-f", "concat", "-safe", "0"}}},
		Args:   []string{"-c", "copy"},
		Output: output,
	}
	if err := m.engine.Run(ctx, req); err != nil {
		return services.Wrap(services.ErrExternalTool, "merge", "concatenate", "", err)
	}
	return nil
}
