// Package render composes per-scene clips from source video, narration
// audio, and captions according to each scene's audio-priority policy.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"loom/internal/artifact"
	"loom/internal/logging"
	"loom/internal/media/ffmpeg"
	"loom/internal/project"
	"loom/internal/services"
)

// retimeThreshold is the minimum narration speed-up worth applying. Below
// it the audible artifact outweighs the sync gain.
const retimeThreshold = 1.05

// Prober resolves media durations. An unreadable file reports 0.
type Prober interface {
	Duration(ctx context.Context, path string) float64
}

// Options carries encoding parameters shared by every render.
type Options struct {
	FrameRate    int
	VideoCRF     int
	VideoPreset  string
	AudioBitrate string
	Format       project.Format
}

// Renderer builds one clip per scene.
type Renderer struct {
	store  artifact.Store
	engine ffmpeg.Engine
	probe  Prober
	opts   Options
	logger *slog.Logger
}

// New constructs a renderer.
func New(store artifact.Store, engine ffmpeg.Engine, probe Prober, opts Options, logger *slog.Logger) *Renderer {
	return &Renderer{
		store:  store,
		engine: engine,
		probe:  probe,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "render"),
	}
}

// RenderScene produces the clip for one scene. A valid existing clip makes
// this a no-op. Exactly one clip exists per scene: a re-render fully
// replaces the previous output. On failure the intermediate temp file is
// left behind for diagnosis.
func (r *Renderer) RenderScene(ctx context.Context, scene project.Scene) error {
	clipKey := artifact.Key{Kind: artifact.Clip, Scene: scene.ID}
	if r.store.Exists(clipKey) {
		r.logger.Info("clip already rendered", logging.Int(logging.FieldScene, scene.ID))
		return nil
	}

	sourceKey := artifact.Key{Kind: artifact.SourceVideo, Scene: scene.ID}
	if !r.store.Exists(sourceKey) {
		return services.Wrap(services.ErrNotFound, "render", "check source",
			fmt.Sprintf("scene %d source video missing", scene.ID), nil)
	}

	policy := scene.AudioPriority
	narrationKey := artifact.Key{Kind: artifact.Narration, Scene: scene.ID}
	if policy == project.AudioMix && !r.store.Exists(narrationKey) {
		r.logger.Warn("narration missing for mix, falling back to source audio",
			logging.Int(logging.FieldScene, scene.ID))
		policy = project.AudioSource
	}

	clipPath := r.store.Path(clipKey)
	tempPath := strings.TrimSuffix(clipPath, ".mp4") + "_temp.mp4"

	var req ffmpeg.Request
	var err error
	switch policy {
	case project.AudioSource:
		req = r.sourceRequest(sourceKey, tempPath)
	case project.AudioMix:
		req = r.mixRequest(sourceKey, narrationKey, tempPath)
	default:
		req, err = r.narrationRequest(ctx, scene.ID, sourceKey, narrationKey, tempPath)
		if err != nil {
			return err
		}
	}

	r.logger.Info("rendering scene",
		logging.Int(logging.FieldScene, scene.ID),
		logging.String("policy", string(policy)))

	if err := r.engine.Run(ctx, req); err != nil {
		return services.Wrap(services.ErrExternalTool, "render", "compose",
			fmt.Sprintf("scene %d", scene.ID), err)
	}

	return r.finalize(ctx, scene.ID, tempPath, clipPath)
}

// sourceRequest keeps the video's own audio track; narration is discarded.
func (r *Renderer) sourceRequest(sourceKey artifact.Key, output string) ffmpeg.Request {
	return ffmpeg.Request{
		Inputs:        []ffmpeg.Input{{Path: r.store.Path(sourceKey)}},
		FilterComplex: fmt.Sprintf("[0:v]%s[v]", visualChain(r.opts.FrameRate, r.opts.Format)),
		Maps:          []string{"[v]", "0:a?"},
		Args:          append(r.codecArgs(), "-pix_fmt", "yuv420p"),
		Output:        output,
	}
}

// mixRequest blends source audio (0.8) with narration (0.2).
func (r *Renderer) mixRequest(sourceKey, narrationKey artifact.Key, output string) ffmpeg.Request {
	graph := fmt.Sprintf("[0:v]%s[v];", visualChain(r.opts.FrameRate, r.opts.Format)) +
		"[0:a]volume=0.8[src_a];" +
		"[1:a]volume=0.2[nar_a];" +
		"[src_a][nar_a]amix=inputs=2:duration=longest[a]"
	return ffmpeg.Request{
		Inputs: []ffmpeg.Input{
			{Path: r.store.Path(sourceKey)},
			{Path: r.store.Path(narrationKey)},
		},
		FilterComplex: graph,
		Maps:          []string{"[v]", "[a]"},
		Args:          append(r.codecArgs(), "-shortest", "-pix_fmt", "yuv420p"),
		Output:        output,
	}
}

// narrationRequest makes the narration track authoritative. When the video
// runs shorter than the narration, the narration is time-compressed to fit
// and the clip is truncated to the video duration; negligible stretches
// are left alone.
func (r *Renderer) narrationRequest(ctx context.Context, sceneID int, sourceKey, narrationKey artifact.Key, output string) (ffmpeg.Request, error) {
	if !r.store.Exists(narrationKey) {
		return ffmpeg.Request{}, services.Wrap(services.ErrNotFound, "render", "check narration",
			fmt.Sprintf("scene %d narration audio missing", sceneID), nil)
	}

	videoPath := r.store.Path(sourceKey)
	narrationPath := r.store.Path(narrationKey)

	audioDuration := r.probe.Duration(ctx, narrationPath)
	videoDuration := r.probe.Duration(ctx, videoPath)
	if audioDuration <= 0 {
		return ffmpeg.Request{}, services.Wrap(services.ErrValidation, "render", "probe narration",
			fmt.Sprintf("scene %d narration has no readable duration", sceneID), nil)
	}

	audioFilter := ""
	audioMap := "1:a"
	clipDuration := audioDuration

	if videoDuration > 0 && videoDuration < audioDuration {
		speed := audioDuration / videoDuration
		if speed > retimeThreshold {
			audioFilter = fmt.Sprintf("[1:a]atempo=%s[nar_a];", formatSeconds(speed))
			audioMap = "[nar_a]"
			clipDuration = videoDuration
			r.logger.Info("retiming narration",
				logging.Int(logging.FieldScene, sceneID),
				logging.Float64("speed", speed))
		}
	}

	graph := audioFilter + fmt.Sprintf("[0:v]%s[v]", visualChain(r.opts.FrameRate, r.opts.Format))
	args := append(r.codecArgs(),
		"-t", formatSeconds(clipDuration),
		"-shortest",
		"-pix_fmt", "yuv420p")

	return ffmpeg.Request{
		Inputs: []ffmpeg.Input{
			{Path: videoPath},
			{Path: narrationPath},
		},
		FilterComplex: graph,
		Maps:          []string{"[v]", audioMap},
		Args:          args,
		Output:        output,
	}, nil
}

// finalize burns captions over the temp render when a valid caption exists,
// otherwise promotes the temp file as-is. The caption pass re-encodes video
// only; audio is stream-copied.
func (r *Renderer) finalize(ctx context.Context, sceneID int, tempPath, clipPath string) error {
	captionKey := artifact.Key{Kind: artifact.Caption, Scene: sceneID}
	if !r.store.Exists(captionKey) {
		if err := os.Rename(tempPath, clipPath); err != nil {
			return services.Wrap(services.ErrTransient, "render", "promote clip",
				fmt.Sprintf("scene %d", sceneID), err)
		}
		return nil
	}

	req := ffmpeg.Request{
		Inputs:      []ffmpeg.Input{{Path: tempPath}},
		VideoFilter: captionFilter(r.store.Path(captionKey)),
		Args: []string{
			"-c:v", "libx264",
			"-preset", r.opts.VideoPreset,
			"-crf", strconv.Itoa(r.opts.VideoCRF),
			"-c:a", "copy",
		},
		Output: clipPath,
	}
	if err := r.engine.Run(ctx, req); err != nil {
		return services.Wrap(services.ErrExternalTool, "render", "burn captions",
			fmt.Sprintf("scene %d", sceneID), err)
	}
	_ = os.Remove(tempPath)
	return nil
}

func (r *Renderer) codecArgs() []string {
	return []string{
		"-c:v", "libx264",
		"-preset", r.opts.VideoPreset,
		"-crf", strconv.Itoa(r.opts.VideoCRF),
		"-r", strconv.Itoa(r.opts.FrameRate),
		"-fps_mode", "cfr",
		"-c:a", "aac",
		"-b:a", r.opts.AudioBitrate,
	}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Summary aggregates per-scene render outcomes for one chapter.
type Summary struct {
	Total    int
	Rendered int
	Failed   map[int]error
}

// OK reports whether every scene rendered.
func (s Summary) OK() bool {
	return s.Total > 0 && s.Rendered == s.Total
}

// FailedScenes lists failed scene ids in order.
func (s Summary) FailedScenes() []int {
	ids := make([]int, 0, len(s.Failed))
	for id := range s.Failed {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// RenderAll renders every scene in the script. All source videos must be
// present before any scene renders; a missing input blocks the chapter
// rather than producing a partial set silently. Individual scene failures
// are collected, not fatal to the batch.
func (r *Renderer) RenderAll(ctx context.Context, scenes []project.Scene) (Summary, error) {
	summary := Summary{Total: len(scenes), Failed: map[int]error{}}
	if len(scenes) == 0 {
		return summary, services.Wrap(services.ErrValidation, "render", "check script", "no scenes to render", nil)
	}

	var missing []int
	for _, scene := range scenes {
		key := artifact.Key{Kind: artifact.SourceVideo, Scene: scene.ID}
		if !r.store.Exists(key) {
			missing = append(missing, scene.ID)
		}
	}
	if len(missing) > 0 {
		return summary, services.Wrap(services.ErrNotFound, "render", "check sources",
			fmt.Sprintf("missing source videos for scenes %v", missing), nil)
	}

	for _, scene := range scenes {
		if err := r.RenderScene(ctx, scene); err != nil {
			r.logger.Error("scene render failed",
				logging.Int(logging.FieldScene, scene.ID),
				logging.Error(err))
			summary.Failed[scene.ID] = err
			continue
		}
		summary.Rendered++
	}

	r.logger.Info("render pass complete",
		logging.Int("total", summary.Total),
		logging.Int("rendered", summary.Rendered),
		logging.Int("failed", len(summary.Failed)))
	return summary, nil
}
