package merge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"loom/internal/logging"
	"loom/internal/media/ffmpeg"
	"loom/internal/render"
	"loom/internal/services"
)

// endCardWindow is how long the overlay stays on screen at the tail of
// the video.
const endCardWindow = 5.0

// EndCard composites a green-screen call-to-action clip over the last
// seconds of a merged video.
type EndCard struct {
	assetPath string
	engine    ffmpeg.Engine
	probe     render.Prober
	logger    *slog.Logger
}

// NewEndCard constructs the overlay compositor. assetPath may be empty,
// in which case Apply is a no-op.
func NewEndCard(assetPath string, engine ffmpeg.Engine, probe render.Prober, logger *slog.Logger) *EndCard {
	return &EndCard{
		assetPath: strings.TrimSpace(assetPath),
		engine:    engine,
		probe:     probe,
		logger:    logging.NewComponentLogger(logger, "endcard"),
	}
}

// Apply overlays the end-card onto videoPath in place. The asset is keyed
// against pure green, scaled for the frame orientation, looped to cover
// the window, and enabled only over the last seconds. A missing asset or
// an unreadable video duration skips the overlay; the original audio is
// stream-copied untouched.
func (e *EndCard) Apply(ctx context.Context, videoPath string, portrait bool) error {
	if e.assetPath == "" {
		return nil
	}
	if _, err := os.Stat(e.assetPath); err != nil {
		e.logger.Warn("end-card asset not found, skipping",
			logging.String("asset", e.assetPath))
		return nil
	}

	duration := e.probe.Duration(ctx, videoPath)
	if duration <= 0 {
		return services.Wrap(services.ErrValidation, "endcard", "probe video",
			"merged video has no readable duration", nil)
	}
	start := duration - endCardWindow
	if start < 0 {
		start = 0
	}

	// Portrait frames get a wider card raised clear of captions and
	// player UI; landscape keeps it smaller, just above the captions.
	scaleWidth := 640
	yPos := "H-h-140"
	if portrait {
		scaleWidth = 860
		yPos = "H-h-550"
	}

	graph := fmt.Sprintf(
		"[1:v]scale=%d:-1[card];"+
			"[card]chromakey=0x00FF00:0.33:0.0[keyed];"+
			"[keyed]setpts=PTS-STARTPTS+%s/TB[timed];"+
			"[0:v][timed]overlay=(W-w)/2:%s:enable='between(t,%s,%s)':shortest=1",
		scaleWidth, formatTime(start), yPos, formatTime(start), formatTime(duration))

	tempPath := strings.TrimSuffix(videoPath, ".mp4") + "_endcard.mp4"
	req := ffmpeg.Request{
		Inputs: []ffmpeg.Input{
			{Path: videoPath},
			{Path: e.assetPath, Args: []string{"-stream_loop", "-1"}},
		},
		FilterComplex: graph,
		Args:          []string{"-c:a", "copy", "-shortest"},
		Output:        tempPath,
	}
	if err := e.engine.Run(ctx, req); err != nil {
		_ = os.Remove(tempPath)
		return services.Wrap(services.ErrExternalTool, "endcard", "overlay", "", err)
	}

	if err := os.Rename(tempPath, videoPath); err != nil {
		_ = os.Remove(tempPath)
		return services.Wrap(services.ErrTransient, "endcard", "replace video", "", err)
	}
	e.logger.Info("end-card applied", logging.String("video", videoPath))
	return nil
}

func formatTime(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", v), "0"), ".")
}
