package config

import (
	"fmt"
	"strings"
)

// Validate checks configuration invariants. It does not touch the
// filesystem; missing directories are created lazily by EnsureDirectories.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		problems = append(problems, "paths.library_dir must be set")
	}
	if c.Media.FrameRate <= 0 {
		problems = append(problems, fmt.Sprintf("media.frame_rate must be positive, got %d", c.Media.FrameRate))
	}
	if c.Media.VideoCRF < 0 || c.Media.VideoCRF > 51 {
		problems = append(problems, fmt.Sprintf("media.video_crf must be between 0 and 51, got %d", c.Media.VideoCRF))
	}
	if strings.TrimSpace(c.Media.VideoPreset) == "" {
		problems = append(problems, "media.video_preset must be set")
	}
	if strings.TrimSpace(c.Media.AudioBitrate) == "" {
		problems = append(problems, "media.audio_bitrate must be set")
	}

	for name, weight := range map[string]float64{
		"match.text_weight":      c.Match.TextWeight,
		"match.character_weight": c.Match.CharacterWeight,
		"match.keyword_weight":   c.Match.KeywordWeight,
	} {
		if weight < 0 || weight > 1 {
			problems = append(problems, fmt.Sprintf("%s must be between 0 and 1, got %g", name, weight))
		}
	}
	if c.Match.ReusePenalty < 0 {
		problems = append(problems, fmt.Sprintf("match.reuse_penalty must not be negative, got %g", c.Match.ReusePenalty))
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format must be console or json, got %q", c.Logging.Format))
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
