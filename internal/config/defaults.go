package config

// Default returns the built-in configuration. Paths keep their ~ prefix
// here; Load expands them after merging the file on top.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir: "~/loom/library",
			LogDir:     "~/loom/logs",
		},
		Media: Media{
			FrameRate:    24,
			VideoCRF:     18,
			VideoPreset:  "fast",
			AudioBitrate: "192k",
		},
		Match: Match{
			TextWeight:      0.40,
			CharacterWeight: 0.25,
			KeywordWeight:   0.35,
			ReusePenalty:    0.3,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}
