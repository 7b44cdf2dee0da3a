package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and asset configuration.
type Paths struct {
	LibraryDir   string `toml:"library_dir"`
	LogDir       string `toml:"log_dir"`
	EndCardAsset string `toml:"end_card_asset"`
}

// Media contains the external transcoding tool configuration.
type Media struct {
	FFmpeg       string `toml:"ffmpeg"`
	FFprobe      string `toml:"ffprobe"`
	FrameRate    int    `toml:"frame_rate"`
	VideoCRF     int    `toml:"video_crf"`
	VideoPreset  string `toml:"video_preset"`
	AudioBitrate string `toml:"audio_bitrate"`
}

// Match contains the scene matcher scoring parameters. The defaults mirror
// the constants the matcher was tuned with; no derivation exists for them,
// so they are exposed as configuration rather than baked in.
type Match struct {
	TextWeight      float64 `toml:"text_weight"`
	CharacterWeight float64 `toml:"character_weight"`
	KeywordWeight   float64 `toml:"keyword_weight"`
	ReusePenalty    float64 `toml:"reuse_penalty"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the root configuration document.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Media   Media   `toml:"media"`
	Match   Match   `toml:"match"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the canonical config file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/loom/config.toml")
}

// Load reads configuration from path (or the default location when path is
// empty), applying defaults for any omitted keys. The second return value is
// the resolved path; the third reports whether a file was found.
func Load(path string) (*Config, string, bool, error) {
	resolved, explicit, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	data, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, resolved, true, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		if explicit {
			return nil, resolved, false, fmt.Errorf("config file not found: %s", resolved)
		}
		// No file at the default location: run on defaults.
		if normErr := cfg.normalize(); normErr != nil {
			return nil, resolved, false, normErr
		}
		if valErr := cfg.Validate(); valErr != nil {
			return nil, resolved, false, valErr
		}
		return &cfg, resolved, false, nil
	default:
		return nil, resolved, false, fmt.Errorf("read config %s: %w", resolved, err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, resolved, true, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, resolved, true, err
	}
	return &cfg, resolved, true, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed != "" {
		expanded, err := ExpandPath(trimmed)
		if err != nil {
			return "", true, err
		}
		return expanded, true, nil
	}
	resolved, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	return resolved, false, nil
}

// normalize expands user paths in-place.
func (c *Config) normalize() error {
	fields := []*string{&c.Paths.LibraryDir, &c.Paths.LogDir, &c.Paths.EndCardAsset}
	for _, field := range fields {
		if strings.TrimSpace(*field) == "" {
			continue
		}
		expanded, err := ExpandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}
	return nil
}

// EnsureDirectories creates the library and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LibraryDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the configured ffmpeg binary, defaulting to PATH lookup.
func (c *Config) FFmpegBinary() string {
	if binary := strings.TrimSpace(c.Media.FFmpeg); binary != "" {
		return binary
	}
	return "ffmpeg"
}

// FFprobeBinary returns the configured ffprobe binary, defaulting to PATH lookup.
func (c *Config) FFprobeBinary() string {
	if binary := strings.TrimSpace(c.Media.FFprobe); binary != "" {
		return binary
	}
	return "ffprobe"
}

// ExpandPath resolves a leading ~ against the current user's home directory.
func ExpandPath(pathValue string) (string, error) {
	trimmed := strings.TrimSpace(pathValue)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return filepath.Abs(trimmed)
}

// CreateSample writes the embedded sample config to path, refusing to
// overwrite an existing file.
func CreateSample(path string) error {
	expanded, err := ExpandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists: %s", expanded)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}
