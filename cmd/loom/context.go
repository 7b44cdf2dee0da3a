package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/media/ffmpeg"
	"loom/internal/media/ffprobe"
	"loom/internal/project"
	"loom/internal/queue"
)

type commandContext struct {
	configFlag  *string
	projectFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, projectFlag *string) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		projectFlag: projectFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		path := ""
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		if path == "" {
			path = strings.TrimSpace(os.Getenv("LOOM_CONFIG"))
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureLogger builds the shared logger once, tagged with a fresh run id
// so concurrent invocations writing the same log file stay separable.
func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	c.loggerOnce.Do(func() {
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger = logger.With(logging.String("run_id", uuid.NewString()))
	})
	return c.logger, c.loggerErr
}

// projectDir resolves the project directory: flag, then LOOM_PROJECT, then
// the current working directory.
func (c *commandContext) projectDir() (string, error) {
	raw := ""
	if c.projectFlag != nil {
		raw = strings.TrimSpace(*c.projectFlag)
	}
	if raw == "" {
		raw = strings.TrimSpace(os.Getenv("LOOM_PROJECT"))
	}
	if raw == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working directory: %w", err)
		}
		return wd, nil
	}
	return config.ExpandPath(raw)
}

func (c *commandContext) projectLayout() (project.ProjectLayout, error) {
	dir, err := c.projectDir()
	if err != nil {
		return project.ProjectLayout{}, err
	}
	return project.ProjectLayout{Root: dir}, nil
}

// withStore opens the queue store for the duration of fn.
func (c *commandContext) withStore(fn func(*queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func (c *commandContext) mediaEngine(logger *slog.Logger) ffmpeg.Engine {
	cfg, _ := c.ensureConfig()
	return ffmpeg.NewCommandEngine(cfg.FFmpegBinary(), logger)
}

func (c *commandContext) prober() ffprobe.Prober {
	cfg, _ := c.ensureConfig()
	return ffprobe.Prober{Binary: cfg.FFprobeBinary()}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
