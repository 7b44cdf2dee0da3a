package main

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"loom/internal/config"
)

// withUnitLock runs fn under an advisory file lock scoped to one unit, so
// at most one pipeline invocation works a unit at a time. The lock file
// lives in the log directory, away from project media.
func withUnitLock(cfg *config.Config, slug string, fn func() error) error {
	lockPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("loom-%s.lock", slug))
	lock := flock.New(lockPath)

	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire unit lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("unit %s is already being processed by another loom instance", slug)
	}
	defer func() { _ = lock.Unlock() }()

	return fn()
}
