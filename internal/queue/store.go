package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"loom/internal/config"
)

// Store manages unit persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// ErrNotFound is returned when no unit matches a lookup.
var ErrNotFound = errors.New("unit not found")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Open initializes or connects to the queue database under the log directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LogDir, "queue.db"))
}

// OpenPath initializes or connects to the queue database at dbPath.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

const unitColumns = `id, project_dir, slug, title, chapter_index, duration_target,
	status, error_message, final_file, created_at, updated_at`

// Create inserts a new unit in status pending and fills in its ID and
// timestamps. Planning the same project/slug pair twice is an error.
func (s *Store) Create(ctx context.Context, unit *Unit) error {
	ctx = ensureContext(ctx)
	if unit == nil {
		return errors.New("unit must not be nil")
	}
	if strings.TrimSpace(unit.Slug) == "" {
		return errors.New("unit slug must not be empty")
	}
	if unit.Status == "" {
		unit.Status = StatusPending
	}

	now := time.Now().UTC()
	unit.CreatedAt = now
	unit.UpdatedAt = now

	var result sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		result, execErr = s.db.ExecContext(ctx, `
			INSERT INTO units (project_dir, slug, title, chapter_index, duration_target,
				status, error_message, final_file, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			unit.ProjectDir, unit.Slug, unit.Title, unit.ChapterIndex, unit.DurationTarget,
			string(unit.Status), unit.ErrorMessage, unit.FinalFile,
			now.Format(time.RFC3339), now.Format(time.RFC3339))
		return execErr
	})
	if err != nil {
		return fmt.Errorf("insert unit %s: %w", unit.Slug, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("read unit id: %w", err)
	}
	unit.ID = id
	return nil
}

// Update persists all mutable unit fields and refreshes updated_at.
func (s *Store) Update(ctx context.Context, unit *Unit) error {
	ctx = ensureContext(ctx)
	if unit == nil || unit.ID == 0 {
		return errors.New("unit must have an id")
	}

	unit.UpdatedAt = time.Now().UTC()
	err := retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx, `
			UPDATE units
			SET title = ?, chapter_index = ?, duration_target = ?, status = ?,
				error_message = ?, final_file = ?, updated_at = ?
			WHERE id = ?`,
			unit.Title, unit.ChapterIndex, unit.DurationTarget, string(unit.Status),
			unit.ErrorMessage, unit.FinalFile, unit.UpdatedAt.Format(time.RFC3339), unit.ID)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("update unit %d: %w", unit.ID, err)
	}
	return nil
}

// GetByID fetches a unit by primary key.
func (s *Store) GetByID(ctx context.Context, id int64) (*Unit, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+unitColumns+" FROM units WHERE id = ?", id)
	return scanUnit(row)
}

// GetBySlug fetches a unit by project directory and slug.
func (s *Store) GetBySlug(ctx context.Context, projectDir, slug string) (*Unit, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+unitColumns+" FROM units WHERE project_dir = ? AND slug = ?",
		projectDir, slug)
	return scanUnit(row)
}

// List returns all units for a project ordered by chapter index.
func (s *Store) List(ctx context.Context, projectDir string) ([]*Unit, error) {
	return s.query(ctx,
		"SELECT "+unitColumns+" FROM units WHERE project_dir = ? ORDER BY chapter_index",
		projectDir)
}

// ListByStatus returns a project's units currently in the given status,
// ordered by chapter index with the intro chapter last. The intro reuses
// footage assembled from the other chapters, so it is always processed
// after them.
func (s *Store) ListByStatus(ctx context.Context, projectDir string, status Status) ([]*Unit, error) {
	units, err := s.query(ctx, `
		SELECT `+unitColumns+` FROM units
		WHERE project_dir = ? AND status = ?
		ORDER BY chapter_index`,
		projectDir, string(status))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(units, func(i, j int) bool {
		return !units[i].IsIntro() && units[j].IsIntro()
	})
	return units, nil
}

// NextForStatus returns the first unit awaiting work in the given status,
// or nil when none remain.
func (s *Store) NextForStatus(ctx context.Context, projectDir string, status Status) (*Unit, error) {
	units, err := s.ListByStatus(ctx, projectDir, status)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, nil
	}
	return units[0], nil
}

// Health reports aggregate unit counts for a project.
func (s *Store) Health(ctx context.Context, projectDir string) (HealthSummary, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(1) FROM units WHERE project_dir = ? GROUP BY status",
		projectDir)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("summarize units: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return HealthSummary{}, fmt.Errorf("scan summary row: %w", err)
		}
		summary.Total += count
		switch Status(status) {
		case StatusPending:
			summary.Pending += count
		case StatusRendered:
			summary.Rendered += count
		case StatusMerged:
			summary.Merged += count
		case StatusFailed:
			summary.Failed += count
		}
	}
	return summary, rows.Err()
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]*Unit, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	defer rows.Close()

	var units []*Unit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	return units, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUnit(row rowScanner) (*Unit, error) {
	var (
		unit      Unit
		status    string
		createdAt string
		updatedAt string
	)
	err := row.Scan(&unit.ID, &unit.ProjectDir, &unit.Slug, &unit.Title,
		&unit.ChapterIndex, &unit.DurationTarget, &status, &unit.ErrorMessage,
		&unit.FinalFile, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan unit: %w", err)
	}

	unit.Status = Status(status)
	if ts, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		unit.CreatedAt = ts
	}
	if ts, parseErr := time.Parse(time.RFC3339, updatedAt); parseErr == nil {
		unit.UpdatedAt = ts
	}
	return &unit, nil
}
