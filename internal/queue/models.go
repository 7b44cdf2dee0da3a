package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a work unit. Each value names the
// last pipeline step that finished for the unit.
type Status string

const (
	StatusPending     Status = "pending"
	StatusScripted    Status = "scripted"
	StatusTTSDone     Status = "tts_done"
	StatusScenesReady Status = "scenes_ready"
	StatusRendered    Status = "rendered"
	StatusMerged      Status = "merged"
	StatusFailed      Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusScripted,
	StatusTTSDone,
	StatusScenesReady,
	StatusRendered,
	StatusMerged,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// statusRank orders statuses along the pipeline. Failed sorts last.
var statusRank = func() map[Status]int {
	rank := make(map[Status]int, len(allStatuses))
	for i, status := range allStatuses {
		rank[status] = i
	}
	return rank
}()

// Unit represents one chapter of a project persisted in SQLite.
type Unit struct {
	ID             int64
	ProjectDir     string
	Slug           string
	Title          string
	ChapterIndex   int
	DurationTarget float64
	Status         Status
	ErrorMessage   string
	FinalFile      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HealthSummary describes aggregated unit counts per key lifecycle states.
type HealthSummary struct {
	Total    int
	Pending  int
	Rendered int
	Merged   int
	Failed   int
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// AtLeast reports whether the unit has progressed to want or beyond.
// A failed unit is never considered progressed.
func (s Status) AtLeast(want Status) bool {
	if s == StatusFailed {
		return false
	}
	have, ok := statusRank[s]
	if !ok {
		return false
	}
	target, ok := statusRank[want]
	if !ok {
		return false
	}
	return have >= target
}

// SetFailed marks the unit as failed with the given error message.
func (u *Unit) SetFailed(message string) {
	u.Status = StatusFailed
	u.ErrorMessage = message
}

// Dir returns the unit's working directory under the project root.
func (u Unit) Dir() string {
	return unitDirName(u.ChapterIndex, u.Slug)
}

// slugTokens splits a slug into its words. Matching whole tokens keeps
// slugs like "introducing-the-giant" from being mistaken for an intro.
func slugTokens(slug string) []string {
	return strings.FieldsFunc(strings.ToLower(slug), func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
}

func slugHasToken(slug string, words ...string) bool {
	for _, token := range slugTokens(slug) {
		for _, word := range words {
			if token == word {
				return true
			}
		}
	}
	return false
}

// IsIntro reports whether the unit is the project's opening chapter,
// either by position or by an explicit "intro" word in its slug.
func (u Unit) IsIntro() bool {
	return u.ChapterIndex == 0 || slugHasToken(u.Slug, "intro")
}

// IsOutro reports whether the unit is the project's closing chapter. The
// outro is excluded from the reusable-footage corpus during assembly.
func (u Unit) IsOutro() bool {
	return slugHasToken(u.Slug, "outro", "final", "finale")
}
