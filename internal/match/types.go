// Package match assigns previously rendered source scenes to the slots of
// a new chapter, so a highlight or introduction chapter can be assembled
// from existing footage instead of fresh renders.
package match

import (
	"loom/internal/project"
)

// Slot is one position in the chapter being assembled.
type Slot struct {
	ID         int
	Narration  string
	Characters []string
	Prompt     project.PromptFields
}

// Candidate is one reusable source scene. Path points at the scene's
// source video; candidates are only admitted to the corpus when that
// video is present and valid.
type Candidate struct {
	Unit       string
	SceneID    int
	Narration  string
	Characters []string
	Prompt     project.PromptFields
	Path       string
}

// ManualEntry is a curated slot override consulted before auto-matching.
type ManualEntry struct {
	SlotID        int    `json:"slot_id"`
	SourceUnit    string `json:"source_unit"`
	SourceSceneID int    `json:"source_scene_id"`
	Rationale     string `json:"rationale"`
}

// Assignment methods recorded in the audit trail.
const (
	MethodManual     = "manual"
	MethodAuto       = "auto"
	MethodUnassigned = "unassigned"
)

// Record is the persisted audit of one slot decision.
type Record struct {
	SlotID        int     `json:"slot_id"`
	SourceUnit    string  `json:"source_unit,omitempty"`
	SourceSceneID int     `json:"source_scene_id,omitempty"`
	Method        string  `json:"method"`
	Score         float64 `json:"score,omitempty"`
	Rationale     string  `json:"rationale,omitempty"`
}

// Assigned reports whether the slot received source footage.
func (r Record) Assigned() bool {
	return r.Method == MethodManual || r.Method == MethodAuto
}

// Weights are the scoring parameters. They carry no derivation; treat
// them as tuning knobs, not truths.
type Weights struct {
	Text         float64
	Character    float64
	Keyword      float64
	ReusePenalty float64
}

// DefaultWeights returns the standard scoring parameters.
func DefaultWeights() Weights {
	return Weights{Text: 0.40, Character: 0.25, Keyword: 0.35, ReusePenalty: 0.3}
}

// scenerySharedBonus is awarded when neither side names a character; two
// scenery-only scenes are a weak positive signal.
const scenerySharedBonus = 0.1
