package match

import (
	"log/slog"

	"loom/internal/logging"
	"loom/internal/textutil"
)

// SourceResolver reports whether a manual entry's referenced footage is
// currently on disk, returning its path when it is.
type SourceResolver func(unit string, sceneID int) (string, bool)

// Matcher performs the deterministic slot-to-candidate assignment.
type Matcher struct {
	weights Weights
	resolve SourceResolver
	logger  *slog.Logger
}

// NewMatcher constructs a matcher. resolve may be nil, which disables
// manual overrides whose sources cannot be verified.
func NewMatcher(weights Weights, resolve SourceResolver, logger *slog.Logger) *Matcher {
	if resolve == nil {
		resolve = func(string, int) (string, bool) { return "", false }
	}
	return &Matcher{
		weights: weights,
		resolve: resolve,
		logger:  logging.NewComponentLogger(logger, "match"),
	}
}

type sourceKey struct {
	unit    string
	sceneID int
}

// Assign decides source footage for each slot in input order. Manual
// entries win when their footage is on disk, falling back to automatic
// scoring otherwise. Auto scoring is deterministic: ties resolve to the
// earlier candidate in corpus order. Candidates already assigned in this
// run are penalized, discouraging but not forbidding reuse. Slots with
// no usable candidate are recorded as unassigned, never dropped.
func (m *Matcher) Assign(slots []Slot, candidates []Candidate, manual []ManualEntry) []Record {
	manualBySlot := make(map[int]ManualEntry, len(manual))
	for _, entry := range manual {
		manualBySlot[entry.SlotID] = entry
	}

	used := make(map[sourceKey]struct{})
	records := make([]Record, 0, len(slots))

	for _, slot := range slots {
		if entry, ok := manualBySlot[slot.ID]; ok {
			if _, present := m.resolve(entry.SourceUnit, entry.SourceSceneID); present {
				used[sourceKey{entry.SourceUnit, entry.SourceSceneID}] = struct{}{}
				records = append(records, Record{
					SlotID:        slot.ID,
					SourceUnit:    entry.SourceUnit,
					SourceSceneID: entry.SourceSceneID,
					Method:        MethodManual,
					Rationale:     entry.Rationale,
				})
				m.logger.Info("slot assigned manually",
					logging.Int("slot", slot.ID),
					logging.String("source_unit", entry.SourceUnit),
					logging.Int("source_scene", entry.SourceSceneID))
				continue
			}
			m.logger.Warn("manual entry source missing, falling back to auto",
				logging.Int("slot", slot.ID),
				logging.String("source_unit", entry.SourceUnit),
				logging.Int("source_scene", entry.SourceSceneID))
		}

		bestScore := -1.0
		bestIdx := -1
		for i, candidate := range candidates {
			score := m.Score(slot, candidate)
			if _, reused := used[sourceKey{candidate.Unit, candidate.SceneID}]; reused {
				score -= m.weights.ReusePenalty
			}
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}

		if bestIdx < 0 {
			records = append(records, Record{SlotID: slot.ID, Method: MethodUnassigned})
			m.logger.Warn("no candidate for slot", logging.Int("slot", slot.ID))
			continue
		}

		best := candidates[bestIdx]
		used[sourceKey{best.Unit, best.SceneID}] = struct{}{}
		records = append(records, Record{
			SlotID:        slot.ID,
			SourceUnit:    best.Unit,
			SourceSceneID: best.SceneID,
			Method:        MethodAuto,
			Score:         bestScore,
		})
		m.logger.Info("slot assigned automatically",
			logging.Int("slot", slot.ID),
			logging.String("source_unit", best.Unit),
			logging.Int("source_scene", best.SceneID),
			logging.Float64("score", bestScore))
	}
	return records
}

// Score computes the composite similarity between a slot and a candidate
// in [0, 1], before any reuse penalty.
func (m *Matcher) Score(slot Slot, candidate Candidate) float64 {
	score := textutil.Ratio(textutil.Lower(slot.Narration), textutil.Lower(candidate.Narration)) * m.weights.Text

	slotChars := textutil.NewSet(slot.Characters...)
	candChars := textutil.NewSet(candidate.Characters...)
	switch {
	case len(slotChars) > 0 && len(candChars) > 0:
		score += textutil.Jaccard(slotChars, candChars) * m.weights.Character
	case len(slotChars) == 0 && len(candChars) == 0:
		score += scenerySharedBonus
	}

	slotKeywords := extractKeywords(slot.Narration, slot.Prompt)
	candKeywords := extractKeywords(candidate.Narration, candidate.Prompt)
	if len(slotKeywords) > 0 && len(candKeywords) > 0 {
		score += textutil.Jaccard(slotKeywords, candKeywords) * m.weights.Keyword
	}
	return score
}
