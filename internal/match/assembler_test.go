package match

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"

	"loom/internal/project"
	"loom/internal/queue"
)

func writeScript(t *testing.T, layout project.Layout, scenes string) {
	t.Helper()
	if err := os.MkdirAll(layout.Root, 0o755); err != nil {
		t.Fatal(err)
	}
	doc := fmt.Sprintf(`{"title": "Chapter", "scenes": [%s]}`, scenes)
	if err := os.WriteFile(layout.ScriptFile(), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeSourceVideo(t *testing.T, layout project.Layout, id int) {
	t.Helper()
	if err := os.MkdirAll(layout.ScenesDir(false), 0o755); err != nil {
		t.Fatal(err)
	}
	blob := bytes.Repeat([]byte{0x55}, 11*1024)
	if err := os.WriteFile(layout.SceneVideo(id, false), blob, 0o644); err != nil {
		t.Fatal(err)
	}
}

func assemblyFixture(t *testing.T) (project.ProjectLayout, *queue.Unit, []*queue.Unit) {
	t.Helper()
	layout := project.ProjectLayout{Root: t.TempDir()}

	source := &queue.Unit{Slug: "goliath-rises", ChapterIndex: 1}
	sourceLayout := layout.ChapterDir(source.Dir())
	writeScript(t, sourceLayout, `
		{"id": 1, "narration": "goliath lifts the gate", "characters": ["Goliath"]},
		{"id": 2, "narration": "the village celebrates the harvest", "characters": ["Mira"]}`)
	writeSourceVideo(t, sourceLayout, 1)
	writeSourceVideo(t, sourceLayout, 2)

	target := &queue.Unit{Slug: "series-intro", ChapterIndex: 9}
	targetLayout := layout.ChapterDir(target.Dir())
	writeScript(t, targetLayout, `
		{"id": 1, "narration": "goliath lifts the gate", "characters": ["Goliath"]},
		{"id": 2, "narration": "something nobody ever filmed", "characters": ["Stranger"]}`)

	return layout, target, []*queue.Unit{source, target}
}

func TestAssembleCopiesMatchesAndWritesAudit(t *testing.T) {
	layout, target, units := assemblyFixture(t)

	a := NewAssembler(layout, DefaultWeights(), nil)
	summary, err := a.Assemble(context.Background(), target, units)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	if summary.Total != 2 || summary.Auto != 2 || summary.Unassigned != 0 {
		t.Errorf("summary = %+v", summary)
	}

	targetLayout := layout.ChapterDir(target.Dir())
	for _, id := range []int{1, 2} {
		if _, err := os.Stat(targetLayout.SceneVideo(id, false)); err != nil {
			t.Errorf("scene %d not copied: %v", id, err)
		}
	}

	data, err := os.ReadFile(layout.AssemblyMapFile())
	if err != nil {
		t.Fatalf("audit map: %v", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("audit records = %d", len(records))
	}
	if records[0].SourceUnit != "goliath-rises" || records[0].SourceSceneID != 1 {
		t.Errorf("first record = %+v", records[0])
	}
	if records[0].Method != MethodAuto || records[0].Score <= 0 {
		t.Errorf("first record method/score = %+v", records[0])
	}
}

func TestAssembleHonorsManualMap(t *testing.T) {
	layout, target, units := assemblyFixture(t)

	manual := []ManualEntry{{SlotID: 1, SourceUnit: units[0].Slug, SourceSceneID: 2, Rationale: "wanted the harvest shot"}}
	data, err := json.Marshal(manual)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(layout.ManualMapFile(), data, 0o644); err != nil {
		t.Fatal(err)
	}

	a := NewAssembler(layout, DefaultWeights(), nil)
	summary, err := a.Assemble(context.Background(), target, units)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Manual != 1 {
		t.Errorf("summary = %+v", summary)
	}

	audit, err := os.ReadFile(layout.AssemblyMapFile())
	if err != nil {
		t.Fatal(err)
	}
	var records []Record
	if err := json.Unmarshal(audit, &records); err != nil {
		t.Fatal(err)
	}
	if records[0].Method != MethodManual || records[0].SourceSceneID != 2 {
		t.Errorf("manual override not applied: %+v", records[0])
	}
	if records[0].Rationale != "wanted the harvest shot" {
		t.Errorf("rationale missing: %+v", records[0])
	}
}

func TestAssembleManualMapMalformedFails(t *testing.T) {
	layout, target, units := assemblyFixture(t)
	if err := os.WriteFile(layout.ManualMapFile(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	a := NewAssembler(layout, DefaultWeights(), nil)
	if _, err := a.Assemble(context.Background(), target, units); err == nil {
		t.Fatal("malformed manual map must fail the run")
	}
}

func TestAssembleSkipsCandidatesWithoutFootage(t *testing.T) {
	layout, target, units := assemblyFixture(t)

	// Drop scene 1's footage; only scene 2 remains eligible.
	sourceLayout := layout.ChapterDir(units[0].Dir())
	if err := os.Remove(sourceLayout.SceneVideo(1, false)); err != nil {
		t.Fatal(err)
	}

	a := NewAssembler(layout, DefaultWeights(), nil)
	summary, err := a.Assemble(context.Background(), target, units)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Auto != 2 {
		t.Fatalf("summary = %+v", summary)
	}

	audit, _ := os.ReadFile(layout.AssemblyMapFile())
	var records []Record
	if err := json.Unmarshal(audit, &records); err != nil {
		t.Fatal(err)
	}
	for _, record := range records {
		if record.SourceSceneID != 2 {
			t.Errorf("only scene 2 has footage, got %+v", record)
		}
	}
}

func TestAssembleExcludesOutroFromCorpus(t *testing.T) {
	layout, target, units := assemblyFixture(t)

	outro := &queue.Unit{Slug: "series-outro", ChapterIndex: 10}
	outroLayout := layout.ChapterDir(outro.Dir())
	writeScript(t, outroLayout, `{"id": 1, "narration": "goliath lifts the gate", "characters": ["Goliath"]}`)
	writeSourceVideo(t, outroLayout, 1)

	a := NewAssembler(layout, DefaultWeights(), nil)
	if _, err := a.Assemble(context.Background(), target, append(units, outro)); err != nil {
		t.Fatal(err)
	}

	audit, _ := os.ReadFile(layout.AssemblyMapFile())
	var records []Record
	if err := json.Unmarshal(audit, &records); err != nil {
		t.Fatal(err)
	}
	for _, record := range records {
		if record.SourceUnit == outro.Slug {
			t.Errorf("outro footage must never be reused: %+v", record)
		}
	}
}

func TestAssembleManualMapCanPinOutroFootage(t *testing.T) {
	layout, target, units := assemblyFixture(t)

	// Outro scenes never enter the auto-match corpus, but a curator can
	// still pin one explicitly.
	outro := &queue.Unit{Slug: "grand-outro", ChapterIndex: 10}
	outroLayout := layout.ChapterDir(outro.Dir())
	writeScript(t, outroLayout, `{"id": 3, "narration": "the curtain falls", "characters": []}`)
	writeSourceVideo(t, outroLayout, 3)

	manual := []ManualEntry{{SlotID: 2, SourceUnit: outro.Slug, SourceSceneID: 3, Rationale: "closing shot fits the teaser"}}
	data, err := json.Marshal(manual)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(layout.ManualMapFile(), data, 0o644); err != nil {
		t.Fatal(err)
	}

	a := NewAssembler(layout, DefaultWeights(), nil)
	summary, err := a.Assemble(context.Background(), target, append(units, outro))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if summary.Manual != 1 {
		t.Errorf("summary = %+v", summary)
	}

	audit, err := os.ReadFile(layout.AssemblyMapFile())
	if err != nil {
		t.Fatal(err)
	}
	var records []Record
	if err := json.Unmarshal(audit, &records); err != nil {
		t.Fatal(err)
	}
	var pinned *Record
	for i := range records {
		if records[i].SlotID == 2 {
			pinned = &records[i]
		}
	}
	if pinned == nil || pinned.Method != MethodManual || pinned.SourceUnit != outro.Slug || pinned.SourceSceneID != 3 {
		t.Fatalf("outro pin not honored: %+v", records)
	}
	if _, err := os.Stat(layout.ChapterDir(target.Dir()).SceneVideo(2, false)); err != nil {
		t.Errorf("pinned footage not copied: %v", err)
	}
}

func TestAssembleEmptyCorpusReportsUnassigned(t *testing.T) {
	layout := project.ProjectLayout{Root: t.TempDir()}
	target := &queue.Unit{Slug: "series-intro", ChapterIndex: 1}
	writeScript(t, layout.ChapterDir(target.Dir()), `{"id": 1, "narration": "alone in the dark"}`)

	a := NewAssembler(layout, DefaultWeights(), nil)
	summary, err := a.Assemble(context.Background(), target, []*queue.Unit{target})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Unassigned != 1 || summary.Auto != 0 {
		t.Errorf("summary = %+v", summary)
	}
}
