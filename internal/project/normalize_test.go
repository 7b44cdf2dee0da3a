package project

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("video bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestNormalizeSceneFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "P01_scene_1_1080p_render.mp4")
	touch(t, dir, "Scene 2.mov")
	touch(t, dir, "003.mp4")
	touch(t, dir, "scene_004.mp4") // already canonical
	touch(t, dir, "notes.txt")     // ignored

	count, err := NormalizeSceneFiles(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("normalized %d files, want 3", count)
	}

	for _, name := range []string{"scene_001.mp4", "scene_002.mp4", "scene_003.mp4", "scene_004.mp4"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
	// Sources are copied, not moved.
	if _, err := os.Stat(filepath.Join(dir, "Scene 2.mov")); err != nil {
		t.Error("original upload should remain in place")
	}
}

func TestNormalizeSceneFilesNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	canonical := filepath.Join(dir, "scene_001.mp4")
	if err := os.WriteFile(canonical, []byte("keep me"), 0o644); err != nil {
		t.Fatal(err)
	}
	touch(t, dir, "scene 1 retake.mp4")

	count, err := NormalizeSceneFiles(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("normalized %d files, want 0", count)
	}
	data, err := os.ReadFile(canonical)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "keep me" {
		t.Error("canonical file was overwritten")
	}
}

func TestNormalizeSceneFilesMissingDir(t *testing.T) {
	count, err := NormalizeSceneFiles(filepath.Join(t.TempDir(), "absent"), nil)
	if err != nil || count != 0 {
		t.Fatalf("missing dir should be a no-op, got %d, %v", count, err)
	}
}
