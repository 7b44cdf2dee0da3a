package artifact

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"loom/internal/project"
)

func TestKindMinSize(t *testing.T) {
	cases := map[Kind]int64{
		SourceVideo:  10 * 1024,
		Clip:         1024 * 1024,
		Narration:    1024,
		Caption:      10,
		ChapterVideo: 1024,
	}
	for kind, want := range cases {
		if got := kind.MinSize(); got != want {
			t.Errorf("%s min size = %d, want %d", kind, got, want)
		}
	}
}

func TestDirStorePaths(t *testing.T) {
	layout := project.Layout{Root: "/p/ch01_intro"}
	store := NewDirStore(layout, false)

	if got := store.Path(Key{Kind: SourceVideo, Scene: 2}); got != "/p/ch01_intro/scenes/scene_002.mp4" {
		t.Errorf("source path = %q", got)
	}
	if got := store.Path(Key{Kind: Clip, Scene: 2}); got != "/p/ch01_intro/clips/clip_002.mp4" {
		t.Errorf("clip path = %q", got)
	}
	if got := store.Path(Key{Kind: ChapterVideo}); got != "/p/ch01_intro/chapter.mp4" {
		t.Errorf("chapter path = %q", got)
	}

	shorts := NewDirStore(layout, true)
	if got := shorts.Path(Key{Kind: Clip, Scene: 2}); got != "/p/ch01_intro/clips_shorts/clip_002.mp4" {
		t.Errorf("shorts clip path = %q", got)
	}
}

func TestDirStoreExistsEnforcesSize(t *testing.T) {
	layout := project.Layout{Root: t.TempDir()}
	if err := layout.EnsureDirs(); err != nil {
		t.Fatal(err)
	}
	store := NewDirStore(layout, false)

	key := Key{Kind: Narration, Scene: 1}
	if store.Exists(key) {
		t.Error("missing artifact should not exist")
	}

	if err := os.WriteFile(store.Path(key), make([]byte, 100), 0o644); err != nil {
		t.Fatal(err)
	}
	if store.Exists(key) {
		t.Error("undersized artifact should not be valid")
	}

	// Exactly at the threshold still counts as truncated.
	if err := os.WriteFile(store.Path(key), make([]byte, int(Narration.MinSize())), 0o644); err != nil {
		t.Fatal(err)
	}
	if store.Exists(key) {
		t.Error("artifact at exactly the threshold should not be valid")
	}

	if err := os.WriteFile(store.Path(key), make([]byte, 2048), 0o644); err != nil {
		t.Fatal(err)
	}
	if !store.Exists(key) {
		t.Error("artifact above threshold should be valid")
	}
}

func TestDirStoreCaptionNeedsHeader(t *testing.T) {
	layout := project.Layout{Root: t.TempDir()}
	if err := layout.EnsureDirs(); err != nil {
		t.Fatal(err)
	}
	store := NewDirStore(layout, false)
	key := Key{Kind: Caption, Scene: 1}

	if err := os.WriteFile(store.Path(key), []byte("this is not a vtt file"), 0o644); err != nil {
		t.Fatal(err)
	}
	if store.Exists(key) {
		t.Error("caption without WEBVTT header should be invalid")
	}

	if err := os.WriteFile(store.Path(key), []byte("WEBVTT\n\n00:00.000 --> 00:02.000\nhello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !store.Exists(key) {
		t.Error("well-formed caption should be valid")
	}
}

func TestDirStorePutAndOpen(t *testing.T) {
	layout := project.Layout{Root: t.TempDir()}
	if err := layout.EnsureDirs(); err != nil {
		t.Fatal(err)
	}
	store := NewDirStore(layout, false)
	key := Key{Kind: Caption, Scene: 9}

	content := []byte("WEBVTT\n\ncaption body")
	if err := store.Put(key, bytes.NewReader(content)); err != nil {
		t.Fatal(err)
	}

	rc, err := store.Open(key)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Error("round-tripped content differs")
	}
}

func TestMemStoreMatchesDirStoreRules(t *testing.T) {
	store := NewMemStore()

	clip := Key{Kind: Clip, Scene: 1}
	store.Seed(clip, make([]byte, 512))
	if store.Exists(clip) {
		t.Error("undersized clip should be invalid")
	}
	store.Seed(clip, make([]byte, int(Clip.MinSize())))
	if store.Exists(clip) {
		t.Error("clip at exactly the threshold should be invalid")
	}
	store.SeedValid(clip)
	if !store.Exists(clip) {
		t.Error("seeded valid clip should exist")
	}

	caption := Key{Kind: Caption, Scene: 1}
	store.Seed(caption, []byte("padding without the magic"))
	if store.Exists(caption) {
		t.Error("caption without header should be invalid")
	}
	store.SeedValid(caption)
	if !store.Exists(caption) {
		t.Error("seeded caption should be valid")
	}

	if store.Path(clip) != filepath.Join("/mem", "clip/001") {
		t.Errorf("mem path = %q", store.Path(clip))
	}
}
