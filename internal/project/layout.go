package project

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout resolves paths inside one chapter directory.
//
//	<chapter>/
//	  ├── script.json
//	  ├── assets/           narration audio + captions
//	  ├── scenes/           source scene videos
//	  ├── scenes_shorts/    portrait-format source videos
//	  ├── clips/            rendered clips
//	  ├── clips_shorts/     portrait-format rendered clips
//	  ├── chapter.mp4
//	  └── chapter_shorts.mp4
type Layout struct {
	Root string
}

func (l Layout) ScriptFile() string { return filepath.Join(l.Root, "script.json") }

func (l Layout) AssetsDir() string { return filepath.Join(l.Root, "assets") }

func (l Layout) ScenesDir(shorts bool) string {
	if shorts {
		return filepath.Join(l.Root, "scenes_shorts")
	}
	return filepath.Join(l.Root, "scenes")
}

func (l Layout) ClipsDir(shorts bool) string {
	if shorts {
		return filepath.Join(l.Root, "clips_shorts")
	}
	return filepath.Join(l.Root, "clips")
}

// SceneVideo is the externally supplied source video for a scene.
func (l Layout) SceneVideo(id int, shorts bool) string {
	return filepath.Join(l.ScenesDir(shorts), fmt.Sprintf("scene_%03d.mp4", id))
}

// Clip is the rendered output for a scene.
func (l Layout) Clip(id int, shorts bool) string {
	return filepath.Join(l.ClipsDir(shorts), fmt.Sprintf("clip_%03d.mp4", id))
}

// NarrationAudio is the synthesized narration track for a scene.
func (l Layout) NarrationAudio(id int) string {
	return filepath.Join(l.AssetsDir(), fmt.Sprintf("audio_%03d.mp3", id))
}

// Caption is the WebVTT caption file for a scene.
func (l Layout) Caption(id int) string {
	return filepath.Join(l.AssetsDir(), fmt.Sprintf("audio_%03d.vtt", id))
}

// ChapterVideo is the merged output for the whole chapter.
func (l Layout) ChapterVideo(shorts bool) string {
	if shorts {
		return filepath.Join(l.Root, "chapter_shorts.mp4")
	}
	return filepath.Join(l.Root, "chapter.mp4")
}

// EnsureDirs creates the chapter directory tree.
func (l Layout) EnsureDirs() error {
	dirs := []string{
		l.AssetsDir(),
		l.ScenesDir(false), l.ScenesDir(true),
		l.ClipsDir(false), l.ClipsDir(true),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// ProjectLayout resolves paths inside a project directory, which holds one
// chapter directory per work unit plus a final/ output directory.
type ProjectLayout struct {
	Root string
}

// ChapterDir joins a unit directory name (e.g. "ch03_goliath-falls") onto
// the project root.
func (p ProjectLayout) ChapterDir(dirName string) Layout {
	return Layout{Root: filepath.Join(p.Root, dirName)}
}

func (p ProjectLayout) FinalDir() string { return filepath.Join(p.Root, "final") }

// MasterVideo is the concatenated full-project output, named after the
// project directory.
func (p ProjectLayout) MasterVideo() string {
	return filepath.Join(p.FinalDir(), fmt.Sprintf("master_%s.mp4", filepath.Base(p.Root)))
}

// AssemblyMapFile is the audit record written by the auto-assembler.
func (p ProjectLayout) AssemblyMapFile() string {
	return filepath.Join(p.Root, "assembly_map.json")
}

// ManualMapFile holds curated slot overrides consulted before auto-matching.
func (p ProjectLayout) ManualMapFile() string {
	return filepath.Join(p.Root, "manual_map.json")
}
