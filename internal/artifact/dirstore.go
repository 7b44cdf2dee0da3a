package artifact

import (
	"fmt"
	"io"
	"os"

	"loom/internal/project"
)

// DirStore maps artifact keys onto a chapter directory layout.
type DirStore struct {
	layout project.Layout
	shorts bool
}

// NewDirStore builds a store over one chapter directory. When shorts is
// true, scene and clip paths resolve into the portrait-format directories.
func NewDirStore(layout project.Layout, shorts bool) *DirStore {
	return &DirStore{layout: layout, shorts: shorts}
}

func (s *DirStore) Path(key Key) string {
	switch key.Kind {
	case SourceVideo:
		return s.layout.SceneVideo(key.Scene, s.shorts)
	case Clip:
		return s.layout.Clip(key.Scene, s.shorts)
	case Narration:
		return s.layout.NarrationAudio(key.Scene)
	case Caption:
		return s.layout.Caption(key.Scene)
	case ChapterVideo:
		return s.layout.ChapterVideo(s.shorts)
	default:
		return ""
	}
}

func (s *DirStore) Exists(key Key) bool {
	path := s.Path(key)
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if info.Size() <= key.Kind.MinSize() {
		return false
	}
	if key.Kind == Caption {
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return false
		}
		return validCaption(data)
	}
	return true
}

func (s *DirStore) Open(key Key) (io.ReadCloser, error) {
	path := s.Path(key)
	if path == "" {
		return nil, fmt.Errorf("no path for artifact %s", key)
	}
	return os.Open(path)
}

func (s *DirStore) Put(key Key, r io.Reader) error {
	path := s.Path(key)
	if path == "" {
		return fmt.Errorf("no path for artifact %s", key)
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return err
	}
	return out.Close()
}
