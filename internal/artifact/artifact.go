// Package artifact formalizes the filesystem-presence idempotence used
// throughout the pipeline. Every produced or consumed media file is an
// artifact addressed by (kind, scene id); an artifact is valid when it
// exists and clears its kind's minimum size, so a finished step can be
// detected without re-running it.
package artifact

import (
	"bytes"
	"fmt"
	"io"
)

// Kind identifies a class of media artifact.
type Kind string

const (
	// SourceVideo is an externally supplied raw scene video.
	SourceVideo Kind = "source_video"
	// Clip is a fully rendered per-scene output.
	Clip Kind = "clip"
	// Narration is a synthesized narration audio track.
	Narration Kind = "narration"
	// Caption is a WebVTT caption file.
	Caption Kind = "caption"
	// ChapterVideo is a merged chapter or master output.
	ChapterVideo Kind = "chapter_video"
)

// MinSize returns the smallest byte count a valid artifact of this kind
// can have. Anything at or below the threshold is treated as a truncated
// or failed write.
func (k Kind) MinSize() int64 {
	switch k {
	case SourceVideo:
		return 10 * 1024
	case Clip:
		return 1024 * 1024
	case Narration:
		return 1024
	case Caption:
		return 10
	case ChapterVideo:
		return 1024
	default:
		return 0
	}
}

// Key addresses one artifact. Scene is zero for chapter-level artifacts.
type Key struct {
	Kind  Kind
	Scene int
}

func (k Key) String() string {
	if k.Scene == 0 && k.Kind == ChapterVideo {
		return string(k.Kind)
	}
	return fmt.Sprintf("%s/%03d", k.Kind, k.Scene)
}

// Store abstracts artifact persistence so idempotence checks never touch
// raw path strings and tests can run against an in-memory fake.
type Store interface {
	// Exists reports whether a valid artifact is present for key.
	Exists(key Key) bool
	// Path returns the canonical location for key. The file may not exist.
	Path(key Key) string
	// Open returns the artifact contents for key.
	Open(key Key) (io.ReadCloser, error)
	// Put writes the artifact contents for key, replacing any previous one.
	Put(key Key, r io.Reader) error
}

// validCaption reports whether caption bytes carry the WebVTT magic. Size
// alone is not enough for captions: empty-but-padded files show up when a
// caption step is interrupted.
func validCaption(data []byte) bool {
	return bytes.Contains(data, []byte("WEBVTT"))
}
