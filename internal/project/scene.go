// Package project models the on-disk layout and script data of a video
// project: one directory per chapter, each holding narration assets,
// source scene videos, rendered clips, and the merged chapter video.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// AudioPriority selects which audio source is authoritative for a scene.
type AudioPriority string

const (
	// AudioTTS uses the narration track; the scene video contributes
	// visuals only.
	AudioTTS AudioPriority = "tts"
	// AudioSource passes the scene video's embedded audio through and
	// discards narration.
	AudioSource AudioPriority = "source"
	// AudioMix blends source audio (0.8) with narration (0.2).
	AudioMix AudioPriority = "mix"
)

// ParseAudioPriority normalizes a script value into an AudioPriority.
// Unknown or empty values default to TTS.
func ParseAudioPriority(value string) AudioPriority {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "source", "veo", "native":
		return AudioSource
	case "mix", "blend":
		return AudioMix
	default:
		return AudioTTS
	}
}

// PromptFields carries the visual-prompt strings attached to a scene. They
// are consumed only as a matching signal, never rendered. Older scripts
// stored the prompt as a single string; that form decodes into Objects.
type PromptFields struct {
	Objects    string `json:"objects"`
	Action     string `json:"action"`
	Atmosphere string `json:"atmosphere"`
}

func (p *PromptFields) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		p.Objects = plain
		p.Action = ""
		p.Atmosphere = ""
		return nil
	}

	type fields PromptFields
	var decoded fields
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*p = PromptFields(decoded)
	return nil
}

// Text joins all prompt fields for keyword extraction.
func (p PromptFields) Text() string {
	parts := make([]string, 0, 3)
	for _, part := range []string{p.Objects, p.Action, p.Atmosphere} {
		if strings.TrimSpace(part) != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " ")
}

// Scene is one renderable beat of a chapter script. Scenes are produced by
// the external planning step and consumed read-only here.
type Scene struct {
	ID             int           `json:"id"`
	Narration      string        `json:"narration"`
	Characters     []string      `json:"characters"`
	DurationTarget float64       `json:"duration"`
	AudioPriority  AudioPriority `json:"audio_priority"`
	Prompt         PromptFields  `json:"video_prompt"`
}

// Script is the parsed chapter script document.
type Script struct {
	Title  string  `json:"title"`
	Scenes []Scene `json:"scenes"`
}

// sceneDocument mirrors the raw JSON shape, including the legacy
// skip-narration flag that predates the tri-state audio priority.
type sceneDocument struct {
	ID             int           `json:"id"`
	Narration      string        `json:"narration"`
	Characters     []string      `json:"characters"`
	DurationTarget float64       `json:"duration"`
	AudioPriority  string        `json:"audio_priority"`
	SkipTTS        bool          `json:"skip_tts"`
	Prompt         *PromptFields `json:"video_prompt"`
}

// LoadScript reads and normalizes a chapter script. The legacy skip_tts
// flag is migrated here, once: it aliases the source policy, but only when
// no explicit audio_priority overrides it.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	var doc struct {
		Title  string          `json:"title"`
		Scenes []sceneDocument `json:"scenes"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse script %s: %w", path, err)
	}
	if len(doc.Scenes) == 0 {
		return nil, fmt.Errorf("script %s has no scenes", path)
	}

	script := &Script{Title: doc.Title, Scenes: make([]Scene, 0, len(doc.Scenes))}
	seen := make(map[int]struct{}, len(doc.Scenes))
	for _, raw := range doc.Scenes {
		if _, dup := seen[raw.ID]; dup {
			return nil, fmt.Errorf("script %s: duplicate scene id %d", path, raw.ID)
		}
		seen[raw.ID] = struct{}{}

		priority := ParseAudioPriority(raw.AudioPriority)
		if priority == AudioTTS && raw.SkipTTS {
			priority = AudioSource
		}

		scene := Scene{
			ID:             raw.ID,
			Narration:      raw.Narration,
			Characters:     raw.Characters,
			DurationTarget: raw.DurationTarget,
			AudioPriority:  priority,
		}
		if raw.Prompt != nil {
			scene.Prompt = *raw.Prompt
		}
		script.Scenes = append(script.Scenes, scene)
	}
	return script, nil
}

// SceneByID returns the scene with the given id, or nil.
func (s *Script) SceneByID(id int) *Scene {
	for i := range s.Scenes {
		if s.Scenes[i].ID == id {
			return &s.Scenes[i]
		}
	}
	return nil
}
