package ffprobe

import (
	"context"
	"encoding/json"
	"testing"
)

func TestResultParsing(t *testing.T) {
	payload := `{
		"streams": [
			{"index": 0, "codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080},
			{"index": 1, "codec_type": "audio", "codec_name": "aac", "channels": 2, "sample_rate": "48000"}
		],
		"format": {"filename": "clip_001.mp4", "duration": "7.600000", "size": "2048000"}
	}`

	var result Result
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got := result.DurationSeconds(); got != 7.6 {
		t.Errorf("duration = %v, want 7.6", got)
	}
	if !result.HasAudioStream() {
		t.Error("expected audio stream")
	}
	if result.Streams[0].Width != 1920 {
		t.Errorf("width = %d", result.Streams[0].Width)
	}
}

func TestDurationSecondsSentinel(t *testing.T) {
	cases := []string{"", "garbage", "-3.5"}
	for _, value := range cases {
		r := Result{Format: Format{Duration: value}}
		if got := r.DurationSeconds(); got != 0 {
			t.Errorf("duration %q = %v, want 0", value, got)
		}
	}
}

func TestInspectRejectsEmptyPath(t *testing.T) {
	if _, err := Inspect(context.Background(), "", ""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
