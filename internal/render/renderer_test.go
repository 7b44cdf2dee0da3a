package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"loom/internal/artifact"
	"loom/internal/media/ffmpeg"
	"loom/internal/project"
)

// fakeEngine records submitted requests and writes a plausible output file
// so downstream validity checks pass.
type fakeEngine struct {
	requests []ffmpeg.Request
	fail     bool
	outSize  int
}

func (e *fakeEngine) Run(_ context.Context, req ffmpeg.Request) error {
	e.requests = append(e.requests, req)
	if e.fail {
		return errors.New("transcode exploded")
	}
	size := e.outSize
	if size == 0 {
		size = 2 * 1024 * 1024
	}
	return os.WriteFile(req.Output, bytes.Repeat([]byte{0x42}, size), 0o644)
}

type fakeProber struct {
	durations map[string]float64
}

func (p fakeProber) Duration(_ context.Context, path string) float64 {
	return p.durations[path]
}

func testOptions() Options {
	return Options{
		FrameRate:    24,
		VideoCRF:     18,
		VideoPreset:  "fast",
		AudioBitrate: "192k",
		Format:       project.Landscape,
	}
}

func setupDirStore(t *testing.T) (*artifact.DirStore, project.Layout) {
	t.Helper()
	layout := project.Layout{Root: t.TempDir()}
	if err := layout.EnsureDirs(); err != nil {
		t.Fatal(err)
	}
	return artifact.NewDirStore(layout, false), layout
}

func seedFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x11}, size), 0o644); err != nil {
		t.Fatal(err)
	}
}

func seedSource(t *testing.T, store artifact.Store, scene int) string {
	t.Helper()
	path := store.Path(artifact.Key{Kind: artifact.SourceVideo, Scene: scene})
	seedFile(t, path, 20*1024)
	return path
}

func seedNarration(t *testing.T, store artifact.Store, scene int) string {
	t.Helper()
	path := store.Path(artifact.Key{Kind: artifact.Narration, Scene: scene})
	seedFile(t, path, 4*1024)
	return path
}

func joinedArgs(req ffmpeg.Request) string {
	args, _ := ffmpeg.BuildArgs(req)
	return strings.Join(args, " ")
}

func TestRenderSceneNarrationRetimesWhenVideoShorter(t *testing.T) {
	store, _ := setupDirStore(t)
	videoPath := seedSource(t, store, 1)
	audioPath := seedNarration(t, store, 1)

	engine := &fakeEngine{}
	probe := fakeProber{durations: map[string]float64{videoPath: 5.0, audioPath: 8.0}}
	r := New(store, engine, probe, testOptions(), nil)

	scene := project.Scene{ID: 1, AudioPriority: project.AudioTTS}
	if err := r.RenderScene(context.Background(), scene); err != nil {
		t.Fatalf("render: %v", err)
	}

	if len(engine.requests) != 1 {
		t.Fatalf("expected 1 engine call, got %d", len(engine.requests))
	}
	req := engine.requests[0]
	if !strings.Contains(req.FilterComplex, "atempo=1.6") {
		t.Errorf("expected atempo 1.6 in graph: %s", req.FilterComplex)
	}
	if req.Maps[1] != "[nar_a]" {
		t.Errorf("audio map = %q, want [nar_a]", req.Maps[1])
	}
	args := joinedArgs(req)
	if !strings.Contains(args, "-t 5 ") && !strings.Contains(args, "-t 5 -shortest") {
		t.Errorf("clip should truncate to video duration: %s", args)
	}
	if !store.Exists(artifact.Key{Kind: artifact.Clip, Scene: 1}) {
		t.Error("clip should exist after render")
	}
}

func TestRenderSceneNarrationSkipsNegligibleRetime(t *testing.T) {
	store, _ := setupDirStore(t)
	videoPath := seedSource(t, store, 1)
	audioPath := seedNarration(t, store, 1)

	engine := &fakeEngine{}
	// factor 8.0/7.8 ~ 1.026, below the 1.05 threshold
	probe := fakeProber{durations: map[string]float64{videoPath: 7.8, audioPath: 8.0}}
	r := New(store, engine, probe, testOptions(), nil)

	if err := r.RenderScene(context.Background(), project.Scene{ID: 1}); err != nil {
		t.Fatal(err)
	}

	req := engine.requests[0]
	if strings.Contains(req.FilterComplex, "atempo") {
		t.Errorf("no retime expected: %s", req.FilterComplex)
	}
	if req.Maps[1] != "1:a" {
		t.Errorf("audio map = %q, want raw narration stream", req.Maps[1])
	}
	if !strings.Contains(joinedArgs(req), "-t 8") {
		t.Errorf("clip duration should follow narration: %s", joinedArgs(req))
	}
}

func TestRenderSceneNarrationAppliesRetimeJustAboveThreshold(t *testing.T) {
	store, _ := setupDirStore(t)
	videoPath := seedSource(t, store, 1)
	audioPath := seedNarration(t, store, 1)

	engine := &fakeEngine{}
	// factor 8.0/7.6 ~ 1.0526, just above the threshold
	probe := fakeProber{durations: map[string]float64{videoPath: 7.6, audioPath: 8.0}}
	r := New(store, engine, probe, testOptions(), nil)

	if err := r.RenderScene(context.Background(), project.Scene{ID: 1}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(engine.requests[0].FilterComplex, "atempo") {
		t.Errorf("expected retime: %s", engine.requests[0].FilterComplex)
	}
}

func TestRenderSceneSourcePolicy(t *testing.T) {
	store, _ := setupDirStore(t)
	seedSource(t, store, 2)

	engine := &fakeEngine{}
	r := New(store, engine, fakeProber{}, testOptions(), nil)

	scene := project.Scene{ID: 2, AudioPriority: project.AudioSource}
	if err := r.RenderScene(context.Background(), scene); err != nil {
		t.Fatal(err)
	}

	req := engine.requests[0]
	if len(req.Inputs) != 1 {
		t.Fatalf("source policy should use one input, got %d", len(req.Inputs))
	}
	if req.Maps[1] != "0:a?" {
		t.Errorf("audio map = %q, want optional source audio", req.Maps[1])
	}
	if strings.Contains(req.FilterComplex, "amix") {
		t.Error("source policy must not mix audio")
	}
	if !strings.Contains(req.FilterComplex, "scale=1920:1080:force_original_aspect_ratio=increase") {
		t.Errorf("missing visual normalization: %s", req.FilterComplex)
	}
}

func TestRenderSceneMixPolicy(t *testing.T) {
	store, _ := setupDirStore(t)
	seedSource(t, store, 3)
	seedNarration(t, store, 3)

	engine := &fakeEngine{}
	r := New(store, engine, fakeProber{}, testOptions(), nil)

	scene := project.Scene{ID: 3, AudioPriority: project.AudioMix}
	if err := r.RenderScene(context.Background(), scene); err != nil {
		t.Fatal(err)
	}

	graph := engine.requests[0].FilterComplex
	if !strings.Contains(graph, "volume=0.8") || !strings.Contains(graph, "volume=0.2") {
		t.Errorf("mix weights missing: %s", graph)
	}
	if !strings.Contains(graph, "amix=inputs=2:duration=longest") {
		t.Errorf("amix missing: %s", graph)
	}
}

func TestRenderSceneMixFallsBackWithoutNarration(t *testing.T) {
	store, _ := setupDirStore(t)
	seedSource(t, store, 4)

	engine := &fakeEngine{}
	r := New(store, engine, fakeProber{}, testOptions(), nil)

	scene := project.Scene{ID: 4, AudioPriority: project.AudioMix}
	if err := r.RenderScene(context.Background(), scene); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(engine.requests[0].FilterComplex, "amix") {
		t.Error("should fall back to source policy without narration")
	}
}

func TestRenderSceneIdempotent(t *testing.T) {
	store := artifact.NewMemStore()
	store.SeedValid(artifact.Key{Kind: artifact.Clip, Scene: 5})

	engine := &fakeEngine{}
	r := New(store, engine, fakeProber{}, testOptions(), nil)

	if err := r.RenderScene(context.Background(), project.Scene{ID: 5}); err != nil {
		t.Fatal(err)
	}
	if len(engine.requests) != 0 {
		t.Errorf("existing clip must short-circuit, engine ran %d times", len(engine.requests))
	}
}

func TestRenderSceneBurnsCaptions(t *testing.T) {
	store, _ := setupDirStore(t)
	seedSource(t, store, 6)
	seedNarration(t, store, 6)
	captionPath := store.Path(artifact.Key{Kind: artifact.Caption, Scene: 6})
	if err := os.WriteFile(captionPath, []byte("WEBVTT\n\n00:00.000 --> 00:01.000\nhi\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	engine := &fakeEngine{}
	probe := fakeProber{durations: map[string]float64{
		store.Path(artifact.Key{Kind: artifact.SourceVideo, Scene: 6}): 10,
		store.Path(artifact.Key{Kind: artifact.Narration, Scene: 6}):   8,
	}}
	r := New(store, engine, probe, testOptions(), nil)

	if err := r.RenderScene(context.Background(), project.Scene{ID: 6}); err != nil {
		t.Fatal(err)
	}

	if len(engine.requests) != 2 {
		t.Fatalf("expected base + caption passes, got %d", len(engine.requests))
	}
	capReq := engine.requests[1]
	if !strings.Contains(capReq.VideoFilter, "subtitles='") || !strings.Contains(capReq.VideoFilter, "force_style='Fontname=Arial,FontSize=14") {
		t.Errorf("caption filter = %s", capReq.VideoFilter)
	}
	if joined := joinedArgs(capReq); !strings.Contains(joined, "-c:a copy") {
		t.Errorf("caption pass must stream-copy audio: %s", joined)
	}
	// Temp file is cleaned up on success.
	if _, err := os.Stat(strings.TrimSuffix(store.Path(artifact.Key{Kind: artifact.Clip, Scene: 6}), ".mp4") + "_temp.mp4"); !os.IsNotExist(err) {
		t.Error("temp file should be removed after caption burn")
	}
}

func TestRenderSceneSkipsCaptionPassWithoutCaptions(t *testing.T) {
	store, _ := setupDirStore(t)
	seedSource(t, store, 7)
	seedNarration(t, store, 7)

	engine := &fakeEngine{}
	probe := fakeProber{durations: map[string]float64{
		store.Path(artifact.Key{Kind: artifact.SourceVideo, Scene: 7}): 10,
		store.Path(artifact.Key{Kind: artifact.Narration, Scene: 7}):   8,
	}}
	r := New(store, engine, probe, testOptions(), nil)

	if err := r.RenderScene(context.Background(), project.Scene{ID: 7}); err != nil {
		t.Fatal(err)
	}
	if len(engine.requests) != 1 {
		t.Fatalf("no caption pass expected, got %d engine calls", len(engine.requests))
	}
	if !store.Exists(artifact.Key{Kind: artifact.Clip, Scene: 7}) {
		t.Error("temp render should be promoted to the clip path")
	}
}

func TestRenderSceneFailureLeavesTemp(t *testing.T) {
	store, _ := setupDirStore(t)
	seedSource(t, store, 8)
	seedNarration(t, store, 8)
	captionPath := store.Path(artifact.Key{Kind: artifact.Caption, Scene: 8})
	if err := os.WriteFile(captionPath, []byte("WEBVTT\n\nbody here"), 0o644); err != nil {
		t.Fatal(err)
	}

	engine := &captionFailEngine{}
	probe := fakeProber{durations: map[string]float64{
		store.Path(artifact.Key{Kind: artifact.SourceVideo, Scene: 8}): 10,
		store.Path(artifact.Key{Kind: artifact.Narration, Scene: 8}):   8,
	}}
	r := New(store, engine, probe, testOptions(), nil)

	err := r.RenderScene(context.Background(), project.Scene{ID: 8})
	if err == nil {
		t.Fatal("expected caption pass failure")
	}

	tempPath := strings.TrimSuffix(store.Path(artifact.Key{Kind: artifact.Clip, Scene: 8}), ".mp4") + "_temp.mp4"
	if _, statErr := os.Stat(tempPath); statErr != nil {
		t.Error("temp file must be left in place after a failure")
	}
}

// captionFailEngine succeeds on the base pass and fails on the caption pass.
type captionFailEngine struct {
	calls int
}

func (e *captionFailEngine) Run(_ context.Context, req ffmpeg.Request) error {
	e.calls++
	if e.calls == 1 {
		return os.WriteFile(req.Output, bytes.Repeat([]byte{0x42}, 2*1024*1024), 0o644)
	}
	return errors.New("subtitle filter blew up")
}

func TestRenderAllBlocksOnMissingSources(t *testing.T) {
	store := artifact.NewMemStore()
	store.SeedValid(artifact.Key{Kind: artifact.SourceVideo, Scene: 1})

	engine := &fakeEngine{}
	r := New(store, engine, fakeProber{}, testOptions(), nil)

	scenes := []project.Scene{{ID: 1}, {ID: 2}, {ID: 3}}
	_, err := r.RenderAll(context.Background(), scenes)
	if err == nil {
		t.Fatal("missing sources must block the whole chapter")
	}
	if !strings.Contains(err.Error(), "[2 3]") {
		t.Errorf("error should name missing scenes: %v", err)
	}
	if len(engine.requests) != 0 {
		t.Error("nothing should render when the input gate fails")
	}
}

func TestRenderAllAggregatesFailures(t *testing.T) {
	store, _ := setupDirStore(t)
	var probe fakeProber
	probe.durations = map[string]float64{}
	for id := 1; id <= 3; id++ {
		videoPath := seedSource(t, store, id)
		audioPath := seedNarration(t, store, id)
		probe.durations[videoPath] = 10
		probe.durations[audioPath] = 8
	}
	// Scene 2's narration probes unreadable, which fails that scene only.
	probe.durations[store.Path(artifact.Key{Kind: artifact.Narration, Scene: 2})] = 0

	r := New(store, &fakeEngine{}, probe, testOptions(), nil)

	summary, err := r.RenderAll(context.Background(), []project.Scene{{ID: 1}, {ID: 2}, {ID: 3}})
	if err != nil {
		t.Fatal(err)
	}
	if summary.OK() {
		t.Error("summary should not be OK with a failed scene")
	}
	if summary.Rendered != 2 {
		t.Errorf("rendered = %d, want 2", summary.Rendered)
	}
	if got := summary.FailedScenes(); len(got) != 1 || got[0] != 2 {
		t.Errorf("failed scenes = %v", got)
	}
}

func TestVisualChainShortsFormat(t *testing.T) {
	opts := testOptions()
	opts.Format = project.Portrait

	store, _ := setupDirStore(t)
	seedSource(t, store, 1)

	engine := &fakeEngine{}
	r := New(store, engine, fakeProber{}, opts, nil)
	if err := r.RenderScene(context.Background(), project.Scene{ID: 1, AudioPriority: project.AudioSource}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(engine.requests[0].FilterComplex, "scale=1080:1920") {
		t.Errorf("portrait scale missing: %s", engine.requests[0].FilterComplex)
	}
}

func TestEscapeFilterPath(t *testing.T) {
	got := escapeFilterPath("/tmp/it's:here.vtt")
	if !strings.Contains(got, `\:here`) || !strings.Contains(got, `it\'s`) {
		t.Errorf("escaped = %q", got)
	}
}

func TestFormatSeconds(t *testing.T) {
	if got := formatSeconds(5); got != "5" {
		t.Errorf("formatSeconds(5) = %q", got)
	}
	if got := formatSeconds(7.6); got != "7.6" {
		t.Errorf("formatSeconds(7.6) = %q", got)
	}
	if got := fmt.Sprint(formatSeconds(8.0 / 5.0)); got != "1.6" {
		t.Errorf("speed format = %q", got)
	}
}
