package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"vidsentry/internal/broadcast"
	"vidsentry/internal/gemini"
)

type fakeFileService struct {
	mu          sync.Mutex
	uploadState gemini.State
	getStates   []gemini.State // successive Get results; the last one repeats
	gets        int
	uploadErr   error
	getErr      error
	analyzeErr  error
	analysis    string
	uploadPath  string
	uploadName  string
	uploadMime  string
	onAnalyze   func()
}

func (f *fakeFileService) Upload(_ context.Context, path, mimeType, displayName string) (*gemini.FileHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.uploadPath = path
	f.uploadName = displayName
	f.uploadMime = mimeType
	return &gemini.FileHandle{Name: "files/test", URI: "gs://test", MIMEType: mimeType, State: f.uploadState}, nil
}

func (f *fakeFileService) Get(_ context.Context, name string) (*gemini.FileHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	idx := f.gets
	if idx >= len(f.getStates) {
		idx = len(f.getStates) - 1
	}
	f.gets++
	return &gemini.FileHandle{Name: name, URI: "gs://test", MIMEType: "video/mp4", State: f.getStates[idx]}, nil
}

func (f *fakeFileService) AnalyzeVideo(context.Context, *gemini.FileHandle) (string, error) {
	if f.onAnalyze != nil {
		f.onAnalyze()
	}
	if f.analyzeErr != nil {
		return "", f.analyzeErr
	}
	return f.analysis, nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []broadcast.Event
}

func (r *eventRecorder) Publish(evt broadcast.Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

func (r *eventRecorder) statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.Status)
	}
	return out
}

func newTestPipeline(t *testing.T, files FileService) (*Pipeline, *eventRecorder) {
	t.Helper()
	rec := &eventRecorder{}
	p := New(files, rec, t.TempDir())
	p.sleep = func(context.Context, time.Duration) error { return nil }
	return p, rec
}

func TestAnalyzeSuccessEventOrder(t *testing.T) {
	files := &fakeFileService{
		uploadState: gemini.StateProcessing,
		getStates:   []gemini.State{gemini.StateProcessing, gemini.StateProcessing, gemini.StateActive},
		analysis:    `{"main_subject":"a cat"}`,
	}
	p, rec := newTestPipeline(t, files)

	got, err := p.Analyze(context.Background(), []byte("video-bytes"), "clip.mp4", "video/mp4")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if got != files.analysis {
		t.Fatalf("unexpected analysis %q", got)
	}
	if files.uploadMime != "video/mp4" || files.uploadName != "clip.mp4" {
		t.Fatalf("upload got mime %q name %q", files.uploadMime, files.uploadName)
	}

	statuses := rec.statuses()
	if statuses[0] != broadcast.StatusStarted || statuses[1] != broadcast.StatusUploading {
		t.Fatalf("unexpected leading statuses %v", statuses)
	}
	if statuses[len(statuses)-2] != broadcast.StatusAnalyzing || statuses[len(statuses)-1] != broadcast.StatusCompleted {
		t.Fatalf("unexpected trailing statuses %v", statuses)
	}
	for _, s := range statuses[2 : len(statuses)-2] {
		if s != broadcast.StatusProcessing {
			t.Fatalf("expected only processing statuses in the middle, got %v", statuses)
		}
	}

	// Attempt counters must strictly increase from 1.
	want := 1
	for _, evt := range rec.events {
		var attempt, max int
		if _, err := fmt.Sscanf(evt.Message, "Processing video (attempt %d/%d)", &attempt, &max); err != nil {
			continue
		}
		if attempt != want {
			t.Fatalf("expected attempt %d, got message %q", want, evt.Message)
		}
		want++
	}
	if want != 4 {
		t.Fatalf("expected 3 poll attempts, saw %d", want-1)
	}

	// All events belong to the same invocation.
	inv := rec.events[0].InvocationID
	if inv == "" {
		t.Fatal("expected invocation id on events")
	}
	for _, evt := range rec.events {
		if evt.InvocationID != inv {
			t.Fatalf("mixed invocation ids: %q vs %q", inv, evt.InvocationID)
		}
	}
}

func TestAnalyzeRejectsEmptyPayload(t *testing.T) {
	files := &fakeFileService{}
	p, rec := newTestPipeline(t, files)

	_, err := p.Analyze(context.Background(), nil, "clip.mp4", "video/mp4")
	if !errors.Is(err, ErrNoVideo) {
		t.Fatalf("expected ErrNoVideo, got %v", err)
	}
	for _, s := range rec.statuses() {
		if s == broadcast.StatusUploading || s == broadcast.StatusProcessing {
			t.Fatalf("no uploading/processing events expected, got %v", rec.statuses())
		}
	}
	last := rec.events[len(rec.events)-1]
	if last.Status != broadcast.StatusError {
		t.Fatalf("expected trailing error event, got %+v", last)
	}
}

func TestPollCeiling(t *testing.T) {
	files := &fakeFileService{
		uploadState: gemini.StateProcessing,
		getStates:   []gemini.State{gemini.StateProcessing},
	}
	p, rec := newTestPipeline(t, files)

	_, err := p.Analyze(context.Background(), []byte("x"), "stuck.mp4", "video/mp4")
	if err == nil {
		t.Fatal("expected poll ceiling failure")
	}
	if !strings.Contains(err.Error(), string(gemini.StateProcessing)) {
		t.Fatalf("error should preserve terminal state, got %v", err)
	}
	if files.gets != maxPollAttempts {
		t.Fatalf("expected exactly %d polls, got %d", maxPollAttempts, files.gets)
	}

	attempts := 0
	for _, evt := range rec.events {
		if strings.HasPrefix(evt.Message, "Processing video (attempt ") {
			attempts++
		}
	}
	if attempts != maxPollAttempts {
		t.Fatalf("expected %d attempt events, got %d", maxPollAttempts, attempts)
	}
}

func TestRemoteFailureState(t *testing.T) {
	files := &fakeFileService{
		uploadState: gemini.StateProcessing,
		getStates:   []gemini.State{gemini.StateFailed},
	}
	p, _ := newTestPipeline(t, files)

	_, err := p.Analyze(context.Background(), []byte("x"), "bad.mp4", "video/mp4")
	if err == nil || !strings.Contains(err.Error(), string(gemini.StateFailed)) {
		t.Fatalf("expected failure mentioning FAILED state, got %v", err)
	}
}

func TestCleanupFailureDoesNotAffectResult(t *testing.T) {
	files := &fakeFileService{
		uploadState: gemini.StateActive,
		analysis:    `{"overall_summary":"fine"}`,
	}
	p, _ := newTestPipeline(t, files)

	// Swap the temp file for a non-empty directory so os.Remove fails.
	files.onAnalyze = func() {
		if err := os.Remove(files.uploadPath); err != nil {
			t.Fatalf("remove temp file: %v", err)
		}
		if err := os.MkdirAll(filepath.Join(files.uploadPath, "child"), 0o755); err != nil {
			t.Fatalf("mkdir in place of temp file: %v", err)
		}
	}

	got, err := p.Analyze(context.Background(), []byte("x"), "clip.mp4", "video/mp4")
	if err != nil {
		t.Fatalf("cleanup failure must not fail the invocation: %v", err)
	}
	if got != files.analysis {
		t.Fatalf("unexpected analysis %q", got)
	}
}

func TestPersistDistinctPaths(t *testing.T) {
	p, _ := newTestPipeline(t, &fakeFileService{})

	first, err := p.persist([]byte("a"), "same.mp4")
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	second, err := p.persist([]byte("b"), "same.mp4")
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct paths, both %q", first)
	}
	for _, path := range []string{first, second} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("stat %s: %v", path, err)
		}
	}
}

func TestUploadErrorEmitsErrorEvent(t *testing.T) {
	files := &fakeFileService{uploadErr: errors.New("quota exceeded")}
	p, rec := newTestPipeline(t, files)

	_, err := p.Analyze(context.Background(), []byte("x"), "clip.mp4", "video/mp4")
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected upload error, got %v", err)
	}
	last := rec.events[len(rec.events)-1]
	if last.Status != broadcast.StatusError || !strings.Contains(last.Message, "quota exceeded") {
		t.Fatalf("expected error event with detail, got %+v", last)
	}
}
