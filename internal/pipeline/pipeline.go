// Package pipeline drives the video analysis workflow: persist the upload,
// register it with the remote inference service, poll until processing
// finishes, run the content analysis, and clean up.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"vidsentry/internal/broadcast"
	"vidsentry/internal/gemini"
)

const (
	pollInterval    = 10 * time.Second
	maxPollAttempts = 30
)

// ErrNoVideo is returned when an invocation carries no video payload.
var ErrNoVideo = errors.New("no video file provided")

// FileService is the remote inference collaborator the pipeline drives.
type FileService interface {
	Upload(ctx context.Context, path, mimeType, displayName string) (*gemini.FileHandle, error)
	Get(ctx context.Context, name string) (*gemini.FileHandle, error)
	AnalyzeVideo(ctx context.Context, file *gemini.FileHandle) (string, error)
}

// Publisher receives progress events; the broadcast hub satisfies it.
type Publisher interface {
	Publish(broadcast.Event)
}

// Pipeline runs analysis invocations. Invocations may run concurrently; each
// owns exactly one temp file and one remote handle for its lifetime.
type Pipeline struct {
	files     FileService
	events    Publisher
	uploadDir string

	// sleep is replaceable so tests can run the poll loop without wall-clock waits.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(files FileService, events Publisher, uploadDir string) *Pipeline {
	return &Pipeline{
		files:     files,
		events:    events,
		uploadDir: uploadDir,
		sleep:     sleepCtx,
	}
}

// Analyze runs one end-to-end invocation and returns the raw analysis text.
func (p *Pipeline) Analyze(ctx context.Context, data []byte, originalName, mimeType string) (string, error) {
	inv := uuid.NewString()
	emit := func(status, message string) {
		p.events.Publish(broadcast.Event{Status: status, Message: message, InvocationID: inv})
	}
	emit(broadcast.StatusStarted, "Starting video analysis")

	if len(data) == 0 {
		return "", p.fail(emit, inv, ErrNoVideo)
	}

	emit(broadcast.StatusUploading, "Uploading video to server")
	path, err := p.persist(data, originalName)
	if err != nil {
		return "", p.fail(emit, inv, err)
	}
	defer p.cleanup(inv, path)

	emit(broadcast.StatusProcessing, "Uploading to Gemini")
	handle, err := p.files.Upload(ctx, path, mimeType, originalName)
	if err != nil {
		return "", p.fail(emit, inv, fmt.Errorf("register remote file: %w", err))
	}

	emit(broadcast.StatusProcessing, "Waiting for Gemini processing")
	handle, err = p.waitForActive(ctx, handle, emit)
	if err != nil {
		return "", p.fail(emit, inv, err)
	}

	emit(broadcast.StatusAnalyzing, "Analyzing video content")
	analysis, err := p.files.AnalyzeVideo(ctx, handle)
	if err != nil {
		return "", p.fail(emit, inv, fmt.Errorf("analyze video: %w", err))
	}

	emit(broadcast.StatusCompleted, "Analysis completed")
	log.Info().Str("invocation_id", inv).Int("analysis_length", len(analysis)).Msg("video analysis completed")
	return analysis, nil
}

// persist writes the payload under the upload directory. The timestamp prefix
// keeps concurrent invocations with identical original names from colliding.
func (p *Pipeline) persist(data []byte, originalName string) (string, error) {
	if err := os.MkdirAll(p.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	name := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), filepath.Base(originalName))
	path := filepath.Join(p.uploadDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return path, nil
}

// waitForActive polls the remote handle while it reports PROCESSING, up to
// maxPollAttempts checks at pollInterval apart. The terminal remote state is
// preserved in the error text; a stuck file and an explicit remote failure
// surface as the same error kind.
func (p *Pipeline) waitForActive(ctx context.Context, handle *gemini.FileHandle, emit func(status, message string)) (*gemini.FileHandle, error) {
	for attempt := 1; handle.State == gemini.StateProcessing && attempt <= maxPollAttempts; attempt++ {
		emit(broadcast.StatusProcessing, fmt.Sprintf("Processing video (attempt %d/%d)", attempt, maxPollAttempts))
		if err := p.sleep(ctx, pollInterval); err != nil {
			return nil, err
		}
		fresh, err := p.files.Get(ctx, handle.Name)
		if err != nil {
			return nil, fmt.Errorf("poll remote file: %w", err)
		}
		handle = fresh
	}
	if handle.State != gemini.StateActive {
		return nil, fmt.Errorf("file processing failed or timeout reached (state %s)", handle.State)
	}
	return handle, nil
}

// cleanup deletes the invocation's temp file. Failure is logged, never surfaced.
func (p *Pipeline) cleanup(inv, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Error().Err(err).Str("invocation_id", inv).Str("path", path).Msg("cleanup temp file failed")
	}
}

func (p *Pipeline) fail(emit func(status, message string), inv string, err error) error {
	emit(broadcast.StatusError, fmt.Sprintf("Error: %s", err.Error()))
	log.Error().Err(err).Str("invocation_id", inv).Msg("video analysis failed")
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
