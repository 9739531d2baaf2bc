// Package gemini wraps the Gemini Files and content APIs for video analysis.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// State is the remote processing state of an uploaded file.
type State string

const (
	StateProcessing State = "PROCESSING"
	StateActive     State = "ACTIVE"
	StateFailed     State = "FAILED"
)

// FileHandle is the service's registered representation of an uploaded video.
// Each Get returns a fresh snapshot; handles are never mutated locally.
type FileHandle struct {
	Name     string
	URI      string
	MIMEType string
	State    State
}

// The analysis instruction is fixed; the model is constrained to JSON output
// so the security scanner can parse main_subject / key_events / overall_summary.
const analysisPrompt = "Please analyze this video and provide:\n" +
	"1. Main subject/topic\n" +
	"2. Key events and timestamps\n" +
	"3. Overall summary"

// FileService talks to the Gemini API on behalf of the analysis pipeline.
type FileService struct {
	client *genai.Client
	model  string
}

func NewFileService(ctx context.Context, apiKey, model string) (*FileService, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &FileService{client: client, model: model}, nil
}

// Upload registers a local file with the Gemini Files API.
func (s *FileService) Upload(ctx context.Context, path, mimeType, displayName string) (*FileHandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload source: %w", err)
	}
	defer f.Close()

	start := time.Now()
	file, err := s.client.Files.Upload(ctx, f, &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: displayName,
	})
	if err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}
	log.Debug().
		Str("name", file.Name).
		Str("uri", file.URI).
		Dur("upload_duration", time.Since(start)).
		Msg("video registered with Gemini Files API")
	return toHandle(file), nil
}

// Get fetches a fresh snapshot of the file's processing state.
func (s *FileService) Get(ctx context.Context, name string) (*FileHandle, error) {
	file, err := s.client.Files.Get(ctx, name, nil)
	if err != nil {
		return nil, fmt.Errorf("get file state: %w", err)
	}
	return toHandle(file), nil
}

// AnalyzeVideo runs a single-turn structured analysis of an ACTIVE remote file
// and returns the raw JSON text the model produced.
func (s *FileService) AnalyzeVideo(ctx context.Context, file *FileHandle) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(1.0)),
		TopP:             genai.Ptr(float32(0.95)),
		TopK:             genai.Ptr(float32(40)),
		MaxOutputTokens:  8192,
		ResponseMIMEType: "application/json",
	}
	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{FileData: &genai.FileData{FileURI: file.URI, MIMEType: file.MIMEType}},
			{Text: analysisPrompt},
		},
	}}

	start := time.Now()
	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("received empty response from Gemini API")
	}
	text := resp.Text()
	log.Debug().
		Int("response_length", len(text)).
		Dur("duration", time.Since(start)).
		Msg("video analysis response received")
	return text, nil
}

func toHandle(f *genai.File) *FileHandle {
	return &FileHandle{
		Name:     f.Name,
		URI:      f.URI,
		MIMEType: f.MIMEType,
		State:    State(f.State),
	}
}
