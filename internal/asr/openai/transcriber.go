// Package openai implements the ASR Adapter's Transcriber capability
// against the hosted Whisper transcription API.
package openai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jmylchreest/transcribecore/internal/models"
)

// Transcriber calls the Whisper API to transcribe a clip with
// segment-level timestamps. It requires no local model load, so
// EnsureLoaded only validates that a credential is present.
type Transcriber struct {
	client    *openai.Client
	model     string
	authToken string
}

// New creates a Transcriber. modelName is the identifier passed to the API
// (e.g. "whisper-1"), configured via transcription.transcribe_model_name
// (env TRANSCRIBE_TRANSCRIPTION_TRANSCRIBE_MODEL_NAME).
func New(authToken, modelName string) *Transcriber {
	return &Transcriber{
		client:    openai.NewClient(authToken),
		model:     modelName,
		authToken: authToken,
	}
}

// EnsureLoaded validates the adapter has a credential to call the API.
// A hosted API has no local weights to load, so this is a cheap
// precondition check rather than a true model load.
func (t *Transcriber) EnsureLoaded(_ context.Context) error {
	if t.authToken == "" {
		return fmt.Errorf("asr auth token is required")
	}
	return nil
}

// Transcribe submits clipPath to the Whisper transcription endpoint and
// maps its verbose-JSON segments into raw, clip-relative cues.
func (t *Transcriber) Transcribe(ctx context.Context, clipPath, languageHint string) ([]models.RawCue, error) {
	req := openai.AudioRequest{
		Model:    t.model,
		FilePath: clipPath,
		Language: languageHint,
		Format:   openai.AudioResponseFormatVerboseJSON,
	}

	resp, err := t.client.CreateTranscription(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("calling whisper transcription: %w", err)
	}

	cues := make([]models.RawCue, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		cues = append(cues, models.RawCue{
			Start:   seg.Start,
			End:     seg.End,
			Speaker: "Unknown",
			Text:    seg.Text,
		})
	}
	return cues, nil
}
