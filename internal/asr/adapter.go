// Package asr defines the ASR Adapter: the process-wide, model-owning
// wrapper around a (possibly non-thread-safe) transcription engine and its
// optional diarization model.
package asr

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jmylchreest/transcribecore/internal/models"
)

// ErrNotLoaded indicates Transcribe was called before EnsureLoaded
// succeeded — a fatal, programming-error condition.
var ErrNotLoaded = errors.New("asr engine not loaded")

// Transcriber is the ASR engine capability consumed by the Adapter: a
// backend that turns a PCM WAV clip into raw, clip-relative cues. The
// language hint is the 2-letter prefix the Worker normalizes from the
// episode's language tag; engines that support forced alignment keyed by
// language should warm/evict their own cache inside Transcribe.
type Transcriber interface {
	EnsureLoaded(ctx context.Context) error
	Transcribe(ctx context.Context, clipPath, languageHint string) ([]models.RawCue, error)
}

// Diarizer is the optional speaker-attribution capability, loaded and
// released at episode boundaries by the Orchestrator rather than by
// individual workers.
type Diarizer interface {
	Load(ctx context.Context) error
	Release(ctx context.Context) error
	// Attribute assigns a Speaker label to each cue in place, returning the
	// updated slice. Cues left unattributed keep the "Unknown" default.
	Attribute(ctx context.Context, clipPath string, cues []models.RawCue) ([]models.RawCue, error)
}

// Adapter owns process-wide ASR model state and serializes concurrent
// Transcribe calls behind a single mutex: GPU-backed engines are typically
// not thread-safe, so only one worker may be inside the engine at a time.
// Lazy loads (EnsureLoaded, alignment-cache warm) happen inside the same
// critical section that performs the transcription call itself, rather
// than through a second, separately-acquired lock — this sidesteps the
// need for a true re-entrant mutex (Go's sync.Mutex is not reentrant).
type Adapter struct {
	transcriber Transcriber
	diarizer    Diarizer

	mu         sync.Mutex
	loaded     bool
	diarLoaded bool
}

// NewAdapter creates an Adapter around a Transcriber and optional Diarizer
// (nil if diarization is not configured).
func NewAdapter(transcriber Transcriber, diarizer Diarizer) *Adapter {
	return &Adapter{transcriber: transcriber, diarizer: diarizer}
}

// EnsureLoaded loads the transcription engine if not already loaded.
// Idempotent; called once at process startup.
func (a *Adapter) EnsureLoaded(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ensureLoadedLocked(ctx)
}

func (a *Adapter) ensureLoadedLocked(ctx context.Context) error {
	if a.loaded {
		return nil
	}
	if err := a.transcriber.EnsureLoaded(ctx); err != nil {
		return fmt.Errorf("loading asr engine: %w", err)
	}
	a.loaded = true
	return nil
}

// LoadDiarization loads the diarization model. Called by the Orchestrator
// at the start of an episode that requests diarization; a no-op if no
// Diarizer is configured.
func (a *Adapter) LoadDiarization(ctx context.Context) error {
	if a.diarizer == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.diarLoaded {
		return nil
	}
	if err := a.diarizer.Load(ctx); err != nil {
		return fmt.Errorf("loading diarization model: %w", err)
	}
	a.diarLoaded = true
	return nil
}

// ReleaseDiarization unloads the diarization model. Failures are
// silent-tolerable: logged by the caller, never propagated as a hard
// error from here beyond the wrapped message.
func (a *Adapter) ReleaseDiarization(ctx context.Context) error {
	if a.diarizer == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.diarLoaded {
		return nil
	}
	err := a.diarizer.Release(ctx)
	a.diarLoaded = false
	if err != nil {
		return fmt.Errorf("releasing diarization model: %w", err)
	}
	return nil
}

// Transcribe runs transcribe (and, when requested and available,
// diarization) on one clip, returning raw cues with clip-relative
// timestamps. An empty result is legal and is not an error.
func (a *Adapter) Transcribe(ctx context.Context, clipPath, languageHint string, enableDiarization bool) ([]models.RawCue, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureLoadedLocked(ctx); err != nil {
		return nil, err
	}
	if !a.loaded {
		return nil, ErrNotLoaded
	}

	cues, err := a.transcriber.Transcribe(ctx, clipPath, languageHint)
	if err != nil {
		return nil, fmt.Errorf("transcribing clip: %w", err)
	}

	if enableDiarization && a.diarizer != nil && a.diarLoaded {
		cues, err = a.diarizer.Attribute(ctx, clipPath, cues)
		if err != nil {
			return nil, fmt.Errorf("diarizing clip: %w", err)
		}
	}

	for i := range cues {
		if cues[i].Speaker == "" {
			cues[i].Speaker = "Unknown"
		}
	}
	return cues, nil
}
