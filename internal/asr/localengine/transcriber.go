// Package localengine implements the ASR Adapter's Transcriber capability
// against a local transcription binary invoked as a sub-process (e.g. a
// whisper.cpp-style CLI). Model loading failures here are fatal-process
// errors: a missing binary aborts startup rather than degrading.
package localengine

import (
	"context"
	"fmt"

	"github.com/jmylchreest/transcribecore/internal/models"
	"github.com/jmylchreest/transcribecore/internal/util"
)

// Transcriber shells out to a local transcription binary located via
// FindBinary. It is a stub: actual invocation and output parsing is engine
// specific and left to a concrete deployment, but the binary-presence
// check required by EnsureLoaded's fatal-at-startup contract is real.
type Transcriber struct {
	binaryName string
	envVar     string
	modelPath  string

	binaryPath string
}

// New creates a Transcriber that will locate binaryName (optionally
// overridden by envVar) and use the model weights at modelPath.
func New(binaryName, envVar, modelPath string) *Transcriber {
	return &Transcriber{binaryName: binaryName, envVar: envVar, modelPath: modelPath}
}

// EnsureLoaded locates the local engine binary. A missing binary is a
// fatal-process error: the engine cannot come up at all.
func (t *Transcriber) EnsureLoaded(_ context.Context) error {
	path, err := util.FindBinary(t.binaryName, t.envVar)
	if err != nil {
		return fmt.Errorf("local asr engine binary %q not found: %w", t.binaryName, err)
	}
	t.binaryPath = path
	return nil
}

// Transcribe is not implemented by this stub backend; wiring a specific
// local engine's CLI invocation and output format is deployment-specific.
func (t *Transcriber) Transcribe(_ context.Context, clipPath, _ string) ([]models.RawCue, error) {
	if t.binaryPath == "" {
		return nil, fmt.Errorf("local asr engine not loaded")
	}
	return nil, fmt.Errorf("local engine transcription for %q is not implemented by this backend", clipPath)
}
