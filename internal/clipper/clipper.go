// Package clipper implements the Clip Extractor: it invokes an
// external audio tool as a sub-process to materialize a sample-accurate
// 16 kHz mono PCM slice of a source episode's audio for one segment.
package clipper

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/wav"

	"github.com/jmylchreest/transcribecore/internal/ffmpeg"
	"github.com/jmylchreest/transcribecore/internal/storage"
)

// expectedSampleRate, expectedChannels, and expectedBitDepth are the PCM
// parameters every clip must carry so the ASR Adapter never has to
// resample.
const (
	expectedSampleRate = 16000
	expectedChannels   = 1
	expectedBitDepth   = 16
)

// ErrMalformedClip indicates ffmpeg produced a WAV file whose header does
// not match the requested PCM parameters.
var ErrMalformedClip = errors.New("extracted clip does not match the requested PCM format")

// epsilon tolerates floating-point drift when validating that a requested
// range does not run past the source's reported duration.
const epsilon = 0.5

// ErrSourceMissing indicates the source audio file no longer exists on
// disk — a fatal condition, not retryable by re-running the same clip.
var ErrSourceMissing = errors.New("source audio file does not exist")

// ErrInvalidRange indicates the requested [start, start+duration) range is
// not a valid non-empty sub-range of the source audio.
var ErrInvalidRange = errors.New("invalid clip range")

// Extractor produces WAV clips from a source audio file.
type Extractor interface {
	// Extract produces a file under the extractor's temp directory
	// containing exactly [start, start+duration) of sourcePath, re-encoded
	// as 16 kHz mono signed-16-bit-LE PCM WAV. The returned path is
	// sandbox-relative; the caller owns its deletion.
	Extract(ctx context.Context, sourcePath string, start, duration, sourceDuration float64) (clipRelPath string, err error)
}

// FFmpegExtractor is the concrete Extractor backed by an ffmpeg sub-process.
type FFmpegExtractor struct {
	binary  string
	sandbox *storage.Sandbox
	timeout time.Duration
}

// NewFFmpegExtractor creates an Extractor that writes clips into sandbox
// and bounds each extraction by timeout (recommended 30s).
func NewFFmpegExtractor(binary string, sandbox *storage.Sandbox, timeout time.Duration) *FFmpegExtractor {
	return &FFmpegExtractor{binary: binary, sandbox: sandbox, timeout: timeout}
}

// Extract implements Extractor.
func (e *FFmpegExtractor) Extract(ctx context.Context, sourcePath string, start, duration, sourceDuration float64) (string, error) {
	if _, err := os.Stat(sourcePath); err != nil {
		if os.IsNotExist(err) {
			return "", ErrSourceMissing
		}
		return "", fmt.Errorf("stat source audio: %w", err)
	}
	if start < 0 || duration <= 0 || start+duration > sourceDuration+epsilon {
		return "", ErrInvalidRange
	}

	relPath := clipFileName(sourcePath, start, duration)
	if err := e.sandbox.MkdirAll("."); err != nil {
		return "", fmt.Errorf("preparing clip directory: %w", err)
	}
	outPath, err := e.sandbox.ResolvePath(relPath)
	if err != nil {
		return "", fmt.Errorf("resolving clip path: %w", err)
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if e.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := ffmpeg.NewCommandBuilder(e.binary).
		HideBanner().
		Overwrite().
		Seek(secondsToDuration(start)).
		Input(sourcePath).
		Duration(secondsToDuration(duration)).
		NoVideo().
		SampleRate(16000).
		AudioChannels(1).
		AudioCodec("pcm_s16le").
		OutputFormat("wav").
		Output(outPath)

	if err := cmd.Run(runCtx); err != nil {
		return "", fmt.Errorf("extracting clip: %w", err)
	}

	if err := validateClipFormat(outPath); err != nil {
		return "", err
	}

	return relPath, nil
}

// validateClipFormat opens the just-extracted WAV file and checks its
// header against the PCM parameters the ASR Adapter requires, catching a
// misconfigured or mismatched ffmpeg binary before a worker ever submits
// the clip for transcription.
func validateClipFormat(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening extracted clip: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return fmt.Errorf("%w: not a valid WAV file", ErrMalformedClip)
	}
	decoder.ReadInfo()

	if decoder.SampleRate != expectedSampleRate || decoder.NumChans != expectedChannels || decoder.BitDepth != expectedBitDepth {
		return fmt.Errorf("%w: got sample_rate=%d channels=%d bit_depth=%d",
			ErrMalformedClip, decoder.SampleRate, decoder.NumChans, decoder.BitDepth)
	}
	return nil
}

// clipFileName encodes (start, duration, source_stem) so recovery can
// optionally detect pre-existing clips; it must never be treated as the
// authoritative pointer — AudioSegment.TempClipPath is.
func clipFileName(sourcePath string, start, duration float64) string {
	stem := filepath.Base(sourcePath)
	ext := filepath.Ext(stem)
	stem = stem[:len(stem)-len(ext)]
	return fmt.Sprintf("%s_%010.3f_%08.3f.wav", stem, start, duration)
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(math.Round(seconds*1000)) * time.Millisecond
}
