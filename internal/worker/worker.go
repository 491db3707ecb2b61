// Package worker implements the Segment Worker: the single-slice
// pipeline that drives one AudioSegment through extract -> transcribe ->
// persist -> finalize, translating failures into state transitions instead
// of propagating them to its caller.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jmylchreest/transcribecore/internal/clipper"
	"github.com/jmylchreest/transcribecore/internal/cuestore"
	"github.com/jmylchreest/transcribecore/internal/models"
	"github.com/jmylchreest/transcribecore/internal/repository"
	"github.com/jmylchreest/transcribecore/internal/segment"
	"github.com/jmylchreest/transcribecore/internal/storage"
)

// Transcriber is the subset of the ASR Adapter the worker calls directly.
type Transcriber interface {
	Transcribe(ctx context.Context, clipPath, languageHint string, enableDiarization bool) ([]models.RawCue, error)
}

// Result reports the outcome of driving one segment through the pipeline.
type Result struct {
	SegmentID models.ULID
	Status    models.SegmentStatus
	CueCount  int
	// Cause holds the underlying transient-resource error when Status is
	// "failed"; it is already recorded on the segment row and is returned
	// here only so callers can log it without a second lookup.
	Cause error
}

// Worker drives single AudioSegments through the extract -> transcribe ->
// persist -> finalize pipeline. A Worker is stateless between calls; all state lives in the
// database rows it reads and writes.
type Worker struct {
	episodes  repository.EpisodeRepository
	segments  repository.AudioSegmentRepository
	extractor clipper.Extractor
	clipDir   *storage.Sandbox
	asr       Transcriber
	cues      *cuestore.Store

	maxRetries           int
	defaultLanguage      string
	diarizationEnabled   bool
	asrTimeoutMultiplier int

	logger *slog.Logger
}

// Config bundles the process-wide constants the worker consults.
type Config struct {
	MaxRetries           int
	DefaultLanguage      string
	DiarizationEnabled   bool
	ASRTimeoutMultiplier int
}

// New creates a Worker. clipDir resolves the sandbox-relative paths stored
// in AudioSegment.TempClipPath to absolute paths before the worker touches
// them on disk.
func New(
	episodes repository.EpisodeRepository,
	segments repository.AudioSegmentRepository,
	extractor clipper.Extractor,
	clipDir *storage.Sandbox,
	asrAdapter Transcriber,
	cues *cuestore.Store,
	cfg Config,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		episodes:             episodes,
		segments:             segments,
		extractor:            extractor,
		clipDir:              clipDir,
		asr:                  asrAdapter,
		cues:                 cues,
		maxRetries:           cfg.MaxRetries,
		defaultLanguage:      cfg.DefaultLanguage,
		diarizationEnabled:   cfg.DiarizationEnabled,
		asrTimeoutMultiplier: cfg.ASRTimeoutMultiplier,
		logger:               logger,
	}
}

// RunSegment drives segmentID through the pipeline. A non-nil error means
// the operation was rejected outright (validation or preconditioned
// rejection) and no database mutation occurred. Any failure during
// extraction, transcription, or persistence is instead captured as the
// segment's "failed" state and reported via Result.Cause with a nil error
// return, per the "workers are independent" propagation policy.
func (w *Worker) RunSegment(ctx context.Context, segmentID models.ULID) (Result, error) {
	seg, err := w.segments.GetByID(ctx, segmentID)
	if err != nil {
		return Result{}, fmt.Errorf("loading segment: %w", err)
	}
	if seg == nil {
		return Result{}, fmt.Errorf("%w: segment %s not found", models.ErrSegmentIdentifierRequired, segmentID)
	}

	switch seg.Status {
	case models.SegmentStatusCompleted:
		count, err := w.cues.CountBySegment(ctx, seg.ID)
		if err != nil {
			return Result{}, err
		}
		return Result{SegmentID: seg.ID, Status: seg.Status, CueCount: int(count)}, nil
	case models.SegmentStatusProcessing:
		return Result{}, models.PreconditionError{
			Entity: "audio_segment", ID: seg.ID.String(), State: string(seg.Status),
			Message: "segment is already in progress",
		}
	case models.SegmentStatusFailed:
		if !seg.CanRetry(w.maxRetries) {
			return Result{}, models.PreconditionError{
				Entity: "audio_segment", ID: seg.ID.String(), State: string(seg.Status),
				Message: "retry_count has reached the maximum allowed retries",
			}
		}
	}

	claimed, err := w.segments.ClaimForProcessing(ctx, seg.ID, w.maxRetries)
	if err != nil {
		return Result{}, fmt.Errorf("claiming segment: %w", err)
	}
	if claimed == nil {
		return Result{}, models.PreconditionError{
			Entity: "audio_segment", ID: seg.ID.String(), State: string(seg.Status),
			Message: "segment was claimed by another worker",
		}
	}
	seg = claimed

	episode, err := w.episodes.GetByID(ctx, seg.EpisodeID)
	if err != nil {
		return Result{}, fmt.Errorf("loading episode: %w", err)
	}
	if episode == nil {
		return Result{}, fmt.Errorf("%w: episode %s not found", models.ErrEpisodeIDRequired, seg.EpisodeID)
	}

	if w.cancelled(ctx, episode) {
		return w.cancelSegment(ctx, seg)
	}

	if err := w.readyClip(ctx, seg, episode); err != nil {
		return w.failSegment(ctx, seg, err)
	}

	if w.cancelled(ctx, episode) {
		return w.cancelSegment(ctx, seg)
	}

	lang := episode.NormalizedLanguage(w.defaultLanguage)
	asrCtx := ctx
	var cancelASR context.CancelFunc
	if w.asrTimeoutMultiplier > 0 {
		timeout := time.Duration(seg.Duration()*float64(w.asrTimeoutMultiplier)) * time.Second
		asrCtx, cancelASR = context.WithTimeout(ctx, timeout)
		defer cancelASR()
	}

	clipAbsPath, err := w.clipDir.ResolvePath(*seg.TempClipPath)
	if err != nil {
		return w.failSegment(ctx, seg, fmt.Errorf("resolving clip path: %w", err))
	}

	rawCues, err := w.asr.Transcribe(asrCtx, clipAbsPath, lang, w.diarizationEnabled)
	if err != nil {
		return w.failSegment(ctx, seg, fmt.Errorf("asr transcription: %w", err))
	}

	if w.cancelled(ctx, episode) {
		return w.cancelSegment(ctx, seg)
	}

	if err := w.cues.ReplaceSegmentCues(ctx, seg, rawCues); err != nil {
		return w.failSegment(ctx, seg, err)
	}

	if w.cancelled(ctx, episode) {
		return w.cancelSegment(ctx, seg)
	}

	clipToRemove := seg.TempClipPath
	if err := segment.Complete(seg, models.Now()); err != nil {
		return Result{}, err
	}
	if err := w.segments.Update(ctx, seg); err != nil {
		return Result{}, fmt.Errorf("persisting completed segment: %w", err)
	}

	if clipToRemove != nil {
		if absPath, err := w.clipDir.ResolvePath(*clipToRemove); err != nil {
			w.logger.Warn("failed to resolve temp clip path for cleanup",
				slog.String("segment_id", seg.SegmentID), slog.String("path", *clipToRemove), slog.String("error", err.Error()))
		} else if err := os.Remove(absPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			w.logger.Warn("failed to remove temp clip after successful transcription",
				slog.String("segment_id", seg.SegmentID), slog.String("path", *clipToRemove), slog.String("error", err.Error()))
		}
	}

	return Result{SegmentID: seg.ID, Status: models.SegmentStatusCompleted, CueCount: len(rawCues)}, nil
}

// readyClip reuses an existing clip file if the
// segment already points at one, otherwise invoke the Clip Extractor and
// record the new path. seg.TempClipPath is sandbox-relative, so it is
// resolved to an absolute path before any direct filesystem check.
func (w *Worker) readyClip(ctx context.Context, seg *models.AudioSegment, episode *models.Episode) error {
	if seg.TempClipPath != nil {
		if absPath, err := w.clipDir.ResolvePath(*seg.TempClipPath); err == nil {
			if _, statErr := os.Stat(absPath); statErr == nil {
				return nil
			}
		}
	}

	relPath, err := w.extractor.Extract(ctx, episode.AudioPath, seg.StartTime, seg.Duration(), episode.DurationSeconds)
	if err != nil {
		return fmt.Errorf("extracting clip: %w", err)
	}
	segment.SetClipPath(seg, relPath)

	if err := w.segments.Update(ctx, seg); err != nil {
		return fmt.Errorf("persisting clip path: %w", err)
	}
	return nil
}

// cancelled reports whether an external actor has reset the episode's
// status back to "pending" while this worker was running.
func (w *Worker) cancelled(ctx context.Context, episode *models.Episode) bool {
	current, err := w.episodes.GetByID(ctx, episode.ID)
	if err != nil || current == nil {
		return false
	}
	return current.Status == models.TranscriptionStatusPending
}

func (w *Worker) cancelSegment(ctx context.Context, seg *models.AudioSegment) (Result, error) {
	if err := segment.Cancel(seg); err != nil {
		return Result{}, err
	}
	if err := w.segments.Update(ctx, seg); err != nil {
		return Result{}, fmt.Errorf("persisting cancelled segment: %w", err)
	}
	return Result{SegmentID: seg.ID, Status: models.SegmentStatusPending}, nil
}

// failSegment applies the processing -> failed transition for a
// transient-resource error and persists it; the caller never sees
// cause as a returned error, only as Result.Cause.
func (w *Worker) failSegment(ctx context.Context, seg *models.AudioSegment, cause error) (Result, error) {
	if err := segment.Fail(seg, cause.Error()); err != nil {
		return Result{}, err
	}
	if err := w.segments.Update(ctx, seg); err != nil {
		return Result{}, fmt.Errorf("persisting failed segment: %w", err)
	}
	w.logger.Warn("segment transcription failed",
		slog.String("segment_id", seg.SegmentID), slog.Int("retry_count", seg.RetryCount), slog.String("error", cause.Error()))
	return Result{SegmentID: seg.ID, Status: models.SegmentStatusFailed, Cause: cause}, nil
}
