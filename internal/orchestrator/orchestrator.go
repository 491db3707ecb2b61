// Package orchestrator implements the Episode Orchestrator: it
// creates an episode's virtual segments, schedules Segment Workers, and
// aggregates their outcomes into the episode's transcription status.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/transcribecore/internal/models"
	"github.com/jmylchreest/transcribecore/internal/repository"
	"github.com/jmylchreest/transcribecore/internal/segment"
	"github.com/jmylchreest/transcribecore/internal/worker"
)

// DiarizationLoader is the subset of the ASR Adapter the Orchestrator
// drives around episode boundaries: the diarization model is loaded and
// released by the Orchestrator around each episode, not per segment.
type DiarizationLoader interface {
	LoadDiarization(ctx context.Context) error
	ReleaseDiarization(ctx context.Context) error
}

// StartOptions configures one StartEpisode call.
type StartOptions struct {
	EnableDiarization bool
}

// Orchestrator drives episode-level transcription lifecycle.
type Orchestrator struct {
	episodes        repository.EpisodeRepository
	segments        repository.AudioSegmentRepository
	pool            *worker.Pool
	diarization     DiarizationLoader
	segmentDuration float64
	logger          *slog.Logger
}

// New creates an Orchestrator.
func New(
	episodes repository.EpisodeRepository,
	segments repository.AudioSegmentRepository,
	pool *worker.Pool,
	diarization DiarizationLoader,
	segmentDuration float64,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		episodes:        episodes,
		segments:        segments,
		pool:            pool,
		diarization:     diarization,
		segmentDuration: segmentDuration,
		logger:          logger,
	}
}

// StartEpisode runs an episode end to end: it ensures segments exist,
// marks the episode processing, optionally preloads diarization, dispatches
// every segment to the worker pool, and aggregates the outcome. It returns
// the episode's final transcription status.
func (o *Orchestrator) StartEpisode(ctx context.Context, episodeID models.ULID, opts StartOptions) (models.TranscriptionStatus, error) {
	episode, err := o.episodes.GetByID(ctx, episodeID)
	if err != nil {
		return "", fmt.Errorf("loading episode: %w", err)
	}
	if episode == nil {
		return "", fmt.Errorf("%w: episode %s not found", models.ErrEpisodeIDRequired, episodeID)
	}

	// Step 1: idempotence — an episode already processing returns its
	// current status rather than being started twice.
	if episode.Status == models.TranscriptionStatusProcessing {
		return episode.Status, nil
	}

	segments, err := o.ensureSegments(ctx, episode)
	if err != nil {
		return "", err
	}

	// Step 3.
	episode.Status = models.TranscriptionStatusProcessing
	if err := o.episodes.UpdateStatus(ctx, episode.ID, episode.Status); err != nil {
		return "", fmt.Errorf("marking episode processing: %w", err)
	}

	// Step 4: best-effort diarization preload.
	diarizationActive := false
	if opts.EnableDiarization && o.diarization != nil {
		if err := o.diarization.LoadDiarization(ctx); err != nil {
			o.logger.Warn("diarization model failed to load, continuing without diarization",
				slog.String("episode_id", episode.ID.String()), slog.String("error", err.Error()))
		} else {
			diarizationActive = true
		}
	}
	if diarizationActive {
		defer func() {
			if err := o.diarization.ReleaseDiarization(ctx); err != nil {
				o.logger.Warn("failed to release diarization model",
					slog.String("episode_id", episode.ID.String()), slog.String("error", err.Error()))
			}
		}()
	}

	// Steps 5-6: dispatch workers in index order and aggregate outcomes.
	ids := make([]models.ULID, len(segments))
	for i, s := range segments {
		ids[i] = s.ID
	}
	results, err := o.pool.RunAll(ctx, ids)
	if err != nil {
		return "", fmt.Errorf("running segment pool: %w", err)
	}

	finalStatus, err := o.aggregateStatus(ctx, episode.ID, results)
	if err != nil {
		return "", err
	}

	if err := o.episodes.UpdateStatus(ctx, episode.ID, finalStatus); err != nil {
		return "", fmt.Errorf("persisting final episode status: %w", err)
	}
	return finalStatus, nil
}

// ensureSegments reuses existing segments for the episode, or generates
// N = ⌈duration / SEGMENT_DURATION⌉ rows.
func (o *Orchestrator) ensureSegments(ctx context.Context, episode *models.Episode) ([]*models.AudioSegment, error) {
	existing, err := o.segments.ListByEpisode(ctx, episode.ID)
	if err != nil {
		return nil, fmt.Errorf("listing existing segments: %w", err)
	}
	if len(existing) > 0 {
		return existing, nil
	}

	total := episode.TotalSegments(o.segmentDuration)
	fresh := make([]*models.AudioSegment, 0, total)
	for i := 0; i < total; i++ {
		start := float64(i) * o.segmentDuration
		end := start + o.segmentDuration
		if end > episode.DurationSeconds || i == total-1 {
			end = episode.DurationSeconds
		}
		fresh = append(fresh, segment.New(episode.ID, i, start, end))
	}

	if err := o.segments.CreateBatch(ctx, fresh); err != nil {
		// A unique constraint violation on (episode_id, segment_index) means
		// a concurrent StartEpisode call won the race; reload and use its
		// segments instead of failing this call.
		existing, listErr := o.segments.ListByEpisode(ctx, episode.ID)
		if listErr != nil || len(existing) == 0 {
			return nil, fmt.Errorf("creating segments: %w", err)
		}
		return existing, nil
	}
	return fresh, nil
}

// aggregateStatus computes the final episode status from a completed
// batch of worker results. A segment left in
// "pending" after the batch indicates the episode was cancelled mid-flight.
func (o *Orchestrator) aggregateStatus(ctx context.Context, episodeID models.ULID, results []worker.Result) (models.TranscriptionStatus, error) {
	counts, err := o.segments.StatusCounts(ctx, episodeID)
	if err != nil {
		return "", fmt.Errorf("counting segment statuses: %w", err)
	}

	pending := counts[models.SegmentStatusPending]
	processing := counts[models.SegmentStatusProcessing]
	completed := counts[models.SegmentStatusCompleted]
	failed := counts[models.SegmentStatusFailed]

	if pending > 0 || processing > 0 {
		return models.TranscriptionStatusPending, nil
	}
	switch {
	case failed == 0 && completed > 0:
		return models.TranscriptionStatusCompleted, nil
	case failed > 0 && completed > 0:
		return models.TranscriptionStatusPartialFailed, nil
	case failed > 0 && completed == 0:
		return models.TranscriptionStatusFailed, nil
	default:
		return models.TranscriptionStatusPending, nil
	}
}

// RunSegment implements the on-demand single-segment entry point: it
// submits exactly one worker task and never changes episode.status
// synchronously.
func (o *Orchestrator) RunSegment(ctx context.Context, episodeID models.ULID, segmentIndex int) (worker.Result, error) {
	seg, err := o.segments.GetByEpisodeAndIndex(ctx, episodeID, segmentIndex)
	if err != nil {
		return worker.Result{}, fmt.Errorf("loading segment: %w", err)
	}
	if seg == nil {
		return worker.Result{}, fmt.Errorf("%w: segment %d for episode %s not found", models.ErrInvalidSegmentIndex, segmentIndex, episodeID)
	}
	return o.pool.RunOne(ctx, seg.ID)
}
