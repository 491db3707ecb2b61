// Package projector implements the Status Projector: a read-only view
// that turns an episode's raw segment status counts into the
// progress/ETA fields a status API exposes.
package projector

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jmylchreest/transcribecore/internal/models"
	"github.com/jmylchreest/transcribecore/internal/repository"
	"github.com/jmylchreest/transcribecore/pkg/duration"
)

// statusDisplay maps the internal status enum to the human-facing label
// used by every status surface, kept as a fixed table so the wording
// never drifts between call sites.
var statusDisplay = map[models.TranscriptionStatus]string{
	models.TranscriptionStatusPending:       "Queued",
	models.TranscriptionStatusProcessing:    "Transcribing",
	models.TranscriptionStatusCompleted:     "Completed",
	models.TranscriptionStatusPartialFailed: "Completed with errors",
	models.TranscriptionStatusFailed:        "Failed",
}

// Stats reports the number of segments in each terminal/non-terminal state.
type Stats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	Total      int64 `json:"total"`
}

// Snapshot is the projected status view for one episode.
type Snapshot struct {
	EpisodeID                 models.ULID                `json:"episode_id"`
	Status                    models.TranscriptionStatus `json:"status"`
	StatusDisplay              string                    `json:"status_display"`
	ProgressPercent            float64                   `json:"progress_percent"`
	EstimatedRemainingSeconds *float64                   `json:"estimated_remaining_seconds,omitempty"`
	LastUpdated                string                    `json:"last_updated"`
	Stats                      Stats                     `json:"stats"`
	// TranscriptionStartedAt is the earliest segment started_at across the
	// episode's segments, nil until at least one segment has started.
	TranscriptionStartedAt *time.Time `json:"transcription_started_at,omitempty"`
	// TranscriptionCompletedAt is the latest segment recognized_at, set only
	// once every one of the episode's segments has recognized_at populated.
	TranscriptionCompletedAt *time.Time `json:"transcription_completed_at,omitempty"`
}

// Projector builds Snapshots from repository state.
type Projector struct {
	episodes        repository.EpisodeRepository
	segments        repository.AudioSegmentRepository
	speedFactor     float64
	segmentDuration float64
}

// New creates a Projector. speedFactor is TRANSCRIBE_SPEED_FACTOR: the
// expected ratio of wall-clock transcription time to audio duration, used
// to estimate remaining time for segments still pending or processing.
// segmentDuration is the configured fixed segment length in seconds
// (SEGMENT_DURATION), used as the per-segment unit of remaining work instead
// of an episode-specific average.
func New(episodes repository.EpisodeRepository, segments repository.AudioSegmentRepository, speedFactor, segmentDuration float64) *Projector {
	return &Projector{episodes: episodes, segments: segments, speedFactor: speedFactor, segmentDuration: segmentDuration}
}

// Project builds the status Snapshot for one episode.
func (p *Projector) Project(ctx context.Context, episodeID models.ULID) (*Snapshot, error) {
	episode, err := p.episodes.GetByID(ctx, episodeID)
	if err != nil {
		return nil, fmt.Errorf("loading episode: %w", err)
	}
	if episode == nil {
		return nil, fmt.Errorf("%w: episode %s not found", models.ErrEpisodeIDRequired, episodeID)
	}

	counts, err := p.segments.StatusCounts(ctx, episodeID)
	if err != nil {
		return nil, fmt.Errorf("counting segment statuses: %w", err)
	}

	stats := Stats{
		Pending:    counts[models.SegmentStatusPending],
		Processing: counts[models.SegmentStatusProcessing],
		Completed:  counts[models.SegmentStatusCompleted],
		Failed:     counts[models.SegmentStatusFailed],
	}
	stats.Total = stats.Pending + stats.Processing + stats.Completed + stats.Failed

	segs, err := p.segments.ListByEpisode(ctx, episodeID)
	if err != nil {
		return nil, fmt.Errorf("listing segments: %w", err)
	}
	startedAt, completedAt := transcriptionTimestamps(segs)

	snapshot := &Snapshot{
		EpisodeID:                episodeID,
		Status:                   episode.Status,
		StatusDisplay:            statusDisplay[episode.Status],
		ProgressPercent:          progressPercent(stats),
		LastUpdated:              duration.FormatRelative(episode.UpdatedAt),
		Stats:                    stats,
		TranscriptionStartedAt:   startedAt,
		TranscriptionCompletedAt: completedAt,
	}

	if remaining := p.estimatedRemainingSeconds(stats); remaining != nil {
		snapshot.EstimatedRemainingSeconds = remaining
	}
	return snapshot, nil
}

// progressPercent is completed / total * 100, rounded to 2 decimals. A
// segment that has failed is not progress, only a terminal non-completion.
func progressPercent(s Stats) float64 {
	if s.Total == 0 {
		return 0
	}
	pct := (float64(s.Completed) / float64(s.Total)) * 100
	return math.Round(pct*100) / 100
}

// estimatedRemainingSeconds approximates remaining work as the number of
// non-terminal segments times the configured fixed segment duration, scaled
// by the configured speed factor. Returns nil once nothing remains (the
// episode is done).
func (p *Projector) estimatedRemainingSeconds(s Stats) *float64 {
	remainingSegments := s.Pending + s.Processing
	if remainingSegments == 0 || s.Total == 0 {
		return nil
	}
	factor := p.speedFactor
	if factor <= 0 {
		factor = 1
	}
	estimate := float64(remainingSegments) * p.segmentDuration * factor
	return &estimate
}

// transcriptionTimestamps derives an episode's transcription_started_at
// (earliest segment start) and transcription_completed_at (latest
// recognized_at, only once every segment has one) from its segment rows.
func transcriptionTimestamps(segs []*models.AudioSegment) (started, completed *time.Time) {
	if len(segs) == 0 {
		return nil, nil
	}
	allRecognized := true
	for _, s := range segs {
		if s.StartedAt != nil && (started == nil || s.StartedAt.Before(*started)) {
			started = s.StartedAt
		}
		if s.RecognizedAt == nil {
			allRecognized = false
			continue
		}
		if completed == nil || s.RecognizedAt.After(*completed) {
			completed = s.RecognizedAt
		}
	}
	if !allRecognized {
		completed = nil
	}
	return started, completed
}
