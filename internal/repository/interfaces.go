// Package repository defines data access interfaces for episodes, audio
// segments, and transcript cues. All database access goes through these
// interfaces, enabling easy testing and database backend switching.
package repository

import (
	"context"
	"time"

	"github.com/jmylchreest/transcribecore/internal/models"
)

// EpisodeRepository defines operations for episode persistence.
type EpisodeRepository interface {
	Create(ctx context.Context, episode *models.Episode) error
	GetByID(ctx context.Context, id models.ULID) (*models.Episode, error)
	GetByFileHash(ctx context.Context, fileHash string) (*models.Episode, error)
	Update(ctx context.Context, episode *models.Episode) error
	// UpdateStatus sets only the transcription_status column, bypassing the
	// full-row Save so concurrent Orchestrator/Recovery/cancel writers never
	// clobber each other's unrelated fields.
	UpdateStatus(ctx context.Context, id models.ULID, status models.TranscriptionStatus) error
	Delete(ctx context.Context, id models.ULID) error
	// GetProcessing returns episodes whose status is "processing".
	GetProcessing(ctx context.Context) ([]*models.Episode, error)
	// ListAll returns every episode, used by Recovery's on-demand audit and
	// orphan sweep.
	ListAll(ctx context.Context) ([]*models.Episode, error)
}

// AudioSegmentRepository defines operations for audio segment persistence,
// including the per-driver claim logic the Segment Worker pool uses to
// avoid two workers picking up the same segment.
type AudioSegmentRepository interface {
	// CreateBatch inserts segments for a new episode inside one transaction.
	// A unique constraint on (episode_id, segment_index) makes concurrent
	// creation safe: one caller wins, the others get a unique-constraint
	// error and insert nothing.
	CreateBatch(ctx context.Context, segments []*models.AudioSegment) error
	GetByID(ctx context.Context, id models.ULID) (*models.AudioSegment, error)
	GetByEpisodeAndIndex(ctx context.Context, episodeID models.ULID, index int) (*models.AudioSegment, error)
	ListByEpisode(ctx context.Context, episodeID models.ULID) ([]*models.AudioSegment, error)
	Update(ctx context.Context, segment *models.AudioSegment) error
	// ClaimForProcessing atomically transitions one segment from
	// pending/failed(retryable) to processing, returning nil if no row
	// matched (already claimed, completed, or retry-capped).
	ClaimForProcessing(ctx context.Context, id models.ULID, maxRetries int) (*models.AudioSegment, error)
	// StaleProcessing returns segments in "processing" whose started_at
	// predates the cutoff — candidates for startup orphan demotion.
	StaleProcessing(ctx context.Context, cutoff time.Time) ([]*models.AudioSegment, error)
	// RecoverableByEpisode returns segments in {pending} ∪ {failed with
	// retry_count < maxRetries} for an episode, ordered by segment_index.
	RecoverableByEpisode(ctx context.Context, episodeID models.ULID, maxRetries int) ([]*models.AudioSegment, error)
	CountByEpisode(ctx context.Context, episodeID models.ULID) (int64, error)
	// StatusCounts returns the number of segments in each status for an
	// episode, used by the Status Projector.
	StatusCounts(ctx context.Context, episodeID models.ULID) (map[models.SegmentStatus]int64, error)
	// HasClipPath reports whether any segment currently records
	// relativePath as its temp_clip_path, used by the orphan clip sweeper
	// to avoid deleting a clip a worker is still using.
	HasClipPath(ctx context.Context, relativePath string) (bool, error)
}

// TranscriptCueRepository defines operations for transcript cue persistence.
type TranscriptCueRepository interface {
	// ReplaceSegmentCues deletes all cues for segmentID and bulk-inserts
	// cues within a single transaction, so a crash mid-retry never leaves a
	// mixed old/new cue set.
	ReplaceSegmentCues(ctx context.Context, segmentID models.ULID, cues []*models.TranscriptCue) error
	CountBySegment(ctx context.Context, segmentID models.ULID) (int64, error)
	RangeByEpisode(ctx context.Context, episodeID models.ULID) ([]*models.TranscriptCue, error)
}
