package models

import (
	"fmt"
	"strings"
	"time"
)

// SegmentStatus is the per-segment lifecycle state.
type SegmentStatus string

const (
	SegmentStatusPending    SegmentStatus = "pending"
	SegmentStatusProcessing SegmentStatus = "processing"
	SegmentStatusCompleted  SegmentStatus = "completed"
	SegmentStatusFailed     SegmentStatus = "failed"
)

// IsValid reports whether s is one of the recognized segment statuses.
func (s SegmentStatus) IsValid() bool {
	switch s {
	case SegmentStatusPending, SegmentStatusProcessing, SegmentStatusCompleted, SegmentStatusFailed:
		return true
	}
	return false
}

// AudioSegment is a virtual, fixed-duration slice of an Episode's audio.
// It does not correspond to a standing file on disk until the Clip
// Extractor materializes TempClipPath.
type AudioSegment struct {
	BaseModel

	EpisodeID    ULID          `gorm:"index:idx_segment_episode_index,unique,priority:1;index:idx_segment_episode_status,priority:1;not null" json:"episode_id"`
	SegmentIndex int           `gorm:"index:idx_segment_episode_index,unique,priority:2;index:idx_segment_episode_status,priority:3;not null" json:"segment_index"`
	SegmentID    string        `gorm:"not null" json:"segment_id"`
	StartTime    float64       `gorm:"not null" json:"start_time"`
	EndTime      float64       `gorm:"not null" json:"end_time"`
	Status       SegmentStatus `gorm:"size:20;index:idx_segment_episode_status,priority:2;not null;default:pending" json:"status"`
	RetryCount   int           `gorm:"not null;default:0" json:"retry_count"`
	ErrorMessage *string       `json:"error_message,omitempty"`
	TempClipPath *string       `json:"temp_clip_path,omitempty"`
	StartedAt    *time.Time    `json:"started_at,omitempty"`
	RecognizedAt *time.Time    `json:"recognized_at,omitempty"`

	Cues []TranscriptCue `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// TableName overrides GORM's pluralization so the schema matches the
// `audio_segments(episode_id, segment_index)` index named in the external
// interface contract.
func (AudioSegment) TableName() string {
	return "audio_segments"
}

// FormatSegmentID builds the stable human-readable identifier "segment_NNN"
// for a zero-based segment index.
func FormatSegmentID(index int) string {
	return fmt.Sprintf("segment_%03d", index)
}

// Validate checks the segment's required fields and basic invariants.
// It does not check segment_index contiguity or cross-segment invariants;
// those are enforced by the Orchestrator at creation time.
func (s *AudioSegment) Validate() error {
	if s.EpisodeID.IsZero() {
		return ErrEpisodeIDRequired
	}
	if s.SegmentIndex < 0 {
		return ErrInvalidSegmentIndex
	}
	if strings.TrimSpace(s.SegmentID) == "" {
		return ErrSegmentIdentifierRequired
	}
	if s.EndTime <= s.StartTime {
		return ErrInvalidSegmentTimeRange
	}
	if s.Status != "" && !s.Status.IsValid() {
		return ErrInvalidSegmentStatus
	}
	return nil
}

// Duration returns the segment's span in seconds. It is read-only and
// never stored.
func (s *AudioSegment) Duration() float64 {
	return s.EndTime - s.StartTime
}

// CanRetry reports whether the segment's retry_count has not yet reached
// maxRetries, i.e. whether a worker may pick it up again after a failure.
func (s *AudioSegment) CanRetry(maxRetries int) bool {
	return s.RetryCount < maxRetries
}
