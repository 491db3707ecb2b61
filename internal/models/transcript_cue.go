package models

import "strings"

// TranscriptCue is one utterance span with absolute start/end timestamps.
// Ordering is query-time only (ORDER BY start_time ASC); there is no stored
// sequence number because asynchronous per-segment writes make a global
// index unmaintainable.
type TranscriptCue struct {
	BaseModel

	EpisodeID ULID    `gorm:"index:idx_cue_episode_start,priority:1;not null" json:"episode_id"`
	SegmentID *ULID   `gorm:"index" json:"segment_id,omitempty"`
	StartTime float64 `gorm:"index:idx_cue_episode_start,priority:2;not null" json:"start_time"`
	EndTime   float64 `gorm:"not null" json:"end_time"`
	Speaker   string  `gorm:"not null;default:Unknown" json:"speaker"`
	Text      string  `gorm:"not null" json:"text"`
}

// TableName overrides GORM's pluralization so the schema matches the
// `transcript_cues(episode_id, start_time)` and `transcript_cues(segment_id)`
// indexes named in the external interface contract.
func (TranscriptCue) TableName() string {
	return "transcript_cues"
}

// Validate checks the cue's required fields and basic invariants.
func (c *TranscriptCue) Validate() error {
	if c.EpisodeID.IsZero() {
		return ErrEpisodeIDRequired
	}
	if c.EndTime <= c.StartTime {
		return ErrInvalidCueTimeRange
	}
	if strings.TrimSpace(c.Text) == "" {
		return ErrCueTextRequired
	}
	return nil
}

// RawCue is one utterance span returned by the ASR Adapter, with
// timestamps relative to the clip (0-based) rather than absolute to the
// source episode.
type RawCue struct {
	Start   float64
	End     float64
	Speaker string
	Text    string
}
