package models

import (
	"math"
	"regexp"
	"strings"
)

// TranscriptionStatus is the aggregate lifecycle state of an Episode.
type TranscriptionStatus string

const (
	TranscriptionStatusPending       TranscriptionStatus = "pending"
	TranscriptionStatusProcessing    TranscriptionStatus = "processing"
	TranscriptionStatusCompleted     TranscriptionStatus = "completed"
	TranscriptionStatusPartialFailed TranscriptionStatus = "partial_failed"
	TranscriptionStatusFailed        TranscriptionStatus = "failed"
)

// IsValid reports whether s is one of the recognized transcription statuses.
func (s TranscriptionStatus) IsValid() bool {
	switch s {
	case TranscriptionStatusPending, TranscriptionStatusProcessing,
		TranscriptionStatusCompleted, TranscriptionStatusPartialFailed, TranscriptionStatusFailed:
		return true
	}
	return false
}

var fileHashPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// Episode is the unit of ingestion: one uploaded audio file.
//
// total_segments, needs_segmentation, transcription_started_at, and
// transcription_completed_at are not columns on this struct: the
// TotalSegments and NeedsSegmentation methods compute the first two from
// DurationSeconds, and the Status Projector derives the two timestamps at
// query time from the episode's AudioSegment rows.
type Episode struct {
	BaseModel

	FileHash         string              `gorm:"uniqueIndex;size:32;not null" json:"file_hash"`
	OriginalFilename string              `gorm:"not null" json:"original_filename"`
	AudioPath        string              `gorm:"not null" json:"audio_path"`
	ByteSize         int64               `json:"byte_size"`
	DurationSeconds  float64             `gorm:"not null" json:"duration_seconds"`
	Language         string              `json:"language"`
	Status           TranscriptionStatus `gorm:"size:20;not null;default:pending" json:"transcription_status"`

	Segments []AudioSegment  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Cues     []TranscriptCue `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// TableName overrides GORM's pluralization so the schema matches the
// `episodes(file_hash)` index named in the external interface contract.
func (Episode) TableName() string {
	return "episodes"
}

// Validate checks the episode's required fields and basic invariants.
func (e *Episode) Validate() error {
	if e.FileHash == "" {
		return ErrFileHashRequired
	}
	if !fileHashPattern.MatchString(e.FileHash) {
		return ErrInvalidFileHash
	}
	if e.OriginalFilename == "" {
		return ErrOriginalFilenameRequired
	}
	if e.AudioPath == "" {
		return ErrAudioPathRequired
	}
	if e.DurationSeconds <= 0 {
		return ErrInvalidDuration
	}
	if e.Status != "" && !e.Status.IsValid() {
		return ErrInvalidTranscriptionStatus
	}
	return nil
}

// TotalSegments returns ⌈duration / segmentDuration⌉, the number of
// virtual segments the Orchestrator creates for this episode.
func (e *Episode) TotalSegments(segmentDuration float64) int {
	if segmentDuration <= 0 {
		return 0
	}
	return int(math.Ceil(e.DurationSeconds / segmentDuration))
}

// NeedsSegmentation reports whether the episode spans more than one
// segment at the given segment duration.
func (e *Episode) NeedsSegmentation(segmentDuration float64) bool {
	return e.DurationSeconds > segmentDuration
}

// NormalizedLanguage returns the 2-letter prefix of the episode's language
// tag (e.g. "en-US" -> "en"), falling back to defaultLanguage's prefix when
// the episode has none set.
func (e *Episode) NormalizedLanguage(defaultLanguage string) string {
	lang := e.Language
	if lang == "" {
		lang = defaultLanguage
	}
	if idx := strings.IndexByte(lang, '-'); idx > 0 {
		lang = lang[:idx]
	}
	return strings.ToLower(lang)
}
