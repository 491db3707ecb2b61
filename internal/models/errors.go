package models

import (
	"errors"
	"fmt"
)

// ErrValidation represents a validation error with field and message.
type ErrValidation struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// PreconditionError indicates an operation was syntactically legal but
// disallowed by the current state of an Episode or AudioSegment. The current
// state is attached so callers can surface it without a second lookup.
type PreconditionError struct {
	Entity  string // "episode" or "audio_segment"
	ID      string
	State   string
	Message string
}

// Error implements the error interface.
func (e PreconditionError) Error() string {
	return fmt.Sprintf("%s %s (state=%s): %s", e.Entity, e.ID, e.State, e.Message)
}

// Common validation errors for models.
var (
	// ErrFileHashRequired indicates a required content fingerprint is empty.
	ErrFileHashRequired = errors.New("file_hash is required")

	// ErrInvalidFileHash indicates the content fingerprint is not 32 lowercase hex characters.
	ErrInvalidFileHash = errors.New("file_hash must be a 32-character lowercase hex string")

	// ErrOriginalFilenameRequired indicates a required filename field is empty.
	ErrOriginalFilenameRequired = errors.New("original_filename is required")

	// ErrAudioPathRequired indicates a required stored-audio path field is empty.
	ErrAudioPathRequired = errors.New("audio_path is required")

	// ErrInvalidDuration indicates a non-positive episode duration.
	ErrInvalidDuration = errors.New("duration_seconds must be positive")

	// ErrInvalidTranscriptionStatus indicates an unrecognized episode transcription status.
	ErrInvalidTranscriptionStatus = errors.New("invalid transcription status")

	// ErrEpisodeIDRequired indicates a required episode ID field is zero.
	ErrEpisodeIDRequired = errors.New("episode_id is required")

	// ErrInvalidSegmentIndex indicates a negative segment index.
	ErrInvalidSegmentIndex = errors.New("segment_index must be >= 0")

	// ErrSegmentIdentifierRequired indicates a required human-readable segment_id is empty.
	ErrSegmentIdentifierRequired = errors.New("segment_id is required")

	// ErrInvalidSegmentTimeRange indicates end_time is not strictly after start_time.
	ErrInvalidSegmentTimeRange = errors.New("end_time must be after start_time")

	// ErrInvalidSegmentStatus indicates an unrecognized audio segment status.
	ErrInvalidSegmentStatus = errors.New("invalid audio segment status")

	// ErrRetryCapExceeded indicates a segment's retry_count has reached MAX_RETRIES.
	ErrRetryCapExceeded = errors.New("retry_count has reached the maximum allowed retries")

	// ErrInvalidCueTimeRange indicates a cue's end_time is not strictly after its start_time.
	ErrInvalidCueTimeRange = errors.New("cue end_time must be after start_time")

	// ErrCueTextRequired indicates a cue has no text after trimming.
	ErrCueTextRequired = errors.New("text is required")

	// ErrInvalidStateTransition indicates an attempted state machine transition is not permitted.
	ErrInvalidStateTransition = errors.New("invalid state transition")
)
