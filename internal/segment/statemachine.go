// Package segment implements the per-segment state machine: the
// states, transitions, and field effects an AudioSegment goes through from
// creation through completion, retry, or cancellation.
//
// Transitions that require atomic claim-under-contention (pending/failed ->
// processing) live on repository.AudioSegmentRepository.ClaimForProcessing,
// since only the database can arbitrate which of several racing workers
// wins. The pure, single-owner transitions below are applied by whichever
// worker currently holds the segment, then persisted via repository.Update.
package segment

import (
	"fmt"

	"github.com/jmylchreest/transcribecore/internal/models"
)

// New builds a fresh "pending" segment for (episodeID, index) spanning
// [start, end). Effects match the create -> pending row:
// temp_clip_path null, retry_count 0, error_message null.
func New(episodeID models.ULID, index int, start, end float64) *models.AudioSegment {
	return &models.AudioSegment{
		EpisodeID:    episodeID,
		SegmentIndex: index,
		SegmentID:    models.FormatSegmentID(index),
		StartTime:    start,
		EndTime:      end,
		Status:       models.SegmentStatusPending,
		RetryCount:   0,
	}
}

// SetClipPath records the freshly-extracted clip path on a segment that is
// being readied for transcription.
func SetClipPath(s *models.AudioSegment, path string) {
	s.TempClipPath = &path
}

// Complete applies the processing -> completed transition: recognized_at
// is stamped now, temp_clip_path is cleared, and any stale error is
// cleared.
func Complete(s *models.AudioSegment, now models.Time) error {
	if s.Status != models.SegmentStatusProcessing {
		return fmt.Errorf("%w: cannot complete segment in state %s", models.ErrInvalidStateTransition, s.Status)
	}
	s.Status = models.SegmentStatusCompleted
	s.RecognizedAt = &now
	s.TempClipPath = nil
	s.ErrorMessage = nil
	return nil
}

// Fail applies the processing -> failed transition: retry_count is
// incremented, the error message recorded, and temp_clip_path retained so
// a retry can reuse the extracted clip without re-running the extractor.
func Fail(s *models.AudioSegment, errMsg string) error {
	if s.Status != models.SegmentStatusProcessing {
		return fmt.Errorf("%w: cannot fail segment in state %s", models.ErrInvalidStateTransition, s.Status)
	}
	s.Status = models.SegmentStatusFailed
	s.RetryCount++
	s.ErrorMessage = &errMsg
	return nil
}

// Cancel applies the processing -> pending transition used for cooperative
// cancellation: no other fields change, so the clip (if extracted)
// and any previous retry bookkeeping survive untouched.
func Cancel(s *models.AudioSegment) error {
	if s.Status != models.SegmentStatusProcessing {
		return fmt.Errorf("%w: cannot cancel segment in state %s", models.ErrInvalidStateTransition, s.Status)
	}
	s.Status = models.SegmentStatusPending
	return nil
}

// OrphanedAtRestart applies the startup-recovery demotion: a segment found
// "processing" with no active worker is failed with
// a synthetic error, counting against its retry budget like any other
// transient failure.
func OrphanedAtRestart(s *models.AudioSegment) error {
	return Fail(s, "orphaned at restart")
}
