package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/transcribecore/internal/models"
)

func TestNew(t *testing.T) {
	episodeID := models.NewULID()
	s := New(episodeID, 2, 180, 270)

	assert.Equal(t, episodeID, s.EpisodeID)
	assert.Equal(t, 2, s.SegmentIndex)
	assert.Equal(t, "segment_002", s.SegmentID)
	assert.Equal(t, 180.0, s.StartTime)
	assert.Equal(t, 270.0, s.EndTime)
	assert.Equal(t, models.SegmentStatusPending, s.Status)
	assert.Equal(t, 0, s.RetryCount)
}

func TestSetClipPath(t *testing.T) {
	s := New(models.NewULID(), 0, 0, 90)
	SetClipPath(s, "episode/segment_000.wav")
	require.NotNil(t, s.TempClipPath)
	assert.Equal(t, "episode/segment_000.wav", *s.TempClipPath)
}

func TestComplete(t *testing.T) {
	t.Run("processing segment completes", func(t *testing.T) {
		s := New(models.NewULID(), 0, 0, 90)
		s.Status = models.SegmentStatusProcessing
		path := "clip.wav"
		s.TempClipPath = &path
		errMsg := "stale"
		s.ErrorMessage = &errMsg

		require.NoError(t, Complete(s, models.Now()))
		assert.Equal(t, models.SegmentStatusCompleted, s.Status)
		assert.NotNil(t, s.RecognizedAt)
		assert.Nil(t, s.TempClipPath)
		assert.Nil(t, s.ErrorMessage)
	})

	t.Run("cannot complete a pending segment", func(t *testing.T) {
		s := New(models.NewULID(), 0, 0, 90)
		err := Complete(s, models.Now())
		assert.ErrorIs(t, err, models.ErrInvalidStateTransition)
	})
}

func TestFail(t *testing.T) {
	t.Run("processing segment fails and increments retry count", func(t *testing.T) {
		s := New(models.NewULID(), 0, 0, 90)
		s.Status = models.SegmentStatusProcessing
		s.RetryCount = 1
		path := "clip.wav"
		s.TempClipPath = &path

		require.NoError(t, Fail(s, "asr timed out"))
		assert.Equal(t, models.SegmentStatusFailed, s.Status)
		assert.Equal(t, 2, s.RetryCount)
		require.NotNil(t, s.ErrorMessage)
		assert.Equal(t, "asr timed out", *s.ErrorMessage)
		assert.NotNil(t, s.TempClipPath, "clip path survives a retryable failure")
	})

	t.Run("cannot fail a segment that is not processing", func(t *testing.T) {
		s := New(models.NewULID(), 0, 0, 90)
		err := Fail(s, "asr timed out")
		assert.ErrorIs(t, err, models.ErrInvalidStateTransition)
	})
}

func TestCancel(t *testing.T) {
	t.Run("processing segment returns to pending", func(t *testing.T) {
		s := New(models.NewULID(), 0, 0, 90)
		s.Status = models.SegmentStatusProcessing
		s.RetryCount = 1

		require.NoError(t, Cancel(s))
		assert.Equal(t, models.SegmentStatusPending, s.Status)
		assert.Equal(t, 1, s.RetryCount, "cancel does not touch retry bookkeeping")
	})

	t.Run("cannot cancel a pending segment", func(t *testing.T) {
		s := New(models.NewULID(), 0, 0, 90)
		err := Cancel(s)
		assert.ErrorIs(t, err, models.ErrInvalidStateTransition)
	})
}

func TestOrphanedAtRestart(t *testing.T) {
	s := New(models.NewULID(), 0, 0, 90)
	s.Status = models.SegmentStatusProcessing

	require.NoError(t, OrphanedAtRestart(s))
	assert.Equal(t, models.SegmentStatusFailed, s.Status)
	require.NotNil(t, s.ErrorMessage)
	assert.Equal(t, "orphaned at restart", *s.ErrorMessage)
	assert.Equal(t, 1, s.RetryCount)
}
