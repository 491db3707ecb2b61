package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validSegment() *AudioSegment {
	return &AudioSegment{
		EpisodeID: NewULID(),
		SegmentID: FormatSegmentID(0),
		StartTime: 0,
		EndTime:   90,
	}
}

func TestSegmentStatus_IsValid(t *testing.T) {
	valid := []SegmentStatus{
		SegmentStatusPending, SegmentStatusProcessing, SegmentStatusCompleted, SegmentStatusFailed,
	}
	for _, s := range valid {
		assert.True(t, s.IsValid(), s)
	}
	assert.False(t, SegmentStatus("bogus").IsValid())
}

func TestFormatSegmentID(t *testing.T) {
	assert.Equal(t, "segment_000", FormatSegmentID(0))
	assert.Equal(t, "segment_042", FormatSegmentID(42))
	assert.Equal(t, "segment_999", FormatSegmentID(999))
}

func TestAudioSegment_Validate(t *testing.T) {
	t.Run("valid segment passes", func(t *testing.T) {
		assert.NoError(t, validSegment().Validate())
	})

	t.Run("missing episode id", func(t *testing.T) {
		s := validSegment()
		s.EpisodeID = ULID{}
		assert.ErrorIs(t, s.Validate(), ErrEpisodeIDRequired)
	})

	t.Run("negative segment index", func(t *testing.T) {
		s := validSegment()
		s.SegmentIndex = -1
		assert.ErrorIs(t, s.Validate(), ErrInvalidSegmentIndex)
	})

	t.Run("blank segment id", func(t *testing.T) {
		s := validSegment()
		s.SegmentID = "   "
		assert.ErrorIs(t, s.Validate(), ErrSegmentIdentifierRequired)
	})

	t.Run("end before start", func(t *testing.T) {
		s := validSegment()
		s.EndTime = s.StartTime
		assert.ErrorIs(t, s.Validate(), ErrInvalidSegmentTimeRange)
	})

	t.Run("invalid status", func(t *testing.T) {
		s := validSegment()
		s.Status = "bogus"
		assert.ErrorIs(t, s.Validate(), ErrInvalidSegmentStatus)
	})
}

func TestAudioSegment_Duration(t *testing.T) {
	s := validSegment()
	s.StartTime = 30
	s.EndTime = 120
	assert.Equal(t, 90.0, s.Duration())
}

func TestAudioSegment_CanRetry(t *testing.T) {
	s := validSegment()

	s.RetryCount = 0
	assert.True(t, s.CanRetry(3))

	s.RetryCount = 3
	assert.False(t, s.CanRetry(3))

	s.RetryCount = 4
	assert.False(t, s.CanRetry(3))
}

func TestAudioSegment_TableName(t *testing.T) {
	assert.Equal(t, "audio_segments", AudioSegment{}.TableName())
}
