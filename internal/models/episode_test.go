package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validEpisode() *Episode {
	return &Episode{
		FileHash:         "0123456789abcdef0123456789abcdef",
		OriginalFilename: "lecture-01.mp3",
		AudioPath:        "/data/audio/lecture-01.mp3",
		DurationSeconds:  3600,
	}
}

func TestTranscriptionStatus_IsValid(t *testing.T) {
	valid := []TranscriptionStatus{
		TranscriptionStatusPending, TranscriptionStatusProcessing,
		TranscriptionStatusCompleted, TranscriptionStatusPartialFailed, TranscriptionStatusFailed,
	}
	for _, s := range valid {
		assert.True(t, s.IsValid(), s)
	}
	assert.False(t, TranscriptionStatus("bogus").IsValid())
	assert.False(t, TranscriptionStatus("").IsValid())
}

func TestEpisode_Validate(t *testing.T) {
	t.Run("valid episode passes", func(t *testing.T) {
		assert.NoError(t, validEpisode().Validate())
	})

	t.Run("missing file hash", func(t *testing.T) {
		e := validEpisode()
		e.FileHash = ""
		assert.ErrorIs(t, e.Validate(), ErrFileHashRequired)
	})

	t.Run("malformed file hash", func(t *testing.T) {
		e := validEpisode()
		e.FileHash = "not-hex"
		assert.ErrorIs(t, e.Validate(), ErrInvalidFileHash)
	})

	t.Run("missing original filename", func(t *testing.T) {
		e := validEpisode()
		e.OriginalFilename = ""
		assert.ErrorIs(t, e.Validate(), ErrOriginalFilenameRequired)
	})

	t.Run("missing audio path", func(t *testing.T) {
		e := validEpisode()
		e.AudioPath = ""
		assert.ErrorIs(t, e.Validate(), ErrAudioPathRequired)
	})

	t.Run("non-positive duration", func(t *testing.T) {
		e := validEpisode()
		e.DurationSeconds = 0
		assert.ErrorIs(t, e.Validate(), ErrInvalidDuration)
	})

	t.Run("invalid status", func(t *testing.T) {
		e := validEpisode()
		e.Status = "bogus"
		assert.ErrorIs(t, e.Validate(), ErrInvalidTranscriptionStatus)
	})
}

func TestEpisode_TotalSegments(t *testing.T) {
	e := validEpisode()
	e.DurationSeconds = 905

	assert.Equal(t, 11, e.TotalSegments(90))
	assert.Equal(t, 0, e.TotalSegments(0))
	assert.Equal(t, 0, e.TotalSegments(-1))
}

func TestEpisode_NeedsSegmentation(t *testing.T) {
	e := validEpisode()
	e.DurationSeconds = 90

	assert.False(t, e.NeedsSegmentation(90))
	assert.True(t, e.NeedsSegmentation(89.9))
}

func TestEpisode_NormalizedLanguage(t *testing.T) {
	t.Run("strips region subtag", func(t *testing.T) {
		e := validEpisode()
		e.Language = "en-US"
		assert.Equal(t, "en", e.NormalizedLanguage("fr"))
	})

	t.Run("falls back to default when unset", func(t *testing.T) {
		e := validEpisode()
		e.Language = ""
		assert.Equal(t, "fr", e.NormalizedLanguage("fr-CA"))
	})

	t.Run("lowercases", func(t *testing.T) {
		e := validEpisode()
		e.Language = "EN"
		assert.Equal(t, "en", e.NormalizedLanguage(""))
	})
}

func TestEpisode_TableName(t *testing.T) {
	assert.Equal(t, "episodes", Episode{}.TableName())
}
