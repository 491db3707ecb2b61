// Package cuestore implements the Cue Store: idempotent persistence
// of transcript cues for a segment, translating clip-relative ASR output
// into absolute, trimmed, queryable rows.
package cuestore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmylchreest/transcribecore/internal/models"
	"github.com/jmylchreest/transcribecore/internal/repository"
)

// Store persists transcript cues for audio segments.
type Store struct {
	cues repository.TranscriptCueRepository
}

// New creates a Store backed by the given repository.
func New(cues repository.TranscriptCueRepository) *Store {
	return &Store{cues: cues}
}

// ReplaceSegmentCues translates rawCues (clip-relative) into absolute,
// trimmed TranscriptCue rows and atomically replaces the segment's
// existing cues with them. Cues that are empty after trimming are
// dropped. Safe to call with an empty or nil rawCues slice — the segment
// simply ends up with zero cues, which is legal.
func (s *Store) ReplaceSegmentCues(ctx context.Context, segment *models.AudioSegment, rawCues []models.RawCue) error {
	translated := make([]*models.TranscriptCue, 0, len(rawCues))

	for _, raw := range rawCues {
		text := strings.TrimSpace(raw.Text)
		if text == "" {
			continue
		}

		absStart := segment.StartTime + raw.Start
		absEnd := segment.StartTime + raw.End
		if absEnd <= absStart {
			continue
		}

		speaker := raw.Speaker
		if speaker == "" {
			speaker = "Unknown"
		}

		segmentID := segment.ID
		translated = append(translated, &models.TranscriptCue{
			EpisodeID: segment.EpisodeID,
			SegmentID: &segmentID,
			StartTime: absStart,
			EndTime:   absEnd,
			Speaker:   speaker,
			Text:      text,
		})
	}

	if err := s.cues.ReplaceSegmentCues(ctx, segment.ID, translated); err != nil {
		return fmt.Errorf("replacing segment cues: %w", err)
	}
	return nil
}

// CountBySegment returns the number of cues currently stored for a
// segment, used for idempotence checks.
func (s *Store) CountBySegment(ctx context.Context, segmentID models.ULID) (int64, error) {
	count, err := s.cues.CountBySegment(ctx, segmentID)
	if err != nil {
		return 0, fmt.Errorf("counting segment cues: %w", err)
	}
	return count, nil
}

// RangeByEpisode returns all cues for an episode ordered by absolute
// start time — the canonical read path.
func (s *Store) RangeByEpisode(ctx context.Context, episodeID models.ULID) ([]*models.TranscriptCue, error) {
	cues, err := s.cues.RangeByEpisode(ctx, episodeID)
	if err != nil {
		return nil, fmt.Errorf("ranging episode cues: %w", err)
	}
	return cues, nil
}
