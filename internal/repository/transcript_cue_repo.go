package repository

import (
	"context"
	"fmt"

	"github.com/jmylchreest/transcribecore/internal/models"
	"gorm.io/gorm"
)

// transcriptCueRepo implements TranscriptCueRepository using GORM.
type transcriptCueRepo struct {
	db *gorm.DB
}

// NewTranscriptCueRepository creates a new TranscriptCueRepository.
func NewTranscriptCueRepository(db *gorm.DB) *transcriptCueRepo {
	return &transcriptCueRepo{db: db}
}

// ReplaceSegmentCues deletes all cues for segmentID and bulk-inserts the
// replacement set in one transaction, so a crash mid-retry never yields a
// mixed old/new cue set.
func (r *transcriptCueRepo) ReplaceSegmentCues(ctx context.Context, segmentID models.ULID, cues []*models.TranscriptCue) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("segment_id = ?", segmentID).Delete(&models.TranscriptCue{}).Error; err != nil {
			return fmt.Errorf("deleting existing segment cues: %w", err)
		}
		if len(cues) == 0 {
			return nil
		}
		if err := tx.Create(cues).Error; err != nil {
			return fmt.Errorf("inserting segment cues: %w", err)
		}
		return nil
	})
}

func (r *transcriptCueRepo) CountBySegment(ctx context.Context, segmentID models.ULID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.TranscriptCue{}).
		Where("segment_id = ?", segmentID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting segment cues: %w", err)
	}
	return count, nil
}

func (r *transcriptCueRepo) RangeByEpisode(ctx context.Context, episodeID models.ULID) ([]*models.TranscriptCue, error) {
	var cues []*models.TranscriptCue
	err := r.db.WithContext(ctx).
		Where("episode_id = ?", episodeID).
		Order("start_time ASC").
		Find(&cues).Error
	if err != nil {
		return nil, fmt.Errorf("ranging episode cues: %w", err)
	}
	return cues, nil
}

// Ensure transcriptCueRepo implements TranscriptCueRepository at compile time.
var _ TranscriptCueRepository = (*transcriptCueRepo)(nil)
