package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmylchreest/transcribecore/internal/models"
	"gorm.io/gorm"
)

// audioSegmentRepo implements AudioSegmentRepository using GORM.
type audioSegmentRepo struct {
	db *gorm.DB
}

// NewAudioSegmentRepository creates a new AudioSegmentRepository.
func NewAudioSegmentRepository(db *gorm.DB) *audioSegmentRepo {
	return &audioSegmentRepo{db: db}
}

func (r *audioSegmentRepo) CreateBatch(ctx context.Context, segments []*models.AudioSegment) error {
	if len(segments) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(segments).Error; err != nil {
		return fmt.Errorf("creating audio segments: %w", err)
	}
	return nil
}

func (r *audioSegmentRepo) GetByID(ctx context.Context, id models.ULID) (*models.AudioSegment, error) {
	var segment models.AudioSegment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&segment).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting audio segment by ID: %w", err)
	}
	return &segment, nil
}

func (r *audioSegmentRepo) GetByEpisodeAndIndex(ctx context.Context, episodeID models.ULID, index int) (*models.AudioSegment, error) {
	var segment models.AudioSegment
	err := r.db.WithContext(ctx).
		Where("episode_id = ? AND segment_index = ?", episodeID, index).
		First(&segment).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting audio segment by episode and index: %w", err)
	}
	return &segment, nil
}

func (r *audioSegmentRepo) ListByEpisode(ctx context.Context, episodeID models.ULID) ([]*models.AudioSegment, error) {
	var segments []*models.AudioSegment
	err := r.db.WithContext(ctx).
		Where("episode_id = ?", episodeID).
		Order("segment_index ASC").
		Find(&segments).Error
	if err != nil {
		return nil, fmt.Errorf("listing audio segments by episode: %w", err)
	}
	return segments, nil
}

func (r *audioSegmentRepo) Update(ctx context.Context, segment *models.AudioSegment) error {
	if err := r.db.WithContext(ctx).Save(segment).Error; err != nil {
		return fmt.Errorf("updating audio segment: %w", err)
	}
	return nil
}

// ClaimForProcessing atomically transitions a segment to "processing" if
// and only if it is currently pending, or failed with retries remaining.
// The WHERE clause is evaluated by the database against the current row,
// so two workers racing to claim the same segment id serialize on the
// row's write lock: exactly one UPDATE matches, the other affects zero
// rows. This holds across sqlite, postgres, and mysql without a
// driver-specific SELECT FOR UPDATE path, because the caller already knows
// the target id (unlike a "find the best pending job" query).
func (r *audioSegmentRepo) ClaimForProcessing(ctx context.Context, id models.ULID, maxRetries int) (*models.AudioSegment, error) {
	now := models.Now()

	result := r.db.WithContext(ctx).Model(&models.AudioSegment{}).
		Where("id = ? AND (status = ? OR (status = ? AND retry_count < ?))",
			id, models.SegmentStatusPending, models.SegmentStatusFailed, maxRetries).
		Updates(map[string]interface{}{
			"status":        models.SegmentStatusProcessing,
			"started_at":    gorm.Expr("COALESCE(started_at, ?)", now),
			"error_message": nil,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("claiming audio segment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, id)
}

func (r *audioSegmentRepo) StaleProcessing(ctx context.Context, cutoff time.Time) ([]*models.AudioSegment, error) {
	var segments []*models.AudioSegment
	err := r.db.WithContext(ctx).
		Where("status = ? AND started_at < ?", models.SegmentStatusProcessing, cutoff).
		Find(&segments).Error
	if err != nil {
		return nil, fmt.Errorf("listing stale processing segments: %w", err)
	}
	return segments, nil
}

func (r *audioSegmentRepo) RecoverableByEpisode(ctx context.Context, episodeID models.ULID, maxRetries int) ([]*models.AudioSegment, error) {
	var segments []*models.AudioSegment
	err := r.db.WithContext(ctx).
		Where("episode_id = ? AND (status = ? OR (status = ? AND retry_count < ?))",
			episodeID, models.SegmentStatusPending, models.SegmentStatusFailed, maxRetries).
		Order("segment_index ASC").
		Find(&segments).Error
	if err != nil {
		return nil, fmt.Errorf("listing recoverable segments: %w", err)
	}
	return segments, nil
}

func (r *audioSegmentRepo) CountByEpisode(ctx context.Context, episodeID models.ULID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.AudioSegment{}).
		Where("episode_id = ?", episodeID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting audio segments: %w", err)
	}
	return count, nil
}

func (r *audioSegmentRepo) StatusCounts(ctx context.Context, episodeID models.ULID) (map[models.SegmentStatus]int64, error) {
	var rows []struct {
		Status models.SegmentStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&models.AudioSegment{}).
		Select("status, count(*) as count").
		Where("episode_id = ?", episodeID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("counting segment statuses: %w", err)
	}

	counts := make(map[models.SegmentStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *audioSegmentRepo) HasClipPath(ctx context.Context, relativePath string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.AudioSegment{}).
		Where("temp_clip_path = ?", relativePath).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking clip path reference: %w", err)
	}
	return count > 0, nil
}

// Ensure audioSegmentRepo implements AudioSegmentRepository at compile time.
var _ AudioSegmentRepository = (*audioSegmentRepo)(nil)
