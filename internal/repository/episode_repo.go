package repository

import (
	"context"
	"fmt"

	"github.com/jmylchreest/transcribecore/internal/models"
	"gorm.io/gorm"
)

// episodeRepo implements EpisodeRepository using GORM.
type episodeRepo struct {
	db *gorm.DB
}

// NewEpisodeRepository creates a new EpisodeRepository.
func NewEpisodeRepository(db *gorm.DB) *episodeRepo {
	return &episodeRepo{db: db}
}

func (r *episodeRepo) Create(ctx context.Context, episode *models.Episode) error {
	if err := r.db.WithContext(ctx).Create(episode).Error; err != nil {
		return fmt.Errorf("creating episode: %w", err)
	}
	return nil
}

func (r *episodeRepo) GetByID(ctx context.Context, id models.ULID) (*models.Episode, error) {
	var episode models.Episode
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&episode).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting episode by ID: %w", err)
	}
	return &episode, nil
}

func (r *episodeRepo) GetByFileHash(ctx context.Context, fileHash string) (*models.Episode, error) {
	var episode models.Episode
	if err := r.db.WithContext(ctx).Where("file_hash = ?", fileHash).First(&episode).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting episode by file hash: %w", err)
	}
	return &episode, nil
}

func (r *episodeRepo) Update(ctx context.Context, episode *models.Episode) error {
	if err := r.db.WithContext(ctx).Save(episode).Error; err != nil {
		return fmt.Errorf("updating episode: %w", err)
	}
	return nil
}

func (r *episodeRepo) UpdateStatus(ctx context.Context, id models.ULID, status models.TranscriptionStatus) error {
	result := r.db.WithContext(ctx).Model(&models.Episode{}).Where("id = ?", id).
		UpdateColumn("status", status)
	if result.Error != nil {
		return fmt.Errorf("updating episode status: %w", result.Error)
	}
	return nil
}

func (r *episodeRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Episode{}).Error; err != nil {
		return fmt.Errorf("deleting episode: %w", err)
	}
	return nil
}

func (r *episodeRepo) GetProcessing(ctx context.Context) ([]*models.Episode, error) {
	var episodes []*models.Episode
	if err := r.db.WithContext(ctx).Where("status = ?", models.TranscriptionStatusProcessing).Find(&episodes).Error; err != nil {
		return nil, fmt.Errorf("getting processing episodes: %w", err)
	}
	return episodes, nil
}

func (r *episodeRepo) ListAll(ctx context.Context) ([]*models.Episode, error) {
	var episodes []*models.Episode
	if err := r.db.WithContext(ctx).Find(&episodes).Error; err != nil {
		return nil, fmt.Errorf("listing episodes: %w", err)
	}
	return episodes, nil
}

// Ensure episodeRepo implements EpisodeRepository at compile time.
var _ EpisodeRepository = (*episodeRepo)(nil)
