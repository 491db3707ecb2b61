package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/transcribecore/internal/models"
)

func newTestEpisode() *models.Episode {
	return &models.Episode{
		FileHash:         "0123456789abcdef0123456789abcdef",
		OriginalFilename: "episode.mp3",
		AudioPath:        "/data/episode.mp3",
		DurationSeconds:  1800,
	}
}

func TestEpisodeRepo_CreateAndGetByID(t *testing.T) {
	ctx := context.Background()
	repo := NewEpisodeRepository(setupTestDB(t))

	episode := newTestEpisode()
	require.NoError(t, repo.Create(ctx, episode))
	assert.False(t, episode.ID.IsZero())

	fetched, err := repo.GetByID(ctx, episode.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, episode.FileHash, fetched.FileHash)
	assert.Equal(t, models.TranscriptionStatusPending, fetched.Status)
}

func TestEpisodeRepo_GetByID_NotFound(t *testing.T) {
	repo := NewEpisodeRepository(setupTestDB(t))

	fetched, err := repo.GetByID(context.Background(), models.NewULID())
	require.NoError(t, err)
	assert.Nil(t, fetched)
}

func TestEpisodeRepo_GetByFileHash(t *testing.T) {
	ctx := context.Background()
	repo := NewEpisodeRepository(setupTestDB(t))

	episode := newTestEpisode()
	require.NoError(t, repo.Create(ctx, episode))

	fetched, err := repo.GetByFileHash(ctx, episode.FileHash)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, episode.ID, fetched.ID)

	missing, err := repo.GetByFileHash(ctx, "ffffffffffffffffffffffffffffffff")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestEpisodeRepo_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewEpisodeRepository(setupTestDB(t))

	episode := newTestEpisode()
	require.NoError(t, repo.Create(ctx, episode))

	require.NoError(t, repo.UpdateStatus(ctx, episode.ID, models.TranscriptionStatusProcessing))

	fetched, err := repo.GetByID(ctx, episode.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TranscriptionStatusProcessing, fetched.Status)
}

func TestEpisodeRepo_Delete(t *testing.T) {
	ctx := context.Background()
	repo := NewEpisodeRepository(setupTestDB(t))

	episode := newTestEpisode()
	require.NoError(t, repo.Create(ctx, episode))
	require.NoError(t, repo.Delete(ctx, episode.ID))

	fetched, err := repo.GetByID(ctx, episode.ID)
	require.NoError(t, err)
	assert.Nil(t, fetched)
}

func TestEpisodeRepo_GetProcessing(t *testing.T) {
	ctx := context.Background()
	repo := NewEpisodeRepository(setupTestDB(t))

	pending := newTestEpisode()
	require.NoError(t, repo.Create(ctx, pending))

	processing := newTestEpisode()
	processing.FileHash = "fedcba9876543210fedcba9876543210"
	require.NoError(t, repo.Create(ctx, processing))
	require.NoError(t, repo.UpdateStatus(ctx, processing.ID, models.TranscriptionStatusProcessing))

	results, err := repo.GetProcessing(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, processing.ID, results[0].ID)
}

func TestEpisodeRepo_ListAll(t *testing.T) {
	ctx := context.Background()
	repo := NewEpisodeRepository(setupTestDB(t))

	first := newTestEpisode()
	require.NoError(t, repo.Create(ctx, first))

	second := newTestEpisode()
	second.FileHash = "fedcba9876543210fedcba9876543210"
	require.NoError(t, repo.Create(ctx, second))

	results, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
