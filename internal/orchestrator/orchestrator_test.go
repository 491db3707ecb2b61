package orchestrator

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jmylchreest/transcribecore/internal/cuestore"
	"github.com/jmylchreest/transcribecore/internal/models"
	"github.com/jmylchreest/transcribecore/internal/repository"
	"github.com/jmylchreest/transcribecore/internal/storage"
	"github.com/jmylchreest/transcribecore/internal/worker"
)

type stubExtractor struct{ sandbox *storage.Sandbox }

func (s *stubExtractor) Extract(_ context.Context, _ string, _, _, _ float64) (string, error) {
	const relPath = "clip.wav"
	absPath, err := s.sandbox.ResolvePath(relPath)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(absPath, []byte("pcm"), 0o644); err != nil {
		return "", err
	}
	return relPath, nil
}

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(_ context.Context, _, _ string, _ bool) ([]models.RawCue, error) {
	return []models.RawCue{{Start: 0, End: 1, Text: "ok"}}, nil
}

type noopDiarization struct {
	loadCalls, releaseCalls int
	loadErr                 error
}

func (d *noopDiarization) LoadDiarization(_ context.Context) error {
	d.loadCalls++
	return d.loadErr
}

func (d *noopDiarization) ReleaseDiarization(_ context.Context) error {
	d.releaseCalls++
	return nil
}

type harness struct {
	episodes repository.EpisodeRepository
	segments repository.AudioSegmentRepository
	orch     *Orchestrator
}

func newHarness(t *testing.T, diarization DiarizationLoader) *harness {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Episode{}, &models.AudioSegment{}, &models.TranscriptCue{}))

	episodes := repository.NewEpisodeRepository(db)
	segments := repository.NewAudioSegmentRepository(db)
	cues := cuestore.New(repository.NewTranscriptCueRepository(db))

	sandbox, err := storage.NewSandbox(t.TempDir())
	require.NoError(t, err)

	w := worker.New(episodes, segments, &stubExtractor{sandbox: sandbox}, sandbox, stubTranscriber{}, cues, worker.Config{MaxRetries: 3, DefaultLanguage: "en"}, slog.New(slog.DiscardHandler))
	pool := worker.NewPool(w, 4)

	orch := New(episodes, segments, pool, diarization, 90, slog.New(slog.DiscardHandler))
	return &harness{episodes: episodes, segments: segments, orch: orch}
}

func seedEpisode(t *testing.T, repo repository.EpisodeRepository, duration float64) *models.Episode {
	t.Helper()
	e := &models.Episode{
		FileHash:         "0123456789abcdef0123456789abcdef",
		OriginalFilename: "lecture.mp3",
		AudioPath:        "/audio/lecture.mp3",
		DurationSeconds:  duration,
	}
	require.NoError(t, repo.Create(context.Background(), e))
	return e
}

func TestOrchestrator_StartEpisode_CreatesSegmentsAndCompletes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	episode := seedEpisode(t, h.episodes, 200)

	status, err := h.orch.StartEpisode(ctx, episode.ID, StartOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.TranscriptionStatusCompleted, status)

	segments, err := h.segments.ListByEpisode(ctx, episode.ID)
	require.NoError(t, err)
	assert.Len(t, segments, episode.TotalSegments(90))
	for _, s := range segments {
		assert.Equal(t, models.SegmentStatusCompleted, s.Status)
	}
}

func TestOrchestrator_StartEpisode_IsIdempotentWhileProcessing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	episode := seedEpisode(t, h.episodes, 200)
	require.NoError(t, h.episodes.UpdateStatus(ctx, episode.ID, models.TranscriptionStatusProcessing))

	status, err := h.orch.StartEpisode(ctx, episode.ID, StartOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.TranscriptionStatusProcessing, status)

	segments, err := h.segments.ListByEpisode(ctx, episode.ID)
	require.NoError(t, err)
	assert.Empty(t, segments, "an already-processing episode is not re-segmented")
}

func TestOrchestrator_StartEpisode_ReusesExistingSegments(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	episode := seedEpisode(t, h.episodes, 200)

	_, err := h.orch.StartEpisode(ctx, episode.ID, StartOptions{})
	require.NoError(t, err)
	require.NoError(t, h.episodes.UpdateStatus(ctx, episode.ID, models.TranscriptionStatusPending))

	_, err = h.orch.StartEpisode(ctx, episode.ID, StartOptions{})
	require.NoError(t, err)

	segments, err := h.segments.ListByEpisode(ctx, episode.ID)
	require.NoError(t, err)
	assert.Len(t, segments, episode.TotalSegments(90), "no duplicate segments are created on a re-run")
}

func TestOrchestrator_StartEpisode_LoadsAndReleasesDiarizationWhenRequested(t *testing.T) {
	ctx := context.Background()
	diarization := &noopDiarization{}
	h := newHarness(t, diarization)
	episode := seedEpisode(t, h.episodes, 90)

	_, err := h.orch.StartEpisode(ctx, episode.ID, StartOptions{EnableDiarization: true})
	require.NoError(t, err)
	assert.Equal(t, 1, diarization.loadCalls)
	assert.Equal(t, 1, diarization.releaseCalls)
}

func TestOrchestrator_StartEpisode_MissingEpisodeErrors(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.orch.StartEpisode(context.Background(), models.NewULID(), StartOptions{})
	assert.Error(t, err)
}

func TestOrchestrator_RunSegment(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	episode := seedEpisode(t, h.episodes, 90)

	_, err := h.orch.StartEpisode(ctx, episode.ID, StartOptions{})
	require.NoError(t, err)

	seg, err := h.segments.GetByEpisodeAndIndex(ctx, episode.ID, 0)
	require.NoError(t, err)
	require.NotNil(t, seg)

	result, err := h.orch.RunSegment(ctx, episode.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, models.SegmentStatusCompleted, result.Status)
}

func TestOrchestrator_RunSegment_UnknownIndexErrors(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	episode := seedEpisode(t, h.episodes, 90)

	_, err := h.orch.RunSegment(ctx, episode.ID, 99)
	assert.Error(t, err)
}
