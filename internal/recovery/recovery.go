// Package recovery implements startup reconciliation and on-demand
// re-drive: demoting segments orphaned by an
// unclean shutdown, cascading that demotion up to the owning episode,
// sweeping stale temporary clips, and re-running an episode's
// outstanding segments on request.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jmylchreest/transcribecore/internal/models"
	"github.com/jmylchreest/transcribecore/internal/repository"
	"github.com/jmylchreest/transcribecore/internal/segment"
	"github.com/jmylchreest/transcribecore/internal/storage"
	"github.com/jmylchreest/transcribecore/internal/worker"
	"github.com/jmylchreest/transcribecore/pkg/format"
)

// Config bundles the process-wide constants Recovery consults.
type Config struct {
	MaxRetries int
	// StaleAfter is how long a segment may sit in "processing" before a
	// restart treats it as orphaned.
	StaleAfter time.Duration
	// OrphanClipMaxAge is how long an unreferenced temp clip file may live
	// in the clip sandbox before the sweeper deletes it.
	OrphanClipMaxAge time.Duration
	// SweepSchedule is a standard 6-field cron expression controlling how
	// often the orphan clip sweeper runs. Empty disables the sweeper.
	SweepSchedule string
}

// Recovery reconciles segment/episode state at startup and on demand.
type Recovery struct {
	episodes repository.EpisodeRepository
	segments repository.AudioSegmentRepository
	pool     *worker.Pool
	clipDir  *storage.Sandbox
	cfg      Config
	logger   *slog.Logger

	cron *cron.Cron
}

// New creates a Recovery coordinator.
func New(
	episodes repository.EpisodeRepository,
	segments repository.AudioSegmentRepository,
	pool *worker.Pool,
	clipDir *storage.Sandbox,
	cfg Config,
	logger *slog.Logger,
) *Recovery {
	return &Recovery{
		episodes: episodes,
		segments: segments,
		pool:     pool,
		clipDir:  clipDir,
		cfg:      cfg,
		logger:   logger,
	}
}

// ReconcileAtStartup implements the boot-time scan: every segment left
// "processing" by an unclean shutdown is demoted to "failed" (counting
// against its retry budget), and any episode whose segments are now all
// terminal has its status recomputed.
func (r *Recovery) ReconcileAtStartup(ctx context.Context) error {
	cutoff := models.Now().Add(-r.cfg.StaleAfter)
	stale, err := r.segments.StaleProcessing(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("listing stale processing segments: %w", err)
	}
	if len(stale) == 0 {
		r.logger.Info("startup reconciliation found no orphaned segments")
		return nil
	}

	touched := make(map[models.ULID]struct{})
	for _, seg := range stale {
		if err := segment.OrphanedAtRestart(seg); err != nil {
			r.logger.Warn("failed to demote orphaned segment",
				slog.String("segment_id", seg.SegmentID), slog.String("error", err.Error()))
			continue
		}
		if err := r.segments.Update(ctx, seg); err != nil {
			r.logger.Warn("failed to persist orphaned segment demotion",
				slog.String("segment_id", seg.SegmentID), slog.String("error", err.Error()))
			continue
		}
		touched[seg.EpisodeID] = struct{}{}
	}

	r.logger.Info("startup reconciliation demoted orphaned segments", slog.Int("count", len(stale)))

	for episodeID := range touched {
		if err := r.cascadeEpisodeStatus(ctx, episodeID); err != nil {
			r.logger.Warn("failed to cascade episode status after reconciliation",
				slog.String("episode_id", episodeID.String()), slog.String("error", err.Error()))
		}
	}
	return nil
}

// cascadeEpisodeStatus recomputes and persists an episode's status from
// its segments' current counts using expectedStatus, where any processing
// segment yields "processing". This differs from the Orchestrator's post-run
// aggregate, which maps any pending or processing segment to "pending".
func (r *Recovery) cascadeEpisodeStatus(ctx context.Context, episodeID models.ULID) error {
	status, err := r.expectedStatus(ctx, episodeID)
	if err != nil {
		return err
	}
	if status == "" {
		return nil
	}
	return r.episodes.UpdateStatus(ctx, episodeID, status)
}

// RecoverEpisode implements the HTTP-triggered recovery entry point: every
// segment left pending or retryable-failed for the episode is re-dispatched
// to the worker pool.
func (r *Recovery) RecoverEpisode(ctx context.Context, episodeID models.ULID) ([]worker.Result, error) {
	episode, err := r.episodes.GetByID(ctx, episodeID)
	if err != nil {
		return nil, fmt.Errorf("loading episode: %w", err)
	}
	if episode == nil {
		return nil, fmt.Errorf("%w: episode %s not found", models.ErrEpisodeIDRequired, episodeID)
	}

	recoverable, err := r.segments.RecoverableByEpisode(ctx, episodeID, r.cfg.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("listing recoverable segments: %w", err)
	}
	if len(recoverable) == 0 {
		return nil, nil
	}

	if err := r.episodes.UpdateStatus(ctx, episodeID, models.TranscriptionStatusProcessing); err != nil {
		return nil, fmt.Errorf("marking episode processing: %w", err)
	}

	ids := make([]models.ULID, len(recoverable))
	for i, s := range recoverable {
		ids[i] = s.ID
	}
	results, err := r.pool.RunAll(ctx, ids)
	if err != nil {
		return results, fmt.Errorf("recovering segment pool: %w", err)
	}

	if err := r.cascadeEpisodeStatus(ctx, episodeID); err != nil {
		r.logger.Warn("failed to cascade episode status after recovery",
			slog.String("episode_id", episodeID.String()), slog.String("error", err.Error()))
	}
	return results, nil
}

// AuditResult reports the outcome of an on-demand consistency audit of one
// episode.
type AuditResult struct {
	EpisodeID      models.ULID                `json:"episode_id"`
	RecordedStatus models.TranscriptionStatus `json:"recorded_status"`
	ExpectedStatus models.TranscriptionStatus `json:"expected_status"`
	Drifted        bool                       `json:"drifted"`
}

// AuditEpisode checks one episode's recorded transcription_status against
// the status its segments' current counts actually imply, and repairs it
// in place if the two have drifted apart. Unlike ReconcileAtStartup, this
// never touches segment rows — it only recomputes and, if needed,
// re-persists the episode's own aggregate status, so it can be run safely
// at any time without racing a worker mid-segment.
func (r *Recovery) AuditEpisode(ctx context.Context, episodeID models.ULID) (AuditResult, error) {
	episode, err := r.episodes.GetByID(ctx, episodeID)
	if err != nil {
		return AuditResult{}, fmt.Errorf("loading episode: %w", err)
	}
	if episode == nil {
		return AuditResult{}, fmt.Errorf("%w: episode %s not found", models.ErrEpisodeIDRequired, episodeID)
	}

	expected, err := r.expectedStatus(ctx, episodeID)
	if err != nil {
		return AuditResult{}, err
	}

	result := AuditResult{
		EpisodeID:      episodeID,
		RecordedStatus: episode.Status,
		ExpectedStatus: expected,
	}
	if expected == "" || expected == episode.Status {
		return result, nil
	}
	result.Drifted = true

	if err := r.episodes.UpdateStatus(ctx, episodeID, expected); err != nil {
		return result, fmt.Errorf("repairing episode status: %w", err)
	}
	r.logger.Info("audit repaired drifted episode status",
		slog.String("episode_id", episodeID.String()),
		slog.String("recorded_status", string(result.RecordedStatus)),
		slog.String("expected_status", string(expected)))
	return result, nil
}

// expectedStatus recomputes an episode's aggregate status from its
// segments' current counts, applying the same rule cascadeEpisodeStatus
// uses after a run completes. An empty return means the episode has no
// segments yet and no aggregate status can be inferred.
func (r *Recovery) expectedStatus(ctx context.Context, episodeID models.ULID) (models.TranscriptionStatus, error) {
	counts, err := r.segments.StatusCounts(ctx, episodeID)
	if err != nil {
		return "", fmt.Errorf("counting segment statuses: %w", err)
	}

	pending := counts[models.SegmentStatusPending]
	processing := counts[models.SegmentStatusProcessing]
	completed := counts[models.SegmentStatusCompleted]
	failed := counts[models.SegmentStatusFailed]

	switch {
	case processing > 0:
		return models.TranscriptionStatusProcessing, nil
	case pending > 0:
		return models.TranscriptionStatusPending, nil
	case failed == 0 && completed > 0:
		return models.TranscriptionStatusCompleted, nil
	case failed > 0 && completed > 0:
		return models.TranscriptionStatusPartialFailed, nil
	case failed > 0 && completed == 0:
		return models.TranscriptionStatusFailed, nil
	default:
		return "", nil
	}
}

// SweepOrphans removes every episode whose source audio file no longer
// exists on disk — e.g. the upload directory was cleared out from under a
// completed episode. This is a DB-driven complement to SweepOrphanClips:
// that sweep reclaims clip files with no surviving segment reference, this
// one reclaims episode rows with no surviving audio file. Deleting the
// episode cascades to its segments and cues.
func (r *Recovery) SweepOrphans(ctx context.Context) error {
	episodes, err := r.episodes.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("listing episodes: %w", err)
	}

	var removed int
	for _, episode := range episodes {
		if _, err := os.Stat(episode.AudioPath); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			r.logger.Warn("failed to stat episode audio file",
				slog.String("episode_id", episode.ID.String()), slog.String("path", episode.AudioPath), slog.String("error", err.Error()))
			continue
		}

		if err := r.episodes.Delete(ctx, episode.ID); err != nil {
			r.logger.Warn("failed to remove orphan episode",
				slog.String("episode_id", episode.ID.String()), slog.String("path", episode.AudioPath), slog.String("error", err.Error()))
			continue
		}
		removed++
	}
	if removed > 0 {
		r.logger.Info("orphan episode sweep removed episodes with missing audio", slog.Int("count", removed))
	}
	return nil
}

// StartSweeper schedules the orphan temp-clip sweep and the orphan episode
// sweep on cfg.SweepSchedule. A no-op if the schedule is empty. Returns a
// stop function.
func (r *Recovery) StartSweeper(ctx context.Context) (func(), error) {
	if r.cfg.SweepSchedule == "" {
		return func() {}, nil
	}

	c := cron.New(cron.WithSeconds())
	_, err := c.AddFunc(r.cfg.SweepSchedule, func() {
		if err := r.SweepOrphanClips(ctx); err != nil {
			r.logger.Warn("orphan clip sweep failed", slog.String("error", err.Error()))
		}
		if err := r.SweepOrphans(ctx); err != nil {
			r.logger.Warn("orphan episode sweep failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("scheduling orphan clip sweep %q: %w", r.cfg.SweepSchedule, err)
	}
	c.Start()
	r.cron = c
	r.logger.Info("orphan clip sweeper started", slog.String("schedule", format.CronDescription(r.cfg.SweepSchedule)))
	return func() { <-c.Stop().Done() }, nil
}

// SweepOrphanClips deletes temp clip files older than OrphanClipMaxAge that
// no longer correspond to any segment's recorded temp_clip_path — clips
// whose worker crashed between extraction and the path-persisting Update
// call, or that survived a completed segment's best-effort cleanup.
func (r *Recovery) SweepOrphanClips(ctx context.Context) error {
	cutoff := time.Now().Add(-r.cfg.OrphanClipMaxAge)
	base := r.clipDir.BaseDir()

	var removed int
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return nil
		}
		referenced, err := r.segments.HasClipPath(ctx, rel)
		if err != nil {
			r.logger.Warn("failed to check clip path reference", slog.String("path", rel), slog.String("error", err.Error()))
			return nil
		}
		if referenced {
			return nil
		}
		if err := os.Remove(path); err != nil {
			r.logger.Warn("failed to remove orphan clip", slog.String("path", rel), slog.String("error", err.Error()))
			return nil
		}
		removed++
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking clip sandbox: %w", err)
	}
	if removed > 0 {
		r.logger.Info("orphan clip sweep removed stale clips", slog.Int("count", removed))
	}
	return nil
}
