// Package handlers implements the huma/v2 operations exposed by the
// transcription orchestration core's HTTP surface.
package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/transcribecore/internal/models"
	"github.com/jmylchreest/transcribecore/internal/orchestrator"
	"github.com/jmylchreest/transcribecore/internal/projector"
	"github.com/jmylchreest/transcribecore/internal/recovery"
	"github.com/jmylchreest/transcribecore/internal/repository"
)

// EpisodeHandler exposes episode lifecycle, recovery, and status
// operations.
type EpisodeHandler struct {
	episodes     repository.EpisodeRepository
	cues         repository.TranscriptCueRepository
	orchestrator *orchestrator.Orchestrator
	recovery     *recovery.Recovery
	projector    *projector.Projector
	logger       *slog.Logger
}

// NewEpisodeHandler creates an EpisodeHandler.
func NewEpisodeHandler(
	episodes repository.EpisodeRepository,
	cues repository.TranscriptCueRepository,
	orch *orchestrator.Orchestrator,
	rec *recovery.Recovery,
	proj *projector.Projector,
	logger *slog.Logger,
) *EpisodeHandler {
	return &EpisodeHandler{
		episodes:     episodes,
		cues:         cues,
		orchestrator: orch,
		recovery:     rec,
		projector:    proj,
		logger:       logger,
	}
}

// Register registers episode routes with the API.
func (h *EpisodeHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "startEpisode",
		Method:      "POST",
		Path:        "/api/v1/episodes/{id}/start",
		Summary:     "Start transcription",
		Description: "Segments the episode (if not already segmented) and runs every segment through the transcription pipeline",
		Tags:        []string{"Episodes"},
	}, h.Start)

	huma.Register(api, huma.Operation{
		OperationID: "getEpisodeStatus",
		Method:      "GET",
		Path:        "/api/v1/episodes/{id}/status",
		Summary:     "Get transcription status",
		Description: "Returns progress, ETA, and per-status segment counts for an episode",
		Tags:        []string{"Episodes"},
	}, h.Status)

	huma.Register(api, huma.Operation{
		OperationID: "cancelEpisode",
		Method:      "POST",
		Path:        "/api/v1/episodes/{id}/cancel",
		Summary:     "Cancel transcription",
		Description: "Signals in-flight segments to finish their current step and return to pending",
		Tags:        []string{"Episodes"},
	}, h.Cancel)

	huma.Register(api, huma.Operation{
		OperationID: "recoverEpisode",
		Method:      "POST",
		Path:        "/api/v1/episodes/{id}/recover",
		Summary:     "Re-drive outstanding segments",
		Description: "Re-runs every pending or retryable-failed segment for an episode",
		Tags:        []string{"Episodes"},
	}, h.Recover)

	huma.Register(api, huma.Operation{
		OperationID: "runEpisodeSegment",
		Method:      "POST",
		Path:        "/api/v1/episodes/{id}/segments/{index}/run",
		Summary:     "Run one segment on demand",
		Description: "Submits exactly one segment to the worker pool without changing the episode's overall status",
		Tags:        []string{"Episodes"},
	}, h.RunSegment)

	huma.Register(api, huma.Operation{
		OperationID: "auditEpisode",
		Method:      "POST",
		Path:        "/api/v1/episodes/{id}/audit",
		Summary:     "Audit transcription status",
		Description: "Recomputes the episode's aggregate status from its segments' current counts and repairs it in place if it has drifted",
		Tags:        []string{"Episodes"},
	}, h.Audit)

	huma.Register(api, huma.Operation{
		OperationID: "listEpisodeCues",
		Method:      "GET",
		Path:        "/api/v1/episodes/{id}/cues",
		Summary:     "List transcript cues",
		Description: "Returns every transcript cue for an episode, ordered by absolute start time",
		Tags:        []string{"Episodes"},
	}, h.Cues)
}

type episodeIDInput struct {
	ID string `path:"id" doc:"Episode ID (ULID)"`
}

func parseEpisodeID(raw string) (models.ULID, error) {
	id, err := models.ParseULID(raw)
	if err != nil {
		return models.ULID{}, huma.Error400BadRequest("invalid episode id format", err)
	}
	return id, nil
}

// StartEpisodeInput is the input for starting transcription.
type StartEpisodeInput struct {
	episodeIDInput
	Body struct {
		EnableDiarization bool `json:"enable_diarization,omitempty" doc:"Attempt speaker diarization for this episode"`
	}
}

// StartEpisodeOutput reports the episode's status after the run completes.
type StartEpisodeOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// Start runs StartEpisode and waits for the episode's segments to finish.
func (h *EpisodeHandler) Start(ctx context.Context, input *StartEpisodeInput) (*StartEpisodeOutput, error) {
	id, err := parseEpisodeID(input.ID)
	if err != nil {
		return nil, err
	}

	status, err := h.orchestrator.StartEpisode(ctx, id, orchestrator.StartOptions{EnableDiarization: input.Body.EnableDiarization})
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to start episode", err)
	}

	resp := &StartEpisodeOutput{}
	resp.Body.Status = string(status)
	return resp, nil
}

// StatusOutput is the projected status snapshot for an episode.
type StatusOutput struct {
	Body *projector.Snapshot
}

// Status returns the projected status snapshot.
func (h *EpisodeHandler) Status(ctx context.Context, input *episodeIDInput) (*StatusOutput, error) {
	id, err := parseEpisodeID(input.ID)
	if err != nil {
		return nil, err
	}

	snapshot, err := h.projector.Project(ctx, id)
	if err != nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("episode %s not found", input.ID), err)
	}
	return &StatusOutput{Body: snapshot}, nil
}

// CancelOutput acknowledges a cancel request.
type CancelOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// Cancel resets an episode's status to pending, which in-flight workers
// observe at their next cooperative checkpoint.
func (h *EpisodeHandler) Cancel(ctx context.Context, input *episodeIDInput) (*CancelOutput, error) {
	id, err := parseEpisodeID(input.ID)
	if err != nil {
		return nil, err
	}

	episode, err := h.episodes.GetByID(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load episode", err)
	}
	if episode == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("episode %s not found", input.ID))
	}

	if err := h.episodes.UpdateStatus(ctx, id, models.TranscriptionStatusPending); err != nil {
		return nil, huma.Error500InternalServerError("failed to cancel episode", err)
	}

	resp := &CancelOutput{}
	resp.Body.Status = string(models.TranscriptionStatusPending)
	return resp, nil
}

// RecoverOutput reports how many segments were re-dispatched.
type RecoverOutput struct {
	Body struct {
		SegmentsRun int `json:"segments_run"`
	}
}

// Recover re-drives an episode's outstanding segments.
func (h *EpisodeHandler) Recover(ctx context.Context, input *episodeIDInput) (*RecoverOutput, error) {
	id, err := parseEpisodeID(input.ID)
	if err != nil {
		return nil, err
	}

	results, err := h.recovery.RecoverEpisode(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to recover episode", err)
	}

	resp := &RecoverOutput{}
	resp.Body.SegmentsRun = len(results)
	return resp, nil
}

// AuditOutput reports an on-demand status audit's outcome.
type AuditOutput struct {
	Body struct {
		RecordedStatus string `json:"recorded_status"`
		ExpectedStatus string `json:"expected_status"`
		Drifted        bool   `json:"drifted"`
	}
}

// Audit runs an on-demand consistency check and repair of one episode's
// aggregate status.
func (h *EpisodeHandler) Audit(ctx context.Context, input *episodeIDInput) (*AuditOutput, error) {
	id, err := parseEpisodeID(input.ID)
	if err != nil {
		return nil, err
	}

	result, err := h.recovery.AuditEpisode(ctx, id)
	if err != nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("episode %s not found", input.ID), err)
	}

	resp := &AuditOutput{}
	resp.Body.RecordedStatus = string(result.RecordedStatus)
	resp.Body.ExpectedStatus = string(result.ExpectedStatus)
	resp.Body.Drifted = result.Drifted
	return resp, nil
}

// RunSegmentInput identifies one segment by episode id and index.
type RunSegmentInput struct {
	ID    string `path:"id" doc:"Episode ID (ULID)"`
	Index int    `path:"index" doc:"Zero-based segment index"`
}

// RunSegmentOutput reports the outcome of an on-demand segment run.
type RunSegmentOutput struct {
	Body struct {
		Status   string `json:"status"`
		CueCount int    `json:"cue_count"`
	}
}

// RunSegment submits exactly one segment to the worker pool.
func (h *EpisodeHandler) RunSegment(ctx context.Context, input *RunSegmentInput) (*RunSegmentOutput, error) {
	id, err := parseEpisodeID(input.ID)
	if err != nil {
		return nil, err
	}

	result, err := h.orchestrator.RunSegment(ctx, id, input.Index)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to run segment", err)
	}

	resp := &RunSegmentOutput{}
	resp.Body.Status = string(result.Status)
	resp.Body.CueCount = result.CueCount
	return resp, nil
}

// CuesOutput lists every transcript cue for an episode.
type CuesOutput struct {
	Body struct {
		Cues []*models.TranscriptCue `json:"cues"`
	}
}

// Cues returns an episode's transcript cues ordered by absolute start
// time.
func (h *EpisodeHandler) Cues(ctx context.Context, input *episodeIDInput) (*CuesOutput, error) {
	id, err := parseEpisodeID(input.ID)
	if err != nil {
		return nil, err
	}

	cues, err := h.cues.RangeByEpisode(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list cues", err)
	}

	resp := &CuesOutput{}
	resp.Body.Cues = cues
	return resp, nil
}
