package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/transcribecore/internal/asr"
	"github.com/jmylchreest/transcribecore/internal/asr/localengine"
	"github.com/jmylchreest/transcribecore/internal/asr/openai"
	"github.com/jmylchreest/transcribecore/internal/clipper"
	"github.com/jmylchreest/transcribecore/internal/config"
	"github.com/jmylchreest/transcribecore/internal/cuestore"
	"github.com/jmylchreest/transcribecore/internal/database"
	"github.com/jmylchreest/transcribecore/internal/ffmpeg"
	internalhttp "github.com/jmylchreest/transcribecore/internal/http"
	"github.com/jmylchreest/transcribecore/internal/http/handlers"
	"github.com/jmylchreest/transcribecore/internal/models"
	"github.com/jmylchreest/transcribecore/internal/observability"
	"github.com/jmylchreest/transcribecore/internal/orchestrator"
	"github.com/jmylchreest/transcribecore/internal/projector"
	"github.com/jmylchreest/transcribecore/internal/recovery"
	"github.com/jmylchreest/transcribecore/internal/repository"
	"github.com/jmylchreest/transcribecore/internal/storage"
	"github.com/jmylchreest/transcribecore/internal/version"
	"github.com/jmylchreest/transcribecore/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the transcription orchestration core",
	Long: `Start transcribecored's HTTP surface and background recovery sweeper.

The server provides:
- Episode lifecycle, recovery, and on-demand segment operations
- Transcript cue queries
- OpenAPI documentation via huma/v2`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := observability.NewLogger(cfg.Logging)
	observability.SetDefault(logger)

	db, err := database.New(cfg.Database, logger, nil)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(&models.Episode{}, &models.AudioSegment{}, &models.TranscriptCue{}); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	episodeRepo := repository.NewEpisodeRepository(db.DB)
	segmentRepo := repository.NewAudioSegmentRepository(db.DB)
	cueRepo := repository.NewTranscriptCueRepository(db.DB)

	clipSandbox, err := storage.NewSandbox(cfg.Storage.TempClipDir)
	if err != nil {
		return fmt.Errorf("initializing clip storage: %w", err)
	}

	ffmpegBinary := cfg.FFmpeg.BinaryPath
	if ffmpegBinary == "" {
		detector := ffmpeg.NewBinaryDetector()
		info, err := detector.Detect(context.Background())
		if err != nil {
			return fmt.Errorf("detecting ffmpeg binary: %w", err)
		}
		ffmpegBinary = info.FFmpegPath
	}
	extractor := clipper.NewFFmpegExtractor(ffmpegBinary, clipSandbox, cfg.Transcription.ClipTimeout)

	transcriber := newTranscriber(cfg, logger)
	asrAdapter := asr.NewAdapter(transcriber, nil)
	if err := asrAdapter.EnsureLoaded(context.Background()); err != nil {
		return fmt.Errorf("loading asr engine: %w", err)
	}

	cues := cuestore.New(cueRepo)

	w := worker.New(episodeRepo, segmentRepo, extractor, clipSandbox, asrAdapter, cues, worker.Config{
		MaxRetries:           cfg.Transcription.MaxRetries,
		DefaultLanguage:      cfg.Transcription.DefaultLanguage,
		DiarizationEnabled:   cfg.Transcription.DiarizationEnabled,
		ASRTimeoutMultiplier: cfg.Transcription.ASRTimeoutMultiplier,
	}, logger)
	pool := worker.NewPool(w, int64(cfg.Transcription.WorkerConcurrency))

	orch := orchestrator.New(episodeRepo, segmentRepo, pool, asrAdapter, cfg.Transcription.SegmentDuration.Seconds(), logger)
	rec := recovery.New(episodeRepo, segmentRepo, pool, clipSandbox, recovery.Config{
		MaxRetries:       cfg.Transcription.MaxRetries,
		StaleAfter:       cfg.Recovery.StaleAfter,
		OrphanClipMaxAge: cfg.Storage.OrphanClipMaxAge.Duration(),
		SweepSchedule:    cfg.Recovery.SweepSchedule,
	}, logger)
	proj := projector.New(episodeRepo, segmentRepo, cfg.Transcription.TranscribeSpeedFactor, cfg.Transcription.SegmentDuration.Seconds())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rec.ReconcileAtStartup(ctx); err != nil {
		logger.Warn("startup reconciliation encountered errors", slog.String("error", err.Error()))
	}

	stopSweeper, err := rec.StartSweeper(ctx)
	if err != nil {
		return fmt.Errorf("starting orphan clip sweeper: %w", err)
	}
	defer stopSweeper()

	serverConfig := internalhttp.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	server := internalhttp.NewServer(serverConfig, logger, version.Version)

	episodeHandler := handlers.NewEpisodeHandler(episodeRepo, cueRepo, orch, rec, proj, logger)
	server.RegisterEpisodes(episodeHandler)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("starting transcribecored server",
		slog.String("host", serverConfig.Host),
		slog.Int("port", serverConfig.Port),
		slog.String("version", version.Version),
	)

	return server.ListenAndServe(ctx)
}

// newTranscriber selects the ASR Transcriber backend: the hosted Whisper
// API when an auth token is configured, otherwise a local-binary engine.
func newTranscriber(cfg *config.Config, logger *slog.Logger) asr.Transcriber {
	if cfg.ASR.AuthToken != "" {
		logger.Info("using hosted whisper transcription backend", slog.String("model", cfg.Transcription.TranscribeModelName))
		return openai.New(cfg.ASR.AuthToken, cfg.Transcription.TranscribeModelName)
	}
	logger.Warn("ASR_AUTH_TOKEN not set, falling back to the local transcription engine backend; " +
		"this backend only verifies the engine binary is present and will error on every transcription call " +
		"until a concrete local invocation is wired in for the target engine")
	return localengine.New("whisper", "TRANSCRIBE_ASR_LOCAL_BINARY", cfg.ASR.ModelCacheDir)
}
