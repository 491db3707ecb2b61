// Package config provides configuration management for the transcription
// orchestration core using Viper. It supports configuration from files,
// environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort          = 8080
	defaultServerTimeout       = 30 * time.Second
	defaultShutdownTimeout     = 10 * time.Second
	defaultMaxOpenConns        = 25
	defaultMaxIdleConns        = 10
	defaultConnMaxIdleTime     = 30 * time.Minute
	defaultSegmentDuration     = 180 * time.Second
	defaultMaxRetries          = 3
	defaultASRTimeoutMultiplier = 10
	defaultClipTimeout         = 30 * time.Second
	defaultTranscribeSpeed     = 0.4
	defaultOrphanClipMaxAge    = 30 * time.Minute
	defaultWorkerConcurrency  = 4
	defaultStaleAfter          = 15 * time.Minute
	defaultSweepSchedule       = "0 */10 * * * *"
)

// Config holds all configuration for the application.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	FFmpeg        FFmpegConfig        `mapstructure:"ffmpeg"`
	ASR           ASRConfig           `mapstructure:"asr"`
	Recovery      RecoveryConfig      `mapstructure:"recovery"`
}

// ServerConfig holds the thin HTTP surface's configuration. Request
// validation and multipart upload handling live above this core.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// StorageConfig holds audio and temp-clip storage configuration
// (AUDIO_STORAGE_PATH, TEMP_CLIP_DIR).
type StorageConfig struct {
	AudioStoragePath string `mapstructure:"audio_storage_path"`
	TempClipDir      string `mapstructure:"temp_clip_dir"`
	// OrphanClipMaxAge accepts human-readable durations ("30m", "2h") via the
	// Viper-compatible Duration wrapper; the sweeper deletes clips older than
	// this threshold.
	OrphanClipMaxAge Duration `mapstructure:"orphan_clip_max_age"`
	// MaxClipSize is parsed from configuration as a human-readable size;
	// the clip extractor does not check extracted clip sizes against it.
	MaxClipSize ByteSize `mapstructure:"max_clip_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// TranscriptionConfig holds the process-wide constants — segmentation,
// retry, and ASR knobs — that the Orchestrator/Worker/Projector consult.
type TranscriptionConfig struct {
	SegmentDuration       time.Duration `mapstructure:"segment_duration"`
	MaxRetries            int           `mapstructure:"max_retries"`
	DefaultLanguage       string        `mapstructure:"default_language"`
	TranscribeModelName   string        `mapstructure:"transcribe_model_name"`
	TranscribeSpeedFactor float64       `mapstructure:"transcribe_speed_factor"`
	ASRTimeoutMultiplier  int           `mapstructure:"asr_timeout_multiplier"`
	ClipTimeout           time.Duration `mapstructure:"clip_timeout"`
	DiarizationEnabled    bool          `mapstructure:"diarization_enabled"`
	// WorkerConcurrency bounds how many segments the Segment Worker pool
	// drives at once. The ASR Adapter's own mutex serializes
	// transcription calls regardless, so this mainly bounds concurrent
	// clip extraction.
	WorkerConcurrency int `mapstructure:"worker_concurrency"`
}

// FFmpegConfig holds FFmpeg binary configuration for the Clip Extractor.
type FFmpegConfig struct {
	BinaryPath  string `mapstructure:"binary_path"`  // Path to ffmpeg binary (empty = auto-detect)
	UseEmbedded bool   `mapstructure:"use_embedded"` // Use embedded binary if available
}

// ASRConfig holds ASR Adapter credentials and cache location.
type ASRConfig struct {
	AuthToken     string `mapstructure:"auth_token"`
	ModelCacheDir string `mapstructure:"model_cache_dir"`
}

// RecoveryConfig holds startup reconciliation and orphan clip sweep
// settings.
type RecoveryConfig struct {
	// StaleAfter is how long a segment may sit in "processing" before a
	// restart treats it as orphaned.
	StaleAfter time.Duration `mapstructure:"stale_after"`
	// SweepSchedule is a 6-field cron expression controlling how often the
	// orphan clip sweeper runs; empty disables it.
	SweepSchedule string `mapstructure:"sweep_schedule"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with TRANSCRIBE_ and use underscores for nesting.
// Example: TRANSCRIBE_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/transcribecore")
		v.AddConfigPath("$HOME/.transcribecore")
	}

	// Environment variable settings
	v.SetEnvPrefix("TRANSCRIBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "transcribecore.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Storage defaults
	v.SetDefault("storage.audio_storage_path", "./data/audio")
	v.SetDefault("storage.temp_clip_dir", "./data/audio/clips")
	v.SetDefault("storage.orphan_clip_max_age", defaultOrphanClipMaxAge.String())
	v.SetDefault("storage.max_clip_size", "200MB")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Transcription defaults
	v.SetDefault("transcription.segment_duration", defaultSegmentDuration)
	v.SetDefault("transcription.max_retries", defaultMaxRetries)
	v.SetDefault("transcription.default_language", "en-US")
	v.SetDefault("transcription.transcribe_model_name", "whisper-1")
	v.SetDefault("transcription.transcribe_speed_factor", defaultTranscribeSpeed)
	v.SetDefault("transcription.asr_timeout_multiplier", defaultASRTimeoutMultiplier)
	v.SetDefault("transcription.clip_timeout", defaultClipTimeout)
	v.SetDefault("transcription.diarization_enabled", false)
	v.SetDefault("transcription.worker_concurrency", defaultWorkerConcurrency)

	// Recovery defaults
	v.SetDefault("recovery.stale_after", defaultStaleAfter.String())
	v.SetDefault("recovery.sweep_schedule", defaultSweepSchedule)

	// FFmpeg defaults
	v.SetDefault("ffmpeg.binary_path", "")
	v.SetDefault("ffmpeg.use_embedded", false)

	// ASR defaults
	v.SetDefault("asr.auth_token", "")
	v.SetDefault("asr.model_cache_dir", "./data/models")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	// Database validation
	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	// Storage validation
	if c.Storage.AudioStoragePath == "" {
		return fmt.Errorf("storage.audio_storage_path is required")
	}
	if c.Storage.TempClipDir == "" {
		return fmt.Errorf("storage.temp_clip_dir is required")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	// Transcription validation
	if c.Transcription.SegmentDuration <= 0 {
		return fmt.Errorf("transcription.segment_duration must be positive")
	}
	if c.Transcription.MaxRetries < 0 {
		return fmt.Errorf("transcription.max_retries must be >= 0")
	}
	if c.Transcription.DefaultLanguage == "" {
		return fmt.Errorf("transcription.default_language is required")
	}

	// ASR validation: fatal at startup if diarization is requested without a
	// credential; its absence is fatal at startup.
	if c.Transcription.DiarizationEnabled && c.ASR.AuthToken == "" {
		return fmt.Errorf("asr.auth_token is required when transcription.diarization_enabled is true")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
