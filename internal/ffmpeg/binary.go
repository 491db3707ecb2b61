// Package ffmpeg provides FFmpeg binary detection and a one-shot clip
// extraction command wrapper.
package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jmylchreest/transcribecore/internal/util"
)

// BinaryInfo contains information about the FFmpeg installation.
type BinaryInfo struct {
	FFmpegPath    string `json:"ffmpeg_path"`
	Version       string `json:"version"`
	MajorVersion  int    `json:"major_version"`
	MinorVersion  int    `json:"minor_version"`
	BuildDate     string `json:"build_date,omitempty"`
	Configuration string `json:"configuration,omitempty"`
}

// BinaryDetector handles detection and caching of the FFmpeg binary path and
// version. serve resolves the path once at startup and hands it to the clip
// extractor, which reuses it for every segment.
type BinaryDetector struct {
	mu           sync.RWMutex
	info         *BinaryInfo
	lastDetected time.Time
	cacheTTL     time.Duration
}

// NewBinaryDetector creates a new binary detector.
func NewBinaryDetector() *BinaryDetector {
	return &BinaryDetector{
		cacheTTL: 5 * time.Minute,
	}
}

// WithCacheTTL sets the cache TTL for binary detection.
func (d *BinaryDetector) WithCacheTTL(ttl time.Duration) *BinaryDetector {
	d.cacheTTL = ttl
	return d
}

// Detect detects the FFmpeg binary and its version.
func (d *BinaryDetector) Detect(ctx context.Context) (*BinaryInfo, error) {
	d.mu.RLock()
	if d.info != nil && time.Since(d.lastDetected) < d.cacheTTL {
		info := d.info
		d.mu.RUnlock()
		return info, nil
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.info != nil && time.Since(d.lastDetected) < d.cacheTTL {
		return d.info, nil
	}

	info, err := d.detect(ctx)
	if err != nil {
		return nil, err
	}

	d.info = info
	d.lastDetected = time.Now()
	return info, nil
}

// Clear clears the cached binary information.
func (d *BinaryDetector) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.info = nil
}

// detect performs the actual binary detection.
func (d *BinaryDetector) detect(ctx context.Context) (*BinaryInfo, error) {
	info := &BinaryInfo{}

	// Search order: TRANSCRIBE_FFMPEG_BINARY env var -> ./ffmpeg -> PATH.
	ffmpegPath, err := util.FindBinary("ffmpeg", "TRANSCRIBE_FFMPEG_BINARY")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	info.FFmpegPath = ffmpegPath

	version, err := d.getVersion(ctx, ffmpegPath)
	if err != nil {
		return nil, fmt.Errorf("getting ffmpeg version: %w", err)
	}
	info.Version = version.Full
	info.MajorVersion = version.Major
	info.MinorVersion = version.Minor
	info.BuildDate = version.BuildDate
	info.Configuration = version.Configuration

	return info, nil
}

// versionInfo holds parsed version information.
type versionInfo struct {
	Full          string
	Major         int
	Minor         int
	BuildDate     string
	Configuration string
}

// getVersion extracts version information from ffmpeg.
func (d *BinaryDetector) getVersion(ctx context.Context, ffmpegPath string) (*versionInfo, error) {
	cmd := exec.CommandContext(ctx, ffmpegPath, "-version")
	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(output), "\n")
	info := &versionInfo{}

	for _, line := range lines {
		if strings.HasPrefix(line, "ffmpeg version") {
			// Parse version string like "ffmpeg version 6.0 Copyright..."
			// or "ffmpeg version n6.0-2-g..." or "ffmpeg version 6.0.1"
			parts := strings.Fields(line)
			if len(parts) >= 3 {
				info.Full = parts[2]
				versionRegex := regexp.MustCompile(`^n?(\d+)\.(\d+)`)
				matches := versionRegex.FindStringSubmatch(parts[2])
				if len(matches) >= 3 {
					info.Major, _ = strconv.Atoi(matches[1])
					info.Minor, _ = strconv.Atoi(matches[2])
				}
			}
		} else if strings.HasPrefix(line, "built with") {
			info.BuildDate = strings.TrimPrefix(line, "built with ")
		} else if strings.HasPrefix(line, "configuration:") {
			info.Configuration = strings.TrimPrefix(line, "configuration: ")
		}
	}

	if info.Full == "" {
		return nil, fmt.Errorf("failed to parse ffmpeg version")
	}

	return info, nil
}

// JSON returns the binary info as a JSON string.
func (info *BinaryInfo) JSON() string {
	data, _ := json.MarshalIndent(info, "", "  ")
	return string(data)
}

// SupportsMinVersion returns true if the FFmpeg version meets the minimum requirement.
func (info *BinaryInfo) SupportsMinVersion(major, minor int) bool {
	if info.MajorVersion > major {
		return true
	}
	if info.MajorVersion == major && info.MinorVersion >= minor {
		return true
	}
	return false
}
