package localengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriber_EnsureLoaded_MissingBinaryIsFatal(t *testing.T) {
	tr := New("definitely-not-a-real-binary", "", "")
	err := tr.EnsureLoaded(context.Background())
	assert.Error(t, err)
}

func TestTranscriber_EnsureLoaded_FindsBinaryViaEnvVar(t *testing.T) {
	dir := t.TempDir()
	binPath := filepath.Join(dir, "fake-whisper")
	require.NoError(t, os.WriteFile(binPath, []byte("#!/bin/sh\n"), 0o755))
	t.Setenv("TEST_ASR_LOCAL_BINARY", binPath)

	tr := New("fake-whisper", "TEST_ASR_LOCAL_BINARY", "")
	require.NoError(t, tr.EnsureLoaded(context.Background()))
}

func TestTranscriber_Transcribe_RequiresLoadFirst(t *testing.T) {
	tr := New("fake-whisper", "", "")
	_, err := tr.Transcribe(context.Background(), "clip.wav", "en")
	assert.Error(t, err)
}

func TestTranscriber_Transcribe_NotImplementedAfterLoad(t *testing.T) {
	dir := t.TempDir()
	binPath := filepath.Join(dir, "fake-whisper")
	require.NoError(t, os.WriteFile(binPath, []byte("#!/bin/sh\n"), 0o755))
	t.Setenv("TEST_ASR_LOCAL_BINARY", binPath)

	tr := New("fake-whisper", "TEST_ASR_LOCAL_BINARY", "")
	require.NoError(t, tr.EnsureLoaded(context.Background()))

	_, err := tr.Transcribe(context.Background(), "clip.wav", "en")
	assert.Error(t, err)
}
