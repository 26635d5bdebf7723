package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/ripwatch/internal/pipeline"
)

func TestGenerateThenReplayJSONL(t *testing.T) {
	t.Chdir(t.TempDir())
	recording := filepath.Join(t.TempDir(), "session.jsonl")

	output, err := executeCommandAndCaptureOutput(t, rootCmd,
		[]string{"generate", recording, "--frames", "5", "--channels", "6", "--seed", "3"})
	require.NoError(t, err)
	assert.Contains(t, output, "Wrote 5 frames (6 channels)")

	snapshots := filepath.Join(t.TempDir(), "annotated")
	output, err = executeCommandAndCaptureOutput(t, rootCmd,
		[]string{"replay", recording, "--quiet", "--format", "json", "--snapshot-dir", snapshots})
	require.NoError(t, err)

	var sum pipeline.RunSummary
	require.NoError(t, json.Unmarshal([]byte(output), &sum), output)
	assert.Equal(t, 5, sum.Frames)
	assert.Equal(t, 0, sum.Errors)

	pngs, err := filepath.Glob(filepath.Join(snapshots, "snapshot_*.png"))
	require.NoError(t, err)
	assert.Len(t, pngs, 5)
}

func TestGenerateThenReplayNpyDir(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := filepath.Join(t.TempDir(), "frames")

	_, err := executeCommandAndCaptureOutput(t, rootCmd,
		[]string{"generate", dir, "--frames", "4", "--channels", "84", "--candidates", "8"})
	require.NoError(t, err)

	npys, err := filepath.Glob(filepath.Join(dir, "*.npy"))
	require.NoError(t, err)
	assert.Len(t, npys, 4)

	output, err := executeCommandAndCaptureOutput(t, rootCmd,
		[]string{"replay", dir, "--quiet", "--max-frames", "2"})
	require.NoError(t, err)
	assert.Contains(t, output, "Frames:     2")
	assert.Contains(t, output, "Errors:     0")
}

func TestGenerateRejectsBadArguments(t *testing.T) {
	out := filepath.Join(t.TempDir(), "x.jsonl")
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"channels", []string{"generate", out, "--channels", "7"}, "unsupported channel count"},
		{"frames", []string{"generate", out, "--frames", "0"}, "invalid frame count"},
		{"image size", []string{"generate", out, "--image-width", "0"}, "invalid image size"},
		{"missing output", []string{"generate"}, "accepts 1 arg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCommandAndCaptureOutput(t, rootCmd, tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReplayErrors(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := executeCommandAndCaptureOutput(t, rootCmd,
		[]string{"replay", filepath.Join(t.TempDir(), "missing.jsonl"), "--quiet"})
	require.Error(t, err)

	recording := filepath.Join(t.TempDir(), "one.jsonl")
	_, err = executeCommandAndCaptureOutput(t, rootCmd, []string{"generate", recording, "--frames", "1"})
	require.NoError(t, err)

	_, err = executeCommandAndCaptureOutput(t, rootCmd,
		[]string{"replay", recording, "--quiet", "--format", "xml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestServeRejectsInvalidPort(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := executeCommandAndCaptureOutput(t, rootCmd, []string{"serve", "rec.jsonl", "--port", "0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port number")
}

func TestConfigShow(t *testing.T) {
	t.Chdir(t.TempDir())

	output, err := executeCommandAndCaptureOutput(t, rootCmd, []string{"config", "show"})
	require.NoError(t, err)
	assert.Contains(t, output, "stabilizer:")
	assert.Contains(t, output, "screenshot_cooldown:")

	output, err = executeCommandAndCaptureOutput(t, rootCmd, []string{"config", "show", "--format", "json"})
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(output), &decoded), output)
	assert.Contains(t, decoded, "server")
	assert.Contains(t, decoded, "replay")

	_, err = executeCommandAndCaptureOutput(t, rootCmd, []string{"config", "show", "--format", "toml"})
	require.Error(t, err)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ripwatch.yaml")

	output, err := executeCommandAndCaptureOutput(t, rootCmd, []string{"config", "init", path})
	require.NoError(t, err)
	assert.Contains(t, output, "Wrote default configuration")

	data, err := os.ReadFile(path) //nolint:gosec // G304: test temp file
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "hooks:"))

	_, err = executeCommandAndCaptureOutput(t, rootCmd, []string{"config", "init", path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = executeCommandAndCaptureOutput(t, rootCmd, []string{"config", "init", path, "--force"})
	require.NoError(t, err)
}

func TestConfigPaths(t *testing.T) {
	output, err := executeCommandAndCaptureOutput(t, rootCmd, []string{"config", "paths"})
	require.NoError(t, err)
	assert.Contains(t, output, "Environment prefix: RIPWATCH")
}

func TestGenerateWithImagesThenReplay(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := filepath.Join(t.TempDir(), "frames")

	_, err := executeCommandAndCaptureOutput(t, rootCmd, []string{"generate", dir, "--frames", "2",
		"--images", "--image-width", "160", "--image-height", "90", "--input-width", "64", "--input-height", "64"})
	require.NoError(t, err)

	pngs, err := filepath.Glob(filepath.Join(dir, "frame_*.png"))
	require.NoError(t, err)
	assert.Len(t, pngs, 2)

	snapshots := filepath.Join(t.TempDir(), "annotated")
	output, err := executeCommandAndCaptureOutput(t, rootCmd, []string{"replay", dir, "--quiet",
		"--load-images", "--input-width", "64", "--input-height", "64", "--snapshot-dir", snapshots})
	require.NoError(t, err)
	assert.Contains(t, output, "Frames:     2")

	written, err := filepath.Glob(filepath.Join(snapshots, "*.png"))
	require.NoError(t, err)
	assert.Len(t, written, 2)

	_, err = executeCommandAndCaptureOutput(t, rootCmd,
		[]string{"generate", filepath.Join(t.TempDir(), "x.jsonl"), "--images"})
	require.Error(t, err)
}

func TestBench(t *testing.T) {
	t.Chdir(t.TempDir())

	output, err := executeCommandAndCaptureOutput(t, rootCmd,
		[]string{"bench", "--candidates", "10", "--iterations", "3"})
	require.NoError(t, err)
	assert.Contains(t, output, "Workload: 6 channels, 10 candidates")
	assert.Contains(t, output, "ProcessFrame: 3 iterations")

	output, err = executeCommandAndCaptureOutput(t, rootCmd,
		[]string{"bench", "--channels", "84", "--candidates", "5", "--iterations", "2", "--format", "json"})
	require.NoError(t, err)
	var results []map[string]any
	require.NoError(t, json.Unmarshal([]byte(output), &results), output)
	assert.Len(t, results, 6)

	_, err = executeCommandAndCaptureOutput(t, rootCmd, []string{"bench", "--channels", "7"})
	require.Error(t, err)
}
