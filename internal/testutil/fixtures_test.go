package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/ripwatch/internal/display"
)

func TestLoadScenarios(t *testing.T) {
	scenarios := LoadScenarios(t)
	require.NotEmpty(t, scenarios)

	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.Name
		assert.NotEmpty(t, s.Description, "scenario %s", s.Name)
		assert.NoError(t, s.Frame().Tensor.Validate(), "scenario %s", s.Name)
	}
	assert.Contains(t, names, "binary_rip")
	assert.IsIncreasing(t, names)
}

func TestScenarioFrame(t *testing.T) {
	s := LoadScenario(t, "multi_class_crowd")
	f := s.Frame()

	assert.Equal(t, []int64{1, 84, 3}, f.Tensor.Shape)
	assert.InDelta(t, 0.8, f.Tensor.At(0, 8, 0), 1e-6)
	assert.Zero(t, f.Tensor.At(0, 83, 2), "short columns are zero-padded")
	assert.Equal(t, display.Size{Width: 640, Height: 640}, f.ImageSize)
}

func TestSaveAndLoadScenario(t *testing.T) {
	dir := t.TempDir()
	s := Scenario{
		Name:        "roundtrip",
		Description: "Scenario written by a test",
		Channels:    5,
		ImageSize:   display.Size{Width: 320, Height: 240},
		Columns:     [][]float32{{10, 10, 4, 4, 0.5}},
		Expected: ExpectedResult{
			Format:     "single-class",
			Detections: []ExpectedDetection{{ClassID: 0, Confidence: 0.5}},
		},
	}

	path := SaveScenario(t, dir, s)
	assert.Equal(t, filepath.Join(dir, "roundtrip.json"), path)
	assert.True(t, FileExists(path))
}
