package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/ripwatch/internal/display"
	"github.com/MeKo-Tech/ripwatch/internal/pipeline"
	"github.com/MeKo-Tech/ripwatch/internal/tensor/mock"
)

// Scenario is one recorded frame together with what the pipeline should
// make of it.
type Scenario struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Channels    int            `json:"channels"`
	ImageSize   display.Size   `json:"image_size"`
	InputSize   display.Size   `json:"input_size,omitzero"`
	Columns     [][]float32    `json:"columns"`
	Expected    ExpectedResult `json:"expected"`
}

// ExpectedResult describes the finalized detections of a scenario.
type ExpectedResult struct {
	Format     string              `json:"format"`
	Suppressed int                 `json:"suppressed"`
	Detections []ExpectedDetection `json:"detections"`
}

// ExpectedDetection is matched against a finalized detection in order.
type ExpectedDetection struct {
	ClassID    uint32  `json:"class_id"`
	Confidence float32 `json:"confidence"`
}

// Frame builds the pipeline frame for the scenario.
func (s Scenario) Frame() pipeline.Frame {
	cols := make([]mock.Column, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = mock.Column(c)
	}
	return pipeline.Frame{
		Tensor:    mock.Build(s.Channels, cols...),
		ImageSize: s.ImageSize,
		InputSize: s.InputSize,
	}
}

// AssertResult checks res against the scenario's expectations.
func (s Scenario) AssertResult(t *testing.T, res *pipeline.Result) {
	t.Helper()

	require.NotNil(t, res, "scenario %s", s.Name)
	assert.Equal(t, s.Expected.Format, res.Format.String(), "scenario %s format", s.Name)
	assert.Equal(t, s.Expected.Suppressed, res.Suppressed, "scenario %s suppressed", s.Name)
	require.Len(t, res.Detections, len(s.Expected.Detections), "scenario %s detections", s.Name)
	for i, want := range s.Expected.Detections {
		got := res.Detections[i]
		assert.Equal(t, want.ClassID, got.ClassID, "scenario %s detection %d class", s.Name, i)
		assert.InDelta(t, want.Confidence, got.Confidence, 1e-3, "scenario %s detection %d confidence", s.Name, i)
	}
}

// ScenariosDir returns the directory holding scenario fixtures.
func ScenariosDir(t *testing.T) string {
	t.Helper()
	return FixturesPath(t, "scenarios")
}

// LoadScenario loads a scenario fixture by name.
func LoadScenario(t *testing.T, name string) Scenario {
	t.Helper()

	path := filepath.Join(ScenariosDir(t), name+".json")
	data, err := os.ReadFile(path) //nolint:gosec // G304: Reading test fixture files with controlled paths
	require.NoError(t, err, "Failed to read scenario file: %s", path)

	var s Scenario
	require.NoError(t, json.Unmarshal(data, &s), "Failed to unmarshal scenario JSON")
	if s.Name == "" {
		s.Name = name
	}
	return s
}

// LoadScenarios loads every scenario fixture, sorted by name.
func LoadScenarios(t *testing.T) []Scenario {
	t.Helper()

	paths, err := filepath.Glob(filepath.Join(ScenariosDir(t), "*.json"))
	require.NoError(t, err)
	sort.Strings(paths)

	scenarios := make([]Scenario, 0, len(paths))
	for _, p := range paths {
		scenarios = append(scenarios, LoadScenario(t, strings.TrimSuffix(filepath.Base(p), ".json")))
	}
	return scenarios
}

// SaveScenario writes s as dir/<name>.json.
func SaveScenario(t *testing.T, dir string, s Scenario) string {
	t.Helper()

	require.NoError(t, EnsureDir(dir))
	data, err := json.MarshalIndent(s, "", "  ")
	require.NoError(t, err, "Failed to marshal scenario to JSON")

	path := filepath.Join(dir, s.Name+".json")
	require.NoError(t, os.WriteFile(path, data, 0o600), "Failed to write scenario file: %s", path)
	return path
}
