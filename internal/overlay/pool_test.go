package overlay

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/ripwatch/internal/display"
)

func makeDetections(n int, classID uint32) []display.Detection {
	dets := make([]display.Detection, n)
	for i := range dets {
		dets[i] = display.Detection{
			CenterX:    float32(i * 10),
			CenterY:    float32(-i * 5),
			Width:      20,
			Height:     20,
			Label:      fmt.Sprintf("det %d", i),
			ClassID:    classID,
			Confidence: 0.9,
		}
	}
	return dets
}

func TestPool_MarkerCap(t *testing.T) {
	rec := NewRecorder()
	pool := NewPool(rec, DefaultMaxMarkers)

	stats := pool.Sync(makeDetections(6, 0))
	assert.Equal(t, SyncStats{Boxes: 6, Markers: 5, MarkersDenied: 1, BoxesCreated: 6}, stats)

	boxes, markers := rec.ActiveCounts()
	assert.Equal(t, 6, boxes)
	assert.Equal(t, 5, markers)

	b, m := pool.Active()
	assert.Equal(t, 6, b)
	assert.Equal(t, 5, m)
}

func TestPool_ShrinkDeactivatesTail(t *testing.T) {
	rec := NewRecorder()
	pool := NewPool(rec, DefaultMaxMarkers)

	pool.Sync(makeDetections(6, 0))
	stats := pool.Sync(makeDetections(2, 0))
	assert.Equal(t, 2, stats.Boxes)
	assert.Equal(t, 2, stats.Markers)
	assert.Zero(t, stats.BoxesCreated)

	boxes, markers := rec.ActiveCounts()
	assert.Equal(t, 2, boxes)
	assert.Equal(t, 2, markers)

	createdBoxes, createdMarkers := rec.Created()
	assert.Equal(t, 6, createdBoxes, "pool never shrinks")
	assert.Equal(t, 5, createdMarkers)

	all := rec.Boxes()
	for i := 2; i < len(all); i++ {
		assert.False(t, all[i].Active, "box %d should be inactive", i)
	}
}

func TestPool_NoAllocationAtSteadyState(t *testing.T) {
	rec := NewRecorder()
	pool := NewPool(rec, DefaultMaxMarkers)

	pool.Sync(makeDetections(8, 0))
	for range 10 {
		stats := pool.Sync(makeDetections(8, 0))
		assert.Zero(t, stats.BoxesCreated)
	}
	boxes, markers := rec.Created()
	assert.Equal(t, 8, boxes)
	assert.Equal(t, 5, markers)

	bs, ms := pool.Size()
	assert.Equal(t, 8, bs)
	assert.Equal(t, 5, ms)
}

func TestPool_ResetsStyleOnReuse(t *testing.T) {
	rec := NewRecorder()
	hazard := HazardStyle()
	pool := NewPool(rec, DefaultMaxMarkers, WithStyleFunc(func(det display.Detection) (Style, bool) {
		return hazard, det.ClassID == 0
	}))

	pool.Sync(makeDetections(1, 0))
	assert.Equal(t, hazard, rec.Boxes()[0].Style)
	assert.Equal(t, hazard, rec.Markers()[0].Style)

	pool.Sync([]display.Detection{{Label: "other", ClassID: 1, Width: 5, Height: 5}})
	box := rec.Boxes()[0]
	assert.Equal(t, DefaultStyle(), box.Style)
	assert.Equal(t, "other", box.Detection.Label)
	assert.Equal(t, 2, box.Resets)
	assert.Equal(t, DefaultStyle(), rec.Markers()[0].Style)
}

func TestPool_IdentityIsPositional(t *testing.T) {
	rec := NewRecorder()
	pool := NewPool(rec, DefaultMaxMarkers)

	first := makeDetections(3, 0)
	pool.Sync(first)
	reversed := []display.Detection{first[2], first[1], first[0]}
	pool.Sync(reversed)

	boxes := rec.Boxes()
	require.Len(t, boxes, 3)
	assert.Equal(t, "det 2", boxes[0].Detection.Label)
	assert.Equal(t, "det 0", boxes[2].Detection.Label)

	markers := rec.Markers()
	assert.InDelta(t, first[2].CenterX, markers[0].X, 1e-9)
	assert.InDelta(t, first[2].CenterY, markers[0].Y, 1e-9)
}

func TestPool_AcquireMarker(t *testing.T) {
	pool := NewPool(NewRecorder(), 2)

	for i := range 2 {
		m, ok := pool.AcquireMarker(i)
		assert.True(t, ok)
		assert.NotNil(t, m)
	}
	m, ok := pool.AcquireMarker(2)
	assert.False(t, ok)
	assert.Nil(t, m)
	assert.Equal(t, 2, pool.MaxMarkers())

	none := NewPool(NewRecorder(), -3)
	_, ok = none.AcquireMarker(0)
	assert.False(t, ok)
	stats := none.Sync(makeDetections(2, 0))
	assert.Equal(t, 2, stats.Boxes)
	assert.Equal(t, 2, stats.MarkersDenied)
}

func TestPool_Clear(t *testing.T) {
	rec := NewRecorder()
	pool := NewPool(rec, DefaultMaxMarkers)
	pool.Sync(makeDetections(4, 0))

	pool.Clear()
	boxes, markers := rec.ActiveCounts()
	assert.Zero(t, boxes)
	assert.Zero(t, markers)
	assert.Empty(t, rec.ActiveDetections())

	stats := pool.Sync(nil)
	assert.Equal(t, SyncStats{}, stats)
}

func TestPool_BaseStyle(t *testing.T) {
	rec := NewRecorder()
	base := Style{Thickness: 7}
	pool := NewPool(rec, 1, WithBaseStyle(base))
	pool.Sync(makeDetections(1, 3))
	assert.Equal(t, base, rec.Boxes()[0].Style)
}
