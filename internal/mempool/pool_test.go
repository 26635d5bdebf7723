package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeClass(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{name: "small size gets minimum", input: 1, expected: 1024},
		{name: "exactly 1024", input: 1024, expected: 1024},
		{name: "just over 1024", input: 1025, expected: 2048},
		{name: "odd number", input: 1500, expected: 2048},
		{name: "large size", input: 10000, expected: 10240},
		{name: "zero size", input: 0, expected: 1024},
		{name: "negative size", input: -1, expected: 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sizeClass(tt.input))
		})
	}
}

func TestGetFloat32(t *testing.T) {
	for _, n := range []int{0, 1, 8400 * 6, 2048} {
		buf := GetFloat32(n)
		require.Len(t, buf, n)
		assert.Equal(t, sizeClass(n), cap(buf))
		for i := range buf {
			buf[i] = float32(i)
		}
		PutFloat32(buf)
	}
}

func TestGetFloat32_ReturnsZeroed(t *testing.T) {
	buf := GetFloat32(16)
	for i := range buf {
		buf[i] = 42
	}
	PutFloat32(buf)

	again := GetFloat32(16)
	for _, v := range again {
		assert.Zero(t, v)
	}
	PutFloat32(again)
}

func TestGetBool_ReturnsCleared(t *testing.T) {
	buf := GetBool(100)
	for i := range buf {
		buf[i] = true
	}
	PutBool(buf)

	again := GetBool(100)
	require.Len(t, again, 100)
	for _, v := range again {
		assert.False(t, v)
	}
	PutBool(again)
}

func TestPut_NilAndForeign(t *testing.T) {
	assert.NotPanics(t, func() {
		PutFloat32(nil)
		PutBool(nil)
		PutFloat32(make([]float32, 7))
		PutBool(make([]bool, 3000))
	})
}

func TestConcurrentAccess(t *testing.T) {
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				n := (g+1)*100 + i
				f := GetFloat32(n)
				b := GetBool(n)
				if len(f) != n || len(b) != n {
					t.Errorf("unexpected length: %d/%d want %d", len(f), len(b), n)
				}
				PutFloat32(f)
				PutBool(b)
			}
		}(g)
	}
	wg.Wait()
}
