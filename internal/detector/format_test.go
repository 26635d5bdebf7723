package detector

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/ripwatch/internal/tensor"
	"github.com/MeKo-Tech/ripwatch/internal/tensor/mock"
)

func TestFormatFor(t *testing.T) {
	tests := []struct {
		channels int
		want     Format
		wantErr  bool
	}{
		{channels: 84, want: FormatMultiClass},
		{channels: 6, want: FormatBinaryLogit},
		{channels: 5, want: FormatSingleClass},
		{channels: 7, want: FormatUnknown, wantErr: true},
		{channels: 85, want: FormatUnknown, wantErr: true},
		{channels: 0, want: FormatUnknown, wantErr: true},
	}

	for _, tt := range tests {
		got, err := FormatFor(tt.channels)
		assert.Equal(t, tt.want, got, "channels=%d", tt.channels)
		if tt.wantErr {
			assert.True(t, IsUnsupportedFormat(err))
		} else {
			require.NoError(t, err)
			assert.Equal(t, tt.channels, got.Channels())
		}
	}
}

func TestFormat_String(t *testing.T) {
	assert.Equal(t, "multi-class", FormatMultiClass.String())
	assert.Equal(t, "binary-logit", FormatBinaryLogit.String())
	assert.Equal(t, "single-class", FormatSingleClass.String())
	assert.Equal(t, "unknown", FormatUnknown.String())
	assert.True(t, FormatBinaryLogit.Stabilized())
	assert.False(t, FormatSingleClass.Stabilized())
}

func TestDecode_SingleClass(t *testing.T) {
	ten := mock.Build(5,
		mock.SingleClass(10, 10, 20, 20, 0.9),
		mock.SingleClass(30, 30, 20, 20, 0.1),
		mock.SingleClass(50, 50, 20, 20, 0.24),
		mock.SingleClass(70, 70, 20, 20, 0.25),
	)

	format, cands, err := Decode(ten, 640, 640)
	require.NoError(t, err)
	assert.Equal(t, FormatSingleClass, format)
	require.Len(t, cands, 2)

	assert.Equal(t, uint32(0), cands[0].SlotID)
	assert.InDelta(t, 0.9, cands[0].Confidence, 1e-6)
	assert.InDelta(t, 10, cands[0].X, 1e-6)
	assert.InDelta(t, 20, cands[0].W, 1e-6)

	assert.Equal(t, uint32(3), cands[1].SlotID, "0.25 is kept (inclusive threshold)")
	for _, c := range cands {
		assert.Equal(t, uint32(0), c.ClassID)
	}
}

func TestDecode_MultiClass(t *testing.T) {
	tied := mock.MultiClass(100, 100, 40, 40, 1.0, 2, 0.6)
	tied[5+5] = 0.6

	ten := mock.Build(84,
		mock.MultiClass(10, 10, 20, 20, 0.8, 3, 0.7),
		mock.MultiClass(50, 50, 20, 20, 0.5, 7, 0.4), // 0.2 < 0.25
		tied,
		mock.MultiClass(150, 150, 20, 20, 0.9, 78, 0.9),
	)

	format, cands, err := Decode(ten, 640, 640)
	require.NoError(t, err)
	assert.Equal(t, FormatMultiClass, format)
	require.Len(t, cands, 3)

	assert.Equal(t, uint32(3), cands[0].ClassID)
	assert.InDelta(t, 0.8*0.7, cands[0].Confidence, 1e-6)

	assert.Equal(t, uint32(2), cands[1].ClassID, "ties favor the lowest class index")
	assert.Equal(t, uint32(2), cands[1].SlotID)

	assert.Equal(t, uint32(78), cands[2].ClassID, "last class channel is addressable")
}

func TestDecode_BinaryLogit(t *testing.T) {
	ten := mock.Build(6,
		mock.BinaryLogit(10, 10, 20, 20, 0.9, 2),      // class 1, 0.9*sigmoid(2)
		mock.BinaryLogit(20, 20, 20, 20, 0.9, -2),     // 0.9*0.119 < 0.15
		mock.BinaryLogit(30, 30, 20, 20, 3, 0),        // objectness squashed, class 0
		mock.BinaryLogit(40, 40, 20, 20, 0.8, 0.0001), // at the bias: class 0
	)

	format, cands, err := Decode(ten, 640, 640)
	require.NoError(t, err)
	assert.Equal(t, FormatBinaryLogit, format)
	require.Len(t, cands, 3)

	assert.Equal(t, uint32(1), cands[0].ClassID)
	assert.InDelta(t, 2, cands[0].ClassLogit, 1e-6)
	assert.InDelta(t, 0.9/(1+math.Exp(-2)), cands[0].Confidence, 1e-5)

	assert.Equal(t, uint32(2), cands[1].SlotID)
	assert.Equal(t, uint32(0), cands[1].ClassID)
	assert.InDelta(t, 0.5/(1+math.Exp(-3)), cands[1].Confidence, 1e-5)

	assert.Equal(t, uint32(0), cands[2].ClassID)
}

func TestDecode_NormalizedBoxes(t *testing.T) {
	ten := mock.Build(5,
		mock.SingleClass(0.5, 0.5, 0.25, 0.5, 0.9),
		mock.SingleClass(100, 100, 20, 0.5, 0.9),
	)

	_, cands, err := Decode(ten, 640, 480)
	require.NoError(t, err)
	require.Len(t, cands, 2)

	assert.InDelta(t, 320, cands[0].X, 1e-4)
	assert.InDelta(t, 240, cands[0].Y, 1e-4)
	assert.InDelta(t, 160, cands[0].W, 1e-4)
	assert.InDelta(t, 240, cands[0].H, 1e-4)

	// only one side <= 1: left in pixels
	assert.InDelta(t, 100, cands[1].X, 1e-6)
	assert.InDelta(t, 0.5, cands[1].H, 1e-6)
}

func TestDecode_UnsupportedFormat(t *testing.T) {
	ten := mock.Build(7, mock.Column{10, 10, 20, 20, 0.9, 0.9, 0.9})

	format, cands, err := Decode(ten, 640, 640)
	require.Error(t, err)
	assert.Equal(t, FormatUnknown, format)
	assert.Empty(t, cands)

	var ufe *UnsupportedFormatError
	require.True(t, errors.As(err, &ufe))
	assert.Equal(t, 7, ufe.Channels)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDecode_MalformedTensor(t *testing.T) {
	_, cands, err := Decode(tensor.Tensor{Data: make([]float32, 5), Shape: []int64{1, 5}}, 640, 640)
	require.Error(t, err)
	assert.Empty(t, cands)
	assert.False(t, IsUnsupportedFormat(err))

	var shapeErr *tensor.ShapeError
	assert.True(t, errors.As(err, &shapeErr))
}

func TestDecode_EmptyAndNaN(t *testing.T) {
	_, cands, err := Decode(tensor.Tensor{Data: []float32{}, Shape: []int64{1, 5, 0}}, 640, 640)
	require.NoError(t, err)
	assert.Empty(t, cands)

	nan := float32(math.NaN())
	_, cands, err = Decode(mock.Build(5, mock.SingleClass(10, 10, 20, 20, nan)), 640, 640)
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestDecoder_CustomThresholds(t *testing.T) {
	th := DefaultThresholds()
	th.SingleClass = 0.5
	d := NewDecoder(th)

	_, cands, err := d.Decode(mock.Build(5,
		mock.SingleClass(10, 10, 20, 20, 0.4),
		mock.SingleClass(10, 10, 20, 20, 0.6),
	), 640, 640)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, uint32(1), cands[0].SlotID)
}

func TestSigmoid(t *testing.T) {
	assert.InDelta(t, 0.5, Sigmoid(0), 1e-7)
	assert.InDelta(t, 1/(1+math.Exp(-2)), Sigmoid(2), 1e-6)
	assert.InDelta(t, 1/(1+math.Exp(4)), Sigmoid(-4), 1e-6)
}

func TestDecode_DebugLogCarriesValueRange(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	_, _, err := Decode(mock.Build(5, mock.SingleClass(10, 20, 4, 8, 0.5)), 640, 640)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"msg":"Decoded detections"`)
	assert.Contains(t, buf.String(), `"min":0.5`)
	assert.Contains(t, buf.String(), `"max":20`)
	assert.Contains(t, buf.String(), `"mean":8.5`)

	buf.Reset()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	_, _, err = Decode(mock.Build(5, mock.SingleClass(10, 20, 4, 8, 0.5)), 640, 640)
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}
