package mock

import (
	"math/rand"

	"github.com/MeKo-Tech/ripwatch/internal/tensor"
)

// Column is one candidate: C values laid out channel by channel.
type Column []float32

// Build packs columns into a [1, C, N] tensor. All columns must have the
// given channel count; short columns are zero-padded.
func Build(channels int, cols ...Column) tensor.Tensor {
	n := len(cols)
	data := make([]float32, channels*n)
	for i, col := range cols {
		for c := 0; c < channels && c < len(col); c++ {
			data[c*n+i] = col[c]
		}
	}
	return tensor.Tensor{Data: data, Shape: []int64{1, int64(channels), int64(n)}}
}

// SingleClass returns a 5-channel column: box + confidence.
func SingleClass(x, y, w, h, conf float32) Column {
	return Column{x, y, w, h, conf}
}

// BinaryLogit returns a 6-channel column: box + objectness + class logit.
func BinaryLogit(x, y, w, h, objectness, logit float32) Column {
	return Column{x, y, w, h, objectness, logit}
}

// MultiClass returns an 84-channel column with objectness at channel 4 and
// the given score at class channel 5+classID.
func MultiClass(x, y, w, h, objectness float32, classID int, score float32) Column {
	col := make(Column, 84)
	col[0], col[1], col[2], col[3] = x, y, w, h
	col[4] = objectness
	if idx := 5 + classID; idx >= 5 && idx < 84 {
		col[idx] = score
	}
	return col
}

// Random fills a [1, C, N] tensor with plausible candidates inside a
// inputW x inputH model frame. Scores are uniform in [0, 1).
func Random(rng *rand.Rand, channels, count int, inputW, inputH float32) tensor.Tensor {
	cols := make([]Column, count)
	for i := range cols {
		col := make(Column, channels)
		w := 8 + rng.Float32()*inputW/4
		h := 8 + rng.Float32()*inputH/4
		col[0] = w/2 + rng.Float32()*(inputW-w)
		col[1] = h/2 + rng.Float32()*(inputH-h)
		col[2] = w
		col[3] = h
		for c := 4; c < channels; c++ {
			col[c] = rng.Float32()
		}
		if channels == 6 {
			// logits are centred on zero
			col[5] = rng.Float32()*8 - 4
		}
		cols[i] = col
	}
	return Build(channels, cols...)
}
