package detector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chewxy/math32"

	"github.com/MeKo-Tech/ripwatch/internal/tensor"
)

// Format identifies the detector output encoding by its channel layout.
type Format int

const (
	FormatUnknown     Format = iota
	FormatMultiClass         // 84 channels: box, objectness, 79 class scores
	FormatBinaryLogit        // 6 channels: box, objectness, class logit
	FormatSingleClass        // 5 channels: box, confidence
)

const (
	multiClassChannels  = 84
	binaryLogitChannels = 6
	singleClassChannels = 5

	objectnessChannel = 4
	logitChannel      = 5
	firstClassChannel = 5
)

func (f Format) String() string {
	switch f {
	case FormatMultiClass:
		return "multi-class"
	case FormatBinaryLogit:
		return "binary-logit"
	case FormatSingleClass:
		return "single-class"
	default:
		return "unknown"
	}
}

// Channels returns the channel count that identifies the format.
func (f Format) Channels() int {
	switch f {
	case FormatMultiClass:
		return multiClassChannels
	case FormatBinaryLogit:
		return binaryLogitChannels
	case FormatSingleClass:
		return singleClassChannels
	default:
		return 0
	}
}

// Stabilized reports whether candidates of this format carry a class logit
// that should go through the Stabilizer.
func (f Format) Stabilized() bool {
	return f == FormatBinaryLogit
}

// FormatFor maps a channel count to its Format.
func FormatFor(channels int) (Format, error) {
	switch channels {
	case multiClassChannels:
		return FormatMultiClass, nil
	case binaryLogitChannels:
		return FormatBinaryLogit, nil
	case singleClassChannels:
		return FormatSingleClass, nil
	default:
		return FormatUnknown, &UnsupportedFormatError{Channels: channels}
	}
}

// Decoder turns a [1, C, N] detector tensor into filtered candidates.
// It holds no per-frame state and is safe to share.
type Decoder struct {
	Thresholds Thresholds
}

// NewDecoder creates a decoder with the given thresholds.
func NewDecoder(th Thresholds) *Decoder {
	return &Decoder{Thresholds: th}
}

// Decode dispatches on the channel count and returns every candidate that
// passes its format's confidence threshold, in tensor order. inputW and
// inputH are the model input size used to scale normalized boxes.
func (d *Decoder) Decode(t tensor.Tensor, inputW, inputH float32) (Format, []RawCandidate, error) {
	if err := t.Validate(); err != nil {
		return FormatUnknown, nil, fmt.Errorf("decode: %w", err)
	}

	format, err := FormatFor(t.Channels())
	if err != nil {
		return FormatUnknown, nil, err
	}

	n := t.Count()
	out := make([]RawCandidate, 0, min(n, 64))
	for i := range n {
		c, ok := d.decodeColumn(format, t, i)
		if !ok {
			continue
		}
		normalize(&c, inputW, inputH)
		out = append(out, c)
	}

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		minVal, maxVal, mean := tensor.Stats(t.Data)
		slog.Debug("Decoded detections",
			"format", format.String(),
			"candidates", n,
			"kept", len(out),
			"min", minVal,
			"max", maxVal,
			"mean", mean)
	}

	return format, out, nil
}

// Decode runs a Decoder with DefaultThresholds.
func Decode(t tensor.Tensor, inputW, inputH float32) (Format, []RawCandidate, error) {
	return NewDecoder(DefaultThresholds()).Decode(t, inputW, inputH)
}

func (d *Decoder) decodeColumn(format Format, t tensor.Tensor, i int) (RawCandidate, bool) {
	c := RawCandidate{
		X:      t.At(0, 0, i),
		Y:      t.At(0, 1, i),
		W:      t.At(0, 2, i),
		H:      t.At(0, 3, i),
		SlotID: uint32(i), //nolint:gosec // G115: column count fits in uint32
	}

	switch format {
	case FormatMultiClass:
		objectness := t.At(0, objectnessChannel, i)
		var maxScore float32
		var classID int
		for ch := firstClassChannel; ch < t.Channels(); ch++ {
			if s := t.At(0, ch, i); s > maxScore {
				maxScore = s
				classID = ch - firstClassChannel
			}
		}
		c.Confidence = objectness * maxScore
		c.ClassID = uint32(classID) //nolint:gosec // G115: bounded by channel count
		return c, c.Confidence >= d.Thresholds.MultiClass

	case FormatBinaryLogit:
		objectness := t.At(0, objectnessChannel, i)
		if objectness < 0 || objectness > 1 {
			objectness = Sigmoid(objectness)
		}
		logit := t.At(0, logitChannel, i)
		c.ClassLogit = logit
		if logit > d.Thresholds.ClassBias {
			c.ClassID = 1
		}
		c.Confidence = objectness * Sigmoid(logit)
		return c, c.Confidence >= d.Thresholds.BinaryLogit

	case FormatSingleClass:
		c.Confidence = t.At(0, objectnessChannel, i)
		return c, c.Confidence >= d.Thresholds.SingleClass

	default:
		return c, false
	}
}

// normalize scales a box given in [0, 1] units to model pixels.
func normalize(c *RawCandidate, inputW, inputH float32) {
	if c.W > 1 || c.H > 1 {
		return
	}
	c.X *= inputW
	c.W *= inputW
	c.Y *= inputH
	c.H *= inputH
}

// Sigmoid is the logistic function.
func Sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}
