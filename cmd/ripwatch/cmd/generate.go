package cmd

import (
	"errors"
	"fmt"
	"image"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/MeKo-Tech/ripwatch/internal/display"
	"github.com/MeKo-Tech/ripwatch/internal/pipeline"
	"github.com/MeKo-Tech/ripwatch/internal/replay"
	"github.com/MeKo-Tech/ripwatch/internal/tensor/mock"
	"github.com/MeKo-Tech/ripwatch/internal/testutil"
	"github.com/MeKo-Tech/ripwatch/internal/utils"
)

// generateCmd represents the generate command.
var generateCmd = &cobra.Command{
	Use:   "generate <output>",
	Short: "Write a synthetic recording of detector output",
	Long: `Generate a recording of random detector output for demos and testing.

When the output ends in .jsonl a JSON-lines recording is written, otherwise the
output is treated as a directory and one .npy tensor is written per frame.

Examples:
  ripwatch generate demo.jsonl --frames 300
  ripwatch generate frames/ --channels 84 --candidates 32 --seed 7
  ripwatch generate frames/ --images --image-width 1280 --image-height 720`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		frames, _ := cmd.Flags().GetInt("frames")
		channels, _ := cmd.Flags().GetInt("channels")
		candidates, _ := cmd.Flags().GetInt("candidates")
		seed, _ := cmd.Flags().GetInt64("seed")
		imageW, _ := cmd.Flags().GetInt("image-width")
		imageH, _ := cmd.Flags().GetInt("image-height")
		inputW, _ := cmd.Flags().GetInt("input-width")
		inputH, _ := cmd.Flags().GetInt("input-height")
		images, _ := cmd.Flags().GetBool("images")

		if frames < 1 {
			return fmt.Errorf("invalid frame count: %d (must be at least 1)", frames)
		}
		if candidates < 0 {
			return fmt.Errorf("invalid candidate count: %d", candidates)
		}
		switch channels {
		case 5, 6, 84:
		default:
			return fmt.Errorf("unsupported channel count: %d (must be 5, 6 or 84)", channels)
		}

		imageSize := display.Size{Width: float32(imageW), Height: float32(imageH)}
		if !imageSize.Valid() {
			return fmt.Errorf("invalid image size: %dx%d", imageW, imageH)
		}
		inputSize := display.Size{Width: float32(inputW), Height: float32(inputH)}
		if inputW == 0 && inputH == 0 {
			inputSize = imageSize
		}
		if !inputSize.Valid() {
			return fmt.Errorf("invalid input size: %dx%d", inputW, inputH)
		}

		g := &recordingGenerator{
			rng:        rand.New(rand.NewSource(seed)), //nolint:gosec // G404: synthetic data
			channels:   channels,
			candidates: candidates,
			imageSize:  imageSize,
			inputSize:  inputSize,
			images:     images,
			seed:       seed,
		}

		out := args[0]
		var err error
		if strings.EqualFold(filepath.Ext(out), ".jsonl") {
			if images {
				return errors.New("--images needs a directory output")
			}
			err = g.writeJSONL(out, frames)
		} else {
			err = g.writeNpyDir(out, frames)
		}
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d frames (%d channels) to %s\n", frames, channels, out)
		return nil
	},
}

type recordingGenerator struct {
	rng        *rand.Rand
	channels   int
	candidates int
	imageSize  display.Size
	inputSize  display.Size
	images     bool
	seed       int64
}

func (g *recordingGenerator) frame() pipeline.Frame {
	return pipeline.Frame{
		Tensor:        mock.Random(g.rng, g.channels, g.candidates, g.inputSize.Width, g.inputSize.Height),
		ImageSize:     g.imageSize,
		InputSize:     g.inputSize,
		InferenceTime: time.Duration(8+g.rng.Intn(12)) * time.Millisecond,
	}
}

func (g *recordingGenerator) writeJSONL(path string, frames int) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(path) //nolint:gosec // G304: output path from the command line
	if err != nil {
		return fmt.Errorf("create recording: %w", err)
	}
	defer func() { err = multierr.Append(err, f.Close()) }()

	w := replay.NewJSONLWriter(f)
	for i := range frames {
		if err := w.Write(g.frame()); err != nil {
			return fmt.Errorf("write frame %d: %w", i, err)
		}
	}
	return w.Flush()
}

func (g *recordingGenerator) writeNpyDir(dir string, frames int) error {
	for i := range frames {
		path, err := replay.WriteNpyFrame(dir, i, g.frame().Tensor)
		if err != nil {
			return fmt.Errorf("write frame %d: %w", i, err)
		}
		if !g.images {
			continue
		}
		if err := utils.SaveImage(g.cameraFrame(i), strings.TrimSuffix(path, ".npy")+".png"); err != nil {
			return fmt.Errorf("write frame %d image: %w", i, err)
		}
	}
	return nil
}

// cameraFrame paints a beach scene with a drifting rip channel.
func (g *recordingGenerator) cameraFrame(i int) image.Image {
	cfg := testutil.DefaultCameraFrameConfig()
	cfg.Size = testutil.ImageSize{Width: int(g.imageSize.Width), Height: int(g.imageSize.Height)}
	cfg.Seed = g.seed + int64(i)
	cfg.Caption = fmt.Sprintf("frame %d", i)

	band := cfg.Size.Width / 12
	x := (cfg.Size.Width/3 + i*2) % max(1, cfg.Size.Width-band)
	cfg.Channel = image.Rect(x, 0, x+band, cfg.Size.Height)
	return testutil.GenerateCameraFrame(cfg)
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().IntP("frames", "n", 100, "number of frames to generate")
	generateCmd.Flags().Int("channels", 6, "tensor channel count: 5, 6 or 84")
	generateCmd.Flags().Int("candidates", 16, "candidate columns per frame")
	generateCmd.Flags().Int64("seed", 1, "random seed")
	generateCmd.Flags().Int("image-width", int(replay.DefaultImageSize.Width), "camera frame width")
	generateCmd.Flags().Int("image-height", int(replay.DefaultImageSize.Height), "camera frame height")
	generateCmd.Flags().Int("input-width", 0, "model input width (0 = image width)")
	generateCmd.Flags().Int("input-height", 0, "model input height (0 = image height)")
	generateCmd.Flags().Bool("images", false, "write a synthetic camera frame next to each .npy tensor")
}
