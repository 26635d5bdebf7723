package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/ripwatch/internal/benchmark"
	"github.com/MeKo-Tech/ripwatch/internal/display"
)

// benchCmd represents the bench command.
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Time each pipeline stage on synthetic detector output",
	Long: `Run the decode, stabilize, NMS, mapping, overlay sync and full frame
stages on random tensors and report per-iteration timings and allocations.

Examples:
  ripwatch bench
  ripwatch bench --channels 84 --candidates 8400 --iterations 50
  ripwatch bench --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		w := benchmark.DefaultWorkload()
		w.Channels, _ = cmd.Flags().GetInt("channels")
		w.Candidates, _ = cmd.Flags().GetInt("candidates")
		w.Seed, _ = cmd.Flags().GetInt64("seed")
		w.Display = cfg.DisplaySize()
		if cmd.Flags().Changed("input-size") {
			size, _ := cmd.Flags().GetInt("input-size")
			w.Input = display.Size{Width: float32(size), Height: float32(size)}
		}
		iterations, _ := cmd.Flags().GetInt("iterations")
		format, _ := cmd.Flags().GetString("format")

		if format != formatText && format != formatJSON {
			return fmt.Errorf("invalid format: %s (must be text or json)", format)
		}
		if iterations < 1 {
			return fmt.Errorf("invalid iteration count: %d", iterations)
		}

		pb, err := benchmark.NewPipelineBenchmark(w)
		if err != nil {
			return fmt.Errorf("build benchmark: %w", err)
		}
		defer pb.Close()

		results := pb.RunAll(iterations)
		if format == formatJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Workload: %d channels, %d candidates, %vx%v input\n\n",
			w.Channels, w.Candidates, w.Input.Width, w.Input.Height)
		pb.PrintResults(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(benchCmd)
	d := benchmark.DefaultWorkload()
	benchCmd.Flags().Int("channels", d.Channels, "tensor channel count: 5, 6 or 84")
	benchCmd.Flags().Int("candidates", d.Candidates, "candidate columns per frame")
	benchCmd.Flags().Int("input-size", int(d.Input.Width), "square model input size")
	benchCmd.Flags().Int64("seed", d.Seed, "random seed")
	benchCmd.Flags().IntP("iterations", "i", 200, "iterations per stage")
	benchCmd.Flags().StringP("format", "f", formatText, "output format: text or json")
}
