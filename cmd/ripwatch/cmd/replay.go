package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/ripwatch/internal/pipeline"
	"github.com/MeKo-Tech/ripwatch/internal/utils"
)

// replayCmd represents the replay command.
var replayCmd = &cobra.Command{
	Use:   "replay <recording>",
	Short: "Run recorded model output through the detection pipeline",
	Long: `Replay recorded detector output through the decode-and-annotate pipeline.

A recording is either a JSON-lines file (.jsonl, one tensor per line) or a
directory of .npy tensors named in frame order. The summary is printed when the
recording is exhausted.

Examples:
  ripwatch replay session.jsonl
  ripwatch replay frames/ --load-images --snapshot-dir annotated/
  ripwatch replay session.jsonl --fps 30 --capture-dir rips/ --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		applyPipelineFlags(cmd, cfg)

		fps, _ := cmd.Flags().GetFloat64("fps")
		maxFrames, _ := cmd.Flags().GetInt("max-frames")
		snapshotDir, _ := cmd.Flags().GetString("snapshot-dir")
		format, _ := cmd.Flags().GetString("format")
		quiet, _ := cmd.Flags().GetBool("quiet")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		if format != formatText && format != formatJSON {
			return fmt.Errorf("invalid format: %s (must be text or json)", format)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var lastStats string
		hooks := pipeline.Hooks{
			OnStats: func(text string) {
				if text != "" {
					lastStats = text
				}
			},
		}

		var sess *session
		if snapshotDir != "" {
			if err := os.MkdirAll(snapshotDir, 0o750); err != nil {
				return fmt.Errorf("create snapshot directory: %w", err)
			}
			hooks.OnFrame = func(res *pipeline.Result) {
				writeSnapshot(sess, snapshotDir, res.Frame)
			}
		}

		sess, err := openSession(ctx, cfg, args[0], false, hooks)
		if err != nil {
			return err
		}
		defer func() {
			if err := sess.Close(); err != nil {
				slog.Error("Replay cleanup failed", "error", err)
			}
		}()

		if metricsAddr != "" {
			stopMetrics := serveMetrics(metricsAddr)
			defer stopMetrics()
		}

		var progress pipeline.ProgressCallback = pipeline.NoOpProgressCallback{}
		if !quiet {
			progress = pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "Replaying")
		}

		sum, err := pipeline.Run(ctx, sess.pipeline, sess.tap, pipeline.RunOptions{
			FPS:       fps,
			MaxFrames: maxFrames,
			Progress:  progress,
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("replay failed: %w", err)
		}

		return printSummary(cmd.OutOrStdout(), format, sum, lastStats)
	},
}

const (
	formatText = "text"
	formatJSON = "json"
)

func writeSnapshot(sess *session, dir string, frame uint64) {
	if sess == nil {
		return
	}
	img := sess.snapshot()
	if img == nil {
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("snapshot_%05d.png", frame))
	if err := utils.SaveImage(img, path); err != nil {
		slog.Error("Failed to write snapshot", "path", path, "error", err)
	}
}

// serveMetrics exposes /metrics on addr until the returned func is called.
func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		slog.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server error", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func printSummary(w io.Writer, format string, sum pipeline.RunSummary, stats string) error {
	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			pipeline.RunSummary
			Stats string `json:"stats,omitempty"`
		}{sum, stats})
	}

	_, _ = fmt.Fprintf(w, "Frames:     %d\n", sum.Frames)
	_, _ = fmt.Fprintf(w, "Errors:     %d\n", sum.Errors)
	_, _ = fmt.Fprintf(w, "Detections: %d\n", sum.Detections)
	_, _ = fmt.Fprintf(w, "Hazards:    %d\n", sum.Hazards)
	_, _ = fmt.Fprintf(w, "Captures:   %d\n", sum.Captures)
	_, _ = fmt.Fprintf(w, "Elapsed:    %v\n", sum.Elapsed.Round(time.Millisecond))
	if stats != "" {
		_, _ = fmt.Fprintln(w, stats)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(replayCmd)
	addPipelineFlags(replayCmd)
	replayCmd.Flags().Float64("fps", 0, "pace frames at this rate (0 = as fast as possible)")
	replayCmd.Flags().Int("max-frames", 0, "stop after this many frames (0 = whole recording)")
	replayCmd.Flags().String("snapshot-dir", "", "write an annotated PNG per frame to this directory")
	replayCmd.Flags().StringP("format", "f", formatText, "summary format: text or json")
	replayCmd.Flags().BoolP("quiet", "q", false, "hide the progress bar")
	replayCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address while replaying")
}
