package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/MeKo-Tech/ripwatch/internal/config"
	"github.com/MeKo-Tech/ripwatch/internal/pipeline"
	"github.com/MeKo-Tech/ripwatch/internal/server"
	"github.com/MeKo-Tech/ripwatch/internal/version"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve <recording>",
	Short: "Loop a recording through the pipeline and stream results",
	Long: `Start an HTTP server that loops a recording through the detection pipeline
and streams every frame result to connected observers.

The server provides the following endpoints:
  GET /frames        - WebSocket feed of frame, footer and reveal messages
  GET /latest        - Most recent frame result as JSON
  GET /snapshot.png  - Annotations composed over the current frame
  GET /health        - Health check endpoint
  GET /metrics       - Prometheus metrics

Examples:
  ripwatch serve session.jsonl
  ripwatch serve frames/ --load-images --port 8080
  ripwatch serve session.jsonl --host 0.0.0.0 --fps 15`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		applyPipelineFlags(cmd, cfg)

		if cmd.Flags().Changed("host") {
			cfg.Server.Host, _ = cmd.Flags().GetString("host")
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("cors-origin") {
			cfg.Server.CORSOrigin, _ = cmd.Flags().GetString("cors-origin")
		}
		if cmd.Flags().Changed("shutdown-timeout") {
			cfg.Server.ShutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
		}
		if cmd.Flags().Changed("fps") {
			cfg.Replay.FPS, _ = cmd.Flags().GetFloat64("fps")
		}

		if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
			return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", cfg.Server.Port)
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		srv := server.NewServer(cfg.ToServerConfig())
		sess, err := openSession(ctx, cfg, args[0], true, srv.Hooks())
		if err != nil {
			_ = srv.Close()
			return err
		}
		srv.WithSnapshot(sess.snapshot)

		mux := http.NewServeMux()
		srv.SetupRoutes(mux)

		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		httpServer := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			slog.Info("Starting ripwatch server", "host", cfg.Server.Host, "port", cfg.Server.Port,
				"version", version.String())
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		runDone := make(chan error, 1)
		go func() {
			progress := pipeline.NewLogProgressCallback(slog.Default(), slog.LevelDebug, "Serving").WithInterval(300)
			sum, err := pipeline.Run(ctx, sess.pipeline, sess.tap, pipeline.RunOptions{
				FPS:      cfg.Replay.FPS,
				Progress: progress,
			})
			slog.Info("Pipeline stopped", "frames", sum.Frames, "detections", sum.Detections, "hazards", sum.Hazards)
			runDone <- err
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigChan)

		var runErr error
		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		case runErr = <-runDone:
			runDone = nil
			if runErr != nil {
				slog.Error("Pipeline failed", "error", runErr)
			}
		}

		slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", cfg.Server.ShutdownTimeout))
		cancel()
		if runDone != nil {
			if err := <-runDone; err != nil && !errors.Is(err, context.Canceled) {
				runErr = err
			}
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer shutdownCancel()

		// Observers hold hijacked connections that Shutdown does not track.
		err = multierr.Combine(
			srv.Close(),
			httpServer.Shutdown(shutdownCtx),
			sess.Close(),
		)
		if err != nil {
			slog.Error("Shutdown error", "error", err)
		}

		slog.Info("Graceful shutdown completed")
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("pipeline failed: %w", runErr)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addPipelineFlags(serveCmd)
	d := config.DefaultConfig()
	serveCmd.Flags().StringP("host", "H", d.Server.Host, "server host")
	serveCmd.Flags().IntP("port", "p", d.Server.Port, "server port")
	serveCmd.Flags().String("cors-origin", d.Server.CORSOrigin, "CORS allowed origins")
	serveCmd.Flags().Int("shutdown-timeout", d.Server.ShutdownTimeout, "shutdown timeout in seconds")
	serveCmd.Flags().Float64("fps", d.Replay.FPS, "frames per second fed from the recording (0 = as fast as possible)")
}
