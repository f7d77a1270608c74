package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/smoke/app"
	"github.com/pthm-cable/smoke/config"
	"github.com/pthm-cable/smoke/stream"
	"github.com/pthm-cable/smoke/viewer"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	headless := flag.Bool("headless", false, "Run without graphics")
	logStats := flag.Bool("log-stats", false, "Output field and perf stats via slog")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	framesDir := flag.String("frames-dir", "", "Directory for numbered PNG frames")
	snapshot := flag.String("snapshot", "", "Field snapshot JSON to start from")
	serve := flag.String("serve", "", "Address for the websocket frame stream, e.g. :8080 (empty = disabled)")
	maxFrames := flag.Int("max-frames", 0, "Stop after N frames (0 = unlimited)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	var hub *stream.Hub
	var srv *http.Server
	if *serve != "" {
		hub = stream.NewHub(logger)
		mux := http.NewServeMux()
		mux.Handle("/ws", hub.Handler())
		srv = &http.Server{Addr: *serve, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			slog.Info("streaming frames", "addr", *serve, "path", "/ws")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("stream server", "error", err)
			}
		}()
		defer func() {
			hub.Close()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
	}

	opts := app.Options{
		OutputDir:    *outputDir,
		FramesDir:    *framesDir,
		Snapshot:     *snapshot,
		Hub:          hub,
		LogStats:     *logStats,
		AlwaysRender: !*headless,
		Logger:       logger,
	}

	if *headless {
		a, err := app.New(cfg, opts)
		if err != nil {
			slog.Error("failed to start", "error", err)
			os.Exit(1)
		}
		defer a.Close()

		slog.Info("starting headless simulation",
			"max_frames", *maxFrames,
			"output_dir", *outputDir,
			"frames_dir", *framesDir,
		)

		for {
			if err := a.UpdateHeadless(); err != nil {
				slog.Error("frame failed", "frame", a.Frame(), "error", err)
				return
			}
			if *maxFrames > 0 && int(a.Frame()) >= *maxFrames {
				slog.Info("max frames reached", "frame", a.Frame())
				return
			}
		}
	}

	// Graphical mode
	rl.SetConfigFlags(rl.FlagWindowResizable)
	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), "Smoke")
	defer rl.CloseWindow()

	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	a, err := app.New(cfg, opts)
	if err != nil {
		slog.Error("failed to start", "error", err)
		return
	}
	defer a.Close()

	v := viewer.New(a)
	defer v.Unload()

	for !rl.WindowShouldClose() {
		if err := v.Update(); err != nil {
			slog.Error("frame failed", "frame", a.Frame(), "error", err)
			break
		}
		v.Draw()

		if *maxFrames > 0 && int(a.Frame()) >= *maxFrames {
			break
		}
	}
}
