// Package main implements the streamsup daemon, the edge stream supervisor.
//
// streamsup is designed for 24/7 unattended operation, translating remote
// control-plane commands delivered over SSE into locally supervised
// RTSP-to-RTMP ffmpeg transcoders with automatic crash recovery.
//
// Usage:
//
//	streamsup [options]
//	streamsup doctor [--config=PATH] [--quick] [--verbose]
//
// Options:
//
//	--config=PATH  Path to config file (default: /etc/streamsup/config.yaml)
//	--log-level=LEVEL Overrides the configured slog level: debug, info, warn, error
//	--help         Show this help message
//
// Example:
//
//	# Run with default config
//	streamsup
//
//	# Run with a custom config
//	streamsup --config=/path/to/config.yaml
//
// The daemon automatically:
//   - Subscribes to the control plane's SSE event stream
//   - Starts/stops/reconciles ffmpeg transcoders per remote command
//   - Restarts stalled or crashed transcoders as soon as their exit is
//     observed (there is no backoff between restarts)
//   - Sweeps orphaned transcoders left behind by a previous crashed instance
//   - Handles SIGINT/SIGTERM for graceful shutdown
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/edgestream/streamsup/internal/config"
	"github.com/edgestream/streamsup/internal/controlplane"
	"github.com/edgestream/streamsup/internal/diagnostics"
	"github.com/edgestream/streamsup/internal/health"
	"github.com/edgestream/streamsup/internal/lifecycle"
	"github.com/edgestream/streamsup/internal/logging"
	"github.com/edgestream/streamsup/internal/recordstore"
	"github.com/edgestream/streamsup/internal/supervisor"
	"github.com/edgestream/streamsup/internal/transcoder"
	"github.com/prometheus/client_golang/prometheus"
)

// Build information (set by ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Command line flags
var (
	configPath  = flag.String("config", config.ConfigFilePath, "Path to configuration file")
	logLevel    = flag.String("log-level", "", "Override the configured slog level: debug, info, warn, error")
	showVersion = flag.Bool("version", false, "Print version and exit")
	showHelp    = flag.Bool("help", false, "Show help message")
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "doctor" {
		if err := runDoctor(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	flag.Parse()

	if *showHelp {
		printUsage()
		os.Exit(0)
	}
	if *showVersion {
		fmt.Printf("streamsup %s (%s) built %s\n", Version, Commit, BuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("streamsup exited with error", "error", err)
		os.Exit(1)
	}
}

// runDoctor runs the host-readiness check roster against the configured
// (or default) paths and prints a report. It loads configuration best-effort:
// an unreadable or missing config file still lets the rest of the checks run
// against default paths, since doctor exists to help diagnose exactly that.
func runDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	cfgPath := fs.String("config", config.ConfigFilePath, "Path to configuration file")
	quick := fs.Bool("quick", false, "Run only the fast checks")
	verbose := fs.Bool("verbose", false, "Include check details in the report")
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := diagnostics.DefaultOptions()
	opts.ConfigPath = *cfgPath
	opts.Verbose = *verbose
	if *quick {
		opts.Mode = diagnostics.ModeQuick
	}

	if kc, err := config.NewKoanfConfig(config.WithYAMLFile(*cfgPath)); err == nil {
		if cfg, err := kc.Load(); err == nil {
			opts.LockPath = cfg.SingleInstanceLockPath
			opts.BaseURL = cfg.BaseURL
			opts.PrimaryLogoPath = cfg.Overlay.PrimaryLogoPath
			opts.ClientLogoPath = cfg.Overlay.ClientLogoPath
			if cfg.LogFile != "" {
				opts.LogDir = filepath.Dir(cfg.LogFile)
			}
		}
	}

	runner := diagnostics.NewRunner(opts)
	report, err := runner.Run(context.Background())
	if err != nil {
		return fmt.Errorf("run diagnostics: %w", err)
	}

	diagnostics.PrintReport(os.Stdout, report)
	if report.Summary.Critical > 0 {
		os.Exit(1)
	}
	return nil
}

func run() error {
	kc, err := config.NewKoanfConfig(config.WithYAMLFile(*configPath))
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	cfg, err := kc.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, closeLog := newLogger(cfg, *logLevel)
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("starting streamsup", "version", Version, "commit", Commit, "builtAt", BuildTime, "config", *configPath)

	frame, ctx, err := lifecycle.Acquire(context.Background(), cfg.SingleInstanceLockPath, logger)
	if err != nil {
		return fmt.Errorf("acquire single-instance lock: %w", err)
	}
	defer func() {
		if err := frame.Shutdown(); err != nil {
			logger.Warn("error releasing single-instance lock", "error", err)
		}
	}()

	store, err := recordstore.New(cfg.StateDir, logger)
	if err != nil {
		return fmt.Errorf("open stream record store: %w", err)
	}

	driver, err := transcoder.NewDriver(&transcoder.Config{
		FFmpegPath:           cfg.Transcoder.FFmpegPath,
		FFprobePath:          cfg.Transcoder.FFprobePath,
		RTMPBase:             cfg.Encode.RTMPBase,
		PrimaryLogoPath:      cfg.Overlay.PrimaryLogoPath,
		ClientLogoPath:       cfg.Overlay.ClientLogoPath,
		VideoBitrate:         cfg.Encode.VideoBitrate,
		VideoMaxrate:         cfg.Encode.VideoMaxrate,
		VideoBufsize:         cfg.Encode.VideoBufsize,
		ScaleWidth:           cfg.Encode.ScaleWidth,
		ScaleHeight:          cfg.Encode.ScaleHeight,
		AudioBitrate:         cfg.Encode.AudioBitrate,
		AudioSampleRate:      cfg.Encode.AudioSampleRate,
		AudioChannels:        cfg.Encode.AudioChannels,
		StallRepeatThreshold:    cfg.Transcoder.StallRepeatThreshold,
		ResourceMonitorInterval: cfg.Transcoder.ResourceMonitorInterval,
		Logger:                  logger,
	})
	if err != nil {
		return fmt.Errorf("initialize transcoder driver: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics := supervisor.NewMetrics(registry)

	cp, err := controlplane.New(controlplane.Config{
		BaseURL:       cfg.BaseURL,
		GroundID:      cfg.GroundID,
		RetryInterval: cfg.SSE.RetryInterval,
		MaxRetries:    cfg.SSE.MaxRetries,
		Logger:        logger,
		OnReconnect:   metrics.SSEReconnected,
	})
	if err != nil {
		return fmt.Errorf("initialize control-plane client: %w", err)
	}

	sup := supervisor.New(supervisor.Config{
		HealthCheckInterval: cfg.HealthCheckInterval,
		Logger:              logger,
		Metrics:             metrics,
	}, store, driver, cp)

	healthHandler := health.NewHandler(sup, registry)
	healthReady := make(chan struct{})
	healthErrCh := make(chan error, 1)
	go func() {
		healthErrCh <- health.ListenAndServeReady(ctx, cfg.HealthAddr, healthHandler, healthReady)
	}()

	select {
	case <-healthReady:
		logger.Info("health endpoint listening", "addr", cfg.HealthAddr)
	case err := <-healthErrCh:
		return fmt.Errorf("start health endpoint: %w", err)
	}

	runErr := sup.Run(ctx)

	if !lifecycle.WaitDeadline(ctx, 30*time.Second) {
		logger.Warn("shutdown deadline exceeded, exiting anyway")
	}

	if err := <-healthErrCh; err != nil {
		logger.Warn("health endpoint shutdown error", "error", err)
	}

	if runErr != nil && runErr != context.Canceled {
		return fmt.Errorf("supervisor: %w", runErr)
	}

	logger.Info("shutdown complete")
	return nil
}

// newLogger builds the daemon's slog.Logger: JSON to stderr, optionally
// teed through a RotatingWriter when cfg.LogFile is set and/or a
// RemoteShipper when cfg.RemoteLogging.Enabled is set. The returned close
// func flushes and closes whichever of those two sinks were created.
func newLogger(cfg *config.Config, levelOverride string) (*slog.Logger, func()) {
	level := parseLevel(cfg.LogLevel)
	if levelOverride != "" {
		level = parseLevel(levelOverride)
	}

	opts := &slog.HandlerOptions{Level: level}

	sinks := []io.Writer{os.Stderr}
	var closers []func() error

	if cfg.LogFile != "" {
		rw, err := logging.NewRotatingWriter(cfg.LogFile)
		if err != nil {
			logger := slog.New(slog.NewJSONHandler(os.Stderr, opts))
			logger.Warn("failed to open log file, logging to stderr only", "path", cfg.LogFile, "error", err)
		} else {
			sinks = append(sinks, rw)
			closers = append(closers, rw.Close)
		}
	}

	if cfg.RemoteLogging.Enabled {
		shipper, err := logging.NewRemoteShipper(logging.RemoteShipperConfig{
			Endpoint:      cfg.RemoteLogging.Endpoint,
			BatchSize:     cfg.RemoteLogging.BatchSize,
			BatchInterval: cfg.RemoteLogging.BatchInterval,
			MaxMemory:     cfg.RemoteLogging.MaxMemory,
			RetryAttempts: cfg.RemoteLogging.RetryAttempts,
			RetryDelay:    cfg.RemoteLogging.RetryDelay,
		}, func(err error) {
			slog.Default().Warn("dropping log batch, remote shipper exhausted retries", "error", err)
		})
		if err != nil {
			logger := slog.New(slog.NewJSONHandler(os.Stderr, opts))
			logger.Warn("failed to start remote log shipper, logging locally only", "endpoint", cfg.RemoteLogging.Endpoint, "error", err)
		} else {
			sinks = append(sinks, shipper)
			closers = append(closers, shipper.Close)
		}
	}

	closeFn := func() {
		for _, c := range closers {
			_ = c()
		}
	}

	if len(sinks) == 1 {
		return slog.New(slog.NewJSONHandler(sinks[0], opts)), closeFn
	}
	return slog.New(slog.NewJSONHandler(&teeWriter{writers: sinks}, opts)), closeFn
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// teeWriter duplicates every write to all of writers, discarding every
// error but the first writer's, so a rotation or shipper failure never
// blocks stderr logging.
type teeWriter struct {
	writers []io.Writer
}

func (t *teeWriter) Write(p []byte) (int, error) {
	for _, w := range t.writers[1:] {
		_, _ = w.Write(p)
	}
	return t.writers[0].Write(p)
}

func printUsage() {
	fmt.Println("streamsup - edge stream supervisor")
	fmt.Printf("Version: %s (%s)\n\n", Version, Commit)
	fmt.Println("Usage: streamsup [options]")
	fmt.Println("       streamsup doctor [--config=PATH] [--quick] [--verbose]")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("The daemon subscribes to the control plane's SSE event stream and")
	fmt.Println("supervises one ffmpeg RTSP-to-RTMP transcoder per live court.")
	fmt.Println()
	fmt.Println("The doctor subcommand runs host-readiness checks (ffmpeg, config,")
	fmt.Println("overlay assets, control-plane reachability, disk/fd/memory) and exits")
	fmt.Println("non-zero if any check reports CRITICAL.")
	fmt.Println()
	fmt.Println("Signals:")
	fmt.Println("  SIGINT, SIGTERM  Graceful shutdown")
}
