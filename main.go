package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/videokit/camkit/cmd"
	"github.com/videokit/camkit/internal/capture"
	"github.com/videokit/camkit/internal/config"
	"github.com/videokit/camkit/internal/events"
	"github.com/videokit/camkit/internal/logging"
	"github.com/videokit/camkit/internal/metrics/collectors"
	"github.com/videokit/camkit/internal/metrics/exporters"
	"github.com/videokit/camkit/internal/version"
	"github.com/videokit/camkit/pkg/camera"
	"github.com/videokit/camkit/pkg/hotplug"
	"github.com/videokit/camkit/pkg/videodev"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Cameras settings
	CamerasConfigFile string `help:"Camera definitions file" default:"cameras.toml" toml:"cameras.config_file" env:"CAMERAS_CONFIG_FILE"`
	CamerasAutoStart  bool   `help:"Start acquisition on attached devices not in the config" default:"false" toml:"cameras.auto_start" env:"CAMERAS_AUTO_START"`

	// Capture settings
	CaptureBufferCount int `help:"Default kernel buffer slots per stream" default:"3" toml:"capture.buffer_count" env:"CAPTURE_BUFFER_COUNT"`

	// Hotplug settings
	HotplugEnabled bool `help:"Watch for device attach/detach events" default:"true" toml:"hotplug.enabled" env:"HOTPLUG_ENABLED"`

	// Metrics settings
	MetricsAddr     string `help:"Prometheus metrics listen address" default:":9100" toml:"metrics.addr" env:"METRICS_ADDR"`
	MetricsInterval string `help:"Stats collection interval" default:"5s" toml:"metrics.interval" env:"METRICS_INTERVAL"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingCamera  string `help:"Camera adapter logging level" default:"info" toml:"logging.camera" env:"LOGGING_CAMERA"`
	LoggingCapture string `help:"Capture session logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingHotplug string `help:"Hotplug logging level" default:"info" toml:"logging.hotplug" env:"LOGGING_HOTPLUG"`
	LoggingMetrics string `help:"Metrics logging level" default:"info" toml:"logging.metrics" env:"LOGGING_METRICS"`
}

func main() {
	// Create Huma CLI
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, nil); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"camera.v4l2":        opts.LoggingCamera,
				"camera.v4l2.stream": opts.LoggingCamera,
				"capture":            opts.LoggingCapture,
				"hotplug":            opts.LoggingHotplug,
				"metrics":            opts.LoggingMetrics,
			},
		})

		logger := logging.GetLogger("main")
		logger.Info("Starting camkit", "version", version.String())

		interval, err := time.ParseDuration(opts.MetricsInterval)
		if err != nil {
			interval = 5 * time.Second
		}

		// Create event bus for in-process event handling
		eventBus := events.New()

		collector := collectors.NewStreamCollector(eventBus, interval)
		manager := capture.NewManager(eventBus, collector)

		// Load camera definitions
		cameraManager := config.NewCameraManager(opts.CamerasConfigFile)
		if loadErr := cameraManager.Load(); loadErr != nil {
			logger.Warn("Failed to load camera definitions", "error", loadErr)
		}

		// sessionOptions resolves the per-camera acquisition settings for a
		// device node, falling back to daemon defaults.
		sessionOptions := func(devicePath string) (capture.Options, bool) {
			sessionOpts := capture.Options{BufferCount: opts.CaptureBufferCount}
			for _, cam := range cameraManager.GetEnabledCameras() {
				if cam.Device != devicePath {
					continue
				}
				if cam.BufferCount > 0 {
					sessionOpts.BufferCount = cam.BufferCount
				}
				if cam.PixelFormat != "" {
					format, parseErr := camera.ParsePixelFormat(cam.PixelFormat)
					if parseErr != nil {
						logger.Warn("Ignoring unknown pixel format",
							"camera", cam.ID, "format", cam.PixelFormat)
					} else {
						sessionOpts.PixelFormat = format
					}
				}
				return sessionOpts, true
			}
			return sessionOpts, false
		}

		startDevice := func(devicePath string) {
			sessionOpts, configured := sessionOptions(devicePath)
			if !configured && !opts.CamerasAutoStart {
				logger.Debug("Device not configured, skipping", "device", devicePath)
				return
			}
			if manager.Active(devicePath) {
				return
			}
			if startErr := manager.Start(devicePath, sessionOpts); startErr != nil {
				logger.Warn("Failed to start acquisition", "device", devicePath, "error", startErr)
				eventBus.Publish(events.CaptureErrorEvent{
					DevicePath: devicePath,
					Message:    "failed to start acquisition",
					Error:      startErr.Error(),
					Timestamp:  time.Now().UTC().Format(time.RFC3339),
				})
			}
		}

		// React to hotplug events
		eventBus.Subscribe(func(e events.DeviceAttachedEvent) {
			startDevice(e.DevicePath)
		})
		eventBus.Subscribe(func(e events.DeviceDetachedEvent) {
			if manager.Active(e.DevicePath) {
				if stopErr := manager.Stop(e.DevicePath); stopErr != nil {
					logger.Warn("Failed to stop detached device", "device", e.DevicePath, "error", stopErr)
				}
			}
		})

		var notifier *hotplug.Notifier
		if opts.HotplugEnabled {
			notifier, err = hotplug.NewNotifier(eventBus)
			if err != nil {
				logger.Warn("Hotplug monitoring unavailable", "error", err)
			}
		}

		// Reload per-module log levels when the config file changes
		watcher := config.NewConfigWatcher(
			opts.Config,
			func(path string) (logging.Config, error) {
				return config.LoadLoggingConfig(path), nil
			},
			logger,
		)
		watcher.OnReload(func(cfg logging.Config) {
			for module, level := range cfg.Modules {
				logging.SetModuleLevel(module, level)
			}
			logger.Info("Reloaded logging levels")
		})

		metricsServer := &http.Server{
			Addr:              opts.MetricsAddr,
			Handler:           exporters.HTTPHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		hooks.OnStart(func() {
			if startErr := collector.Start(context.Background()); startErr != nil {
				logger.Warn("Failed to start metrics collector", "error", startErr)
			}

			if notifier != nil {
				if startErr := notifier.Start(context.Background()); startErr != nil {
					logger.Warn("Failed to start hotplug notifier", "error", startErr)
				}
			}

			if watchErr := watcher.Start(); watchErr != nil {
				logger.Warn("Config watcher unavailable, hot-reload disabled", "error", watchErr)
			}

			// Bring up acquisition on devices already present
			deviceList, findErr := videodev.FindDevices()
			if findErr != nil {
				logger.Warn("Device scan failed", "error", findErr)
			}
			for _, dev := range deviceList {
				startDevice(dev.Path)
			}

			logger.Info("Serving metrics", "addr", opts.MetricsAddr)
			if serveErr := metricsServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
				logger.Error("Metrics server failed", "error", serveErr)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if stopErr := metricsServer.Shutdown(shutdownCtx); stopErr != nil {
				logger.Error("Error stopping metrics server", "error", stopErr)
			}

			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Error("Error stopping config watcher", "error", stopErr)
			}

			if notifier != nil {
				if stopErr := notifier.Stop(); stopErr != nil {
					logger.Error("Error stopping hotplug notifier", "error", stopErr)
				}
			}

			manager.StopAll()

			if stopErr := collector.Stop(); stopErr != nil {
				logger.Error("Error stopping metrics collector", "error", stopErr)
			}
		})
	})

	// Add subcommands
	cli.Root().AddCommand(cmd.CreateDevicesCmd())
	cli.Root().AddCommand(cmd.CreateDescribeCmd())
	cli.Root().AddCommand(cmd.CreateCaptureCmd())

	// Run the CLI
	cli.Run()
}
