package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/videokit/camkit/internal/capture"
	"github.com/videokit/camkit/internal/logging"
	"github.com/videokit/camkit/pkg/camera"
)

// CreateCaptureCmd creates the capture command.
func CreateCaptureCmd() *cobra.Command {
	var frameCount int
	var bufferCount int
	var outputDir string
	var formatName string
	var timeoutSec int
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "capture [device]",
		Short: "Capture raw frames from a device",
		Long: `Runs an acquisition session against the specified device and writes each ` +
			`completed frame's payload to a file in the output directory.`,
		Args: cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			devicePath := args[0]

			loggingConfig := logging.Config{Level: "info", Format: "text"}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("capture").With("device", devicePath)

			var pixelFormat camera.PixelFormat
			if formatName != "" {
				var err error
				pixelFormat, err = camera.ParsePixelFormat(formatName)
				if err != nil {
					logger.Error("Unknown pixel format", "format", formatName)
					os.Exit(1)
				}
			}

			if err := os.MkdirAll(outputDir, 0755); err != nil {
				logger.Error("Failed to create output directory", "error", err)
				os.Exit(1)
			}

			var written atomic.Int64
			done := make(chan struct{})

			sink := func(buf *camera.Buffer) {
				n := written.Load()
				if n >= int64(frameCount) {
					return
				}
				name := filepath.Join(outputDir, fmt.Sprintf("frame_%06d.raw", buf.FrameID))
				if err := os.WriteFile(name, buf.Data[:buf.ReceivedSize], 0644); err != nil {
					logger.Warn("Failed to write frame", "frame", buf.FrameID, "error", err)
					return
				}
				logger.Info("Frame written",
					"frame", buf.FrameID,
					"file", name,
					"bytes", buf.ReceivedSize,
					"width", buf.Part.Width,
					"height", buf.Part.Height)
				if written.Add(1) == int64(frameCount) {
					close(done)
				}
			}

			manager := capture.NewManager(nil, nil)
			if err := manager.Start(devicePath, capture.Options{
				BufferCount: bufferCount,
				PixelFormat: pixelFormat,
				Sink:        sink,
			}); err != nil {
				logger.Error("Failed to start acquisition", "error", err)
				os.Exit(1)
			}

			select {
			case <-done:
			case <-time.After(time.Duration(timeoutSec) * time.Second):
				logger.Warn("Timed out waiting for frames", "written", written.Load())
			}

			if err := manager.Stop(devicePath); err != nil {
				logger.Warn("Failed to stop acquisition", "error", err)
			}

			fmt.Printf("Wrote %d frames to %s\n", written.Load(), outputDir)
		},
	}

	cmd.Flags().IntVar(&frameCount, "frames", 10, "Number of frames to capture")
	cmd.Flags().IntVar(&bufferCount, "buffers", 0, "Kernel buffer slots to request (0 = default)")
	cmd.Flags().StringVar(&outputDir, "output", ".", "Output directory for frame files")
	cmd.Flags().StringVar(&formatName, "format", "", "Pixel format to select (RGB8, BGR8, YUV422_8)")
	cmd.Flags().IntVar(&timeoutSec, "timeout", 30, "Give up after this many seconds")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}
