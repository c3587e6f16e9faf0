package cmd

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/videokit/camkit/internal/logging"
	"github.com/videokit/camkit/pkg/camera"
	"github.com/videokit/camkit/pkg/camera/v4l2"
)

// CreateDescribeCmd creates the describe command.
func CreateDescribeCmd() *cobra.Command {
	var dumpSchema bool

	cmd := &cobra.Command{
		Use:   "describe [device]",
		Short: "Describe a capture device",
		Long: `Opens a capture device and prints its identity and image geometry as seen ` +
			`through the virtual register space. With --schema, dumps the patched feature ` +
			`description document instead.`,
		Args: cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			dev, err := v4l2.Open(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error opening device: %v\n", err)
				os.Exit(1)
			}
			defer dev.Close()

			if dumpSchema {
				schema, err := dev.Schema()
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error reading schema: %v\n", err)
					os.Exit(1)
				}
				os.Stdout.Write(schema)
				return
			}

			stringRegs := []struct {
				name    string
				address uint64
			}{
				{"Vendor", v4l2.RegDeviceVendorName},
				{"Model", v4l2.RegDeviceModelName},
				{"Version", v4l2.RegDeviceVersion},
				{"Manufacturer", v4l2.RegDeviceManufacturerInfo},
				{"Device ID", v4l2.RegDeviceID},
			}
			for _, reg := range stringRegs {
				var buf [v4l2.StringRegisterLength]byte
				if err := dev.ReadRegister(reg.address, buf[:]); err != nil {
					fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", reg.name, err)
					os.Exit(1)
				}
				value := buf[:]
				if i := bytes.IndexByte(value, 0); i >= 0 {
					value = value[:i]
				}
				fmt.Printf("%-13s %s\n", reg.name+":", value)
			}

			numericRegs := []struct {
				name    string
				address uint64
			}{
				{"Width", v4l2.RegWidth},
				{"Height", v4l2.RegHeight},
				{"Payload size", v4l2.RegPayloadSize},
				{"Pixel format", v4l2.RegPixelFormat},
			}
			for _, reg := range numericRegs {
				var buf [4]byte
				if err := dev.ReadRegister(reg.address, buf[:]); err != nil {
					fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", reg.name, err)
					os.Exit(1)
				}
				value := binary.NativeEndian.Uint32(buf[:])
				if reg.address == v4l2.RegPixelFormat {
					fmt.Printf("%-13s %s\n", reg.name+":", camera.PixelFormat(value))
				} else {
					fmt.Printf("%-13s %d\n", reg.name+":", value)
				}
			}
		},
	}

	cmd.Flags().BoolVar(&dumpSchema, "schema", false, "Dump the feature description document")

	return cmd
}
