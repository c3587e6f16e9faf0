// Package cmd holds the camkit subcommands.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/videokit/camkit/pkg/videodev"
)

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List capture devices",
		Long:  `Scans for video devices that support streaming capture and prints their identity.`,
		Run: func(_ *cobra.Command, _ []string) {
			devices, err := videodev.FindDevices()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error finding devices: %v\n", err)
				os.Exit(1)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(devices); err != nil {
					fmt.Fprintf(os.Stderr, "Error encoding devices: %v\n", err)
					os.Exit(1)
				}
				return
			}

			if len(devices) == 0 {
				fmt.Println("No capture devices found.")
				return
			}

			fmt.Printf("Found %d capture devices:\n", len(devices))
			for i, dev := range devices {
				fmt.Printf("%d. Path: %s\n", i+1, dev.Path)
				fmt.Printf("   Driver: %s\n", dev.Driver)
				fmt.Printf("   Card: %s\n", dev.Card)
				fmt.Printf("   Bus: %s\n", dev.BusInfo)
				fmt.Println()
			}
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}
