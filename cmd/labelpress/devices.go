package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"labelpress/internal/transport"
)

func newDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List candidate printer devices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			usb, err := transport.DiscoverUSB(2 * time.Second)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "usb scan failed: %v\n", err)
			}
			serial, err := transport.DiscoverSerial()
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "serial scan failed: %v\n", err)
			}

			devices := append(usb, serial...)
			if len(devices) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no devices found")
				return nil
			}

			for _, d := range devices {
				if d.Vendor != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s (%s)\n", d.Mode, d.Path, d.Vendor)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", d.Mode, d.Path)
				}
			}
			return nil
		},
	}
}
