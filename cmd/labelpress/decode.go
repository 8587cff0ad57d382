package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"labelpress/internal/payload"
)

func newDecodeCommand() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "decode CODE",
		Short: "Decode a scanned tracking code back into its fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := payload.Decode(args[0])
			if err != nil {
				return err
			}

			if jsonOut {
				out := map[string]string{
					"location":  p.Location,
					"product":   p.Product,
					"packer":    p.Packer,
					"timestamp": p.At.Format(time.RFC3339),
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "location:  %s\n", p.Location)
			fmt.Fprintf(cmd.OutOrStdout(), "product:   %s\n", p.Product)
			fmt.Fprintf(cmd.OutOrStdout(), "packer:    %s\n", p.Packer)
			fmt.Fprintf(cmd.OutOrStdout(), "packed at: %s\n", p.At.Format("2006-01-02 15:04:05"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON")
	return cmd
}
