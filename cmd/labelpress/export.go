package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"labelpress/internal/export"
	"labelpress/internal/label"
	"labelpress/internal/payload"
	"labelpress/internal/symbol"
)

func newExportCommand(configFlag *string) *cobra.Command {
	var flags labelFlags
	var format string
	var outDir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render a label to a file instead of printing it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(*configFlag)
			if err != nil {
				return err
			}

			at, err := flags.at()
			if err != nil {
				return err
			}
			kind, err := flags.kind(cfg.Label.Symbology)
			if err != nil {
				return err
			}

			code, err := payload.Encode(flags.location, flags.product, flags.packer, at)
			if err != nil {
				return err
			}

			spec := cfg.Label
			spec.Symbology = kind
			sym, err := symbol.Render(code, kind, spec.WidthMM, spec.HeightMM)
			if err != nil {
				return err
			}
			text := label.TextFields{Product: flags.product, Location: flags.location, Packer: flags.packer}

			if outDir == "" {
				outDir = cfg.Fallback.Dir
			}

			var path string
			switch format {
			case "tspl":
				stream, err := label.Compile(spec, sym, text, flags.copies)
				if err != nil {
					return err
				}
				path, err = export.WriteCommandFile(outDir, code, stream)
				if err != nil {
					return err
				}
			case "png":
				path, err = export.WriteImageFile(outDir, code, spec, sym, text)
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("format must be tspl or png, got %q", format)
			}

			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&format, "format", "tspl", "Output format: tspl or png")
	cmd.Flags().StringVar(&outDir, "out", "", "Output directory (default from config)")
	return cmd
}
