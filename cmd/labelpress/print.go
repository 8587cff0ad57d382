package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"labelpress/internal/export"
	"labelpress/internal/label"
	"labelpress/internal/logging"
	"labelpress/internal/payload"
	"labelpress/internal/symbol"
	"labelpress/internal/transport"
)

func newPrintCommand(configFlag *string) *cobra.Command {
	var flags labelFlags
	var noFallback bool

	cmd := &cobra.Command{
		Use:   "print",
		Short: "Print one tracking label",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(*configFlag)
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
			stream, err := label.Compile(spec, sym, text, flags.copies)
			if err != nil {
				return err
			}

			fallback := func(cause error) error {
				if noFallback || !cfg.Fallback.AutoExport {
					return cause
				}
				path, exportErr := export.WriteCommandFile(cfg.Fallback.Dir, code, stream)
				if exportErr != nil {
					return fmt.Errorf("print failed (%v), export failed: %w", cause, exportErr)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "printer unreachable (%v)\nlabel exported to %s\n", cause, path)
				return nil
			}

			conn, err := transport.Connect(cfg.Printer, logging.Component(log, "transport"))
			if err != nil {
				return fallback(err)
			}
			defer conn.Close()

			attempts, err := conn.SendWithRetry(cmd.Context(), stream.Bytes(), nil)
			if err != nil {
				return fallback(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "printed %s (%d copies, %d attempt(s))\n", code, flags.copies, attempts)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&noFallback, "no-fallback", false, "Fail instead of exporting when the printer is unreachable")
	return cmd
}
