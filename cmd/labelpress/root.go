package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"labelpress/internal/config"
	"labelpress/internal/logging"
	"labelpress/internal/symbol"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "labelpress",
		Short:         "Label print service for TSC thermal printers",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "labelpress.yaml", "Configuration file path")

	rootCmd.AddCommand(newServeCommand(&configFlag))
	rootCmd.AddCommand(newPrintCommand(&configFlag))
	rootCmd.AddCommand(newExportCommand(&configFlag))
	rootCmd.AddCommand(newDecodeCommand())
	rootCmd.AddCommand(newDevicesCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func loadConfig(path string) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("invalid configuration: %w", err)
	}
	log := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, log, nil
}

// labelFlags is the shared flag set for commands that render one label.
type labelFlags struct {
	location  string
	product   string
	packer    string
	timestamp string
	symbology string
	copies    int
}

func (f *labelFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.location, "location", "", "Destination location code")
	cmd.Flags().StringVar(&f.product, "product", "", "Product code")
	cmd.Flags().StringVar(&f.packer, "packer", "", "Packer identifier")
	cmd.Flags().StringVar(&f.timestamp, "timestamp", "", "Packing time, RFC 3339 (default now)")
	cmd.Flags().StringVar(&f.symbology, "symbology", "", "Symbol type: code128 or qr (default from config)")
	cmd.Flags().IntVar(&f.copies, "copies", 1, "Number of copies")
	cmd.MarkFlagRequired("location")
	cmd.MarkFlagRequired("product")
	cmd.MarkFlagRequired("packer")
}

func (f *labelFlags) at() (time.Time, error) {
	if f.timestamp == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, f.timestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp must be RFC 3339: %w", err)
	}
	return t, nil
}

func (f *labelFlags) kind(fallback symbol.Symbology) (symbol.Symbology, error) {
	if f.symbology == "" {
		return fallback, nil
	}
	return symbol.ParseSymbology(f.symbology)
}
