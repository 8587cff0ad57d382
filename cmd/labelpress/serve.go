package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"labelpress/internal/api"
	"labelpress/internal/audit"
	"labelpress/internal/config"
	"labelpress/internal/db"
	"labelpress/internal/logging"
	"labelpress/internal/queue"
	"labelpress/internal/retention"
	"labelpress/internal/transport"
)

func newServeCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the print service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(*configFlag)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, log)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	if err := db.Init(db.Config{Path: cfg.Database.Path}); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	// A dead printer must not keep the service down; jobs fall through to
	// the export path until the device shows up.
	var conn *transport.Conn
	conn, err := transport.Connect(cfg.Printer, logging.Component(log, "transport"))
	if err != nil {
		log.Warn().Err(err).Str("device", cfg.Printer.Device).
			Msg("printer not reachable at startup")
		conn = nil
	} else {
		defer conn.Close()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if conn != nil {
		monitor := transport.NewMonitor(cfg.Printer, conn, logging.Component(log, "monitor"))
		if monitor != nil {
			if err := monitor.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("hotplug monitor unavailable")
			} else {
				defer monitor.Stop()
			}
		}
	}

	auditor := audit.NewSender(audit.Config{
		URL:     cfg.Audit.URL,
		Secret:  cfg.Audit.Secret,
		Timeout: cfg.Audit.Timeout,
	}, logging.Component(log, "audit"))
	auditor.Start()
	defer auditor.Stop()

	sweeper := retention.NewSweeper(retention.Config{
		Days:      cfg.Retention.Days,
		ExportDir: cfg.Fallback.Dir,
	}, logging.Component(log, "retention"))
	sweeper.Start()
	defer sweeper.Stop()

	var printer queue.Printer
	if conn != nil {
		printer = conn
	}
	q := queue.New(queue.Config{
		Label:       cfg.Label,
		FallbackDir: cfg.Fallback.Dir,
		AutoExport:  cfg.Fallback.AutoExport,
	}, printer, auditor, logging.Component(log, "queue"))
	if err := q.Start(ctx); err != nil {
		return err
	}
	defer q.Stop()

	router, err := api.NewRouter(api.Options{
		Label:   cfg.Label,
		Printer: cfg.Printer,
		Queue:   q,
		Conn:    conn,
		Log:     logging.Component(log, "http"),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
