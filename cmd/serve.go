package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/perimetra/perimetra/internal/audit"
	"github.com/perimetra/perimetra/internal/config"
	"github.com/perimetra/perimetra/internal/core"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run one of the perimetra services",
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.PersistentFlags().String("addr", ":8080", "address to listen on")
}

// runServer starts the handler with graceful shutdown. Shared by the three
// serve subcommands.
func runServer(cmd *cobra.Command, handler http.Handler) error {
	addr, _ := cmd.Flags().GetString("addr")

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		log.Info().Msgf("Starting server on %s...", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server crashed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server exited")
	return nil
}

// loadConfigAndAuditor loads the service config and builds the configured
// audit backend.
func loadConfigAndAuditor() (*config.Config, core.Auditor, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	auditor, err := audit.New(cfg.Audit.Enabled, cfg.Audit.Type, cfg.Audit.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("building auditor: %w", err)
	}
	return cfg, auditor, nil
}
