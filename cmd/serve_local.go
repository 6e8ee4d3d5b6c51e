package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/perimetra/perimetra/internal/api"
	"github.com/perimetra/perimetra/internal/core"
	"github.com/perimetra/perimetra/internal/session"
	"github.com/perimetra/perimetra/internal/store"
	"github.com/perimetra/perimetra/internal/token"
)

var serveLocalCmd = &cobra.Command{
	Use:   "local",
	Short: "Run the decentralized local session service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, auditor, err := loadConfigAndAuditor()
		if err != nil {
			return err
		}
		defer func() {
			_ = auditor.Close()
		}()

		registry, err := cfg.LocalRegistry()
		if err != nil {
			return fmt.Errorf("building local principal registry: %w", err)
		}

		codec, err := token.New([]byte(cfg.Local.Secret), cfg.Local.Algorithm, cfg.Local.Issuer, core.KindLocal)
		if err != nil {
			return fmt.Errorf("building session codec: %w", err)
		}

		guard, err := session.New(registry, codec, cfg.Local.SessionTTL(),
			session.WithStore(store.NewInMemoryTokenStore()))
		if err != nil {
			return fmt.Errorf("building session guard: %w", err)
		}

		log.Info().
			Int("principals", len(registry)).
			Str("ttl", guard.TTL().String()).
			Msg("local session service initialized")

		srv := api.NewLocalServer(guard, cfg.Local.CookieName, cfg.Local.CookieSecure, auditor)
		return runServer(cmd, srv.Routes())
	},
}

func init() {
	serveCmd.AddCommand(serveLocalCmd)
}
