package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/perimetra/perimetra/internal/api"
	"github.com/perimetra/perimetra/internal/core"
	"github.com/perimetra/perimetra/internal/issuer"
	"github.com/perimetra/perimetra/internal/store"
	"github.com/perimetra/perimetra/internal/token"
)

var serveIdpCmd = &cobra.Command{
	Use:   "idp",
	Short: "Run the centralized identity issuer",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, auditor, err := loadConfigAndAuditor()
		if err != nil {
			return err
		}
		defer func() {
			_ = auditor.Close()
		}()

		registry, err := cfg.IdPRegistry()
		if err != nil {
			return fmt.Errorf("building principal registry: %w", err)
		}

		codec, err := token.New([]byte(cfg.IdP.Secret), cfg.IdP.Algorithm, cfg.IdP.Issuer, core.KindAccess)
		if err != nil {
			return fmt.Errorf("building token codec: %w", err)
		}

		tokenStore := store.NewInMemoryTokenStore()
		iss, err := issuer.New(registry, codec, cfg.IdP.TokenTTL(), issuer.WithStore(tokenStore))
		if err != nil {
			return fmt.Errorf("building issuer: %w", err)
		}

		log.Info().
			Int("principals", len(registry)).
			Str("lifetime", cfg.IdP.TokenTTL().String()).
			Msg("identity issuer initialized")

		srv := api.NewIdentityServer(iss, tokenStore, auditor)
		return runServer(cmd, srv.Routes())
	},
}

func init() {
	serveCmd.AddCommand(serveIdpCmd)
}
