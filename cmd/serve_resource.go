package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/perimetra/perimetra/internal/api"
	"github.com/perimetra/perimetra/internal/core"
	"github.com/perimetra/perimetra/internal/engine"
	"github.com/perimetra/perimetra/internal/token"
)

var serveResourceCmd = &cobra.Command{
	Use:   "resource",
	Short: "Run the decision-guarded resource API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, auditor, err := loadConfigAndAuditor()
		if err != nil {
			return err
		}
		defer func() {
			_ = auditor.Close()
		}()

		// the resource API verifies with the issuer's secret but never
		// mints tokens itself
		codec, err := token.New([]byte(cfg.IdP.Secret), cfg.IdP.Algorithm, cfg.IdP.Issuer, core.KindAccess)
		if err != nil {
			return fmt.Errorf("building token codec: %w", err)
		}

		policy, err := cfg.BuildPolicy()
		if err != nil {
			return fmt.Errorf("building policy: %w", err)
		}

		log.Info().
			Int("registered_devices", len(policy.RegisteredDevices)).
			Int("rules", len(policy.Rules)).
			Msgf("policy active: business hours [%02d,%02d) %s",
				policy.StartHour, policy.EndHour, policy.Location)

		srv := api.NewResourceServer(codec, engine.New(policy), auditor)
		return runServer(cmd, srv.Routes())
	},
}

func init() {
	serveCmd.AddCommand(serveResourceCmd)
}
