package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/perimetra/perimetra/internal/cliconfig"
)

var (
	loginUsername string
	loginPassword string
	loginDevice   string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with the identity issuer",
	Long: `Exchanges a username/password credential for a signed access token.
The token is saved locally and used by subsequent 'check' calls.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		resp, correlation, err := cli.Login(cmd.Context(), loginUsername, loginPassword, loginDevice)
		if err != nil {
			return logError(err, correlation, "login failed")
		}

		cfg, err := cliconfig.Load()
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("loading config: %w", err)
			}
			cfg = &cliconfig.CLIConfig{}
		}
		server := viper.GetString(ServerAddrKey)
		if err := cfg.SetCredential(server, &cliconfig.Credential{
			Token: resp.AccessToken,
			Kind:  "access",
		}); err != nil {
			return err
		}
		if err := cliconfig.Save(cfg); err != nil {
			return logError(err, "", "login succeeded but could not save credentials")
		}

		logSuccess("logged in as %s (token valid for %ds)", bold(loginUsername), resp.ExpiresIn)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Principal name")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Credential")
	loginCmd.Flags().StringVar(&loginDevice, "device", "", "Device identifier to assert (optional)")

	_ = loginCmd.MarkFlagRequired("username")
	_ = loginCmd.MarkFlagRequired("password")
}
