package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/perimetra/perimetra/pkg/client"
)

var (
	localUsername string
	localPassword string
)

var localCmd = &cobra.Command{
	Use:   "local",
	Short: "Interact with the decentralized local session service",
}

var localLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in at the local service and exercise the session",
	Long: `Performs a local login and immediately fetches the protected resource
with the freshly set session cookie. Session tokens are short-lived;
once expired, only a new login helps.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		server := viper.GetString(ServerAddrKey)
		if server == "" {
			return fmt.Errorf("server address not configured (use --server or set PERIMETRA_SERVER)")
		}
		cli := client.New(server)

		login, correlation, err := cli.LocalLogin(cmd.Context(), localUsername, localPassword)
		if err != nil {
			return logError(err, correlation, "local login failed")
		}
		logSuccess("local session established (expires in %ds)", login.ExpiresIn)

		resource, correlation, err := cli.LocalResource(cmd.Context())
		if err != nil {
			return logError(err, correlation, "fetching local resource failed")
		}
		fmt.Printf("%s local resource: subject=%s role=%s\n",
			greenCheck, bold(resource.Subject), resource.Role)
		return nil
	},
}

var localAdminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Log in at the local service and fetch the admin resource",
	RunE: func(cmd *cobra.Command, args []string) error {
		server := viper.GetString(ServerAddrKey)
		if server == "" {
			return fmt.Errorf("server address not configured (use --server or set PERIMETRA_SERVER)")
		}
		cli := client.New(server)

		login, correlation, err := cli.LocalLogin(cmd.Context(), localUsername, localPassword)
		if err != nil {
			return logError(err, correlation, "local login failed")
		}
		logSuccess("local session established (expires in %ds)", login.ExpiresIn)

		resource, correlation, err := cli.LocalAdmin(cmd.Context())
		if err != nil {
			return logError(err, correlation, "fetching admin resource failed")
		}
		fmt.Printf("%s admin resource: subject=%s role=%s\n",
			greenCheck, bold(resource.Subject), resource.Role)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(localCmd)
	localCmd.AddCommand(localLoginCmd)
	localCmd.AddCommand(localAdminCmd)

	for _, c := range []*cobra.Command{localLoginCmd, localAdminCmd} {
		c.Flags().StringVarP(&localUsername, "username", "u", "", "Local principal name")
		c.Flags().StringVarP(&localPassword, "password", "p", "", "Credential")
		_ = c.MarkFlagRequired("username")
		_ = c.MarkFlagRequired("password")
	}
}
