package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/perimetra/perimetra/internal/buildinfo"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show build information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetString(ServerAddrKey) == "" {
			info := buildinfo.GetBuildInfo()
			printInfo(&info)
			return nil
		}

		cli, err := getClient()
		if err != nil {
			return err
		}
		log.Debug().Msg("Fetching build info from server...")
		info, correlation, err := cli.Info(cmd.Context())
		if err != nil {
			return logError(err, correlation, "failed to get info from server")
		}
		printInfo(info)
		return nil
	},
}

func printInfo(info *buildinfo.Info) {
	fmt.Println(bold("\n── Perimetra Build Information ──"))
	fmt.Printf("  %s:  %s\n", faint("Version"), info.Version)
	fmt.Printf("  %s:   %s\n", faint("Commit"), info.CommitHash)
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
