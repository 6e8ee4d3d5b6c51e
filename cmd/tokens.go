package cmd

import (
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var tokensCmd = &cobra.Command{
	Use:     "tokens",
	Aliases: []string{"ls"},
	Short:   "List active issued tokens on the identity issuer",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		log.Debug().Msg("Retrieving active tokens...")
		records, err := cli.ListActiveTokens(cmd.Context())
		if err != nil {
			return logError(err, "", "listing tokens failed")
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Subject", "Kind", "Fingerprint", "Issued", "Expires"})

		for _, rec := range records {
			t.AppendRow(table.Row{
				color.New(color.Bold).Sprint(rec.Subject),
				rec.Kind,
				truncate(rec.Fingerprint, 16),
				time.Since(rec.IssuedAt).Round(time.Second).String() + " ago",
				"in " + time.Until(rec.ExpiresAt).Round(time.Second).String(),
			})
		}

		applyTableFormat(t)
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokensCmd)
}
