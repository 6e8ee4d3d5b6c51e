package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check <path>",
	Short: "Ask the resource API for an access decision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		cli, err := getClient()
		if err != nil {
			return err
		}

		result, correlation, err := cli.Check(cmd.Context(), path)
		if err != nil {
			return logError(err, correlation, "access check failed")
		}

		switch result.Effect {
		case "allow":
			fmt.Printf("%s %s %s (%s, role %s)\n",
				greenCheck, bold(path), "allowed", result.Subject, result.Role)
		case "challenge":
			fmt.Printf("%s %s requires step-up: %s\n",
				yellowWarn, bold(path), result.Reason)
		default:
			fmt.Printf("%s %s denied: %s\n",
				redCross, bold(path), result.Reason)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
