package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func openCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <uri>",
		Short: "Deliver a deep-link activation to the running daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			forwarded, err := activate(serverURL, args[0])
			if err != nil {
				return err
			}
			if forwarded {
				fmt.Println(successStyle.Render("Forwarded " + args[0]))
			} else {
				fmt.Println(mutedStyle.Render("Not forwarded (unrecognized scheme or no UI connected)"))
			}
			return nil
		},
	}
}
