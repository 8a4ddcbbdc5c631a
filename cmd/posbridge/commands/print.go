package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thereceipt/pos-bridge/internal/channel"
)

func printCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "print",
		Short: "Send a print request to the running daemon",
	}

	cmd.AddCommand(printTextCmd(), printFileCmd())
	return cmd
}

func printTextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "text <text...>",
		Short: "Print text, encoded and cut by the daemon",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if _, err := callMethod(serverURL, printChannel, "printUsbText", text); err != nil {
				fmt.Fprintln(os.Stderr, errorStyle.Render("Print failed: "+err.Error()))
				return err
			}
			fmt.Println(successStyle.Render("Printed"))
			return nil
		},
	}
}

func printFileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "file <path>",
		Short: "Print a file's raw bytes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			if _, err := callMethod(serverURL, printChannel, "printUsbBytes", channel.BytesArgument(data)); err != nil {
				fmt.Fprintln(os.Stderr, errorStyle.Render("Print failed: "+err.Error()))
				return err
			}
			fmt.Println(successStyle.Render(fmt.Sprintf("Printed %d bytes", len(data))))
			return nil
		},
	}
}
