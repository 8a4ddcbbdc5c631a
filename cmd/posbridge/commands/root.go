package commands

import (
	"github.com/spf13/cobra"
)

// Version is set during build via ldflags
var Version = "dev"

const defaultServerURL = "http://localhost:12212"

var (
	configPath   string
	serverURL    string
	printChannel string
)

// Execute runs the posbridge command tree
func Execute() error {
	root := &cobra.Command{
		Use:          "posbridge",
		Short:        "Bridge a POS UI to a local USB receipt printer",
		Version:      Version,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVarP(&serverURL, "server", "s", defaultServerURL, "running daemon URL for client commands")
	root.PersistentFlags().StringVar(&printChannel, "channel", "com.joopos/escpos", "print channel name for client commands")

	root.AddCommand(serveCmd(), devicesCmd(), printCmd(), openCmd())
	return root.Execute()
}
