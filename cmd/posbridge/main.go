package main

import (
	"os"

	"github.com/thereceipt/pos-bridge/cmd/posbridge/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
