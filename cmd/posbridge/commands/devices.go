package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/thereceipt/pos-bridge/internal/printer"
)

func devicesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List attached printer-like USB devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printers, err := printer.USBDetector{}.Detect()
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(printers)
			}

			fmt.Println(renderPrinters(printers))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func renderPrinters(printers []*printer.Printer) string {
	if len(printers) == 0 {
		return mutedStyle.Render("No USB printer detected")
	}

	rows := make([][]string, 0, len(printers))
	for _, p := range printers {
		rows = append(rows, []string{
			p.ID,
			fmt.Sprintf("%04X:%04X", p.VID, p.PID),
			p.Description,
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers("ID", "VID:PID", "DEVICE").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	return t.String()
}
