package cmd

import (
	"fmt"

	"github.com/BioHazard786/Warpcall/internal/media/capture"
	"github.com/BioHazard786/Warpcall/internal/ui"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List cameras and microphones",
	RunE: func(cmd *cobra.Command, args []string) error {
		stopSpinner := ui.RunSpinner("Looking for capture devices...")
		devices, err := capture.Devices()
		stopSpinner()
		if err != nil {
			return err
		}

		rows := make([]ui.DeviceRow, 0, len(devices))
		for _, d := range devices {
			rows = append(rows, ui.DeviceRow{Kind: d.Kind, Label: d.Label, ID: d.ID})
		}
		fmt.Println(ui.DeviceTableView(rows))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
