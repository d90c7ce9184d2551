package cli

import (
	"github.com/spf13/cobra"

	"mandi-pricecheck/internal/verify"
)

var (
	simulateStatus string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Send a synthetic verification report through the alert channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := verify.ParseStatus(simulateStatus)
		if err != nil {
			return err
		}
		return getApp().SimulateAlert(cmd.Context(), status)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateStatus, "status", "fail", "Overall status of the synthetic report: ok, warn or fail")
}
