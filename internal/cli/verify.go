package cli

import (
	"github.com/spf13/cobra"

	"mandi-pricecheck/internal/app"
	"mandi-pricecheck/internal/report"
)

var (
	verifyWindow     windowFlags
	verifyFormat     string
	verifyVerbose    bool
	verifyFailOnWarn bool
	verifyNotify     bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run every check once and print the report",
	Long: `Probe the open-data source and the price store, then check that the
newest observations are recent and that the configured market has rows in the
lookback window. Exits non-zero when the overall status is FAIL.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := report.ParseFormat(verifyFormat)
		if err != nil {
			return err
		}
		window, err := verifyWindow.options()
		if err != nil {
			return err
		}

		return getApp().Verify(cmd.Context(), app.VerifyOptions{
			Window:     window,
			Format:     format,
			Verbose:    verifyVerbose,
			FailOnWarn: verifyFailOnWarn,
			Notify:     verifyNotify,
			Output:     cmd.OutOrStdout(),
		})
	},
}

func init() {
	verifyWindow.register(verifyCmd.Flags())
	verifyCmd.Flags().StringVarP(&verifyFormat, "format", "o", "text", "Report format: text, json or yaml")
	verifyCmd.Flags().BoolVarP(&verifyVerbose, "verbose", "v", false, "Include check details and the integrity slice in text output")
	verifyCmd.Flags().BoolVar(&verifyFailOnWarn, "fail-on-warn", false, "Exit non-zero on WARN as well as FAIL")
	verifyCmd.Flags().BoolVar(&verifyNotify, "notify", false, "Send a notification when alerting.notify_on is reached")
}
