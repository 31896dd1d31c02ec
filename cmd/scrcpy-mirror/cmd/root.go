package cmd

import (
	"github.com/spf13/cobra"

	"github.com/scrcpygo/mirror/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "scrcpy-mirror",
	Short: "Mirror an Android device's screen and input over adb",
	Long:  `scrcpy-mirror drives the scrcpy wire protocol client core against a device reachable through adb, printing frame and control-channel activity as it runs.`,
}

var (
	flagVerbose bool
	flagJSONLog bool
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagJSONLog, "json-log", false, "emit structured JSON logs instead of the interactive format")

	cobra.OnInitialize(func() {
		level := "info"
		if flagVerbose {
			level = "debug"
		}
		structured := flagJSONLog || logging.UseStructuredByDefault()
		logging.Init(level, structured)
	})

	rootCmd.AddCommand(newMirrorCommand())
	rootCmd.AddCommand(newVersionCommand())
}
