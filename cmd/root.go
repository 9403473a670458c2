package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ridebot",
	Short: "Conversational support agent for delivery riders",
	Long: `Ridebot answers delivery riders' operational questions in natural
language. It keeps a cached snapshot of each rider's live context (profile,
active trips, shift, location), searches the policy handbook semantically,
and can apply trip state changes after explicit rider confirmation.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".ridebot.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
