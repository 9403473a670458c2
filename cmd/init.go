package cmd

import (
	"github.com/spf13/cobra"

	"github.com/odslabs/ridebot/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize ridebot configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure ridebot and generates a .ridebot.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
