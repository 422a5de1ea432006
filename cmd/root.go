package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jakewins/price-signals/config"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:          "price-signals",
	Short:        "Charge scheduling simulator for price-following devices",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// loadConfig reads the configured file, falling back to defaults when the
// default path does not exist and no explicit path was given.
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(cfgPath); err != nil {
		if os.IsNotExist(err) && !rootCmd.PersistentFlags().Changed("config") {
			return config.Default(), nil
		}
		return nil, err
	}
	return config.Load(cfgPath)
}
