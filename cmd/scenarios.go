package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jakewins/price-signals/scenarios"
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "Scenario related commands",
}

var scenariosLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List builtin scenarios",
	RunE:  runScenariosLs,
}

func init() {
	scenariosCmd.AddCommand(scenariosLsCmd)
	rootCmd.AddCommand(scenariosCmd)
}

func runScenariosLs(cmd *cobra.Command, args []string) error {
	for _, name := range scenarios.Builtins() {
		def, err := scenarios.Resolve(name)
		if err != nil {
			return err
		}
		// Folded YAML descriptions keep a trailing newline.
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, strings.TrimSpace(def.Description)); err != nil {
			return err
		}
	}
	return nil
}
