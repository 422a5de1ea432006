package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jakewins/price-signals/app"
	"github.com/jakewins/price-signals/core/sim"
	"github.com/jakewins/price-signals/infra/logger"
	"github.com/jakewins/price-signals/pkg/export"
	"github.com/jakewins/price-signals/scenarios"
)

var (
	runFormat string
	runOutput string
)

var runCmd = &cobra.Command{
	Use:   "run <scenario>",
	Short: "Run a scenario by builtin name or file path",
	Args:  cobra.ExactArgs(1),
	RunE:  runScenario,
}

func init() {
	runCmd.Flags().StringVarP(&runFormat, "format", "f", "text", "output format: text, json or csv")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "write the report to a file instead of stdout")
	rootCmd.AddCommand(runCmd)
}

func runScenario(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch runFormat {
	case "text", "json", "csv":
	default:
		return fmt.Errorf("unknown format %q: want text, json or csv", runFormat)
	}
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	def, err := scenarios.Resolve(args[0])
	if err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()

	rep, runErr := svc.RunScenario(ctx, def)
	if rep == nil {
		return runErr
	}
	if err := writeReport(cmd.OutOrStdout(), rep); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if err := app.Failed(rep, def.Expected); err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	return nil
}

func writeReport(stdout io.Writer, rep *sim.Report) error {
	w := stdout
	if runOutput != "" {
		f, err := os.Create(runOutput)
		if err != nil {
			return err
		}
		defer func() {
			if err := f.Close(); err != nil {
				logger.New("main").Errorf("close %s: %v", runOutput, err)
			}
		}()
		w = f
	}
	switch runFormat {
	case "json":
		return export.WriteJSON(w, rep)
	case "csv":
		return export.WriteCSV(w, rep)
	default:
		_, err := io.WriteString(w, rep.String())
		return err
	}
}
