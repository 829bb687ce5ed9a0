package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/voi/app"
	"github.com/kilianp07/voi/config"
	"github.com/kilianp07/voi/infra/logger"
)

var (
	cfgPath  string
	outPath  string
	csvPath  string
	xlsxPath string
	htmlPath string
)

var rootCmd = &cobra.Command{
	Use:   "voi",
	Short: "Value of information for district energy design",
	Long: "Runs a value-of-information study: trains a surrogate of the district\n" +
		"simulator, solves the prior and posterior design problems and reports\n" +
		"how much measuring battery efficiencies before sizing is worth.",
	RunE:         run,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.Flags().StringVarP(&outPath, "out", "o", "", "write the JSON report to this file (default stdout)")
	rootCmd.Flags().StringVar(&csvPath, "csv", "", "write posterior outcomes as CSV")
	rootCmd.Flags().StringVar(&xlsxPath, "xlsx", "", "write the report as an Excel workbook")
	rootCmd.Flags().StringVar(&htmlPath, "html", "", "write an HTML summary")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Logging.Apply()
	return cfg, nil
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
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
	rep, err := svc.Run(ctx)
	if err != nil {
		return err
	}
	return writeReport(cmd.OutOrStdout(), rep)
}
