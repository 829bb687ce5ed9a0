package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/voi/core/evaluator"
	"github.com/kilianp07/voi/infra/simulator"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the configured simulator over HTTP",
	RunE:  serveSimulator,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8090", "listen address")
	rootCmd.AddCommand(serveCmd)
}

func serveSimulator(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Evaluator.Type == "http" {
		return fmt.Errorf("serve needs a local evaluator, got %q", cfg.Evaluator.Type)
	}
	ev, err := evaluator.New(cfg.Evaluator)
	if err != nil {
		return fmt.Errorf("evaluator: %w", err)
	}
	return simulator.Serve(ctx, serveAddr, ev, cmd.ErrOrStderr())
}
