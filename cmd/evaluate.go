package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/voi/core/evaluator"
	"github.com/kilianp07/voi/core/model"
	_ "github.com/kilianp07/voi/infra/simulator"
)

var (
	evalDesign     []float64
	evalEfficiency []float64
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate one design with the configured simulator",
	Example: "  voi evaluate --design 1200,500 --efficiency 0.85\n" +
		"  voi evaluate --design 800,900,300,250 --efficiency 0.9,0.8",
	RunE: evaluateDesign,
}

func init() {
	evaluateCmd.Flags().Float64SliceVar(&evalDesign, "design", nil, "battery kWh per building followed by solar kWp per building")
	evaluateCmd.Flags().Float64SliceVar(&evalEfficiency, "efficiency", nil, "battery round-trip efficiency per building")
	_ = evaluateCmd.MarkFlagRequired("design")
	_ = evaluateCmd.MarkFlagRequired("efficiency")
	rootCmd.AddCommand(evaluateCmd)
}

func evaluateDesign(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ev, err := evaluator.New(cfg.Evaluator)
	if err != nil {
		return fmt.Errorf("evaluator: %w", err)
	}
	d := model.DesignVector(evalDesign)
	if err := d.Validate(); err != nil {
		return err
	}
	if len(evalEfficiency) != d.Buildings() {
		return model.NewInvalidInput("efficiency", fmt.Sprintf("%d values for %d buildings", len(evalEfficiency), d.Buildings()))
	}
	bat, sol := d.Split()
	var out any
	if bd, ok := ev.(evaluator.Breakdowner); ok {
		out, err = bd.Breakdown(cmd.Context(), bat, sol, evalEfficiency)
	} else {
		var cost float64
		cost, err = ev.Evaluate(cmd.Context(), bat, sol, evalEfficiency)
		out = map[string]float64{"total": cost}
	}
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
