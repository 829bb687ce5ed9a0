// Package evaluator defines the contract of the ground-truth system
// simulator: a pure, deterministic mapping from a district design and the
// battery efficiencies to a lifetime cost.
package evaluator

import (
	"context"
	"fmt"

	"github.com/kilianp07/voi/core/batch"
	"github.com/kilianp07/voi/core/factory"
	"github.com/kilianp07/voi/core/model"
)

// Evaluator computes the lifetime cost of a district design. Implementations
// must be stateless per call, safe for concurrent use and deterministic for
// identical arguments. Slices hold one entry per building.
type Evaluator interface {
	Evaluate(ctx context.Context, batteryKWh, solarKWp, efficiency []float64) (float64, error)
}

// Breakdown splits a lifetime cost into its contributions.
type Breakdown struct {
	Electricity float64 `json:"electricity"`
	Carbon      float64 `json:"carbon"`
	Battery     float64 `json:"battery"`
	Solar       float64 `json:"solar"`
	Total       float64 `json:"total"`
}

// Breakdowner is implemented by evaluators able to report cost contributions.
type Breakdowner interface {
	Breakdown(ctx context.Context, batteryKWh, solarKWp, efficiency []float64) (Breakdown, error)
}

// Func adapts a plain function to the Evaluator interface.
type Func func(ctx context.Context, batteryKWh, solarKWp, efficiency []float64) (float64, error)

// Evaluate calls f.
func (f Func) Evaluate(ctx context.Context, batteryKWh, solarKWp, efficiency []float64) (float64, error) {
	return f(ctx, batteryKWh, solarKWp, efficiency)
}

// EvaluateDesign splits the design into per-building vectors and evaluates it.
func EvaluateDesign(ctx context.Context, ev Evaluator, d model.DesignVector, u model.UncertaintyVector) (float64, error) {
	if err := d.Validate(); err != nil {
		return 0, err
	}
	if len(u) != d.Buildings() {
		return 0, model.NewInvalidInput("efficiency", fmt.Sprintf("%d values for %d buildings", len(u), d.Buildings()))
	}
	bat, sol := d.Split()
	return ev.Evaluate(ctx, bat, sol, u)
}

// EvaluateAll evaluates every joint sample on the runner's pool. Results are
// in input order; any failure fails the batch.
func EvaluateAll(ctx context.Context, ev Evaluator, r batch.Runner, samples []model.JointSample, buildings int) ([]float64, error) {
	return r.Run(ctx, len(samples), func(ctx context.Context, i int) (float64, error) {
		d, u := samples[i].Parts(buildings)
		return EvaluateDesign(ctx, ev, d, u)
	})
}

var registry = factory.NewRegistry[Evaluator]("evaluator")

// Register adds an evaluator factory identified by name.
func Register(name string, f factory.Factory[Evaluator]) error {
	return registry.Register(name, f)
}

// New creates the evaluator described by cfg.
func New(cfg factory.ModuleConfig) (Evaluator, error) {
	return registry.Create(cfg)
}
