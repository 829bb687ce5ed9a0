package voi

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/voi/core/estimator"
	"github.com/kilianp07/voi/core/evaluator"
	"github.com/kilianp07/voi/core/logger"
	"github.com/kilianp07/voi/core/metrics"
	"github.com/kilianp07/voi/core/model"
	"github.com/kilianp07/voi/core/optimizer"
	"github.com/kilianp07/voi/core/sampling"
	"github.com/kilianp07/voi/core/surrogate"
)

// districtCost is a smooth stand-in for the simulator. The best battery size
// grows with efficiency, so knowing the efficiency is worth something.
func districtCost(bat, sol, eff []float64) float64 {
	var c float64
	for i := range bat {
		c += 1000 + 100*(1-eff[i])
		d := (bat[i] - 1000 - 400*eff[i]) / 100
		c += 50 * d * d
		s := (sol[i] - 500) / 100
		c += 20 * s * s
	}
	return c
}

func analytic() evaluator.Evaluator {
	return evaluator.Func(func(_ context.Context, bat, sol, eff []float64) (float64, error) {
		return districtCost(bat, sol, eff), nil
	})
}

func scenarioOne() Config {
	return Config{
		DesignBounds:    model.Bounds{Lower: []float64{1000, 300}, Upper: []float64{1400, 700}},
		Prior:           model.UncertaintyDistribution{Mean: []float64{0.85}, Spread: 0.1},
		PosteriorSpread: 0.01,
		NSamples:        200,
		NMCSamples:      50,
		NPriorSamples:   8,
		Seed:            7,
		Workers:         4,
	}
}

func fastOptimizer() optimizer.Config {
	return optimizer.Config{PopSize: 10, MaxGenerations: 80, Tol: 1e-3}
}

type countingSink struct {
	mu      sync.Mutex
	batches []metrics.BatchEvent
	opts    int
	fits    int
	est     int
}

func (s *countingSink) RecordEvaluationBatch(ev metrics.BatchEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, ev)
	return nil
}

func (s *countingSink) RecordOptimization(metrics.OptimizationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts++
	return nil
}

func (s *countingSink) RecordSurrogateFit(metrics.SurrogateFitEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fits++
	return nil
}

func (s *countingSink) RecordEstimate(metrics.EstimateEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.est++
	return nil
}

func TestRun_ScenarioOne(t *testing.T) {
	cfg := scenarioOne()
	sink := &countingSink{}
	eng, err := NewEngine(cfg, surrogate.Config{Restarts: 1}, fastOptimizer(), analytic(), sink, nil)
	require.NoError(t, err)

	var states []State
	eng.OnTransition = func(_, to State) { states = append(states, to) }

	rep, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, cfg.DesignBounds.Contains(rep.PriorDesign))
	assert.Greater(t, rep.Estimate.PriorCost, 0.0)
	est := rep.Estimate
	assert.LessOrEqual(t, est.PreposteriorCost, est.PriorCost+3*est.StdError)
	assert.Greater(t, est.VoIRegret, -3*est.RegretStdError)
	assert.Len(t, rep.Posterior, cfg.NPriorSamples)
	assert.Equal(t, cfg.NPriorSamples, est.Samples)
	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, "reported", rep.State)
	assert.Nil(t, rep.Validation)
	assert.LessOrEqual(t, rep.Summary.Min, rep.Summary.Median)
	assert.LessOrEqual(t, rep.Summary.Median, rep.Summary.Max)

	// the optimum battery size at mean efficiency is 1340 kWh, solar 500 kWp
	assert.InDelta(t, 1340, rep.PriorDesign[0], 40)
	assert.InDelta(t, 500, rep.PriorDesign[1], 60)

	assert.Equal(t, []State{StateInit, StateSurrogateFit, StatePriorSolved, StatePosteriorSolving, StateAggregated, StateReported}, states)
	assert.Equal(t, StateReported, eng.State())

	require.Len(t, sink.batches, 1)
	assert.Equal(t, "training", sink.batches[0].Batch)
	assert.Equal(t, cfg.NSamples, sink.batches[0].Size)
	assert.Equal(t, 1, sink.fits)
	assert.Equal(t, 1+cfg.NPriorSamples, sink.opts)
	assert.Equal(t, 1, sink.est)
}

func TestRun_PointMassPosterior(t *testing.T) {
	cfg := scenarioOne()
	cfg.PosteriorSpread = 0
	cfg.NPriorSamples = 4
	eng, err := NewEngine(cfg, surrogate.Config{Restarts: 1}, fastOptimizer(), analytic(), nil, nil)
	require.NoError(t, err)
	rep, err := eng.Run(context.Background())
	require.NoError(t, err)
	for _, o := range rep.Posterior {
		want := math.Min(math.Max(1000+400*o.Revealed[0], 1000), 1400)
		assert.InDelta(t, want, o.Result.Design[0], 40, "revealed %v", o.Revealed)
	}
}

// With a point-mass distribution the Monte-Carlo objective collapses to the
// surrogate at the revealed value, so the optimizer lands on the design of
// the deterministic problem.
func TestPointMassMatchesDeterministic(t *testing.T) {
	cfg := scenarioOne()
	cfg.SetDefaults()
	s := sampling.New(sampling.NewStream(3, sampling.StreamTraining))
	samples, err := s.SampleJoint(cfg.NSamples, cfg.DesignBounds, cfg.Prior)
	require.NoError(t, err)
	costs := make([]float64, len(samples))
	for i, js := range samples {
		d, u := js.Parts(1)
		bat, sol := d.Split()
		costs[i] = districtCost(bat, sol, u)
	}
	gp := surrogate.New(surrogate.Config{}.Options(cfg.lengthScales(), sampling.NewStream(3, sampling.StreamSurrogate), nil))
	require.NoError(t, gp.Fit(context.Background(), model.TrainingSet{Inputs: samples, Costs: costs}))

	revealed := model.UncertaintyVector{0.8}
	est := estimator.Estimator{Model: gp, Samples: 25}
	pointMass := est.Bind(sampling.NewStream(3, 99), model.Centered(revealed, 0))
	deterministic := func(x []float64) float64 {
		p, err := gp.Predict([]model.JointSample{model.Join(model.DesignVector(x), revealed)})
		require.NoError(t, err)
		return p[0]
	}

	x := []float64{1250, 520}
	assert.InEpsilon(t, deterministic(x), pointMass.Cost(x), 1e-12)

	oc := optimizer.Config{Tol: 1e-6}
	a, err := optimizer.New(oc, sampling.NewStream(3, 1), nil).Minimize(context.Background(), pointMass.Cost, cfg.DesignBounds)
	require.NoError(t, err)
	b, err := optimizer.New(oc, sampling.NewStream(3, 1), nil).Minimize(context.Background(), deterministic, cfg.DesignBounds)
	require.NoError(t, err)
	assert.InDelta(t, b.Design[0], a.Design[0], 2)
	assert.InDelta(t, b.Design[1], a.Design[1], 2)
}

func TestRun_OddDesignRejected(t *testing.T) {
	var inv *model.InvalidInputError
	est := estimator.Estimator{Model: nil, Samples: 10}
	_, err := est.Estimate(sampling.NewStream(1, 1), model.DesignVector{1200, 500, 3}, model.UncertaintyDistribution{Mean: []float64{0.85}, Spread: 0.1})
	require.True(t, errors.As(err, &inv))

	cfg := scenarioOne()
	cfg.DesignBounds = model.Bounds{Lower: []float64{1000, 300, 0}, Upper: []float64{1400, 700, 1}}
	_, err = NewEngine(cfg, surrogate.Config{}, optimizer.Config{}, analytic(), nil, nil)
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, "voi.design_bounds", inv.Field)
}

func TestRun_EvaluationFailure(t *testing.T) {
	var calls atomic.Int64
	failing := evaluator.Func(func(_ context.Context, bat, sol, eff []float64) (float64, error) {
		if calls.Add(1) == 17 {
			return 0, errors.New("simulation diverged")
		}
		return districtCost(bat, sol, eff), nil
	})
	cfg := scenarioOne()
	cfg.Workers = 1
	sink := &countingSink{}
	eng, err := NewEngine(cfg, surrogate.Config{}, fastOptimizer(), failing, sink, nil)
	require.NoError(t, err)

	rep, err := eng.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, rep)
	var ee *model.EvaluationError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "training", ee.Batch)
	assert.Equal(t, 16, ee.Index)
	assert.Equal(t, StateInit, eng.State())
	require.Len(t, sink.batches, 1)
	assert.True(t, sink.batches[0].Failed)
}

func TestRun_ReproducibleAcrossWorkers(t *testing.T) {
	run := func(workers int) *model.Report {
		cfg := scenarioOne()
		cfg.NPriorSamples = 4
		cfg.PosteriorWorkers = workers
		eng, err := NewEngine(cfg, surrogate.Config{}, fastOptimizer(), analytic(), nil, nil)
		require.NoError(t, err)
		rep, err := eng.Run(context.Background())
		require.NoError(t, err)
		return rep
	}
	a, b := run(1), run(4)
	assert.Equal(t, a.PriorDesign, b.PriorDesign)
	assert.Equal(t, a.Estimate, b.Estimate)
	for i := range a.Posterior {
		assert.Equal(t, a.Posterior[i].Result.Design, b.Posterior[i].Result.Design)
	}
}

func TestRun_Validation(t *testing.T) {
	cfg := scenarioOne()
	cfg.NPriorSamples = 4
	cfg.Validation = ValidationConfig{Enabled: true, NDraws: 20, NPosterior: 2}
	sink := &countingSink{}
	eng, err := NewEngine(cfg, surrogate.Config{Restarts: 1}, fastOptimizer(), analytic(), sink, nil)
	require.NoError(t, err)
	rep, err := eng.Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, rep.Validation)
	assert.Equal(t, "prior", rep.Validation.Prior.Problem)
	assert.Len(t, rep.Validation.Posterior, 2)
	assert.Less(t, rep.Validation.MeanAbsErrPercent, 2.0)
	for _, p := range append([]model.ValidationPoint{rep.Validation.Prior}, rep.Validation.Posterior...) {
		assert.False(t, math.IsNaN(p.SurrogateStd), p.Problem)
		assert.GreaterOrEqual(t, p.SurrogateStd, 0.0, p.Problem)
	}
	require.Len(t, sink.batches, 2)
	assert.Equal(t, "validation", sink.batches[1].Batch)
	assert.Equal(t, 3*20, sink.batches[1].Size)
}

type fieldRecorder struct {
	logger.NopLogger
	mu     sync.Mutex
	fields map[string]any
}

func (r *fieldRecorder) With(key string, value any) logger.Logger {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fields == nil {
		r.fields = map[string]any{}
	}
	r.fields[key] = value
	return r
}

func TestRun_LoggerCarriesRunID(t *testing.T) {
	cfg := scenarioOne()
	cfg.NPriorSamples = 2
	log := &fieldRecorder{}
	eng, err := NewEngine(cfg, surrogate.Config{}, fastOptimizer(), analytic(), nil, log)
	require.NoError(t, err)
	rep, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rep.RunID, log.fields["run_id"])
}

func TestErrorPercent(t *testing.T) {
	cases := []struct {
		name       string
		sur, truth float64
		want       float64
	}{
		{"relative", 105, 100, 5},
		{"negative truth", -95, -100, 5},
		{"zero truth", 2, 0, 100},
		{"both zero", 0, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, errorPercent(tc.sur, tc.truth), 1e-9)
		})
	}
}

func TestValidationPoint_ZeroTruthEncodes(t *testing.T) {
	vp := model.ValidationPoint{Problem: "prior", SurrogateCost: 3, ErrorPercent: errorPercent(3, 0)}
	_, err := json.Marshal(model.ValidationReport{Prior: vp, MeanAbsErrPercent: math.Abs(vp.ErrorPercent)})
	require.NoError(t, err)
}

func TestNewEngine_EvaluationBudgetBelowPopulation(t *testing.T) {
	oc := fastOptimizer()
	oc.MaxEvaluations = 5
	_, err := NewEngine(scenarioOne(), surrogate.Config{}, oc, analytic(), nil, nil)
	var inv *model.InvalidInputError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, "optimizer.max_evaluations", inv.Field)
}

func TestRun_BoundaryWarning(t *testing.T) {
	cfg := scenarioOne()
	// the unconstrained optimum (about 1340 kWh) lies above the upper bound
	cfg.DesignBounds = model.Bounds{Lower: []float64{1000, 300}, Upper: []float64{1200, 700}}
	cfg.NPriorSamples = 2
	cfg.BoundaryTolerance = 0.05
	eng, err := NewEngine(cfg, surrogate.Config{}, fastOptimizer(), analytic(), nil, nil)
	require.NoError(t, err)
	rep, err := eng.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, rep.Prior.Warnings)
	w := rep.Prior.Warnings[0]
	assert.Equal(t, "prior", w.Problem)
	assert.Equal(t, 0, w.Dimension)
	assert.True(t, w.Upper)
	assert.GreaterOrEqual(t, len(rep.Warnings), len(rep.Prior.Warnings))
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eng, err := NewEngine(scenarioOne(), surrogate.Config{}, fastOptimizer(), analytic(), nil, nil)
	require.NoError(t, err)
	_, err = eng.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewEngine_NilEvaluator(t *testing.T) {
	_, err := NewEngine(scenarioOne(), surrogate.Config{}, optimizer.Config{}, nil, nil, nil)
	assert.Error(t, err)
}
