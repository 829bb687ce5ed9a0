// Package voi runs the nested decision-under-uncertainty study: a surrogate
// is trained on ground-truth evaluations, the prior design problem is solved,
// one posterior problem is solved per revealed efficiency and the results
// are aggregated into a Monte-Carlo estimate of the value of information.
package voi

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/voi/core/batch"
	"github.com/kilianp07/voi/core/estimator"
	"github.com/kilianp07/voi/core/evaluator"
	"github.com/kilianp07/voi/core/logger"
	"github.com/kilianp07/voi/core/metrics"
	"github.com/kilianp07/voi/core/model"
	"github.com/kilianp07/voi/core/optimizer"
	"github.com/kilianp07/voi/core/sampling"
	"github.com/kilianp07/voi/core/surrogate"
)

// Engine orchestrates a VoI run. An Engine runs one study at a time.
type Engine struct {
	cfg       Config
	surrogate surrogate.Config
	optimizer optimizer.Config
	eval      evaluator.Evaluator
	sink      metrics.MetricsSink
	base      logger.Logger
	// log carries the id of the current run.
	log logger.Logger

	mu    sync.Mutex
	state State
	// OnTransition, when set, is called after every state change.
	OnTransition func(from, to State)
}

// NewEngine validates the study and returns an engine ready to Run. A nil
// sink or logger disables metrics or logging.
func NewEngine(cfg Config, sc surrogate.Config, oc optimizer.Config, ev evaluator.Evaluator, sink metrics.MetricsSink, log logger.Logger) (*Engine, error) {
	if ev == nil {
		return nil, fmt.Errorf("voi: nil evaluator")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sc.SetDefaults()
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if n := len(sc.LengthScales); n != 0 && n != 3*cfg.Buildings {
		return nil, model.NewInvalidInput("surrogate.length_scales", fmt.Sprintf("%d values, expected %d", n, 3*cfg.Buildings))
	}
	oc.SetDefaults()
	if err := oc.Validate(); err != nil {
		return nil, err
	}
	if err := oc.CheckBudget(freeDims(cfg.DesignBounds)); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Engine{
		cfg:       cfg,
		surrogate: sc,
		optimizer: oc,
		eval:      ev,
		sink:      sink,
		base:      logger.OrNop(log),
		log:       logger.OrNop(log),
	}, nil
}

func freeDims(b model.Bounds) int {
	n := 0
	for i := range b.Lower {
		if b.Lower[i] != b.Upper[i] {
			n++
		}
	}
	return n
}

// Config returns the study with defaults applied.
func (e *Engine) Config() Config { return e.cfg }

// State returns the current stage.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) transition(to State) {
	e.mu.Lock()
	from := e.state
	e.state = to
	hook := e.OnTransition
	e.mu.Unlock()
	e.log.Infof("voi state %s -> %s", from, to)
	if hook != nil {
		hook(from, to)
	}
}

// Run executes the study. Any failure aborts the run and leaves State at the
// last completed stage.
func (e *Engine) Run(ctx context.Context) (*model.Report, error) {
	cfg := e.cfg
	runID := uuid.NewString()
	started := time.Now().UTC()
	e.log = logger.With(e.base, "run_id", runID)
	e.transition(StateInit)
	e.log.Infof("voi run: %d buildings, %d training samples, %d posterior problems", cfg.Buildings, cfg.NSamples, cfg.NPriorSamples)

	gp, err := e.fitSurrogate(ctx, runID)
	if err != nil {
		return nil, err
	}
	e.transition(StateSurrogateFit)

	est := estimator.Estimator{Model: gp, Samples: cfg.NMCSamples}
	prior, err := e.solve(ctx, runID, est, "prior", 0, cfg.Prior,
		sampling.NewStream(cfg.Seed, sampling.StreamPriorSearch),
		sampling.NewStream(cfg.Seed, sampling.StreamPriorDraws))
	if err != nil {
		return nil, err
	}
	e.log.Infof("prior design %v: %s", []float64(prior.Design), optimizer.Describe(prior))
	e.transition(StatePriorSolved)

	e.transition(StatePosteriorSolving)
	outcomes, err := e.solvePosteriors(ctx, runID, est, prior.Design)
	if err != nil {
		return nil, err
	}

	estimate, err := model.Aggregate(prior.Cost, outcomes)
	if err != nil {
		return nil, err
	}
	e.log.Infof("voi direct=%.6g regret=%.6g std_error=%.6g", estimate.VoIDirect, estimate.VoIRegret, estimate.StdError)
	if err := metrics.Estimate(e.sink, metrics.EstimateEvent{RunID: runID, Estimate: estimate, Time: time.Now()}); err != nil {
		e.log.Warnf("record estimate: %v", err)
	}
	e.transition(StateAggregated)

	report := &model.Report{
		RunID:       runID,
		Buildings:   cfg.Buildings,
		PriorDesign: prior.Design,
		Prior:       prior,
		Posterior:   outcomes,
		Estimate:    estimate,
		Summary:     Summarize(outcomes),
		StartedAt:   started,
	}
	report.Warnings = append(report.Warnings, prior.Warnings...)
	for _, o := range outcomes {
		report.Warnings = append(report.Warnings, o.Result.Warnings...)
	}

	if cfg.Validation.Enabled {
		vr, err := e.validate(ctx, runID, gp, prior, outcomes)
		if err != nil {
			return nil, err
		}
		report.Validation = vr
	}

	e.transition(StateReported)
	report.State = StateReported.String()
	report.FinishedAt = time.Now().UTC()
	return report, nil
}

func (e *Engine) runner(name string) batch.Runner {
	return batch.Runner{
		Workers:  e.cfg.Workers,
		Name:     name,
		Progress: progressLogger(e.log, name),
	}
}

// evaluate runs a ground-truth batch and reports it to the sink.
func (e *Engine) evaluate(ctx context.Context, runID, name string, samples []model.JointSample) ([]float64, error) {
	t0 := time.Now()
	costs, err := evaluator.EvaluateAll(ctx, e.eval, e.runner(name), samples, e.cfg.Buildings)
	ev := metrics.BatchEvent{RunID: runID, Batch: name, Size: len(samples), Duration: time.Since(t0), Failed: err != nil, Time: time.Now()}
	if merr := e.sink.RecordEvaluationBatch(ev); merr != nil {
		e.log.Warnf("record batch %s: %v", name, merr)
	}
	if err != nil {
		e.log.Errorf("%s batch failed: %v", name, err)
		return nil, err
	}
	return costs, nil
}

func (e *Engine) fitSurrogate(ctx context.Context, runID string) (*surrogate.GP, error) {
	cfg := e.cfg
	samples, err := sampling.New(sampling.NewStream(cfg.Seed, sampling.StreamTraining)).SampleJoint(cfg.NSamples, cfg.DesignBounds, cfg.Prior)
	if err != nil {
		return nil, err
	}
	costs, err := e.evaluate(ctx, runID, "training", samples)
	if err != nil {
		return nil, err
	}

	opts := e.surrogate.Options(cfg.lengthScales(), sampling.NewStream(cfg.Seed, sampling.StreamSurrogate), e.log)
	gp := surrogate.New(opts)
	t0 := time.Now()
	if err := gp.Fit(ctx, model.TrainingSet{Inputs: samples, Costs: costs}); err != nil {
		e.log.Errorf("surrogate fit failed: %v", err)
		return nil, err
	}
	hp, _ := gp.Hyperparameters()
	e.log.Debugw("surrogate fitted", map[string]any{
		"length_scales":   hp.LengthScales,
		"signal_variance": hp.SignalVariance,
		"noise":           hp.Noise,
		"log_likelihood":  hp.LogLikelihood,
		"status":          hp.Status,
	})
	ev := metrics.SurrogateFitEvent{RunID: runID, Points: len(samples), LogLikelihood: hp.LogLikelihood, Duration: time.Since(t0), Time: time.Now()}
	if err := metrics.Fit(e.sink, ev); err != nil {
		e.log.Warnf("record surrogate fit: %v", err)
	}
	return gp, nil
}

// solve minimizes the expected cost under dist. search and draws are the
// problem's own streams.
func (e *Engine) solve(ctx context.Context, runID string, est estimator.Estimator, problem string, idx int, dist model.UncertaintyDistribution, search, draws *rand.Rand) (model.OptimizationResult, error) {
	name := problem
	if problem == "posterior" {
		name = fmt.Sprintf("posterior[%d]", idx)
	}
	obj := est.Bind(draws, dist)
	de := optimizer.New(e.optimizer, search, e.log)
	t0 := time.Now()
	res, err := de.Minimize(ctx, obj.Cost, e.cfg.DesignBounds)
	if err != nil {
		return model.OptimizationResult{}, fmt.Errorf("%s problem: %w", name, err)
	}
	if err := obj.Err(); err != nil {
		return model.OptimizationResult{}, fmt.Errorf("%s problem: %w", name, err)
	}
	if !res.Converged {
		e.log.Warnf("%s problem stopped before convergence: %s", name, res.Message)
	}
	res.Warnings = model.CheckBoundaries(name, res.Design, e.cfg.DesignBounds, e.cfg.BoundaryTolerance)
	for _, w := range res.Warnings {
		e.log.Warnf("boundary optimum %s; consider widening the design bounds", w)
	}
	ev := metrics.OptimizationEvent{RunID: runID, Problem: problem, Index: idx, Result: res, Duration: time.Since(t0), Time: time.Now()}
	if err := metrics.Optimization(e.sink, ev); err != nil {
		e.log.Warnf("record optimization: %v", err)
	}
	return res, nil
}

// solvePosteriors draws the revealed efficiencies and solves every posterior
// problem on at most PosteriorWorkers goroutines. Each problem owns its
// streams so results do not depend on scheduling.
func (e *Engine) solvePosteriors(ctx context.Context, runID string, est estimator.Estimator, priorDesign model.DesignVector) ([]model.PosteriorOutcome, error) {
	cfg := e.cfg
	revealed, err := sampling.New(sampling.NewStream(cfg.Seed, sampling.StreamRevealed)).SampleUncertainty(cfg.NPriorSamples, cfg.Prior)
	if err != nil {
		return nil, err
	}
	outcomes := make([]model.PosteriorOutcome, len(revealed))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.PosteriorWorkers)
	for i, u := range revealed {
		g.Go(func() error {
			dist := model.Centered(u, cfg.PosteriorSpread)
			search := sampling.NewStream(cfg.Seed, sampling.StreamPosterior+2*uint64(i))
			draws := sampling.NewStream(cfg.Seed, sampling.StreamPosterior+2*uint64(i)+1)
			res, err := e.solve(gctx, runID, est, "posterior", i, dist, search, draws)
			if err != nil {
				return err
			}
			priorCost, err := est.Estimate(draws, priorDesign, dist)
			if err != nil {
				return fmt.Errorf("prior design under posterior[%d]: %w", i, err)
			}
			outcomes[i] = model.PosteriorOutcome{Revealed: u, Result: res, PriorDesignCost: priorCost}
			e.log.Debugf("posterior[%d] revealed=%v cost=%.6g prior design cost=%.6g", i, []float64(u), res.Cost, priorCost)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// progressLogger logs roughly every tenth of a batch.
func progressLogger(log logger.Logger, name string) batch.Progress {
	return func(done, total int) {
		step := total / 10
		if step < 1 {
			step = 1
		}
		if done%step == 0 || done == total {
			log.Debugf("%s evaluations %d/%d", name, done, total)
		}
	}
}
