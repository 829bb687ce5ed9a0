package voi

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/voi/core/model"
	"github.com/kilianp07/voi/core/sampling"
	"github.com/kilianp07/voi/core/surrogate"
)

type checkpoint struct {
	problem string
	design  model.DesignVector
	dist    model.UncertaintyDistribution
}

// validate compares the surrogate with the ground truth at the prior design
// and a subsample of posterior designs, on the same fresh efficiency draws.
// All ground-truth calls go out as one batch.
func (e *Engine) validate(ctx context.Context, runID string, gp *surrogate.GP, prior model.OptimizationResult, outcomes []model.PosteriorOutcome) (*model.ValidationReport, error) {
	cfg := e.cfg
	points := []checkpoint{{problem: "prior", design: prior.Design, dist: cfg.Prior}}
	for _, i := range spread(len(outcomes), cfg.Validation.NPosterior) {
		points = append(points, checkpoint{
			problem: fmt.Sprintf("posterior[%d]", i),
			design:  outcomes[i].Result.Design,
			dist:    model.Centered(outcomes[i].Revealed, cfg.PosteriorSpread),
		})
	}

	s := sampling.New(sampling.NewStream(cfg.Seed, sampling.StreamValidation))
	n := cfg.Validation.NDraws
	samples := make([]model.JointSample, 0, n*len(points))
	for _, p := range points {
		draws, err := s.SampleUncertainty(n, p.dist)
		if err != nil {
			return nil, err
		}
		for _, u := range draws {
			samples = append(samples, model.Join(p.design, u))
		}
	}

	truth, err := e.evaluate(ctx, runID, "validation", samples)
	if err != nil {
		return nil, err
	}
	pred, predStd, err := gp.PredictWithStd(samples)
	if err != nil {
		return nil, fmt.Errorf("validation predict: %w", err)
	}

	vr := &model.ValidationReport{}
	var sumAbs float64
	for k, p := range points {
		gt := truth[k*n : (k+1)*n]
		mean, std := stat.MeanStdDev(gt, nil)
		if n < 2 {
			std = 0
		}
		sur := stat.Mean(pred[k*n:(k+1)*n], nil)
		vp := model.ValidationPoint{
			Problem:        p.problem,
			Design:         p.design,
			SurrogateCost:  sur,
			SurrogateStd:   stat.Mean(predStd[k*n:(k+1)*n], nil),
			GroundTruth:    mean,
			ErrorPercent:   errorPercent(sur, mean),
			GroundTruthStd: std / math.Sqrt(float64(n)),
		}
		sumAbs += math.Abs(vp.ErrorPercent)
		if k == 0 {
			vr.Prior = vp
		} else {
			vr.Posterior = append(vr.Posterior, vp)
		}
		e.log.Infof("validation %s: surrogate=%.6g ground truth=%.6g (%.2f%%)", p.problem, sur, mean, vp.ErrorPercent)
	}
	vr.MeanAbsErrPercent = sumAbs / float64(len(points))
	return vr, nil
}

// errorPercent is the surrogate error relative to the ground truth. A zero
// ground truth is compared against the surrogate magnitude instead, so the
// result stays finite.
func errorPercent(sur, truth float64) float64 {
	denom := math.Abs(truth)
	if denom == 0 {
		denom = math.Abs(sur)
	}
	if denom == 0 {
		return 0
	}
	return 100 * (sur - truth) / denom
}

// spread picks k indices evenly spaced over [0,n).
func spread(n, k int) []int {
	if k > n {
		k = n
	}
	out := make([]int, 0, k)
	for j := 0; j < k; j++ {
		out = append(out, j*n/k)
	}
	return out
}
