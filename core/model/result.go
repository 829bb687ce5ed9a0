package model

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"
)

// BoundaryWarning flags a solution sitting on (or within tolerance of) a
// design bound. The bound is likely too tight and should be widened.
type BoundaryWarning struct {
	Problem   string  `json:"problem"`
	Dimension int     `json:"dimension"`
	Value     float64 `json:"value"`
	Bound     float64 `json:"bound"`
	Upper     bool    `json:"upper"`
}

func (w BoundaryWarning) String() string {
	side := "lower"
	if w.Upper {
		side = "upper"
	}
	return fmt.Sprintf("%s: design[%d]=%g at %s bound %g", w.Problem, w.Dimension, w.Value, side, w.Bound)
}

// CheckBoundaries returns a warning for every dimension of x within tol
// (relative to the dimension's range) of a bound. Pinned dimensions are
// skipped.
func CheckBoundaries(problem string, x []float64, b Bounds, tol float64) []BoundaryWarning {
	var out []BoundaryWarning
	for i, v := range x {
		span := b.Upper[i] - b.Lower[i]
		if span <= 0 {
			continue
		}
		margin := tol * span
		switch {
		case v-b.Lower[i] <= margin:
			out = append(out, BoundaryWarning{Problem: problem, Dimension: i, Value: v, Bound: b.Lower[i]})
		case b.Upper[i]-v <= margin:
			out = append(out, BoundaryWarning{Problem: problem, Dimension: i, Value: v, Bound: b.Upper[i], Upper: true})
		}
	}
	return out
}

// OptimizationResult is the outcome of one design optimization.
type OptimizationResult struct {
	Design      DesignVector      `json:"design"`
	Cost        float64           `json:"cost"`
	Evaluations int               `json:"evaluations"`
	Generations int               `json:"generations"`
	Converged   bool              `json:"converged"`
	Message     string            `json:"message"`
	Warnings    []BoundaryWarning `json:"warnings,omitempty"`
}

// PosteriorOutcome records one posterior problem: the revealed efficiency,
// the design optimal under the tightened distribution and what the prior
// design would have cost under that same distribution.
type PosteriorOutcome struct {
	Revealed        UncertaintyVector  `json:"revealed"`
	Result          OptimizationResult `json:"result"`
	PriorDesignCost float64            `json:"prior_design_cost"`
}

// VoIEstimate aggregates the prior and posterior problems.
//
// VoIDirect compares against the prior cost computed under the prior
// distribution. VoIRegret compares against the prior design's cost computed
// under each posterior distribution, consistent with how posterior costs are
// computed. Both are alternative estimators and are expected to differ.
type VoIEstimate struct {
	PriorCost        float64 `json:"prior_cost"`
	PreposteriorCost float64 `json:"preposterior_cost"`
	PriorDesignMean  float64 `json:"prior_design_mean_posterior_cost"`
	VoIDirect        float64 `json:"voi_direct"`
	VoIRegret        float64 `json:"voi_regret"`
	StdError         float64 `json:"std_error"`
	RegretStdError   float64 `json:"regret_std_error"`
	Samples          int     `json:"samples"`
}

// Aggregate computes the VoI estimate from the prior cost and the posterior
// outcomes. StdError is std(posterior costs)/sqrt(n) using the sample
// standard deviation; RegretStdError is the same statistic on the paired
// differences between the prior design and the posterior optimum.
func Aggregate(priorCost float64, outcomes []PosteriorOutcome) (VoIEstimate, error) {
	n := len(outcomes)
	if n == 0 {
		return VoIEstimate{}, NewInvalidInput("n_prior_samples", "no posterior outcomes to aggregate")
	}
	post := make([]float64, n)
	priorDesign := make([]float64, n)
	diff := make([]float64, n)
	for i, o := range outcomes {
		post[i] = o.Result.Cost
		priorDesign[i] = o.PriorDesignCost
		diff[i] = o.PriorDesignCost - o.Result.Cost
	}
	pre, sdPost := stat.MeanStdDev(post, nil)
	priorMean := stat.Mean(priorDesign, nil)
	_, sdDiff := stat.MeanStdDev(diff, nil)

	var se, seDiff float64
	if n > 1 {
		se = stat.StdErr(sdPost, float64(n))
		seDiff = stat.StdErr(sdDiff, float64(n))
	}
	return VoIEstimate{
		PriorCost:        priorCost,
		PreposteriorCost: pre,
		PriorDesignMean:  priorMean,
		VoIDirect:        priorCost - pre,
		VoIRegret:        priorMean - pre,
		StdError:         se,
		RegretStdError:   seDiff,
		Samples:          n,
	}, nil
}

// CostSummary describes the spread of posterior costs.
type CostSummary struct {
	Median float64 `json:"median"`
	P5     float64 `json:"p5"`
	P95    float64 `json:"p95"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// ValidationPoint compares the surrogate estimate of a design with a fresh
// ground-truth estimate. SurrogateStd is the mean latent standard deviation
// of the surrogate over the validation draws.
type ValidationPoint struct {
	Problem        string       `json:"problem"`
	Design         DesignVector `json:"design"`
	SurrogateCost  float64      `json:"surrogate_cost"`
	SurrogateStd   float64      `json:"surrogate_std"`
	GroundTruth    float64      `json:"ground_truth"`
	ErrorPercent   float64      `json:"error_percent"`
	GroundTruthStd float64      `json:"ground_truth_std"`
}

// ValidationReport quantifies surrogate error against ground truth.
type ValidationReport struct {
	Prior             ValidationPoint   `json:"prior"`
	Posterior         []ValidationPoint `json:"posterior"`
	MeanAbsErrPercent float64           `json:"mean_abs_error_percent"`
}

// Report is the terminal output of a VoI run.
type Report struct {
	RunID       string             `json:"run_id"`
	Buildings   int                `json:"buildings"`
	State       string             `json:"state"`
	PriorDesign DesignVector       `json:"prior_design"`
	Prior       OptimizationResult `json:"prior"`
	Posterior   []PosteriorOutcome `json:"posterior"`
	Estimate    VoIEstimate        `json:"estimate"`
	Summary     CostSummary        `json:"summary"`
	Validation  *ValidationReport  `json:"validation,omitempty"`
	Warnings    []BoundaryWarning  `json:"warnings,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
}
