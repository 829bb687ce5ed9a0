package model

import (
	"fmt"
	"math"
)

// DesignVector holds the capital design of a district. The first half are
// battery energy capacities in kWh, the second half solar capacities in kWp,
// one entry of each per building.
type DesignVector []float64

// Buildings returns the number of buildings covered by the design.
func (d DesignVector) Buildings() int { return len(d) / 2 }

// Validate checks the design pairs up into per-building entries.
func (d DesignVector) Validate() error {
	if len(d) == 0 {
		return NewInvalidInput("design", "must not be empty")
	}
	if len(d)%2 != 0 {
		return NewInvalidInput("design", fmt.Sprintf("length %d is odd, expected one energy/solar pair per building", len(d)))
	}
	for i, v := range d {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewInvalidInput(fmt.Sprintf("design[%d]", i), "must be finite")
		}
	}
	return nil
}

// Split returns the battery and solar capacities per building.
func (d DesignVector) Split() (batteryKWh, solarKWp []float64) {
	n := d.Buildings()
	return d[:n], d[n : 2*n]
}

// Clone returns a copy of the design.
func (d DesignVector) Clone() DesignVector {
	cp := make(DesignVector, len(d))
	copy(cp, d)
	return cp
}

// UncertaintyVector holds one battery round-trip efficiency per building.
// Every entry lies in [0,1].
type UncertaintyVector []float64

// Clone returns a copy of the vector.
func (u UncertaintyVector) Clone() UncertaintyVector {
	cp := make(UncertaintyVector, len(u))
	copy(cp, u)
	return cp
}

// JointSample concatenates a design and an uncertainty vector. It is the
// input space of the surrogate.
type JointSample []float64

// Join builds the joint input for the surrogate.
func Join(d DesignVector, u UncertaintyVector) JointSample {
	js := make(JointSample, 0, len(d)+len(u))
	js = append(js, d...)
	return append(js, u...)
}

// Parts splits a joint sample for a district of n buildings.
func (j JointSample) Parts(buildings int) (DesignVector, UncertaintyVector) {
	return DesignVector(j[:2*buildings]), UncertaintyVector(j[2*buildings:])
}

// TrainingSet pairs joint samples with their ground-truth lifetime cost.
// Ordering carries no meaning.
type TrainingSet struct {
	Inputs []JointSample
	Costs  []float64
}

// Len returns the number of samples.
func (t TrainingSet) Len() int { return len(t.Inputs) }

// Validate checks that inputs and costs line up and share a dimension.
func (t TrainingSet) Validate() error {
	if len(t.Inputs) != len(t.Costs) {
		return NewInvalidInput("training_set", fmt.Sprintf("%d inputs but %d costs", len(t.Inputs), len(t.Costs)))
	}
	if len(t.Inputs) == 0 {
		return NewInvalidInput("training_set", "must not be empty")
	}
	dim := len(t.Inputs[0])
	for i, in := range t.Inputs {
		if len(in) != dim {
			return NewInvalidInput(fmt.Sprintf("training_set[%d]", i), fmt.Sprintf("dimension %d, expected %d", len(in), dim))
		}
		if math.IsNaN(t.Costs[i]) || math.IsInf(t.Costs[i], 0) {
			return NewInvalidInput(fmt.Sprintf("training_set[%d]", i), "cost must be finite")
		}
	}
	return nil
}

// Bounds are per-dimension box constraints on a design.
type Bounds struct {
	Lower []float64 `json:"lower"`
	Upper []float64 `json:"upper"`
}

// Dim returns the dimensionality of the box.
func (b Bounds) Dim() int { return len(b.Lower) }

// Validate checks the box is well formed. Equal lower and upper bounds are
// allowed and pin the dimension to a single value.
func (b Bounds) Validate() error {
	if len(b.Lower) == 0 {
		return NewInvalidInput("bounds", "must not be empty")
	}
	if len(b.Lower) != len(b.Upper) {
		return NewInvalidInput("bounds", fmt.Sprintf("%d lower but %d upper values", len(b.Lower), len(b.Upper)))
	}
	for i := range b.Lower {
		lo, hi := b.Lower[i], b.Upper[i]
		if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
			return NewInvalidInput(fmt.Sprintf("bounds[%d]", i), "must be finite")
		}
		if lo > hi {
			return NewInvalidInput(fmt.Sprintf("bounds[%d]", i), fmt.Sprintf("lower %g exceeds upper %g", lo, hi))
		}
	}
	return nil
}

// Contains reports whether x lies inside the box.
func (b Bounds) Contains(x []float64) bool {
	if len(x) != len(b.Lower) {
		return false
	}
	for i, v := range x {
		if v < b.Lower[i] || v > b.Upper[i] {
			return false
		}
	}
	return true
}

// Degenerate reports whether every dimension is pinned to a single value.
func (b Bounds) Degenerate() bool {
	for i := range b.Lower {
		if b.Lower[i] != b.Upper[i] {
			return false
		}
	}
	return true
}

// Clip projects x onto the box in place.
func (b Bounds) Clip(x []float64) {
	for i := range x {
		x[i] = math.Min(math.Max(x[i], b.Lower[i]), b.Upper[i])
	}
}

// UncertaintyDistribution describes the belief over battery efficiencies:
// an independent normal per building sharing one spread. Draws are clipped
// to [0,1].
type UncertaintyDistribution struct {
	Mean   []float64 `json:"mean"`
	Spread float64   `json:"spread"`
}

// Validate checks the distribution parameters.
func (u UncertaintyDistribution) Validate() error {
	if len(u.Mean) == 0 {
		return NewInvalidInput("mean", "must not be empty")
	}
	for i, m := range u.Mean {
		if math.IsNaN(m) || m < 0 || m > 1 {
			return NewInvalidInput(fmt.Sprintf("mean[%d]", i), fmt.Sprintf("%g outside [0,1]", m))
		}
	}
	if math.IsNaN(u.Spread) || math.IsInf(u.Spread, 0) || u.Spread < 0 {
		return NewInvalidInput("spread", "must be a finite non-negative number")
	}
	return nil
}

// Centered returns a distribution with the given spread centered on the
// revealed value.
func Centered(revealed UncertaintyVector, spread float64) UncertaintyDistribution {
	mean := make([]float64, len(revealed))
	copy(mean, revealed)
	return UncertaintyDistribution{Mean: mean, Spread: spread}
}
