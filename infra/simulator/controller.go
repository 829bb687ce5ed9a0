package simulator

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// battery describes one building's storage for a dispatch window.
type battery struct {
	capacity float64 // kWh
	power    float64 // kW, charge and discharge limit
	etaC     float64 // charge leg efficiency
	etaD     float64 // discharge leg efficiency
}

// newBattery splits the round-trip efficiency equally between the charge
// and discharge legs.
func newBattery(capacity, cRate, roundTrip float64) battery {
	leg := math.Sqrt(math.Min(math.Max(roundTrip, 0), 1))
	return battery{capacity: capacity, power: capacity * cRate, etaC: leg, etaD: leg}
}

func (b battery) usable() bool { return b.capacity > 0 && b.etaC > 1e-3 }

// schedule is the battery flow per hour at the building bus, in kW.
type schedule struct {
	charge    [HoursPerDay]float64
	discharge [HoursPerDay]float64
	endSoC    float64
}

// controller decides a day's battery schedule from the starting SoC.
type controller func(d *day, pvKWp float64, b battery, soc0, carbonPrice float64) (schedule, error)

func noControl(_ *day, _ float64, _ battery, soc0, _ float64) (schedule, error) {
	return schedule{endSoC: soc0}, nil
}

// greedyControl charges from PV surplus and discharges to cover demand in
// hours priced at or above the day's mean.
func greedyControl(d *day, pvKWp float64, b battery, soc0, _ float64) (schedule, error) {
	var s schedule
	var mean float64
	for _, p := range d.price {
		mean += p / HoursPerDay
	}
	soc := soc0
	for t := 0; t < HoursPerDay; t++ {
		net := d.load[t] - d.pvUnit[t]*pvKWp
		switch {
		case net < 0:
			ch := math.Min(math.Min(-net, b.power), (b.capacity-soc)/b.etaC)
			if ch > 0 {
				s.charge[t] = ch
				soc += ch * b.etaC
			}
		case d.price[t] >= mean:
			dis := math.Min(math.Min(net, b.power), soc*b.etaD)
			if dis > 0 {
				s.discharge[t] = dis
				soc -= dis / b.etaD
			}
		}
	}
	s.endSoC = soc
	return s, nil
}

// lpSolve points to the function used to solve the LP. It can be overridden in
// tests to simulate solver failures.
var lpSolve = lp.Simplex

// lpControl minimizes the day's import cost (energy plus carbon) with a
// linear program in standard form. Variables per hour: charge c, discharge
// d, import g, export/curtailment x and SoC s, a surplus z on the final SoC
// and slacks for the capacity and power limits. The battery must end the
// day at least as full as it started.
func lpControl(d *day, pvKWp float64, b battery, soc0, carbonPrice float64) (schedule, error) {
	const T = HoursPerDay
	const (
		oc = 0
		od = T
		og = 2 * T
		ox = 3 * T
		ol = 4 * T
		oz = 5 * T
		oa = 5*T + 1
		op = 6*T + 1
		oq = 7*T + 1
		nv = 8*T + 1
		nr = 5*T + 1
	)
	c := make([]float64, nv)
	A := mat.NewDense(nr, nv, nil)
	rhs := make([]float64, nr)
	for t := 0; t < T; t++ {
		c[og+t] = d.price[t] + carbonPrice*d.carbon[t]
		// tie-break against simultaneous charge and discharge
		c[oc+t], c[od+t] = 1e-6, 1e-6

		// bus balance
		A.Set(t, oc+t, -1)
		A.Set(t, od+t, 1)
		A.Set(t, og+t, 1)
		A.Set(t, ox+t, -1)
		rhs[t] = d.load[t] - d.pvUnit[t]*pvKWp

		// state of charge
		r := T + t
		A.Set(r, ol+t, 1)
		if t > 0 {
			A.Set(r, ol+t-1, -1)
		} else {
			rhs[r] = soc0
		}
		A.Set(r, oc+t, -b.etaC)
		A.Set(r, od+t, 1/b.etaD)

		A.Set(2*T+1+t, ol+t, 1)
		A.Set(2*T+1+t, oa+t, 1)
		rhs[2*T+1+t] = b.capacity

		A.Set(3*T+1+t, oc+t, 1)
		A.Set(3*T+1+t, op+t, 1)
		rhs[3*T+1+t] = b.power

		A.Set(4*T+1+t, od+t, 1)
		A.Set(4*T+1+t, oq+t, 1)
		rhs[4*T+1+t] = b.power
	}
	A.Set(2*T, ol+T-1, 1)
	A.Set(2*T, oz, -1)
	rhs[2*T] = soc0

	for r, v := range rhs {
		if v < 0 {
			rhs[r] = -v
			for j := 0; j < nv; j++ {
				A.Set(r, j, -A.At(r, j))
			}
		}
	}

	_, x, err := lpSolve(c, A, rhs, 1e-9, nil)
	if err != nil {
		return schedule{}, err
	}
	var s schedule
	for t := 0; t < T; t++ {
		s.charge[t] = math.Max(x[oc+t], 0)
		s.discharge[t] = math.Max(x[od+t], 0)
	}
	s.endSoC = math.Min(math.Max(x[ol+T-1], 0), b.capacity)
	return s, nil
}
