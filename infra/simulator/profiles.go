package simulator

import "math"

// HoursPerDay is the length of one dispatch window.
const HoursPerDay = 24

// day holds the hourly profiles of one building on one representative day.
type day struct {
	load   [HoursPerDay]float64 // kW
	pvUnit [HoursPerDay]float64 // kW per kWp installed
	price  [HoursPerDay]float64 // $/kWh
	carbon [HoursPerDay]float64 // kgCO2/kWh
}

// representativeDay returns the day of year standing for window k of n.
func representativeDay(k, n int) int {
	return int((float64(k) + 0.5) * 365 / float64(n))
}

// profile builds deterministic synthetic profiles. Buildings differ by a
// load scale and a small phase shift so their peaks do not coincide.
func (c Config) profile(building, doy int) day {
	var d day
	season := math.Cos(2 * math.Pi * float64(doy) / 365)
	sun := 0.6 - 0.4*season
	base := c.BaseLoadKW * (1 + 0.1*float64(building%3))
	shift := float64(building % 2)
	for t := 0; t < HoursPerDay; t++ {
		h := float64(t)
		shape := 0.6 + 0.5*math.Exp(-sq(h-8-shift)/4) + 0.8*math.Exp(-sq(h-19+shift)/6)
		d.load[t] = base * shape * (1 + 0.25*season)

		irr := 0.0
		if t >= 6 && t <= 18 {
			irr = math.Sin(math.Pi * (h - 6) / 12)
		}
		d.pvUnit[t] = 0.85 * sun * irr

		switch {
		case t < 6:
			d.price[t] = c.Tariff.OffPeak
		case t >= 17 && t <= 21:
			d.price[t] = c.Tariff.Peak
		default:
			d.price[t] = c.Tariff.Standard
		}
		d.carbon[t] = 0.4 - 0.15*irr
	}
	return d
}

func sq(x float64) float64 { return x * x }
