// Package simulator provides ground-truth evaluators: a reference district
// simulator with a controlled battery and solar per building, and a client
// for simulators running as a remote service.
package simulator

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/kilianp07/voi/core/evaluator"
	"github.com/kilianp07/voi/core/factory"
	"github.com/kilianp07/voi/core/model"
	"github.com/kilianp07/voi/infra/logger"
)

// Tariff is a time-of-use electricity price in $/kWh.
type Tariff struct {
	OffPeak  float64 `json:"off_peak"`
	Standard float64 `json:"standard"`
	Peak     float64 `json:"peak"`
}

// Pricing holds the carbon price ($/kgCO2) and capital costs ($/kWh of
// battery, $/kWp of solar).
type Pricing struct {
	Carbon  float64 `json:"carbon"`
	Battery float64 `json:"battery"`
	Solar   float64 `json:"solar"`
}

// Config configures the district simulator.
type Config struct {
	// Controller is "lp", "greedy" or "none".
	Controller string `json:"controller"`
	// ClipLevel sets where net consumption is clipped at zero before
	// pricing: "b" per building, "d" for the district, "m" per building for
	// electricity and for the district for carbon.
	ClipLevel string `json:"clip_level"`
	// Days is the number of representative days simulated; costs are
	// scaled to a year.
	Days       int     `json:"days"`
	OpexFactor float64 `json:"opex_factor"`
	Pricing    Pricing `json:"pricing"`
	Tariff     Tariff  `json:"tariff"`
	BaseLoadKW float64 `json:"base_load_kw"`
	// CRate is the battery power limit per kWh of capacity.
	CRate float64 `json:"c_rate"`
	// InitialSoC is the starting charge as a fraction of capacity. Unset
	// means half full; 0 starts empty.
	InitialSoC *float64 `json:"initial_soc"`
	// OperationalOnly reports annual operating cost alone: no lifetime
	// opex factor and no capital cost.
	OperationalOnly bool `json:"operational_only"`
}

// SetDefaults fills unset values.
func (c *Config) SetDefaults() {
	if c.Controller == "" {
		c.Controller = "lp"
	}
	if c.ClipLevel == "" {
		c.ClipLevel = "m"
	}
	if c.Days <= 0 {
		c.Days = 12
	}
	if c.OpexFactor <= 0 {
		c.OpexFactor = 10
	}
	if c.Pricing == (Pricing{}) {
		c.Pricing = Pricing{Carbon: 5e-2, Battery: 1e3, Solar: 2e3}
	}
	if c.Tariff == (Tariff{}) {
		c.Tariff = Tariff{OffPeak: 0.08, Standard: 0.15, Peak: 0.30}
	}
	if c.BaseLoadKW <= 0 {
		c.BaseLoadKW = 150
	}
	if c.CRate <= 0 {
		c.CRate = 0.5
	}
	if c.InitialSoC == nil {
		half := 0.5
		c.InitialSoC = &half
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	switch c.Controller {
	case "lp", "greedy", "none":
	default:
		return model.NewInvalidInput("evaluator.controller", fmt.Sprintf("unknown controller %q", c.Controller))
	}
	switch c.ClipLevel {
	case "b", "d", "m":
	default:
		return model.NewInvalidInput("evaluator.clip_level", fmt.Sprintf("unknown clip level %q", c.ClipLevel))
	}
	if c.InitialSoC != nil && (*c.InitialSoC < 0 || *c.InitialSoC > 1 || math.IsNaN(*c.InitialSoC)) {
		return model.NewInvalidInput("evaluator.initial_soc", "must be in [0,1]")
	}
	return nil
}

// District simulates a district of buildings over representative days and
// returns the lifetime cost of a design. It is safe for concurrent use.
type District struct {
	cfg       Config
	control   controller
	log       logger.Logger
	fallbacks atomic.Int64
}

// NewDistrict returns a simulator for cfg.
func NewDistrict(cfg Config) (*District, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &District{cfg: cfg, log: logger.New("district-sim")}
	switch cfg.Controller {
	case "lp":
		d.control = lpControl
	case "greedy":
		d.control = greedyControl
	default:
		d.control = noControl
	}
	return d, nil
}

// Fallbacks reports how many LP windows were dispatched by the greedy rule
// after a solver failure.
func (s *District) Fallbacks() int64 { return s.fallbacks.Load() }

// Evaluate implements evaluator.Evaluator.
func (s *District) Evaluate(ctx context.Context, batteryKWh, solarKWp, efficiency []float64) (float64, error) {
	b, err := s.Breakdown(ctx, batteryKWh, solarKWp, efficiency)
	if err != nil {
		return 0, err
	}
	return b.Total, nil
}

// Breakdown implements evaluator.Breakdowner.
func (s *District) Breakdown(ctx context.Context, batteryKWh, solarKWp, efficiency []float64) (evaluator.Breakdown, error) {
	n := len(batteryKWh)
	if n == 0 || len(solarKWp) != n || len(efficiency) != n {
		return evaluator.Breakdown{}, model.NewInvalidInput("design", fmt.Sprintf("%d battery, %d solar and %d efficiency values", n, len(solarKWp), len(efficiency)))
	}
	for i := 0; i < n; i++ {
		if batteryKWh[i] < 0 || solarKWp[i] < 0 {
			return evaluator.Breakdown{}, model.NewInvalidInput(fmt.Sprintf("design[%d]", i), "capacities must be non-negative")
		}
	}
	cfg := s.cfg
	bats := make([]battery, n)
	socs := make([]float64, n)
	for i := range bats {
		bats[i] = newBattery(batteryKWh[i], cfg.CRate, efficiency[i])
		socs[i] = *cfg.InitialSoC * batteryKWh[i]
	}

	var elec, carbon float64
	net := make([][HoursPerDay]float64, n)
	for k := 0; k < cfg.Days; k++ {
		if err := ctx.Err(); err != nil {
			return evaluator.Breakdown{}, err
		}
		doy := representativeDay(k, cfg.Days)
		days := make([]day, n)
		for i := 0; i < n; i++ {
			days[i] = cfg.profile(i, doy)
			sch, err := s.dispatch(&days[i], solarKWp[i], bats[i], socs[i])
			if err != nil {
				return evaluator.Breakdown{}, err
			}
			socs[i] = sch.endSoC
			for t := 0; t < HoursPerDay; t++ {
				net[i][t] = days[i].load[t] - days[i].pvUnit[t]*solarKWp[i] + sch.charge[t] - sch.discharge[t]
			}
		}
		e, c := cfg.price(days, net)
		elec += e
		carbon += c
	}

	scale := 365 / float64(cfg.Days)
	if !cfg.OperationalOnly {
		scale *= cfg.OpexFactor
	}
	out := evaluator.Breakdown{
		Electricity: elec * scale,
		Carbon:      carbon * scale,
	}
	if !cfg.OperationalOnly {
		for i := 0; i < n; i++ {
			out.Battery += batteryKWh[i] * cfg.Pricing.Battery
			out.Solar += solarKWp[i] * cfg.Pricing.Solar
		}
	}
	out.Total = out.Electricity + out.Carbon + out.Battery + out.Solar
	if math.IsNaN(out.Total) || math.IsInf(out.Total, 0) {
		return evaluator.Breakdown{}, fmt.Errorf("district simulation diverged")
	}
	return out, nil
}

func (s *District) dispatch(d *day, pvKWp float64, b battery, soc0 float64) (schedule, error) {
	if !b.usable() {
		return noControl(d, pvKWp, b, soc0, 0)
	}
	sch, err := s.control(d, pvKWp, b, soc0, s.cfg.Pricing.Carbon)
	if err != nil {
		s.fallbacks.Add(1)
		s.log.Debugf("lp dispatch failed, using greedy rule: %v", err)
		return greedyControl(d, pvKWp, b, soc0, s.cfg.Pricing.Carbon)
	}
	return sch, nil
}

// price returns the day's electricity and carbon cost for the clip level.
func (c Config) price(days []day, net [][HoursPerDay]float64) (elec, carbon float64) {
	price := days[0].price
	ci := days[0].carbon
	for t := 0; t < HoursPerDay; t++ {
		var district, perBuilding float64
		for i := range net {
			district += net[i][t]
			perBuilding += math.Max(net[i][t], 0)
		}
		district = math.Max(district, 0)
		switch c.ClipLevel {
		case "b":
			elec += perBuilding * price[t]
			carbon += perBuilding * ci[t] * c.Pricing.Carbon
		case "d":
			elec += district * price[t]
			carbon += district * ci[t] * c.Pricing.Carbon
		default:
			elec += perBuilding * price[t]
			carbon += district * ci[t] * c.Pricing.Carbon
		}
	}
	return elec, carbon
}

func init() {
	_ = evaluator.Register("district", func(conf map[string]any) (evaluator.Evaluator, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		d, err := NewDistrict(c)
		if err != nil {
			return nil, err
		}
		return d, nil
	})
}
