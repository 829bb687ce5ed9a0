// Package app wires configuration into a runnable VoI study.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/voi/config"
	"github.com/kilianp07/voi/core/evaluator"
	coremetrics "github.com/kilianp07/voi/core/metrics"
	"github.com/kilianp07/voi/core/model"
	"github.com/kilianp07/voi/core/runlog"
	"github.com/kilianp07/voi/core/voi"
	"github.com/kilianp07/voi/infra/logger"
	"github.com/kilianp07/voi/infra/metrics"
	_ "github.com/kilianp07/voi/infra/simulator"
)

// Service runs one study: it owns the evaluator, the metrics sinks and the
// run history.
type Service struct {
	Engine   *voi.Engine
	cfg      *config.Config
	sink     coremetrics.MetricsSink
	history  runlog.Store
	log      logger.Logger
	promAddr string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	ev, err := evaluator.New(cfg.Evaluator)
	if err != nil {
		return nil, fmt.Errorf("evaluator: %w", err)
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	history, err := runlog.Open(cfg.History)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("history: %w", err), coremetrics.Close(sink))
	}
	engine, err := voi.NewEngine(cfg.VoI, cfg.Surrogate, cfg.Optimizer, ev, sink, logger.New("voi"))
	if err != nil {
		errs := []error{err, coremetrics.Close(sink)}
		if history != nil {
			errs = append(errs, history.Close())
		}
		return nil, errors.Join(errs...)
	}
	return &Service{
		Engine:   engine,
		cfg:      cfg,
		sink:     sink,
		history:  history,
		log:      logg,
		promAddr: cfg.Metrics.PrometheusAddr,
	}, nil
}

// Run executes the study and records it in the history when one is
// configured. The Prometheus endpoint, if any, is served for the duration
// of the run.
func (s *Service) Run(ctx context.Context) (*model.Report, error) {
	if s.promAddr != "" {
		promCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := metrics.StartPromServer(promCtx, s.promAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	rep, err := s.Engine.Run(ctx)
	if err != nil {
		return nil, err
	}
	if s.history != nil {
		rec := runlog.FromReport(rep, s.cfg.Evaluator.Type, s.cfg.VoI.Seed)
		if err := s.history.Append(ctx, rec); err != nil {
			s.log.Errorf("history append: %v", err)
		}
	}
	return rep, nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	errs := []error{coremetrics.Close(s.sink)}
	if s.history != nil {
		errs = append(errs, s.history.Close())
	}
	return errors.Join(errs...)
}
