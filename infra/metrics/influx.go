package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/voi/core/metrics"
	"github.com/kilianp07/voi/infra/logger"
)

// InfluxSink writes run events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordEvaluationBatch writes one point per batch.
func (s *InfluxSink) RecordEvaluationBatch(ev coremetrics.BatchEvent) error {
	p := write.NewPointWithMeasurement("voi_evaluation_batch").
		AddTag("run_id", ev.RunID).
		AddTag("batch", ev.Batch).
		AddTag("failed", strconv.FormatBool(ev.Failed)).
		AddField("size", ev.Size).
		AddField("duration_ms", round3(float64(ev.Duration.Microseconds())/1000)).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordSurrogateFit writes the fit summary.
func (s *InfluxSink) RecordSurrogateFit(ev coremetrics.SurrogateFitEvent) error {
	p := write.NewPointWithMeasurement("voi_surrogate_fit").
		AddTag("run_id", ev.RunID).
		AddField("points", ev.Points).
		AddField("log_likelihood", round3(ev.LogLikelihood)).
		AddField("duration_ms", round3(float64(ev.Duration.Microseconds())/1000)).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordOptimization writes one point per solved design problem.
func (s *InfluxSink) RecordOptimization(ev coremetrics.OptimizationEvent) error {
	r := ev.Result
	p := write.NewPointWithMeasurement("voi_optimization").
		AddTag("run_id", ev.RunID).
		AddTag("problem", ev.Problem).
		AddTag("index", strconv.Itoa(ev.Index)).
		AddField("cost", round3(r.Cost)).
		AddField("evaluations", r.Evaluations).
		AddField("generations", r.Generations).
		AddField("converged", r.Converged).
		AddField("boundary_warnings", len(r.Warnings)).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordEstimate writes the aggregated VoI.
func (s *InfluxSink) RecordEstimate(ev coremetrics.EstimateEvent) error {
	e := ev.Estimate
	p := write.NewPointWithMeasurement("voi_estimate").
		AddTag("run_id", ev.RunID).
		AddField("prior_cost", round3(e.PriorCost)).
		AddField("preposterior_cost", round3(e.PreposteriorCost)).
		AddField("voi_direct", round3(e.VoIDirect)).
		AddField("voi_regret", round3(e.VoIRegret)).
		AddField("std_error", round3(e.StdError)).
		AddField("samples", e.Samples).
		SetTime(ev.Time)
	return s.write(p)
}

// Close releases the client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
