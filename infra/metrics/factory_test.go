package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kilianp07/voi/core/factory"
	coremetrics "github.com/kilianp07/voi/core/metrics"
	_ "github.com/kilianp07/voi/infra/metrics"
)

/*
TestMetricsFactory_Builtins verifies registration via infra/metrics/factory.go.

	Cases:
	- prometheus sink is created
	- influx sink falls back to NopSink when unhealthy
	- prometheus + nop yields a MultiSink
	- kafka sink requires a topic
*/
func TestMetricsFactory_Builtins(t *testing.T) {
	s, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "prometheus"}})
	if err != nil {
		t.Fatalf("create prometheus: %v", err)
	}
	if s == nil {
		t.Fatal("expected sink instance")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	s, err = coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "influx", Conf: map[string]any{
		"url": srv.URL, "token": "t", "org": "o", "bucket": "b",
	}}})
	if err != nil {
		t.Fatalf("create influx: %v", err)
	}
	if _, ok := s.(coremetrics.NopSink); !ok {
		t.Fatalf("expected NopSink fallback, got %T", s)
	}

	s, err = coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "prometheus"}, {Type: "nop"}})
	if err != nil {
		t.Fatalf("create multi: %v", err)
	}
	if _, ok := s.(*coremetrics.MultiSink); !ok {
		t.Fatalf("expected MultiSink, got %T", s)
	}

	if _, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "kafka", Conf: map[string]any{
		"brokers": []string{"localhost:9092"},
	}}}); err == nil {
		t.Fatal("expected error for kafka sink without topic")
	}
}
