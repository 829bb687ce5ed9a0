package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kilianp07/voi/core/evaluator"
	"github.com/kilianp07/voi/core/factory"
	"github.com/kilianp07/voi/core/model"
)

// EvaluateRequest is the body exchanged with a remote simulator.
type EvaluateRequest struct {
	BatteryKWh []float64 `json:"battery_kwh"`
	SolarKWp   []float64 `json:"solar_kwp"`
	Efficiency []float64 `json:"efficiency"`
}

// EvaluateResponse carries the lifetime cost computed remotely.
type EvaluateResponse struct {
	Cost float64 `json:"cost"`
}

// HTTPConfig configures the remote evaluator.
type HTTPConfig struct {
	URL            string  `json:"url"`
	TimeoutSeconds float64 `json:"timeout_seconds"`
}

// HTTPEvaluator posts designs to a simulator service such as the one
// started by Serve.
type HTTPEvaluator struct {
	url    string
	client *http.Client
}

// NewHTTPEvaluator returns an evaluator posting to cfg.URL.
func NewHTTPEvaluator(cfg HTTPConfig) (*HTTPEvaluator, error) {
	if cfg.URL == "" {
		return nil, model.NewInvalidInput("evaluator.url", "must not be empty")
	}
	timeout := 30 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds * float64(time.Second))
	}
	return &HTTPEvaluator{url: cfg.URL, client: &http.Client{Timeout: timeout}}, nil
}

// Evaluate implements evaluator.Evaluator.
func (h *HTTPEvaluator) Evaluate(ctx context.Context, batteryKWh, solarKWp, efficiency []float64) (float64, error) {
	body, err := json.Marshal(EvaluateRequest{BatteryKWh: batteryKWh, SolarKWp: solarKWp, Efficiency: efficiency})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("simulator returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	var out EvaluateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode simulator response: %w", err)
	}
	return out.Cost, nil
}

func init() {
	_ = evaluator.Register("http", func(conf map[string]any) (evaluator.Evaluator, error) {
		var c HTTPConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		h, err := NewHTTPEvaluator(c)
		if err != nil {
			return nil, err
		}
		return h, nil
	})
}
