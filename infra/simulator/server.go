package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/kilianp07/voi/core/evaluator"
	"github.com/kilianp07/voi/core/model"
	"github.com/kilianp07/voi/infra/logger"
)

// NewRouter exposes ev over HTTP:
//
//	POST /evaluate   EvaluateRequest -> EvaluateResponse
//	POST /breakdown  EvaluateRequest -> evaluator.Breakdown
//	GET  /health
func NewRouter(ev evaluator.Evaluator) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.HandleFunc("/evaluate", func(w http.ResponseWriter, req *http.Request) {
		in, ok := decodeRequest(w, req)
		if !ok {
			return
		}
		cost, err := ev.Evaluate(req.Context(), in.BatteryKWh, in.SolarKWp, in.Efficiency)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, EvaluateResponse{Cost: cost})
	}).Methods(http.MethodPost)
	r.HandleFunc("/breakdown", func(w http.ResponseWriter, req *http.Request) {
		bd, ok := ev.(evaluator.Breakdowner)
		if !ok {
			http.Error(w, "evaluator does not report a breakdown", http.StatusNotImplemented)
			return
		}
		in, ok := decodeRequest(w, req)
		if !ok {
			return
		}
		out, err := bd.Breakdown(req.Context(), in.BatteryKWh, in.SolarKWp, in.Efficiency)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}).Methods(http.MethodPost)
	return r
}

// Serve runs the simulator service on addr until ctx is cancelled. Access
// logs go to accessLog in Apache combined format.
func Serve(ctx context.Context, addr string, ev evaluator.Evaluator, accessLog io.Writer) error {
	log := logger.New("simulator-server")
	h := handlers.RecoveryHandler()(handlers.CombinedLoggingHandler(accessLog, NewRouter(ev)))
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Infof("simulator listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func decodeRequest(w http.ResponseWriter, req *http.Request) (EvaluateRequest, bool) {
	var in EvaluateRequest
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return in, false
	}
	return in, true
}

func writeError(w http.ResponseWriter, err error) {
	var inv *model.InvalidInputError
	if errors.As(err, &inv) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
