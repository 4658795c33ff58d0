package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	logger "github.com/sirupsen/logrus"

	"optionsengine/src/controller"
)

type engine interface {
	Start(ctx context.Context)
	Stop()
	Status() controller.Status
	RunCycle(ctx context.Context, full bool) error
}

// EngineStatusHandler reports the controller's loop state.
func EngineStatusHandler(eng engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(eng.Status()); err != nil {
			logger.WithError(err).Error("failed to encode engine status")
		}
	}
}

// EngineStartHandler starts the scheduling loop. Starting an already
// running engine is a no-op.
func EngineStartHandler(eng engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The loop must outlive this request.
		eng.Start(context.Background())
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "started"}); err != nil {
			logger.WithError(err).Error("failed to encode engine start response")
		}
	}
}

// EngineStopHandler stops the scheduling loop.
func EngineStopHandler(eng engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eng.Stop()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "stopped"}); err != nil {
			logger.WithError(err).Error("failed to encode engine stop response")
		}
	}
}

// RunCycleHandler triggers a single cycle on demand and waits for it.
// A full cycle is the default; pass full=false for a monitor-only one.
func RunCycleHandler(eng engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		full := true
		if fullParam := r.URL.Query().Get("full"); fullParam != "" {
			parsed, err := strconv.ParseBool(fullParam)
			if err != nil {
				http.Error(w, "invalid full", http.StatusBadRequest)
				return
			}
			full = parsed
		}

		if err := eng.RunCycle(r.Context(), full); err != nil {
			logger.WithError(err).Error("on-demand cycle failed")
			http.Error(w, "cycle failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(eng.Status()); err != nil {
			logger.WithError(err).Error("failed to encode run cycle response")
		}
	}
}
