package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"optionsengine/src/auth"
	"optionsengine/src/model"
	"optionsengine/src/scanner"
)

type diagnoser interface {
	Diagnose(ctx context.Context, user *model.User, automationID uint) (*scanner.Diagnosis, error)
}

// AutomationDiagnosticsHandler re-runs the entry pipeline for one
// automation without executing, reporting pass/fail per step.
func AutomationDiagnosticsHandler(diag diagnoser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid automation id", http.StatusBadRequest)
			return
		}

		diagnosis, err := diag.Diagnose(r.Context(), user, uint(id))
		if err != nil {
			logger.WithError(err).WithField("automation_id", id).Error("diagnostics failed")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if diagnosis == nil {
			http.Error(w, "automation not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(diagnosis); err != nil {
			logger.WithError(err).Error("failed to encode diagnostics response")
		}
	}
}
