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
	"optionsengine/src/monitor"
)

type positionFinder interface {
	FindByID(ctx context.Context, id uint) (*model.Position, error)
	FindOpenByUser(ctx context.Context, userID uint) ([]model.Position, error)
	FindByUser(ctx context.Context, userID uint, limit int) ([]model.Position, error)
}

type positionRefresher interface {
	UpdatePositionData(ctx context.Context, position *model.Position) error
	CheckPosition(ctx context.Context, position *model.Position) (*monitor.ExitDecision, error)
	MonitorAllPositions(ctx context.Context) monitor.Result
}

type positionCloser interface {
	ClosePosition(ctx context.Context, user *model.User, position *model.Position, exitPrice float64, reason, source string) (*model.Trade, error)
}

type tradeFinder interface {
	FindByPosition(ctx context.Context, positionID uint) ([]model.Trade, error)
}

// ListPositionsHandler lists the authenticated user's positions. Open
// positions only by default; status=all includes closed ones.
func ListPositionsHandler(positions positionFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		limit := 100
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			parsed, err := strconv.Atoi(limitParam)
			if err != nil || parsed <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		var (
			rows []model.Position
			err  error
		)
		if r.URL.Query().Get("status") == "all" {
			rows, err = positions.FindByUser(r.Context(), user.ID, limit)
		} else {
			rows, err = positions.FindOpenByUser(r.Context(), user.ID)
		}
		if err != nil {
			logger.WithError(err).Error("failed to list positions")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(rows); err != nil {
			logger.WithError(err).Error("failed to encode positions response")
		}
	}
}

// loadOwnedPosition resolves the {id} route param to a position owned
// by the authenticated user. A nil return means the response has
// already been written.
func loadOwnedPosition(w http.ResponseWriter, r *http.Request, positions positionFinder) (*model.User, *model.Position) {
	user, ok := auth.GetUserFromContext(r.Context())
	if !ok || user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, nil
	}

	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid position id", http.StatusBadRequest)
		return nil, nil
	}

	position, err := positions.FindByID(r.Context(), uint(id))
	if err != nil {
		logger.WithError(err).WithField("position_id", id).Error("failed to load position")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, nil
	}
	if position == nil || position.UserID != user.ID {
		http.Error(w, "position not found", http.StatusNotFound)
		return nil, nil
	}

	return user, position
}

// RefreshPositionHandler re-resolves market data for one position and
// returns it with current price, unrealized P&L and greeks updated.
func RefreshPositionHandler(positions positionFinder, refresher positionRefresher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, position := loadOwnedPosition(w, r, positions)
		if position == nil {
			return
		}

		if err := refresher.UpdatePositionData(r.Context(), position); err != nil {
			logger.WithError(err).WithField("position_id", position.ID).Error("failed to refresh position")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(position); err != nil {
			logger.WithError(err).Error("failed to encode refreshed position")
		}
	}
}

// ListPositionTradesHandler lists every fill recorded against one of
// the authenticated user's positions, oldest first.
func ListPositionTradesHandler(positions positionFinder, trades tradeFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, position := loadOwnedPosition(w, r, positions)
		if position == nil {
			return
		}

		rows, err := trades.FindByPosition(r.Context(), position.ID)
		if err != nil {
			logger.WithError(err).WithField("position_id", position.ID).Error("failed to list position trades")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(rows); err != nil {
			logger.WithError(err).Error("failed to encode position trades response")
		}
	}
}

type closePositionPayload struct {
	Reason string  `json:"reason"`
	Price  float64 `json:"price"`
}

// ClosePositionHandler closes a position at market, or at the price
// given in the payload. Closing an already closed position succeeds
// without reopening it.
func ClosePositionHandler(positions positionFinder, closer positionCloser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, position := loadOwnedPosition(w, r, positions)
		if position == nil {
			return
		}

		var payload closePositionPayload
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				http.Error(w, "Invalid payload", http.StatusBadRequest)
				return
			}
		}
		reason := payload.Reason
		if reason == "" {
			reason = "manual close"
		}

		trade, err := closer.ClosePosition(r.Context(), user, position, payload.Price, reason, model.TradeSourceManual)
		if err != nil {
			logger.WithError(err).WithField("position_id", position.ID).Error("failed to close position")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if trade == nil {
			if err := json.NewEncoder(w).Encode(map[string]string{"status": "already closed"}); err != nil {
				logger.WithError(err).Error("failed to encode close response")
			}
			return
		}
		if err := json.NewEncoder(w).Encode(trade); err != nil {
			logger.WithError(err).Error("failed to encode close response")
		}
	}
}

// CheckExitsHandler runs the monitoring pass over every open position
// and reports the tally.
func CheckExitsHandler(refresher positionRefresher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := refresher.MonitorAllPositions(r.Context())

		errs := make([]string, 0, len(result.Errors))
		for _, err := range result.Errors {
			errs = append(errs, err.Error())
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]interface{}{
			"checked": result.Checked,
			"closed":  result.Closed,
			"partial": result.Partial,
			"errors":  errs,
		}); err != nil {
			logger.WithError(err).Error("failed to encode check exits response")
		}
	}
}
