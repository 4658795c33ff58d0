package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"

	logger "github.com/sirupsen/logrus"

	"optionsengine/src/model"
	"optionsengine/src/security"
)

type userFinder interface {
	FindByID(ctx context.Context, id uint) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// Middleware checks the shared API key and resolves the calling user
// into the request context. Behind the trusted gateway the user ID
// header is the identity source; direct callers authenticate with
// Basic credentials instead.
func Middleware(cfg security.Config, users userFinder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.APIKey != "" {
				provided := r.Header.Get(cfg.APIKeyHeader)
				if subtle.ConstantTimeCompare([]byte(provided), []byte(cfg.APIKey)) != 1 {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
			}

			if email, password, ok := r.BasicAuth(); ok {
				user, err := users.FindByEmail(r.Context(), email)
				if err != nil {
					logger.WithError(err).WithField("email", email).Error("failed to load user for request")
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					return
				}
				if user == nil || !user.CheckPassword(password) {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}

				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserKey, user)))
				return
			}

			rawID := r.Header.Get(cfg.UserIDHeader)
			if rawID == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := strconv.ParseUint(rawID, 10, 64)
			if err != nil {
				http.Error(w, "invalid user id header", http.StatusBadRequest)
				return
			}

			user, err := users.FindByID(r.Context(), uint(id))
			if err != nil {
				logger.WithError(err).WithField("user_id", id).Error("failed to load user for request")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			if user == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserKey, user)))
		})
	}
}
