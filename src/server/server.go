package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"
)

// Routes carries the wired handlers from the composition root.
type Routes struct {
	Auth func(http.Handler) http.Handler

	EngineStatus http.HandlerFunc
	EngineStart  http.HandlerFunc
	EngineStop   http.HandlerFunc
	RunCycle     http.HandlerFunc

	AutomationDiagnostics http.HandlerFunc

	ListPositions   http.HandlerFunc
	PositionTrades  http.HandlerFunc
	RefreshPosition http.HandlerFunc
	ClosePosition   http.HandlerFunc
	CheckExits      http.HandlerFunc
}

func StartServer(port string, routes Routes) {
	// Router with middleware
	r := chi.NewRouter()

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error(" \"/health error")
		}
	})

	r.Group(func(r chi.Router) {
		if routes.Auth != nil {
			r.Use(routes.Auth)
		}

		r.Get("/engine/status", routes.EngineStatus)
		r.Post("/engine/start", routes.EngineStart)
		r.Post("/engine/stop", routes.EngineStop)
		r.Post("/engine/run-cycle", routes.RunCycle)

		r.Get("/automations/{id}/diagnostics", routes.AutomationDiagnostics)

		r.Get("/positions", routes.ListPositions)
		r.Get("/positions/{id}/trades", routes.PositionTrades)
		r.Post("/positions/{id}/refresh", routes.RefreshPosition)
		r.Post("/positions/{id}/close", routes.ClosePosition)
		r.Post("/positions/check-exits", routes.CheckExits)
	})

	// Graceful server
	// Server setup
	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	// Shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
