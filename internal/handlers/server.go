package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"reelfeed/internal/config"
	"reelfeed/internal/utils"

	"github.com/gorilla/mux"
)

type Server struct {
	config     *config.Config
	logger     *utils.Logger
	httpServer *http.Server
	apiHandler *APIHandler
}

// NewServer builds the HTTP server; Start only listens on it.
func NewServer(cfg *config.Config, runner Runner, logger *utils.Logger) *Server {
	s := &Server{
		config:     cfg,
		logger:     logger,
		apiHandler: NewAPIHandler(runner, logger, cfg),
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.API.Port),
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

// Router builds the status API routes.
func (s *Server) Router() http.Handler {
	router := mux.NewRouter()

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/status", s.apiHandler.GetStatus).Methods("GET")
	api.HandleFunc("/history", s.apiHandler.GetHistory).Methods("GET")
	api.HandleFunc("/run", s.apiHandler.TriggerRun).Methods("POST")

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "not found")
	})

	return router
}

func (s *Server) Start() error {
	s.logger.Info("Starting status API on port", s.config.API.Port)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
