package handlers

import (
	"encoding/json"
	"net/http"

	"reelfeed/internal/config"
	"reelfeed/internal/core"
	"reelfeed/internal/history"
	"reelfeed/internal/utils"
)

// Runner is the part of core.Manager the API needs.
type Runner interface {
	LastRun() *core.RunReport
	History() []history.Entry
	RequestRun(trigger string) bool
}

type APIHandler struct {
	runner Runner
	logger *utils.Logger
	config *config.Config

	diskFree func(path string) (uint64, error)
}

// A helper function to respond with JSON
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to respond with a JSON error
func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, map[string]string{"error": message})
}

func NewAPIHandler(runner Runner, logger *utils.Logger, config *config.Config) *APIHandler {
	return &APIHandler{runner: runner, logger: logger, config: config, diskFree: utils.DiskFree}
}

type statusResponse struct {
	LastRun       *core.RunReport `json:"last_run"`
	HistorySize   int             `json:"history_size"`
	SavePath      string          `json:"save_path"`
	DiskFreeBytes *uint64         `json:"disk_free_bytes,omitempty"`
	Schedule      string          `json:"schedule"`
}

// GetStatus reports the last run and the free space under the save path.
func (h *APIHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		LastRun:     h.runner.LastRun(),
		HistorySize: len(h.runner.History()),
		SavePath:    h.config.TorrentClient.SavePath,
		Schedule:    h.config.Automation.Schedule,
	}
	if free, err := h.diskFree(resp.SavePath); err == nil {
		resp.DiskFreeBytes = &free
	} else {
		h.logger.Debug("Disk check failed:", err)
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.runner.History())
}

// TriggerRun enqueues a run. A run already pending absorbs the request.
func (h *APIHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	queued := h.runner.RequestRun("api")
	h.logger.Info("Run requested via API, queued:", queued)
	respondJSON(w, http.StatusAccepted, map[string]bool{"queued": queued})
}
