package api

import (
	"github.com/gorilla/mux"

	"github.com/guildboard/guildboard/internal/api/recovery"
)

// NewRouter wires the ops endpoints onto a mux router.
func NewRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()
	router.Use(recovery.Middleware)

	router.HandleFunc("/api/health", h.CheckHealth).Methods("GET")
	router.HandleFunc("/api/timers", h.ListTimers).Methods("GET")
	router.HandleFunc("/api/summary", h.GetSummary).Methods("GET")
	router.HandleFunc("/api/refresh", h.Refresh).Methods("POST")
	router.HandleFunc("/api/cursor", h.SetCursor).Methods("PUT")

	return router
}
