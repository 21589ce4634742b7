// Package api is the small ops surface: health, read-only introspection of
// timers and the ledger summary, and a manual dashboard refresh. The chat
// command layer remains the primary interface; these endpoints exist for
// operators and probes.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/guildboard/guildboard/internal/api/respond"
	"github.com/guildboard/guildboard/internal/model"
	"github.com/guildboard/guildboard/internal/state"
)

// Store is the slice of the state store the handlers read.
type Store interface {
	Load() *state.Document
}

// Summarizer answers the ledger-summary query.
type Summarizer interface {
	Summarize(ctx context.Context, now time.Time) (*model.FinancialSummary, error)
}

// Refresher forces a dashboard reconciliation pass.
type Refresher interface {
	Reconcile(ctx context.Context) error
}

// CursorSetter is the operator override of the ledger-poll cursor.
type CursorSetter interface {
	SetCursor(row int) (int, error)
}

// Handler serves the ops endpoints.
type Handler struct {
	store   Store
	agg     Summarizer
	refresh Refresher
	cursor  CursorSetter
	now     func() time.Time
}

// NewHandler constructs the ops handler. now is injectable for tests.
func NewHandler(store Store, agg Summarizer, refresh Refresher, cursor CursorSetter, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{store: store, agg: agg, refresh: refresh, cursor: cursor, now: now}
}

// serviceIsHealthy is injected by run.go once the scheduler is up.
var serviceIsHealthy = func() bool { return false }

// BindServiceHealth injects the health probe evaluated by CheckHealth.
func BindServiceHealth(f func() bool) { serviceIsHealthy = f }

// CheckHealth handles GET /api/health. Always 200; the body reports
// healthy/unhealthy.
func (h *Handler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	status := "unhealthy"
	if serviceIsHealthy() {
		status = "healthy"
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

type timerView struct {
	Key       string `json:"key"`
	Display   string `json:"display"`
	Status    string `json:"status"`
	Category  string `json:"category"`
	Hidden    bool   `json:"hidden"`
	EndTime   int64  `json:"endTime"`
	Remaining int64  `json:"remainingSeconds"`
}

// ListTimers handles GET /api/timers.
func (h *Handler) ListTimers(w http.ResponseWriter, r *http.Request) {
	doc := h.store.Load()
	now := h.now().Unix()
	out := make([]timerView, 0, len(doc.Timers))
	for key, t := range doc.Timers {
		remaining := t.EndTime - now
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, timerView{
			Key:       key,
			Display:   t.Display,
			Status:    string(t.Status),
			Category:  string(t.Category),
			Hidden:    t.Hidden,
			EndTime:   t.EndTime,
			Remaining: remaining,
		})
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"timers": out})
}

// GetSummary handles GET /api/summary.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.agg.Summarize(r.Context(), h.now())
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, sum)
}

// Refresh handles POST /api/refresh: an immediate dashboard pass outside
// the scheduled cadence.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.refresh.Reconcile(r.Context()); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

type cursorRequest struct {
	Row int `json:"row"`
}

// SetCursor handles PUT /api/cursor, the explicit rewind/advance override
// of the ledger-poll cursor.
func (h *Handler) SetCursor(w http.ResponseWriter, r *http.Request) {
	var req cursorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	old, err := h.cursor.SetCursor(req.Row)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]int{"previous": old, "current": req.Row})
}
