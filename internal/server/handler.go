package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Naem-ali/AIOPS/internal/alerts"
	"github.com/Naem-ali/AIOPS/internal/health"
	"github.com/Naem-ali/AIOPS/internal/poller"
)

// Handler is the HTTP handler for all /api/v1/* endpoints. It is the
// presentation-layer boundary: strictly read-only over snapshots, with a
// small control surface for the poller (pause/resume/interval).
type Handler struct {
	poller   *poller.Poller
	probe    *health.Probe
	notifier *alerts.Notifier
	mux      *http.ServeMux
}

// New creates a Handler and registers all routes.
func New(p *poller.Poller, probe *health.Probe, notifier *alerts.Notifier) http.Handler {
	h := &Handler{poller: p, probe: probe, notifier: notifier, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)
	h.mux.HandleFunc("/api/v1/status", h.status)
	h.mux.HandleFunc("/api/v1/poller/pause", h.pause)
	h.mux.HandleFunc("/api/v1/poller/resume", h.resume)
	h.mux.HandleFunc("/api/v1/poller/interval", h.interval)
	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/alerts", h.alerts)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// snapshot returns GET /api/v1/snapshot — the latest completed cycle.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snap, ok := h.poller.Latest()
	if !ok {
		jsonErr(w, http.StatusNotFound, "no snapshot yet")
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(snap))
}

// status returns GET /api/v1/status — poller state and refresh interval.
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, StatusResponse{
		State:    h.poller.State(),
		Interval: h.poller.Interval().String(),
	})
}

// pause handles POST /api/v1/poller/pause.
func (h *Handler) pause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.poller.Pause()
	jsonResp(w, http.StatusOK, StatusResponse{
		State:    h.poller.State(),
		Interval: h.poller.Interval().String(),
	})
}

// resume handles POST /api/v1/poller/resume.
func (h *Handler) resume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.poller.Resume()
	jsonResp(w, http.StatusOK, StatusResponse{
		State:    h.poller.State(),
		Interval: h.poller.Interval().String(),
	})
}

// interval handles PUT /api/v1/poller/interval with {"interval": "30s"}.
// The new value is clamped to [5s, 60s] and applies from the next sleep.
func (h *Handler) interval(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req intervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid body")
		return
	}
	d, err := time.ParseDuration(req.Interval)
	if err != nil || d <= 0 {
		jsonErr(w, http.StatusBadRequest, "invalid interval")
		return
	}

	h.poller.SetInterval(d)
	jsonResp(w, http.StatusOK, StatusResponse{
		State:    h.poller.State(),
		Interval: h.poller.Interval().String(),
	})
}

// health returns GET /api/v1/health — the backend connectivity probe result.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.probe.Check(r.Context()))
}

// alerts returns GET /api/v1/alerts — firing and recently resolved alerts.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.notifier.Active())
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
