package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"blocklag/internal/model"
	"blocklag/internal/monitor"
	"blocklag/internal/series"
)

// Handler serves the monitor's HTTP surface.
type Handler struct {
	monitor    *monitor.Monitor
	ring       *series.Ring
	hub        *Hub
	maxLatency time.Duration
	logger     *slog.Logger
}

// NewHandler wires the monitor and window into HTTP endpoints. hub may
// be nil when the stream endpoint is not served. maxLatency is the
// newest-sample bound above which the instance reports unhealthy.
func NewHandler(mon *monitor.Monitor, ring *series.Ring, hub *Hub, maxLatency time.Duration, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		monitor:    mon,
		ring:       ring,
		hub:        hub,
		maxLatency: maxLatency,
		logger:     logger,
	}
}

type healthResponse struct {
	Status  string        `json:"status"`
	State   monitor.State `json:"state"`
	Mode    model.Mode    `json:"mode"`
	Latency *float64      `json:"latency,omitempty"`
}

type seriesPayload struct {
	Samples  []model.Sample `json:"samples"`
	Count    int            `json:"count"`
	Capacity int            `json:"capacity"`
	Pushed   uint64         `json:"pushed"`
	Evicted  uint64         `json:"evicted"`
	Resets   uint64         `json:"resets"`
	Min      float64        `json:"min"`
	Max      float64        `json:"max"`
	Avg      float64        `json:"avg"`
	P95      float64        `json:"p95"`
}

type selectModeRequest struct {
	Mode string `json:"mode"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Health reports "degraded" until the window holds a sample,
// "unhealthy" when the session failed or the newest latency exceeds
// the configured bound, and "healthy" otherwise. Unhealthy answers 503
// so probes rotate the instance out.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	st := h.monitor.Status()
	latest, ok := h.ring.Snapshot().Latest()

	resp := healthResponse{Status: "healthy", State: st.State, Mode: st.Mode}
	if ok {
		l := latest.Latency
		resp.Latency = &l
	}

	code := http.StatusOK
	switch {
	case st.State == monitor.StateFailed:
		resp.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	case !ok:
		resp.Status = "degraded"
	case latest.Latency > h.maxLatency.Seconds():
		resp.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, resp)
}

// Status returns the monitor snapshot.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.Status())
}

// Series returns the latency window with its aggregates.
func (h *Handler) Series(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.seriesPayload())
}

// SelectMode switches the active mode. The response is the monitor
// snapshot after the switch, so callers see the new epoch immediately.
func (h *Handler) SelectMode(w http.ResponseWriter, r *http.Request) {
	var req selectModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	mode, err := model.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown mode")
		return
	}

	if err := h.monitor.Select(mode); err != nil {
		if errors.Is(err, monitor.ErrNotRunning) {
			writeError(w, http.StatusConflict, "monitor not running")
			return
		}
		writeError(w, http.StatusInternalServerError, "select mode failed")
		return
	}

	writeJSON(w, http.StatusOK, h.monitor.Status())
}

// Stream upgrades to a websocket and replays the current state as the
// first frame before live events.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "stream unavailable")
		return
	}

	st := h.monitor.Status()
	hello, err := json.Marshal(Event{Type: "snapshot", Status: &st, Series: h.seriesPayload()})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "snapshot failed")
		return
	}

	if err := h.hub.ServeWS(w, r, hello); err != nil {
		h.logger.Debug("stream upgrade rejected", "err", err)
	}
}

func (h *Handler) seriesPayload() *seriesPayload {
	snap := h.ring.Snapshot()
	return &seriesPayload{
		Samples:  snap.Samples,
		Count:    len(snap.Samples),
		Capacity: snap.Capacity,
		Pushed:   snap.Pushed,
		Evicted:  snap.Evicted,
		Resets:   snap.Resets,
		Min:      snap.Min(),
		Max:      snap.Max(),
		Avg:      snap.Avg(),
		P95:      snap.P95(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
