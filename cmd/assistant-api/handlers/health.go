package handlers

import (
	"encoding/json"
	"net/http"
)

// ReadinessProbe reports component state for /ready.
type ReadinessProbe struct {
	AIEnabled         func() bool
	AIReady           func() bool
	KnowledgeLoaded   func() bool
	KnowledgeRequired bool
	Sections          int
}

// HealthHandler serves liveness and readiness checks.
type HealthHandler struct {
	service string
	probe   ReadinessProbe
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(service string, probe ReadinessProbe) *HealthHandler {
	return &HealthHandler{service: service, probe: probe}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": h.service})
}

// Ready handles GET /ready. The service is not ready while required
// knowledge is missing.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	knowledgeLoaded := call(h.probe.KnowledgeLoaded)
	ready := !h.probe.KnowledgeRequired || knowledgeLoaded

	status := "ready"
	code := http.StatusOK
	if !ready {
		status = "not_ready"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]interface{}{
		"status":           status,
		"ai_enabled":       call(h.probe.AIEnabled),
		"ai_ready":         call(h.probe.AIReady),
		"knowledge_loaded": knowledgeLoaded,
		"sections":         h.probe.Sections,
	})
}

func call(f func() bool) bool {
	return f != nil && f()
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
