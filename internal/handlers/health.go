package handlers

import (
	"net/http"
	"time"

	domain "github.com/snackhouse/api/internal/domain"
	"github.com/snackhouse/api/internal/services"
)

// HealthHandlers serves the liveness and readiness endpoints.
type HealthHandlers struct {
	system services.SystemService
}

// NewHealthHandlers constructs health handlers. A nil system service reduces
// readiness to a static acknowledgement.
func NewHealthHandlers(system services.SystemService) *HealthHandlers {
	return &HealthHandlers{system: system}
}

type healthzResponse struct {
	Status string `json:"status"`
}

type readyzResponse struct {
	Status      string                  `json:"status"`
	Environment string                  `json:"environment,omitempty"`
	UptimeSec   int64                   `json:"uptime_seconds"`
	GeneratedAt string                  `json:"generated_at"`
	Checks      map[string]checkPayload `json:"checks"`
}

type checkPayload struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, http.StatusOK, healthzResponse{Status: "ok"})
}

// Readyz reports dependency readiness. Failed dependencies yield 503 so load
// balancers stop routing traffic here.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.system == nil {
		writeJSONResponse(w, http.StatusOK, healthzResponse{Status: "ok"})
		return
	}

	report, err := h.system.HealthReport(r.Context())
	if err != nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, readyzResponse{
			Status:      string(domain.HealthStatusError),
			GeneratedAt: formatTimestamp(time.Now()),
			Checks:      map[string]checkPayload{},
		})
		return
	}

	checks := make(map[string]checkPayload, len(report.Checks))
	for name, check := range report.Checks {
		checks[name] = checkPayload{
			Status:    string(check.Status),
			Detail:    check.Detail,
			Error:     check.Error,
			LatencyMS: check.Latency.Milliseconds(),
		}
	}

	status := http.StatusOK
	if report.Status == string(domain.HealthStatusError) {
		status = http.StatusServiceUnavailable
	}

	writeJSONResponse(w, status, readyzResponse{
		Status:      report.Status,
		Environment: report.Environment,
		UptimeSec:   int64(report.Uptime.Seconds()),
		GeneratedAt: formatTimestamp(report.GeneratedAt),
		Checks:      checks,
	})
}
