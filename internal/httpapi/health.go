package httpapi

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/linkedin-followup-tracker/followup-tracker/pkg/logger"
	"github.com/linkedin-followup-tracker/followup-tracker/pkg/utils"
)

const readyTimeout = 2 * time.Second

// HealthResponse is the response structure for health check endpoints
type HealthResponse struct {
	Status  string            `json:"status"`
	Details map[string]string `json:"details,omitempty"`
}

// handleHealth handles the /health endpoint for liveness checks
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSONResponse(w, http.StatusOK, HealthResponse{Status: "UP"})
}

// handleReady pings the database for readiness checks
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	details := map[string]string{"timestamp": utils.FormatISO8601(utils.Now())}

	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			logger.FromContext(r.Context()).Warn("Readiness check failed", zap.Error(err))
			details["database"] = "unreachable"
			utils.WriteJSONResponse(w, http.StatusServiceUnavailable, HealthResponse{Status: "NOT_READY", Details: details})
			return
		}
		details["database"] = "ok"
	}
	utils.WriteJSONResponse(w, http.StatusOK, HealthResponse{Status: "READY", Details: details})
}
