package handlers

import (
	"net/http"

	"github.com/jake-scott/bluestar-bridge/internal/pkg/logging"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/models"
	"github.com/jake-scott/bluestar-bridge/version"
)

type HealthHandler struct {
	client Controller
}

func NewHealthHandler(client Controller) HealthHandler {
	return HealthHandler{client: client}
}

// ServeHTTP runs the connection test: a login, plus an IoT connect when
// any device uses the shadow transport
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := models.Health{
		Status:  "ok",
		Version: version.Version,
	}
	status := http.StatusOK

	if err := h.client.Check(r.Context()); err != nil {
		logging.Logger(r.Context()).WithError(err).Warn("health check failed")
		resp.Status = "unavailable"
		resp.Error = err.Error()
		status = http.StatusServiceUnavailable
	}
	resp.Connected = h.client.Connected()

	sendJSONResponse(w, r, status, resp)
}
