// Package handler provides HTTP handlers for the swarmpush API.
package handler

import (
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/swarmpush/swarmpush/internal/api/models"
	"github.com/swarmpush/swarmpush/internal/api/response"
	"github.com/swarmpush/swarmpush/internal/device"
	"github.com/swarmpush/swarmpush/internal/provider/resilience"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	devices   *device.Service
	providers *resilience.Registry
}

// NewOpsHandler creates a new OpsHandler. providers may be nil.
func NewOpsHandler(version, buildTime string, devices *device.Service, providers *resilience.Registry) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		devices:   devices,
		providers: providers,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.OK(w, r, health)
}

// ReadinessCheck handles GET /v1/ops/ready. The registry store must answer;
// an open gateway circuit degrades readiness without failing it.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ready := models.Readiness{
		Status:    models.HealthStatusOK,
		Time:      models.Timestamp(time.Now()),
		Providers: h.providerStatuses(),
	}

	regs, err := h.devices.List(r.Context())
	if err != nil {
		ready.Status = models.HealthStatusFail
		response.JSON(w, r, http.StatusServiceUnavailable, ready)
		return
	}
	ready.Devices = len(regs)

	for _, p := range ready.Providers {
		if p.Status != models.HealthStatusOK {
			ready.Status = models.HealthStatusDegraded
			break
		}
	}
	response.OK(w, r, ready)
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	statuses := []models.ProviderStatus{}
	if h.providers == nil {
		return statuses
	}

	for _, health := range h.providers.All() {
		ps := models.ProviderStatus{
			Provider:      health.Name,
			Status:        models.HealthStatusOK,
			LastSuccessAt: toTimestamp(health.LastSuccessAt),
			LastFailureAt: toTimestamp(health.LastFailureAt),
		}
		switch health.State {
		case gobreaker.StateOpen:
			ps.Status = models.HealthStatusFail
		case gobreaker.StateHalfOpen:
			ps.Status = models.HealthStatusDegraded
		}
		if !health.Healthy() && health.LastError != "" {
			msg := health.LastError
			ps.Message = &msg
		}
		statuses = append(statuses, ps)
	}
	return statuses
}

func toTimestamp(t *time.Time) *models.Timestamp {
	if t == nil {
		return nil
	}
	ts := models.Timestamp(*t)
	return &ts
}
