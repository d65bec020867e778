package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/swarmpush/swarmpush/internal/api/models"
	"github.com/swarmpush/swarmpush/internal/api/response"
	"github.com/swarmpush/swarmpush/internal/device"
)

// DeviceHandler handles device registry endpoints.
type DeviceHandler struct {
	service *device.Service
	logger  zerolog.Logger
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(service *device.Service, logger zerolog.Logger) *DeviceHandler {
	return &DeviceHandler{service: service, logger: logger}
}

// ListDevices handles GET /v1/devices.
func (h *DeviceHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	regs, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list devices")
		response.InternalError(w, r, "failed to list devices")
		return
	}
	if regs == nil {
		regs = []*device.Registration{}
	}
	response.OK(w, r, models.DeviceList{Items: regs})
}

// RegisterDevice handles POST /v1/devices. The response carries the stored
// record so a client that omitted its user name learns the persisted one.
func (h *DeviceHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var input models.DeviceRegisterRequest
	if err := decodeJSON(w, r, &input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if errs := input.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "invalid registration", errs)
		return
	}

	stored, created, err := h.service.Register(r.Context(), input.Registration())
	if err != nil {
		if errors.Is(err, device.ErrEmptyPushToken) {
			response.BadRequest(w, r, err.Error(), nil)
			return
		}
		h.logger.Error().Err(err).Msg("failed to register device")
		response.InternalError(w, r, "failed to register device")
		return
	}

	if created {
		response.Created(w, r, "", models.DeviceRegisterResponse{
			Message:    "Device registered successfully",
			DeviceInfo: stored,
		})
		return
	}
	response.OK(w, r, models.DeviceRegisterResponse{
		Message:    "Device updated successfully",
		DeviceInfo: stored,
	})
}

// UnregisterDevice handles DELETE /v1/devices/{pushToken}.
func (h *DeviceHandler) UnregisterDevice(w http.ResponseWriter, r *http.Request) {
	pushToken := chi.URLParam(r, "pushToken")
	if pushToken == "" {
		response.BadRequest(w, r, "pushToken is required", nil)
		return
	}

	if err := h.service.Unregister(r.Context(), pushToken); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			response.NotFound(w, r, "device not found")
			return
		}
		h.logger.Error().Err(err).Msg("failed to unregister device")
		response.InternalError(w, r, "failed to unregister device")
		return
	}

	h.logger.Info().Str("operator", GetOperator(r.Context())).Msg("device unregistered")
	response.NoContent(w, r)
}
