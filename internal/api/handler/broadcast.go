package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/swarmpush/swarmpush/internal/api/models"
	"github.com/swarmpush/swarmpush/internal/api/response"
	"github.com/swarmpush/swarmpush/internal/dispatch"
)

// BroadcastHandler sends operator broadcasts through the dispatch engine.
type BroadcastHandler struct {
	engine *dispatch.Engine
	logger zerolog.Logger
}

// NewBroadcastHandler creates a new BroadcastHandler.
func NewBroadcastHandler(engine *dispatch.Engine, logger zerolog.Logger) *BroadcastHandler {
	return &BroadcastHandler{engine: engine, logger: logger}
}

// Send handles POST /v1/broadcasts.
func (h *BroadcastHandler) Send(w http.ResponseWriter, r *http.Request) {
	var input models.BroadcastRequest
	if err := decodeJSON(w, r, &input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if errs := input.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "invalid broadcast", errs)
		return
	}

	result, err := h.engine.Send(r.Context(), input.To, input.Title, input.Body)
	switch {
	case err == nil:
	case errors.Is(err, dispatch.ErrEmptySelection):
		response.BadRequest(w, r, err.Error(), nil)
		return
	case errors.Is(err, dispatch.ErrInFlight):
		response.Conflict(w, r, "another broadcast is being sent")
		return
	case errors.Is(err, dispatch.ErrGateway):
		response.BadGateway(w, r, err.Error())
		return
	default:
		h.logger.Error().Err(err).Msg("broadcast failed")
		response.InternalError(w, r, "broadcast failed")
		return
	}

	h.logger.Info().
		Str("operator", GetOperator(r.Context())).
		Int("recipients", len(result.Recipients)).
		Msg("broadcast sent")

	response.Accepted(w, r, models.BroadcastResponse{
		Recipients: len(result.Recipients),
		Tickets:    result.Tickets,
		Failed:     result.Failed(),
	})
}
