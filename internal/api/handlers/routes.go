package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"truck-dispatch-service/internal/api/dto"
	"truck-dispatch-service/internal/domain"
	"truck-dispatch-service/internal/services"
)

type RoutePlanner interface {
	PlanRoutes(ctx context.Context, opts services.PlanOptions) ([]domain.RouteDescriptor, error)
}

type RoutesHandler struct {
	Planner RoutePlanner
}

// Routes plans a multi-stop route for every truck holding open jobs.
// An empty body is accepted and means no geometry decoding.
func (h *RoutesHandler) Routes(w http.ResponseWriter, r *http.Request) {
	var req dto.RoutesRequest

	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return
	}

	routes, err := h.Planner.PlanRoutes(r.Context(), services.PlanOptions{DecodeGeometry: req.DecodePolyline})
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("plan routes failed")
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	res := dto.RoutesResponse{
		Success:     true,
		TotalTrucks: len(routes),
		Routes:      dto.NewRouteResponses(routes),
	}
	writeJSON(w, r, http.StatusOK, res)
}
