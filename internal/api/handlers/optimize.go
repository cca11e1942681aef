package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"truck-dispatch-service/internal/api/dto"
	"truck-dispatch-service/internal/services"
)

type Optimizer interface {
	Optimize(ctx context.Context) (services.AssignmentResult, error)
}

type OptimizeHandler struct {
	Optimizer Optimizer
}

// Optimize runs one assignment pass over all unassigned jobs.
func (h *OptimizeHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	res, err := h.Optimizer.Optimize(r.Context())
	if errors.Is(err, services.ErrRunInProgress) {
		writeError(w, r, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("optimize failed")
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	out := dto.OptimizeResponse{
		Success:     true,
		TotalJobs:   res.TotalJobs,
		Assigned:    res.AssignedCount,
		Assignments: make([]dto.AssignmentResponse, 0, len(res.Assignments)),
		Skipped:     make([]dto.SkipResponse, 0, len(res.Skipped)),
	}
	for _, a := range res.Assignments {
		out.Assignments = append(out.Assignments, dto.AssignmentResponse{
			JobID:      a.JobID,
			Title:      a.Title,
			TruckID:    a.TruckID,
			TruckName:  a.TruckName,
			DriverName: a.DriverName,
			Score:      a.Score,
		})
	}
	for _, s := range res.Skipped {
		out.Skipped = append(out.Skipped, dto.SkipResponse{JobID: s.JobID, TruckID: s.TruckID, Reason: s.Reason})
	}

	writeJSON(w, r, http.StatusOK, out)
}
