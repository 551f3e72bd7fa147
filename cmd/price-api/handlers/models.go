package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/autoprice/resale-engine/internal/artifact"
	"github.com/autoprice/resale-engine/internal/observability"
	"github.com/autoprice/resale-engine/internal/regression"
)

// ModelHandler serves the model catalogue.
type ModelHandler struct {
	logger    *observability.Logger
	predictor Predictor
}

// NewModelHandler creates a new model handler.
func NewModelHandler(logger *observability.Logger, predictor Predictor) *ModelHandler {
	return &ModelHandler{logger: logger, predictor: predictor}
}

// ModelsResponseDTO lists the served models.
type ModelsResponseDTO struct {
	Models []artifact.Info `json:"models"`
}

// WeightsResponseDTO carries the largest model coefficients.
type WeightsResponseDTO struct {
	Model   string              `json:"model"`
	Weights []regression.Weight `json:"weights"`
}

// List handles GET /models.
func (h *ModelHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, ModelsResponseDTO{Models: h.predictor.Models()})
}

// Weights handles GET /models/{model}/weights?top=N.
func (h *ModelHandler) Weights(w http.ResponseWriter, r *http.Request) {
	model := chi.URLParam(r, "model")

	top := 20
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, h.logger, http.StatusBadRequest, "top must be a non-negative integer", v)
			return
		}
		top = n
	}

	weights, err := h.predictor.Weights(model, top)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, WeightsResponseDTO{Model: model, Weights: weights})
}
