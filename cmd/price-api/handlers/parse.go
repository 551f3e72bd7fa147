package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/autoprice/resale-engine/internal/listing"
	"github.com/autoprice/resale-engine/internal/nameparse"
	"github.com/autoprice/resale-engine/internal/observability"
	"github.com/autoprice/resale-engine/internal/torque"
)

// ParseHandler exposes the listing parsers.
type ParseHandler struct {
	logger *observability.Logger
}

// NewParseHandler creates a new parse handler.
func NewParseHandler(logger *observability.Logger) *ParseHandler {
	return &ParseHandler{logger: logger}
}

// ParseRequestDTO carries one raw value. Non-text values are accepted and
// parse to the empty result.
type ParseRequestDTO struct {
	Value listing.Cell `json:"value"`
}

// Name handles POST /parse/name.
func (h *ParseHandler) Name(w http.ResponseWriter, r *http.Request) {
	var req ParseRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	writeJSON(w, h.logger, http.StatusOK, nameparse.Parse(req.Value))
}

// Torque handles POST /parse/torque.
func (h *ParseHandler) Torque(w http.ResponseWriter, r *http.Request) {
	var req ParseRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	writeJSON(w, h.logger, http.StatusOK, torque.Parse(req.Value))
}
