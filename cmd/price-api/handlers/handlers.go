// Package handlers provides HTTP handlers for the price API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/autoprice/resale-engine/internal/artifact"
	"github.com/autoprice/resale-engine/internal/frame"
	"github.com/autoprice/resale-engine/internal/listing"
	"github.com/autoprice/resale-engine/internal/observability"
	"github.com/autoprice/resale-engine/internal/pipeline"
	"github.com/autoprice/resale-engine/internal/regression"
	"github.com/autoprice/resale-engine/internal/service"
	"github.com/autoprice/resale-engine/internal/storage"
)

// Predictor is the prediction service the handlers serve.
type Predictor interface {
	Predict(ctx context.Context, model string, records []listing.Record) (*service.Result, error)
	PredictCSV(ctx context.Context, model string, r io.Reader, w io.Writer, progress func(int)) (*service.Result, error)
	Features(model string, records []listing.Record) (*frame.Frame, error)
	Weights(model string, n int) ([]regression.Weight, error)
	Models() []artifact.Info
	History(ctx context.Context, filter storage.ListFilter) ([]*storage.Prediction, error)
}

// ErrorDTO is the body of every error response.
type ErrorDTO struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Columns []string `json:"columns,omitempty"`
	Row     *int     `json:"row,omitempty"`
	Detail  string   `json:"detail,omitempty"`
}

// statusFor maps pipeline failures to HTTP statuses: bad input is 400,
// unseen categories are 422, anything on the server side is 500.
func statusFor(kind pipeline.Kind) int {
	switch kind {
	case pipeline.KindInvalidInput:
		return http.StatusBadRequest
	case pipeline.KindEncoding:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, logger *observability.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, logger *observability.Logger, status int, message, detail string) {
	writeJSON(w, logger, status, ErrorDTO{
		Error:   http.StatusText(status),
		Message: message,
		Detail:  detail,
	})
}

// writeServiceError renders a pipeline error, or a 500 for anything else.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *observability.Logger, err error) {
	log := logger.WithContext(r.Context())

	var pe *pipeline.Error
	if !errors.As(err, &pe) {
		log.Error().Err(err).Msg("Request failed")
		writeError(w, logger, http.StatusInternalServerError, "internal error", "")
		return
	}

	status := statusFor(pe.Kind)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("kind", string(pe.Kind)).Msg("Request failed")
	}

	dto := ErrorDTO{
		Error:   string(pe.Kind),
		Message: pe.Message,
		Columns: pe.Columns,
	}
	if pe.Row >= 0 {
		row := pe.Row
		dto.Row = &row
	}
	if pe.Err != nil && pe.Kind.Client() {
		dto.Detail = pe.Err.Error()
	}
	writeJSON(w, logger, status, dto)
}
