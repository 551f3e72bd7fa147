package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/autoprice/resale-engine/internal/listing"
	"github.com/autoprice/resale-engine/internal/observability"
	"github.com/autoprice/resale-engine/internal/storage"
)

// PredictionHandler handles price prediction requests.
type PredictionHandler struct {
	logger         *observability.Logger
	predictor      Predictor
	maxUploadBytes int64
}

// NewPredictionHandler creates a new prediction handler.
func NewPredictionHandler(logger *observability.Logger, predictor Predictor, maxUploadBytes int64) *PredictionHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 32 << 20
	}
	return &PredictionHandler{
		logger:         logger,
		predictor:      predictor,
		maxUploadBytes: maxUploadBytes,
	}
}

// PredictRequestDTO carries one or more raw listings.
type PredictRequestDTO struct {
	Record  *listing.Record  `json:"record,omitempty"`
	Records []listing.Record `json:"records,omitempty"`
}

func (d PredictRequestDTO) records() []listing.Record {
	if d.Record != nil {
		return append([]listing.Record{*d.Record}, d.Records...)
	}
	return d.Records
}

// PredictResponseDTO carries prices in request order.
type PredictResponseDTO struct {
	PredictionID    string    `json:"predictionId"`
	Model           string    `json:"model"`
	ArtifactVersion string    `json:"artifactVersion"`
	Prices          []float64 `json:"prices"`
	CacheHits       int       `json:"cacheHits"`
	LatencyMs       int64     `json:"latencyMs"`
}

// FeaturesResponseDTO is a prepared feature frame.
type FeaturesResponseDTO struct {
	Model   string           `json:"model"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// HistoryResponseDTO lists served predictions.
type HistoryResponseDTO struct {
	Predictions []*storage.Prediction `json:"predictions"`
}

func (h *PredictionHandler) decode(w http.ResponseWriter, r *http.Request) ([]listing.Record, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	var req PredictRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body", err.Error())
		return nil, false
	}
	records := req.records()
	if len(records) == 0 {
		writeError(w, h.logger, http.StatusBadRequest, "record or records is required", "")
		return nil, false
	}
	return records, true
}

// Predict handles POST /models/{model}/predict.
func (h *PredictionHandler) Predict(w http.ResponseWriter, r *http.Request) {
	records, ok := h.decode(w, r)
	if !ok {
		return
	}

	res, err := h.predictor.Predict(r.Context(), chi.URLParam(r, "model"), records)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, PredictResponseDTO{
		PredictionID:    res.ID.String(),
		Model:           res.Model,
		ArtifactVersion: res.ArtifactVersion,
		Prices:          res.Prices,
		CacheHits:       res.CacheHits,
		LatencyMs:       res.Duration.Milliseconds(),
	})
}

// Features handles POST /models/{model}/features.
func (h *PredictionHandler) Features(w http.ResponseWriter, r *http.Request) {
	records, ok := h.decode(w, r)
	if !ok {
		return
	}

	model := chi.URLParam(r, "model")
	f, err := h.predictor.Features(model, records)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, FeaturesResponseDTO{Model: model, Columns: f.Names(), Rows: f.Rows()})
}

// PredictCSV handles POST /models/{model}/predict/csv. The upload is either
// a raw text/csv body or a multipart form with a "file" field; the reply is
// the same table with a predicted_price column.
func (h *PredictionHandler) PredictCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	var src io.Reader = r.Body
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, h.logger, http.StatusBadRequest, "multipart upload needs a file field", err.Error())
			return
		}
		defer file.Close()
		src = file
	}

	var out bytes.Buffer
	res, err := h.predictor.PredictCSV(r.Context(), chi.URLParam(r, "model"), src, &out, nil)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, h.logger, http.StatusRequestEntityTooLarge, "upload too large", "")
			return
		}
		writeServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="predictions.csv"`)
	w.Header().Set("X-Prediction-Id", res.ID.String())
	w.Header().Set("X-Cache-Hits", strconv.Itoa(res.CacheHits))
	w.WriteHeader(http.StatusOK)
	if _, err := out.WriteTo(w); err != nil {
		h.logger.Error().Err(err).Msg("Failed to write csv response")
	}
}

// History handles GET /predictions?limit=N&model=M&batch=ID.
func (h *PredictionHandler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.ListFilter{Model: q.Get("model")}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, h.logger, http.StatusBadRequest, "limit must be a positive integer", v)
			return
		}
		filter.Limit = n
	}
	if v := q.Get("batch"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, h.logger, http.StatusBadRequest, "batch must be a uuid", v)
			return
		}
		filter.BatchID = uuid.NullUUID{UUID: id, Valid: true}
	}

	preds, err := h.predictor.History(r.Context(), filter)
	if err != nil {
		h.logger.WithContext(r.Context()).Error().Err(err).Msg("History query failed")
		writeError(w, h.logger, http.StatusInternalServerError, "history query failed", "")
		return
	}
	if preds == nil {
		preds = []*storage.Prediction{}
	}
	writeJSON(w, h.logger, http.StatusOK, HistoryResponseDTO{Predictions: preds})
}
