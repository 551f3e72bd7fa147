package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoprice/resale-engine/internal/artifact"
	"github.com/autoprice/resale-engine/internal/cache"
	"github.com/autoprice/resale-engine/internal/config"
	"github.com/autoprice/resale-engine/internal/observability"
	"github.com/autoprice/resale-engine/internal/service"
	"github.com/autoprice/resale-engine/internal/storage"
)

type memoryHistory struct {
	preds []*storage.Prediction
}

func (h *memoryHistory) CreateMany(_ context.Context, preds []*storage.Prediction) error {
	h.preds = append(h.preds, preds...)
	return nil
}

func (h *memoryHistory) List(_ context.Context, filter storage.ListFilter) ([]*storage.Prediction, error) {
	if filter.Limit > 0 && filter.Limit < len(h.preds) {
		return h.preds[:filter.Limit], nil
	}
	return h.preds, nil
}

const defaultBody = `{"record": {
	"name": "Hyundai i20 2015-2017 Sportz 1.2", "year": 2007, "km_driven": 60000,
	"fuel": "Diesel", "seller_type": "Individual", "transmission": "Manual",
	"owner": "First Owner", "mileage": "23.4 kmpl", "engine": "1248 CC",
	"max_power": "74 bhp", "torque": "190Nm@ 2000rpm", "seats": 5
}}`

const model1CSV = `name,fuel,transmission,owner,seats
Hyundai i20 2015-2017 Sportz 1.2,Diesel,Manual,First Owner,5
Maruti Swift Dzire VDI,Diesel,Manual,Second Owner,5
`

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	bundle, err := artifact.Load("../../artifacts/manifest.yaml")
	require.NoError(t, err)

	c := cache.NewMemoryClient(100)
	t.Cleanup(func() { _ = c.Close() })

	cfg := config.DefaultConfig()
	cfg.RateLimit.Enabled = false
	p := service.NewPredictor(bundle, c, &memoryHistory{}, nil, observability.Nop(), service.Options{})
	return NewRouter(observability.Nop(), cfg, p)
}

func do(t *testing.T, h http.Handler, method, path, contentType string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRouter_Health(t *testing.T) {
	rec := do(t, newTestRouter(t), http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestRouter_Models(t *testing.T) {
	rec := do(t, newTestRouter(t), http.MethodGet, "/api/v1/models", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	models := decode(t, rec)["models"].([]any)
	require.Len(t, models, 2)
	first := models[0].(map[string]any)
	assert.Equal(t, "model1", first["id"])
	assert.Contains(t, first, "metrics")
}

func TestRouter_Predict(t *testing.T) {
	h := newTestRouter(t)

	for _, model := range []string{"model1", "model2"} {
		rec := do(t, h, http.MethodPost, "/api/v1/models/"+model+"/predict", "application/json", defaultBody)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		body := decode(t, rec)
		prices := body["prices"].([]any)
		require.Len(t, prices, 1)
		assert.Greater(t, prices[0].(float64), 0.0)
		assert.Equal(t, model, body["model"])
	}

	rec := do(t, h, http.MethodGet, "/api/v1/predictions?limit=1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["predictions"].([]any), 1)
}

func TestRouter_PredictErrors(t *testing.T) {
	h := newTestRouter(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		check  func(t *testing.T, body map[string]any)
	}{
		{
			name:   "malformed body",
			path:   "/api/v1/models/model1/predict",
			body:   `{"record": `,
			status: http.StatusBadRequest,
		},
		{
			name:   "no records",
			path:   "/api/v1/models/model1/predict",
			body:   `{}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown model",
			path:   "/api/v1/models/model9/predict",
			body:   defaultBody,
			status: http.StatusBadRequest,
		},
		{
			name:   "missing columns",
			path:   "/api/v1/models/model2/predict",
			body:   `{"records": [{"name": "Tata Nano Cx", "fuel": "Petrol", "transmission": "Manual", "owner": "First Owner", "seats": 4}]}`,
			status: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "invalid_input", body["error"])
				assert.Len(t, body["columns"], 7)
			},
		},
		{
			name:   "bad seats",
			path:   "/api/v1/models/model1/predict",
			body:   `{"records": [{"name": "Tata Nano Cx", "fuel": "Petrol", "transmission": "Manual", "owner": "First Owner", "seats": "four"}]}`,
			status: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, float64(0), body["row"])
				assert.Equal(t, []any{"seats"}, body["columns"])
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tc.path, "application/json", tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			if tc.check != nil {
				tc.check(t, decode(t, rec))
			}
		})
	}
}

func TestRouter_Weights(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/api/v1/models/model2/weights?top=3", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	weights := decode(t, rec)["weights"].([]any)
	require.Len(t, weights, 3)
	assert.Equal(t, "year^2", weights[0].(map[string]any)["feature"])

	rec = do(t, h, http.MethodGet, "/api/v1/models/model2/weights?top=x", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/models/model5/weights", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_Features(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/v1/models/model2/features", "application/json", defaultBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	columns := body["columns"].([]any)
	assert.Equal(t, "km_driven", columns[0])
	row := body["rows"].([]any)[0].(map[string]any)
	assert.Equal(t, "Hyundai", row["brand"])
	assert.Equal(t, "1200.0", row["engine_displacement"])
}

func TestRouter_PredictCSV(t *testing.T) {
	h := newTestRouter(t)

	check := func(t *testing.T, rec *httptest.ResponseRecorder) {
		t.Helper()
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
		assert.NotEmpty(t, rec.Header().Get("X-Prediction-Id"))

		rows, err := csv.NewReader(rec.Body).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, []string{"name", "fuel", "transmission", "owner", "seats", "predicted_price"}, rows[0])
	}

	t.Run("raw body", func(t *testing.T) {
		check(t, do(t, h, http.MethodPost, "/api/v1/models/model1/predict/csv", "text/csv", model1CSV))
	})

	t.Run("multipart", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "cars.csv")
		require.NoError(t, err)
		_, err = fw.Write([]byte(model1CSV))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		check(t, do(t, h, http.MethodPost, "/api/v1/models/model1/predict/csv", mw.FormDataContentType(), buf.String()))
	})

	t.Run("missing columns", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/models/model1/predict/csv", "text/csv", "name,fuel\nNano,Petrol\n")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, []any{"transmission", "owner", "seats"}, decode(t, rec)["columns"])
	})
}

func TestRouter_Parse(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/v1/parse/name", "application/json", `{"value": "Mahindra Scorpio S11 4X4"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Mahindra", body["brand"])
	assert.Equal(t, "4WD", body["drive"])

	rec = do(t, h, http.MethodPost, "/api/v1/parse/name", "application/json", `{"value": 42}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, decode(t, rec), "brand")

	rec = do(t, h, http.MethodPost, "/api/v1/parse/torque", "application/json", `{"value": "190Nm@ 2000rpm"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"torque":190,"max_torque_rpm":2000}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/v1/parse/torque", "application/json", `{"value": "unknown"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"torque":null,"max_torque_rpm":null}`, rec.Body.String())
}

func TestRouter_ConnectPredict(t *testing.T) {
	h := newTestRouter(t)

	body := `{"model": "model1", "records": [{"name": "Hyundai i20 2015-2017 Sportz 1.2", "fuel": "Diesel", "transmission": "Manual", "owner": "First Owner", "seats": 5}]}`
	rec := do(t, h, http.MethodPost, "/pricing.v1.PricingService/Predict", "application/json", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode(t, rec)["prices"], 1)
}
