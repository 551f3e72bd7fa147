package grpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoprice/resale-engine/internal/artifact"
	"github.com/autoprice/resale-engine/internal/listing"
	"github.com/autoprice/resale-engine/internal/observability"
	"github.com/autoprice/resale-engine/internal/pipeline"
	"github.com/autoprice/resale-engine/internal/service"
)

type stubPredictor struct {
	err     error
	model   string
	records []listing.Record
}

func (s *stubPredictor) Predict(_ context.Context, model string, records []listing.Record) (*service.Result, error) {
	s.model, s.records = model, records
	if s.err != nil {
		return nil, s.err
	}
	prices := make([]float64, len(records))
	for i := range prices {
		prices[i] = float64(100 * (i + 1))
	}
	return &service.Result{
		ID:              uuid.MustParse("7f1c2a34-5b6d-4e7f-8a9b-0c1d2e3f4a5b"),
		Model:           model,
		ArtifactVersion: "v-test",
		Prices:          prices,
		CacheHits:       1,
		Duration:        3 * time.Millisecond,
	}, nil
}

func (s *stubPredictor) Models() []artifact.Info {
	return []artifact.Info{{ID: artifact.Model1}, {ID: artifact.Model2}}
}

func newServer(t *testing.T, p Predictor) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle(NewPricingService(observability.Nop(), p).Handler())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestPricingService_Predict(t *testing.T) {
	stub := &stubPredictor{}
	srv := newServer(t, stub)

	client := connect.NewClient[PredictRequest, PredictResponse](
		srv.Client(), srv.URL+PredictProcedure, connect.WithCodec(JSONCodec{}))

	resp, err := client.CallUnary(context.Background(), connect.NewRequest(&PredictRequest{
		Model: artifact.Model1,
		Records: []listing.Record{
			{Name: listing.Text("Hyundai i20 2015-2017 Sportz 1.2"), Seats: listing.Number(5)},
			{Name: listing.Text("Tata Nano Cx"), Seats: listing.Text("4")},
		},
	}))
	require.NoError(t, err)

	assert.Equal(t, "7f1c2a34-5b6d-4e7f-8a9b-0c1d2e3f4a5b", resp.Msg.PredictionID)
	assert.Equal(t, []float64{100, 200}, resp.Msg.Prices)
	assert.Equal(t, int32(1), resp.Msg.CacheHits)
	assert.Equal(t, int64(3), resp.Msg.LatencyMs)

	assert.Equal(t, artifact.Model1, stub.model)
	require.Len(t, stub.records, 2)
	assert.Equal(t, listing.Text("4"), stub.records[1].Seats)
	assert.Equal(t, listing.Number(5), stub.records[0].Seats)
}

func TestPricingService_Errors(t *testing.T) {
	tests := []struct {
		name  string
		model string
		err   error
		code  connect.Code
	}{
		{"no model", "", nil, connect.CodeInvalidArgument},
		{"invalid input", artifact.Model1, pipeline.InvalidInput("missing required columns", nil), connect.CodeInvalidArgument},
		{"encoding", artifact.Model1, pipeline.EncodingError("category not in the fitted vocabulary", nil), connect.CodeInvalidArgument},
		{"artifact", artifact.Model2, pipeline.ArtifactError("numeric parameters incomplete", nil), connect.CodeInternal},
		{"foreign", artifact.Model2, assert.AnError, connect.CodeInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := newServer(t, &stubPredictor{err: tc.err})
			client := connect.NewClient[PredictRequest, PredictResponse](
				srv.Client(), srv.URL+PredictProcedure, connect.WithCodec(JSONCodec{}))

			_, err := client.CallUnary(context.Background(), connect.NewRequest(&PredictRequest{Model: tc.model}))
			require.Error(t, err)
			assert.Equal(t, tc.code, connect.CodeOf(err))
		})
	}
}

func TestPricingService_ListModels(t *testing.T) {
	srv := newServer(t, &stubPredictor{})
	client := connect.NewClient[ListModelsRequest, ListModelsResponse](
		srv.Client(), srv.URL+ListModelsProcedure, connect.WithCodec(JSONCodec{}))

	resp, err := client.CallUnary(context.Background(), connect.NewRequest(&ListModelsRequest{}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Models, 2)
	assert.Equal(t, artifact.Model2, resp.Msg.Models[1].ID)
}
