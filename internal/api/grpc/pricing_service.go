// Package grpc provides the Connect pricing service. Messages are plain Go
// structs carried by a JSON codec.
package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"connectrpc.com/connect"

	"github.com/autoprice/resale-engine/internal/artifact"
	"github.com/autoprice/resale-engine/internal/listing"
	"github.com/autoprice/resale-engine/internal/observability"
	"github.com/autoprice/resale-engine/internal/pipeline"
	"github.com/autoprice/resale-engine/internal/service"
)

// Service and procedure names.
const (
	ServiceName         = "pricing.v1.PricingService"
	PredictProcedure    = "/" + ServiceName + "/Predict"
	ListModelsProcedure = "/" + ServiceName + "/ListModels"
)

// Predictor is the subset of the prediction service exposed over RPC.
type Predictor interface {
	Predict(ctx context.Context, model string, records []listing.Record) (*service.Result, error)
	Models() []artifact.Info
}

// PricingService implements the Connect pricing service.
type PricingService struct {
	logger    *observability.Logger
	predictor Predictor
}

// NewPricingService creates a new pricing service.
func NewPricingService(logger *observability.Logger, predictor Predictor) *PricingService {
	return &PricingService{
		logger:    logger,
		predictor: predictor,
	}
}

// PredictRequest represents the RPC request message.
type PredictRequest struct {
	Model   string           `json:"model"`
	Records []listing.Record `json:"records"`
}

// PredictResponse represents the RPC response message.
type PredictResponse struct {
	PredictionID    string    `json:"prediction_id"`
	Model           string    `json:"model"`
	ArtifactVersion string    `json:"artifact_version"`
	Prices          []float64 `json:"prices"`
	CacheHits       int32     `json:"cache_hits"`
	LatencyMs       int64     `json:"latency_ms"`
}

// ListModelsRequest represents the RPC request message.
type ListModelsRequest struct{}

// ListModelsResponse represents the RPC response message.
type ListModelsResponse struct {
	Models []artifact.Info `json:"models"`
}

// Predict handles Connect prediction calls.
func (s *PricingService) Predict(ctx context.Context, req *connect.Request[PredictRequest]) (*connect.Response[PredictResponse], error) {
	msg := req.Msg
	if msg.Model == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("model is required"))
	}

	res, err := s.predictor.Predict(ctx, msg.Model, msg.Records)
	if err != nil {
		return nil, s.toConnectError(err)
	}

	return connect.NewResponse(&PredictResponse{
		PredictionID:    res.ID.String(),
		Model:           res.Model,
		ArtifactVersion: res.ArtifactVersion,
		Prices:          res.Prices,
		CacheHits:       int32(res.CacheHits),
		LatencyMs:       res.Duration.Milliseconds(),
	}), nil
}

// ListModels handles Connect model catalogue calls.
func (s *PricingService) ListModels(_ context.Context, _ *connect.Request[ListModelsRequest]) (*connect.Response[ListModelsResponse], error) {
	return connect.NewResponse(&ListModelsResponse{Models: s.predictor.Models()}), nil
}

// Handler returns the mount path and handler for the service.
func (s *PricingService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(PredictProcedure, connect.NewUnaryHandler(PredictProcedure, s.Predict, opts...))
	mux.Handle(ListModelsProcedure, connect.NewUnaryHandler(ListModelsProcedure, s.ListModels, opts...))
	return "/" + ServiceName + "/", mux
}

func (s *PricingService) toConnectError(err error) error {
	var pe *pipeline.Error
	if !errors.As(err, &pe) {
		s.logger.Error().Err(err).Msg("Predict failed")
		return connect.NewError(connect.CodeInternal, err)
	}

	if pe.Kind.Client() {
		return connect.NewError(connect.CodeInvalidArgument, err)
	}
	s.logger.Error().Err(err).Str("kind", string(pe.Kind)).Msg("Predict failed")
	return connect.NewError(connect.CodeInternal, err)
}

// JSONCodec marshals plain structs. Connect's built-in JSON codec only
// accepts protobuf messages.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
