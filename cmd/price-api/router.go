// Package main provides the API router setup.
package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/autoprice/resale-engine/cmd/price-api/handlers"
	"github.com/autoprice/resale-engine/cmd/price-api/middleware"
	"github.com/autoprice/resale-engine/internal/api/grpc"
	"github.com/autoprice/resale-engine/internal/config"
	"github.com/autoprice/resale-engine/internal/observability"
)

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, cfg *config.Config, predictor handlers.Predictor) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RequestContext)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(chimiddleware.Timeout(cfg.Server.WriteTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"resale-engine"}`))
	})

	modelHandler := handlers.NewModelHandler(logger, predictor)
	predictionHandler := handlers.NewPredictionHandler(logger, predictor, cfg.Server.MaxUploadBytes)
	parseHandler := handlers.NewParseHandler(logger)

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimit.Enabled {
			r.Use(middleware.RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst, logger))
		}

		r.Route("/models", func(r chi.Router) {
			r.Get("/", modelHandler.List)
			r.Route("/{model}", func(r chi.Router) {
				r.Get("/weights", modelHandler.Weights)
				r.Post("/predict", predictionHandler.Predict)
				r.Post("/predict/csv", predictionHandler.PredictCSV)
				r.Post("/features", predictionHandler.Features)
			})
		})

		r.Get("/predictions", predictionHandler.History)

		r.Route("/parse", func(r chi.Router) {
			r.Post("/name", parseHandler.Name)
			r.Post("/torque", parseHandler.Torque)
		})
	})

	path, rpc := grpc.NewPricingService(logger, predictor).Handler()
	r.Mount(path, rpc)

	if cfg.Observability.OTEL.Enabled {
		return otelhttp.NewHandler(r, cfg.Observability.OTEL.ServiceName)
	}
	return r
}
