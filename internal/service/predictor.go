// Package service serves price predictions: it prepares listings through the
// preprocessing pipeline, runs the model, and handles caching, history and
// event publishing around that core.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/autoprice/resale-engine/internal/artifact"
	"github.com/autoprice/resale-engine/internal/cache"
	"github.com/autoprice/resale-engine/internal/events"
	"github.com/autoprice/resale-engine/internal/frame"
	"github.com/autoprice/resale-engine/internal/listing"
	"github.com/autoprice/resale-engine/internal/observability"
	"github.com/autoprice/resale-engine/internal/pipeline"
	"github.com/autoprice/resale-engine/internal/regression"
	"github.com/autoprice/resale-engine/internal/storage"
)

// History persists and lists served predictions.
type History interface {
	CreateMany(ctx context.Context, preds []*storage.Prediction) error
	List(ctx context.Context, filter storage.ListFilter) ([]*storage.Prediction, error)
}

// Options configures a Predictor.
type Options struct {
	CacheTTL  time.Duration
	Workers   int
	ChunkSize int
	Timeout   time.Duration
	MaxRows   int
}

// Result is the outcome of one prediction request.
type Result struct {
	ID              uuid.UUID     `json:"id"`
	Model           string        `json:"model"`
	ArtifactVersion string        `json:"artifact_version"`
	Prices          []float64     `json:"prices"`
	CacheHits       int           `json:"cache_hits"`
	Duration        time.Duration `json:"-"`
}

// Predictor serves both models. It is safe for concurrent use.
type Predictor struct {
	bundle   *artifact.Bundle
	preparer *pipeline.Preparer
	batch    *BatchProcessor
	cache    cache.Client
	history  History
	events   events.Publisher
	logger   *observability.Logger
	opts     Options
}

// NewPredictor wires a predictor. cache, history and publisher may be nil.
func NewPredictor(
	bundle *artifact.Bundle,
	c cache.Client,
	history History,
	publisher events.Publisher,
	logger *observability.Logger,
	opts Options,
) *Predictor {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Predictor{
		bundle:   bundle,
		preparer: pipeline.NewPreparer(bundle),
		batch:    NewBatchProcessor(opts.Workers, opts.ChunkSize, opts.Timeout),
		cache:    c,
		history:  history,
		events:   publisher,
		logger:   logger.WithOperation("predict"),
		opts:     opts,
	}
}

// Bundle returns the loaded artifacts.
func (p *Predictor) Bundle() *artifact.Bundle {
	return p.bundle
}

// Models lists the served models.
func (p *Predictor) Models() []artifact.Info {
	return p.bundle.Models()
}

// Features prepares records without predicting.
func (p *Predictor) Features(model string, records []listing.Record) (*frame.Frame, error) {
	return p.preparer.Prepare(model, records)
}

// Weights returns the top n coefficients of a model.
func (p *Predictor) Weights(model string, n int) ([]regression.Weight, error) {
	reg, ok := p.bundle.Regressor(model)
	if !ok {
		return nil, pipeline.InvalidInput(fmt.Sprintf("unknown model %q", model), nil)
	}
	return reg.TopWeights(n), nil
}

// History lists recently served predictions.
func (p *Predictor) History(ctx context.Context, filter storage.ListFilter) ([]*storage.Prediction, error) {
	if p.history == nil {
		return nil, nil
	}
	return p.history.List(ctx, filter)
}

// Predict prices every record with the given model. Prices are returned in
// input order.
func (p *Predictor) Predict(ctx context.Context, model string, records []listing.Record) (*Result, error) {
	return p.predict(ctx, model, records, nil)
}

func (p *Predictor) predict(ctx context.Context, model string, records []listing.Record, progress func(int)) (*Result, error) {
	start := time.Now()
	log := p.logger.WithContext(ctx).WithModel(model)

	reg, ok := p.bundle.Regressor(model)
	if !ok {
		return nil, pipeline.InvalidInput(fmt.Sprintf("unknown model %q", model), nil)
	}
	if p.opts.MaxRows > 0 && len(records) > p.opts.MaxRows {
		return nil, pipeline.InvalidInput(
			fmt.Sprintf("%d rows exceed the limit of %d", len(records), p.opts.MaxRows), nil)
	}
	if len(records) == 0 {
		return nil, pipeline.InvalidInput("no records", nil)
	}
	required, _ := pipeline.RequiredColumns(model)
	if missing := listing.MissingColumns(records, required); len(missing) > 0 {
		e := pipeline.InvalidInput("missing required columns", nil)
		e.Columns = missing
		return nil, e
	}

	res := &Result{
		ID:              uuid.New(),
		Model:           model,
		ArtifactVersion: p.bundle.Version,
		Prices:          make([]float64, len(records)),
	}

	keys := make([]string, len(records))
	var misses []int
	for i, r := range records {
		keys[i] = p.cacheKey(model, r, required)
		if price, ok := p.cached(ctx, keys[i]); ok {
			res.Prices[i] = price
			res.CacheHits++
			continue
		}
		misses = append(misses, i)
	}
	if progress != nil && res.CacheHits > 0 {
		progress(res.CacheHits)
	}

	if len(misses) > 0 {
		pending := make([]listing.Record, len(misses))
		for j, i := range misses {
			pending[j] = records[i]
		}

		err := p.batch.Run(ctx, len(pending), func(_ context.Context, c Chunk) error {
			prices, err := p.score(model, reg, pending[c.From:c.To])
			if err != nil {
				return shiftRow(err, func(row int) int { return misses[c.From+row] })
			}
			for k, price := range prices {
				res.Prices[misses[c.From+k]] = price
			}
			return nil
		}, progress)
		if err != nil {
			log.Warn().Err(err).Int("rows", len(records)).Msg("prediction failed")
			return nil, err
		}

		for _, i := range misses {
			p.store(ctx, keys[i], res.Prices[i])
		}
	}

	res.Duration = time.Since(start)
	p.record(ctx, res, records, misses)

	log.Info().
		Str("prediction_id", res.ID.String()).
		Int("rows", len(records)).
		Int("cache_hits", res.CacheHits).
		Dur("duration", res.Duration).
		Msg("predictions served")

	return res, nil
}

func (p *Predictor) score(model string, reg regression.Model, records []listing.Record) ([]float64, error) {
	features, err := p.preparer.Prepare(model, records)
	if err != nil {
		return nil, err
	}
	prices, err := reg.Predict(features)
	if err != nil {
		return nil, pipeline.ArtifactError("regressor does not fit the prepared features", err)
	}
	return prices, nil
}

// shiftRow maps a chunk-local row of a pipeline error back to the input row.
func shiftRow(err error, toInput func(int) int) error {
	var pe *pipeline.Error
	if !errors.As(err, &pe) || pe.Row < 0 {
		return err
	}
	shifted := *pe
	shifted.Row = toInput(pe.Row)
	return &shifted
}

// cacheKey hashes the columns the model reads, so unrelated columns do not
// fragment the cache.
func (p *Predictor) cacheKey(model string, r listing.Record, columns []string) string {
	if p.cache == nil {
		return ""
	}
	cells := make(map[string]listing.Cell, len(columns))
	for _, col := range columns {
		cells[col] = r.Get(col)
	}
	data, err := json.Marshal(cells)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return cache.PredictionKey(p.bundle.Version, model, hex.EncodeToString(sum[:]))
}

func (p *Predictor) cached(ctx context.Context, key string) (float64, bool) {
	if key == "" {
		return 0, false
	}
	data, err := p.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			p.logger.Warn().Err(err).Msg("cache read failed")
		}
		return 0, false
	}
	price, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

func (p *Predictor) store(ctx context.Context, key string, price float64) {
	if key == "" {
		return
	}
	value := []byte(strconv.FormatFloat(price, 'g', -1, 64))
	if err := p.cache.Set(ctx, key, value, p.opts.CacheTTL); err != nil {
		p.logger.Warn().Err(err).Msg("cache write failed")
	}
}

// record persists history and publishes the event. Failures are logged and
// never fail the request.
func (p *Predictor) record(ctx context.Context, res *Result, records []listing.Record, misses []int) {
	if p.history != nil {
		fresh := make(map[int]bool, len(misses))
		for _, i := range misses {
			fresh[i] = true
		}
		var batchID uuid.NullUUID
		if len(records) > 1 {
			batchID = uuid.NullUUID{UUID: res.ID, Valid: true}
		}

		preds := make([]*storage.Prediction, len(records))
		for i, r := range records {
			preds[i] = &storage.Prediction{
				BatchID:         batchID,
				Model:           res.Model,
				ArtifactVersion: res.ArtifactVersion,
				Name:            r.Name.String(),
				Price:           res.Prices[i],
				Cached:          !fresh[i],
			}
		}
		if len(records) == 1 {
			preds[0].ID = res.ID
		}
		if err := p.history.CreateMany(ctx, preds); err != nil {
			p.logger.WithContext(ctx).Error().Err(err).Msg("failed to persist predictions")
		}
	}

	evt := events.PredictionEvent{
		ID:              res.ID,
		RequestID:       observability.RequestIDFromContext(ctx),
		Model:           res.Model,
		ArtifactVersion: res.ArtifactVersion,
		Rows:            len(records),
		CacheHits:       res.CacheHits,
		Prices:          res.Prices,
		Duration:        float64(res.Duration.Microseconds()) / 1000,
		CreatedAt:       time.Now().UTC(),
	}
	if err := p.events.Publish(ctx, evt); err != nil {
		p.logger.WithContext(ctx).Warn().Err(err).Msg("failed to publish prediction event")
	}
}
