package service

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoprice/resale-engine/internal/artifact"
	"github.com/autoprice/resale-engine/internal/cache"
	"github.com/autoprice/resale-engine/internal/events"
	"github.com/autoprice/resale-engine/internal/listing"
	"github.com/autoprice/resale-engine/internal/pipeline"
	"github.com/autoprice/resale-engine/internal/storage"
)

type memoryHistory struct {
	mu    sync.Mutex
	preds []*storage.Prediction
}

func (h *memoryHistory) CreateMany(_ context.Context, preds []*storage.Prediction) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.preds = append(h.preds, preds...)
	return nil
}

func (h *memoryHistory) List(_ context.Context, filter storage.ListFilter) ([]*storage.Prediction, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*storage.Prediction
	for _, p := range h.preds {
		if filter.Model == "" || p.Model == filter.Model {
			out = append(out, p)
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.PredictionEvent
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.PredictionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func loadBundle(t *testing.T) *artifact.Bundle {
	t.Helper()
	b, err := artifact.Load("../../artifacts/manifest.yaml")
	require.NoError(t, err)
	return b
}

func defaultListing() listing.Record {
	return listing.Record{
		Name:         listing.Text("Hyundai i20 2015-2017 Sportz 1.2"),
		Year:         listing.Number(2007),
		KmDriven:     listing.Number(60000),
		Age:          listing.Number(7),
		Fuel:         listing.Text("Diesel"),
		SellerType:   listing.Text("Individual"),
		Transmission: listing.Text("Manual"),
		Owner:        listing.Text("First Owner"),
		Mileage:      listing.Text("23.4 kmpl"),
		Engine:       listing.Text("1248 CC"),
		MaxPower:     listing.Text("74 bhp"),
		Torque:       listing.Text("190Nm@ 2000rpm"),
		Seats:        listing.Number(5),
	}
}

func fleet() []listing.Record {
	names := []string{
		"Hyundai i20 2015-2017 Sportz 1.2",
		"Maruti Swift Dzire VDI",
		"Toyota Innova 2.5 G (Diesel) 7 Seater BS IV",
		"Ford Ecosport 1.5 Diesel Titanium",
		"Mahindra Scorpio S11 4X4",
		"Tata Nano Cx",
	}
	out := make([]listing.Record, len(names))
	for i, n := range names {
		r := defaultListing()
		r.Name = listing.Text(n)
		r.KmDriven = listing.Number(float64(20000 * (i + 1)))
		out[i] = r
	}
	return out
}

func newPredictor(t *testing.T, opts Options) (*Predictor, *cache.MemoryClient, *memoryHistory, *recordingPublisher) {
	t.Helper()
	c := cache.NewMemoryClient(100)
	t.Cleanup(func() { _ = c.Close() })
	h := &memoryHistory{}
	pub := &recordingPublisher{}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = time.Minute
	}
	return NewPredictor(loadBundle(t), c, h, pub, nil, opts), c, h, pub
}

func TestPredictor_PredictBothModels(t *testing.T) {
	p, _, _, _ := newPredictor(t, Options{})

	for _, model := range []string{artifact.Model1, artifact.Model2} {
		res, err := p.Predict(context.Background(), model, []listing.Record{defaultListing()})
		require.NoError(t, err, model)
		require.Len(t, res.Prices, 1)
		assert.False(t, math.IsNaN(res.Prices[0]), model)
		assert.Greater(t, res.Prices[0], 0.0, model)
		assert.Equal(t, "2024.06-demo", res.ArtifactVersion)
	}
}

func TestPredictor_ChunkingDoesNotChangePrices(t *testing.T) {
	records := fleet()
	serial, _, _, _ := newPredictor(t, Options{Workers: 1, ChunkSize: len(records)})
	parallel, _, _, _ := newPredictor(t, Options{Workers: 4, ChunkSize: 1})

	for _, model := range []string{artifact.Model1, artifact.Model2} {
		a, err := serial.Predict(context.Background(), model, records)
		require.NoError(t, err)
		b, err := parallel.Predict(context.Background(), model, records)
		require.NoError(t, err)
		assert.Equal(t, a.Prices, b.Prices, model)
	}
}

func TestPredictor_CacheHits(t *testing.T) {
	p, c, h, pub := newPredictor(t, Options{ChunkSize: 2})
	ctx := context.Background()
	records := fleet()

	first, err := p.Predict(ctx, artifact.Model2, records)
	require.NoError(t, err)
	assert.Zero(t, first.CacheHits)
	assert.Equal(t, len(records), c.Len())

	// columns the model does not read do not change the key
	again := fleet()
	again[0].Age = listing.Number(99)
	second, err := p.Predict(ctx, artifact.Model2, again)
	require.NoError(t, err)
	assert.Equal(t, len(records), second.CacheHits)
	assert.Equal(t, first.Prices, second.Prices)

	require.Len(t, h.preds, 2*len(records))
	assert.False(t, h.preds[0].Cached)
	assert.True(t, h.preds[len(records)].Cached)
	assert.Equal(t, first.ID, h.preds[0].BatchID.UUID)

	require.Len(t, pub.events, 2)
	assert.Equal(t, len(records), pub.events[1].CacheHits)
	assert.Equal(t, second.Prices, pub.events[1].Prices)
}

func TestPredictor_SinglePredictionKeepsID(t *testing.T) {
	p, _, h, _ := newPredictor(t, Options{})
	res, err := p.Predict(context.Background(), artifact.Model1, []listing.Record{defaultListing()})
	require.NoError(t, err)

	require.Len(t, h.preds, 1)
	assert.Equal(t, res.ID, h.preds[0].ID)
	assert.False(t, h.preds[0].BatchID.Valid)
	assert.Equal(t, "Hyundai i20 2015-2017 Sportz 1.2", h.preds[0].Name)

	list, err := p.History(context.Background(), storage.ListFilter{Model: artifact.Model1})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPredictor_ErrorRowIsInputRow(t *testing.T) {
	p, _, _, _ := newPredictor(t, Options{Workers: 3, ChunkSize: 1})
	records := fleet()
	records[4].Seats = listing.Text("five")

	_, err := p.Predict(context.Background(), artifact.Model1, records)
	var pe *pipeline.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, pipeline.KindInvalidInput, pe.Kind)
	assert.Equal(t, 4, pe.Row)
}

func TestPredictor_ErrorRowSkipsCachedRows(t *testing.T) {
	p, _, _, _ := newPredictor(t, Options{ChunkSize: 1})
	ctx := context.Background()
	records := fleet()

	_, err := p.Predict(ctx, artifact.Model1, records[:2])
	require.NoError(t, err)

	records[3].Seats = listing.Null()
	_, err = p.Predict(ctx, artifact.Model1, records)
	var pe *pipeline.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 3, pe.Row)
}

func TestPredictor_RejectsBadRequests(t *testing.T) {
	p, _, _, _ := newPredictor(t, Options{MaxRows: 3})
	ctx := context.Background()

	_, err := p.Predict(ctx, "model3", []listing.Record{defaultListing()})
	assert.Equal(t, pipeline.KindInvalidInput, pipeline.KindOf(err))

	_, err = p.Predict(ctx, artifact.Model1, nil)
	assert.Equal(t, pipeline.KindInvalidInput, pipeline.KindOf(err))

	_, err = p.Predict(ctx, artifact.Model1, fleet())
	assert.ErrorContains(t, err, "exceed the limit of 3")

	_, err = p.Predict(ctx, artifact.Model2, []listing.Record{{Name: listing.Text("Tata Nano")}})
	var pe *pipeline.Error
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Columns, listing.ColTorque)
	assert.NotContains(t, pe.Columns, listing.ColName)
}

func TestPredictor_WeightsAndFeatures(t *testing.T) {
	p, _, _, _ := newPredictor(t, Options{})

	w, err := p.Weights(artifact.Model2, 3)
	require.NoError(t, err)
	require.Len(t, w, 3)
	assert.Equal(t, "year^2", w[0].Feature)

	_, err = p.Weights("nope", 3)
	assert.Equal(t, pipeline.KindInvalidInput, pipeline.KindOf(err))

	f, err := p.Features(artifact.Model1, []listing.Record{defaultListing()})
	require.NoError(t, err)
	assert.Equal(t, p.Bundle().Model1.Features, f.Names())
	assert.Len(t, p.Models(), 2)
}

func TestPredictor_WithoutCacheOrHistory(t *testing.T) {
	p := NewPredictor(loadBundle(t), nil, nil, nil, nil, Options{})
	res, err := p.Predict(context.Background(), artifact.Model1, fleet())
	require.NoError(t, err)
	assert.Len(t, res.Prices, len(fleet()))

	list, err := p.History(context.Background(), storage.ListFilter{})
	assert.NoError(t, err)
	assert.Empty(t, list)
}
