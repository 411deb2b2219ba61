package mapper

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/basekick-labs/pointmap/internal/storage"
	"github.com/basekick-labs/pointmap/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Config configures a Mapper.
type Config struct {
	// Workers bounds the number of records MapBatch maps concurrently.
	// Zero or less uses runtime.NumCPU().
	Workers int
}

// Mapper resolves models by name and maps records onto them.
// It holds no per-record state and is safe for concurrent use.
type Mapper struct {
	registry *storage.Registry
	workers  int
	logger   zerolog.Logger
}

// New creates a mapper over the models in registry.
func New(registry *storage.Registry, cfg *Config, logger zerolog.Logger) *Mapper {
	workers := runtime.NumCPU()
	if cfg != nil && cfg.Workers > 0 {
		workers = cfg.Workers
	}
	return &Mapper{
		registry: registry,
		workers:  workers,
		logger:   logger.With().Str("component", "mapper").Logger(),
	}
}

// Request builds the insert request for data and applies the model's
// configured tag promotions. Callers may still add tags or a timestamp.
func (m *Mapper) Request(modelName string, data storage.StorageData, builder storage.StorageBuilder) (*InsertRequest, error) {
	model, err := m.registry.Get(modelName)
	if err != nil {
		return nil, err
	}

	req, err := NewInsertRequest(model, data, builder)
	if err != nil {
		return nil, err
	}

	for _, p := range model.Promotions() {
		if v, ok := req.Field(p.Field); !ok || v == nil {
			m.logger.Debug().
				Str("model", modelName).
				Str("field", p.Field).
				Bool("present", ok).
				Msg("Promoted field has no value, tag skipped")
			continue
		}
		req.AddFieldAsTag(p.Field, p.Tag)
	}

	return req, nil
}

// Map builds the point for data without an explicit timestamp.
func (m *Mapper) Map(modelName string, data storage.StorageData, builder storage.StorageBuilder) (models.Point, error) {
	req, err := m.Request(modelName, data, builder)
	if err != nil {
		return models.Point{}, err
	}
	return req.Point()
}

// Item is one record of a batch with its optional timestamp
type Item struct {
	Data     storage.StorageData
	Time     int64
	TimeUnit time.Duration // 0 leaves the point without an explicit timestamp
}

// MapBatch maps items concurrently. The returned points are in input order.
// The first failure cancels the remaining work and is returned; no partial
// result is produced.
func (m *Mapper) MapBatch(ctx context.Context, modelName string, items []Item, builder storage.StorageBuilder) ([]models.Point, error) {
	batchID := uuid.New().String()[:12]
	points := make([]models.Point, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	for i := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			item := items[i]
			req, err := m.Request(modelName, item.Data, builder)
			if err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			if item.TimeUnit != 0 {
				req.Time(item.Time, item.TimeUnit)
			}
			p, err := req.Point()
			if err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			points[i] = p
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		m.logger.Error().
			Err(err).
			Str("batch_id", batchID).
			Str("model", modelName).
			Int("items", len(items)).
			Msg("Batch mapping failed")
		return nil, err
	}

	m.logger.Debug().
		Str("batch_id", batchID).
		Str("model", modelName).
		Int("points", len(points)).
		Msg("Batch mapped")

	return points, nil
}
