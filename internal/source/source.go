// Package source turns external job boards into normalized listings.
//
// A Collector only has to produce listings. Failures are absorbed by Safe, so
// one broken board never aborts a run.
package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/jobscout/internal/listing"
	"github.com/spigell/jobscout/internal/metrics"
)

const collectLimit = 4

// Collector fetches listings from one source. Every listing it returns
// must carry the collector's name as its Source.
type Collector interface {
	Name() string
	Collect(ctx context.Context) ([]*listing.Listing, error)
}

// Safe runs the collector and converts any failure, including a panic,
// into an empty result and a warning.
func Safe(ctx context.Context, c Collector, logger *zap.Logger) (items []*listing.Listing) {
	if logger == nil {
		logger = zap.NewNop()
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Warn("source failed", zap.String("source", c.Name()), zap.Any("panic", r))
			metrics.IncSourceError(c.Name())
			items = nil
		}
	}()

	items, err := c.Collect(ctx)
	if err != nil {
		logger.Warn("source failed", zap.String("source", c.Name()), zap.Error(err))
		metrics.IncSourceError(c.Name())
		return nil
	}

	for _, item := range items {
		if item.Source == "" {
			item.Source = c.Name()
		}
	}

	logger.Info("source collected", zap.String("source", c.Name()), zap.Int("count", len(items)))
	return items
}

// CollectAll runs the collectors concurrently and concatenates their output
// in collector order.
func CollectAll(ctx context.Context, collectors []Collector, logger *zap.Logger) *listing.Listings {
	results := make([][]*listing.Listing, len(collectors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(collectLimit)

	for i, c := range collectors {
		g.Go(func() error {
			results[i] = Safe(gctx, c, logger)
			return nil
		})
	}
	// Safe never returns an error
	_ = g.Wait()

	batch := listing.New()
	for _, items := range results {
		batch.Append(items...)
	}
	return batch
}

// Static serves a fixed set of listings. It backs tests and dry runs.
type Static struct {
	SourceName string
	Items      []*listing.Listing
	Err        error
}

func (s *Static) Name() string { return s.SourceName }

func (s *Static) Collect(context.Context) ([]*listing.Listing, error) {
	if s.Err != nil {
		return nil, fmt.Errorf("%s: %w", s.SourceName, s.Err)
	}
	return s.Items, nil
}
