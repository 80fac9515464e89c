package cache

import (
	"context"
	"log/slog"

	"github.com/gigapi/draftpipe/metrics"
	"github.com/gigapi/draftpipe/model"
	"github.com/gigapi/draftpipe/table"
)

type Options struct {
	Read  bool
	Write bool
}

type Cache struct {
	store Store
	log   *slog.Logger
}

func New(store Store, log *slog.Logger) *Cache {
	return &Cache{store: store, log: log}
}

// FetchOrCache returns the cached result of compute(args) when opts.Read is
// set and an entry exists. Otherwise it computes the result and stores it
// when opts.Write is set. The key is taken before compute runs.
func FetchOrCache[A any](
	ctx context.Context,
	c *Cache,
	compute func(context.Context, A) (*table.Table, error),
	dataset string,
	args A,
	opts Options,
) (*table.Table, error) {
	if err := checkDataset(dataset); err != nil {
		return nil, err
	}
	key, err := Key(dataset, args)
	if err != nil {
		return nil, model.WrapStage(model.StageCache, "", err)
	}

	if opts.Read {
		ok, err := c.store.Exists(ctx, dataset, key)
		if err != nil {
			return nil, model.WrapStage(model.StageCache, "", err)
		}
		if ok {
			res, err := c.store.Read(ctx, dataset, key)
			if err != nil {
				return nil, model.WrapStage(model.StageCache, "", err)
			}
			metrics.CacheRequestsTotal.WithLabelValues("hit").Inc()
			c.log.Debug("cache hit", "dataset", dataset, "key", key)
			return res, nil
		}
		metrics.CacheRequestsTotal.WithLabelValues("miss").Inc()
		c.log.Debug("cache miss", "dataset", dataset, "key", key)
	}

	res, err := compute(ctx, args)
	if err != nil {
		return nil, err
	}

	if opts.Write {
		if err := c.store.Write(ctx, dataset, key, res); err != nil {
			metrics.CacheWritesTotal.WithLabelValues("error").Inc()
			return nil, model.WrapStage(model.StageCache, "", err)
		}
		metrics.CacheWritesTotal.WithLabelValues("ok").Inc()
	}
	return res, nil
}

// Clear deletes every cache entry of the dataset.
func (c *Cache) Clear(ctx context.Context, dataset string) (int, error) {
	n, err := c.store.Clear(ctx, dataset)
	metrics.CacheEntriesClearedTotal.Add(float64(n))
	if err != nil {
		return n, model.WrapStage(model.StageCache, "", err)
	}
	c.log.Info("cache cleared", "dataset", dataset, "entries", n)
	return n, nil
}
