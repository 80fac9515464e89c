// Package cache persists aggregation results as parquet files, one scope per
// dataset, named by a digest of the arguments that produced them.
package cache

import (
	"context"

	"github.com/gigapi/draftpipe/model"
	"github.com/gigapi/draftpipe/source"
	"github.com/gigapi/draftpipe/table"
)

const extension = ".parquet"

type Store interface {
	Exists(ctx context.Context, dataset, key string) (bool, error)
	Read(ctx context.Context, dataset, key string) (*table.Table, error)
	Write(ctx context.Context, dataset, key string, t *table.Table) error
	// Check reports a dataset scope holding anything but cache entries as
	// ErrCacheCorruption. A missing scope is fine.
	Check(ctx context.Context, dataset string) error
	// Clear deletes every entry of the dataset scope and returns how many it
	// deleted. A scope failing Check is left untouched.
	Clear(ctx context.Context, dataset string) (int, error)
}

func checkDataset(dataset string) error {
	if !source.ValidDataset(dataset) {
		return model.Configurationf("invalid dataset identifier %q", dataset)
	}
	return nil
}
