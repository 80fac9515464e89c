package cache

import (
	"context"
	"log/slog"

	"github.com/gigapi/draftpipe/table"
)

// tieredStore reads the local store first and falls back to the remote one,
// copying remote hits back into the local store. Writes and clears go to
// both.
type tieredStore struct {
	local  Store
	remote Store
	log    *slog.Logger
}

func NewTieredStore(local, remote Store, log *slog.Logger) Store {
	return &tieredStore{local: local, remote: remote, log: log}
}

func (ts *tieredStore) Exists(ctx context.Context, dataset, key string) (bool, error) {
	ok, err := ts.local.Exists(ctx, dataset, key)
	if err != nil || ok {
		return ok, err
	}
	return ts.remote.Exists(ctx, dataset, key)
}

func (ts *tieredStore) Read(ctx context.Context, dataset, key string) (*table.Table, error) {
	ok, err := ts.local.Exists(ctx, dataset, key)
	if err != nil {
		return nil, err
	}
	if ok {
		return ts.local.Read(ctx, dataset, key)
	}
	t, err := ts.remote.Read(ctx, dataset, key)
	if err != nil {
		return nil, err
	}
	if err := ts.local.Write(ctx, dataset, key, t); err != nil {
		ts.log.Warn("failed to backfill local cache", "dataset", dataset, "key", key, "error", err)
	}
	return t, nil
}

func (ts *tieredStore) Write(ctx context.Context, dataset, key string, t *table.Table) error {
	if err := ts.local.Write(ctx, dataset, key, t); err != nil {
		return err
	}
	return ts.remote.Write(ctx, dataset, key, t)
}

func (ts *tieredStore) Check(ctx context.Context, dataset string) error {
	if err := ts.local.Check(ctx, dataset); err != nil {
		return err
	}
	return ts.remote.Check(ctx, dataset)
}

// Clear checks both tiers before deleting from either and returns the number
// of entries deleted across both.
func (ts *tieredStore) Clear(ctx context.Context, dataset string) (int, error) {
	if err := ts.Check(ctx, dataset); err != nil {
		return 0, err
	}
	n, err := ts.local.Clear(ctx, dataset)
	if err != nil {
		return n, err
	}
	m, err := ts.remote.Clear(ctx, dataset)
	return n + m, err
}
