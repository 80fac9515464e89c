package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gigapi/draftpipe/model"
	"github.com/gigapi/draftpipe/table"
	"github.com/google/uuid"
)

// fsStore keeps entries at <root>/<dataset>/<key>.parquet. Writes land in
// <root>/.tmp first and are renamed into place, so readers never see a
// partially written entry.
type fsStore struct {
	root string
	log  *slog.Logger
}

func NewFSStore(root string, log *slog.Logger) Store {
	return &fsStore{root: root, log: log}
}

func (fs *fsStore) path(dataset, key string) string {
	return filepath.Join(fs.root, dataset, key+extension)
}

func (fs *fsStore) Exists(_ context.Context, dataset, key string) (bool, error) {
	if err := checkDataset(dataset); err != nil {
		return false, err
	}
	_, err := os.Stat(fs.path(dataset, key))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (fs *fsStore) Read(ctx context.Context, dataset, key string) (*table.Table, error) {
	if err := checkDataset(dataset); err != nil {
		return nil, err
	}
	file, err := os.Open(fs.path(dataset, key))
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return table.ReadParquet(ctx, file)
}

func (fs *fsStore) Write(_ context.Context, dataset, key string, t *table.Table) error {
	if err := checkDataset(dataset); err != nil {
		return err
	}
	tmpDir := filepath.Join(fs.root, ".tmp")
	for _, dir := range []string{tmpDir, filepath.Join(fs.root, dataset)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	tmpFileName := filepath.Join(tmpDir, uuid.New().String()+extension)
	if err := fs.saveTmpFile(tmpFileName, t); err != nil {
		os.Remove(tmpFileName)
		return err
	}
	if err := os.Rename(tmpFileName, fs.path(dataset, key)); err != nil {
		os.Remove(tmpFileName)
		return fmt.Errorf("failed to move cache entry into place: %w", err)
	}
	fs.log.Debug("cache entry written", "dataset", dataset, "key", key, "rows", t.NumRows())
	return nil
}

func (fs *fsStore) saveTmpFile(filename string, t *table.Table) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	// the parquet writer closes sinks implementing io.Closer, hide it so the
	// file can be synced before it is renamed into place
	if err := t.WriteParquet(struct{ io.Writer }{file}); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("failed to sync cache file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	return nil
}

// entries lists the scope of dataset, nil when it does not exist.
func (fs *fsStore) entries(dataset string) (string, []os.DirEntry, error) {
	if err := checkDataset(dataset); err != nil {
		return "", nil, err
	}
	dir := filepath.Join(fs.root, dataset)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return dir, nil, nil
	}
	if err != nil {
		return dir, nil, err
	}
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), extension) {
			return dir, nil, fmt.Errorf("%w: unexpected entry %s in %s", model.ErrCacheCorruption, e.Name(), dir)
		}
	}
	return dir, entries, nil
}

func (fs *fsStore) Check(_ context.Context, dataset string) error {
	_, _, err := fs.entries(dataset)
	return err
}

func (fs *fsStore) Clear(_ context.Context, dataset string) (int, error) {
	dir, entries, err := fs.entries(dataset)
	if err != nil || entries == nil {
		return 0, err
	}
	for i, e := range entries {
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return i, err
		}
	}
	if err := os.Remove(dir); err != nil {
		return len(entries), err
	}
	fs.log.Debug("cache scope cleared", "dataset", dataset, "entries", len(entries))
	return len(entries), nil
}
