// Package source locates the raw files of a dataset and describes them.
package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/gigapi/draftpipe/expression"
	"github.com/gigapi/draftpipe/frame"
	"github.com/gigapi/draftpipe/model"
)

var datasetRe = regexp.MustCompile(`^[a-zA-Z0-9_\-]+$`)

// ValidDataset reports whether id can be used as a dataset identifier.
func ValidDataset(id string) bool {
	return datasetRe.MatchString(id)
}

// Source hands out lazily scannable raw views.
type Source interface {
	Scan(ctx context.Context, dataset string, view model.View) (*frame.Scan, error)
	Schemas(ctx context.Context, dataset string) (map[model.View][]string, error)
	// Forget drops whatever is memoized about the raw files of dataset.
	Forget(dataset string)
}

type FileSource struct {
	db        *sql.DB
	root      string
	eventType string
	log       *slog.Logger
	schemas   sync.Map
}

// NewFileSource serves files from root/<dataset>/ named
// <dataset>_<eventType>_<view> for aggregated views and <dataset>_card for
// the card view.
func NewFileSource(db *sql.DB, root, eventType string, log *slog.Logger) *FileSource {
	return &FileSource{db: db, root: root, eventType: eventType, log: log}
}

var extensions = []string{".parquet", ".csv", ".csv.gz"}

// Path returns the first existing file of the view.
func (s *FileSource) Path(dataset string, view model.View) (string, error) {
	if !ValidDataset(dataset) {
		return "", model.Configurationf("invalid dataset identifier %q", dataset)
	}
	base := dataset + "_card"
	if view != model.ViewCard {
		base = fmt.Sprintf("%s_%s_%s", dataset, s.eventType, view)
	}
	for _, ext := range extensions {
		p := filepath.Join(s.root, dataset, base+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: no %s file for dataset %s under %s", model.ErrMissingSource, view, dataset, filepath.Join(s.root, dataset))
}

func relation(path string) string {
	if strings.HasSuffix(path, ".parquet") {
		return fmt.Sprintf("read_parquet(%s)", expression.QuoteLiteral(path))
	}
	return fmt.Sprintf("read_csv(%s, header = true)", expression.QuoteLiteral(path))
}

func (s *FileSource) Scan(ctx context.Context, dataset string, view model.View) (*frame.Scan, error) {
	path, err := s.Path(dataset, view)
	if err != nil {
		return nil, err
	}
	fields, err := s.describe(ctx, path)
	if err != nil {
		return nil, err
	}
	return &frame.Scan{View: view, From: relation(path), Fields: fields}, nil
}

func (s *FileSource) describe(ctx context.Context, path string) ([]string, error) {
	if fields, ok := s.schemas.Load(path); ok {
		return fields.([]string), nil
	}
	rows, err := s.db.QueryContext(ctx, "DESCRIBE SELECT * FROM "+relation(path))
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", path, err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var fields []string
	values := make([]any, len(cols))
	for i := range values {
		values[i] = new(any)
	}
	for rows.Next() {
		if err := rows.Scan(values...); err != nil {
			return nil, err
		}
		name := *(values[0].(*any))
		fields = append(fields, fmt.Sprint(name))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	s.log.Debug("described raw file", "path", path, "fields", len(fields))
	s.schemas.Store(path, fields)
	return fields, nil
}

// Schemas describes every view present for the dataset. Missing views are
// left out; a dataset with no view at all is a MissingSource error.
func (s *FileSource) Schemas(ctx context.Context, dataset string) (map[model.View][]string, error) {
	res := make(map[model.View][]string)
	for _, v := range []model.View{model.ViewDraft, model.ViewGame, model.ViewCard} {
		scan, err := s.Scan(ctx, dataset, v)
		if errors.Is(err, model.ErrMissingSource) {
			continue
		}
		if err != nil {
			return nil, err
		}
		res[v] = scan.Fields
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("%w: dataset %s has no raw files", model.ErrMissingSource, dataset)
	}
	return res, nil
}

func (s *FileSource) Forget(dataset string) {
	prefix := filepath.Join(s.root, dataset) + string(filepath.Separator)
	s.schemas.Range(func(k, _ any) bool {
		if strings.HasPrefix(k.(string), prefix) {
			s.schemas.Delete(k)
		}
		return true
	})
}
