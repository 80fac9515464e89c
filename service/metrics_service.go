package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/gigapi/draftpipe/cache"
	"github.com/gigapi/draftpipe/columns"
	"github.com/gigapi/draftpipe/engine"
	"github.com/gigapi/draftpipe/frame"
	"github.com/gigapi/draftpipe/manifest"
	"github.com/gigapi/draftpipe/model"
	"github.com/gigapi/draftpipe/source"
	"github.com/gigapi/draftpipe/table"
)

type IMetricsService interface {
	Metrics(ctx context.Context, dataset string, req model.MetricsRequest) (*table.Table, error)
	ClearCache(ctx context.Context, dataset string) (int, error)
}

type MetricsService struct {
	db         *sql.DB
	source     source.Source
	engine     *engine.Engine
	cache      *cache.Cache
	extensions []model.ColumnDefinition
	log        *slog.Logger
}

// NewMetricsService serves metrics of the datasets of src. extensions are
// applied on top of the default columns for every request.
func NewMetricsService(db *sql.DB, src source.Source, eng *engine.Engine, c *cache.Cache,
	extensions []model.ColumnDefinition, log *slog.Logger) *MetricsService {
	return &MetricsService{
		db:         db,
		source:     src,
		engine:     eng,
		cache:      c,
		extensions: extensions,
		log:        log,
	}
}

// Metrics returns one row per groupby combination with the groupbys followed
// by the requested columns in request order.
func (s *MetricsService) Metrics(ctx context.Context, dataset string, req model.MetricsRequest) (*table.Table, error) {
	start := time.Now()
	m, err := s.plan(ctx, dataset, req)
	if err != nil {
		return nil, err
	}

	res, err := cache.FetchOrCache(ctx, s.cache, s.engine.Aggregate, dataset,
		engine.Args{DatasetID: dataset, Manifest: m},
		cache.Options{Read: req.ShouldReadCache(), Write: req.ShouldWriteCache()})
	if err != nil {
		return nil, err
	}

	if res, err = s.joinCardAttrs(ctx, dataset, m, res); err != nil {
		return nil, err
	}
	if m.Regrouped() {
		if res, err = res.GroupSum(m.GroupBys, m.SumColumns()); err != nil {
			return nil, model.WrapStage(model.StageAggregate, "", err)
		}
	}
	if res, err = s.evaluateAggregates(m, res); err != nil {
		return nil, err
	}
	res, err = res.Select(append(append([]string(nil), m.GroupBys...), m.Requested...)...)
	if err != nil {
		return nil, err
	}
	s.log.Info("metrics computed", "dataset", dataset, "columns", len(m.Requested),
		"rows", res.NumRows(), "elapsed", time.Since(start))
	return res, nil
}

func (s *MetricsService) plan(ctx context.Context, dataset string, req model.MetricsRequest) (*manifest.Manifest, error) {
	schemas, err := s.source.Schemas(ctx, dataset)
	if err != nil {
		return nil, model.WrapStage(model.StageSource, "", err)
	}
	reg, err := columns.Default().With(s.extensions)
	if err != nil {
		return nil, fmt.Errorf("configured extensions: %w", err)
	}
	if reg, err = reg.With(req.Extensions); err != nil {
		return nil, err
	}
	if reg, err = reg.Bind(schemas); err != nil {
		return nil, err
	}
	return manifest.Create(reg, req.Columns, req.GroupBys, req.Filter)
}

// evaluateAggregates adds the requested AGG columns, computed row by row from
// the summed columns.
func (s *MetricsService) evaluateAggregates(m *manifest.Manifest, res *table.Table) (*table.Table, error) {
	if len(m.Aggregates) == 0 {
		return res, nil
	}
	values := make(map[string][]any, len(m.Aggregates))
	for _, name := range m.Aggregates {
		values[name] = make([]any, res.NumRows())
	}
	for r := 0; r < res.NumRows(); r++ {
		env := res.Row(r)
		for _, name := range m.Aggregates {
			v, err := evaluateAgg(m.Registry, name, env)
			if err != nil {
				return nil, model.WrapStage(model.StageAggregate, "", err)
			}
			values[name][r] = v
		}
	}
	var err error
	for _, name := range m.Aggregates {
		if res, err = res.WithColumn(name, table.Float64, values[name]); err != nil {
			return nil, model.WrapStage(model.StageAggregate, "",
				model.Configurationf("column %q: %v", name, err))
		}
	}
	return res, nil
}

// evaluateAgg stores the value of name in env, evaluating AGG dependencies
// first.
func evaluateAgg(reg *columns.Registry, name string, env map[string]any) (any, error) {
	if v, ok := env[name]; ok {
		return v, nil
	}
	def, _ := reg.Lookup(name)
	for _, dep := range def.Dependencies {
		if d, _ := reg.Lookup(dep); d.Kind == model.KindAgg {
			if _, err := evaluateAgg(reg, dep, env); err != nil {
				return nil, err
			}
		}
	}
	e, _ := reg.Expression(name)
	v, err := e.Evaluate(env)
	if err != nil {
		return nil, err
	}
	env[name] = v
	return v, nil
}

// joinCardAttrs left joins the card groupbys and the requested card
// attributes on name. The first card row of a name wins.
func (s *MetricsService) joinCardAttrs(ctx context.Context, dataset string, m *manifest.Manifest, res *table.Table) (*table.Table, error) {
	cols := m.Columns(model.ViewCard)
	attrs := m.CardColumns()
	if len(attrs) == 0 || len(cols) == 0 {
		return res, nil
	}
	cards, err := s.readCards(ctx, dataset, m.Registry, cols)
	if err != nil {
		return nil, err
	}

	rowOf := make(map[any]int, cards.NumRows())
	for r := cards.NumRows() - 1; r >= 0; r-- {
		if name, _ := cards.Lookup(r, model.ColName); name != nil {
			rowOf[name] = r
		}
	}
	for _, attr := range attrs {
		idx, _ := cards.ColumnIndex(attr)
		values := make([]any, res.NumRows())
		for r := range values {
			name, _ := res.Lookup(r, model.ColName)
			if cr, ok := rowOf[name]; ok {
				values[r] = cards.Value(cr, idx)
			}
		}
		if res, err = res.WithColumn(attr, cards.Schema().Field(idx).Type, values); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (s *MetricsService) readCards(ctx context.Context, dataset string, reg *columns.Registry, cols []string) (*table.Table, error) {
	scan, err := s.source.Scan(ctx, dataset, model.ViewCard)
	if err != nil {
		return nil, model.WrapStage(model.StageSource, model.ViewCard, err)
	}
	raw := frame.FromScan(scan)
	pieces := make([]*frame.Frame, 0, len(cols))
	for _, col := range cols {
		f, err := engine.Resolve(raw, col, reg, true)
		if err != nil {
			return nil, model.WrapStage(model.StageResolve, model.ViewCard, err)
		}
		pieces = append(pieces, f)
	}
	f, err := frame.HConcat(pieces...)
	if err != nil {
		return nil, model.WrapStage(model.StageResolve, model.ViewCard, err)
	}
	rows, err := s.db.QueryContext(ctx, f.SQL())
	if err != nil {
		return nil, model.WrapStage(model.StageSource, model.ViewCard, err)
	}
	return table.FromRows(rows)
}

// ClearCache deletes every cached result of the dataset and forgets the
// schemas of its raw files, which are read again by the next request.
func (s *MetricsService) ClearCache(ctx context.Context, dataset string) (int, error) {
	s.source.Forget(dataset)
	return s.cache.Clear(ctx, dataset)
}
