// Package engine resolves requested columns over the raw views of a dataset,
// sums them and joins the per-metric partial results into one table.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gigapi/draftpipe/columns"
	"github.com/gigapi/draftpipe/frame"
	"github.com/gigapi/draftpipe/manifest"
	"github.com/gigapi/draftpipe/metrics"
	"github.com/gigapi/draftpipe/model"
	"github.com/gigapi/draftpipe/source"
	"github.com/gigapi/draftpipe/table"
	"github.com/gigapi/draftpipe/utils/promise"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Args is everything an aggregation depends on. It is serialized for the
// cache key, so it must not change after it is handed to the engine.
type Args struct {
	DatasetID string             `json:"dataset"`
	Manifest  *manifest.Manifest `json:"manifest"`
}

type Engine struct {
	db          *sql.DB
	source      source.Source
	log         *slog.Logger
	parallelism int64
}

func New(db *sql.DB, src source.Source, log *slog.Logger, parallelism int) *Engine {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Engine{db: db, source: src, log: log, parallelism: int64(parallelism)}
}

type partialQuery struct {
	view model.View
	kind model.ColumnKind
	sql  string
}

// Aggregate computes one row per distinct groupby combination and one column
// per PICK_SUM or NAME_SUM column of the manifest.
func (e *Engine) Aggregate(ctx context.Context, args Args) (res *table.Table, err error) {
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.AggregationDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}()

	m := args.Manifest
	if m == nil {
		return nil, model.Configurationf("aggregate called without a manifest")
	}

	var queries []partialQuery
	for _, vc := range m.ViewColumns {
		if vc.View == model.ViewCard || len(vc.Columns) == 0 {
			continue
		}
		qs, err := e.plan(ctx, args.DatasetID, m, vc)
		if err != nil {
			return nil, err
		}
		queries = append(queries, qs...)
	}
	if len(queries) == 0 {
		return nil, model.Configurationf("manifest has no aggregated column")
	}

	tmp := &tempTables{db: e.db}
	defer tmp.drop(e.log)

	names, err := e.materialize(ctx, queries, tmp)
	if err != nil {
		return nil, err
	}
	res, err = e.combine(ctx, names, m.BaseGroupBys, tmp)
	if err != nil {
		return nil, model.WrapStage(model.StageJoin, "", err)
	}
	e.log.Debug("aggregation done", "dataset", args.DatasetID, "partials", len(names),
		"rows", res.NumRows(), "elapsed", time.Since(start))
	return res, nil
}

// plan runs load, project, filter and classify for one view and returns the
// view's partial queries.
func (e *Engine) plan(ctx context.Context, dataset string, m *manifest.Manifest, vc manifest.ViewColumns) ([]partialQuery, error) {
	scan, err := e.source.Scan(ctx, dataset, vc.View)
	if err != nil {
		return nil, model.WrapStage(model.StageSource, vc.View, err)
	}
	raw := frame.FromScan(scan)

	pieces := make([]*frame.Frame, 0, len(vc.Columns))
	for _, col := range vc.Columns {
		f, err := Resolve(raw, col, m.Registry, true)
		if err != nil {
			return nil, model.WrapStage(model.StageResolve, vc.View, err)
		}
		pieces = append(pieces, f)
	}
	projected, err := frame.HConcat(pieces...)
	if err != nil {
		return nil, model.WrapStage(model.StageResolve, vc.View, err)
	}

	if m.Filter != nil {
		predicate, err := m.Filter.SQL(func(name string) (string, error) {
			c, ok := projected.Lookup(name)
			if !ok {
				return "", model.Configurationf("filter column %q is not resolved in the %s view", name, vc.View)
			}
			return c.SQL, nil
		})
		if err != nil {
			return nil, model.WrapStage(model.StageFilter, vc.View, err)
		}
		projected = projected.Filter(predicate)
	}

	var pickSums, nameSums []string
	for _, col := range vc.Columns {
		def, _ := m.Registry.Lookup(col)
		switch def.Kind {
		case model.KindPickSum:
			pickSums = append(pickSums, col)
		case model.KindNameSum:
			nameSums = append(nameSums, col)
		case model.KindGroupBy, model.KindFilterOnly:
		case model.KindAgg, model.KindCardAttr:
			return nil, model.WrapStage(model.StageAggregate, vc.View,
				model.Configurationf("%s column %q cannot be summed", def.Kind, col))
		}
	}

	var res []partialQuery
	if len(pickSums) > 0 {
		entity := vc.View.EntityColumn()
		if m.GroupedByName() && entity == "" {
			return nil, model.WrapStage(model.StageAggregate, vc.View,
				model.Configurationf("the %s view cannot group PICK_SUM columns by %q", vc.View, model.ColName))
		}
		res = append(res, partialQuery{
			view: vc.View,
			kind: model.KindPickSum,
			sql:  pickSumSQL(projected, m.BaseGroupBys, entity, pickSums),
		})
	}
	for _, col := range nameSums {
		entities := m.Registry.Entities(col)
		if len(entities) == 0 {
			return nil, model.WrapStage(model.StageAggregate, vc.View,
				model.Configurationf("column %q has no entity columns", col))
		}
		cols := make([]string, len(entities))
		for i, ent := range entities {
			cols[i] = columns.EntityColumn(col, ent)
		}
		res = append(res, partialQuery{
			view: vc.View,
			kind: model.KindNameSum,
			sql:  nameSumSQL(projected, m.BaseGroupBys, col, entities, cols),
		})
	}
	return res, nil
}

// materialize computes every partial concurrently and returns the partial
// table names in query order.
func (e *Engine) materialize(ctx context.Context, queries []partialQuery, tmp *tempTables) ([]string, error) {
	sem := semaphore.NewWeighted(e.parallelism)
	g, gctx := errgroup.WithContext(ctx)
	promises := make([]*promise.Promise[string], len(queries))
	for i, pq := range queries {
		p := promise.New[string]()
		promises[i] = p
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				p.Done("", err)
				return err
			}
			defer sem.Release(1)
			start := time.Now()
			name, err := tmp.create(gctx, "partial", pq.sql)
			if err != nil {
				err = model.WrapStage(model.StageAggregate, pq.view, err)
				p.Done("", err)
				return err
			}
			metrics.PartialsTotal.WithLabelValues(string(pq.view), pq.kind.String()).Inc()
			e.log.Debug("partial materialized", "view", pq.view, "kind", pq.kind, "table", name,
				"elapsed", time.Since(start))
			p.Done(name, nil)
			return nil
		})
	}
	names, err := promise.All(ctx, promises)
	if werr := g.Wait(); err == nil {
		err = werr
	}
	if err != nil {
		return nil, err
	}
	return names, nil
}

// combine folds the partials left to right and reads the result ordered by
// the groupbys.
func (e *Engine) combine(ctx context.Context, names []string, groupbys []string, tmp *tempTables) (*table.Table, error) {
	acc := names[0]
	for _, next := range names[1:] {
		joined, err := tmp.create(ctx, "joined", joinSQL(acc, next, groupbys))
		if err != nil {
			return nil, err
		}
		acc = joined
	}
	rows, err := e.db.QueryContext(ctx, orderedSQL(acc, len(groupbys)))
	if err != nil {
		return nil, err
	}
	return table.FromRows(rows)
}

// tempTables tracks the tables created during one run so that they can be
// dropped at the end of it.
type tempTables struct {
	db    *sql.DB
	mtx   sync.Mutex
	names []string
}

func (t *tempTables) create(ctx context.Context, prefix, query string) (string, error) {
	name := prefix + "_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	if _, err := t.db.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s AS %s", q(name), query)); err != nil {
		return "", fmt.Errorf("%w (query: %s)", err, query)
	}
	t.mtx.Lock()
	t.names = append(t.names, name)
	t.mtx.Unlock()
	return name, nil
}

func (t *tempTables) drop(log *slog.Logger) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	for _, name := range t.names {
		if _, err := t.db.Exec("DROP TABLE IF EXISTS " + q(name)); err != nil {
			log.Warn("failed to drop intermediate table", "table", name, "error", err)
		}
	}
	t.names = nil
}
