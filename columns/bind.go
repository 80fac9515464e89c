package columns

import (
	"slices"
	"strings"

	"github.com/gigapi/draftpipe/model"
)

// Bind returns a copy of the registry attached to the raw schemas of a
// dataset. It records which views can compute each column and builds the
// entity index: root NAME_SUM columns take their entities from raw fields
// named "<metric>_<entity>", derived NAME_SUM columns take the entities
// shared by all of their NAME_SUM dependencies.
func (r *Registry) Bind(schemas map[model.View][]string) (*Registry, error) {
	b := &Registry{
		order:    r.order,
		entries:  r.entries,
		bound:    true,
		schemas:  schemas,
		avail:    make(map[string]map[model.View]bool, len(r.order)),
		entities: make(map[string][]string),
		entityOf: make(map[string]map[string]string),
	}
	fields := make(map[model.View]map[string]bool, len(schemas))
	for v, fs := range schemas {
		set := make(map[string]bool, len(fs))
		for _, f := range fs {
			set[f] = true
		}
		fields[v] = set
	}
	for _, name := range r.order {
		if err := b.bindColumn(name, fields); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Registry) bindColumn(name string, fields map[model.View]map[string]bool) error {
	if _, ok := b.avail[name]; ok {
		return nil
	}
	e := b.entries[name]
	d := e.def
	for _, dep := range d.Dependencies {
		if err := b.bindColumn(dep, fields); err != nil {
			return err
		}
	}
	avail := make(map[model.View]bool)
	b.avail[name] = avail

	if d.Kind == model.KindNameSum {
		b.indexEntities(name, fields)
	}

	switch {
	case d.Kind == model.KindAgg:
	case d.Kind == model.KindCardAttr:
		if fs, ok := fields[model.ViewCard]; ok && b.rawIdentifiers(e, fs) {
			avail[model.ViewCard] = true
		}
	case d.IsRoot():
		views := model.AggregatedViews
		if len(d.Views) > 0 {
			views = d.Views
		}
		for _, v := range views {
			if v == model.ViewCard {
				continue
			}
			if fs, ok := fields[v]; ok && b.rawIdentifiers(e, fs) {
				avail[v] = true
			}
		}
	default:
		for _, v := range model.AggregatedViews {
			if _, ok := fields[v]; !ok {
				continue
			}
			ok := true
			for _, dep := range d.Dependencies {
				ok = ok && b.avail[dep][v]
			}
			avail[v] = ok
		}
	}

	// columns declared native to a view are evaluated directly on that view's
	// raw schema, so their expression must only reference raw fields there.
	// Card files may carry any subset of the attributes.
	if d.Kind == model.KindCardAttr {
		return nil
	}
	for _, v := range d.Views {
		fs, ok := fields[v]
		if !ok {
			continue
		}
		if d.Kind == model.KindNameSum && d.IsRoot() && len(b.entities[name]) == 0 {
			// the dataset carries no entity fields for this metric
			continue
		}
		if !b.rawIdentifiers(e, fs) {
			return model.Configurationf("column %q is declared native to %s but references fields the %s schema lacks", name, v, v)
		}
		avail[v] = true
	}
	return nil
}

// rawIdentifiers reports whether every identifier of e is a raw field in fs.
// A NAME_SUM identifier is satisfied when each of its entity fields is.
func (b *Registry) rawIdentifiers(e *entry, fs map[string]bool) bool {
	for _, ident := range e.expr.Identifiers() {
		if fs[ident] {
			continue
		}
		entities, ok := b.entities[ident]
		if !ok || len(entities) == 0 {
			return false
		}
		for _, ent := range entities {
			if !fs[b.entityOf[ident][ent]] {
				return false
			}
		}
	}
	return true
}

func (b *Registry) indexEntities(name string, fields map[model.View]map[string]bool) {
	d := b.entries[name].def
	var entities []string
	if d.IsRoot() {
		views := model.AggregatedViews
		if len(d.Views) > 0 {
			views = d.Views
		}
		prefix := name + "_"
		for _, v := range views {
			for _, f := range b.schemas[v] {
				if ent, ok := strings.CutPrefix(f, prefix); ok && ent != "" {
					entities = append(entities, ent)
				}
			}
			if len(entities) > 0 {
				break
			}
		}
	} else {
		first := true
		for _, dep := range d.Dependencies {
			depEntities, ok := b.entities[dep]
			if !ok {
				continue
			}
			if first {
				entities = slices.Clone(depEntities)
				first = false
				continue
			}
			entities = slices.DeleteFunc(entities, func(ent string) bool {
				return !slices.Contains(depEntities, ent)
			})
		}
	}
	b.entities[name] = entities
	cols := make(map[string]string, len(entities))
	for _, ent := range entities {
		cols[ent] = EntityColumn(name, ent)
	}
	b.entityOf[name] = cols
}

// EntityColumn names the per-entity column of a NAME_SUM metric.
func EntityColumn(metric, entity string) string {
	return metric + "_" + entity
}

func (r *Registry) Bound() bool {
	return r.bound
}

// Entities returns the ordered entity names of a NAME_SUM metric.
func (r *Registry) Entities(metric string) []string {
	return r.entities[metric]
}

// EntityField returns the column holding entity's value of metric.
func (r *Registry) EntityField(metric, entity string) (string, bool) {
	col, ok := r.entityOf[metric][entity]
	return col, ok
}

// Computable reports whether view v can compute column name.
func (r *Registry) Computable(name string, v model.View) bool {
	return r.avail[name][v]
}

// Views returns the views able to compute name, in aggregation order.
func (r *Registry) Views(name string) []model.View {
	var res []model.View
	for _, v := range append(slices.Clone(model.AggregatedViews), model.ViewCard) {
		if r.avail[name][v] {
			res = append(res, v)
		}
	}
	return res
}

// Schema returns the raw fields of v, if the dataset has that view.
func (r *Registry) Schema(v model.View) ([]string, bool) {
	fs, ok := r.schemas[v]
	return fs, ok
}
