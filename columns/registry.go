// Package columns holds the column-definition registry.
//
// A Registry is immutable. New validates the dependency graph once; Bind
// attaches raw view schemas and builds the entity index used by NAME_SUM
// aggregation, so nothing downstream ever parses column names.
package columns

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/gigapi/draftpipe/expression"
	"github.com/gigapi/draftpipe/model"
)

type entry struct {
	def  model.ColumnDefinition
	expr *expression.Expression
}

type Registry struct {
	order   []string
	entries map[string]*entry

	// set by Bind
	bound    bool
	schemas  map[model.View][]string
	avail    map[string]map[model.View]bool
	entities map[string][]string
	entityOf map[string]map[string]string
}

// New validates defs and builds a registry. Names must be unique, every
// dependency must exist, the dependency graph must be acyclic and derived
// expressions may only reference their declared dependencies.
func New(defs []model.ColumnDefinition) (*Registry, error) {
	r := &Registry{entries: make(map[string]*entry, len(defs))}
	for _, d := range defs {
		if d.Name == "" {
			return nil, model.Configurationf("column definition without a name")
		}
		if _, ok := r.entries[d.Name]; ok {
			return nil, model.Configurationf("column %q defined twice", d.Name)
		}
		if _, err := d.Kind.MarshalText(); err != nil {
			return nil, model.Configurationf("column %q: %v", d.Name, err)
		}
		for _, v := range d.Views {
			if !v.Valid() {
				return nil, model.Configurationf("column %q: unknown view %q", d.Name, v)
			}
		}
		e, err := expression.Parse(d.Expression())
		if err != nil {
			return nil, model.Configurationf("column %q: %v", d.Name, err)
		}
		r.entries[d.Name] = &entry{def: d, expr: e}
		r.order = append(r.order, d.Name)
	}
	for _, name := range r.order {
		if err := r.validate(r.entries[name]); err != nil {
			return nil, err
		}
	}
	if err := r.checkAcyclic(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) validate(e *entry) error {
	d := e.def
	for _, dep := range d.Dependencies {
		if _, ok := r.entries[dep]; !ok {
			return model.Configurationf("column %q depends on unknown column %q", d.Name, dep)
		}
	}
	if !d.IsRoot() {
		for _, ident := range e.expr.Identifiers() {
			if !slices.Contains(d.Dependencies, ident) {
				return model.Configurationf("column %q references %q which is not a declared dependency", d.Name, ident)
			}
		}
	}
	switch d.Kind {
	case model.KindAgg:
		if d.IsRoot() {
			return model.Configurationf("AGG column %q needs dependencies", d.Name)
		}
		for _, dep := range d.Dependencies {
			k := r.entries[dep].def.Kind
			if !k.IsSum() && k != model.KindAgg {
				return model.Configurationf("AGG column %q depends on %s column %q", d.Name, k, dep)
			}
		}
	case model.KindCardAttr:
		if !d.IsRoot() {
			return model.Configurationf("CARD_ATTR column %q must be a root column", d.Name)
		}
	case model.KindNameSum:
		if d.IsRoot() {
			return nil
		}
		found := false
		for _, dep := range d.Dependencies {
			k := r.entries[dep].def.Kind
			if k == model.KindAgg || k == model.KindCardAttr {
				return model.Configurationf("column %q depends on %s column %q", d.Name, k, dep)
			}
			found = found || k == model.KindNameSum
		}
		if !found {
			return model.Configurationf("NAME_SUM column %q has no NAME_SUM dependency", d.Name)
		}
	default:
		for _, dep := range d.Dependencies {
			k := r.entries[dep].def.Kind
			if k == model.KindAgg || k == model.KindCardAttr || k == model.KindNameSum {
				return model.Configurationf("%s column %q depends on %s column %q", d.Kind, d.Name, k, dep)
			}
		}
	}
	return nil
}

// checkAcyclic runs a depth-first walk with a visiting set.
func (r *Registry) checkAcyclic() error {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(r.entries))
	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return model.Configurationf("dependency cycle: %s", strings.Join(append(path, name), " -> "))
		}
		state[name] = visiting
		for _, dep := range r.entries[name].def.Dependencies {
			if err := visit(dep, append(path, name)); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}
	for _, name := range r.order {
		if err := visit(name, nil); err != nil {
			return err
		}
	}
	return nil
}

// With returns a new registry where ext overlays the receiver's definitions.
// A definition with an existing name replaces it in place.
func (r *Registry) With(ext []model.ColumnDefinition) (*Registry, error) {
	if len(ext) == 0 {
		return r, nil
	}
	defs := r.Definitions()
	index := make(map[string]int, len(defs))
	for i, d := range defs {
		index[d.Name] = i
	}
	for _, d := range ext {
		if i, ok := index[d.Name]; ok {
			defs[i] = d
			continue
		}
		index[d.Name] = len(defs)
		defs = append(defs, d)
	}
	res, err := New(defs)
	if err != nil {
		return nil, err
	}
	if r.bound {
		return res.Bind(r.schemas)
	}
	return res, nil
}

func (r *Registry) Definitions() []model.ColumnDefinition {
	res := make([]model.ColumnDefinition, len(r.order))
	for i, name := range r.order {
		res[i] = r.entries[name].def
	}
	return res
}

func (r *Registry) Lookup(name string) (model.ColumnDefinition, bool) {
	e, ok := r.entries[name]
	if !ok {
		return model.ColumnDefinition{}, false
	}
	return e.def, true
}

// Expression returns the parsed expression of a column.
func (r *Registry) Expression(name string) (*expression.Expression, bool) {
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.expr, true
}

// MarshalJSON serializes the definitions in registration order, which makes
// registries usable in cache keys.
func (r *Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Definitions())
}

