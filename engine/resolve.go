package engine

import (
	"github.com/gigapi/draftpipe/columns"
	"github.com/gigapi/draftpipe/frame"
	"github.com/gigapi/draftpipe/model"
)

// Resolve returns a frame over raw's scan holding target's evaluated column,
// or one column per entity for a NAME_SUM target. Root dependencies, and in
// view mode dependencies native to the scanned view, are evaluated in one
// projection over raw; the others are resolved recursively. The registry must
// be acyclic, which columns.New guarantees.
func Resolve(raw *frame.Frame, target string, reg *columns.Registry, viewMode bool) (*frame.Frame, error) {
	def, ok := reg.Lookup(target)
	if !ok {
		return nil, model.Configurationf("unknown column %q", target)
	}
	if def.IsRoot() || viewMode && def.NativeTo(raw.Scan().View) {
		return evaluate(raw, raw, target, reg)
	}

	var direct []*frame.Frame
	var pieces []*frame.Frame
	for _, dep := range def.Dependencies {
		depDef, ok := reg.Lookup(dep)
		if !ok {
			return nil, model.Configurationf("column %q depends on unknown column %q", target, dep)
		}
		if depDef.IsRoot() || viewMode && depDef.NativeTo(raw.Scan().View) {
			f, err := evaluate(raw, raw, dep, reg)
			if err != nil {
				return nil, err
			}
			direct = append(direct, f)
			continue
		}
		f, err := Resolve(raw, dep, reg, viewMode)
		if err != nil {
			return nil, err
		}
		pieces = append(pieces, f)
	}
	if len(direct) > 0 {
		batch, err := frame.HConcat(direct...)
		if err != nil {
			return nil, err
		}
		pieces = append(pieces, batch)
	}
	deps, err := frame.HConcat(pieces...)
	if err != nil {
		return nil, err
	}
	return evaluate(raw, deps, target, reg)
}

// evaluate compiles name's expression against the columns of src and returns
// the result as a selection over raw's scan.
func evaluate(raw, src *frame.Frame, name string, reg *columns.Registry) (*frame.Frame, error) {
	def, _ := reg.Lookup(name)
	expr, _ := reg.Expression(name)

	lookup := func(col string) (string, error) {
		c, ok := src.Lookup(col)
		if !ok {
			return "", model.Configurationf("column %q: %q is not available in the %s view", name, col, raw.Scan().View)
		}
		return c.SQL, nil
	}

	if def.Kind != model.KindNameSum {
		sql, err := expr.SQL(lookup)
		if err != nil {
			return nil, err
		}
		return raw.Select(frame.Column{Name: name, SQL: sql}), nil
	}

	entities := reg.Entities(name)
	cols := make([]frame.Column, 0, len(entities))
	for _, ent := range entities {
		sql, err := expr.SQL(func(ident string) (string, error) {
			if col, ok := reg.EntityField(ident, ent); ok {
				return lookup(col)
			}
			return lookup(ident)
		})
		if err != nil {
			return nil, err
		}
		cols = append(cols, frame.Column{Name: columns.EntityColumn(name, ent), SQL: sql})
	}
	return raw.Select(cols...), nil
}
