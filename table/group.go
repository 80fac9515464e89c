package table

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/apache/arrow/go/v18/arrow"
)

// GroupSum sums the sums columns over the rows sharing the same keys values.
// The result holds the keys followed by the sums, ordered by the keys with
// nulls last. A sum over nulls only is null.
func (t *Table) GroupSum(keys, sums []string) (*Table, error) {
	keyIdx := make([]int, len(keys))
	fields := make([]arrow.Field, 0, len(keys)+len(sums))
	for i, name := range keys {
		idx, ok := t.index[name]
		if !ok {
			return nil, fmt.Errorf("column %q not in table", name)
		}
		keyIdx[i] = idx
		fields = append(fields, t.rec.Schema().Field(idx))
	}
	sumIdx := make([]int, len(sums))
	for i, name := range sums {
		idx, ok := t.index[name]
		if !ok {
			return nil, fmt.Errorf("column %q not in table", name)
		}
		sumIdx[i] = idx
		fields = append(fields, arrow.Field{Name: name, Type: Float64, Nullable: true})
	}

	type group struct {
		key  []any
		sums []any
	}
	var groups []*group
	byKey := make(map[string]*group)
	for r := 0; r < t.NumRows(); r++ {
		key := make([]any, len(keyIdx))
		for i, idx := range keyIdx {
			key[i] = t.Value(r, idx)
		}
		id := fmt.Sprintf("%#v", key)
		g, ok := byKey[id]
		if !ok {
			g = &group{key: key, sums: make([]any, len(sumIdx))}
			byKey[id] = g
			groups = append(groups, g)
		}
		for i, idx := range sumIdx {
			v := t.Value(r, idx)
			if v == nil {
				continue
			}
			f, err := toFloat64(v)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", sums[i], err)
			}
			if acc, ok := g.sums[i].(float64); ok {
				f += acc
			}
			g.sums[i] = f
		}
	}
	slices.SortStableFunc(groups, func(a, b *group) int {
		for i := range a.key {
			if c := compareCells(a.key[i], b.key[i]); c != 0 {
				return c
			}
		}
		return 0
	})

	b, err := NewBuilder(fields...)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if err := b.AppendRow(append(g.key, g.sums...)...); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// compareCells orders two cells of one column, nulls last.
func compareCells(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	switch av := a.(type) {
	case string:
		return cmp.Compare(av, b.(string))
	case int64:
		return cmp.Compare(av, b.(int64))
	case float64:
		return cmp.Compare(av, b.(float64))
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		}
		return 1
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
