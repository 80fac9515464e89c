// Package manifest turns a metrics request into the per-view execution plan
// consumed by the aggregation engine.
package manifest

import (
	"encoding/json"
	"slices"
	"sort"

	"github.com/gigapi/draftpipe/columns"
	"github.com/gigapi/draftpipe/expression"
	"github.com/gigapi/draftpipe/model"
)

type ViewColumns struct {
	View    model.View `json:"view"`
	Columns []string   `json:"columns"`
}

// Manifest is read-only once created.
type Manifest struct {
	// GroupBys holds the requested groupbys. The engine groups by
	// BaseGroupBys, which replace card attribute groupbys with name.
	GroupBys     []string
	BaseGroupBys []string
	CardGroupBys []string
	ViewColumns []ViewColumns
	Registry    *columns.Registry
	Filter      *expression.Expression

	// Requested holds the requested columns in request order.
	Requested  []string
	Aggregates []string
	CardAttrs  []string
}

// Columns returns the columns requested from view v.
func (m *Manifest) Columns(v model.View) []string {
	for _, vc := range m.ViewColumns {
		if vc.View == v {
			return vc.Columns
		}
	}
	return nil
}

// GroupedByName reports whether the aggregation is grouped by name.
func (m *Manifest) GroupedByName() bool {
	return slices.Contains(m.BaseGroupBys, model.ColName)
}

// Regrouped reports whether the aggregated rows must be summed again by the
// requested groupbys once the card attributes are joined.
func (m *Manifest) Regrouped() bool {
	return len(m.CardGroupBys) > 0 && !slices.Contains(m.GroupBys, model.ColName)
}

// NonNameGroupBys returns the base groupbys other than name, in order.
func (m *Manifest) NonNameGroupBys() []string {
	var res []string
	for _, gb := range m.BaseGroupBys {
		if gb != model.ColName {
			res = append(res, gb)
		}
	}
	return res
}

// Create builds a manifest against a bound registry. Nil columns or groupbys
// select the defaults; an empty groupbys slice asks for global totals.
func Create(reg *columns.Registry, cols, groupbys []string, filter string) (*Manifest, error) {
	if !reg.Bound() {
		return nil, model.Configurationf("registry is not bound to a dataset")
	}
	if len(cols) == 0 {
		cols = columns.DefaultColumns
	}
	if groupbys == nil {
		groupbys = columns.DefaultGroupBys
	}
	m := &Manifest{
		GroupBys:  slices.Clone(groupbys),
		Registry:  reg,
		Requested: slices.Clone(cols),
	}
	if err := m.checkGroupBys(); err != nil {
		return nil, err
	}
	if filter != "" {
		f, err := expression.Parse(filter)
		if err != nil {
			return nil, err
		}
		m.Filter = f
		if err := m.checkFilter(); err != nil {
			return nil, err
		}
	}

	var sums []string
	seen := make(map[string]bool)
	var expand func(name string) error
	expand = func(name string) error {
		d, ok := reg.Lookup(name)
		if !ok {
			return model.Configurationf("unknown column %q", name)
		}
		switch d.Kind {
		case model.KindPickSum, model.KindNameSum:
			if !seen[name] {
				seen[name] = true
				sums = append(sums, name)
			}
		case model.KindAgg:
			for _, dep := range d.Dependencies {
				if err := expand(dep); err != nil {
					return err
				}
			}
		default:
			return model.Configurationf("column %q of kind %s cannot be aggregated", name, d.Kind)
		}
		return nil
	}
	requested := make(map[string]bool)
	for _, name := range cols {
		if requested[name] {
			return nil, model.Configurationf("column %q requested twice", name)
		}
		requested[name] = true
		if slices.Contains(m.GroupBys, name) {
			return nil, model.Configurationf("column %q is both requested and grouped by", name)
		}
		d, ok := reg.Lookup(name)
		if !ok {
			return nil, model.Configurationf("unknown column %q", name)
		}
		switch d.Kind {
		case model.KindCardAttr:
			if !slices.Contains(m.GroupBys, model.ColName) {
				return nil, model.Configurationf("card attribute %q needs %q in groupbys", name, model.ColName)
			}
			if !reg.Computable(name, model.ViewCard) {
				return nil, model.Configurationf("card attribute %q is not in the card file", name)
			}
			m.CardAttrs = append(m.CardAttrs, name)
			continue
		case model.KindAgg:
			m.Aggregates = append(m.Aggregates, name)
		}
		if err := expand(name); err != nil {
			return nil, err
		}
	}
	if len(sums) == 0 {
		return nil, model.Configurationf("no aggregated column requested")
	}
	if err := m.assign(sums); err != nil {
		return nil, err
	}
	if attrs := m.CardColumns(); len(attrs) > 0 {
		m.ViewColumns = append(m.ViewColumns, ViewColumns{
			View:    model.ViewCard,
			Columns: append([]string{model.ColName}, attrs...),
		})
	}
	return m, nil
}

// SumColumns lists the PICK_SUM and NAME_SUM columns of the aggregated views.
func (m *Manifest) SumColumns() []string {
	var res []string
	for _, vc := range m.aggregatedViews() {
		for _, c := range vc.Columns {
			if d, _ := m.Registry.Lookup(c); d.Kind == model.KindPickSum || d.Kind == model.KindNameSum {
				res = append(res, c)
			}
		}
	}
	return res
}

// CardColumns lists the card attributes joined on name: card groupbys first,
// then the requested attributes.
func (m *Manifest) CardColumns() []string {
	return append(slices.Clone(m.CardGroupBys), m.CardAttrs...)
}

// checkGroupBys validates the groupbys and derives the base groupbys. Card
// attributes are grouped through name and summed again later.
func (m *Manifest) checkGroupBys() error {
	seen := make(map[string]bool, len(m.GroupBys))
	base := make([]string, 0, len(m.GroupBys))
	for _, gb := range m.GroupBys {
		if seen[gb] {
			return model.Configurationf("groupby %q listed twice", gb)
		}
		seen[gb] = true
		if gb == model.ColName {
			base = append(base, gb)
			continue
		}
		d, ok := m.Registry.Lookup(gb)
		if !ok {
			return model.Configurationf("unknown groupby %q", gb)
		}
		switch d.Kind {
		case model.KindGroupBy:
			base = append(base, gb)
		case model.KindCardAttr:
			if !m.Registry.Computable(gb, model.ViewCard) {
				return model.Configurationf("card attribute %q is not in the card file", gb)
			}
			m.CardGroupBys = append(m.CardGroupBys, gb)
		default:
			return model.Configurationf("%q is a %s column and cannot be grouped by", gb, d.Kind)
		}
	}
	if len(m.CardGroupBys) > 0 && !seen[model.ColName] {
		base = append([]string{model.ColName}, base...)
	}
	m.BaseGroupBys = base
	return nil
}

func (m *Manifest) checkFilter() error {
	for _, ident := range m.Filter.Identifiers() {
		d, ok := m.Registry.Lookup(ident)
		if !ok {
			return model.Configurationf("filter references unknown column %q", ident)
		}
		switch d.Kind {
		case model.KindGroupBy, model.KindFilterOnly, model.KindPickSum:
		default:
			return model.Configurationf("filter references %s column %q", d.Kind, ident)
		}
	}
	return nil
}

// assign places every sum column in the first view able to compute it and
// adds what each used view needs besides: groupbys, filter inputs and the
// entity column.
func (m *Manifest) assign(sums []string) error {
	byView := make(map[model.View][]string)
	for _, name := range sums {
		d, _ := m.Registry.Lookup(name)
		if d.Kind == model.KindNameSum && len(m.Registry.Entities(name)) == 0 {
			return model.Configurationf("column %q has no entity columns in this dataset", name)
		}
		placed := false
		for _, v := range model.AggregatedViews {
			if m.Registry.Computable(name, v) {
				byView[v] = append(byView[v], name)
				placed = true
				break
			}
		}
		if !placed {
			return model.Configurationf("column %q cannot be computed from the raw files of this dataset", name)
		}
	}
	for _, v := range model.AggregatedViews {
		sumCols, ok := byView[v]
		if !ok {
			continue
		}
		var cols []string
		add := func(name string) error {
			if slices.Contains(cols, name) {
				return nil
			}
			if !m.Registry.Computable(name, v) {
				return model.Configurationf("column %q is not available in the %s view", name, v)
			}
			cols = append(cols, name)
			return nil
		}
		for _, gb := range m.NonNameGroupBys() {
			if err := add(gb); err != nil {
				return err
			}
		}
		hasPickSum := false
		for _, c := range sumCols {
			d, _ := m.Registry.Lookup(c)
			hasPickSum = hasPickSum || d.Kind == model.KindPickSum
			if err := add(c); err != nil {
				return err
			}
		}
		if m.Filter != nil {
			for _, ident := range m.Filter.Identifiers() {
				if err := add(ident); err != nil {
					return err
				}
			}
		}
		if m.GroupedByName() && hasPickSum {
			entity := v.EntityColumn()
			if entity == "" {
				return model.Configurationf("%s view rows are not about a single card, its PICK_SUM columns cannot be grouped by %q", v, model.ColName)
			}
			if err := add(entity); err != nil {
				return err
			}
		}
		m.ViewColumns = append(m.ViewColumns, ViewColumns{View: v, Columns: cols})
	}
	return nil
}

// closure lists the definitions the plan depends on, sorted by name.
func (m *Manifest) closure() []model.ColumnDefinition {
	seen := make(map[string]bool)
	var visit func(name string)
	visit = func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		d, _ := m.Registry.Lookup(name)
		for _, dep := range d.Dependencies {
			visit(dep)
		}
	}
	for _, vc := range m.aggregatedViews() {
		for _, c := range vc.Columns {
			visit(c)
		}
	}
	for _, c := range m.Aggregates {
		visit(c)
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	res := make([]model.ColumnDefinition, 0, len(names))
	for _, name := range names {
		if d, ok := m.Registry.Lookup(name); ok {
			res = append(res, d)
		}
	}
	return res
}

func (m *Manifest) aggregatedViews() []ViewColumns {
	var res []ViewColumns
	for _, vc := range m.ViewColumns {
		if vc.View != model.ViewCard {
			res = append(res, vc)
		}
	}
	return res
}

type manifestJSON struct {
	GroupBys    []string                 `json:"groupbys"`
	ViewColumns []ViewColumns            `json:"view_columns"`
	Filter      string                   `json:"filter,omitempty"`
	Definitions []model.ColumnDefinition `json:"definitions"`
	Entities    map[string][]string      `json:"entities,omitempty"`
}

// MarshalJSON renders everything that determines the aggregation result, and
// nothing else, so it can feed a cache key. Card columns are joined after the
// aggregation and are left out.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	out := manifestJSON{
		GroupBys:    m.BaseGroupBys,
		ViewColumns: m.aggregatedViews(),
		Definitions: m.closure(),
	}
	if m.Filter != nil {
		out.Filter = m.Filter.Source()
	}
	for _, d := range out.Definitions {
		if d.Kind != model.KindNameSum {
			continue
		}
		if out.Entities == nil {
			out.Entities = make(map[string][]string)
		}
		out.Entities[d.Name] = m.Registry.Entities(d.Name)
	}
	return json.Marshal(out)
}
