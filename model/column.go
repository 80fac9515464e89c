package model

import (
	"fmt"
	"slices"
)

// View identifies a raw data source.
type View string

const (
	ViewDraft View = "draft"
	ViewGame  View = "game"
	ViewCard  View = "card"
)

// AggregatedViews lists the views the engine aggregates, in evaluation order.
var AggregatedViews = []View{ViewDraft, ViewGame}

// EntityColumn returns the column identifying the entity (card) a row is about,
// or "" when rows of the view are not about a single entity.
func (v View) EntityColumn() string {
	if v == ViewDraft {
		return ColPick
	}
	return ""
}

func (v View) Valid() bool {
	switch v {
	case ViewDraft, ViewGame, ViewCard:
		return true
	}
	return false
}

// ColumnKind is the closed set of column roles. Only PickSum and NameSum are
// aggregated by the engine.
type ColumnKind uint8

const (
	KindGroupBy ColumnKind = iota + 1
	KindFilterOnly
	KindPickSum
	KindNameSum
	KindAgg
	KindCardAttr
)

var kindNames = map[ColumnKind]string{
	KindGroupBy:    "GROUP_BY",
	KindFilterOnly: "FILTER_ONLY",
	KindPickSum:    "PICK_SUM",
	KindNameSum:    "NAME_SUM",
	KindAgg:        "AGG",
	KindCardAttr:   "CARD_ATTR",
}

func (k ColumnKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ColumnKind(%d)", uint8(k))
}

func (k ColumnKind) MarshalText() ([]byte, error) {
	s, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown column kind %d", uint8(k))
	}
	return []byte(s), nil
}

func (k *ColumnKind) UnmarshalText(b []byte) error {
	for kind, name := range kindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("%w: unknown column kind %q", ErrConfiguration, string(b))
}

// IsSum reports whether the engine aggregates columns of this kind.
func (k ColumnKind) IsSum() bool {
	return k == KindPickSum || k == KindNameSum
}

// ColumnDefinition describes how a column is computed.
//
// Expr is an expression over Dependencies, or over raw fields when the column
// is a root column (no dependencies). An empty Expr selects the raw field
// named Name. Views lists the views whose raw schema can evaluate Expr
// directly.
type ColumnDefinition struct {
	Name         string     `json:"name" yaml:"name"`
	Expr         string     `json:"expr,omitempty" yaml:"expr,omitempty"`
	Dependencies []string   `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Kind         ColumnKind `json:"kind" yaml:"kind"`
	Views        []View     `json:"views,omitempty" yaml:"views,omitempty"`
}

// IsRoot reports whether the column is computed directly from the raw schema.
func (c ColumnDefinition) IsRoot() bool {
	return len(c.Dependencies) == 0
}

// Expression returns the expression source, defaulting to the column's own name.
func (c ColumnDefinition) Expression() string {
	if c.Expr == "" {
		return c.Name
	}
	return c.Expr
}

func (c ColumnDefinition) NativeTo(v View) bool {
	return slices.Contains(c.Views, v)
}

// Column names shared by the engine and the default registry.
const (
	ColName       = "name"
	ColPick       = "pick"
	ColExpansion  = "expansion"
	ColEventType  = "event_type"
	ColDraftID    = "draft_id"
	ColRank       = "rank"
	ColPackNumber = "pack_number"
	ColPickNumber = "pick_number"
	ColWon        = "won"
)
