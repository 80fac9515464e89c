package model

// MetricsRequest is what a caller asks for: metric columns, grouping columns,
// an optional filter expression and extra column definitions.
type MetricsRequest struct {
	Columns    []string           `json:"columns" yaml:"columns"`
	GroupBys   []string           `json:"groupbys" yaml:"groupbys"`
	Filter     string             `json:"filter,omitempty" yaml:"filter,omitempty"`
	Extensions []ColumnDefinition `json:"extensions,omitempty" yaml:"extensions,omitempty"`
	ReadCache  *bool              `json:"read_cache,omitempty" yaml:"read_cache,omitempty"`
	WriteCache *bool              `json:"write_cache,omitempty" yaml:"write_cache,omitempty"`
}

func (r MetricsRequest) ShouldReadCache() bool {
	return r.ReadCache == nil || *r.ReadCache
}

func (r MetricsRequest) ShouldWriteCache() bool {
	return r.WriteCache == nil || *r.WriteCache
}

// StdinRequest is a MetricsRequest addressed to a dataset.
type StdinRequest struct {
	Dataset string `json:"dataset"`
	MetricsRequest
}
