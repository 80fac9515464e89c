// Package frame builds lazily evaluated projections over a raw view scan.
//
// A Frame never holds data: it is a list of named SQL expressions over one
// Scan, plus filter predicates. Frames derived from the same Scan can be
// concatenated column-wise without any row alignment concern, since they
// render to a single projection over a single scan.
package frame

import (
	"fmt"
	"strings"

	"github.com/gigapi/draftpipe/expression"
	"github.com/gigapi/draftpipe/model"
)

// Scan is a raw view relation and its schema.
type Scan struct {
	View   model.View
	From   string
	Fields []string
}

type Column struct {
	Name string
	SQL  string
}

type Frame struct {
	scan    *Scan
	columns []Column
	index   map[string]int
	where   []string
}

// FromScan returns a frame exposing every raw field of s unchanged.
func FromScan(s *Scan) *Frame {
	cols := make([]Column, len(s.Fields))
	for i, f := range s.Fields {
		cols[i] = Column{Name: f, SQL: expression.QuoteIdent(f)}
	}
	return newFrame(s, cols, nil)
}

func newFrame(s *Scan, cols []Column, where []string) *Frame {
	f := &Frame{scan: s, columns: cols, where: where, index: make(map[string]int, len(cols))}
	for i, c := range cols {
		f.index[c.Name] = i
	}
	return f
}

func (f *Frame) Scan() *Scan {
	return f.scan
}

func (f *Frame) Width() int {
	return len(f.columns)
}

func (f *Frame) Names() []string {
	res := make([]string, len(f.columns))
	for i, c := range f.columns {
		res[i] = c.Name
	}
	return res
}

func (f *Frame) Lookup(name string) (Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return Column{}, false
	}
	return f.columns[i], true
}

// Select returns a frame over the same scan holding exactly cols. Column SQL is
// expected to be expressed over the scan's raw fields.
func (f *Frame) Select(cols ...Column) *Frame {
	return newFrame(f.scan, append([]Column(nil), cols...), f.where)
}

// Filter returns a frame restricted to rows matching the SQL predicate.
func (f *Frame) Filter(predicate string) *Frame {
	where := append(append([]string(nil), f.where...), predicate)
	return newFrame(f.scan, f.columns, where)
}

// HConcat concatenates frames column-wise. All frames must share the same scan
// and filters. A name repeated with the same SQL is kept once.
func HConcat(frames ...*Frame) (*Frame, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("concat of zero frames")
	}
	base := frames[0]
	var cols []Column
	seen := make(map[string]string)
	for _, fr := range frames {
		if fr.scan != base.scan {
			return nil, fmt.Errorf("concat of frames over different scans (%s, %s)", base.scan.View, fr.scan.View)
		}
		if strings.Join(fr.where, "\x00") != strings.Join(base.where, "\x00") {
			return nil, fmt.Errorf("concat of frames with different filters")
		}
		for _, c := range fr.columns {
			if prev, ok := seen[c.Name]; ok {
				if prev != c.SQL {
					return nil, fmt.Errorf("column %q defined twice with different expressions", c.Name)
				}
				continue
			}
			seen[c.Name] = c.SQL
			cols = append(cols, c)
		}
	}
	return newFrame(base.scan, cols, base.where), nil
}

// SQL renders the frame as a SELECT statement.
func (f *Frame) SQL() string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(f.columns) == 0 {
		sb.WriteString("NULL AS __empty")
	}
	for i, c := range f.columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(c.SQL)
		sb.WriteString(" AS ")
		sb.WriteString(expression.QuoteIdent(c.Name))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(f.scan.From)
	if len(f.where) > 0 {
		sb.WriteString(" WHERE ")
		for i, w := range f.where {
			if i > 0 {
				sb.WriteString(" AND ")
			}
			sb.WriteString(w)
		}
	}
	return sb.String()
}
