// Package expression implements the column and filter expression language.
//
// Expressions use expr-lang syntax. They are compiled to DuckDB SQL for
// evaluation inside scans, or run on the expr VM for post-aggregation columns.
package expression

import (
	"fmt"
	"math"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
	"github.com/gigapi/draftpipe/model"
)

// Resolver maps an identifier to the SQL that produces its value.
type Resolver func(name string) (string, error)

type Expression struct {
	source string
	node   ast.Node
	idents []string

	once    sync.Once
	program *vm.Program
	progErr error
}

func Parse(source string) (*Expression, error) {
	tree, err := parser.Parse(source)
	if err != nil {
		return nil, model.Configurationf("parse expression %q: %v", source, err)
	}
	e := &Expression{source: source, node: tree.Node}
	seen := make(map[string]bool)
	_, err = compile(e.node, func(name string) (string, error) {
		if !seen[name] {
			seen[name] = true
			e.idents = append(e.idents, name)
		}
		return name, nil
	})
	if err != nil {
		return nil, model.Configurationf("expression %q: %v", source, err)
	}
	return e, nil
}

func (e *Expression) Source() string {
	return e.source
}

// Identifiers returns the distinct identifiers the expression references, in
// order of first appearance.
func (e *Expression) Identifiers() []string {
	return e.idents
}

// SQL renders the expression as a DuckDB SQL fragment.
func (e *Expression) SQL(resolve Resolver) (string, error) {
	return compile(e.node, resolve)
}

func (e *Expression) MarshalText() ([]byte, error) {
	return []byte(e.source), nil
}

// Evaluate runs the expression against env. A nil input yields nil, as does a
// non-finite numeric result.
func (e *Expression) Evaluate(env map[string]any) (any, error) {
	for _, name := range e.idents {
		if v, ok := env[name]; !ok || v == nil {
			return nil, nil
		}
	}
	e.once.Do(func() {
		e.program, e.progErr = expr.Compile(e.source, expr.AllowUndefinedVariables())
	})
	if e.progErr != nil {
		return nil, model.Configurationf("compile expression %q: %v", e.source, e.progErr)
	}
	out, err := expr.Run(e.program, env)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", e.source, err)
	}
	switch v := out.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, nil
		}
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return out, nil
}
