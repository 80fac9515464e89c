package expression

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/expr-lang/expr/ast"
)

var comparisons = map[string]string{
	"==": "=",
	"!=": "<>",
	"<":  "<",
	">":  ">",
	"<=": "<=",
	">=": ">=",
	"+":  "+",
	"-":  "-",
	"*":  "*",
	"%":  "%",
}

var logical = map[string]string{
	"and": "AND",
	"&&":  "AND",
	"or":  "OR",
	"||":  "OR",
}

var stringFuncs = map[string]string{
	"contains":   "contains",
	"startsWith": "starts_with",
	"endsWith":   "ends_with",
	"matches":    "regexp_matches",
}

var builtins = map[string]string{
	"min":   "LEAST",
	"max":   "GREATEST",
	"abs":   "ABS",
	"round": "ROUND",
	"floor": "FLOOR",
	"ceil":  "CEIL",
	"lower": "LOWER",
	"upper": "UPPER",
	"len":   "LENGTH",
}

func compile(node ast.Node, resolve Resolver) (string, error) {
	switch n := node.(type) {
	case *ast.NilNode:
		return "NULL", nil
	case *ast.IdentifierNode:
		return resolve(n.Value)
	case *ast.IntegerNode:
		return strconv.Itoa(n.Value), nil
	case *ast.FloatNode:
		return strconv.FormatFloat(n.Value, 'g', -1, 64), nil
	case *ast.BoolNode:
		if n.Value {
			return "TRUE", nil
		}
		return "FALSE", nil
	case *ast.StringNode:
		return QuoteLiteral(n.Value), nil
	case *ast.ConstantNode:
		return constant(n.Value)
	case *ast.UnaryNode:
		return compileUnary(n, resolve)
	case *ast.BinaryNode:
		return compileBinary(n, resolve)
	case *ast.ConditionalNode:
		parts, err := compileAll(resolve, n.Cond, n.Exp1, n.Exp2)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(CASE WHEN %s THEN %s ELSE %s END)", parts[0], parts[1], parts[2]), nil
	case *ast.BuiltinNode:
		return compileCall(n.Name, n.Arguments, resolve)
	case *ast.CallNode:
		callee, ok := n.Callee.(*ast.IdentifierNode)
		if !ok {
			return "", fmt.Errorf("unsupported call %s", n.String())
		}
		return compileCall(callee.Value, n.Arguments, resolve)
	case *ast.ArrayNode:
		return "", fmt.Errorf("array literal %s is only allowed on the right of 'in'", n.String())
	}
	return "", fmt.Errorf("unsupported expression %s", node.String())
}

func compileAll(resolve Resolver, nodes ...ast.Node) ([]string, error) {
	res := make([]string, len(nodes))
	for i, n := range nodes {
		s, err := compile(n, resolve)
		if err != nil {
			return nil, err
		}
		res[i] = s
	}
	return res, nil
}

func compileUnary(n *ast.UnaryNode, resolve Resolver) (string, error) {
	inner, err := compile(n.Node, resolve)
	if err != nil {
		return "", err
	}
	switch n.Operator {
	case "not", "!":
		return "(NOT " + inner + ")", nil
	case "-":
		return "(-" + inner + ")", nil
	case "+":
		return inner, nil
	}
	return "", fmt.Errorf("unsupported unary operator %q", n.Operator)
}

func compileBinary(n *ast.BinaryNode, resolve Resolver) (string, error) {
	if n.Operator == "==" || n.Operator == "!=" {
		if s, ok, err := compileNilCheck(n, resolve); ok || err != nil {
			return s, err
		}
	}
	if n.Operator == "in" {
		return compileIn(n, resolve)
	}
	parts, err := compileAll(resolve, n.Left, n.Right)
	if err != nil {
		return "", err
	}
	l, r := parts[0], parts[1]
	if op, ok := comparisons[n.Operator]; ok {
		return fmt.Sprintf("(%s %s %s)", l, op, r), nil
	}
	if op, ok := logical[n.Operator]; ok {
		return fmt.Sprintf("(%s %s %s)", l, op, r), nil
	}
	if fn, ok := stringFuncs[n.Operator]; ok {
		return fmt.Sprintf("%s(%s, %s)", fn, l, r), nil
	}
	switch n.Operator {
	case "/":
		return fmt.Sprintf("(%s / NULLIF(%s, 0))", l, r), nil
	case "**", "^":
		return fmt.Sprintf("POWER(%s, %s)", l, r), nil
	case "??":
		return fmt.Sprintf("COALESCE(%s, %s)", l, r), nil
	}
	return "", fmt.Errorf("unsupported operator %q", n.Operator)
}

func compileNilCheck(n *ast.BinaryNode, resolve Resolver) (string, bool, error) {
	var other ast.Node
	if _, ok := n.Right.(*ast.NilNode); ok {
		other = n.Left
	} else if _, ok := n.Left.(*ast.NilNode); ok {
		other = n.Right
	} else {
		return "", false, nil
	}
	s, err := compile(other, resolve)
	if err != nil {
		return "", true, err
	}
	if n.Operator == "==" {
		return "(" + s + " IS NULL)", true, nil
	}
	return "(" + s + " IS NOT NULL)", true, nil
}

func compileIn(n *ast.BinaryNode, resolve Resolver) (string, error) {
	arr, ok := n.Right.(*ast.ArrayNode)
	if !ok {
		return "", fmt.Errorf("'in' needs an array literal, got %s", n.Right.String())
	}
	if len(arr.Nodes) == 0 {
		return "FALSE", nil
	}
	l, err := compile(n.Left, resolve)
	if err != nil {
		return "", err
	}
	items, err := compileAll(resolve, arr.Nodes...)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s IN (%s))", l, strings.Join(items, ", ")), nil
}

func compileCall(name string, args []ast.Node, resolve Resolver) (string, error) {
	fn, ok := builtins[name]
	if !ok {
		return "", fmt.Errorf("unsupported function %q", name)
	}
	parts, err := compileAll(resolve, args...)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s(%s)", fn, strings.Join(parts, ", ")), nil
}

func constant(v any) (string, error) {
	switch c := v.(type) {
	case nil:
		return "NULL", nil
	case int:
		return strconv.Itoa(c), nil
	case int64:
		return strconv.FormatInt(c, 10), nil
	case float64:
		return strconv.FormatFloat(c, 'g', -1, 64), nil
	case bool:
		if c {
			return "TRUE", nil
		}
		return "FALSE", nil
	case string:
		return QuoteLiteral(c), nil
	}
	return "", fmt.Errorf("unsupported constant %v", v)
}

// QuoteIdent quotes a SQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral quotes a SQL string literal.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
