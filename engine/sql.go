package engine

import (
	"fmt"
	"strings"

	"github.com/gigapi/draftpipe/expression"
	"github.com/gigapi/draftpipe/frame"
	"github.com/gigapi/draftpipe/model"
)

var q = expression.QuoteIdent

func sum(col, alias string) string {
	return fmt.Sprintf("CAST(SUM(%s) AS DOUBLE) AS %s", q(col), q(alias))
}

// groupClause groups by the first n select items. A global sum keeps an empty
// input empty instead of producing one all-null row.
func groupClause(n int) string {
	if n == 0 {
		return " HAVING COUNT(*) > 0"
	}
	pos := make([]string, n)
	for i := range pos {
		pos[i] = fmt.Sprint(i + 1)
	}
	return " GROUP BY " + strings.Join(pos, ", ")
}

// pickSumSQL sums every PICK_SUM column of f by groupbys. A name groupby is
// served by the view's entity column.
func pickSumSQL(f *frame.Frame, groupbys []string, entity string, cols []string) string {
	var sel []string
	for _, gb := range groupbys {
		if gb == model.ColName {
			sel = append(sel, q(entity)+" AS "+q(model.ColName))
			continue
		}
		sel = append(sel, q(gb))
	}
	for _, c := range cols {
		sel = append(sel, sum(c, c))
	}
	return "SELECT " + strings.Join(sel, ", ") + " FROM (" + f.SQL() + ") AS v" + groupClause(len(groupbys))
}

// nameSumSQL sums the per-entity columns of one NAME_SUM metric by the
// non-name groupbys, reshapes the wide sums into one row per entity and,
// unless name is a groupby, sums the entities away again.
func nameSumSQL(f *frame.Frame, groupbys []string, metric string, entities, entityCols []string) string {
	var nonName []string
	nameGrouped := false
	for _, gb := range groupbys {
		if gb == model.ColName {
			nameGrouped = true
			continue
		}
		nonName = append(nonName, q(gb))
	}

	wide := append([]string(nil), nonName...)
	names := make([]string, len(entities))
	values := make([]string, len(entities))
	for i, ent := range entities {
		alias := fmt.Sprintf("__e%d", i)
		wide = append(wide, sum(entityCols[i], alias))
		names[i] = expression.QuoteLiteral(ent)
		values[i] = q(alias)
	}

	long := append([]string(nil), nonName...)
	long = append(long,
		"unnest(["+strings.Join(names, ", ")+"]) AS "+q(model.ColName),
		"unnest(["+strings.Join(values, ", ")+"]) AS "+q(metric),
	)

	var sb strings.Builder
	sb.WriteString("WITH wide AS (SELECT ")
	sb.WriteString(strings.Join(wide, ", "))
	sb.WriteString(" FROM (")
	sb.WriteString(f.SQL())
	sb.WriteString(") AS v")
	sb.WriteString(groupClause(len(nonName)))
	sb.WriteString("), long AS (SELECT ")
	sb.WriteString(strings.Join(long, ", "))
	sb.WriteString(" FROM wide) ")

	if nameGrouped {
		sel := make([]string, 0, len(groupbys)+1)
		for _, gb := range groupbys {
			sel = append(sel, q(gb))
		}
		sel = append(sel, q(metric))
		sb.WriteString("SELECT ")
		sb.WriteString(strings.Join(sel, ", "))
		sb.WriteString(" FROM long")
		return sb.String()
	}
	sel := append(append([]string(nil), nonName...), sum(metric, metric))
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(sel, ", "))
	sb.WriteString(" FROM long")
	sb.WriteString(groupClause(len(nonName)))
	return sb.String()
}

// joinSQL outer joins two partial tables on groupbys, coalescing the keys.
// Null keys pair up. Without groupbys both sides hold at most one row and are
// joined positionally.
func joinSQL(left, right string, groupbys []string) string {
	if len(groupbys) == 0 {
		return fmt.Sprintf("SELECT * FROM %s POSITIONAL JOIN %s", q(left), q(right))
	}
	keys := make([]string, len(groupbys))
	on := make([]string, len(groupbys))
	quoted := make([]string, len(groupbys))
	for i, gb := range groupbys {
		keys[i] = fmt.Sprintf("COALESCE(l.%s, r.%s) AS %s", q(gb), q(gb), q(gb))
		on[i] = fmt.Sprintf("l.%s IS NOT DISTINCT FROM r.%s", q(gb), q(gb))
		quoted[i] = q(gb)
	}
	exclude := " EXCLUDE (" + strings.Join(quoted, ", ") + ")"
	return fmt.Sprintf("SELECT %s, l.*%s, r.*%s FROM %s AS l FULL OUTER JOIN %s AS r ON %s",
		strings.Join(keys, ", "), exclude, exclude, q(left), q(right), strings.Join(on, " AND "))
}

// orderedSQL reads a table ordered by its leading n groupby columns.
func orderedSQL(name string, n int) string {
	s := "SELECT * FROM " + q(name)
	if n == 0 {
		return s
	}
	pos := make([]string, n)
	for i := range pos {
		pos[i] = fmt.Sprint(i + 1)
	}
	return s + " ORDER BY " + strings.Join(pos, ", ")
}
