package main

import (
	"strconv"
	"strings"

	"github.com/xwb1989/sqlparser"
)

// The restricted query shape: projection over named columns or *, an
// optional COUNT(*), and an optional WHERE conjunction of equality
// predicates. Anything else is rejected up front.

// OperandKind discriminates the sides of an equality condition
type OperandKind int

const (
	OperandColumn OperandKind = iota
	OperandText
	OperandInt
)

// Operand is one side of an equality condition: a column reference or a literal
type Operand struct {
	Kind   OperandKind
	Column string
	Text   string
	Int    int64
}

// IsColumn reports whether the operand references a column
func (o Operand) IsColumn() bool {
	return o.Kind == OperandColumn
}

// Condition is one equality predicate of the WHERE conjunction
type Condition struct {
	Left  Operand
	Right Operand
}

// Indexable canonicalizes a condition to (column, literal) when exactly one
// side is a column reference
func (c Condition) Indexable() (column string, literal Operand, ok bool) {
	switch {
	case c.Left.IsColumn() && !c.Right.IsColumn():
		return c.Left.Column, c.Right, true
	case c.Right.IsColumn() && !c.Left.IsColumn():
		return c.Right.Column, c.Left, true
	default:
		return "", Operand{}, false
	}
}

// Query is a parsed SELECT in the supported subset
type Query struct {
	Table      string
	Star       bool
	Count      bool
	Columns    []string
	Conditions []Condition
}

// parseQuery parses a SQL string into the supported SELECT shape
func parseQuery(sql string) (*Query, error) {
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return nil, NewDatabaseError("parse_sql", ErrUnsupportedQuery, map[string]interface{}{
			"sql":   sql,
			"cause": err.Error(),
		})
	}

	selectStmt, ok := stmt.(*sqlparser.Select)
	if !ok {
		return nil, unsupportedQuery(sql, "only SELECT statements are supported")
	}
	if selectStmt.GroupBy != nil || selectStmt.OrderBy != nil ||
		selectStmt.Limit != nil || selectStmt.Having != nil ||
		selectStmt.Distinct != "" {
		return nil, unsupportedQuery(sql, "GROUP BY, ORDER BY, LIMIT, HAVING and DISTINCT are not supported")
	}

	query := &Query{}

	if err := parseProjection(query, selectStmt.SelectExprs, sql); err != nil {
		return nil, err
	}

	table, err := parseFromClause(selectStmt.From, sql)
	if err != nil {
		return nil, err
	}
	query.Table = table

	if selectStmt.Where != nil {
		conditions, err := parseWhereExpr(selectStmt.Where.Expr, sql)
		if err != nil {
			return nil, err
		}
		query.Conditions = conditions
	}

	return query, nil
}

// parseProjection fills in the projected columns, * or COUNT(*)
func parseProjection(query *Query, exprs sqlparser.SelectExprs, sql string) error {
	for _, expr := range exprs {
		switch selectExpr := expr.(type) {
		case *sqlparser.StarExpr:
			query.Star = true
		case *sqlparser.AliasedExpr:
			switch inner := selectExpr.Expr.(type) {
			case *sqlparser.FuncExpr:
				if !strings.EqualFold(inner.Name.String(), "count") {
					return unsupportedQuery(sql, "unsupported function: "+inner.Name.String())
				}
				query.Count = true
			case *sqlparser.ColName:
				query.Columns = append(query.Columns, inner.Name.String())
			default:
				return unsupportedQuery(sql, "unsupported select expression")
			}
		default:
			return unsupportedQuery(sql, "unsupported select expression")
		}
	}

	if !query.Star && !query.Count && len(query.Columns) == 0 {
		return unsupportedQuery(sql, "no columns selected")
	}
	if query.Count && (query.Star || len(query.Columns) > 0) {
		return unsupportedQuery(sql, "COUNT(*) cannot be combined with a column projection")
	}
	return nil
}

// parseFromClause extracts the single table name
func parseFromClause(from sqlparser.TableExprs, sql string) (string, error) {
	if len(from) != 1 {
		return "", unsupportedQuery(sql, "exactly one table is required")
	}
	aliased, ok := from[0].(*sqlparser.AliasedTableExpr)
	if !ok {
		return "", unsupportedQuery(sql, "joins are not supported")
	}
	tableName, ok := aliased.Expr.(sqlparser.TableName)
	if !ok {
		return "", unsupportedQuery(sql, "subqueries are not supported")
	}
	return tableName.Name.String(), nil
}

// parseWhereExpr flattens a conjunction of equality comparisons
func parseWhereExpr(expr sqlparser.Expr, sql string) ([]Condition, error) {
	switch e := expr.(type) {
	case *sqlparser.AndExpr:
		left, err := parseWhereExpr(e.Left, sql)
		if err != nil {
			return nil, err
		}
		right, err := parseWhereExpr(e.Right, sql)
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil
	case *sqlparser.ParenExpr:
		return parseWhereExpr(e.Expr, sql)
	case *sqlparser.ComparisonExpr:
		if e.Operator != sqlparser.EqualStr {
			return nil, unsupportedQuery(sql, "only equality comparisons are supported")
		}
		left, err := parseOperand(e.Left, sql)
		if err != nil {
			return nil, err
		}
		right, err := parseOperand(e.Right, sql)
		if err != nil {
			return nil, err
		}
		return []Condition{{Left: left, Right: right}}, nil
	default:
		return nil, unsupportedQuery(sql, "unsupported WHERE expression")
	}
}

// parseOperand converts one side of a comparison to a column reference or literal
func parseOperand(expr sqlparser.Expr, sql string) (Operand, error) {
	switch e := expr.(type) {
	case *sqlparser.ColName:
		return Operand{Kind: OperandColumn, Column: e.Name.String()}, nil
	case *sqlparser.SQLVal:
		switch e.Type {
		case sqlparser.StrVal:
			return Operand{Kind: OperandText, Text: string(e.Val)}, nil
		case sqlparser.IntVal:
			n, err := strconv.ParseInt(string(e.Val), 10, 64)
			if err != nil {
				return Operand{}, unsupportedQuery(sql, "integer literal out of range")
			}
			return Operand{Kind: OperandInt, Int: n}, nil
		default:
			return Operand{}, unsupportedQuery(sql, "unsupported literal type")
		}
	default:
		return Operand{}, unsupportedQuery(sql, "unsupported comparison operand")
	}
}

func unsupportedQuery(sql, reason string) error {
	return NewDatabaseError("parse_query", ErrUnsupportedQuery, map[string]interface{}{
		"sql":    sql,
		"reason": reason,
	})
}
