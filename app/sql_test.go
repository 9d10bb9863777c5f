package main

import (
	"errors"
	"testing"
)

func TestParseQueryCount(t *testing.T) {
	query, err := parseQuery("SELECT COUNT(*) FROM apples")
	if err != nil {
		t.Fatalf("parseQuery() error = %v", err)
	}
	if !query.Count {
		t.Errorf("Count = false, want true")
	}
	if query.Table != "apples" {
		t.Errorf("Table = %q, want apples", query.Table)
	}
	if len(query.Conditions) != 0 {
		t.Errorf("Conditions = %d, want 0", len(query.Conditions))
	}
}

func TestParseQueryColumns(t *testing.T) {
	query, err := parseQuery("SELECT name, color FROM apples")
	if err != nil {
		t.Fatalf("parseQuery() error = %v", err)
	}
	if query.Count || query.Star {
		t.Errorf("Count/Star should be false")
	}
	if len(query.Columns) != 2 || query.Columns[0] != "name" || query.Columns[1] != "color" {
		t.Errorf("Columns = %v", query.Columns)
	}
}

func TestParseQueryStar(t *testing.T) {
	query, err := parseQuery("SELECT * FROM oranges")
	if err != nil {
		t.Fatalf("parseQuery() error = %v", err)
	}
	if !query.Star {
		t.Errorf("Star = false, want true")
	}
}

func TestParseQueryWhere(t *testing.T) {
	query, err := parseQuery("SELECT name FROM apples WHERE color = 'Yellow'")
	if err != nil {
		t.Fatalf("parseQuery() error = %v", err)
	}
	if len(query.Conditions) != 1 {
		t.Fatalf("Conditions = %d, want 1", len(query.Conditions))
	}

	cond := query.Conditions[0]
	column, literal, ok := cond.Indexable()
	if !ok {
		t.Fatalf("condition should be indexable")
	}
	if column != "color" {
		t.Errorf("column = %q, want color", column)
	}
	if literal.Kind != OperandText || literal.Text != "Yellow" {
		t.Errorf("literal = %+v, want text Yellow", literal)
	}
}

func TestParseQueryWhereConjunction(t *testing.T) {
	query, err := parseQuery("SELECT id FROM t WHERE a = 'x' AND b = 7 AND c = d")
	if err != nil {
		t.Fatalf("parseQuery() error = %v", err)
	}
	if len(query.Conditions) != 3 {
		t.Fatalf("Conditions = %d, want 3", len(query.Conditions))
	}

	if _, literal, ok := query.Conditions[1].Indexable(); !ok || literal.Kind != OperandInt || literal.Int != 7 {
		t.Errorf("second condition literal = %+v, want int 7", literal)
	}

	// Column-to-column equality is not indexable; it falls to the post-filter.
	if _, _, ok := query.Conditions[2].Indexable(); ok {
		t.Errorf("column = column condition should not be indexable")
	}
}

func TestParseQueryReversedOperands(t *testing.T) {
	query, err := parseQuery("SELECT id FROM t WHERE 'x' = a")
	if err != nil {
		t.Fatalf("parseQuery() error = %v", err)
	}
	column, literal, ok := query.Conditions[0].Indexable()
	if !ok || column != "a" || literal.Text != "x" {
		t.Errorf("canonicalized condition = %q %+v", column, literal)
	}
}

func TestParseQueryUnsupported(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"insert", "INSERT INTO t (a) VALUES (1)"},
		{"update", "UPDATE t SET a = 1"},
		{"delete", "DELETE FROM t"},
		{"order by", "SELECT a FROM t ORDER BY a"},
		{"group by", "SELECT a FROM t GROUP BY a"},
		{"limit", "SELECT a FROM t LIMIT 5"},
		{"inequality", "SELECT a FROM t WHERE a > 3"},
		{"or", "SELECT a FROM t WHERE a = 1 OR a = 2"},
		{"join", "SELECT a FROM t, u"},
		{"sum", "SELECT SUM(a) FROM t"},
		{"garbage", "not sql at all"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseQuery(tt.sql); !errors.Is(err, ErrUnsupportedQuery) {
				t.Errorf("parseQuery(%q) error = %v, want ErrUnsupportedQuery", tt.sql, err)
			}
		})
	}
}
