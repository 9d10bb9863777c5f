package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"iter"
	"strconv"
)

// Executor runs parsed queries against the logical database: it resolves the
// table and its indexes, picks between index-driven lookups and a linear
// scan, filters on the WHERE conjunction and projects the selected columns.
type Executor struct {
	db *Database
}

// NewExecutor creates a query executor
func NewExecutor(db *Database) *Executor {
	return &Executor{db: db}
}

// Count executes a COUNT(*) query
func (ex *Executor) Count(ctx context.Context, query *Query) (int64, error) {
	table, err := ex.db.GetTable(ctx, query.Table)
	if err != nil {
		return 0, err
	}

	// Without predicates the leaf cells can be counted without
	// materializing any records.
	if len(query.Conditions) == 0 {
		var count int64
		for _, err := range ex.db.btree.TableCells(ctx, table.RootPage) {
			if err != nil {
				return 0, err
			}
			count++
		}
		return count, nil
	}

	rows, err := ex.matchedRows(ctx, table, query.Conditions)
	if err != nil {
		return 0, err
	}
	var count int64
	for _, err := range rows {
		if err != nil {
			return 0, err
		}
		count++
	}
	return count, nil
}

// Rows executes a column projection query and streams the result rows as
// decoded text fields
func (ex *Executor) Rows(ctx context.Context, query *Query) (iter.Seq2[[]string, error], error) {
	table, err := ex.db.GetTable(ctx, query.Table)
	if err != nil {
		return nil, err
	}

	selected, err := ex.resolveProjection(table, query)
	if err != nil {
		return nil, err
	}

	rows, err := ex.matchedRows(ctx, table, query.Conditions)
	if err != nil {
		return nil, err
	}

	encoding := ex.db.Encoding()
	return func(yield func([]string, error) bool) {
		for row, err := range rows {
			if err != nil {
				yield(nil, err)
				return
			}
			fields, err := projectRow(row, selected, encoding)
			if !yield(fields, err) || err != nil {
				return
			}
		}
	}, nil
}

// resolveProjection maps the projected column names to ordinals
func (ex *Executor) resolveProjection(table *TableInfo, query *Query) ([]int, error) {
	if query.Star {
		selected := make([]int, len(table.Columns))
		for i := range table.Columns {
			selected[i] = i
		}
		return selected, nil
	}

	selected := make([]int, len(query.Columns))
	for i, name := range query.Columns {
		idx, err := table.ColumnIndex(name)
		if err != nil {
			return nil, err
		}
		selected[i] = idx
	}
	return selected, nil
}

// matchedRow is one table row that survived the WHERE filter
type matchedRow struct {
	cell   *TableLeafCell
	record Record
}

// matchedRows streams the table rows matching every condition. Candidate
// cells come from any usable index (intersected by rowid when several
// indexes fire) or from a full scan; each candidate is then materialized and
// checked against the full conjunction.
func (ex *Executor) matchedRows(ctx context.Context, table *TableInfo, conditions []Condition) (iter.Seq2[matchedRow, error], error) {
	candidates, err := ex.candidateCells(ctx, table, conditions)
	if err != nil {
		return nil, err
	}

	encoding := ex.db.Encoding()
	return func(yield func(matchedRow, error) bool) {
		for cell, err := range candidates {
			if err != nil {
				yield(matchedRow{}, err)
				return
			}

			payload, err := ex.db.raw.AssemblePayload(ctx, cell.LocalPayload, cell.OverflowPage, cell.PayloadSize)
			if err != nil {
				yield(matchedRow{}, err)
				return
			}
			record, err := parseRecord(payload)
			if err != nil {
				yield(matchedRow{}, err)
				return
			}

			matches, err := matchesConditions(record, table, conditions, encoding)
			if err != nil {
				yield(matchedRow{}, err)
				return
			}
			if !matches {
				continue
			}
			if !yield(matchedRow{cell: cell, record: record}, nil) {
				return
			}
		}
	}, nil
}

// candidateCells resolves the candidate leaf cells for the given conditions.
// Output order follows the first firing index, or ascending rowid on a scan.
func (ex *Executor) candidateCells(ctx context.Context, table *TableInfo, conditions []Condition) (iter.Seq2[*TableLeafCell, error], error) {
	var groups [][]*TableLeafCell

	for _, cond := range conditions {
		column, literal, ok := cond.Indexable()
		if !ok {
			continue
		}
		index := table.IndexOn(column)
		if index == nil {
			continue
		}

		probe, err := ex.probeFor(literal)
		if err != nil {
			return nil, err
		}

		var cells []*TableLeafCell
		for rowid, err := range ex.db.btree.RowidsForValue(ctx, index.RootPage, probe) {
			if err != nil {
				return nil, err
			}
			cell, err := ex.db.btree.FindByRowid(ctx, table.RootPage, rowid)
			if err != nil {
				return nil, err
			}
			if cell != nil {
				cells = append(cells, cell)
			}
		}
		groups = append(groups, cells)
	}

	if len(groups) == 0 {
		return ex.db.btree.TableCells(ctx, table.RootPage), nil
	}

	result := groups[0]
	for _, group := range groups[1:] {
		rowids := make(map[int64]struct{}, len(group))
		for _, cell := range group {
			rowids[cell.Rowid] = struct{}{}
		}
		var intersected []*TableLeafCell
		for _, cell := range result {
			if _, ok := rowids[cell.Rowid]; ok {
				intersected = append(intersected, cell)
			}
		}
		result = intersected
	}

	return func(yield func(*TableLeafCell, error) bool) {
		for _, cell := range result {
			if !yield(cell, nil) {
				return
			}
		}
	}, nil
}

// probeFor encodes a literal operand as an index lookup value
func (ex *Executor) probeFor(literal Operand) (IndexProbe, error) {
	switch literal.Kind {
	case OperandInt:
		return IndexProbe{Int: literal.Int, IsInt: true}, nil
	case OperandText:
		encoded, err := encodeText(literal.Text, ex.db.Encoding())
		if err != nil {
			return IndexProbe{}, err
		}
		return IndexProbe{Text: encoded}, nil
	default:
		return IndexProbe{}, NewDatabaseError("encode_probe", ErrUnsupportedQuery, map[string]interface{}{
			"reason": "column operand cannot drive an index lookup",
		})
	}
}

// matchesConditions evaluates the full conjunction against one record
func matchesConditions(record Record, table *TableInfo, conditions []Condition, encoding TextEncoding) (bool, error) {
	for _, cond := range conditions {
		left, err := operandValue(cond.Left, record, table, encoding)
		if err != nil {
			return false, err
		}
		right, err := operandValue(cond.Right, record, table, encoding)
		if err != nil {
			return false, err
		}
		if !valuesEqual(left, right) {
			return false, nil
		}
	}
	return true, nil
}

// operandValue resolves an operand to a value: column references read the
// record at the column's ordinal, literals become ad-hoc values
func operandValue(op Operand, record Record, table *TableInfo, encoding TextEncoding) (SQLiteValue, error) {
	switch op.Kind {
	case OperandColumn:
		idx, err := table.ColumnIndex(op.Column)
		if err != nil {
			return SQLiteValue{}, err
		}
		if idx >= len(record) {
			// Short record: trailing columns were added after the row was
			// written and read as NULL.
			return NewSQLiteValue(SerialTypeNull, nil), nil
		}
		return record[idx], nil
	case OperandText:
		encoded, err := encodeText(op.Text, encoding)
		if err != nil {
			return SQLiteValue{}, err
		}
		return NewSQLiteValue(uint64(13+2*len(encoded)), encoded), nil
	case OperandInt:
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(op.Int))
		return NewSQLiteValue(SerialTypeInt64, buf[:]), nil
	default:
		return SQLiteValue{}, NewDatabaseError("operand_value", ErrUnsupportedQuery, nil)
	}
}

// valuesEqual applies the engine's equality rules: NULL equals nothing,
// numerics compare by value, text and blobs compare byte-wise
func valuesEqual(a, b SQLiteValue) bool {
	if a.IsNull() || b.IsNull() {
		return false
	}

	aNumeric := a.Type() == ValueTypeInteger || a.Type() == ValueTypeFloat
	bNumeric := b.Type() == ValueTypeInteger || b.Type() == ValueTypeFloat
	if aNumeric != bNumeric {
		return false
	}
	if aNumeric {
		av, errA := a.Float64()
		bv, errB := b.Float64()
		return errA == nil && errB == nil && av == bv
	}
	return bytes.Equal(a.Raw(), b.Raw())
}

// projectRow renders the selected columns of one matched row as text.
// A stored NULL in the first column is the rowid-alias case: tables with an
// INTEGER PRIMARY KEY store NULL there and the rowid carries the value.
func projectRow(row matchedRow, selected []int, encoding TextEncoding) ([]string, error) {
	fields := make([]string, len(selected))
	for i, idx := range selected {
		if idx >= len(row.record) {
			fields[i] = ""
			continue
		}
		value := row.record[idx]
		if value.IsNull() && idx == 0 {
			fields[i] = strconv.FormatInt(row.cell.Rowid, 10)
			continue
		}
		text, err := value.Text(encoding)
		if err != nil {
			return nil, err
		}
		fields[i] = text
	}
	return fields, nil
}
