package main

import (
	"context"
	"sort"
)

// TableInfo is a resolved user table: its root page, ordered columns and
// any indexes defined over it
type TableInfo struct {
	Name     string
	RootPage int
	SQL      string
	Columns  []Column
	Indexes  []*IndexInfo
}

// ColumnIndex returns the ordinal of a named column, or an error when the
// table has no such column. Column names compare case-insensitively.
func (t *TableInfo) ColumnIndex(name string) (int, error) {
	for _, col := range t.Columns {
		if equalFold(col.Name, name) {
			return col.Index, nil
		}
	}
	return 0, NewDatabaseError("resolve_column", ErrColumnNotFound, map[string]interface{}{
		"table":  t.Name,
		"column": name,
	})
}

// IndexOn returns the index covering the named column, if any
func (t *TableInfo) IndexOn(column string) *IndexInfo {
	for _, idx := range t.Indexes {
		if equalFold(idx.Column, column) {
			return idx
		}
	}
	return nil
}

// IndexInfo is a resolved single-column index
type IndexInfo struct {
	Name     string
	Table    string
	RootPage int
	Column   string
}

// Database is the logical layer over the raw pager: the schema catalog and
// resolved tables/indexes, loaded once and cached.
type Database struct {
	raw   DatabaseRaw
	btree *BTree

	schemas      []SchemaObject
	tables       map[string]*TableInfo
	schemaLoaded bool
}

// NewDatabase opens a database file with functional options
func NewDatabase(filePath string, options ...DatabaseOption) (*Database, error) {
	raw, err := NewDatabaseRaw(filePath, options...)
	if err != nil {
		return nil, err
	}
	return &Database{
		raw:    raw,
		btree:  NewBTree(raw),
		tables: make(map[string]*TableInfo),
	}, nil
}

// LoadSchema loads and caches all schema objects, tables and indexes
func (db *Database) LoadSchema(ctx context.Context) ([]SchemaObject, error) {
	if db.schemaLoaded {
		return db.schemas, nil
	}

	schemas, err := loadSchemaObjects(ctx, db.raw, db.btree)
	if err != nil {
		return nil, err
	}

	tables := make(map[string]*TableInfo)
	for _, schema := range schemas {
		if schema.IsTable() {
			tables[foldName(schema.Name)] = &TableInfo{
				Name:     schema.Name,
				RootPage: schema.RootPage,
				SQL:      schema.SQL,
			}
		}
	}
	for _, schema := range schemas {
		if !schema.IsIndex() || schema.SQL == "" {
			continue
		}
		table, ok := tables[foldName(schema.TblName)]
		if !ok {
			continue
		}
		column, err := parseIndexColumn(schema.SQL)
		if err != nil {
			// An index the planner cannot model (expression index, exotic
			// DDL) is ignored; queries fall back to a table scan.
			continue
		}
		table.Indexes = append(table.Indexes, &IndexInfo{
			Name:     schema.Name,
			Table:    schema.TblName,
			RootPage: schema.RootPage,
			Column:   column,
		})
	}

	db.schemas = schemas
	db.tables = tables
	db.schemaLoaded = true
	return schemas, nil
}

// GetTable resolves a table by name, parsing its column list on first use
func (db *Database) GetTable(ctx context.Context, name string) (*TableInfo, error) {
	if _, err := db.LoadSchema(ctx); err != nil {
		return nil, err
	}

	table, ok := db.tables[foldName(name)]
	if !ok {
		return nil, NewDatabaseError("get_table", ErrTableNotFound, map[string]interface{}{
			"table_name": name,
		})
	}

	if table.Columns == nil {
		columns, err := parseTableColumns(table.SQL)
		if err != nil {
			return nil, err
		}
		table.Columns = columns
	}
	return table, nil
}

// UserTableNames returns the names of all user tables, sorted ascending
func (db *Database) UserTableNames(ctx context.Context) ([]string, error) {
	if _, err := db.LoadSchema(ctx); err != nil {
		return nil, err
	}

	var names []string
	for _, schema := range db.schemas {
		if schema.IsTable() && !schema.IsInternal() {
			names = append(names, schema.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// UserTableCount counts the user tables in the catalog
func (db *Database) UserTableCount(ctx context.Context) (int, error) {
	names, err := db.UserTableNames(ctx)
	if err != nil {
		return 0, err
	}
	return len(names), nil
}

// PageSize returns the database page size
func (db *Database) PageSize() int {
	return db.raw.PageSize()
}

// Encoding returns the database text encoding
func (db *Database) Encoding() TextEncoding {
	return db.raw.Encoding()
}

// Close closes the database
func (db *Database) Close() error {
	return db.raw.Close()
}
