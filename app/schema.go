package main

import (
	"context"
	"strings"
)

// SchemaObject is one row of the sqlite_schema catalog
type SchemaObject struct {
	Type     string // "table", "index", "view", "trigger"
	Name     string
	TblName  string
	RootPage int
	SQL      string
}

// IsTable reports whether the object is a table
func (s *SchemaObject) IsTable() bool {
	return s.Type == "table"
}

// IsIndex reports whether the object is an index
func (s *SchemaObject) IsIndex() bool {
	return s.Type == "index"
}

// IsInternal reports whether the object belongs to SQLite itself
// (sqlite_sequence, sqlite_autoindex_*, ...)
func (s *SchemaObject) IsInternal() bool {
	return strings.HasPrefix(s.Name, "sqlite_")
}

// schemaRootPage is where the sqlite_schema B-tree always lives.
const schemaRootPage = 1

// loadSchemaObjects walks the schema B-tree on page 1 and decodes every
// catalog row, validating the five-field shape.
func loadSchemaObjects(ctx context.Context, raw DatabaseRaw, btree *BTree) ([]SchemaObject, error) {
	encoding := raw.Encoding()

	var objects []SchemaObject
	for cell, err := range btree.TableCells(ctx, schemaRootPage) {
		if err != nil {
			return nil, err
		}

		payload, err := raw.AssemblePayload(ctx, cell.LocalPayload, cell.OverflowPage, cell.PayloadSize)
		if err != nil {
			return nil, err
		}
		record, err := parseRecord(payload)
		if err != nil {
			return nil, err
		}

		object, err := schemaObjectFromRecord(record, encoding)
		if err != nil {
			return nil, err
		}
		objects = append(objects, *object)
	}

	return objects, nil
}

// schemaObjectFromRecord validates and decodes one catalog record:
// type, name, tbl_name, root_page, sql
func schemaObjectFromRecord(record Record, encoding TextEncoding) (*SchemaObject, error) {
	if len(record) != 5 {
		return nil, NewDatabaseError("parse_schema_record", ErrSchemaCorrupt, map[string]interface{}{
			"field_count": len(record),
		})
	}
	if record[0].Type() != ValueTypeText ||
		record[1].Type() != ValueTypeText ||
		record[2].Type() != ValueTypeText {
		return nil, NewDatabaseError("parse_schema_record", ErrSchemaCorrupt, map[string]interface{}{
			"reason": "type, name and tbl_name must be text",
		})
	}
	if record[3].Type() != ValueTypeInteger {
		return nil, NewDatabaseError("parse_schema_record", ErrSchemaCorrupt, map[string]interface{}{
			"reason": "root_page must be an integer",
		})
	}

	objectType, err := record[0].Text(encoding)
	if err != nil {
		return nil, err
	}
	name, err := record[1].Text(encoding)
	if err != nil {
		return nil, err
	}
	tblName, err := record[2].Text(encoding)
	if err != nil {
		return nil, err
	}
	rootPage, err := record[3].Int64()
	if err != nil {
		return nil, err
	}

	// The sql field is NULL for objects without stored DDL (auto-indexes).
	var sql string
	if !record[4].IsNull() {
		if record[4].Type() != ValueTypeText {
			return nil, NewDatabaseError("parse_schema_record", ErrSchemaCorrupt, map[string]interface{}{
				"reason": "sql must be text or NULL",
			})
		}
		sql, err = record[4].Text(encoding)
		if err != nil {
			return nil, err
		}
	}

	return &SchemaObject{
		Type:     objectType,
		Name:     name,
		TblName:  tblName,
		RootPage: int(rootPage),
		SQL:      sql,
	}, nil
}
