package main

import (
	"regexp"
	"strings"

	"github.com/xwb1989/sqlparser"
)

// Parsing of stored CREATE TABLE / CREATE INDEX texts. The statements go
// through sqlparser after normalizing SQLite syntax to the MySQL dialect it
// accepts; declarations sqlparser still rejects (typeless columns) fall back
// to a token scanner over the parenthesized definition list.

// parseTableColumns extracts the ordered column names from a stored
// CREATE TABLE statement
func parseTableColumns(schemaSQL string) ([]Column, error) {
	if strings.TrimSpace(schemaSQL) == "" {
		return nil, NewDatabaseError("parse_table_columns", ErrSchemaCorrupt, map[string]interface{}{
			"reason": "empty table sql",
		})
	}

	normalized := normalizeSQLiteToMySQL(schemaSQL)

	stmt, err := sqlparser.Parse(normalized)
	if err == nil {
		if ddl, ok := stmt.(*sqlparser.DDL); ok && ddl.Action == sqlparser.CreateStr && ddl.TableSpec != nil {
			columns := make([]Column, len(ddl.TableSpec.Columns))
			for i, col := range ddl.TableSpec.Columns {
				columns[i] = Column{
					Name:  col.Name.String(),
					Type:  col.Type.Type,
					Index: i,
				}
			}
			return columns, nil
		}
	}

	return scanTableColumns(schemaSQL)
}

// parseIndexColumn extracts the indexed column from a stored CREATE INDEX
// statement: the last identifier of the parenthesized column list. A last
// entry that is an expression rather than a column is rejected.
func parseIndexColumn(indexSQL string) (string, error) {
	indexSQL = stripSQLComments(indexSQL)
	open := strings.Index(indexSQL, "(")
	closing := strings.LastIndex(indexSQL, ")")
	if open < 0 || closing <= open {
		return "", NewDatabaseError("parse_index_column", ErrSchemaCorrupt, map[string]interface{}{
			"index_sql": indexSQL,
		})
	}

	parts := splitTopLevel(indexSQL[open+1 : closing])
	if len(parts) == 0 {
		return "", NewDatabaseError("parse_index_column", ErrSchemaCorrupt, map[string]interface{}{
			"index_sql": indexSQL,
		})
	}

	column, rest := firstIdentifier(strings.TrimSpace(parts[len(parts)-1]))
	rest = strings.TrimSpace(rest)
	if column == "" || (rest != "" && !isIdentChar(rest[0])) {
		return "", NewDatabaseError("parse_index_column", ErrSchemaCorrupt, map[string]interface{}{
			"index_sql": indexSQL,
		})
	}
	return column, nil
}

var (
	autoincrementRe = regexp.MustCompile(`(?i)\bprimary\s+key\s+autoincrement\b`)
	// Identifiers that are valid bare in SQLite but reserved for sqlparser.
	// Quoting words that double as syntax (KEY, ORDER) would corrupt the
	// statement, so only standalone-safe ones are listed.
	reservedIdentRe = regexp.MustCompile("(?i)(^|[^`\\w])(domain)([^`\\w]|$)")
)

// normalizeSQLiteToMySQL converts SQLite DDL syntax into the MySQL dialect
// sqlparser understands
func normalizeSQLiteToMySQL(sql string) string {
	normalized := stripSQLComments(sql)
	// SQLite quotes identifiers with double quotes; MySQL uses backticks.
	normalized = strings.ReplaceAll(normalized, `"`, "`")
	normalized = autoincrementRe.ReplaceAllString(normalized, "AUTO_INCREMENT PRIMARY KEY")
	normalized = reservedIdentRe.ReplaceAllString(normalized, "$1`$2`$3")
	return strings.TrimSpace(normalized)
}

// stripSQLComments removes -- line comments and /* */ block comments,
// leaving string literals and quoted identifiers intact
func stripSQLComments(sql string) string {
	var out strings.Builder
	var quote byte

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		if quote != 0 {
			out.WriteByte(c)
			if c == quote || (quote == '[' && c == ']') {
				quote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"' || c == '`' || c == '[':
			quote = c
			out.WriteByte(c)
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
			out.WriteByte('\n')
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			i += 2
			for i+1 < len(sql) && !(sql[i] == '*' && sql[i+1] == '/') {
				i++
			}
			i++ // consume the closing '/'
			out.WriteByte(' ')
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}

// scanTableColumns is the fallback column extractor: it scans the
// parenthesized definition list directly
func scanTableColumns(schemaSQL string) ([]Column, error) {
	schemaSQL = stripSQLComments(schemaSQL)
	open := strings.Index(schemaSQL, "(")
	closing := strings.LastIndex(schemaSQL, ")")
	if open < 0 || closing <= open {
		return nil, NewDatabaseError("scan_table_columns", ErrSchemaCorrupt, map[string]interface{}{
			"table_sql": schemaSQL,
		})
	}

	var columns []Column
	for _, def := range splitTopLevel(schemaSQL[open+1 : closing]) {
		def = strings.TrimSpace(def)
		if def == "" {
			continue
		}

		name, rest := firstIdentifier(def)
		if name == "" {
			return nil, NewDatabaseError("scan_table_columns", ErrSchemaCorrupt, map[string]interface{}{
				"definition": def,
			})
		}
		// Table-level constraints are not columns.
		if !strings.HasPrefix(def, `"`) && !strings.HasPrefix(def, "`") && !strings.HasPrefix(def, "[") {
			switch strings.ToUpper(name) {
			case "PRIMARY", "UNIQUE", "CHECK", "FOREIGN", "CONSTRAINT":
				continue
			}
		}

		typeName, _ := firstIdentifier(strings.TrimSpace(rest))
		columns = append(columns, Column{
			Name:  name,
			Type:  typeName,
			Index: len(columns),
		})
	}

	if len(columns) == 0 {
		return nil, NewDatabaseError("scan_table_columns", ErrSchemaCorrupt, map[string]interface{}{
			"table_sql": schemaSQL,
		})
	}
	return columns, nil
}

// splitTopLevel splits on commas that are not nested inside parentheses or
// quoted identifiers/strings
func splitTopLevel(s string) []string {
	var parts []string
	var depth int
	var quote byte
	start := 0

	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote || (quote == '[' && c == ']') {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`', '[':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// firstIdentifier reads a leading identifier, bare or quoted, and returns it
// with the remainder of the string
func firstIdentifier(s string) (string, string) {
	if s == "" {
		return "", ""
	}

	switch s[0] {
	case '"', '`':
		quote := s[0]
		for i := 1; i < len(s); i++ {
			if s[i] == quote {
				return s[1:i], s[i+1:]
			}
		}
		return "", ""
	case '[':
		for i := 1; i < len(s); i++ {
			if s[i] == ']' {
				return s[1:i], s[i+1:]
			}
		}
		return "", ""
	}

	i := 0
	for i < len(s) && (isIdentChar(s[i])) {
		i++
	}
	return s[:i], s[i:]
}

func isIdentChar(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func foldName(s string) string {
	return strings.ToLower(s)
}

func equalFold(a, b string) bool {
	return strings.EqualFold(a, b)
}
