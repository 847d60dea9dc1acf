package btree

import "github.com/tinybase/tinybase/internal/record"

// Column is one column of a table schema.
type Column struct {
	Name      string
	Type      record.SchemaDataType
	Attribute record.ColumnAttribute
}

// Schema describes a table: its name and ordered columns. The first column
// is always the INT primary key.
type Schema struct {
	TableName string
	Columns   []Column
}

// ColumnIndex returns the ordinal of a column, or -1 when unknown.
func (s *Schema) ColumnIndex(name string) int {
	for i, column := range s.Columns {
		if column.Name == name {
			return i
		}
	}
	return -1
}

// Column returns the definition of a named column.
func (s *Schema) Column(name string) (Column, bool) {
	index := s.ColumnIndex(name)
	if index < 0 {
		return Column{}, false
	}
	return s.Columns[index], true
}

// IsPrimaryKey reports whether the named column is the primary key.
func (s *Schema) IsPrimaryKey(name string) bool {
	return len(s.Columns) > 0 && s.Columns[0].Name == name
}

// ColumnNames returns the column names in ordinal order.
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, column := range s.Columns {
		names[i] = column.Name
	}
	return names
}
