package ast

import "github.com/tinybase/tinybase/tsql/lexer"

// Literal represents a string, number, or NULL value
type Literal struct {
	Value string
	Kind  lexer.Kind
}

// IsNull reports whether the literal is the NULL keyword.
func (l Literal) IsNull() bool {
	return l.Kind == lexer.TokenNull
}

// WhereClause is a single-column comparison filter
type WhereClause struct {
	Column   string
	Operator string
	Value    Literal
}

// SetClause assigns a value to a column in an UPDATE
type SetClause struct {
	Column string
	Value  Literal
}
