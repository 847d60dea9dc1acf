package tsql

import (
	"fmt"
	"strings"

	"github.com/tinybase/tinybase/tsql/ast"
	"github.com/tinybase/tinybase/tsql/lexer"
)

// Parse parses a single TinySQL statement without its terminating semicolon.
func Parse(sql string) (ast.Statement, error) {
	scan, err := newScanner(sql)
	if err != nil {
		return nil, err
	}

	var stmt ast.Statement

	switch scan.peek().Kind {
	case lexer.TokenCreate:
		stmt, err = parseCreateTable(scan, sql)
	case lexer.TokenInsert:
		stmt, err = parseInsert(scan)
	case lexer.TokenSelect:
		stmt, err = parseSelect(scan)
	case lexer.TokenUpdate:
		stmt, err = parseUpdate(scan)
	case lexer.TokenDelete:
		stmt, err = parseDelete(scan)
	case lexer.TokenDrop:
		stmt, err = parseDropTable(scan)
	case lexer.TokenShow:
		stmt, err = parseShowTables(scan)
	case lexer.TokenExit:
		scan.next()
		stmt = &ast.ExitStatement{}
	default:
		return nil, fmt.Errorf("unrecognized statement: %s", scan.peek())
	}

	if err != nil {
		return nil, err
	}

	if _, err := scan.expect(lexer.TokenEOF); err != nil {
		return nil, fmt.Errorf("trailing input: %s", scan.peek())
	}

	return stmt, nil
}

func parseCreateTable(scan *scanner, raw string) (*ast.CreateTableStatement, error) {
	scan.next()
	if _, err := scan.expect(lexer.TokenTable); err != nil {
		return nil, err
	}

	name, err := scan.expect(lexer.TokenIdentifier)
	if err != nil {
		return nil, err
	}

	if _, err := scan.expect(lexer.TokenOpenParen); err != nil {
		return nil, err
	}

	var columns []ast.ColumnDefinition
	for {
		column, err := parseColumnDefinition(scan)
		if err != nil {
			return nil, err
		}
		columns = append(columns, column)

		if !scan.accept(lexer.TokenComma) {
			break
		}
	}

	if _, err := scan.expect(lexer.TokenCloseParen); err != nil {
		return nil, err
	}

	first := columns[0]
	if !first.PrimaryKey || strings.ToUpper(first.Type) != "INT" {
		return nil, fmt.Errorf("first column of %s must be INT PRIMARY KEY", name.Text)
	}
	for _, column := range columns[1:] {
		if column.PrimaryKey {
			return nil, fmt.Errorf("column %s: only the first column may be the primary key", column.Name)
		}
	}

	return &ast.CreateTableStatement{
		TableName: name.Text,
		Columns:   columns,
		RawText:   raw,
	}, nil
}

func parseColumnDefinition(scan *scanner) (ast.ColumnDefinition, error) {
	name, err := scan.expect(lexer.TokenIdentifier)
	if err != nil {
		return ast.ColumnDefinition{}, err
	}

	typeName, err := scan.expect(lexer.TokenIdentifier)
	if err != nil {
		return ast.ColumnDefinition{}, err
	}

	column := ast.ColumnDefinition{
		Name: name.Text,
		Type: typeName.Text,
	}

	switch scan.peek().Kind {
	case lexer.TokenPrimary:
		scan.next()
		if _, err := scan.expect(lexer.TokenKey); err != nil {
			return ast.ColumnDefinition{}, err
		}
		column.PrimaryKey = true
	case lexer.TokenNot:
		scan.next()
		if _, err := scan.expect(lexer.TokenNull); err != nil {
			return ast.ColumnDefinition{}, err
		}
		column.NotNull = true
	}

	return column, nil
}

func parseInsert(scan *scanner) (*ast.InsertStatement, error) {
	scan.next()
	if _, err := scan.expect(lexer.TokenInto); err != nil {
		return nil, err
	}
	if _, err := scan.expect(lexer.TokenTable); err != nil {
		return nil, err
	}

	name, err := scan.expect(lexer.TokenIdentifier)
	if err != nil {
		return nil, err
	}

	if _, err := scan.expect(lexer.TokenValues); err != nil {
		return nil, err
	}
	if _, err := scan.expect(lexer.TokenOpenParen); err != nil {
		return nil, err
	}

	var values []ast.Literal
	for {
		value, err := parseLiteral(scan)
		if err != nil {
			return nil, err
		}
		values = append(values, value)

		if !scan.accept(lexer.TokenComma) {
			break
		}
	}

	if _, err := scan.expect(lexer.TokenCloseParen); err != nil {
		return nil, err
	}

	return &ast.InsertStatement{
		TableName: name.Text,
		Values:    values,
	}, nil
}

func parseSelect(scan *scanner) (*ast.SelectStatement, error) {
	scan.next()

	var columns []string
	if scan.accept(lexer.TokenAsterisk) {
		columns = []string{"*"}
	} else {
		for {
			column, err := scan.expect(lexer.TokenIdentifier)
			if err != nil {
				return nil, err
			}
			columns = append(columns, column.Text)

			if !scan.accept(lexer.TokenComma) {
				break
			}
		}
	}

	if _, err := scan.expect(lexer.TokenFrom); err != nil {
		return nil, err
	}

	name, err := scan.expect(lexer.TokenIdentifier)
	if err != nil {
		return nil, err
	}

	stmt := &ast.SelectStatement{
		TableName: name.Text,
		Columns:   columns,
	}

	if scan.accept(lexer.TokenWhere) {
		where, err := parseWhereClause(scan)
		if err != nil {
			return nil, err
		}
		stmt.Where = &where
	}

	return stmt, nil
}

func parseUpdate(scan *scanner) (*ast.UpdateStatement, error) {
	scan.next()

	name, err := scan.expect(lexer.TokenIdentifier)
	if err != nil {
		return nil, err
	}

	if _, err := scan.expect(lexer.TokenSet); err != nil {
		return nil, err
	}

	var sets []ast.SetClause
	for {
		column, err := scan.expect(lexer.TokenIdentifier)
		if err != nil {
			return nil, err
		}
		if _, err := scan.expect(lexer.TokenEquals); err != nil {
			return nil, err
		}
		value, err := parseLiteral(scan)
		if err != nil {
			return nil, err
		}
		sets = append(sets, ast.SetClause{Column: column.Text, Value: value})

		if !scan.accept(lexer.TokenComma) {
			break
		}
	}

	if _, err := scan.expect(lexer.TokenWhere); err != nil {
		return nil, err
	}

	where, err := parseEqualityClause(scan)
	if err != nil {
		return nil, err
	}

	return &ast.UpdateStatement{
		TableName: name.Text,
		Sets:      sets,
		Where:     where,
	}, nil
}

func parseDelete(scan *scanner) (*ast.DeleteStatement, error) {
	scan.next()
	if _, err := scan.expect(lexer.TokenFrom); err != nil {
		return nil, err
	}

	name, err := scan.expect(lexer.TokenIdentifier)
	if err != nil {
		return nil, err
	}

	if _, err := scan.expect(lexer.TokenWhere); err != nil {
		return nil, err
	}

	where, err := parseEqualityClause(scan)
	if err != nil {
		return nil, err
	}

	return &ast.DeleteStatement{
		TableName: name.Text,
		Where:     where,
	}, nil
}

func parseDropTable(scan *scanner) (*ast.DropTableStatement, error) {
	scan.next()
	if _, err := scan.expect(lexer.TokenTable); err != nil {
		return nil, err
	}

	name, err := scan.expect(lexer.TokenIdentifier)
	if err != nil {
		return nil, err
	}

	return &ast.DropTableStatement{TableName: name.Text}, nil
}

func parseShowTables(scan *scanner) (*ast.ShowTablesStatement, error) {
	scan.next()
	if _, err := scan.expect(lexer.TokenTables); err != nil {
		return nil, err
	}
	return &ast.ShowTablesStatement{}, nil
}

func parseWhereClause(scan *scanner) (ast.WhereClause, error) {
	column, err := scan.expect(lexer.TokenIdentifier)
	if err != nil {
		return ast.WhereClause{}, err
	}

	op := scan.next()
	switch op.Kind {
	case lexer.TokenEquals, lexer.TokenNotEq, lexer.TokenGt, lexer.TokenLt,
		lexer.TokenGte, lexer.TokenLte:
	default:
		return ast.WhereClause{}, fmt.Errorf("expected comparison operator, found %s", op)
	}

	value, err := parseLiteral(scan)
	if err != nil {
		return ast.WhereClause{}, err
	}

	operator := op.Text
	if op.Kind == lexer.TokenNotEq {
		operator = "<>"
	}

	return ast.WhereClause{
		Column:   column.Text,
		Operator: operator,
		Value:    value,
	}, nil
}

func parseEqualityClause(scan *scanner) (ast.WhereClause, error) {
	where, err := parseWhereClause(scan)
	if err != nil {
		return ast.WhereClause{}, err
	}
	if where.Operator != "=" {
		return ast.WhereClause{}, fmt.Errorf("only = conditions are supported here, found %s", where.Operator)
	}
	return where, nil
}

func parseLiteral(scan *scanner) (ast.Literal, error) {
	token := scan.next()

	switch token.Kind {
	case lexer.TokenString:
		text := token.Text[1 : len(token.Text)-1]
		return ast.Literal{
			Value: strings.ReplaceAll(text, "''", "'"),
			Kind:  token.Kind,
		}, nil
	case lexer.TokenNumber, lexer.TokenIdentifier:
		return ast.Literal{Value: token.Text, Kind: token.Kind}, nil
	case lexer.TokenNull:
		return ast.Literal{Kind: token.Kind}, nil
	}

	return ast.Literal{}, fmt.Errorf("expected a value, found %s", token)
}
