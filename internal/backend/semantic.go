package backend

import (
	"github.com/pkg/errors"

	"github.com/tinybase/tinybase/internal/btree"
	"github.com/tinybase/tinybase/internal/record"
	"github.com/tinybase/tinybase/tsql/ast"
)

// schemaFromStatement resolves a parsed CREATE TABLE into a typed schema.
func schemaFromStatement(stmt *ast.CreateTableStatement) (btree.Schema, error) {
	schema := btree.Schema{TableName: stmt.TableName}

	for _, column := range stmt.Columns {
		dataType := record.TypeFromString(column.Type)
		if dataType == record.InvalidType {
			return btree.Schema{}, errors.Errorf("unknown type %s for column %s", column.Type, column.Name)
		}

		attribute := record.CouldNull
		switch {
		case column.PrimaryKey:
			attribute = record.PrimaryKey
		case column.NotNull:
			attribute = record.NotNull
		}

		schema.Columns = append(schema.Columns, btree.Column{
			Name:      column.Name,
			Type:      dataType,
			Attribute: attribute,
		})
	}

	return schema, nil
}

// buildCondition resolves a parsed WHERE clause against a schema. With
// primaryOnly set, only the = operator is accepted; the column is not checked
// against the primary key here.
func buildCondition(schema *btree.Schema, where *ast.WhereClause, primaryOnly bool) (*btree.Condition, error) {
	if where == nil {
		return nil, nil
	}

	column, ok := schema.Column(where.Column)
	if !ok {
		return nil, errors.Errorf("unknown column %s", where.Column)
	}

	op := record.OperatorFromString(where.Operator)
	if op == record.InvalidOp {
		return nil, errors.Errorf("invalid operator %s", where.Operator)
	}
	if primaryOnly && op != record.Equal {
		return nil, errors.Errorf("only = conditions are supported on %s", where.Column)
	}

	if where.Value.IsNull() {
		return &btree.Condition{
			Column: column.Name,
			Op:     op,
			Code:   record.NullCodeFor(column.Type),
		}, nil
	}

	code := record.TypeCodeFor(column.Type, where.Value.Value)
	value, err := record.StringToValue(where.Value.Value, code)
	if err != nil {
		return nil, err
	}

	return &btree.Condition{
		Column: column.Name,
		Op:     op,
		Code:   code,
		Value:  value,
	}, nil
}
