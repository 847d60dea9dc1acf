package tsql

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinybase/tinybase/tsql/ast"
	"github.com/tinybase/tinybase/tsql/lexer"
)

func TestParse_CreateTable(t *testing.T) {
	assert := require.New(t)

	stmt, err := Parse("CREATE TABLE person (id INT PRIMARY KEY, name TEXT NOT NULL, age TINYINT)")
	assert.NoError(err)

	create, ok := stmt.(*ast.CreateTableStatement)
	assert.True(ok)
	assert.Equal("person", create.TableName)
	assert.Len(create.Columns, 3)

	assert.Equal(ast.ColumnDefinition{Name: "id", Type: "INT", PrimaryKey: true}, create.Columns[0])
	assert.Equal(ast.ColumnDefinition{Name: "name", Type: "TEXT", NotNull: true}, create.Columns[1])
	assert.Equal(ast.ColumnDefinition{Name: "age", Type: "TINYINT"}, create.Columns[2])
	assert.True(create.Mutates())
}

func TestParse_CreateTableRequiresIntPrimaryKey(t *testing.T) {
	assert := require.New(t)

	_, err := Parse("CREATE TABLE t (id TEXT PRIMARY KEY)")
	assert.Error(err)

	_, err = Parse("CREATE TABLE t (id INT)")
	assert.Error(err)

	_, err = Parse("CREATE TABLE t (id INT PRIMARY KEY, other INT PRIMARY KEY)")
	assert.Error(err)
}

func TestParse_Insert(t *testing.T) {
	assert := require.New(t)

	stmt, err := Parse("INSERT INTO TABLE person VALUES (1, 'ada', NULL)")
	assert.NoError(err)

	insert, ok := stmt.(*ast.InsertStatement)
	assert.True(ok)
	assert.Equal("person", insert.TableName)
	assert.Len(insert.Values, 3)
	assert.Equal("1", insert.Values[0].Value)
	assert.Equal("ada", insert.Values[1].Value)
	assert.True(insert.Values[2].IsNull())
}

func TestParse_InsertQuotedEscape(t *testing.T) {
	assert := require.New(t)

	stmt, err := Parse("INSERT INTO TABLE t VALUES (1, 'it''s')")
	assert.NoError(err)
	insert := stmt.(*ast.InsertStatement)
	assert.Equal("it's", insert.Values[1].Value)
}

func TestParse_Select(t *testing.T) {
	assert := require.New(t)

	stmt, err := Parse("SELECT id, name FROM person")
	assert.NoError(err)

	sel, ok := stmt.(*ast.SelectStatement)
	assert.True(ok)
	assert.Equal("person", sel.TableName)
	assert.Equal([]string{"id", "name"}, sel.Columns)
	assert.Nil(sel.Where)
	assert.True(sel.ReturnsRows())
}

func TestParse_SelectStar(t *testing.T) {
	assert := require.New(t)

	stmt, err := Parse("SELECT * FROM person WHERE age >= 21")
	assert.NoError(err)

	sel := stmt.(*ast.SelectStatement)
	assert.Equal([]string{"*"}, sel.Columns)
	assert.NotNil(sel.Where)
	assert.Equal("age", sel.Where.Column)
	assert.Equal(">=", sel.Where.Operator)
	assert.Equal("21", sel.Where.Value.Value)
}

func TestParse_SelectNotEqual(t *testing.T) {
	assert := require.New(t)

	for _, operator := range []string{"<>", "!="} {
		stmt, err := Parse("SELECT * FROM person WHERE name " + operator + " 'ada'")
		assert.NoError(err)
		sel := stmt.(*ast.SelectStatement)
		assert.Equal("<>", sel.Where.Operator)
	}
}

func TestParse_Update(t *testing.T) {
	assert := require.New(t)

	stmt, err := Parse("UPDATE person SET name='bob', age=7 WHERE id=2")
	assert.NoError(err)

	update, ok := stmt.(*ast.UpdateStatement)
	assert.True(ok)
	assert.Equal("person", update.TableName)
	assert.Len(update.Sets, 2)
	assert.Equal("name", update.Sets[0].Column)
	assert.Equal("bob", update.Sets[0].Value.Value)
	assert.Equal("age", update.Sets[1].Column)
	assert.Equal("id", update.Where.Column)
	assert.Equal("2", update.Where.Value.Value)
}

func TestParse_UpdateRequiresEquality(t *testing.T) {
	assert := require.New(t)

	_, err := Parse("UPDATE person SET name='bob' WHERE id > 2")
	assert.Error(err)
}

func TestParse_Delete(t *testing.T) {
	assert := require.New(t)

	stmt, err := Parse("DELETE FROM person WHERE id=2")
	assert.NoError(err)

	del, ok := stmt.(*ast.DeleteStatement)
	assert.True(ok)
	assert.Equal("person", del.TableName)
	assert.Equal("id", del.Where.Column)
	assert.Equal("2", del.Where.Value.Value)
}

func TestParse_DropShowExit(t *testing.T) {
	assert := require.New(t)

	stmt, err := Parse("DROP TABLE person")
	assert.NoError(err)
	drop, ok := stmt.(*ast.DropTableStatement)
	assert.True(ok)
	assert.Equal("person", drop.TableName)

	stmt, err = Parse("SHOW TABLES")
	assert.NoError(err)
	_, ok = stmt.(*ast.ShowTablesStatement)
	assert.True(ok)

	stmt, err = Parse("exit")
	assert.NoError(err)
	_, ok = stmt.(*ast.ExitStatement)
	assert.True(ok)
}

func TestParse_Errors(t *testing.T) {
	assert := require.New(t)

	invalid := []string{
		"",
		"FLY ME TO THE MOON",
		"SELECT FROM person",
		"INSERT INTO person VALUES (1)",
		"CREATE TABLE t ()",
		"SELECT * FROM person WHERE",
		"SELECT * FROM person trailing",
	}

	for _, sql := range invalid {
		_, err := Parse(sql)
		assert.Error(err, "expected parse failure for %q", sql)
	}
}

func TestParse_NullLiteralKind(t *testing.T) {
	assert := require.New(t)

	stmt, err := Parse("SELECT * FROM t WHERE age = NULL")
	assert.NoError(err)
	sel := stmt.(*ast.SelectStatement)
	assert.Equal(lexer.TokenNull, sel.Where.Value.Kind)
}
