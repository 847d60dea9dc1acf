package catalog

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/tinybase/tinybase/internal/btree"
	"github.com/tinybase/tinybase/internal/record"
)

func testLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(ioutil.Discard)
	return logger
}

func userSchema(name string) btree.Schema {
	return btree.Schema{
		TableName: name,
		Columns: []btree.Column{
			{Name: "id", Type: record.Int, Attribute: record.PrimaryKey},
			{Name: "name", Type: record.Text, Attribute: record.NotNull},
			{Name: "age", Type: record.TinyInt, Attribute: record.CouldNull},
		},
	}
}

func TestCatalog_Bootstrap(t *testing.T) {
	assert := require.New(t)
	dataDir := t.TempDir()

	cat, err := Open(dataDir, testLogger())
	assert.NoError(err)
	defer cat.Close()

	assert.FileExists(filepath.Join(dataDir, TablesName+".tbl"))
	assert.FileExists(filepath.Join(dataDir, ColumnsName+".tbl"))

	// the meta-tables registered themselves
	tables, err := cat.Table(TablesName)
	assert.NoError(err)
	rows, err := tables.Select([]string{"*"}, nil)
	assert.NoError(err)
	assert.Len(rows, 2)
	assert.Equal(TablesName, rows[0][1].Value)
	assert.Equal(ColumnsName, rows[1][1].Value)

	columns, err := cat.Table(ColumnsName)
	assert.NoError(err)
	rows, err = columns.Select([]string{"*"}, nil)
	assert.NoError(err)
	assert.Len(rows, 11)
}

func TestCatalog_CreateAndLoadSchema(t *testing.T) {
	assert := require.New(t)
	dataDir := t.TempDir()

	cat, err := Open(dataDir, testLogger())
	assert.NoError(err)
	defer cat.Close()

	_, err = cat.CreateTable(userSchema("person"))
	assert.NoError(err)
	assert.FileExists(filepath.Join(dataDir, "person.tbl"))

	schema, err := cat.loadSchema("person")
	assert.NoError(err)
	assert.Equal("person", schema.TableName)
	assert.Len(schema.Columns, 3)
	assert.Equal("id", schema.Columns[0].Name)
	assert.Equal(record.PrimaryKey, schema.Columns[0].Attribute)
	assert.Equal("name", schema.Columns[1].Name)
	assert.Equal(record.NotNull, schema.Columns[1].Attribute)
	assert.Equal(record.TinyInt, schema.Columns[2].Type)
	assert.Equal(record.CouldNull, schema.Columns[2].Attribute)

	// duplicate create is rejected
	_, err = cat.CreateTable(userSchema("person"))
	assert.Error(err)
}

func TestCatalog_RestartRoundTrip(t *testing.T) {
	assert := require.New(t)
	dataDir := t.TempDir()

	cat, err := Open(dataDir, testLogger())
	assert.NoError(err)

	table, err := cat.CreateTable(userSchema("person"))
	assert.NoError(err)

	assert.NoError(insertRow(table, int32(1), "ada", int8(36)))
	assert.NoError(insertRow(table, int32(2), "grace", nil))
	assert.NoError(cat.UpdateTableInfo("person"))

	before, err := table.Select([]string{"*"}, nil)
	assert.NoError(err)

	assert.NoError(cat.Close())
	assert.FileExists(filepath.Join(dataDir, tableInfoFile))

	// fresh catalog instance over the same directory
	reopened, err := Open(dataDir, testLogger())
	assert.NoError(err)
	defer reopened.Close()

	person, err := reopened.Table("person")
	assert.NoError(err)

	after, err := person.Select([]string{"*"}, nil)
	assert.NoError(err)
	assert.Equal(before, after)
	assert.Equal("ada", after[0][1].Value)
	assert.Nil(after[1][2].Value)
}

func TestCatalog_UpdateTableInfo(t *testing.T) {
	assert := require.New(t)
	dataDir := t.TempDir()

	cat, err := Open(dataDir, testLogger())
	assert.NoError(err)
	defer cat.Close()

	table, err := cat.CreateTable(userSchema("person"))
	assert.NoError(err)
	assert.NoError(insertRow(table, int32(1), "ada", int8(36)))
	assert.NoError(cat.UpdateTableInfo("person"))

	rootPage, fanout, err := cat.tableInfo("person")
	assert.NoError(err)
	assert.Equal(table.RootPage(), rootPage)
	assert.Equal(table.Fanout(), fanout)
}

func TestCatalog_DropTable(t *testing.T) {
	assert := require.New(t)
	dataDir := t.TempDir()

	cat, err := Open(dataDir, testLogger())
	assert.NoError(err)
	defer cat.Close()

	_, err = cat.CreateTable(userSchema("first"))
	assert.NoError(err)
	_, err = cat.CreateTable(userSchema("second"))
	assert.NoError(err)

	assert.NoError(cat.DropTable("first"))

	_, err = os.Stat(filepath.Join(dataDir, "first.tbl"))
	assert.True(os.IsNotExist(err))

	// no rows survive for the dropped table
	where := eqText("table_name", "first")
	rows, err := cat.tables[TablesName].Select([]string{"*"}, &where)
	assert.NoError(err)
	assert.Empty(rows)
	rows, err = cat.tables[ColumnsName].Select([]string{"*"}, &where)
	assert.NoError(err)
	assert.Empty(rows)

	// remaining row_ids are dense again
	rows, err = cat.tables[TablesName].Select([]string{"*"}, nil)
	assert.NoError(err)
	for i, row := range rows {
		assert.Equal(int32(i+1), row[0].Value)
	}
	assert.Equal("second", rows[len(rows)-1][1].Value)

	rows, err = cat.tables[ColumnsName].Select([]string{"*"}, nil)
	assert.NoError(err)
	for i, row := range rows {
		assert.Equal(int32(i+1), row[0].Value)
	}

	// the survivor still loads
	_, err = cat.Table("second")
	assert.NoError(err)

	// dropping a catalog table is refused
	assert.Error(cat.DropTable(TablesName))
	assert.Error(cat.DropTable("first"))
}

func TestCatalog_SaveInfoFormat(t *testing.T) {
	assert := require.New(t)
	dataDir := t.TempDir()

	cat, err := Open(dataDir, testLogger())
	assert.NoError(err)
	defer cat.Close()

	assert.NoError(cat.SaveInfo())

	tablesInfo, columnsInfo, err := cat.loadRootInfo()
	assert.NoError(err)
	assert.Equal(cat.tables[TablesName].RootPage(), tablesInfo[0])
	assert.Equal(cat.tables[TablesName].Fanout(), tablesInfo[1])
	assert.Equal(cat.tables[ColumnsName].RootPage(), columnsInfo[0])
	assert.Equal(cat.tables[ColumnsName].Fanout(), columnsInfo[1])
}
