package catalog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tinybase/tinybase/internal/btree"
	"github.com/tinybase/tinybase/internal/record"
)

// TablesName and ColumnsName are the two self-describing meta-tables.
const (
	TablesName  = "tinybase_tables"
	ColumnsName = "tinybase_columns"

	// tableInfoFile stores root_page and fanout for the two meta-tables so
	// they can be opened before their own rows are readable.
	tableInfoFile = ".table_info"
)

var tablesSchema = btree.Schema{
	TableName: TablesName,
	Columns: []btree.Column{
		{Name: "row_id", Type: record.Int, Attribute: record.PrimaryKey},
		{Name: "table_name", Type: record.Text, Attribute: record.NotNull},
		{Name: "root_page", Type: record.Int, Attribute: record.NotNull},
		{Name: "fanout", Type: record.Int, Attribute: record.NotNull},
	},
}

var columnsSchema = btree.Schema{
	TableName: ColumnsName,
	Columns: []btree.Column{
		{Name: "row_id", Type: record.Int, Attribute: record.PrimaryKey},
		{Name: "table_name", Type: record.Text, Attribute: record.NotNull},
		{Name: "column_name", Type: record.Text, Attribute: record.NotNull},
		{Name: "data_type", Type: record.Text, Attribute: record.NotNull},
		{Name: "ordinal_position", Type: record.TinyInt, Attribute: record.NotNull},
		{Name: "is_nullable", Type: record.Text, Attribute: record.NotNull},
		{Name: "column_key", Type: record.Text, Attribute: record.CouldNull},
	},
}

// Catalog is the registry of table engines. It owns the two meta-tables and
// loads user tables on demand from their registered schemas.
type Catalog struct {
	dataDir string
	tables  map[string]*btree.Table
	log     logrus.FieldLogger
}

// Open initializes the catalog under dataDir, creating the meta-tables on
// first run or loading them via the side file on restart.
func Open(dataDir string, log logrus.FieldLogger) (*Catalog, error) {
	c := &Catalog{
		dataDir: dataDir,
		tables:  make(map[string]*btree.Table),
		log:     log,
	}

	tablesExists := fileExists(c.filePath(TablesName))
	columnsExists := fileExists(c.filePath(ColumnsName))

	switch {
	case !tablesExists && !columnsExists:
		log.WithField("data_dir", dataDir).Info("initializing catalog")

		tables, err := btree.Create(c.filePath(TablesName), tablesSchema, log)
		if err != nil {
			return nil, err
		}
		c.tables[TablesName] = tables

		columns, err := btree.Create(c.filePath(ColumnsName), columnsSchema, log)
		if err != nil {
			return nil, err
		}
		c.tables[ColumnsName] = columns

		if err := c.RegisterTable(tablesSchema); err != nil {
			return nil, err
		}
		if err := c.RegisterTable(columnsSchema); err != nil {
			return nil, err
		}

	case tablesExists && columnsExists:
		tablesInfo, columnsInfo, err := c.loadRootInfo()
		if err != nil {
			return nil, err
		}

		tables, err := btree.Load(c.filePath(TablesName), tablesSchema, tablesInfo[0], tablesInfo[1], log)
		if err != nil {
			return nil, err
		}
		c.tables[TablesName] = tables

		columns, err := btree.Load(c.filePath(ColumnsName), columnsSchema, columnsInfo[0], columnsInfo[1], log)
		if err != nil {
			return nil, err
		}
		c.tables[ColumnsName] = columns

	default:
		return nil, errors.Errorf("catalog files under %s are inconsistent", dataDir)
	}

	return c, nil
}

// FilePath returns the table file path for a table name.
func (c *Catalog) FilePath(name string) string {
	return c.filePath(name)
}

func (c *Catalog) filePath(name string) string {
	return filepath.Join(c.dataDir, name+".tbl")
}

// Exists reports whether the table is registered in memory or on disk.
func (c *Catalog) Exists(name string) bool {
	if _, ok := c.tables[name]; ok {
		return true
	}
	return fileExists(c.filePath(name))
}

// CreateTable creates the table file and registers its schema in the
// meta-tables.
func (c *Catalog) CreateTable(schema btree.Schema) (*btree.Table, error) {
	if c.Exists(schema.TableName) {
		return nil, errors.Errorf("table %s already exists", schema.TableName)
	}

	table, err := btree.Create(c.filePath(schema.TableName), schema, c.log)
	if err != nil {
		return nil, err
	}
	c.tables[schema.TableName] = table

	if err := c.RegisterTable(schema); err != nil {
		return nil, err
	}

	return table, nil
}

// RegisterTable inserts one row into tinybase_tables and one per column into
// tinybase_columns. Root page and fanout are placeholders overwritten by
// UpdateTableInfo.
func (c *Catalog) RegisterTable(schema btree.Schema) error {
	tables := c.tables[TablesName]
	columns := c.tables[ColumnsName]

	tableRows, err := tables.RowCount()
	if err != nil {
		return err
	}

	err = insertRow(tables,
		int32(tableRows+1),
		schema.TableName,
		int32(0),
		btree.FanoutUnset,
	)
	if err != nil {
		return err
	}

	columnRows, err := columns.RowCount()
	if err != nil {
		return err
	}

	for i, column := range schema.Columns {
		err = insertRow(columns,
			int32(columnRows+i+1),
			schema.TableName,
			column.Name,
			record.TypeToString(column.Type),
			int8(i+1),
			record.NullableString(column.Attribute),
			record.KeyString(column.Attribute),
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// Table returns the engine for a table, loading it from the catalog if it is
// not resident yet.
func (c *Catalog) Table(name string) (*btree.Table, error) {
	if table, ok := c.tables[name]; ok {
		return table, nil
	}
	if !fileExists(c.filePath(name)) {
		return nil, errors.Errorf("unknown table %s", name)
	}
	return c.loadTable(name)
}

// loadTable reconstructs a schema from the meta-tables and loads the file.
func (c *Catalog) loadTable(name string) (*btree.Table, error) {
	rootPage, fanout, err := c.tableInfo(name)
	if err != nil {
		return nil, err
	}

	schema, err := c.loadSchema(name)
	if err != nil {
		return nil, err
	}

	table, err := btree.Load(c.filePath(name), schema, rootPage, fanout, c.log)
	if err != nil {
		return nil, err
	}
	c.tables[name] = table

	return table, nil
}

// tableInfo reads root_page and fanout from tinybase_tables.
func (c *Catalog) tableInfo(name string) (int32, int32, error) {
	where := eqText("table_name", name)
	rows, err := c.tables[TablesName].Select([]string{"*"}, &where)
	if err != nil {
		return 0, 0, err
	}
	if len(rows) == 0 {
		return 0, 0, errors.Errorf("table %s is not registered", name)
	}

	rootPage := rows[0][2].Value.(int32)
	fanout := rows[0][3].Value.(int32)
	return rootPage, fanout, nil
}

// loadSchema rebuilds a table schema from its tinybase_columns rows.
func (c *Catalog) loadSchema(name string) (btree.Schema, error) {
	where := eqText("table_name", name)
	rows, err := c.tables[ColumnsName].Select([]string{"*"}, &where)
	if err != nil {
		return btree.Schema{}, err
	}

	schema := btree.Schema{TableName: name}
	for _, row := range rows {
		schema.Columns = append(schema.Columns, btree.Column{
			Name: row[2].Value.(string),
			Type: record.TypeFromString(row[3].Value.(string)),
			Attribute: record.AttributeFromStrings(
				row[5].Value.(string),
				row[6].Value.(string),
			),
		})
	}

	return schema, nil
}

// UpdateTableInfo copies a resident engine's root page and fanout into its
// tinybase_tables row.
func (c *Catalog) UpdateTableInfo(name string) error {
	table, ok := c.tables[name]
	if !ok {
		return nil
	}

	where := eqText("table_name", name)
	rows, err := c.tables[TablesName].Select([]string{"row_id"}, &where)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	rowID := rows[0][0].Value.(int32)
	sets := []btree.UpdateSet{
		{Column: "root_page", Code: record.TypeCode(record.Int), Value: table.RootPage()},
		{Column: "fanout", Code: record.TypeCode(record.Int), Value: table.Fanout()},
	}

	_, err = c.tables[TablesName].Update(sets, eqInt("row_id", rowID))
	return err
}

// DropTable removes a table's rows from both meta-tables, renumbers the
// remaining rows to stay dense, and deletes the file.
func (c *Catalog) DropTable(name string) error {
	if name == TablesName || name == ColumnsName {
		return errors.Errorf("cannot drop catalog table %s", name)
	}
	if !c.Exists(name) {
		return errors.Errorf("unknown table %s", name)
	}

	if err := c.clearTableInfo(TablesName, name); err != nil {
		return err
	}
	if err := c.clearTableInfo(ColumnsName, name); err != nil {
		return err
	}

	if table, ok := c.tables[name]; ok {
		if err := table.Close(); err != nil {
			return err
		}
		delete(c.tables, name)
	}

	if err := os.Remove(c.filePath(name)); err != nil {
		return errors.Wrapf(err, "remove table file for %s", name)
	}

	c.log.WithField("table", name).Info("table dropped")
	return nil
}

// clearTableInfo deletes every row of target whose table_name matches, then
// renumbers the remaining rows so row_ids stay dense. Renumbering goes
// through the B+Tree delete and insert paths so cell keys and the row_id
// column stay consistent.
func (c *Catalog) clearTableInfo(target, condition string) error {
	table := c.tables[target]

	where := eqText("table_name", condition)
	matched, err := table.Select([]string{"row_id"}, &where)
	if err != nil {
		return err
	}

	for _, row := range matched {
		if _, err := table.Delete(eqInt("row_id", row[0].Value.(int32))); err != nil {
			return err
		}
	}

	remaining, err := table.Select([]string{"*"}, nil)
	if err != nil {
		return err
	}

	for i, row := range remaining {
		want := int32(i + 1)
		rowID := row[0].Value.(int32)
		if rowID == want {
			continue
		}

		codes := make([]record.TypeCode, len(row))
		values := make([]record.Value, len(row))
		for j, tv := range row {
			codes[j] = tv.Code
			values[j] = tv.Value
		}
		codes[0] = record.TypeCode(record.Int)
		values[0] = want

		if _, err := table.Delete(eqInt("row_id", rowID)); err != nil {
			return err
		}
		if err := table.Insert(codes, values); err != nil {
			return err
		}
	}

	return nil
}

// SaveInfo persists the meta-tables' root page and fanout to the side file.
func (c *Catalog) SaveInfo() error {
	path := filepath.Join(c.dataDir, tableInfoFile)
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "write table info")
	}
	defer file.Close()

	for _, name := range []string{TablesName, ColumnsName} {
		table := c.tables[name]
		if _, err := fmt.Fprintf(file, "%d %d\n", table.RootPage(), table.Fanout()); err != nil {
			return errors.Wrap(err, "write table info")
		}
	}

	return nil
}

// loadRootInfo reads the side file: one "root_page fanout" line per
// meta-table.
func (c *Catalog) loadRootInfo() ([2]int32, [2]int32, error) {
	var tablesInfo, columnsInfo [2]int32

	path := filepath.Join(c.dataDir, tableInfoFile)
	file, err := os.Open(path)
	if err != nil {
		return tablesInfo, columnsInfo, errors.Wrap(err, "read table info")
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	if _, err := fmt.Fscanf(reader, "%d %d\n", &tablesInfo[0], &tablesInfo[1]); err != nil {
		return tablesInfo, columnsInfo, errors.Wrap(err, "parse table info")
	}
	if _, err := fmt.Fscanf(reader, "%d %d\n", &columnsInfo[0], &columnsInfo[1]); err != nil {
		return tablesInfo, columnsInfo, errors.Wrap(err, "parse table info")
	}

	return tablesInfo, columnsInfo, nil
}

// Close persists catalog info and closes every resident table file.
func (c *Catalog) Close() error {
	if err := c.SaveInfo(); err != nil {
		return err
	}

	for _, table := range c.tables {
		if err := table.Close(); err != nil {
			return err
		}
	}

	return nil
}

// insertRow derives per-value type codes from the table schema and inserts.
func insertRow(table *btree.Table, values ...record.Value) error {
	schema := table.Schema()
	codes := make([]record.TypeCode, len(values))
	for i, value := range values {
		codes[i] = record.TypeCodeFor(schema.Columns[i].Type, value)
	}
	return table.Insert(codes, values)
}

func eqText(column, value string) btree.Condition {
	return btree.Condition{
		Column: column,
		Op:     record.Equal,
		Code:   record.TypeCodeFor(record.Text, value),
		Value:  value,
	}
}

func eqInt(column string, value int32) btree.Condition {
	return btree.Condition{
		Column: column,
		Op:     record.Equal,
		Code:   record.TypeCode(record.Int),
		Value:  value,
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
