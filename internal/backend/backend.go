package backend

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tinybase/tinybase/internal/btree"
	"github.com/tinybase/tinybase/internal/catalog"
	"github.com/tinybase/tinybase/internal/record"
	"github.com/tinybase/tinybase/tsql"
	"github.com/tinybase/tinybase/tsql/ast"
)

// Config describes the configuration for the database
type Config struct {
	DataDir  string `yaml:"data_dir"`
	Addr     string `yaml:"addr"`
	LogLevel string `yaml:"log_level"`
}

// Backend drives one statement at a time against the catalog and its table
// engines.
type Backend struct {
	mu      sync.Mutex
	catalog *catalog.Catalog
	log     logrus.FieldLogger
}

// Row is a row in a result
type Row struct {
	Values []record.TypeValue
}

// Data returns the row as native Go values.
func (r Row) Data() []interface{} {
	out := make([]interface{}, len(r.Values))
	for i, tv := range r.Values {
		out[i] = tv.Value
	}
	return out
}

// Strings renders the row for display.
func (r Row) Strings() []string {
	out := make([]string, len(r.Values))
	for i, tv := range r.Values {
		out[i] = record.ValueToString(tv.Code, tv.Value)
	}
	return out
}

// Result is the outcome of one statement.
type Result struct {
	Columns      []string
	Rows         []Row
	RowsAffected int
	Exit         bool
}

// Start initializes the database backend over the given data directory.
func Start(log logrus.FieldLogger, config Config) (*Backend, error) {
	log.WithField("data_dir", config.DataDir).Info("starting database engine")

	cat, err := catalog.Open(config.DataDir, log)
	if err != nil {
		return nil, err
	}

	return &Backend{
		catalog: cat,
		log:     log,
	}, nil
}

// Exec parses and executes a single statement. Parse and semantic errors
// leave disk and in-memory state unchanged.
func (b *Backend) Exec(command string) (*Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	command = strings.TrimSuffix(strings.TrimSpace(command), ";")

	stmt, err := tsql.Parse(command)
	if err != nil {
		return nil, err
	}

	switch s := stmt.(type) {
	case *ast.CreateTableStatement:
		return b.executeCreateTable(s)
	case *ast.InsertStatement:
		return b.executeInsert(s)
	case *ast.SelectStatement:
		return b.executeSelect(s)
	case *ast.UpdateStatement:
		return b.executeUpdate(s)
	case *ast.DeleteStatement:
		return b.executeDelete(s)
	case *ast.DropTableStatement:
		return b.executeDropTable(s)
	case *ast.ShowTablesStatement:
		return b.executeShowTables()
	case *ast.ExitStatement:
		if err := b.catalog.SaveInfo(); err != nil {
			return nil, err
		}
		return &Result{Exit: true}, nil
	}

	return nil, errors.Errorf("unsupported statement %T", stmt)
}

// Close persists catalog info and releases every table file.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.catalog.Close()
}

func (b *Backend) executeCreateTable(stmt *ast.CreateTableStatement) (*Result, error) {
	schema, err := schemaFromStatement(stmt)
	if err != nil {
		return nil, err
	}

	if _, err := b.catalog.CreateTable(schema); err != nil {
		return nil, err
	}

	// registration mutates the meta-tables; refresh their catalog rows
	if err := b.catalog.UpdateTableInfo(catalog.TablesName); err != nil {
		return nil, err
	}
	if err := b.catalog.UpdateTableInfo(catalog.ColumnsName); err != nil {
		return nil, err
	}

	b.log.WithField("table", schema.TableName).Info("table created")
	return &Result{}, nil
}

func (b *Backend) executeInsert(stmt *ast.InsertStatement) (*Result, error) {
	table, err := b.catalog.Table(stmt.TableName)
	if err != nil {
		return nil, err
	}

	schema := table.Schema()
	if len(stmt.Values) != len(schema.Columns) {
		return nil, errors.Errorf("%s expects %d values, got %d",
			stmt.TableName, len(schema.Columns), len(stmt.Values))
	}

	codes := make([]record.TypeCode, len(stmt.Values))
	values := make([]record.Value, len(stmt.Values))
	for i, literal := range stmt.Values {
		column := schema.Columns[i]

		if literal.IsNull() {
			if column.Attribute != record.CouldNull {
				return nil, errors.Errorf(
					"insertion aborted: NOT NULL violation for column %s", column.Name)
			}
			codes[i] = record.NullCodeFor(column.Type)
			values[i] = nil
			continue
		}

		code := record.TypeCodeFor(column.Type, literal.Value)
		value, err := record.StringToValue(literal.Value, code)
		if err != nil {
			return nil, err
		}
		codes[i] = code
		values[i] = value
	}

	if err := table.Insert(codes, values); err != nil {
		return nil, err
	}

	if err := b.catalog.UpdateTableInfo(stmt.TableName); err != nil {
		return nil, err
	}

	return &Result{RowsAffected: 1}, nil
}

func (b *Backend) executeSelect(stmt *ast.SelectStatement) (*Result, error) {
	table, err := b.catalog.Table(stmt.TableName)
	if err != nil {
		return nil, err
	}

	where, err := buildCondition(table.Schema(), stmt.Where, false)
	if err != nil {
		return nil, err
	}

	rows, err := table.Select(stmt.Columns, where)
	if err != nil {
		return nil, err
	}

	columns := stmt.Columns
	if len(columns) == 1 && columns[0] == "*" {
		columns = table.Schema().ColumnNames()
	}

	result := &Result{Columns: columns}
	for _, row := range rows {
		result.Rows = append(result.Rows, Row{Values: row})
	}

	return result, nil
}

func (b *Backend) executeUpdate(stmt *ast.UpdateStatement) (*Result, error) {
	table, err := b.catalog.Table(stmt.TableName)
	if err != nil {
		return nil, err
	}
	schema := table.Schema()

	if !schema.IsPrimaryKey(stmt.Where.Column) {
		return nil, errors.New("UPDATE requires an equality condition on the primary key")
	}

	where, err := buildCondition(schema, &stmt.Where, true)
	if err != nil {
		return nil, err
	}

	sets := make([]btree.UpdateSet, 0, len(stmt.Sets))
	for _, clause := range stmt.Sets {
		column, ok := schema.Column(clause.Column)
		if !ok {
			return nil, errors.Errorf("unknown column %s", clause.Column)
		}

		if clause.Value.IsNull() {
			if column.Attribute != record.CouldNull {
				return nil, errors.Errorf(
					"update aborted: NOT NULL violation for column %s", column.Name)
			}
			sets = append(sets, btree.UpdateSet{
				Column: column.Name,
				Code:   record.NullCodeFor(column.Type),
			})
			continue
		}

		code := record.TypeCodeFor(column.Type, clause.Value.Value)
		value, err := record.StringToValue(clause.Value.Value, code)
		if err != nil {
			return nil, err
		}
		sets = append(sets, btree.UpdateSet{Column: column.Name, Code: code, Value: value})
	}

	updated, err := table.Update(sets, *where)
	if err != nil {
		return nil, err
	}

	return &Result{RowsAffected: updated}, nil
}

func (b *Backend) executeDelete(stmt *ast.DeleteStatement) (*Result, error) {
	table, err := b.catalog.Table(stmt.TableName)
	if err != nil {
		return nil, err
	}

	if !table.Schema().IsPrimaryKey(stmt.Where.Column) {
		return nil, errors.New("DELETE requires an equality condition on the primary key")
	}

	where, err := buildCondition(table.Schema(), &stmt.Where, true)
	if err != nil {
		return nil, err
	}

	deleted, err := table.Delete(*where)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	if deleted {
		result.RowsAffected = 1
	}
	return result, nil
}

func (b *Backend) executeDropTable(stmt *ast.DropTableStatement) (*Result, error) {
	if err := b.catalog.DropTable(stmt.TableName); err != nil {
		return nil, err
	}
	return &Result{}, nil
}

// executeShowTables aliases SELECT table_name FROM tinybase_tables.
func (b *Backend) executeShowTables() (*Result, error) {
	return b.executeSelect(&ast.SelectStatement{
		TableName: catalog.TablesName,
		Columns:   []string{"table_name"},
	})
}
