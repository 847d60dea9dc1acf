package driver

import (
	"database/sql"
	"database/sql/driver"
	"io"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tinybase/tinybase/internal/backend"
)

func init() {
	sql.Register("tinybase", &TinyBaseDriver{})
}

// TinyBaseDriver is a database/sql driver over the tinybase backend. The DSN
// is the data directory, optionally followed by ?log_level=<level>.
type TinyBaseDriver struct{}

type TinyBaseConnection struct {
	dsn string
	db  *backend.Backend
}

type TinyBaseStmt struct {
	command string
	conn    *TinyBaseConnection
}

// TinyBaseTx is a no-op: the engine runs every statement standalone.
type TinyBaseTx struct{}

type TinyBaseResult struct {
	rowsAffected int64
}

type TinyBaseRows struct {
	columns []string
	rows    []backend.Row
	pos     int
}

// Open opens a tinybase connection
func (d *TinyBaseDriver) Open(dsn string) (driver.Conn, error) {
	config, err := parseDsn(dsn)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		level = logrus.ErrorLevel
	}
	logger.SetLevel(level)

	db, err := backend.Start(logger, config)
	if err != nil {
		return nil, err
	}

	return &TinyBaseConnection{
		dsn: dsn,
		db:  db,
	}, nil
}

// Prepare prepares a tinybase query
func (c *TinyBaseConnection) Prepare(command string) (driver.Stmt, error) {
	return &TinyBaseStmt{
		command: command,
		conn:    c,
	}, nil
}

// Begin begins a transaction. The engine has no transactions; the returned
// Tx is a no-op so database/sql callers still work.
func (c *TinyBaseConnection) Begin() (driver.Tx, error) {
	return &TinyBaseTx{}, nil
}

// Close closes a tinybase connection
func (c *TinyBaseConnection) Close() error {
	return c.db.Close()
}

// Close closes the statement.
func (s *TinyBaseStmt) Close() error {
	return nil
}

// NumInput returns the number of placeholder parameters. Placeholders are
// not supported.
func (s *TinyBaseStmt) NumInput() int {
	return -1
}

// Exec executes a query that doesn't return rows, such as an INSERT or
// UPDATE.
func (s *TinyBaseStmt) Exec(args []driver.Value) (driver.Result, error) {
	result, err := s.conn.db.Exec(s.command)
	if err != nil {
		return nil, err
	}

	return &TinyBaseResult{rowsAffected: int64(result.RowsAffected)}, nil
}

// Query executes a query that may return rows, such as a SELECT.
func (s *TinyBaseStmt) Query(args []driver.Value) (driver.Rows, error) {
	result, err := s.conn.db.Exec(s.command)
	if err != nil {
		return nil, err
	}

	return &TinyBaseRows{
		columns: result.Columns,
		rows:    result.Rows,
	}, nil
}

func (t *TinyBaseTx) Commit() error {
	return nil
}

func (t *TinyBaseTx) Rollback() error {
	return nil
}

func (r *TinyBaseResult) LastInsertId() (int64, error) {
	return 0, nil
}

func (r *TinyBaseResult) RowsAffected() (int64, error) {
	return r.rowsAffected, nil
}

// Columns returns the names of the columns.
func (r *TinyBaseRows) Columns() []string {
	return r.columns
}

// Close closes the rows iterator.
func (r *TinyBaseRows) Close() error {
	return nil
}

// Next populates the next row of data into the provided slice, returning
// io.EOF when there are no more rows.
func (r *TinyBaseRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows) {
		return io.EOF
	}

	for i, v := range r.rows[r.pos].Data() {
		dest[i] = toDriverValue(v)
	}
	r.pos++

	return nil
}

// toDriverValue widens engine values to the types database/sql accepts.
func toDriverValue(v interface{}) driver.Value {
	switch n := v.(type) {
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case uint64:
		return int64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

func parseDsn(dsn string) (backend.Config, error) {
	config := backend.Config{
		DataDir:  dsn,
		LogLevel: "error",
	}

	pos := strings.IndexRune(dsn, '?')
	if pos >= 1 {
		config.DataDir = dsn[:pos]
		params, err := url.ParseQuery(dsn[pos+1:])
		if err != nil {
			return config, err
		}

		if val := params.Get("log_level"); val != "" {
			config.LogLevel = val
		}
	}

	return config, nil
}

var _ driver.Driver = (*TinyBaseDriver)(nil)

var _ driver.Conn = (*TinyBaseConnection)(nil)

var _ driver.Stmt = (*TinyBaseStmt)(nil)

var _ driver.Tx = (*TinyBaseTx)(nil)

var _ driver.Result = (*TinyBaseResult)(nil)

var _ driver.Rows = (*TinyBaseRows)(nil)
