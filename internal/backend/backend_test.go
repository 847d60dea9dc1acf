package backend

import (
	"database/sql"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

// BackendTestSuite runs every mutating statement against both tinybase and
// an in-memory SQLite database; SELECT results must agree.
type BackendTestSuite struct {
	suite.Suite
	dataDir string
	backend *Backend
	sqlite  *sql.DB
}

func TestBackendTestSuite(t *testing.T) {
	suite.Run(t, new(BackendTestSuite))
}

func (s *BackendTestSuite) SetupTest() {
	s.dataDir = s.T().TempDir()

	logger := logrus.New()
	logger.SetOutput(ioutil.Discard)

	db, err := Start(logger, Config{DataDir: s.dataDir})
	s.Require().NoError(err)
	s.backend = db

	oracle, err := sql.Open("sqlite3", filepath.Join(s.dataDir, "oracle.db"))
	s.Require().NoError(err)
	s.sqlite = oracle
}

func (s *BackendTestSuite) TearDownTest() {
	s.NoError(s.backend.Close())
	s.NoError(s.sqlite.Close())
}

// toSQLite rewrites the tinybase dialect for the oracle.
func toSQLite(query string) string {
	return strings.Replace(query, "INTO TABLE ", "INTO ", 1)
}

// assertExec runs a mutating statement on both engines.
func (s *BackendTestSuite) assertExec(query string) {
	_, err := s.sqlite.Exec(toSQLite(query))
	s.Require().NoError(err)

	_, err = s.backend.Exec(query)
	s.Require().NoError(err)
}

// execTiny runs a statement on tinybase only.
func (s *BackendTestSuite) execTiny(query string) *Result {
	result, err := s.backend.Exec(query)
	s.Require().NoError(err)
	return result
}

func (s *BackendTestSuite) queryTiny(query string) [][]string {
	result := s.execTiny(query)

	out := make([][]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		out = append(out, row.Strings())
	}
	return out
}

func (s *BackendTestSuite) queryOracle(query string) [][]string {
	rows, err := s.sqlite.Query(toSQLite(query))
	s.Require().NoError(err)
	defer rows.Close()

	columns, err := rows.Columns()
	s.Require().NoError(err)

	var out [][]string
	for rows.Next() {
		raw := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		s.Require().NoError(rows.Scan(ptrs...))

		row := make([]string, len(columns))
		for i, v := range raw {
			switch value := v.(type) {
			case nil:
				row[i] = "NULL"
			case []byte:
				row[i] = string(value)
			default:
				row[i] = fmt.Sprint(value)
			}
		}
		out = append(out, row)
	}
	s.Require().NoError(rows.Err())

	if out == nil {
		out = [][]string{}
	}
	return out
}

// assertSameRows compares a SELECT between tinybase and the oracle.
func (s *BackendTestSuite) assertSameRows(query string) {
	tiny := s.queryTiny(query)
	if tiny == nil {
		tiny = [][]string{}
	}
	s.Equal(s.queryOracle(query), tiny)
}

func (s *BackendTestSuite) TestCreateInsertSelect() {
	s.assertExec("CREATE TABLE t (id INT PRIMARY KEY, n TEXT NOT NULL)")
	s.assertExec("INSERT INTO TABLE t VALUES (1, 'a')")
	s.assertExec("INSERT INTO TABLE t VALUES (2, 'b')")
	s.assertExec("INSERT INTO TABLE t VALUES (3, 'c')")

	rows := s.queryTiny("SELECT * FROM t")
	s.Equal([][]string{{"1", "a"}, {"2", "b"}, {"3", "c"}}, rows)

	s.assertSameRows("SELECT * FROM t")
	s.assertSameRows("SELECT n FROM t WHERE id = 2")
}

func (s *BackendTestSuite) TestSplitsAgreeWithOracle() {
	s.assertExec("CREATE TABLE big (id INT PRIMARY KEY, body TEXT NOT NULL)")

	// rows wide enough that pages fill after a handful of tuples
	for i := 1; i <= 40; i++ {
		s.assertExec(fmt.Sprintf("INSERT INTO TABLE big VALUES (%d, '%092d')", i, i))
	}

	s.assertSameRows("SELECT * FROM big")
	s.assertSameRows("SELECT id FROM big WHERE id > 25")
	s.assertSameRows("SELECT id FROM big WHERE id <= 7")
	s.assertSameRows("SELECT id FROM big WHERE id <> 13")
	s.assertSameRows("SELECT body FROM big WHERE id = 40")
}

func (s *BackendTestSuite) TestDuplicatePrimaryKeyRejected() {
	s.assertExec("CREATE TABLE t (id INT PRIMARY KEY, n TEXT NOT NULL)")
	s.assertExec("INSERT INTO TABLE t VALUES (1, 'x')")

	_, err := s.backend.Exec("INSERT INTO TABLE t VALUES (1, 'y')")
	s.Error(err)

	_, err = s.sqlite.Exec(toSQLite("INSERT INTO TABLE t VALUES (1, 'y')"))
	s.Error(err)

	rows := s.queryTiny("SELECT * FROM t")
	s.Equal([][]string{{"1", "x"}}, rows)
}

func (s *BackendTestSuite) TestWiderUpdateRejected() {
	s.execTiny("CREATE TABLE t (id INT PRIMARY KEY, n TEXT NOT NULL)")
	s.execTiny("INSERT INTO TABLE t VALUES (1, 'a')")

	result := s.execTiny("UPDATE t SET n='longer_string' WHERE id=1")
	s.Equal(0, result.RowsAffected)

	rows := s.queryTiny("SELECT * FROM t")
	s.Equal([][]string{{"1", "a"}}, rows)
}

func (s *BackendTestSuite) TestNarrowerUpdateShrinksValue() {
	s.assertExec("CREATE TABLE t (id INT PRIMARY KEY, n TEXT NOT NULL)")
	s.assertExec("INSERT INTO TABLE t VALUES (1, 'aa')")
	s.assertExec("INSERT INTO TABLE t VALUES (2, 'bb')")

	result := s.execTiny("UPDATE t SET n='z' WHERE id=2")
	s.Equal(1, result.RowsAffected)
	_, err := s.sqlite.Exec("UPDATE t SET n='z' WHERE id=2")
	s.NoError(err)

	s.assertSameRows("SELECT * FROM t")
}

func (s *BackendTestSuite) TestDelete() {
	s.assertExec("CREATE TABLE t (id INT PRIMARY KEY, n TEXT NOT NULL)")
	for i := 1; i <= 5; i++ {
		s.assertExec(fmt.Sprintf("INSERT INTO TABLE t VALUES (%d, 'v%d')", i, i))
	}

	s.assertExec("DELETE FROM t WHERE id=2")

	s.assertSameRows("SELECT * FROM t WHERE id = 2")
	s.assertSameRows("SELECT * FROM t")
}

func (s *BackendTestSuite) TestNullSemantics() {
	s.assertExec("CREATE TABLE t (id INT PRIMARY KEY, age TINYINT)")
	s.assertExec("INSERT INTO TABLE t VALUES (1, NULL)")
	s.assertExec("INSERT INTO TABLE t VALUES (2, 9)")

	// NULLs never satisfy a condition
	s.assertSameRows("SELECT id FROM t WHERE age = NULL")
	s.assertSameRows("SELECT id FROM t WHERE age = 9")

	rows := s.queryTiny("SELECT age FROM t WHERE id = 1")
	s.Equal([][]string{{"NULL"}}, rows)
}

func (s *BackendTestSuite) TestNotNullViolationAborts() {
	s.execTiny("CREATE TABLE t (id INT PRIMARY KEY, n TEXT NOT NULL)")

	_, err := s.backend.Exec("INSERT INTO TABLE t VALUES (1, NULL)")
	s.Error(err)
	s.Contains(err.Error(), "n")

	rows := s.queryTiny("SELECT * FROM t")
	s.Empty(rows)
}

func (s *BackendTestSuite) TestSemanticErrors() {
	_, err := s.backend.Exec("SELECT * FROM missing")
	s.Error(err)

	s.execTiny("CREATE TABLE t (id INT PRIMARY KEY, n TEXT NOT NULL)")

	_, err = s.backend.Exec("SELECT nope FROM t")
	s.Error(err)

	_, err = s.backend.Exec("INSERT INTO TABLE t VALUES (1)")
	s.Error(err)

	_, err = s.backend.Exec("CREATE TABLE u (id INT PRIMARY KEY, n BLOB)")
	s.Error(err)

	_, err = s.backend.Exec("UPDATE t SET n='x' WHERE n='y'")
	s.Error(err)
}

func (s *BackendTestSuite) TestShowTables() {
	s.execTiny("CREATE TABLE zoo (id INT PRIMARY KEY, n TEXT NOT NULL)")

	rows := s.queryTiny("SHOW TABLES")
	s.Equal([][]string{{"tinybase_tables"}, {"tinybase_columns"}, {"zoo"}}, rows)
}

func (s *BackendTestSuite) TestDropTable() {
	s.execTiny("CREATE TABLE a (id INT PRIMARY KEY, n TEXT NOT NULL)")
	s.execTiny("CREATE TABLE b (id INT PRIMARY KEY, n TEXT NOT NULL)")
	s.execTiny("DROP TABLE a")

	rows := s.queryTiny("SHOW TABLES")
	s.Equal([][]string{{"tinybase_tables"}, {"tinybase_columns"}, {"b"}}, rows)

	_, err := s.backend.Exec("SELECT * FROM a")
	s.Error(err)
}

func (s *BackendTestSuite) TestReopenReturnsSameRows() {
	s.execTiny("CREATE TABLE t (id INT PRIMARY KEY, n TEXT NOT NULL)")
	for i := 1; i <= 12; i++ {
		s.execTiny(fmt.Sprintf("INSERT INTO TABLE t VALUES (%d, '%088d')", i, i))
	}

	before := s.queryTiny("SELECT * FROM t")
	s.NoError(s.backend.Close())

	logger := logrus.New()
	logger.SetOutput(ioutil.Discard)

	reopened, err := Start(logger, Config{DataDir: s.dataDir})
	s.Require().NoError(err)
	s.backend = reopened

	s.Equal(before, s.queryTiny("SELECT * FROM t"))
}

func (s *BackendTestSuite) TestExitPersistsTableInfo() {
	result := s.execTiny("EXIT")
	s.True(result.Exit)
	s.FileExists(filepath.Join(s.dataDir, ".table_info"))
}
