// ABOUTME: Read-only access to the SQLite databases offered to the structured-query tool.
// ABOUTME: Lists databases, describes their schemas, and runs SELECT statements.

package tabular

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/2389/talkai-gateway/internal/policy"
)

// ErrInvalidDatabase indicates a database name outside the allowed form.
var ErrInvalidDatabase = errors.New("invalid database name")

// ErrDatabaseNotFound indicates the named database file does not exist.
var ErrDatabaseNotFound = errors.New("database not found")

// Extension is the suffix of files treated as databases.
const Extension = ".db"

// DefaultMaxRows caps the rows returned by one query.
const DefaultMaxRows = 500

// Row is one result row keyed by column name.
type Row map[string]any

// Table describes one table of a database.
type Table struct {
	Name    string   `json:"tableName"`
	Columns []string `json:"columns"`
}

// Service answers read-only questions about the available databases.
type Service interface {
	ListDatabases() ([]string, error)
	Schemas(ctx context.Context) (map[string][]Table, error)
	QueryTable(ctx context.Context, database, statement string) ([]Row, error)
}

// SQLite serves *.db files from one directory, opening each read-only per call.
type SQLite struct {
	dir     string
	maxRows int
	schemas *schemaCache
	logger  *slog.Logger
}

// Config configures a SQLite service.
type Config struct {
	Dir       string
	MaxRows   int
	SchemaTTL time.Duration // how long a described schema is reused; defaults to DefaultSchemaTTL
	Logger    *slog.Logger
}

// NewSQLite creates a SQLite service.
func NewSQLite(cfg Config) *SQLite {
	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	ttl := cfg.SchemaTTL
	if ttl <= 0 {
		ttl = DefaultSchemaTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLite{
		dir:     cfg.Dir,
		maxRows: maxRows,
		schemas: newSchemaCache(ttl, defaultSchemaSize),
		logger:  logger.With("component", "tabular", "dir", cfg.Dir),
	}
}

// ListDatabases returns the database filenames in sorted order. A missing
// directory yields no databases.
func (s *SQLite) ListDatabases() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("reading databases directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), Extension) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Schemas describes every database. A database that cannot be read is
// logged and reported with no tables. Descriptions are cached per file
// version, so a changed file is described again.
func (s *SQLite) Schemas(ctx context.Context) (map[string][]Table, error) {
	names, err := s.ListDatabases()
	if err != nil {
		return nil, err
	}
	schemas := make(map[string][]Table, len(names))
	for _, name := range names {
		tables, err := s.cachedTables(ctx, name)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("failed to describe database", "database", name, "error", err)
			tables = []Table{}
		}
		schemas[name] = tables
	}
	return schemas, nil
}

func (s *SQLite) cachedTables(ctx context.Context, name string) ([]Table, error) {
	info, err := os.Stat(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, name)
	}
	key := schemaKey(name, info)
	if tables, ok := s.schemas.get(key); ok {
		return tables, nil
	}
	tables, err := s.Tables(ctx, name)
	if err != nil {
		return nil, err
	}
	s.schemas.put(key, tables)
	return tables, nil
}

// Tables lists the tables of one database with their column names.
func (s *SQLite) Tables(ctx context.Context, database string) ([]Table, error) {
	db, err := s.open(database)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tables: %w", err)
	}

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		cols, err := columns(ctx, db, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, Table{Name: name, Columns: cols})
	}
	return tables, nil
}

// QueryTable runs a SELECT statement against database. Anything else fails
// with policy.ErrViolation before the database is opened.
func (s *SQLite) QueryTable(ctx context.Context, database, statement string) ([]Row, error) {
	if err := policy.CheckSelect(statement); err != nil {
		return nil, err
	}

	db, err := s.open(database)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, statement)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	result := []Row{}
	for rows.Next() {
		if len(result) >= s.maxRows {
			s.logger.Info("query result truncated", "database", database, "max_rows", s.maxRows)
			break
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	s.logger.Debug("query executed", "database", database, "rows", len(result))
	return result, nil
}

// ValidateName checks that database is a bare *.db filename.
func ValidateName(database string) error {
	if !strings.HasSuffix(database, Extension) || len(database) == len(Extension) {
		return fmt.Errorf("%w: %q must end with %s", ErrInvalidDatabase, database, Extension)
	}
	if strings.ContainsAny(database, `/\`) || database != filepath.Base(database) || strings.HasPrefix(database, "..") {
		return fmt.Errorf("%w: %q must be a plain filename", ErrInvalidDatabase, database)
	}
	return nil
}

func (s *SQLite) open(database string) (*sql.DB, error) {
	if err := ValidateName(database); err != nil {
		return nil, err
	}
	path := filepath.Join(s.dir, database)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, database)
	}

	dsn := "file:" + (&url.URL{Path: path}).EscapedPath() + "?mode=ro&_pragma=query_only(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", database, err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func columns(ctx context.Context, db *sql.DB, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("describing table %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scanning column of %s: %w", table, err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
