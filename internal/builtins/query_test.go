// ABOUTME: Tests for the query_sqlite_database tool.
// ABOUTME: Verifies the SELECT-only policy runs before the backend is reached.

package builtins

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/talkai-gateway/internal/packs"
	"github.com/2389/talkai-gateway/internal/policy"
	"github.com/2389/talkai-gateway/internal/tabular"
)

// countingTables records every backend call.
type countingTables struct {
	queries int
	rows    []tabular.Row
}

func (c *countingTables) ListDatabases() ([]string, error) { return []string{"music.db"}, nil }

func (c *countingTables) Schemas(context.Context) (map[string][]tabular.Table, error) {
	return map[string][]tabular.Table{"music.db": {{Name: "songs", Columns: []string{"id", "title"}}}}, nil
}

func (c *countingTables) QueryTable(context.Context, string, string) ([]tabular.Row, error) {
	c.queries++
	return c.rows, nil
}

func TestStructuredQueryRejectsNonSelect(t *testing.T) {
	backend := &countingTables{}
	tool := StructuredQueryTool(backend)

	inputs := []string{
		"DELETE FROM songs",
		"update songs set title = 'x'",
		"  insert into songs values (1)",
		"DROP TABLE songs",
		"",
		"-- select\nDELETE FROM songs",
	}
	for _, q := range inputs {
		t.Run(q, func(t *testing.T) {
			_, err := tool.Handler(context.Background(), nil, map[string]any{"database": "music.db", "query": q})
			assert.ErrorIs(t, err, policy.ErrViolation)
		})
	}
	assert.Zero(t, backend.queries, "backend must not be reached for rejected input")
}

func TestStructuredQueryReturnsJSONRows(t *testing.T) {
	backend := &countingTables{rows: []tabular.Row{{"title": "So What"}}}
	tool := StructuredQueryTool(backend)

	out, err := tool.Handler(context.Background(), nil, map[string]any{"database": "music.db", "query": "  SeLeCt title FROM songs"})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"title":"So What"}]`, out)
	assert.Equal(t, 1, backend.queries)
}

func TestStructuredQueryValidateDatabaseName(t *testing.T) {
	tool := StructuredQueryTool(&countingTables{})
	sel := "select * from songs"
	assert.ErrorIs(t, tool.Validate(map[string]any{"database": "../secrets.db", "query": sel}), tabular.ErrInvalidDatabase)
	assert.ErrorIs(t, tool.Validate(map[string]any{"database": "music.sqlite", "query": sel}), tabular.ErrInvalidDatabase)
	assert.NoError(t, tool.Validate(map[string]any{"database": "music.db", "query": sel}))
}

func TestStructuredQueryPolicyBeforeDatabaseName(t *testing.T) {
	backend := &countingTables{}
	reg := packs.NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, reg.Register(StructuredQueryTool(backend)))
	router := packs.NewRouter(packs.RouterConfig{Registry: reg})

	_, err := router.Execute(context.Background(), &packs.Call{ID: "c1"}, StructuredQueryName,
		map[string]any{"database": "x", "query": "DROP TABLE t"})
	require.ErrorIs(t, err, policy.ErrViolation)
	assert.NotErrorIs(t, err, packs.ErrSchema)
	assert.Zero(t, backend.queries)
}

func TestStructuredQueryDetail(t *testing.T) {
	tool := StructuredQueryTool(&countingTables{})
	detail, err := tool.Detail(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `Available database schemas: {"music.db":[{"tableName":"songs","columns":["id","title"]}]}`, detail)
}

func TestStructuredQueryAgainstSQLite(t *testing.T) {
	dir := t.TempDir()
	db, err := sql.Open("sqlite", filepath.Join(dir, "music.db"))
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE songs (title TEXT); INSERT INTO songs VALUES ('Blue in Green');`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	tool := StructuredQueryTool(tabular.NewSQLite(tabular.Config{Dir: dir}))
	out, err := tool.Handler(context.Background(), nil, map[string]any{"database": "music.db", "query": "SELECT title FROM songs"})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"title":"Blue in Green"}]`, out)
}
