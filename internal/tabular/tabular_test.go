// ABOUTME: Tests for read-only SQLite access: listing, schemas, and SELECT queries.
// ABOUTME: Fixtures are created with modernc.org/sqlite in t.TempDir.

package tabular

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/talkai-gateway/internal/policy"
)

func createMusicDB(t *testing.T, dir string) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(dir, "music.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE songs (id INTEGER PRIMARY KEY, title TEXT NOT NULL, genre TEXT);
		CREATE TABLE artists (id INTEGER PRIMARY KEY, name TEXT);
		INSERT INTO songs (title, genre) VALUES ('So What', 'jazz'), ('Paranoid', 'rock'), ('Take Five', 'jazz');
		INSERT INTO artists (name) VALUES ('Miles Davis');
	`)
	require.NoError(t, err)
}

func newTestService(t *testing.T) (*SQLite, string) {
	t.Helper()
	dir := t.TempDir()
	createMusicDB(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("not a db"), 0o644))
	return NewSQLite(Config{Dir: dir}), dir
}

func TestListDatabases(t *testing.T) {
	svc, _ := newTestService(t)

	names, err := svc.ListDatabases()
	require.NoError(t, err)
	assert.Equal(t, []string{"music.db"}, names)

	missing := NewSQLite(Config{Dir: filepath.Join(t.TempDir(), "absent")})
	names, err = missing.ListDatabases()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestSchemas(t *testing.T) {
	svc, _ := newTestService(t)

	schemas, err := svc.Schemas(context.Background())
	require.NoError(t, err)
	require.Contains(t, schemas, "music.db")
	assert.Equal(t, []Table{
		{Name: "artists", Columns: []string{"id", "name"}},
		{Name: "songs", Columns: []string{"id", "title", "genre"}},
	}, schemas["music.db"])
}

func TestQueryTable(t *testing.T) {
	svc, _ := newTestService(t)

	rows, err := svc.QueryTable(context.Background(), "music.db", "  SELECT title FROM songs WHERE genre = 'jazz' ORDER BY title")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "So What", rows[0]["title"])
	assert.Equal(t, "Take Five", rows[1]["title"])
}

func TestQueryTableRejectsNonSelect(t *testing.T) {
	svc, _ := newTestService(t)

	statements := []string{
		"DELETE FROM songs",
		"drop table songs",
		"PRAGMA table_info(songs)",
		"",
		"WITH x AS (SELECT 1) SELECT * FROM x",
	}
	for _, stmt := range statements {
		t.Run(stmt, func(t *testing.T) {
			// A missing database proves the backend is never touched
			_, err := svc.QueryTable(context.Background(), "absent.db", stmt)
			assert.ErrorIs(t, err, policy.ErrViolation)
		})
	}

	rows, err := svc.QueryTable(context.Background(), "music.db", "SELECT COUNT(*) AS n FROM songs")
	require.NoError(t, err)
	assert.EqualValues(t, 3, rows[0]["n"])
}

func TestQueryTableIsReadOnly(t *testing.T) {
	svc, _ := newTestService(t)

	// Passes the prefix check but must still fail against a read-only handle
	_, err := svc.QueryTable(context.Background(), "music.db", "select 1; DELETE FROM songs")
	if err == nil {
		rows, qerr := svc.QueryTable(context.Background(), "music.db", "SELECT COUNT(*) AS n FROM songs")
		require.NoError(t, qerr)
		assert.EqualValues(t, 3, rows[0]["n"], "rows must not be deleted")
	}
}

func TestQueryTableMaxRows(t *testing.T) {
	dir := t.TempDir()
	createMusicDB(t, dir)
	svc := NewSQLite(Config{Dir: dir, MaxRows: 2})

	rows, err := svc.QueryTable(context.Background(), "music.db", "SELECT * FROM songs")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestDatabaseNameValidation(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name    string
		db      string
		wantErr error
	}{
		{"wrong extension", "music.sqlite", ErrInvalidDatabase},
		{"bare extension", ".db", ErrInvalidDatabase},
		{"traversal", "../music.db", ErrInvalidDatabase},
		{"nested path", "sub/music.db", ErrInvalidDatabase},
		{"backslash", `sub\music.db`, ErrInvalidDatabase},
		{"not found", "other.db", ErrDatabaseNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.QueryTable(context.Background(), tt.db, "SELECT 1")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
