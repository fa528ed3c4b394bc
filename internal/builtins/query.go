// ABOUTME: query_sqlite_database tool: runs SELECT statements on the offline databases.
// ABOUTME: Non-SELECT input is rejected by policy before any database is opened.

package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/2389/talkai-gateway/internal/packs"
	"github.com/2389/talkai-gateway/internal/policy"
	"github.com/2389/talkai-gateway/internal/tabular"
)

// StructuredQueryName is the tool name the model calls.
const StructuredQueryName = "query_sqlite_database"

// StructuredQueryTool creates the query_sqlite_database tool.
func StructuredQueryTool(tables tabular.Service) *packs.Tool {
	q := &queryHandlers{tables: tables}
	return &packs.Tool{
		Name: StructuredQueryName,
		Description: strings.TrimSpace(`
Executes a SQL SELECT query against one of the local offline SQLite databases.
Use it when the question is about structured data described by the schemas below (music, genres,
playlists, albums, charts, artists, records), including listing, filtering or counting.
Prefer it over curl_web_content unless the question clearly asks for real-time or trending data.`),
		InputSchema: packs.ObjectSchema(map[string]packs.Property{
			"database": {Type: packs.TypeString, Description: "The database file to query (must end with .db)."},
			"query":    {Type: packs.TypeString, Description: "A valid SQL SELECT query to execute against the database."},
		}, "database", "query"),
		Validate: func(args map[string]any) error {
			if err := policy.CheckSelect(packs.StringArg(args, "query")); err != nil {
				return err
			}
			return tabular.ValidateName(packs.StringArg(args, "database"))
		},
		Detail:  q.Detail,
		Handler: q.Query,
	}
}

type queryHandlers struct {
	tables tabular.Service
}

// Detail describes the schemas of every available database.
func (q *queryHandlers) Detail(ctx context.Context) (string, error) {
	schemas, err := q.tables.Schemas(ctx)
	if err != nil {
		return "", err
	}
	encoded, err := json.Marshal(schemas)
	if err != nil {
		return "", err
	}
	return "Available database schemas: " + string(encoded), nil
}

// Query runs the statement and returns the rows as JSON.
func (q *queryHandlers) Query(ctx context.Context, _ *packs.Call, args map[string]any) (string, error) {
	database := packs.StringArg(args, "database")
	statement := packs.StringArg(args, "query")

	if err := policy.CheckSelect(statement); err != nil {
		return "", err
	}

	rows, err := q.tables.QueryTable(ctx, database, statement)
	if err != nil {
		return "", fmt.Errorf("querying %s: %w", database, err)
	}
	encoded, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("encoding rows: %w", err)
	}
	return string(encoded), nil
}
