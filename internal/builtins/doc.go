// Package builtins provides the tools the agent can call.
//
// # Tools
//
//   - curl_web_content: fetches live public data. Side-effecting, so every
//     fetch is held at the session's approval gate until the user decides.
//   - search_documents: case-insensitive substring search over the offline
//     text documents. Read-only.
//   - query_sqlite_database: runs a SELECT statement against one of the
//     offline SQLite databases. Read-only; anything but SELECT is rejected
//     before the database is touched.
//
// The document and database tools append live detail to their descriptions
// (document filenames, database schemas) so the model sees what is available.
//
// # Registration
//
//	err := builtins.RegisterAll(registry, builtins.Deps{
//		Docs:   docStore,
//		Tables: tabularService,
//		Runner: commandRunner,
//	})
package builtins
