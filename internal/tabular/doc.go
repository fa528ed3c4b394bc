// Package tabular gives the structured-query tool read-only access to the
// SQLite databases in one directory. Every database is opened read-only for
// the duration of a single call, and only SELECT statements are executed.
package tabular
