// Package postgres provides PostgreSQL implementations of the persistence
// interfaces declared in internal/store and internal/task, together with the
// embedded goose migrations that create the schema they expect.
package postgres
