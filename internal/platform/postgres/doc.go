// Package postgres implements the store interfaces using PostgreSQL as the
// storage backend, via the pgx stdlib driver over database/sql.
package postgres
