// Package postgres provides PostgreSQL implementations of the store
// interfaces, backed by database/sql with the pgx stdlib driver.
//
// Every store accepts a store.DBTX, so the same code runs against the pool
// or inside a transaction opened by Transactor. The schema is embedded and
// applied with goose.
package postgres
