// Package testdb provides PostgreSQL helpers for integration tests.
//
// Tests call GetTestDB, which skips the test when TASKHIVE_TEST_DB_URL (or
// DATABASE_URL) is unset and otherwise returns a migrated database. WithTx
// runs a test body inside a transaction that is always rolled back, so tests
// never see each other's rows:
//
//	db := testdb.GetTestDB(t)
//	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//		stores := postgres.NewStores(tx, nil)
//		// ...
//	})
package testdb
