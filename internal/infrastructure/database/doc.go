// Package database provides the SQLite connection behind the command log.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations loaded from an fs.FS (see the migrations package)
//   - Connection lifecycle and health checks
//
// The database file is created with 0600 permissions. All queries use
// parameterised statements.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are additive: each version has an .up.sql and a .down.sql.
package database
