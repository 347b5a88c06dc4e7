// Package database manages the bridge's SQLite store.
//
// It opens the namespace database with WAL mode and a busy timeout, and
// applies embedded schema migrations at startup. The pool is capped at a
// single connection to match SQLite's one-writer model; the namespace
// repository is the only consumer.
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns take defaults, and nothing is
// dropped or renamed once released. Each step ships as an
// {version}_{name}.up.sql / .down.sql pair embedded by the migrations
// package.
package database
