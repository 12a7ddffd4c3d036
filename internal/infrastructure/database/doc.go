// Package database opens the SQLite file that backs the event journal
// and applies its embedded schema migrations.
//
// The connection runs in WAL mode with a busy timeout so journal reads
// from the HTTP API do not block on event writes. All statements use
// placeholders.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
