// Package database provides SQLite connectivity for Furnace Core.
//
// It owns:
//   - the connection (WAL mode, busy timeout, foreign keys on)
//   - schema migrations embedded from the migrations package
//   - transaction helpers (InTx) used by every multi-row write
//   - error classification (Error, ErrorKind, Wrap, KindOf)
//
// Repositories never surface raw driver errors. They pass failures through
// Wrap, which maps missing rows to KindNotFound, unique violations to
// KindConflict, foreign key violations to KindInvalidReference and
// busy/locked conditions to KindTransient.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive: each file pair is YYYYMMDD_HHMMSS_name.up.sql and
// YYYYMMDD_HHMMSS_name.down.sql.
package database
