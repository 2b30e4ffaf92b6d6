package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/mutecomm/go-sqlcipher/v4" // SQLite driver
)

// openReadOnly opens the SQLite database at canonical path p for queries
// only. The caller has already checked that p exists.
func openReadOnly(ctx context.Context, p string) (*sql.DB, error) {
	if err := checkSignature(p, ".db"); err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("mode", "ro")
	params.Set("_busy_timeout", "5000")
	dsn := "file:" + (&url.URL{Path: p}).EscapedPath() + "?" + params.Encode()

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// One connection, so the pragma below holds for every statement.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set query_only: %w", err)
	}
	return db, nil
}
