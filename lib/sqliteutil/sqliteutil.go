package sqliteutil

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// OpenDB opens a sqlite database (or a remote libsql one when given a
// libsql:// url) and applies the schema. Re-applying an existing schema
// is not an error.
func OpenDB(schema, path string) (*sql.DB, error) {
	var db *sql.DB
	var err error

	if strings.HasPrefix(path, "libsql://") || strings.HasPrefix(path, "wss://") {
		db, err = sql.Open("libsql", path)
	} else {
		db, err = sql.Open("sqlite", path)
	}
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(schema)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return db, nil
}
