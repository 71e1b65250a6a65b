package sqlite

import (
	"database/sql"

	// Import the SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

// InitDB opens the SQLite ledger and creates the fetches table if it doesn't exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS fetches (
		id INTEGER PRIMARY KEY,
		identifier TEXT,
		file_path TEXT,
		outcome TEXT,
		bytes INTEGER DEFAULT 0,
		reason TEXT,
		run_id TEXT,
		fetched_at DATETIME
	)`)

	if err != nil {
		return nil, err
	}

	return db, nil
}
