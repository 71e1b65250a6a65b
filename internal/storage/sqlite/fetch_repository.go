package sqlite

import (
	"database/sql"
	"time"

	"github.com/ymzhao/logleaks/internal/storage"
)

type FetchRepository struct {
	db *sql.DB
}

func NewFetchRepository(dbConn *sql.DB) *FetchRepository {
	return &FetchRepository{db: dbConn}
}

// RecordFetch appends one terminal outcome to the ledger.
func (r *FetchRepository) RecordFetch(rec storage.FetchRecord) error {
	fetchedAt := rec.FetchedAt
	if fetchedAt == "" {
		fetchedAt = time.Now().Format(time.RFC3339)
	}

	_, err := r.db.Exec(`
		INSERT INTO fetches (identifier, file_path, outcome, bytes, reason, run_id, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.Identifier, rec.FilePath, rec.Outcome, rec.Bytes, rec.Reason, rec.RunID, fetchedAt)

	return err
}

func (r *FetchRepository) GetFetches() ([]storage.FetchRecord, error) {
	rows, err := r.db.Query(`
		SELECT identifier, file_path, outcome, bytes, reason, run_id, fetched_at
		FROM fetches ORDER BY fetched_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []storage.FetchRecord

	for rows.Next() {
		var rec storage.FetchRecord

		var reason sql.NullString

		if err := rows.Scan(&rec.Identifier, &rec.FilePath, &rec.Outcome, &rec.Bytes, &reason, &rec.RunID, &rec.FetchedAt); err != nil {
			return nil, err
		}

		if reason.Valid {
			rec.Reason = reason.String
		}

		records = append(records, rec)
	}

	return records, rows.Err()
}

func (r *FetchRepository) CountByOutcome() ([]storage.OutcomeCount, error) {
	rows, err := r.db.Query(`
		SELECT outcome, COUNT(*), COALESCE(SUM(bytes), 0)
		FROM fetches GROUP BY outcome ORDER BY outcome
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []storage.OutcomeCount

	for rows.Next() {
		var c storage.OutcomeCount

		if err := rows.Scan(&c.Outcome, &c.Count, &c.Bytes); err != nil {
			return nil, err
		}

		counts = append(counts, c)
	}

	return counts, rows.Err()
}
