package runlog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS voi_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT UNIQUE,
    finished INTEGER,
    voi_direct REAL,
    record TEXT
);`

// sqliteRow mirrors one voi_runs row.
type sqliteRow struct {
	RunID     string  `db:"run_id"`
	Finished  int64   `db:"finished"`
	VoIDirect float64 `db:"voi_direct"`
	Record    string  `db:"record"`
}

// SQLiteStore persists run records to a SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes the record to the database. Appending a run id twice fails.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx,
		`INSERT INTO voi_runs (run_id, finished, voi_direct, record) VALUES (:run_id, :finished, :voi_direct, :record)`,
		sqliteRow{RunID: rec.RunID, Finished: rec.FinishedAt.UnixNano(), VoIDirect: rec.VoIDirect, Record: string(b)})
	return err
}

// List returns the most recent records first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Record, error) {
	query := `SELECT record FROM voi_runs ORDER BY finished DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	var data []string
	if err := s.db.SelectContext(ctx, &data, query, args...); err != nil {
		return nil, err
	}
	res := make([]Record, 0, len(data))
	for _, d := range data {
		var r Record
		if err := json.Unmarshal([]byte(d), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, r)
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
