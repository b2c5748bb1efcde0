package store

import (
	"context"
	"database/sql"
	"fmt"

	"stockpicks/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RankStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS ranked_picks (
	file                    TEXT    NOT NULL,
	date                    TEXT    NOT NULL,
	rank                    INTEGER NOT NULL,
	symbol                  TEXT    NOT NULL,
	company_name            TEXT    NOT NULL,
	current_value           TEXT    NOT NULL,
	analyst_estimated_price TEXT    NOT NULL,
	summary                 TEXT    NOT NULL,
	current_value_num       REAL,
	estimated_price         REAL,
	potential_upside        REAL,
	is_top_pick             INTEGER NOT NULL,
	last_price              REAL,
	PRIMARY KEY (file, rank)
);
CREATE INDEX IF NOT EXISTS ranked_picks_date ON ranked_picks (date);
`

// SQLiteStore implements RankStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns
// a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One writer at a time; archive workers share the handle.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WriteRanked replaces the rows for file in one transaction.
func (s *SQLiteStore) WriteRanked(ctx context.Context, file string, stocks []domain.RankedStock) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ranked_picks WHERE file = ?`, file); err != nil {
		return fmt.Errorf("clearing %s: %w", file, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO ranked_picks
		(file, date, rank, symbol, company_name, current_value, analyst_estimated_price, summary,
		 current_value_num, estimated_price, potential_upside, is_top_pick, last_price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range ToRecords(file, stocks) {
		_, err := stmt.ExecContext(ctx, r.File, r.Date, r.Rank, r.Symbol, r.CompanyName,
			r.CurrentValue, r.AnalystEstimatedPrice, r.Summary,
			nullFloat(r.CurrentValueNum), nullFloat(r.EstimatedPrice), nullFloat(r.PotentialUpside),
			r.IsTopPick, nullFloat(r.LastPrice))
		if err != nil {
			return fmt.Errorf("inserting %s rank %d: %w", file, r.Rank, err)
		}
	}
	return tx.Commit()
}

// ReadRanked returns the rows for file ordered by rank.
func (s *SQLiteStore) ReadRanked(ctx context.Context, file string) ([]domain.RankedStock, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT file, date, rank, symbol, company_name, current_value,
		analyst_estimated_price, summary, current_value_num, estimated_price, potential_upside,
		is_top_pick, last_price
		FROM ranked_picks WHERE file = ? ORDER BY rank`, file)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RankedStock
	for rows.Next() {
		var (
			r                  PickRecord
			cur, est, up, last sql.NullFloat64
		)
		if err := rows.Scan(&r.File, &r.Date, &r.Rank, &r.Symbol, &r.CompanyName, &r.CurrentValue,
			&r.AnalystEstimatedPrice, &r.Summary, &cur, &est, &up, &r.IsTopPick, &last); err != nil {
			return nil, err
		}
		r.CurrentValueNum = floatPtr(cur)
		r.EstimatedPrice = floatPtr(est)
		r.PotentialUpside = floatPtr(up)
		r.LastPrice = floatPtr(last)
		out = append(out, r.ToRanked())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", file, ErrNotFound)
	}
	return out, nil
}

// ListFiles returns the distinct archived filenames.
func (s *SQLiteStore) ListFiles(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT file FROM ranked_picks ORDER BY file`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := []string{}
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
