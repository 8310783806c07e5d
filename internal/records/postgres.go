package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS retainer_records (
  email      TEXT PRIMARY KEY,
  data       JSONB NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS retainer_records_updated_at ON retainer_records (updated_at);`

const (
	selectRecordSQL = `SELECT data, updated_at FROM retainer_records WHERE email = $1`
	upsertRecordSQL = `INSERT INTO retainer_records (email, data, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (email) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`
	listRecordsSQL = `SELECT data, updated_at FROM retainer_records WHERE updated_at >= $1 ORDER BY updated_at`
)

// PostgresStore keeps each record as a JSONB document.
type PostgresStore struct {
	DB *sql.DB
}

func NewPostgresStore(conn *sql.DB) *PostgresStore {
	return &PostgresStore{DB: conn}
}

// EnsureSchema creates the table on first use.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, email string) (*Record, error) {
	var (
		data      []byte
		updatedAt time.Time
	)
	err := s.DB.QueryRowContext(ctx, selectRecordSQL, email).Scan(&data, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select record: %w", err)
	}
	return decodeRow(data, updatedAt)
}

func (s *PostgresStore) Put(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if _, err := s.DB.ExecContext(ctx, upsertRecordSQL, rec.Email, data, rec.UpdatedAt); err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListUpdatedSince(ctx context.Context, since time.Time) ([]Record, error) {
	rows, err := s.DB.QueryContext(ctx, listRecordsSQL, since)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			data      []byte
			updatedAt time.Time
		)
		if err := rows.Scan(&data, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec, err := decodeRow(data, updatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func decodeRow(data []byte, updatedAt time.Time) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	rec.UpdatedAt = updatedAt.UTC()
	return &rec, nil
}
