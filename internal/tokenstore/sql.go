package tokenstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// SQLStore keeps records in the Postgres sessions table created by
// db.Migrate.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

func (s *SQLStore) Get(ctx context.Context, id string) (*Record, error) {
	const q = `SELECT data FROM sessions WHERE id = $1 AND expires_at > $2`
	var data []byte
	if err := s.db.QueryRowContext(ctx, q, id, s.now().UTC()).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *SQLStore) Put(ctx context.Context, id string, rec *Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	const q = `
		INSERT INTO sessions (id, data, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at, expires_at = EXCLUDED.expires_at
	`
	_, err = s.db.ExecContext(ctx, q, id, string(data), now, now.Add(ttl))
	return err
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM sessions WHERE id = $1`
	_, err := s.db.ExecContext(ctx, q, id)
	return err
}

// DeleteExpired removes records past their expiry and returns how many went.
func (s *SQLStore) DeleteExpired(ctx context.Context) (int64, error) {
	const q = `DELETE FROM sessions WHERE expires_at <= $1`
	res, err := s.db.ExecContext(ctx, q, s.now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
