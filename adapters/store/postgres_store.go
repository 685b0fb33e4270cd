package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/lumenpay/lumenvault/core"
	"github.com/lumenpay/lumenvault/ports"
)

// Schema creates the users table. The unique constraint on public_key is
// what keeps concurrent first logins from creating two users.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id         UUID PRIMARY KEY,
	public_key VARCHAR(56) NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL
)`

const (
	insertUserQuery = `INSERT INTO users (id, public_key, created_at) VALUES ($1, $2, $3) ON CONFLICT (public_key) DO NOTHING`
	selectUserQuery = `SELECT id, public_key, created_at FROM users WHERE public_key = $1`
)

// PostgresUserStore is a PostgreSQL implementation of the UserStore interface
type PostgresUserStore struct {
	db *sql.DB
}

// NewPostgresUserStore creates a user store over an open database handle
func NewPostgresUserStore(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

// OpenPostgres opens a lib/pq connection and makes sure the schema exists
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return db, nil
}

var _ ports.UserStore = (*PostgresUserStore)(nil)

// GetOrCreate inserts candidate unless a user with the same public key exists,
// then returns whichever row won.
func (s *PostgresUserStore) GetOrCreate(ctx context.Context, candidate core.User) (core.User, bool, error) {
	res, err := s.db.ExecContext(ctx, insertUserQuery, candidate.ID, candidate.PublicKey, candidate.CreatedAt.UTC())
	if err != nil {
		return core.User{}, false, fmt.Errorf("%w: insert user: %v", core.ErrStore, err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return core.User{}, false, fmt.Errorf("%w: insert user: %v", core.ErrStore, err)
	}
	if inserted == 1 {
		return candidate, true, nil
	}

	var (
		user      core.User
		createdAt time.Time
	)
	err = s.db.QueryRowContext(ctx, selectUserQuery, candidate.PublicKey).Scan(&user.ID, &user.PublicKey, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.User{}, false, fmt.Errorf("%w: user vanished after insert conflict", core.ErrStore)
		}
		return core.User{}, false, fmt.Errorf("%w: select user: %v", core.ErrStore, err)
	}
	user.CreatedAt = createdAt
	return user, false, nil
}
