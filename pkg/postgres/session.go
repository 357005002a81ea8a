package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// SessionStorage scopes session values to one namespace, typically a
// machine or profile name, so several clients can share a database
type SessionStorage struct {
	db        *DB
	namespace string
}

// SessionStorage returns storage for namespace
func (db *DB) SessionStorage(namespace string) *SessionStorage {
	return &SessionStorage{db: db, namespace: namespace}
}

func (s *SessionStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.pool.QueryRow(ctx, `
		SELECT value FROM session_values WHERE namespace = $1 AND key = $2
	`, s.namespace, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query session value %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SessionStorage) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.pool.Exec(ctx, `
		INSERT INTO session_values (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, s.namespace, key, value)
	if err != nil {
		return fmt.Errorf("failed to save session value %s: %w", key, err)
	}
	return nil
}

func (s *SessionStorage) Remove(ctx context.Context, key string) error {
	_, err := s.db.pool.Exec(ctx, `
		DELETE FROM session_values WHERE namespace = $1 AND key = $2
	`, s.namespace, key)
	if err != nil {
		return fmt.Errorf("failed to delete session value %s: %w", key, err)
	}
	return nil
}
