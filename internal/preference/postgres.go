package preference

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "dealflow/pkg/domain"
)

// PostgresStore persists preferences via the pgx stdlib driver.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Set(ctx context.Context, p Preference) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_preferences (user_id, key, value, updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (user_id, key) DO UPDATE SET
			value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		uuid.UUID(p.UserID), string(p.Key), p.Value, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("set preference: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, userID id.UserID, key Key) (Preference, error) {
	p := Preference{UserID: userID, Key: key}
	err := s.db.QueryRowContext(ctx, `
		SELECT value, updated_at FROM user_preferences
		WHERE user_id = $1 AND key = $2`,
		uuid.UUID(userID), string(key),
	).Scan(&p.Value, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("get preference: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]Preference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value, updated_at FROM user_preferences WHERE user_id = $1`,
		uuid.UUID(userID),
	)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	defer rows.Close()

	var out []Preference
	for rows.Next() {
		p := Preference{UserID: userID}
		var key string
		if err := rows.Scan(&key, &p.Value, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		p.Key = Key(key)
		out = append(out, p)
	}
	return out, rows.Err()
}
