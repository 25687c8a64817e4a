package offer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "dealflow/pkg/domain"
	"dealflow/pkg/platform/tx"
)

// PostgresStore persists offer acceptance via the pgx stdlib driver.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if dbTx, ok := tx.From(ctx); ok {
		return dbTx
	}
	return s.db
}

func (s *PostgresStore) MarkAccepted(ctx context.Context, txID id.TransactionID, at time.Time) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO accepted_offers (transaction_id, accepted_at)
		VALUES ($1,$2)
		ON CONFLICT (transaction_id) DO UPDATE SET accepted_at = EXCLUDED.accepted_at`,
		uuid.UUID(txID), at,
	)
	if err != nil {
		return fmt.Errorf("mark offer accepted: %w", err)
	}
	return nil
}

func (s *PostgresStore) ClearAccepted(ctx context.Context, txID id.TransactionID) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		DELETE FROM accepted_offers WHERE transaction_id = $1`,
		uuid.UUID(txID),
	)
	if err != nil {
		return fmt.Errorf("clear accepted offer: %w", err)
	}
	return nil
}

func (s *PostgresStore) HasAcceptedOffer(ctx context.Context, txID id.TransactionID) (bool, error) {
	var exists bool
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM accepted_offers WHERE transaction_id = $1)`,
		uuid.UUID(txID),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check accepted offer: %w", err)
	}
	return exists, nil
}
