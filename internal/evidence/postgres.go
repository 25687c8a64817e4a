package evidence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "dealflow/pkg/domain"
	"dealflow/pkg/platform/tx"
)

// PostgresStore persists evidence rows via the pgx stdlib driver.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if dbTx, ok := tx.From(ctx); ok {
		return dbTx
	}
	return s.db
}

const evidenceColumns = `id, condition_id, kind, ref, note, created_at, created_by`

func (s *PostgresStore) Save(ctx context.Context, ev *Evidence) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO evidence (`+evidenceColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		uuid.UUID(ev.ID), uuid.UUID(ev.ConditionID), string(ev.Kind), ev.Ref, ev.Note,
		ev.CreatedAt, nullUserID(ev.CreatedBy),
	)
	if err != nil {
		return fmt.Errorf("save evidence: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByCondition(ctx context.Context, conditionID id.ConditionID) ([]*Evidence, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT `+evidenceColumns+` FROM evidence
		WHERE condition_id = $1
		ORDER BY created_at, id`,
		uuid.UUID(conditionID),
	)
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	defer rows.Close()

	var out []*Evidence
	for rows.Next() {
		var (
			ev        Evidence
			evID      uuid.UUID
			condID    uuid.UUID
			createdBy uuid.NullUUID
		)
		if err := rows.Scan(&evID, &condID, (*string)(&ev.Kind), &ev.Ref, &ev.Note,
			&ev.CreatedAt, &createdBy); err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		ev.ID = id.EvidenceID(evID)
		ev.ConditionID = id.ConditionID(condID)
		if createdBy.Valid {
			ev.CreatedBy = id.UserID(createdBy.UUID)
		}
		out = append(out, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	return out, nil
}

func nullUserID(userID id.UserID) uuid.NullUUID {
	if userID.IsZero() {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(userID), Valid: true}
}
