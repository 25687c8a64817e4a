package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"dealflow/internal/workflow/models"
	id "dealflow/pkg/domain"
	"dealflow/pkg/platform/sentinel"
	"dealflow/pkg/platform/tx"
)

const uniqueViolation = "23505"

// Postgres persists transactions and steps via the pgx stdlib driver.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) q(ctx context.Context) querier {
	if dbTx, ok := tx.From(ctx); ok {
		return dbTx
	}
	return s.db
}

const transactionColumns = `id, type, client_name, property_ref, closing_date, current_step_id, created_at, updated_at`

const stepColumns = `id, transaction_id, name, step_order, status, requires_accepted_offer,
	entered_at, completed_at, created_at, updated_at`

func (s *Postgres) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		uuid.UUID(t.ID), string(t.Type), t.ClientName, t.PropertyRef,
		nullTime(t.ClosingDate), nullStepID(t.CurrentStepID), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (s *Postgres) FindTransaction(ctx context.Context, txID id.TransactionID) (*models.Transaction, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions WHERE id = $1`,
		uuid.UUID(txID),
	)
	return scanTransaction(row)
}

func (s *Postgres) UpdateTransaction(ctx context.Context, t *models.Transaction) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE transactions SET
			closing_date = $2, current_step_id = $3, updated_at = $4
		WHERE id = $1`,
		uuid.UUID(t.ID), nullTime(t.ClosingDate), nullStepID(t.CurrentStepID), t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// DeleteTransaction removes a transaction and its steps. Used to unwind a
// creation that failed partway; deleting an absent transaction is a no-op.
func (s *Postgres) DeleteTransaction(ctx context.Context, txID id.TransactionID) error {
	if _, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM transaction_steps WHERE transaction_id = $1`, uuid.UUID(txID),
	); err != nil {
		return fmt.Errorf("delete transaction steps: %w", err)
	}
	if _, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM transactions WHERE id = $1`, uuid.UUID(txID),
	); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

func (s *Postgres) CreateStep(ctx context.Context, step *models.TransactionStep) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO transaction_steps (`+stepColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		uuid.UUID(step.ID), uuid.UUID(step.TransactionID), step.Name, step.StepOrder,
		string(step.Status), step.RequiresAcceptedOffer,
		nullTime(step.EnteredAt), nullTime(step.CompletedAt), step.CreatedAt, step.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create step: %w", err)
	}
	return nil
}

func (s *Postgres) FindStep(ctx context.Context, stepID id.StepID) (*models.TransactionStep, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT `+stepColumns+` FROM transaction_steps WHERE id = $1`,
		uuid.UUID(stepID),
	)
	return scanStep(row)
}

func (s *Postgres) FindStepByOrder(ctx context.Context, txID id.TransactionID, order int) (*models.TransactionStep, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT `+stepColumns+` FROM transaction_steps
		WHERE transaction_id = $1 AND step_order = $2`,
		uuid.UUID(txID), order,
	)
	return scanStep(row)
}

func (s *Postgres) ListSteps(ctx context.Context, txID id.TransactionID) ([]*models.TransactionStep, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT `+stepColumns+` FROM transaction_steps
		WHERE transaction_id = $1
		ORDER BY step_order`,
		uuid.UUID(txID),
	)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var out []*models.TransactionStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, step)
	}
	return out, rows.Err()
}

func (s *Postgres) UpdateStep(ctx context.Context, step *models.TransactionStep) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE transaction_steps SET
			status = $2, entered_at = $3, completed_at = $4, updated_at = $5
		WHERE id = $1`,
		uuid.UUID(step.ID), string(step.Status),
		nullTime(step.EnteredAt), nullTime(step.CompletedAt), step.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update step: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update step: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		t             models.Transaction
		transactionID uuid.UUID
		txType        string
		closingDate   sql.NullTime
		currentStepID uuid.NullUUID
	)
	err := row.Scan(
		&transactionID, &txType, &t.ClientName, &t.PropertyRef,
		&closingDate, &currentStepID, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	t.ID = id.TransactionID(transactionID)
	t.Type = models.TransactionType(txType)
	if closingDate.Valid {
		t.ClosingDate = &closingDate.Time
	}
	if currentStepID.Valid {
		sid := id.StepID(currentStepID.UUID)
		t.CurrentStepID = &sid
	}
	return &t, nil
}

func scanStep(row rowScanner) (*models.TransactionStep, error) {
	var (
		step          models.TransactionStep
		stepID        uuid.UUID
		transactionID uuid.UUID
		status        string
		enteredAt     sql.NullTime
		completedAt   sql.NullTime
	)
	err := row.Scan(
		&stepID, &transactionID, &step.Name, &step.StepOrder, &status,
		&step.RequiresAcceptedOffer, &enteredAt, &completedAt, &step.CreatedAt, &step.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan step: %w", err)
	}

	step.ID = id.StepID(stepID)
	step.TransactionID = id.TransactionID(transactionID)
	step.Status = models.StepStatus(status)
	if enteredAt.Valid {
		step.EnteredAt = &enteredAt.Time
	}
	if completedAt.Valid {
		step.CompletedAt = &completedAt.Time
	}
	return &step, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullStepID(stepID *id.StepID) uuid.NullUUID {
	if stepID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*stepID), Valid: true}
}
