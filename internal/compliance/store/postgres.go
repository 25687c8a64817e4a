package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dealflow/internal/compliance/models"
	id "dealflow/pkg/domain"
	"dealflow/pkg/platform/sentinel"
	"dealflow/pkg/platform/tx"
)

// Postgres persists compliance records via the pgx stdlib driver.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) q(ctx context.Context) querier {
	if dbTx, ok := tx.From(ctx); ok {
		return dbTx
	}
	return s.db
}

const recordColumns = `condition_id, transaction_id, party_id, full_name, date_of_birth,
	document_ref, outcome, reference_id, evidence_ref, verified_at, verified_by,
	last_completed_step, created_at, updated_at`

func (s *Postgres) Upsert(ctx context.Context, r *models.Record) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO compliance_records (`+recordColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (condition_id) DO UPDATE SET
			party_id = EXCLUDED.party_id,
			full_name = EXCLUDED.full_name,
			date_of_birth = EXCLUDED.date_of_birth,
			document_ref = EXCLUDED.document_ref,
			outcome = EXCLUDED.outcome,
			reference_id = EXCLUDED.reference_id,
			evidence_ref = EXCLUDED.evidence_ref,
			verified_at = EXCLUDED.verified_at,
			verified_by = EXCLUDED.verified_by,
			last_completed_step = EXCLUDED.last_completed_step,
			updated_at = EXCLUDED.updated_at`,
		uuid.UUID(r.ConditionID), uuid.UUID(r.TransactionID),
		r.Party.PartyID, r.Party.FullName, r.Party.DateOfBirth, r.Party.DocumentRef,
		r.Outcome, r.ReferenceID, r.EvidenceRef,
		nullTime(r.VerifiedAt), nullUserID(r.VerifiedBy),
		string(r.LastCompletedStep), r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert compliance record: %w", err)
	}
	return nil
}

func (s *Postgres) FindByCondition(ctx context.Context, conditionID id.ConditionID) (*models.Record, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM compliance_records WHERE condition_id = $1`,
		uuid.UUID(conditionID),
	)
	return scanRecord(row)
}

// Execute locks the record FOR UPDATE, validates, mutates, and writes back
// in one transaction.
func (s *Postgres) Execute(ctx context.Context, conditionID id.ConditionID, validate func(*models.Record) error, mutate func(*models.Record)) (*models.Record, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin compliance update: %w", err)
	}
	defer func() { _ = dbTx.Rollback() }()

	row := dbTx.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM compliance_records WHERE condition_id = $1 FOR UPDATE`,
		uuid.UUID(conditionID),
	)
	r, err := scanRecord(row)
	if err != nil {
		return nil, err
	}
	if err := validate(r); err != nil {
		return nil, err
	}
	mutate(r)

	_, err = dbTx.ExecContext(ctx, `
		UPDATE compliance_records SET
			party_id = $2, full_name = $3, date_of_birth = $4, document_ref = $5,
			outcome = $6, reference_id = $7, evidence_ref = $8,
			verified_at = $9, verified_by = $10,
			last_completed_step = $11, updated_at = $12
		WHERE condition_id = $1`,
		uuid.UUID(r.ConditionID),
		r.Party.PartyID, r.Party.FullName, r.Party.DateOfBirth, r.Party.DocumentRef,
		r.Outcome, r.ReferenceID, r.EvidenceRef,
		nullTime(r.VerifiedAt), nullUserID(r.VerifiedBy),
		string(r.LastCompletedStep), r.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update compliance record: %w", err)
	}
	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit compliance update: %w", err)
	}
	return r, nil
}

func scanRecord(row *sql.Row) (*models.Record, error) {
	var (
		r             models.Record
		conditionID   uuid.UUID
		transactionID uuid.UUID
		verifiedAt    sql.NullTime
		verifiedBy    uuid.NullUUID
		lastStep      string
	)
	err := row.Scan(
		&conditionID, &transactionID,
		&r.Party.PartyID, &r.Party.FullName, &r.Party.DateOfBirth, &r.Party.DocumentRef,
		&r.Outcome, &r.ReferenceID, &r.EvidenceRef,
		&verifiedAt, &verifiedBy,
		&lastStep, &r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan compliance record: %w", err)
	}
	r.ID = id.ConditionID(conditionID)
	r.ConditionID = id.ConditionID(conditionID)
	r.TransactionID = id.TransactionID(transactionID)
	if verifiedAt.Valid {
		t := verifiedAt.Time
		r.VerifiedAt = &t
	}
	if verifiedBy.Valid {
		r.VerifiedBy = id.UserID(verifiedBy.UUID)
	}
	r.LastCompletedStep = models.SagaStep(lastStep)
	return &r, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullUserID(userID id.UserID) uuid.NullUUID {
	if userID.IsZero() {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(userID), Valid: true}
}
