package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"dealflow/internal/condition/models"
	id "dealflow/pkg/domain"
	"dealflow/pkg/platform/sentinel"
	"dealflow/pkg/platform/tx"
)

const uniqueViolation = "23505"

// Postgres persists conditions in PostgreSQL via the pgx stdlib driver.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// querier lets methods run against the pool or an enclosing transaction
// placed in context by the workflow tx boundary.
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

const conditionColumns = `id, transaction_id, step_id, template_id, title, category, level, status,
	resolution_type, due_date, note, evidence_ref, escaped_without_proof, escape_reason,
	archived, archived_at, completed_at, completed_by, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, c *models.Condition) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO conditions (`+conditionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		uuid.UUID(c.ID), uuid.UUID(c.TransactionID), nullStepID(c.StepID), nullTemplateID(c.TemplateID),
		c.Title, string(c.Category), string(c.Level), string(c.Status),
		nullString(string(c.ResolutionType)), nullTime(c.DueDate), c.Note, c.EvidenceRef,
		c.EscapedWithoutProof, c.EscapeReason, c.Archived, nullTime(c.ArchivedAt),
		nullTime(c.CompletedAt), nullUserID(c.CompletedBy), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create condition: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, conditionID id.ConditionID) (*models.Condition, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT `+conditionColumns+` FROM conditions WHERE id = $1`,
		uuid.UUID(conditionID),
	)
	return scanCondition(row)
}

func (s *Postgres) ListByTransaction(ctx context.Context, txID id.TransactionID) ([]*models.Condition, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT `+conditionColumns+` FROM conditions
		WHERE transaction_id = $1
		ORDER BY created_at`,
		uuid.UUID(txID),
	)
	if err != nil {
		return nil, fmt.Errorf("list conditions: %w", err)
	}
	defer rows.Close()
	return collectConditions(rows)
}

// ListGating returns unarchived conditions owned by the step or unassigned
// on the transaction.
func (s *Postgres) ListGating(ctx context.Context, txID id.TransactionID, stepID *id.StepID) ([]*models.Condition, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT `+conditionColumns+` FROM conditions
		WHERE transaction_id = $1
		  AND archived = FALSE
		  AND (step_id IS NULL OR step_id = $2)
		ORDER BY created_at`,
		uuid.UUID(txID), nullStepID(stepID),
	)
	if err != nil {
		return nil, fmt.Errorf("list gating conditions: %w", err)
	}
	defer rows.Close()
	return collectConditions(rows)
}

// Execute locks the row FOR UPDATE, validates, mutates, and writes back in
// one transaction. When an enclosing transaction is in context (workflow
// advance), the lock joins it instead of opening a nested one.
func (s *Postgres) Execute(ctx context.Context, conditionID id.ConditionID, validate func(*models.Condition) error, mutate func(*models.Condition)) (*models.Condition, error) {
	if dbTx, ok := tx.From(ctx); ok {
		return s.executeIn(ctx, dbTx, conditionID, validate, mutate)
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin condition update: %w", err)
	}
	defer func() { _ = dbTx.Rollback() }()

	c, err := s.executeIn(ctx, dbTx, conditionID, validate, mutate)
	if err != nil {
		return nil, err
	}
	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit condition update: %w", err)
	}
	return c, nil
}

func (s *Postgres) executeIn(ctx context.Context, dbTx *sql.Tx, conditionID id.ConditionID, validate func(*models.Condition) error, mutate func(*models.Condition)) (*models.Condition, error) {
	row := dbTx.QueryRowContext(ctx, `
		SELECT `+conditionColumns+` FROM conditions WHERE id = $1 FOR UPDATE`,
		uuid.UUID(conditionID),
	)
	c, err := scanCondition(row)
	if err != nil {
		return nil, err
	}
	if err := validate(c); err != nil {
		return nil, err
	}
	mutate(c)

	_, err = dbTx.ExecContext(ctx, `
		UPDATE conditions SET
			status = $2, resolution_type = $3, note = $4, evidence_ref = $5,
			escaped_without_proof = $6, escape_reason = $7,
			archived = $8, archived_at = $9,
			completed_at = $10, completed_by = $11, updated_at = $12
		WHERE id = $1`,
		uuid.UUID(c.ID), string(c.Status), nullString(string(c.ResolutionType)), c.Note, c.EvidenceRef,
		c.EscapedWithoutProof, c.EscapeReason, c.Archived, nullTime(c.ArchivedAt),
		nullTime(c.CompletedAt), nullUserID(c.CompletedBy), c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update condition: %w", err)
	}
	return c, nil
}

func (s *Postgres) ArchiveByStep(ctx context.Context, txID id.TransactionID, stepID id.StepID, now time.Time) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		UPDATE conditions SET archived = TRUE, archived_at = $3, updated_at = $3
		WHERE transaction_id = $1 AND step_id = $2 AND archived = FALSE`,
		uuid.UUID(txID), uuid.UUID(stepID), now,
	)
	if err != nil {
		return fmt.Errorf("archive step conditions: %w", err)
	}
	return nil
}

func (s *Postgres) ExistsByTemplate(ctx context.Context, txID id.TransactionID, templateID id.TemplateID) (bool, error) {
	var exists bool
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM conditions WHERE transaction_id = $1 AND template_id = $2
		)`,
		uuid.UUID(txID), uuid.UUID(templateID),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check template dedup: %w", err)
	}
	return exists, nil
}

// NormalizeLegacyLevels is the one-time migration for rows written before
// the level column existed: the boolean is_blocking mirror becomes the
// canonical tagged level. Safe to run at every startup; it only touches
// rows with an empty level.
func (s *Postgres) NormalizeLegacyLevels(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE conditions SET level = CASE WHEN is_blocking THEN 'blocking' ELSE 'required' END
		WHERE level IS NULL OR level = ''`)
	if err != nil {
		return fmt.Errorf("normalize legacy levels: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCondition(row rowScanner) (*models.Condition, error) {
	var (
		c              models.Condition
		conditionID    uuid.UUID
		transactionID  uuid.UUID
		stepID         uuid.NullUUID
		templateID     uuid.NullUUID
		category       string
		level          string
		status         string
		resolutionType sql.NullString
		dueDate        sql.NullTime
		archivedAt     sql.NullTime
		completedAt    sql.NullTime
		completedBy    uuid.NullUUID
	)
	err := row.Scan(
		&conditionID, &transactionID, &stepID, &templateID, &c.Title, &category, &level, &status,
		&resolutionType, &dueDate, &c.Note, &c.EvidenceRef, &c.EscapedWithoutProof, &c.EscapeReason,
		&c.Archived, &archivedAt, &completedAt, &completedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan condition: %w", err)
	}

	c.ID = id.ConditionID(conditionID)
	c.TransactionID = id.TransactionID(transactionID)
	if stepID.Valid {
		sid := id.StepID(stepID.UUID)
		c.StepID = &sid
	}
	if templateID.Valid {
		tid := id.TemplateID(templateID.UUID)
		c.TemplateID = &tid
	}
	c.Category = models.Category(category)
	c.Level = models.Level(level)
	c.Status = models.Status(status)
	if resolutionType.Valid {
		c.ResolutionType = models.ResolutionType(resolutionType.String)
	}
	if dueDate.Valid {
		c.DueDate = &dueDate.Time
	}
	if archivedAt.Valid {
		c.ArchivedAt = &archivedAt.Time
	}
	if completedAt.Valid {
		c.CompletedAt = &completedAt.Time
	}
	if completedBy.Valid {
		c.CompletedBy = id.UserID(completedBy.UUID)
	}
	return &c, nil
}

func collectConditions(rows *sql.Rows) ([]*models.Condition, error) {
	var out []*models.Condition
	for rows.Next() {
		c, err := scanCondition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
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

func nullTemplateID(templateID *id.TemplateID) uuid.NullUUID {
	if templateID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*templateID), Valid: true}
}

func nullUserID(userID id.UserID) uuid.NullUUID {
	if userID.IsZero() {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(userID), Valid: true}
}
