package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	id "dealflow/pkg/domain"
	dErrors "dealflow/pkg/domain-errors"
	"dealflow/pkg/platform/tx"
)

const serializationFailure = "40001"

// postgresTx is the database-backed StoreTx. It opens a transaction, takes
// a row lock on the transaction record, and puts the *sql.Tx in context so
// every store read and write inside the callback joins the same unit. Two
// concurrent advances on the same transaction serialize on the row lock;
// the loser sees post-commit state.
type postgresTx struct {
	db *sql.DB
}

func newPostgresTx(db *sql.DB) *postgresTx {
	return &postgresTx{db: db}
}

func (p *postgresTx) RunInTx(ctx context.Context, txID id.TransactionID, fn func(txCtx context.Context) error) error {
	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin workflow tx: %w", err)
	}
	defer func() { _ = dbTx.Rollback() }()

	var locked uuid.UUID
	err = dbTx.QueryRowContext(ctx,
		`SELECT id FROM transactions WHERE id = $1 FOR UPDATE`,
		uuid.UUID(txID),
	).Scan(&locked)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("lock transaction row: %w", err)
	}
	// No row yet means this unit is creating the transaction; mutation
	// paths that need the row surface not-found from their own reads.

	if err := fn(tx.WithTx(ctx, dbTx)); err != nil {
		return err
	}

	if err := dbTx.Commit(); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == serializationFailure {
			return dErrors.Wrap(err, dErrors.CodeConcurrencyConflict, "transaction was modified concurrently; retry")
		}
		return fmt.Errorf("commit workflow tx: %w", err)
	}
	return nil
}
