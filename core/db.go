package core

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type (
	// DBExecutor is satisfied by both *sqlx.DB and *sqlx.Tx.
	DBExecutor interface {
		sqlx.ExtContext
		GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
		SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
		NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	}

	DB interface {
		DBExecutor

		BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	}

	DBTransactor interface {
		DBExecutor

		Commit() error
		Rollback() error
	}
)

var (
	_ DB           = (*sqlx.DB)(nil)
	_ DBTransactor = (*sqlx.Tx)(nil)

	// SnapshotTx sees one consistent state of the database across all its reads.
	SnapshotTx = &sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead}
)

// InTx runs fn inside a transaction, committing if fn succeeds and rolling back otherwise.
func InTx(ctx context.Context, db DB, fn func(tx DBExecutor) error) error {
	return InTxOpts(ctx, db, nil, fn)
}

// InTxOpts is InTx with transaction options (nil for the driver defaults).
func InTxOpts(ctx context.Context, db DB, opts *sql.TxOptions, fn func(tx DBExecutor) error) error {
	tx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }() // no-op after commit

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	return nil
}
