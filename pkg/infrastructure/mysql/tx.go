package mysql

import (
	"context"
	"database/sql"

	driver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/shivamrj1035/tutor-flow-backend/pkg/domain/model"
)

const errDuplicateEntry = 1062

type txKey struct{}

func withTx(ctx context.Context, db *sqlx.DB, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return persistenceError(err, "begin transaction")
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return persistenceError(err, "commit transaction")
	}
	return nil
}

func txFromContext(ctx context.Context) *sqlx.Tx {
	tx, _ := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx
}

// queryer returns the transaction carried by ctx, or db outside of one.
func queryer(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return db
}

func persistenceError(err error, op string) error {
	return errors.WithMessagef(model.ErrPersistence, "%s: %v", op, err)
}

func isDuplicateEntry(err error) bool {
	var mysqlErr *driver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == errDuplicateEntry
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
