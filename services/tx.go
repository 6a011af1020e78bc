package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"skillSwapAPI/internal/types/challenge"
)

// maxTxAttempts bounds the automatic retry budget for serialization
// conflicts before the caller gets ErrTxConflict.
const maxTxAttempts = 3

// runSerializable executes fn inside a SERIALIZABLE transaction. All reads
// fn performs are part of the transaction's read set; a concurrent write to
// any of them rejects the commit and fn is re-executed with fresh reads.
// fn must therefore be free of non-idempotent external calls.
func runSerializable(ctx context.Context, db *pgxpool.Pool, fn func(pgx.Tx) error) error {
	var lastErr error

	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err := func() error {
			tx, err := db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
			if err != nil {
				return err
			}
			defer tx.Rollback(ctx)

			if err := fn(tx); err != nil {
				return err
			}
			return tx.Commit(ctx)
		}()

		if err == nil {
			return nil
		}
		if !isSerializationFailure(err) {
			return err
		}

		lastErr = err
		log.Printf("runSerializable: conflict on attempt %d/%d: %v", attempt, maxTxAttempts, err)
		time.Sleep(time.Duration(attempt) * 25 * time.Millisecond)
	}

	log.Printf("runSerializable: giving up after %d attempts: %v", maxTxAttempts, lastErr)
	return challenge.ErrTxConflict
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
