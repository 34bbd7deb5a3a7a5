package database

import (
	"context"
	"database/sql"
	"fmt"
)

// DefaultBatchChunkSize bounds how many rows execute between context
// checks inside RunPreparedBatch.
const DefaultBatchChunkSize = 500

// BatchOptions controls RunPreparedBatch.
type BatchOptions struct {
	// ChunkSize is the number of rows between cancellation checks.
	// Zero selects DefaultBatchChunkSize.
	ChunkSize int
	// ManageTransaction wraps the whole batch in a single write
	// transaction that commits on success and rolls back on the first
	// row failure.
	ManageTransaction bool
	// Tx runs the batch inside an existing transaction when
	// ManageTransaction is false. Nil with ManageTransaction false runs
	// each row in autocommit mode.
	Tx *sql.Tx
}

// DefaultBatchOptions is what most callers want: one managed transaction,
// default chunking.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{ChunkSize: DefaultBatchChunkSize, ManageTransaction: true}
}

// RunPreparedBatch prepares query once and executes it for every row of
// arguments. With a managed transaction any row failure rolls the whole
// batch back and returns the error.
func (d *DB) RunPreparedBatch(ctx context.Context, operation, query string, rows [][]interface{}, opts BatchOptions) error {
	if len(rows) == 0 {
		return nil
	}
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultBatchChunkSize
	}

	if opts.ManageTransaction {
		batch, err := d.BeginBatch(ctx)
		if err != nil {
			return err
		}
		err = execPreparedRows(ctx, batch.Tx, query, rows, chunkSize)
		d.record(operation, batch.start, err)
		return batch.End(err)
	}

	if opts.Tx != nil {
		return d.wrapErr(execPreparedRows(ctx, opts.Tx, query, rows, chunkSize))
	}

	stmt, err := d.sql.PrepareContext(ctx, query)
	if err != nil {
		return d.wrapErr(fmt.Errorf("prepare batch statement: %w", err))
	}
	defer func() { _ = stmt.Close() }()

	for i, args := range rows {
		if i%chunkSize == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return d.wrapErr(fmt.Errorf("batch row %d: %w", i, err))
		}
	}
	return nil
}

func execPreparedRows(ctx context.Context, tx *sql.Tx, query string, rows [][]interface{}, chunkSize int) error {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare batch statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, args := range rows {
		if i%chunkSize == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("batch row %d: %w", i, err)
		}
	}
	return nil
}
