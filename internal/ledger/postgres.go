// File: internal/ledger/postgres.go
package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/evolve-cli/api/schemas"
)

// DBPool abstracts the pgxpool.Pool so tests can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresLedger persists run telemetry to PostgreSQL. Schema:
//
//	CREATE TABLE evolution_steps (
//	    run_id TEXT, step INT, task_index INT, playbook_version INT,
//	    duration_ms BIGINT, recorded_at TIMESTAMPTZ,
//	    PRIMARY KEY (run_id, step)
//	);
//	CREATE TABLE evolution_updates (
//	    run_id TEXT, step INT, new_version INT, batch_size INT,
//	    attempts INT, duration_ms BIGINT, recorded_at TIMESTAMPTZ,
//	    PRIMARY KEY (run_id, new_version)
//	);
type PostgresLedger struct {
	pool DBPool
	log  *zap.Logger
}

var _ schemas.Ledger = (*PostgresLedger)(nil)

// NewPostgresLedger verifies the connection and returns the ledger.
func NewPostgresLedger(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresLedger, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ledger database: %w", err)
	}
	return &PostgresLedger{
		pool: pool,
		log:  logger.Named("ledger.postgres"),
	}, nil
}

// RecordStep inserts one step row.
func (l *PostgresLedger) RecordStep(ctx context.Context, rec schemas.StepRecord) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO evolution_steps (run_id, step, task_index, playbook_version, duration_ms, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6);
	`, rec.RunID, rec.Step, rec.TaskIndex, rec.PlaybookVersion, rec.Duration.Milliseconds(), rec.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert step record: %w", err)
	}
	return nil
}

// RecordUpdate inserts one update row.
func (l *PostgresLedger) RecordUpdate(ctx context.Context, rec schemas.UpdateRecord) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO evolution_updates (run_id, step, new_version, batch_size, attempts, duration_ms, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`, rec.RunID, rec.Step, rec.NewVersion, rec.BatchSize, rec.Attempts, rec.Duration.Milliseconds(), rec.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert update record: %w", err)
	}
	return nil
}

// Close releases the underlying pool.
func (l *PostgresLedger) Close() {
	l.pool.Close()
}
