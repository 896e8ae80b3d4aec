package ledger

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/evolve-cli/api/schemas"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more
// robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

const (
	sqlInsertStep = `
		INSERT INTO evolution_steps (run_id, step, task_index, playbook_version, duration_ms, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	sqlInsertUpdate = `
		INSERT INTO evolution_updates (run_id, step, new_version, batch_size, attempts, duration_ms, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
)

func TestNewPostgresLedger(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = NewPostgresLedger(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresLedger_RecordStep(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectPing().WillReturnError(nil)
	l, err := NewPostgresLedger(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)

	now := time.Now().UTC()
	rec := schemas.StepRecord{
		RunID:           "run-1",
		Step:            4,
		TaskIndex:       1,
		PlaybookVersion: 2,
		Duration:        1500 * time.Millisecond,
		Timestamp:       now,
	}

	mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertStep)).
		WithArgs("run-1", 4, 1, 2, int64(1500), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, l.RecordStep(context.Background(), rec))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresLedger_RecordUpdate(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectPing().WillReturnError(nil)
	l, err := NewPostgresLedger(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)

	now := time.Now().UTC()
	rec := schemas.UpdateRecord{
		RunID:      "run-1",
		Step:       5,
		NewVersion: 2,
		BatchSize:  3,
		Attempts:   2,
		Duration:   4 * time.Second,
		Timestamp:  now,
	}

	mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertUpdate)).
		WithArgs("run-1", 5, 2, 3, 2, int64(4000), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, l.RecordUpdate(context.Background(), rec))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresLedger_InsertFailureIsPropagated(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectPing().WillReturnError(nil)
	l, err := NewPostgresLedger(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)

	insertErr := errors.New("constraint violation")
	mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertStep)).
		WillReturnError(insertErr)

	err = l.RecordStep(context.Background(), schemas.StepRecord{RunID: "run-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, insertErr)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
