package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Unclefole/operatorkit/pkg/contracts"
)

func sampleResult(status contracts.ExecutionStatus, message string) contracts.ExecutionResult {
	return contracts.ExecutionResult{
		Status:  status,
		Message: message,
		ExecutedSideEffects: []contracts.ExecutedSideEffect{{
			EffectID: "eff-1",
			Kind:     contracts.KindCreateReminder,
			Outcome:  contracts.OutcomeSuccess,
		}},
	}
}

func TestSQLiteHistoryStore_SaveAndRecent(t *testing.T) {
	db := openTestDB(t)
	hist, err := NewSQLiteHistoryStore(db)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, hist.Save(ctx, sampleResult(contracts.StatusSuccess, "all side effects executed")))
	require.NoError(t, hist.Save(ctx, sampleResult(contracts.StatusFailed, "permission revoked")))

	results, err := hist.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	// Newest first.
	assert.Equal(t, contracts.StatusFailed, results[0].Status)
	assert.Equal(t, contracts.StatusSuccess, results[1].Status)
	require.Len(t, results[1].ExecutedSideEffects, 1)
	assert.Equal(t, contracts.KindCreateReminder, results[1].ExecutedSideEffects[0].Kind)
}

func TestSQLiteHistoryStore_RecentHonorsLimit(t *testing.T) {
	db := openTestDB(t)
	hist, err := NewSQLiteHistoryStore(db)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, hist.Save(ctx, sampleResult(contracts.StatusSuccess, "ok")))
	}

	results, err := hist.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSQLiteHistoryStore_SaveRollsBackOnInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO execution_history").
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	hist := &SQLiteHistoryStore{db: db}
	err = hist.Save(context.Background(), sampleResult(contracts.StatusSuccess, "ok"))
	assert.ErrorContains(t, err, "insert history row")
	assert.NoError(t, mock.ExpectationsWereMet())
}
