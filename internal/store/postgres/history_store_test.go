package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func TestRecordAttemptInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewHistoryStoreWithPool(mock, "extraction_history")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()

	rec := AttemptRecord{
		RunID:          "run-1",
		ItemKey:        "DSD_SHA",
		Agency:         "OECD",
		Outcome:        "extracted",
		DimensionCount: 7,
		AttemptedAt:    now,
	}

	mock.ExpectExec("INSERT INTO extraction_history").
		WithArgs(
			rec.RunID,
			rec.ItemKey,
			rec.Agency,
			rec.Outcome,
			rec.DimensionCount,
			rec.ErrorMessage,
			rec.AttemptedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = store.RecordAttempt(context.Background(), rec)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordAttemptValidation(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewHistoryStoreWithPool(mock, "")
	require.NoError(t, err)

	err = store.RecordAttempt(context.Background(), AttemptRecord{ItemKey: "DSD_SHA"})
	require.ErrorContains(t, err, "run id")

	err = store.RecordAttempt(context.Background(), AttemptRecord{RunID: "run-1"})
	require.ErrorContains(t, err, "item key")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewHistoryStoreWithPoolRejectsBadTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewHistoryStoreWithPool(mock, "history; DROP TABLE users")
	require.ErrorContains(t, err, "invalid table name")

	_, err = NewHistoryStoreWithPool(nil, "extraction_history")
	require.ErrorContains(t, err, "pool is required")
}
