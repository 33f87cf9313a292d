package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mselser95/btc15m-maker/pkg/types"
)

func testPosition() *types.Position {
	now := time.Now()
	return &types.Position{
		PositionID:  "pos-1",
		WindowStart: now,
		Direction:   types.Up,
		Status:      types.PositionOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
		RealizedPnL: decimal.Zero,
		BuyLeg: &types.Execution{
			Side:         types.Buy,
			OrderType:    types.FAK,
			ClientID:     "pos-1",
			Status:       types.ExecFilled,
			FilledPrice:  decimal.NewFromFloat(0.5),
			FilledAmount: decimal.NewFromInt(10),
			FilledShares: decimal.NewFromInt(20),
			SubmittedAt:  now,
			ResolvedAt:   now,
		},
	}
}

func TestSavePositionInsertsSummaryAndBuyLeg(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO positions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO executions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	store := newPostgresStorageWithDB(db, zap.NewNop())
	err = store.SavePosition(context.Background(), testPosition())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePositionRollsBackOnExecutionInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO positions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO executions").WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	store := newPostgresStorageWithDB(db, zap.NewNop())
	err = store.SavePosition(context.Background(), testPosition())
	require.Error(t, err)
}
