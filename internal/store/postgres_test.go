// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HiveFrame Contributors

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiveframe/hiveframe/internal/game"
	"github.com/hiveframe/hiveframe/pkg/errutil"
)

func ptr[T any](v T) *T { return &v }

func sampleRecord() game.FrameRecord {
	return game.FrameRecord{
		ID:      "01JFRAME",
		Players: []string{"alice", "bob"},
		Status:  game.StatusInProgress,
		Board:   ptr("X...O...."),
		Turn:    ptr(2),
	}
}

// sampleArgs mirrors sampleRecord in the positional-argument shape the
// upsert sends to the pool.
func sampleArgs() []any {
	return []any{"01JFRAME", []string{"alice", "bob"}, "IN_PROGRESS", ptr("X...O...."), ptr(2)}
}

func TestPostgresFrameStore_UpsertFrame(t *testing.T) {
	tests := []struct {
		name      string
		rec       game.FrameRecord
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   bool
		wantCode  string
	}{
		{
			name: "successful upsert",
			rec:  sampleRecord(),
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO frames`).
					WithArgs(sampleArgs()...).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "waiting frame with no board",
			rec: game.FrameRecord{
				ID:      "01JWAIT",
				Players: []string{"alice"},
				Status:  game.StatusWaitingForPlayers,
			},
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO frames`).
					WithArgs("01JWAIT", []string{"alice"}, "WAITING_FOR_PLAYERS", (*string)(nil), (*int)(nil)).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "transient serialization failure is retried",
			rec:  sampleRecord(),
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO frames`).
					WithArgs(sampleArgs()...).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.SerializationFailure})
				mock.ExpectExec(`INSERT INTO frames`).
					WithArgs(sampleArgs()...).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "permanent failure is not retried",
			rec:  sampleRecord(),
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO frames`).
					WithArgs(sampleArgs()...).
					WillReturnError(errors.New("relation does not exist"))
			},
			wantErr:  true,
			wantCode: "STORE_UPSERT_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			s := NewPostgresFrameStoreWithPool(mock)
			err = s.UpsertFrame(context.Background(), tt.rec)

			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.wantCode)
				errutil.AssertErrorContext(t, err, "frame_id", tt.rec.ID)
			} else {
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestPostgresFrameStore_UpsertFrame_RetriesExhaust(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	for range upsertMaxRetries + 1 {
		mock.ExpectExec(`INSERT INTO frames`).
			WithArgs(sampleArgs()...).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.DeadlockDetected})
	}

	s := NewPostgresFrameStoreWithPool(mock)
	err = s.UpsertFrame(context.Background(), sampleRecord())
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "STORE_UPSERT_FAILED")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(&pgconn.PgError{Code: pgerrcode.SerializationFailure}))
	assert.True(t, isTransient(&pgconn.PgError{Code: pgerrcode.DeadlockDetected}))
	assert.False(t, isTransient(&pgconn.PgError{Code: pgerrcode.UniqueViolation}))
	assert.False(t, isTransient(errors.New("plain error")))
}
