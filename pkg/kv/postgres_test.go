package kv

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT value FROM kv_entries`).
		WithArgs([]string{"jobs", "job-1"}).
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow([]byte(`{"status":"done"}`)))

	value, err := store.Get(ctx, Key{"jobs", "job-1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"done"}`, string(value))

	mock.ExpectQuery(`SELECT value FROM kv_entries`).
		WithArgs([]string{"jobs", "missing"}).
		WillReturnError(pgx.ErrNoRows)

	_, err = store.Get(ctx, Key{"jobs", "missing"})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetAndDelete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)
	ctx := context.Background()
	key := Key{"unresolved", "u1", "id-1"}

	mock.ExpectExec(`INSERT INTO kv_entries`).
		WithArgs([]string(key), []byte(`{"place":"x"}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, store.Set(ctx, key, []byte(`{"place":"x"}`)))

	mock.ExpectExec(`DELETE FROM kv_entries`).
		WithArgs([]string(key)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, store.Delete(ctx, key))

	mock.ExpectExec(`DELETE FROM kv_entries`).
		WithArgs([]string(key)).
		WillReturnError(errors.New("connection reset"))
	err = store.Delete(ctx, key)
	assert.ErrorContains(t, err, "connection reset")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)

	rows := pgxmock.NewRows([]string{"key", "value"}).
		AddRow([]string{"pins", "u1", "2024-05", "01", "00:00:00"}, []byte(`{"data":1}`)).
		AddRow([]string{"pins", "u1", "2024-05", "02", "09:30:00"}, []byte(`{"data":2}`))

	mock.ExpectQuery(`FROM kv_entries`).
		WithArgs([]string{"pins", "u1", "2024-05"}, 3).
		WillReturnRows(rows)

	entries, err := store.List(context.Background(), Key{"pins", "u1", "2024-05"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, Key{"pins", "u1", "2024-05", "02", "09:30:00"}, entries[1].Key)
	assert.JSONEq(t, `{"data":2}`, string(entries[1].Value))

	assert.NoError(t, mock.ExpectationsWereMet())
}
