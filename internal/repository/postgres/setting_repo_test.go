package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thirtybees/blocknewsletter/internal/domain/entity"
	apperrors "github.com/thirtybees/blocknewsletter/internal/pkg/errors"
)

func TestSettingRepo_GetAll(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSettingRepo(db)

	mock.ExpectQuery(`SELECT \* FROM "newsletter_settings"`).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).
			AddRow(entity.SettingVoucherCode, "SAVE10").
			AddRow(entity.SettingVerificationEmail, "1"))

	values, err := repo.GetAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", values[entity.SettingVoucherCode])
	assert.Equal(t, "1", values[entity.SettingVerificationEmail])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingRepo_GetMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSettingRepo(db)

	mock.ExpectQuery(`SELECT \* FROM "newsletter_settings" WHERE key = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}))

	_, err := repo.Get(context.Background(), entity.SettingSecretSalt)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSettingRepo_SetUpserts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSettingRepo(db)

	mock.ExpectExec(`INSERT INTO "newsletter_settings" .* ON CONFLICT \("key"\) DO UPDATE SET "value"="excluded"."value","updated_at"="excluded"."updated_at"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Set(context.Background(), entity.SettingVoucherCode, "SAVE10"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingRepo_CreateIfAbsent(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{name: "created"},
		{name: "pgx unique violation", err: &pgconn.PgError{Code: "23505"}},
		{name: "pq unique violation", err: &pq.Error{Code: "23505"}},
		{name: "other failure", err: &pgconn.PgError{Code: "08006"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewSettingRepo(db)

			exp := mock.ExpectExec(`INSERT INTO "newsletter_settings"`)
			if tt.err != nil {
				exp.WillReturnError(tt.err)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, 1))
			}

			created, err := repo.CreateIfAbsent(context.Background(), entity.SettingSecretSalt, "abc")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.err == nil, created)
		})
	}
}
