package auth

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-kanban-tracker/internal/api"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PostgresAuthRepo) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPostgresAuthRepo(mock, slog.Default())
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("taken@example.com", "Ada", "Lovelace", "", "hash", "local", false).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.CreateUser(context.Background(), CreateUserParams{
		Email:        "taken@example.com",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		PasswordHash: "hash",
	})

	assert.ErrorIs(t, err, api.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceVerificationCode_DeletesThenInserts(t *testing.T) {
	mock, repo := newMockRepo(t)
	userID := uuid.New()
	codeID := uuid.New()
	createdAt := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM verification_codes WHERE user_id = \$1 AND purpose = \$2`).
		WithArgs(userID, PurposeEmail).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectQuery(`INSERT INTO verification_codes`).
		WithArgs(userID, "123456", PurposeEmail).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(codeID, createdAt))
	mock.ExpectCommit()
	mock.ExpectRollback()

	vc, err := repo.ReplaceVerificationCode(context.Background(), userID, PurposeEmail, "123456")

	require.NoError(t, err)
	assert.Equal(t, codeID, vc.ID)
	assert.Equal(t, "123456", vc.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeVerificationCode_FlipsFlagAndDeletes(t *testing.T) {
	mock, repo := newMockRepo(t)
	userID := uuid.New()
	codeID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE users SET is_email_verified = TRUE`).
		WithArgs(userID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`DELETE FROM verification_codes WHERE id = \$1`).
		WithArgs(codeID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	err := repo.ConsumeVerificationCode(context.Background(), codeID, userID, PurposeEmail)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeVerificationCode_AlreadyConsumed(t *testing.T) {
	mock, repo := newMockRepo(t)
	userID := uuid.New()
	codeID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE users SET is_email_verified = TRUE`).
		WithArgs(userID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`DELETE FROM verification_codes WHERE id = \$1`).
		WithArgs(codeID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	err := repo.ConsumeVerificationCode(context.Background(), codeID, userID, PurposeEmail)

	assert.ErrorIs(t, err, api.ErrCodeInvalidOrExpired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetVerificationCode_NoMatch(t *testing.T) {
	mock, repo := newMockRepo(t)
	userID := uuid.New()

	mock.ExpectQuery(`SELECT id, user_id, code, purpose, created_at`).
		WithArgs(userID, "000000", PurposeEmail).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetVerificationCode(context.Background(), userID, "000000", PurposeEmail)

	assert.ErrorIs(t, err, api.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateRefreshToken(t *testing.T) {
	t.Run("Expired", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		userID := uuid.New()

		mock.ExpectQuery(`SELECT user_id, expires_at, revoked_at`).
			WithArgs("stale-token").
			WillReturnRows(pgxmock.NewRows([]string{"user_id", "expires_at", "revoked_at"}).
				AddRow(userID, time.Now().Add(-time.Hour), (*time.Time)(nil)))

		_, err := repo.ValidateRefreshTokenAndGetUserID(context.Background(), "stale-token")

		assert.ErrorIs(t, err, api.ErrUnauthenticated)
	})

	t.Run("Revoked", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		userID := uuid.New()
		revokedAt := time.Now().Add(-time.Minute)

		mock.ExpectQuery(`SELECT user_id, expires_at, revoked_at`).
			WithArgs("revoked-token").
			WillReturnRows(pgxmock.NewRows([]string{"user_id", "expires_at", "revoked_at"}).
				AddRow(userID, time.Now().Add(time.Hour), &revokedAt))

		_, err := repo.ValidateRefreshTokenAndGetUserID(context.Background(), "revoked-token")

		assert.ErrorIs(t, err, api.ErrUnauthenticated)
	})

	t.Run("Valid", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		userID := uuid.New()

		mock.ExpectQuery(`SELECT user_id, expires_at, revoked_at`).
			WithArgs("live-token").
			WillReturnRows(pgxmock.NewRows([]string{"user_id", "expires_at", "revoked_at"}).
				AddRow(userID, time.Now().Add(time.Hour), (*time.Time)(nil)))

		got, err := repo.ValidateRefreshTokenAndGetUserID(context.Background(), "live-token")

		assert.NoError(t, err)
		assert.Equal(t, userID, got)
	})
}

func TestInvalidateRefreshToken_Unknown(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectExec(`UPDATE refresh_tokens SET revoked_at = now\(\)`).
		WithArgs("missing-token").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.InvalidateRefreshToken(context.Background(), "missing-token")

	assert.ErrorIs(t, err, api.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
