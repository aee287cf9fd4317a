package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-kanban-tracker/internal/api"
)

// PGXPool is the subset of pgxpool.Pool the repository uses. It is satisfied
// by both *pgxpool.Pool and pgxmock's pool in tests.
type PGXPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ AuthRepo = (*PostgresAuthRepo)(nil)

// AuthRepo defines the contract for user, verification-code and
// refresh-token persistence.
type AuthRepo interface {
	CreateUser(ctx context.Context, params CreateUserParams) (uuid.UUID, error)
	GetUserByEmail(ctx context.Context, email string) (*UserAuth, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*UserAuth, error)

	// ReplaceVerificationCode atomically deletes any live code for
	// (userID, purpose) and inserts a fresh one, so no two live codes ever
	// coexist for the same key.
	ReplaceVerificationCode(ctx context.Context, userID uuid.UUID, purpose CodePurpose, code string) (*VerificationCode, error)
	// GetVerificationCode looks up the live code matching all three of
	// (userID, code, purpose) exactly. Returns api.ErrNotFound otherwise.
	GetVerificationCode(ctx context.Context, userID uuid.UUID, code string, purpose CodePurpose) (*VerificationCode, error)
	// ConsumeVerificationCode flips the user's verification flag for the
	// purpose and deletes the code row in one transaction.
	ConsumeVerificationCode(ctx context.Context, codeID, userID uuid.UUID, purpose CodePurpose) error

	StoreRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error
	ValidateRefreshTokenAndGetUserID(ctx context.Context, refreshToken string) (uuid.UUID, error)
	InvalidateRefreshToken(ctx context.Context, refreshToken string) error
	InvalidateAllUserRefreshTokens(ctx context.Context, userID uuid.UUID) error
}

// PostgresAuthRepo implements AuthRepo on top of pgx.
type PostgresAuthRepo struct {
	logger *slog.Logger
	pgpool PGXPool
}

func NewPostgresAuthRepo(pgpool PGXPool, logger *slog.Logger) *PostgresAuthRepo {
	return &PostgresAuthRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const userColumns = `id, email, first_name, last_name, phone_number,
       COALESCE(password_hash, ''), auth_provider, is_active,
       is_email_verified, is_phone_verified, created_at, updated_at`

func scanUser(row pgx.Row) (*UserAuth, error) {
	var u UserAuth
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PhoneNumber,
		&u.PasswordHash, &u.AuthProvider, &u.IsActive,
		&u.IsEmailVerified, &u.IsPhoneVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (r *PostgresAuthRepo) CreateUser(ctx context.Context, params CreateUserParams) (uuid.UUID, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "CreateUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	provider := params.AuthProvider
	if provider == "" {
		provider = "local"
	}

	var id uuid.UUID
	err := r.pgpool.QueryRow(ctx,
		`INSERT INTO users (email, first_name, last_name, phone_number, password_hash, auth_provider, is_email_verified)
         VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
         RETURNING id`,
		params.Email, params.FirstName, params.LastName, params.PhoneNumber,
		params.PasswordHash, provider, params.IsEmailVerified).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return uuid.Nil, api.ErrConflict
		}
		return uuid.Nil, fmt.Errorf("create user: db insert failed: %w", err)
	}

	return id, nil
}

func (r *PostgresAuthRepo) GetUserByEmail(ctx context.Context, email string) (*UserAuth, error) {
	row := r.pgpool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`,
		email)
	return scanUser(row)
}

func (r *PostgresAuthRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*UserAuth, error) {
	row := r.pgpool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		userID)
	return scanUser(row)
}

// ReplaceVerificationCode implements last-writer-wins issuance: the delete
// and insert run in one transaction so a concurrent issuance for the same
// (user, purpose) can never leave two live codes behind.
func (r *PostgresAuthRepo) ReplaceVerificationCode(ctx context.Context, userID uuid.UUID, purpose CodePurpose, code string) (*VerificationCode, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "ReplaceVerificationCode", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "verification_codes"),
		attribute.String("code.purpose", string(purpose)),
	))
	defer span.End()

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("replace verification code: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`DELETE FROM verification_codes WHERE user_id = $1 AND purpose = $2`,
		userID, purpose)
	if err != nil {
		return nil, fmt.Errorf("replace verification code: delete old: %w", err)
	}

	vc := &VerificationCode{
		UserID:  userID,
		Code:    code,
		Purpose: purpose,
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO verification_codes (user_id, code, purpose)
         VALUES ($1, $2, $3)
         RETURNING id, created_at`,
		userID, code, purpose).Scan(&vc.ID, &vc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("replace verification code: insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("replace verification code: commit: %w", err)
	}

	return vc, nil
}

func (r *PostgresAuthRepo) GetVerificationCode(ctx context.Context, userID uuid.UUID, code string, purpose CodePurpose) (*VerificationCode, error) {
	var vc VerificationCode
	err := r.pgpool.QueryRow(ctx,
		`SELECT id, user_id, code, purpose, created_at
         FROM verification_codes
         WHERE user_id = $1 AND code = $2 AND purpose = $3`,
		userID, code, purpose).Scan(&vc.ID, &vc.UserID, &vc.Code, &vc.Purpose, &vc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.ErrNotFound
		}
		return nil, fmt.Errorf("get verification code: query failed: %w", err)
	}
	return &vc, nil
}

func (r *PostgresAuthRepo) ConsumeVerificationCode(ctx context.Context, codeID, userID uuid.UUID, purpose CodePurpose) error {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "ConsumeVerificationCode", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "verification_codes"),
		attribute.String("code.purpose", string(purpose)),
	))
	defer span.End()

	flagColumn := "is_email_verified"
	if purpose == PurposePhone {
		flagColumn = "is_phone_verified"
	}

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("consume verification code: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE users SET `+flagColumn+` = TRUE, updated_at = now() WHERE id = $1`,
		userID)
	if err != nil {
		return fmt.Errorf("consume verification code: update user: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM verification_codes WHERE id = $1`,
		codeID)
	if err != nil {
		return fmt.Errorf("consume verification code: delete code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Lost a race with another verification of the same code.
		return api.ErrCodeInvalidOrExpired
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("consume verification code: commit: %w", err)
	}

	return nil
}

func (r *PostgresAuthRepo) StoreRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	_, err := r.pgpool.Exec(ctx,
		`INSERT INTO refresh_tokens (user_id, token, expires_at)
         VALUES ($1, $2, $3)`,
		userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("store refresh token: db insert failed: %w", err)
	}
	return nil
}

func (r *PostgresAuthRepo) ValidateRefreshTokenAndGetUserID(ctx context.Context, refreshToken string) (uuid.UUID, error) {
	var userID uuid.UUID
	var expiresAt time.Time
	var revokedAt *time.Time

	err := r.pgpool.QueryRow(ctx,
		`SELECT user_id, expires_at, revoked_at
         FROM refresh_tokens
         WHERE token = $1`, refreshToken).Scan(&userID, &expiresAt, &revokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, api.ErrUnauthenticated
		}
		return uuid.Nil, fmt.Errorf("validate refresh token: query failed: %w", err)
	}

	if time.Now().After(expiresAt) || revokedAt != nil {
		return uuid.Nil, api.ErrUnauthenticated
	}

	return userID, nil
}

func (r *PostgresAuthRepo) InvalidateRefreshToken(ctx context.Context, refreshToken string) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = now()
         WHERE token = $1 AND revoked_at IS NULL`,
		refreshToken)
	if err != nil {
		return fmt.Errorf("invalidate refresh token: db update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return api.ErrNotFound
	}
	return nil
}

func (r *PostgresAuthRepo) InvalidateAllUserRefreshTokens(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pgpool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = now()
         WHERE user_id = $1 AND revoked_at IS NULL`,
		userID)
	if err != nil {
		return fmt.Errorf("invalidate all tokens: db update failed: %w", err)
	}
	return nil
}
