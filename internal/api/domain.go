package api

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Sentinel errors shared across services. Handlers translate these into
// HTTP status codes; security-sensitive internal causes collapse into a
// single external message before they reach the client.
var (
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("requested item not found")
	ErrConflict             = errors.New("item already exists or conflict")
	ErrUnauthenticated      = errors.New("authentication required or invalid credentials")
	ErrEmailNotVerified     = errors.New("email not verified")
	ErrAlreadyVerified      = errors.New("already verified")
	ErrCodeInvalidOrExpired = errors.New("invalid or expired code")
	ErrInternal             = errors.New("internal error")
)

// FieldErrors carries per-field validation messages that surface verbatim
// to the caller.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	return "validation failed"
}

func (fe FieldErrors) Is(target error) bool {
	return target == ErrValidation
}

// Claims represents the custom claims included in the JWT access token.
type Claims struct {
	UserID               string `json:"uid"`
	Email                string `json:"eml"`
	jwt.RegisteredClaims        // ExpiresAt, IssuedAt, Issuer, Audience, Subject.
}
