package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/go-kanban-tracker/internal/api"
)

// CodeTTL is how long an issued verification code stays valid. Expiry is a
// pure function of now - created_at, checked lazily at verification time.
const CodeTTL = 10 * time.Minute

// CodePurpose is the verification channel a code targets.
type CodePurpose string

const (
	PurposeEmail CodePurpose = "email"
	PurposePhone CodePurpose = "phone"
)

// ParsePurpose validates a purpose string from the wire.
func ParsePurpose(s string) (CodePurpose, error) {
	switch CodePurpose(s) {
	case PurposeEmail, PurposePhone:
		return CodePurpose(s), nil
	default:
		return "", fmt.Errorf("%w: purpose must be one of 'email', 'phone'", api.ErrValidation)
	}
}

// UserAuth is the canonical user row. The password hash never leaves the
// service layer.
type UserAuth struct {
	ID              uuid.UUID `json:"id"`
	Email           string    `json:"email"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	PhoneNumber     string    `json:"phone_number"`
	PasswordHash    string    `json:"-"`
	AuthProvider    string    `json:"-"`
	IsActive        bool      `json:"is_active"`
	IsEmailVerified bool      `json:"is_email_verified"`
	IsPhoneVerified bool      `json:"is_phone_verified"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// VerificationCode is a live code row for one (user, purpose) pair.
type VerificationCode struct {
	ID        uuid.UUID   `json:"id"`
	UserID    uuid.UUID   `json:"user_id"`
	Code      string      `json:"-"`
	Purpose   CodePurpose `json:"purpose"`
	CreatedAt time.Time   `json:"created_at"`
}

// ExpiresAt returns the instant after which the code is no longer accepted.
// The boundary itself is still valid.
func (c *VerificationCode) ExpiresAt() time.Time {
	return c.CreatedAt.Add(CodeTTL)
}

// IsExpired reports whether the code is past its TTL at the given instant.
func (c *VerificationCode) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt())
}

// UserProfile is the explicit, versioned field list returned by /user-detail.
type UserProfile struct {
	ID              uuid.UUID `json:"id"`
	Email           string    `json:"email"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	PhoneNumber     string    `json:"phone_number"`
	IsEmailVerified bool      `json:"is_email_verified"`
	IsPhoneVerified bool      `json:"is_phone_verified"`
}

// CreateUserParams carries the fields the repository needs to insert a user.
type CreateUserParams struct {
	Email           string
	FirstName       string
	LastName        string
	PhoneNumber     string
	PasswordHash    string
	AuthProvider    string
	IsEmailVerified bool
}

// RegisterRequest represents the expected JSON body for user registration.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password1   string `json:"password1"`
	Password2   string `json:"password2"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// RegisterResult reports the outcome of a registration, including the
// advisory flag for verification mail delivery.
type RegisterResult struct {
	UserID                uuid.UUID
	VerificationEmailSent bool
}

// RegisterResponse is the JSON shape returned on successful registration.
type RegisterResponse struct {
	Message               string    `json:"message"`
	UserID                uuid.UUID `json:"user_id"`
	VerificationEmailSent bool      `json:"verification_email_sent"`
}

// LoginRequest represents the expected JSON body for user login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserSummary is the compact user block embedded in the login response.
type UserSummary struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
}

// LoginResponse represents the successful JSON response after login.
type LoginResponse struct {
	AccessToken  string       `json:"access"`
	RefreshToken string       `json:"refresh"`
	User         *UserSummary `json:"user,omitempty"`
}

// RefreshTokenRequest represents the expected JSON body for refreshing tokens.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh"`
}

// TokenResponse represents the JSON response after refreshing tokens.
type TokenResponse struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
}

// LogoutRequest represents the expected JSON body for logout.
type LogoutRequest struct {
	RefreshToken string `json:"refresh"`
}

// SendCodeRequest asks for a fresh verification code for one purpose.
type SendCodeRequest struct {
	UserID  uuid.UUID `json:"user_id"`
	Purpose string    `json:"purpose"`
}

// VerifyCodeRequest submits a previously issued code for consumption.
type VerifyCodeRequest struct {
	UserID  uuid.UUID `json:"user_id"`
	Code    string    `json:"code"`
	Purpose string    `json:"purpose"`
}

// GoogleLoginRequest carries the provider access token obtained by the
// frontend from the Google sign-in flow.
type GoogleLoginRequest struct {
	AccessToken string `json:"access_token"`
}
