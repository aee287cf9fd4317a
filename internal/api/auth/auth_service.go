package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/markbates/goth"
	"github.com/markbates/goth/providers/google"
	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"

	"github.com/FACorreiaa/go-kanban-tracker/app/mail"
	"github.com/FACorreiaa/go-kanban-tracker/app/observability/metrics"
	"github.com/FACorreiaa/go-kanban-tracker/config"
	"github.com/FACorreiaa/go-kanban-tracker/internal/api"
)

const notifyTimeout = 10 * time.Second

var _ AuthService = (*AuthServiceImpl)(nil)

// AuthService is the business layer for registration, the verification-code
// lifecycle, the login gate and session management.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error)
	Login(ctx context.Context, email, password string) (string, string, *UserSummary, error)
	Logout(ctx context.Context, refreshToken string) error
	RefreshSession(ctx context.Context, refreshToken string) (string, string, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*UserProfile, error)

	SendCode(ctx context.Context, userID uuid.UUID, purpose CodePurpose) (*VerificationCode, error)
	VerifyCode(ctx context.Context, userID uuid.UUID, code string, purpose CodePurpose) error

	GetOrCreateUserFromProvider(ctx context.Context, provider string, providerUser goth.User) (*UserAuth, error)
	GoogleLogin(ctx context.Context, accessToken string) (string, string, *UserSummary, error)
}

// AuthServiceImpl implements AuthService.
type AuthServiceImpl struct {
	repo     AuthRepo
	cfg      *config.Config
	logger   *slog.Logger
	notifier mail.Notifier
	metrics  *metrics.AppMetrics

	// profileCache keeps /user-detail reads off the database for a short
	// window; entries are dropped when a verification flag changes.
	profileCache *cache.Cache

	// now is swappable in tests to drive TTL expiry.
	now func() time.Time

	fetchGoogleUser func(ctx context.Context, accessToken string) (goth.User, error)
}

func NewAuthService(repo AuthRepo, cfg *config.Config, notifier mail.Notifier, appMetrics *metrics.AppMetrics, logger *slog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		repo:            repo,
		cfg:             cfg,
		logger:          logger,
		notifier:        notifier,
		metrics:         appMetrics,
		profileCache:    cache.New(5*time.Minute, 10*time.Minute),
		now:             time.Now,
		fetchGoogleUser: googleUserFetcher(cfg.OAuth.Google),
	}
}

func googleUserFetcher(cfg config.GoogleOAuthConfig) func(ctx context.Context, accessToken string) (goth.User, error) {
	return func(ctx context.Context, accessToken string) (goth.User, error) {
		provider := google.New(cfg.ClientID, cfg.ClientSecret, cfg.CallbackURL, "email", "profile")
		session := &google.Session{AccessToken: accessToken}
		return provider.FetchUser(session)
	}
}

// generateCode returns a 6-digit zero-padded numeric code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func (s *AuthServiceImpl) generateAccessToken(user *UserAuth) (string, error) {
	now := s.now()
	claims := api.Claims{
		UserID: user.ID.String(),
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    s.cfg.JWT.Issuer,
			Audience:  jwt.ClaimStrings{s.cfg.JWT.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWT.AccessTokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWT.SecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

func (s *AuthServiceImpl) issueTokenPair(ctx context.Context, user *UserAuth) (string, string, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return "", "", err
	}

	refreshToken := uuid.NewString()
	expiresAt := s.now().Add(s.cfg.JWT.RefreshTokenTTL)
	if err := s.repo.StoreRefreshToken(ctx, user.ID, refreshToken, expiresAt); err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

// Register validates the payload, creates the user and issues the first
// email verification code. Mail delivery is best-effort and reported only
// through the advisory flag.
func (s *AuthServiceImpl) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	fe := api.FieldErrors{}
	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		fe["email"] = "A valid email address is required."
	}
	if strings.TrimSpace(req.FirstName) == "" {
		fe["first_name"] = "This field is required."
	}
	if req.Password1 == "" {
		fe["password1"] = "This field is required."
	}
	if req.Password1 != req.Password2 {
		fe["password2"] = "Passwords do not match."
	}
	if len(fe) > 0 {
		return nil, fe
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password1), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	userID, err := s.repo.CreateUser(ctx, CreateUserParams{
		Email:        email,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		PhoneNumber:  strings.TrimSpace(req.PhoneNumber),
		PasswordHash: string(hashedPassword),
	})
	if err != nil {
		if errors.Is(err, api.ErrConflict) {
			return nil, api.FieldErrors{"email": "A user with this email already exists."}
		}
		return nil, err
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}
	vc, err := s.repo.ReplaceVerificationCode(ctx, userID, PurposeEmail, code)
	if err != nil {
		return nil, err
	}

	// Delivery is synchronous here only so the response can carry the
	// advisory flag; a failure never rolls back the registration.
	sent := true
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := s.notifier.SendVerificationCode(notifyCtx, email, req.FirstName, vc.Code, string(PurposeEmail)); err != nil {
		s.logger.WarnContext(ctx, "Verification email failed",
			slog.String("email", email), slog.Any("error", err))
		sent = false
	}

	if s.metrics != nil {
		s.metrics.RegisterRequestsTotal.Add(ctx, 1)
	}

	return &RegisterResult{UserID: userID, VerificationEmailSent: sent}, nil
}

// Login is the auth gate: credentials first, then the verification flag.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (string, string, *UserSummary, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return "", "", nil, fmt.Errorf("%w: email and password are required", api.ErrValidation)
	}

	if s.metrics != nil {
		s.metrics.LoginRequestsTotal.Add(ctx, 1)
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return "", "", nil, api.ErrUnauthenticated
		}
		return "", "", nil, err
	}

	if user.PasswordHash == "" || !user.IsActive {
		return "", "", nil, api.ErrUnauthenticated
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", "", nil, api.ErrUnauthenticated
	}

	if !user.IsEmailVerified {
		if s.metrics != nil {
			s.metrics.LoginBlockedUnverified.Add(ctx, 1)
		}
		return "", "", nil, api.ErrEmailNotVerified
	}

	accessToken, refreshToken, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return "", "", nil, err
	}

	summary := &UserSummary{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
	return accessToken, refreshToken, summary, nil
}

func (s *AuthServiceImpl) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return fmt.Errorf("%w: refresh token is required", api.ErrValidation)
	}
	return s.repo.InvalidateRefreshToken(ctx, refreshToken)
}

// RefreshSession rotates the refresh token: a new pair is issued and the old
// token is revoked.
func (s *AuthServiceImpl) RefreshSession(ctx context.Context, refreshToken string) (string, string, error) {
	userID, err := s.repo.ValidateRefreshTokenAndGetUserID(ctx, refreshToken)
	if err != nil {
		return "", "", err
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return "", "", err
	}

	newAccess, newRefresh, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return "", "", err
	}

	if err := s.repo.InvalidateRefreshToken(ctx, refreshToken); err != nil {
		s.logger.WarnContext(ctx, "Failed to revoke rotated refresh token", slog.Any("error", err))
	}

	return newAccess, newRefresh, nil
}

func (s *AuthServiceImpl) GetUserByID(ctx context.Context, userID uuid.UUID) (*UserProfile, error) {
	if cached, ok := s.profileCache.Get(userID.String()); ok {
		return cached.(*UserProfile), nil
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile := &UserProfile{
		ID:              user.ID,
		Email:           user.Email,
		FirstName:       user.FirstName,
		LastName:        user.LastName,
		PhoneNumber:     user.PhoneNumber,
		IsEmailVerified: user.IsEmailVerified,
		IsPhoneVerified: user.IsPhoneVerified,
	}
	s.profileCache.Set(userID.String(), profile, cache.DefaultExpiration)
	return profile, nil
}

// SendCode issues a fresh code for (userID, purpose), replacing any prior
// one. Notification runs after the issuing transaction commits and never
// fails the issuance.
func (s *AuthServiceImpl) SendCode(ctx context.Context, userID uuid.UUID, purpose CodePurpose) (*VerificationCode, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if purpose == PurposeEmail && user.IsEmailVerified {
		return nil, api.ErrAlreadyVerified
	}
	if purpose == PurposePhone && user.IsPhoneVerified {
		return nil, api.ErrAlreadyVerified
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}

	vc, err := s.repo.ReplaceVerificationCode(ctx, userID, purpose, code)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.CodesIssuedTotal.Add(ctx, 1)
	}

	// Fire-and-forget delivery; the issuing transaction is already
	// committed and must not be affected by the outcome.
	go func() {
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := s.notifier.SendVerificationCode(notifyCtx, user.Email, user.FirstName, vc.Code, string(purpose)); err != nil {
			s.logger.Warn("Failed to deliver verification code",
				slog.String("user_id", userID.String()),
				slog.String("purpose", string(purpose)),
				slog.Any("error", err))
		}
	}()

	return vc, nil
}

// VerifyCode consumes a live code. A missing row and an expired row are
// deliberately indistinguishable to the caller.
func (s *AuthServiceImpl) VerifyCode(ctx context.Context, userID uuid.UUID, code string, purpose CodePurpose) error {
	fail := func() error {
		if s.metrics != nil {
			s.metrics.CodeVerifyFailuresTotal.Add(ctx, 1)
		}
		return api.ErrCodeInvalidOrExpired
	}

	vc, err := s.repo.GetVerificationCode(ctx, userID, code, purpose)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return fail()
		}
		return err
	}

	if vc.IsExpired(s.now()) {
		return fail()
	}

	if err := s.repo.ConsumeVerificationCode(ctx, vc.ID, userID, purpose); err != nil {
		return err
	}

	s.profileCache.Delete(userID.String())
	if s.metrics != nil {
		s.metrics.CodesVerifiedTotal.Add(ctx, 1)
	}

	if purpose == PurposeEmail {
		user, err := s.repo.GetUserByID(ctx, userID)
		if err == nil {
			go func() {
				notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
				defer cancel()
				if err := s.notifier.SendWelcome(notifyCtx, user.Email, user.FirstName); err != nil {
					s.logger.Warn("Failed to send welcome mail", slog.Any("error", err))
				}
			}()
		}
	}

	return nil
}

// GetOrCreateUserFromProvider reuses an existing account by email or creates
// a provider-backed one with the email already verified.
func (s *AuthServiceImpl) GetOrCreateUserFromProvider(ctx context.Context, provider string, providerUser goth.User) (*UserAuth, error) {
	if providerUser.Email == "" {
		return nil, fmt.Errorf("%w: provider did not supply an email address", api.ErrValidation)
	}

	user, err := s.repo.GetUserByEmail(ctx, providerUser.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, api.ErrNotFound) {
		return nil, err
	}

	userID, err := s.repo.CreateUser(ctx, CreateUserParams{
		Email:           providerUser.Email,
		FirstName:       providerUser.FirstName,
		LastName:        providerUser.LastName,
		AuthProvider:    provider,
		IsEmailVerified: true,
	})
	if err != nil {
		return nil, err
	}

	return s.repo.GetUserByID(ctx, userID)
}

// GoogleLogin exchanges a Google access token for a local session.
func (s *AuthServiceImpl) GoogleLogin(ctx context.Context, accessToken string) (string, string, *UserSummary, error) {
	if accessToken == "" {
		return "", "", nil, fmt.Errorf("%w: access token is required", api.ErrValidation)
	}

	providerUser, err := s.fetchGoogleUser(ctx, accessToken)
	if err != nil {
		s.logger.WarnContext(ctx, "Google token exchange failed", slog.Any("error", err))
		return "", "", nil, fmt.Errorf("%w: invalid provider token", api.ErrValidation)
	}

	user, err := s.GetOrCreateUserFromProvider(ctx, "google", providerUser)
	if err != nil {
		return "", "", nil, err
	}

	access, refresh, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return "", "", nil, err
	}

	summary := &UserSummary{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
	return access, refresh, summary, nil
}
