package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/FACorreiaa/go-kanban-tracker/internal/api"
)

// HandlerImpl translates HTTP requests into AuthService calls and maps
// service errors to status codes.
type HandlerImpl struct {
	authService AuthService
	logger      *slog.Logger
}

func NewAuthHandlerImpl(authService AuthService, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{authService: authService, logger: logger}
}

// Register godoc
// @Summary      Register a new user
// @Description  Creates an account and emails a 6-digit verification code. Login stays blocked until the email is verified.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration payload"
// @Success      201 {object} RegisterResponse
// @Failure      400 {object} map[string]interface{} "Field-level validation errors"
// @Router       /register [post]
func (h *HandlerImpl) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.authService.Register(r.Context(), req)
	if err != nil {
		var fe api.FieldErrors
		if errors.As(err, &fe) {
			api.ValidationErrorResponse(w, r, fe)
			return
		}
		h.logger.ErrorContext(r.Context(), "Registration failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to register user")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, RegisterResponse{
		Message:               "User registered. Check your email for a verification code.",
		UserID:                result.UserID,
		VerificationEmailSent: result.VerificationEmailSent,
	})
}

// Login godoc
// @Summary      Log in with email and password
// @Description  Returns a token pair. Unverified accounts are rejected with 403 regardless of correct credentials.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Credentials"
// @Success      200 {object} LoginResponse
// @Failure      400 {object} map[string]interface{}
// @Failure      401 {object} map[string]interface{} "Invalid credentials"
// @Failure      403 {object} map[string]interface{} "Email not verified"
// @Router       /login [post]
func (h *HandlerImpl) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	access, refresh, user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, api.ErrValidation):
			api.ErrorResponse(w, r, http.StatusBadRequest, "Email and password are required")
		case errors.Is(err, api.ErrEmailNotVerified):
			api.ErrorResponse(w, r, http.StatusForbidden, "Please verify your email before logging in.")
		case errors.Is(err, api.ErrUnauthenticated):
			api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid credentials")
		default:
			h.logger.ErrorContext(r.Context(), "Login failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Login failed")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user,
	})
}

// Logout godoc
// @Summary      Log out
// @Description  Invalidates the supplied refresh token. The access token simply expires.
// @Tags         auth
// @Accept       json
// @Param        request body LogoutRequest true "Refresh token to revoke"
// @Success      205 "Session reset"
// @Failure      400 {object} map[string]interface{}
// @Security     BearerAuth
// @Router       /logout [post]
func (h *HandlerImpl) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.authService.Logout(r.Context(), req.RefreshToken); err != nil {
		switch {
		case errors.Is(err, api.ErrValidation), errors.Is(err, api.ErrNotFound):
			api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid refresh token")
		default:
			h.logger.ErrorContext(r.Context(), "Logout failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Logout failed")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusResetContent, nil)
}

// RefreshSession godoc
// @Summary      Rotate a refresh token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RefreshTokenRequest true "Current refresh token"
// @Success      200 {object} TokenResponse
// @Failure      401 {object} map[string]interface{}
// @Router       /token-refresh [post]
func (h *HandlerImpl) RefreshSession(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	access, refresh, err := h.authService.RefreshSession(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, api.ErrUnauthenticated) {
			api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid or expired refresh token")
			return
		}
		h.logger.ErrorContext(r.Context(), "Token refresh failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Token refresh failed")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
	})
}

// GetUserDetail godoc
// @Summary      Current user profile
// @Tags         auth
// @Produce      json
// @Success      200 {object} UserProfile
// @Failure      401 {object} map[string]interface{}
// @Security     BearerAuth
// @Router       /user-detail [get]
func (h *HandlerImpl) GetUserDetail(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	profile, err := h.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "Failed to load user profile", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to load user profile")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, profile)
}

// SendCode godoc
// @Summary      Issue a verification code
// @Description  Replaces any live code for the same user and purpose. At most one code per (user, purpose) is ever live.
// @Tags         verification
// @Accept       json
// @Produce      json
// @Param        request body SendCodeRequest true "Target user and purpose"
// @Success      201 {object} map[string]string
// @Failure      400 {object} map[string]interface{}
// @Router       /send-code [post]
func (h *HandlerImpl) SendCode(w http.ResponseWriter, r *http.Request) {
	var req SendCodeRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	purpose, err := ParsePurpose(req.Purpose)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.authService.SendCode(r.Context(), req.UserID, purpose); err != nil {
		switch {
		case errors.Is(err, api.ErrNotFound):
			api.ErrorResponse(w, r, http.StatusBadRequest, "User not found")
		case errors.Is(err, api.ErrAlreadyVerified):
			api.ErrorResponse(w, r, http.StatusBadRequest, "Already verified")
		default:
			h.logger.ErrorContext(r.Context(), "Failed to issue verification code", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusBadRequest, "Failed to send verification code")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, map[string]string{
		"message": "Verification code sent successfully.",
	})
}

// VerifyCode godoc
// @Summary      Verify a code
// @Description  Consumes the code and flips the matching verification flag. Wrong, replaced and expired codes all produce the same 400.
// @Tags         verification
// @Accept       json
// @Produce      json
// @Param        request body VerifyCodeRequest true "Code submission"
// @Success      200 {object} map[string]string
// @Failure      400 {object} map[string]interface{} "Invalid or expired code"
// @Router       /verify-code [post]
func (h *HandlerImpl) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	purpose, err := ParsePurpose(req.Purpose)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.authService.VerifyCode(r.Context(), req.UserID, req.Code, purpose); err != nil {
		if errors.Is(err, api.ErrCodeInvalidOrExpired) {
			api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid or expired code")
			return
		}
		h.logger.ErrorContext(r.Context(), "Code verification failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Verification failed")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]string{
		"detail": "Verified successfully",
	})
}

// GoogleLogin godoc
// @Summary      Log in with a Google access token
// @Description  Exchanges a Google OAuth access token for a local session, creating the account on first login.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body GoogleLoginRequest true "Provider access token"
// @Success      200 {object} LoginResponse
// @Failure      400 {object} map[string]interface{}
// @Router       /google-login [post]
func (h *HandlerImpl) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req GoogleLoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	access, refresh, user, err := h.authService.GoogleLogin(r.Context(), req.AccessToken)
	if err != nil {
		if errors.Is(err, api.ErrValidation) {
			api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid access token")
			return
		}
		h.logger.ErrorContext(r.Context(), "Google login failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Google login failed")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user,
	})
}
