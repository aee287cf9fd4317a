package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/FACorreiaa/go-kanban-tracker/app/mail"
	"github.com/FACorreiaa/go-kanban-tracker/config"
	"github.com/FACorreiaa/go-kanban-tracker/internal/api"
	"github.com/FACorreiaa/go-kanban-tracker/internal/api/auth"
	"github.com/FACorreiaa/go-kanban-tracker/internal/api/tasks"
)

// memAuthRepo is an in-memory AuthRepo for exercising full HTTP flows
// without a database.
type memAuthRepo struct {
	mu     sync.Mutex
	users  map[uuid.UUID]*auth.UserAuth
	codes  map[string]*auth.VerificationCode // keyed by userID|purpose
	tokens map[string]struct {
		userID    uuid.UUID
		expiresAt time.Time
		revoked   bool
	}
}

func newMemAuthRepo() *memAuthRepo {
	return &memAuthRepo{
		users: make(map[uuid.UUID]*auth.UserAuth),
		codes: make(map[string]*auth.VerificationCode),
		tokens: make(map[string]struct {
			userID    uuid.UUID
			expiresAt time.Time
			revoked   bool
		}),
	}
}

func codeKey(userID uuid.UUID, purpose auth.CodePurpose) string {
	return userID.String() + "|" + string(purpose)
}

func (r *memAuthRepo) CreateUser(_ context.Context, params auth.CreateUserParams) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == params.Email {
			return uuid.Nil, api.ErrConflict
		}
	}
	provider := params.AuthProvider
	if provider == "" {
		provider = "local"
	}
	u := &auth.UserAuth{
		ID:              uuid.New(),
		Email:           params.Email,
		FirstName:       params.FirstName,
		LastName:        params.LastName,
		PhoneNumber:     params.PhoneNumber,
		PasswordHash:    params.PasswordHash,
		AuthProvider:    provider,
		IsActive:        true,
		IsEmailVerified: params.IsEmailVerified,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	r.users[u.ID] = u
	return u.ID, nil
}

func (r *memAuthRepo) GetUserByEmail(_ context.Context, email string) (*auth.UserAuth, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, api.ErrNotFound
}

func (r *memAuthRepo) GetUserByID(_ context.Context, userID uuid.UUID) (*auth.UserAuth, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, api.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *memAuthRepo) ReplaceVerificationCode(_ context.Context, userID uuid.UUID, purpose auth.CodePurpose, code string) (*auth.VerificationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vc := &auth.VerificationCode{
		ID:        uuid.New(),
		UserID:    userID,
		Code:      code,
		Purpose:   purpose,
		CreatedAt: time.Now(),
	}
	r.codes[codeKey(userID, purpose)] = vc
	return vc, nil
}

func (r *memAuthRepo) GetVerificationCode(_ context.Context, userID uuid.UUID, code string, purpose auth.CodePurpose) (*auth.VerificationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vc, ok := r.codes[codeKey(userID, purpose)]
	if !ok || vc.Code != code {
		return nil, api.ErrNotFound
	}
	copied := *vc
	return &copied, nil
}

func (r *memAuthRepo) ConsumeVerificationCode(_ context.Context, codeID, userID uuid.UUID, purpose auth.CodePurpose) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	vc, ok := r.codes[codeKey(userID, purpose)]
	if !ok || vc.ID != codeID {
		return api.ErrCodeInvalidOrExpired
	}
	delete(r.codes, codeKey(userID, purpose))
	if u, ok := r.users[userID]; ok {
		if purpose == auth.PurposeEmail {
			u.IsEmailVerified = true
		} else {
			u.IsPhoneVerified = true
		}
	}
	return nil
}

func (r *memAuthRepo) StoreRefreshToken(_ context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token] = struct {
		userID    uuid.UUID
		expiresAt time.Time
		revoked   bool
	}{userID, expiresAt, false}
	return nil
}

func (r *memAuthRepo) ValidateRefreshTokenAndGetUserID(_ context.Context, refreshToken string) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.tokens[refreshToken]
	if !ok || entry.revoked || time.Now().After(entry.expiresAt) {
		return uuid.Nil, api.ErrUnauthenticated
	}
	return entry.userID, nil
}

func (r *memAuthRepo) InvalidateRefreshToken(_ context.Context, refreshToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.tokens[refreshToken]
	if !ok || entry.revoked {
		return api.ErrNotFound
	}
	entry.revoked = true
	r.tokens[refreshToken] = entry
	return nil
}

func (r *memAuthRepo) InvalidateAllUserRefreshTokens(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for token, entry := range r.tokens {
		if entry.userID == userID {
			entry.revoked = true
			r.tokens[token] = entry
		}
	}
	return nil
}

func (r *memAuthRepo) liveCode(userID uuid.UUID, purpose auth.CodePurpose) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if vc, ok := r.codes[codeKey(userID, purpose)]; ok {
		return vc.Code
	}
	return ""
}

// memTaskRepo is an in-memory TaskRepo.
type memTaskRepo struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*tasks.Task
}

func newMemTaskRepo() *memTaskRepo {
	return &memTaskRepo{tasks: make(map[uuid.UUID]*tasks.Task)}
}

func (r *memTaskRepo) CreateTask(_ context.Context, userID uuid.UUID, params tasks.CreateTaskParams) (*tasks.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := &tasks.Task{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       params.Title,
		Subheading:  params.Subheading,
		Description: params.Description,
		Status:      params.Status,
		Priority:    params.Priority,
		CreatedAt:   time.Now(),
	}
	r.tasks[t.ID] = t
	return t, nil
}

func (r *memTaskRepo) GetTask(_ context.Context, userID, taskID uuid.UUID) (*tasks.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[taskID]
	if !ok || t.UserID != userID {
		return nil, api.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *memTaskRepo) ListTasks(_ context.Context, userID uuid.UUID, search string) ([]tasks.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]tasks.Task, 0)
	for _, t := range r.tasks {
		if t.UserID != userID {
			continue
		}
		if search != "" && !containsFold(t.Title, search) && !containsFold(t.Description, search) {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (r *memTaskRepo) UpdateTask(_ context.Context, userID, taskID uuid.UUID, params tasks.UpdateTaskParams) (*tasks.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[taskID]
	if !ok || t.UserID != userID {
		return nil, api.ErrNotFound
	}
	if params.Title != nil {
		t.Title = *params.Title
	}
	if params.Subheading != nil {
		t.Subheading = *params.Subheading
	}
	if params.Description != nil {
		t.Description = *params.Description
	}
	if params.Status != nil {
		t.Status = *params.Status
	}
	if params.Priority != nil {
		t.Priority = *params.Priority
	}
	copied := *t
	return &copied, nil
}

func (r *memTaskRepo) DeleteTask(_ context.Context, userID, taskID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[taskID]
	if !ok || t.UserID != userID {
		return api.ErrNotFound
	}
	delete(r.tasks, taskID)
	return nil
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// AccountFlowSuite drives the full verification and task lifecycle through
// the real router, services and middleware.
type AccountFlowSuite struct {
	suite.Suite
	authRepo *memAuthRepo
	handler  http.Handler
}

func (s *AccountFlowSuite) SetupTest() {
	logger := slog.Default()
	cfg := &config.Config{}
	cfg.JWT = config.JWTConfig{
		SecretKey:       "integration-test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		Issuer:          "test-issuer",
		Audience:        "test-audience",
	}

	s.authRepo = newMemAuthRepo()
	authService := auth.NewAuthService(s.authRepo, cfg, mail.NewLogNotifier(logger), nil, logger)
	authHandler := auth.NewAuthHandlerImpl(authService, logger)

	taskService := tasks.NewTaskService(newMemTaskRepo(), nil, logger)
	taskHandler := tasks.NewTaskHandlerImpl(taskService, logger)

	s.handler = SetupRouter(&Config{
		AuthHandler:            authHandler,
		TaskHandler:            taskHandler,
		AuthenticateMiddleware: auth.Authenticate(logger, cfg.JWT),
	})
}

func (s *AccountFlowSuite) request(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *AccountFlowSuite) registerUser(email string) uuid.UUID {
	rec := s.request(http.MethodPost, "/register", "", map[string]string{
		"email":      email,
		"password1":  "password123",
		"password2":  "password123",
		"first_name": "Ada",
		"last_name":  "Lovelace",
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		UserID uuid.UUID `json:"user_id"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.UserID
}

func (s *AccountFlowSuite) verifyEmail(userID uuid.UUID) {
	code := s.authRepo.liveCode(userID, auth.PurposeEmail)
	s.Require().NotEmpty(code)
	rec := s.request(http.MethodPost, "/verify-code", "", map[string]any{
		"user_id": userID,
		"code":    code,
		"purpose": "email",
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
}

func (s *AccountFlowSuite) login(email string) (string, string) {
	rec := s.request(http.MethodPost, "/login", "", map[string]string{
		"email":    email,
		"password": "password123",
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Access, resp.Refresh
}

func (s *AccountFlowSuite) TestRegisterVerifyLoginFlow() {
	userID := s.registerUser("flow@example.com")

	// Correct password, unverified email: blocked with 403.
	rec := s.request(http.MethodPost, "/login", "", map[string]string{
		"email":    "flow@example.com",
		"password": "password123",
	})
	s.Equal(http.StatusForbidden, rec.Code)
	s.Contains(rec.Body.String(), "verify your email")

	// A wrong code does not verify anything.
	rec = s.request(http.MethodPost, "/verify-code", "", map[string]any{
		"user_id": userID,
		"code":    "000000",
		"purpose": "email",
	})
	s.Equal(http.StatusBadRequest, rec.Code)

	s.verifyEmail(userID)

	access, _ := s.login("flow@example.com")
	s.NotEmpty(access)

	// Replaying the consumed code fails like any wrong code.
	rec = s.request(http.MethodPost, "/verify-code", "", map[string]any{
		"user_id": userID,
		"code":    "000000",
		"purpose": "email",
	})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *AccountFlowSuite) TestReissueInvalidatesOldCode() {
	userID := s.registerUser("reissue@example.com")
	oldCode := s.authRepo.liveCode(userID, auth.PurposeEmail)

	rec := s.request(http.MethodPost, "/send-code", "", map[string]any{
		"user_id": userID,
		"purpose": "email",
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	newCode := s.authRepo.liveCode(userID, auth.PurposeEmail)
	s.NotEqual(oldCode, newCode)

	// The replaced code no longer verifies even inside its TTL.
	rec = s.request(http.MethodPost, "/verify-code", "", map[string]any{
		"user_id": userID,
		"code":    oldCode,
		"purpose": "email",
	})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.request(http.MethodPost, "/verify-code", "", map[string]any{
		"user_id": userID,
		"code":    newCode,
		"purpose": "email",
	})
	s.Equal(http.StatusOK, rec.Code)
}

func (s *AccountFlowSuite) TestSendCodeAfterVerificationRejected() {
	userID := s.registerUser("done@example.com")
	s.verifyEmail(userID)

	rec := s.request(http.MethodPost, "/send-code", "", map[string]any{
		"user_id": userID,
		"purpose": "email",
	})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(rec.Body.String(), "Already verified")
}

func (s *AccountFlowSuite) TestTaskIsolationBetweenUsers() {
	aliceID := s.registerUser("alice@example.com")
	s.verifyEmail(aliceID)
	aliceToken, _ := s.login("alice@example.com")

	bobID := s.registerUser("bob@example.com")
	s.verifyEmail(bobID)
	bobToken, _ := s.login("bob@example.com")

	rec := s.request(http.MethodPost, "/tasks", aliceToken, map[string]string{
		"title":       "Buy milk",
		"description": "Semi-skimmed",
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var created tasks.Task
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &created))

	// Bob cannot see, modify or delete Alice's task.
	path := fmt.Sprintf("/tasks/%s", created.ID)
	s.Equal(http.StatusNotFound, s.request(http.MethodGet, path, bobToken, nil).Code)
	s.Equal(http.StatusNotFound, s.request(http.MethodDelete, path, bobToken, nil).Code)

	rec = s.request(http.MethodGet, "/tasks", bobToken, nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("[]", strings.TrimSpace(rec.Body.String()))

	// Alice still can.
	s.Equal(http.StatusOK, s.request(http.MethodGet, path, aliceToken, nil).Code)
}

func (s *AccountFlowSuite) TestTaskSearch() {
	userID := s.registerUser("search@example.com")
	s.verifyEmail(userID)
	token, _ := s.login("search@example.com")

	for _, title := range []string{"Buy milk", "Walk the dog", "Milk the cows"} {
		rec := s.request(http.MethodPost, "/tasks", token, map[string]string{"title": title})
		s.Require().Equal(http.StatusCreated, rec.Code)
	}

	rec := s.request(http.MethodGet, "/tasks?search=milk", token, nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var found []tasks.Task
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &found))
	s.Len(found, 2)
}

func (s *AccountFlowSuite) TestLogoutAndRefreshRotation() {
	userID := s.registerUser("session@example.com")
	s.verifyEmail(userID)
	_, refresh := s.login("session@example.com")

	rec := s.request(http.MethodPost, "/token-refresh", "", map[string]string{"refresh": refresh})
	s.Require().Equal(http.StatusOK, rec.Code)

	var rotated struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &rotated))
	s.NotEqual(refresh, rotated.Refresh)

	// The rotated-out token is dead.
	rec = s.request(http.MethodPost, "/token-refresh", "", map[string]string{"refresh": refresh})
	s.Equal(http.StatusUnauthorized, rec.Code)

	// Logout revokes the live one and reports 205.
	rec = s.request(http.MethodPost, "/logout", rotated.Access, map[string]string{"refresh": rotated.Refresh})
	s.Equal(http.StatusResetContent, rec.Code)

	rec = s.request(http.MethodPost, "/token-refresh", "", map[string]string{"refresh": rotated.Refresh})
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func TestAccountFlowSuite(t *testing.T) {
	suite.Run(t, new(AccountFlowSuite))
}
