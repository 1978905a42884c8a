package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/noteman/internal/model"
)

// mockAuthService はfnフィールド差し替え式のAuthServiceInterfaceモック。
type mockAuthService struct {
	loginFn            func(ctx context.Context, email, password string) (*model.User, error)
	registerFn         func(ctx context.Context, email, password string) (*model.User, error)
	logoutFn           func(ctx context.Context)
	currentUserFn      func() *model.User
	isAuthenticatedFn  func() bool
	remainingSecondsFn func() int
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*model.User, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, model.NewIncorrectCredentialsError()
}

func (m *mockAuthService) Register(ctx context.Context, email, password string) (*model.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, email, password)
	}
	return nil, model.NewAuthFailedError("not configured")
}

func (m *mockAuthService) Logout(ctx context.Context) {
	if m.logoutFn != nil {
		m.logoutFn(ctx)
	}
}

func (m *mockAuthService) CurrentUser() *model.User {
	if m.currentUserFn != nil {
		return m.currentUserFn()
	}
	return nil
}

func (m *mockAuthService) IsAuthenticated() bool {
	if m.isAuthenticatedFn != nil {
		return m.isAuthenticatedFn()
	}
	return false
}

func (m *mockAuthService) SessionRemainingSeconds() int {
	if m.remainingSecondsFn != nil {
		return m.remainingSecondsFn()
	}
	return 0
}

var _ AuthServiceInterface = (*mockAuthService)(nil)

func TestLoginHandlerSuccess(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*model.User, error) {
			if email != "taro@example.com" || password != "password123" {
				t.Errorf("unexpected credentials: %s / %s", email, password)
			}
			return &model.User{ID: "user-1", Email: email}, nil
		},
	}
	h := NewAuthHandler(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email": "taro@example.com", "password": "password123"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp userResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.ID != "user-1" {
		t.Errorf("unexpected user: %+v", resp)
	}
}

func TestLoginHandlerAuthFailure(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email": "taro@example.com", "password": "wrongpass"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body["code"] != model.ErrCodeAuthFailed {
		t.Errorf("unexpected error code: %q", body["code"])
	}
}

func TestLoginHandlerMalformedBody(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRegisterHandlerCreated(t *testing.T) {
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, email, password string) (*model.User, error) {
			return &model.User{ID: "user-2", Email: email}, nil
		},
	}
	h := NewAuthHandler(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/register",
		strings.NewReader(`{"email": "hanako@example.com", "password": "password123"}`))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
}

func TestLogoutHandlerIdempotent(t *testing.T) {
	calls := 0
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context) { calls++ },
	}
	h := NewAuthHandler(svc, nil)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.Logout(rec, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
	}
	if calls != 2 {
		t.Errorf("expected 2 logout calls, got %d", calls)
	}
}

func TestMeHandlerUnauthenticated(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, nil)

	rec := httptest.NewRecorder()
	h.Me(rec, httptest.NewRequest(http.MethodGet, "/auth/me", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSessionHandler(t *testing.T) {
	svc := &mockAuthService{
		isAuthenticatedFn:  func() bool { return true },
		remainingSecondsFn: func() int { return 450 },
		currentUserFn: func() *model.User {
			return &model.User{ID: "user-1", Email: "taro@example.com"}
		},
	}
	h := NewAuthHandler(svc, nil)

	rec := httptest.NewRecorder()
	h.Session(rec, httptest.NewRequest(http.MethodGet, "/auth/session", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp sessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if !resp.Authenticated || resp.RemainingSeconds != 450 {
		t.Errorf("unexpected session response: %+v", resp)
	}
	if resp.User == nil || resp.User.ID != "user-1" {
		t.Errorf("expected user in session response: %+v", resp.User)
	}
}

func TestSessionHandlerUnauthenticated(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, nil)

	rec := httptest.NewRecorder()
	h.Session(rec, httptest.NewRequest(http.MethodGet, "/auth/session", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("session endpoint must answer 200 even when unauthenticated, got %d", rec.Code)
	}

	var resp sessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.Authenticated || resp.User != nil {
		t.Errorf("unexpected session response: %+v", resp)
	}
}
