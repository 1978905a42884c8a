// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/noteman/internal/middleware"
	"github.com/hitoshi/noteman/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*model.User, error)
	Register(ctx context.Context, email, password string) (*model.User, error)
	Logout(ctx context.Context)
	CurrentUser() *model.User
	IsAuthenticated() bool
	SessionRemainingSeconds() int
}

// LoginRecorder はログイン結果のメトリクス記録先。
type LoginRecorder interface {
	RecordLoginSuccess()
	RecordLoginFailure(errorCode string)
}

// noopLoginRecorder はメトリクス無効時の実装。
type noopLoginRecorder struct{}

func (noopLoginRecorder) RecordLoginSuccess()            {}
func (noopLoginRecorder) RecordLoginFailure(code string) {}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	recorder LoginRecorder
}

// NewAuthHandler はAuthHandlerを生成する。
// recorderがnilの場合はメトリクスを記録しない。
func NewAuthHandler(service AuthServiceInterface, recorder LoginRecorder) *AuthHandler {
	if recorder == nil {
		recorder = noopLoginRecorder{}
	}
	return &AuthHandler{
		service:  service,
		recorder: recorder,
	}
}

// credentialsRequest はログイン・登録リクエストのボディ。
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse はユーザー情報のレスポンス。
type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at,omitempty"`
}

// sessionResponse はセッション状態のレスポンス。
type sessionResponse struct {
	Authenticated    bool          `json:"authenticated"`
	RemainingSeconds int           `json:"remaining_seconds"`
	User             *userResponse `json:"user,omitempty"`
}

func toUserResponse(u *model.User) *userResponse {
	if u == nil {
		return nil
	}
	resp := &userResponse{ID: u.ID, Email: u.Email}
	if u.CreatedAt != nil {
		resp.CreatedAt = u.CreatedAt.Format(time.RFC3339)
	}
	return resp
}

// decodeCredentials はリクエストボディを読み取る。
// 不正なJSONはInvalidArgumentエラーとして扱う。
func decodeCredentials(r *http.Request) (*credentialsRequest, error) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, model.NewInvalidArgumentError("リクエストボディを解釈できません")
	}
	return &req, nil
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// Login はログインを処理し、成功時にセッションを開始する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCredentials(r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	user, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.recorder.RecordLoginFailure(model.ErrorCode(err))
		middleware.WriteError(w, err)
		return
	}

	h.recorder.RecordLoginSuccess()
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Register は新規ユーザー登録を処理する。セッションは開始しない。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCredentials(r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	user, err := h.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// Logout はセッションを破棄する。未認証でも204を返す（冪等）。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.service.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := h.service.CurrentUser()
	if user == nil {
		middleware.WriteError(w, model.NewNotAuthenticatedError())
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Session はセッション状態を返す。未認証でも200で状態を返す。
// GET /auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	resp := sessionResponse{
		Authenticated:    h.service.IsAuthenticated(),
		RemainingSeconds: h.service.SessionRemainingSeconds(),
	}
	if resp.Authenticated {
		resp.User = toUserResponse(h.service.CurrentUser())
	}
	writeJSON(w, http.StatusOK, resp)
}
