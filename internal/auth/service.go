// Package auth はメール・パスワード認証とセッションの開始・終了を提供する。
package auth

import (
	"context"
	"log/slog"

	"github.com/hitoshi/noteman/internal/gateway"
	"github.com/hitoshi/noteman/internal/model"
	"github.com/hitoshi/noteman/internal/session"
)

// Service は認証に関するビジネスロジックを提供する。
// 認証情報の検証はCredentialVerifierへ、セッション状態はsession.Managerへ委譲する。
type Service struct {
	verifier CredentialVerifier
	gw       gateway.Gateway
	session  *session.Manager
}

// NewService はServiceを生成する。
func NewService(verifier CredentialVerifier, gw gateway.Gateway, sess *session.Manager) *Service {
	return &Service{
		verifier: verifier,
		gw:       gw,
		session:  sess,
	}
}

// Login は認証情報を検証し、成功時にセッションを開始する。
// 既存のセッションがあれば新しいセッションで置き換える。
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, error) {
	user, tokens, err := s.verifier.SignIn(ctx, email, password)
	if err != nil {
		slog.Warn("login failed",
			slog.String("error_code", model.ErrorCode(err)),
		)
		return nil, err
	}

	s.session.Establish(user, tokens.AccessToken, tokens.RefreshToken)

	slog.Info("user logged in",
		slog.String("user_id", user.MaskedID()),
	)
	return user, nil
}

// Register は新規ユーザーを登録する。
// 登録の成功はセッションを開始しない（メール確認が必要な設定があるため）。
func (s *Service) Register(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.verifier.SignUp(ctx, email, password)
	if err != nil {
		slog.Warn("registration failed",
			slog.String("error_code", model.ErrorCode(err)),
		)
		return nil, err
	}

	slog.Info("user registered",
		slog.String("user_id", user.MaskedID()),
	)
	return user, nil
}

// Logout はリモートのセッションを失効させ、ローカルのセッションを破棄する。
// リモート失効の失敗はログに残すのみで、ローカルの破棄は必ず行う。
func (s *Service) Logout(ctx context.Context) {
	defer s.session.Clear()

	if !s.session.IsAuthenticated() {
		return
	}

	if err := s.gw.SignOut(ctx); err != nil {
		slog.Warn("remote sign-out failed, clearing local session anyway",
			slog.String("error", err.Error()),
		)
		return
	}

	slog.Info("user logged out")
}

// CurrentUser は有効なセッションのユーザーを返す。
// 未認証または期限切れの場合はnilを返す。
func (s *Service) CurrentUser() *model.User {
	if !s.session.IsValid() {
		return nil
	}
	return s.session.CurrentUser()
}

// IsAuthenticated は有効なセッションが存在するかを返す。
func (s *Service) IsAuthenticated() bool {
	return s.session.IsValid()
}

// SessionRemainingSeconds はセッションの残り有効秒数を返す。
func (s *Service) SessionRemainingSeconds() int {
	return s.session.RemainingSeconds()
}
