package auth

import (
	"context"
	"strings"

	"github.com/hitoshi/noteman/internal/gateway"
	"github.com/hitoshi/noteman/internal/model"
)

// minPasswordLength はバックエンドに送る前に検査するパスワードの最小文字数。
const minPasswordLength = 6

// CredentialVerifier は認証情報の検証と登録を抽象化する。
// 将来的に別の認証方式（マジックリンク等）に対応するための抽象化。
type CredentialVerifier interface {
	// SignIn は認証情報を検証し、成功時にユーザーとトークンを返す。
	SignIn(ctx context.Context, email, password string) (*model.User, gateway.Tokens, error)
	// SignUp は新規ユーザーを登録する。セッションは開始しない。
	SignUp(ctx context.Context, email, password string) (*model.User, error)
}

// emailPasswordVerifier はメールアドレスとパスワードによる検証の実装。
// ネットワーク呼び出しの前に入力を検査し、バックエンドのエラー文言を
// 安定したエラーコードへ正規化する。
type emailPasswordVerifier struct {
	gw gateway.Gateway
}

// NewEmailPasswordVerifier はゲートウェイを用いるCredentialVerifierを生成する。
func NewEmailPasswordVerifier(gw gateway.Gateway) CredentialVerifier {
	return &emailPasswordVerifier{gw: gw}
}

func (v *emailPasswordVerifier) SignIn(ctx context.Context, email, password string) (*model.User, gateway.Tokens, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, gateway.Tokens{}, err
	}

	user, tokens, err := v.gw.SignIn(ctx, email, password)
	if err != nil {
		return nil, gateway.Tokens{}, normalizeProviderError(err)
	}
	return user, tokens, nil
}

func (v *emailPasswordVerifier) SignUp(ctx context.Context, email, password string) (*model.User, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	user, err := v.gw.SignUp(ctx, email, password)
	if err != nil {
		return nil, normalizeProviderError(err)
	}
	return user, nil
}

// validateCredentials は入力をローカルに検査する。
// 失格の場合はバックエンドへの呼び出しを行わせない。
func validateCredentials(email, password string) error {
	if strings.TrimSpace(email) == "" {
		return model.NewInvalidArgumentError("メールアドレスを入力してください。")
	}
	if len(password) < minPasswordLength {
		return model.NewInvalidArgumentError("パスワードは6文字以上で入力してください。")
	}
	return nil
}

// normalizeProviderError はバックエンドのエラー文言を安定したAPIErrorへ正規化する。
// 文言の表記はプロバイダーのバージョンにより揺れるため、部分一致で判定する。
func normalizeProviderError(err error) error {
	text := strings.ToLower(err.Error())

	if strings.Contains(text, "invalid") || strings.Contains(text, "credentials") {
		return model.NewIncorrectCredentialsError()
	}
	if strings.Contains(text, "already") || strings.Contains(text, "registered") {
		return model.NewEmailAlreadyRegisteredError()
	}
	return model.NewAuthFailedError(err.Error())
}

var _ CredentialVerifier = (*emailPasswordVerifier)(nil)
