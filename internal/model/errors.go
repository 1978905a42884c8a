package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, storage, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	// ErrCodeInvalidArgument は入力値検証エラー。ネットワーク呼び出し前にローカルで検出される。
	ErrCodeInvalidArgument = "INVALID_ARGUMENT"
	// ErrCodeNotAuthenticated はセッションが存在しない状態での保護操作。
	ErrCodeNotAuthenticated = "NOT_AUTHENTICATED"
	// ErrCodeSessionExpired は無操作タイムアウトによるセッション失効。検出時にセッションはクリア済み。
	ErrCodeSessionExpired = "SESSION_EXPIRED"
	// ErrCodeAuthFailed はIDプロバイダーによる認証・登録の拒否。
	ErrCodeAuthFailed = "AUTH_FAILED"
	// ErrCodeStorageError はゲートウェイ呼び出しの失敗、または期待した結果が返らなかった状態。
	ErrCodeStorageError = "STORAGE_ERROR"
)

// NewInvalidArgumentError は入力値検証エラーを生成する。
func NewInvalidArgumentError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidArgument,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewNotAuthenticatedError は未認証エラーを生成する。
func NewNotAuthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAuthenticated,
		Message:  "認証されていません。先にログインしてください。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewSessionExpiredError はセッション失効エラーを生成する。
func NewSessionExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionExpired,
		Message:  "無操作によりセッションが失効しました。再度ログインしてください。",
		Category: "auth",
		Action:   "もう一度ログインしてください。",
	}
}

// NewIncorrectCredentialsError は認証情報不一致エラーを生成する。
// プロバイダー固有のエラー文言はここで統一的なメッセージに正規化される。
func NewIncorrectCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthFailed,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "認証情報を確認して再度お試しください。",
	}
}

// NewEmailAlreadyRegisteredError はメールアドレス重複登録エラーを生成する。
func NewEmailAlreadyRegisteredError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthFailed,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "ログインするか、別のメールアドレスで登録してください。",
	}
}

// NewAuthFailedError は上記以外の認証失敗を生成する。
func NewAuthFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeAuthFailed,
		Message:  fmt.Sprintf("認証に失敗しました: %s", reason),
		Category: "auth",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewStorageError はゲートウェイ呼び出し失敗エラーを生成する。
// 本システムはリトライを行わないため、呼び出し元にそのまま伝播する。
func NewStorageError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeStorageError,
		Message:  fmt.Sprintf("データアクセスに失敗しました: %s", reason),
		Category: "storage",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// AsAPIError はエラーをAPIErrorとして取り出す。
// アダプタ層でレスポンスボディの組み立てに使用する。
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// ErrorCode はエラーからAPIErrorのコードを取り出す。
// APIErrorでない場合は空文字列を返す。アダプタ層のステータスコード決定や
// テストでの判別に使用する。
func ErrorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}
