// Package session はプロセス内セッションの単一の真実源を提供する。
//
// Managerは高々1人の認証済みユーザーと発行済みトークン、最終操作時刻を保持し、
// 無操作タイムアウトの検査と保護操作のゲートを提供する。
// 状態遷移は Empty --Establish--> Active、Active --Clear/失効検出--> Empty、
// Active --Touch--> Active（タイマーリセット）の3種のみ。
// 失効は保存された状態ではなく検査時に遅延検出され、検出と同時にClearされる。
package session

import (
	"sync"
	"time"

	"github.com/hitoshi/noteman/internal/model"
)

// Manager はログイン中ユーザーのセッション状態を保持する。
// HTTPブリッジは並行ホストであるため、全操作をミューテックスで原子化する。
// check-then-act（RequireValidに続くTouch）はBeginで1回のロック内にまとめる。
type Manager struct {
	mu           sync.Mutex
	user         *model.User
	accessToken  string
	refreshToken string
	lastActivity time.Time // ゼロ値 = 活動記録なし
	timeout      time.Duration

	now      func() time.Time // テスト用に差し替え可能
	onExpire func()           // 失効検出時のフック。nilの場合は何もしない
}

// NewManager は空状態のManagerを生成する。
// timeoutSecondsは無操作タイムアウト秒数。
func NewManager(timeoutSeconds int) *Manager {
	return &Manager{
		timeout: time.Duration(timeoutSeconds) * time.Second,
		now:     time.Now,
	}
}

// OnExpire は失効検出時に呼ばれるフックを設定する。
// メトリクス記録用で、SessionExpiredが観測されるたびにロック内で1回呼ばれる。
// 起動時のワイヤリングでのみ設定すること。
func (m *Manager) OnExpire(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = fn
}

// Establish はログイン成功後のセッションを確立する。
// 既存セッションは無条件に上書きされ、活動タイマーがリセットされる。
// 失敗することはない。
func (m *Manager) Establish(user *model.User, accessToken, refreshToken string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.user = user
	m.accessToken = accessToken
	m.refreshToken = refreshToken
	m.lastActivity = m.now()
}

// Clear はセッションを空状態に戻す（ログアウト）。
// 冪等であり、既に空の状態で呼んでも安全。
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked()
}

func (m *Manager) clearLocked() {
	m.user = nil
	m.accessToken = ""
	m.refreshToken = ""
	m.lastActivity = time.Time{}
}

// Touch は最終操作時刻を現在時刻に更新する。
// 空状態での呼び出しは何もしない（エラーにもしない）。
func (m *Manager) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.user == nil {
		return
	}
	m.lastActivity = m.now()
}

// IsAuthenticated は認証済みユーザーが存在するかを返す。
// タイムアウトは考慮しない。完全な検査はIsValidを使う。
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user != nil
}

// IsValid はセッションが有効（認証済みかつ未失効）かを返す。
func (m *Manager) IsValid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isValidLocked()
}

func (m *Manager) isValidLocked() bool {
	if m.user == nil || m.lastActivity.IsZero() {
		return false
	}
	return m.now().Sub(m.lastActivity) < m.timeout
}

// RemainingSeconds はセッション失効までの残り秒数を返す。
// 未認証または活動記録なしの場合は0。負の値にはならない。
func (m *Manager) RemainingSeconds() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.user == nil || m.lastActivity.IsZero() {
		return 0
	}
	remaining := int(m.timeout.Seconds()) - int(m.now().Sub(m.lastActivity).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RequireValid は保護操作のゲート。
// 未認証ならNotAuthenticatedエラー、認証済みだが失効していれば
// セッションをクリアした上でSessionExpiredエラーを返す。
// 失効検出後の再試行は未認証パスに入る（SessionExpiredは1回しか観測されない）。
// 活動時刻の更新は行わない。呼び出し元はBeginで更新と組で使うこと。
func (m *Manager) RequireValid() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requireValidLocked()
}

func (m *Manager) requireValidLocked() error {
	if m.user == nil {
		return model.NewNotAuthenticatedError()
	}
	if !m.isValidLocked() {
		m.clearLocked()
		if m.onExpire != nil {
			m.onExpire()
		}
		return model.NewSessionExpiredError()
	}
	return nil
}

// Begin は「検査→活動時刻更新→所有者ID取得」を1回のロック内で行う。
// ノートサービスの全操作が使用する認可契約であり、更新を省くと
// 操作中のセッションが失効してしまう。
func (m *Manager) Begin() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireValidLocked(); err != nil {
		return "", err
	}
	m.lastActivity = m.now()
	return m.user.ID, nil
}

// CurrentUser は認証済みユーザーを返す。未認証の場合はnil。
// タイムアウトは考慮しない。
func (m *Manager) CurrentUser() *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user
}

// CurrentUserID は認証済みユーザーのIDを返す。未認証の場合は空文字列。
func (m *Manager) CurrentUserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.user == nil {
		return ""
	}
	return m.user.ID
}

// AccessToken は現在のアクセストークンを返す。未認証の場合は空文字列。
// ゲートウェイがAuthorizationヘッダーに使用する。
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accessToken
}
