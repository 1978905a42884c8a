// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はメモ本文を保存前にサニタイズし、
// メモをWeb UIに表示した際のXSS攻撃からユーザーを保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 最小限の整形タグのみを通過させる。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はメモ本文のサニタイズ機能のインターフェースを定義する。
// メモの作成・更新時、リモートへの書き込み前に使用される。
type ContentSanitizerService interface {
	// Sanitize はメモ本文をサニタイズして安全なテキストを返す。
	// 許可タグ（p, br, ul, ol, li, blockquote, pre, code, strong, em）のみを通過させ、
	// script, iframe, styleタグおよびon*イベント属性を除去する。
	// リンクや画像はメモ本文では許可しない。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(content string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, ul, ol, li, blockquote, pre, code, strong, em
//   - 禁止タグ: script, iframe, style, a, img および全てのon*イベント属性
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	// 整形タグのみを許可する。許可リストに含めないタグは自動的に除去される。
	// on*イベント属性はbluemondayのデフォルトで許可されない。
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)

	return &contentSanitizer{
		policy: p,
	}
}

// Sanitize はメモ本文をサニタイズして安全なテキストを返す。
func (s *contentSanitizer) Sanitize(content string) string {
	return s.policy.Sanitize(content)
}
