// Package gateway は外部BaaSへのデータアクセス境界を定義する。
//
// ゲートウェイはテーブル名をキーとした汎用的な行操作とID検証のみを公開し、
// ノート/ユーザーのドメイン意味論は解釈しない。ステートレスでキャッシュを
// 持たず、リトライも行わない（バックエンド側の挙動は不透明として扱う）。
// 行単位の所有者認可はアプリ側のセッションゲートの下層として
// バックエンド側でも強制されることを期待する。
package gateway

import (
	"context"

	"github.com/hitoshi/noteman/internal/model"
)

// Row はゲートウェイが受け渡す型なしの行データ。
// キーはカラム名、値はJSONスカラーまたはtime.Time。
type Row = map[string]any

// Tokens はサインイン時に発行される資格情報の組。
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// Query はSelect/Countの絞り込み条件を表す。
type Query struct {
	// Filters はカラム名→等価条件値の組。nilの場合は条件なし。
	Filters map[string]string
	// OrderBy はソート対象カラム。空の場合はソートなし。
	OrderBy string
	// Desc はtrueのとき降順ソート。
	Desc bool
}

// Gateway は外部BaaSへの薄いファサード。
// 本システムの全データアクセスと認証呼び出しはこの境界を通過する。
type Gateway interface {
	// SignIn はメールアドレスとパスワードで認証し、ユーザーとトークンを返す。
	// 拒否理由はプロバイダー固有のエラー文言のまま返す（正規化は呼び出し元の責務）。
	SignIn(ctx context.Context, email, password string) (*model.User, Tokens, error)

	// SignUp は新規ユーザーを登録する。セッションは確立しない。
	SignUp(ctx context.Context, email, password string) (*model.User, error)

	// SignOut はリモート側のセッションを破棄する。
	SignOut(ctx context.Context) error

	// Select は条件に合致する行の一覧を返す。該当なしは空スライス。
	Select(ctx context.Context, table string, q Query) ([]Row, error)

	// Insert は行を挿入し、バックエンドが採番・補完した行を返す。
	// バックエンドが行を返さなかった場合は (nil, nil)。
	Insert(ctx context.Context, table string, row Row) (Row, error)

	// Update は指定IDの行を部分更新する。対象が存在しない場合は (nil, nil)。
	Update(ctx context.Context, table, id string, partial Row) (Row, error)

	// Delete は指定IDの行を削除し、削除した行を返す。対象が存在しない場合は (nil, nil)。
	Delete(ctx context.Context, table, id string) (Row, error)

	// Count は条件に合致する行数を返す。
	Count(ctx context.Context, table string, filters map[string]string) (int, error)
}
