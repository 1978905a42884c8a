package gateway

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/noteman/internal/model"
)

// ScopeSource は現在の所有者（ユーザーID）を返す関数。
// ホステッドバックエンドでRLSが担う行スコープを、セルフホスト構成では
// この関数から得たIDをWHERE句に与えることで模倣する。
// 未認証の場合は空文字列を返すこと（その場合は全操作が空振りとなる）。
type ScopeSource func() string

// PostgresGateway はセルフホストPostgreSQLをバックエンドとするGateway実装。
// 認証情報はapp_usersテーブルにbcryptハッシュで保持し、ローカルに検証する。
// トークンはリモート検証を伴わない不透明な乱数（本システムの利用範囲では
// セッションホルダーが唯一の検証点であるため）。
type PostgresGateway struct {
	db    *sql.DB
	scope ScopeSource
}

// NewPostgresGateway はPostgresGatewayを生成する。
func NewPostgresGateway(db *sql.DB, scope ScopeSource) *PostgresGateway {
	return &PostgresGateway{db: db, scope: scope}
}

// notasColumns はnotasテーブルのSELECT対象カラム。
const notasColumns = "id, user_id, title, content, created_at, updated_at"

// SignIn はapp_usersテーブルに対してメールアドレスとパスワードを検証する。
// 拒否時のエラー文言は呼び出し元の正規化規則（"invalid credentials"）に合わせる。
func (g *PostgresGateway) SignIn(ctx context.Context, email, password string) (*model.User, Tokens, error) {
	var (
		id, passwordHash string
		createdAt        time.Time
	)
	err := g.db.QueryRowContext(ctx,
		`SELECT id, password_hash, created_at FROM app_users WHERE email = $1`,
		email,
	).Scan(&id, &passwordHash, &createdAt)

	if err == sql.ErrNoRows {
		return nil, Tokens{}, fmt.Errorf("invalid login credentials")
	}
	if err != nil {
		return nil, Tokens{}, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return nil, Tokens{}, fmt.Errorf("invalid login credentials")
	}

	access, err := generateToken()
	if err != nil {
		return nil, Tokens{}, fmt.Errorf("failed to generate token: %w", err)
	}
	refresh, err := generateToken()
	if err != nil {
		return nil, Tokens{}, fmt.Errorf("failed to generate token: %w", err)
	}

	user := &model.User{ID: id, Email: email, CreatedAt: &createdAt}
	return user, Tokens{AccessToken: access, RefreshToken: refresh}, nil
}

// SignUp は新規ユーザーをapp_usersテーブルに登録する。
func (g *PostgresGateway) SignUp(ctx context.Context, email, password string) (*model.User, error) {
	var exists bool
	err := g.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM app_users WHERE email = $1)`,
		email,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("user already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	id := uuid.New().String()
	now := time.Now()

	_, err = g.db.ExecContext(ctx,
		`INSERT INTO app_users (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		id, email, string(hash), now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &model.User{ID: id, Email: email, CreatedAt: &now}, nil
}

// SignOut はセルフホスト構成ではリモート状態を持たないため何もしない。
func (g *PostgresGateway) SignOut(ctx context.Context) error {
	return nil
}

// Select は所有者スコープ内の行一覧を返す。
func (g *PostgresGateway) Select(ctx context.Context, table string, q Query) ([]Row, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	owner := g.scope()
	if owner == "" {
		return []Row{}, nil
	}

	query := `SELECT ` + notasColumns + ` FROM notas WHERE user_id = $1`
	args := []any{owner}

	if id, ok := q.Filters["id"]; ok {
		query += ` AND id = $2`
		args = append(args, id)
	}
	if q.OrderBy != "" {
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		// OrderByは呼び出し側が固定文字列で渡す前提だが、念のため許可リストで検査する
		if q.OrderBy != "created_at" && q.OrderBy != "updated_at" && q.OrderBy != "title" {
			return nil, fmt.Errorf("unsupported order column: %q", q.OrderBy)
		}
		query += ` ORDER BY ` + q.OrderBy + ` ` + dir
	}

	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select from %s: %w", table, err)
	}
	defer rows.Close()

	result := []Row{}
	for rows.Next() {
		row, err := scanNotaRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return result, nil
}

// Insert は行を挿入し、採番・補完済みの行を返す。
func (g *PostgresGateway) Insert(ctx context.Context, table string, row Row) (Row, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	userID, _ := row["user_id"].(string)
	title, _ := row["title"].(string)

	var content sql.NullString
	if v, ok := row["content"].(string); ok {
		content = sql.NullString{String: v, Valid: true}
	}

	id := uuid.New().String()
	now := time.Now()

	_, err := g.db.ExecContext(ctx,
		`INSERT INTO notas (id, user_id, title, content, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)`,
		id, userID, title, content, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", table, err)
	}

	inserted := Row{
		"id":         id,
		"user_id":    userID,
		"title":      title,
		"created_at": now,
		"updated_at": now,
	}
	if content.Valid {
		inserted["content"] = content.String
	}
	return inserted, nil
}

// Update は所有者スコープ内の指定IDの行を部分更新する。
// 対象が存在しない、または所有者が異なる場合は(nil, nil)を返す。
func (g *PostgresGateway) Update(ctx context.Context, table, id string, partial Row) (Row, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	owner := g.scope()
	if owner == "" {
		return nil, nil
	}

	sets := []string{}
	args := []any{}
	i := 1
	for _, col := range []string{"title", "content"} {
		if v, ok := partial[col]; ok {
			sets = append(sets, fmt.Sprintf("%s = $%d", col, i))
			args = append(args, v)
			i++
		}
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("no supported columns in partial update")
	}
	sets = append(sets, fmt.Sprintf("updated_at = $%d", i))
	args = append(args, time.Now())
	i++

	query := fmt.Sprintf(
		`UPDATE notas SET %s WHERE id = $%d AND user_id = $%d RETURNING `+notasColumns,
		strings.Join(sets, ", "), i, i+1,
	)
	args = append(args, id, owner)

	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s: %w", table, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil
	}
	return scanNotaRow(rows)
}

// Delete は所有者スコープ内の指定IDの行を削除する。
// 対象が存在しない場合は(nil, nil)を返す。
func (g *PostgresGateway) Delete(ctx context.Context, table, id string) (Row, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	owner := g.scope()
	if owner == "" {
		return nil, nil
	}

	rows, err := g.db.QueryContext(ctx,
		`DELETE FROM notas WHERE id = $1 AND user_id = $2 RETURNING `+notasColumns,
		id, owner,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil
	}
	return scanNotaRow(rows)
}

// Count は所有者スコープ内の行数を返す。
func (g *PostgresGateway) Count(ctx context.Context, table string, filters map[string]string) (int, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}

	owner := g.scope()
	if owner == "" {
		return 0, nil
	}

	var count int
	err := g.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notas WHERE user_id = $1`,
		owner,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return count, nil
}

// checkTable はサポート対象のテーブル名かを検査する。
// セルフホスト構成のスキーマはnotasのみを持つ。
func checkTable(table string) error {
	if table != "notas" {
		return fmt.Errorf("unsupported table: %q", table)
	}
	return nil
}

// scanNotaRow はnotasテーブルの1行をRowへ変換する。
func scanNotaRow(rows *sql.Rows) (Row, error) {
	var (
		id, userID, title    string
		content              sql.NullString
		createdAt, updatedAt time.Time
	)
	if err := rows.Scan(&id, &userID, &title, &content, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	row := Row{
		"id":         id,
		"user_id":    userID,
		"title":      title,
		"created_at": createdAt,
		"updated_at": updatedAt,
	}
	if content.Valid {
		row["content"] = content.String
	}
	return row, nil
}

// generateToken は暗号的に安全な不透明トークンを生成する。
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// compile-time interface check
var _ Gateway = (*PostgresGateway)(nil)
