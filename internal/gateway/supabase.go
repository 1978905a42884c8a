package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hitoshi/noteman/internal/model"
)

// TokenSource は現在のアクセストークンを返す関数。
// ゲートウェイ自体はステートレスであり、トークンの保持はセッション側の責務。
// 未認証の場合は空文字列を返すこと（その場合はAPIキーのみで呼び出す）。
type TokenSource func() string

// SupabaseGateway はホステッドSupabaseをバックエンドとするGateway実装。
// 認証はGoTrue（/auth/v1）、テーブル操作はPostgREST（/rest/v1）のREST APIを使用する。
// 行レベルセキュリティ（RLS）による所有者スコープはSupabase側で強制される。
type SupabaseGateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	tokens     TokenSource
}

// NewSupabaseGateway はSupabaseGatewayを生成する。
// baseURLはプロジェクトURL（例: https://xxxx.supabase.co）。
func NewSupabaseGateway(httpClient *http.Client, baseURL, apiKey string, tokens TokenSource) *SupabaseGateway {
	return &SupabaseGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		tokens:     tokens,
	}
}

// authResponse はGoTrueのトークンエンドポイントのレスポンス。
type authResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	User         json.RawMessage `json:"user"`
	// サインアップ時はユーザーオブジェクトがトップレベルで返ることがある
	ID    string `json:"id"`
	Email string `json:"email"`
}

// SignIn はGoTrueのパスワードグラントで認証する。
func (g *SupabaseGateway) SignIn(ctx context.Context, email, password string) (*model.User, Tokens, error) {
	body := map[string]string{"email": email, "password": password}

	var resp authResponse
	err := g.doJSON(ctx, http.MethodPost, "/auth/v1/token", url.Values{"grant_type": {"password"}}, body, nil, &resp)
	if err != nil {
		return nil, Tokens{}, err
	}

	user, err := decodeUser(resp.User)
	if err != nil {
		return nil, Tokens{}, fmt.Errorf("failed to decode user in sign-in response: %w", err)
	}

	return user, Tokens{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}, nil
}

// SignUp はGoTrueのサインアップエンドポイントでユーザーを登録する。
func (g *SupabaseGateway) SignUp(ctx context.Context, email, password string) (*model.User, error) {
	body := map[string]string{"email": email, "password": password}

	var resp authResponse
	if err := g.doJSON(ctx, http.MethodPost, "/auth/v1/signup", nil, body, nil, &resp); err != nil {
		return nil, err
	}

	// メール確認が無効な設定ではセッション付きレスポンス（userキーあり）、
	// 有効な設定ではユーザーオブジェクトがトップレベルで返る。
	if len(resp.User) > 0 && string(resp.User) != "null" {
		return decodeUser(resp.User)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("sign-up response contained no user")
	}
	return &model.User{ID: resp.ID, Email: resp.Email}, nil
}

// SignOut はGoTrueのログアウトエンドポイントでトークンを失効させる。
func (g *SupabaseGateway) SignOut(ctx context.Context) error {
	return g.doJSON(ctx, http.MethodPost, "/auth/v1/logout", nil, nil, nil, nil)
}

// Select はPostgRESTのテーブルエンドポイントから行一覧を取得する。
func (g *SupabaseGateway) Select(ctx context.Context, table string, q Query) ([]Row, error) {
	query := url.Values{"select": {"*"}}
	for col, val := range q.Filters {
		query.Set(col, "eq."+val)
	}
	if q.OrderBy != "" {
		dir := "asc"
		if q.Desc {
			dir = "desc"
		}
		query.Set("order", q.OrderBy+"."+dir)
	}

	var rows []Row
	if err := g.doJSON(ctx, http.MethodGet, "/rest/v1/"+table, query, nil, nil, &rows); err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []Row{}
	}
	return rows, nil
}

// Insert は行を挿入する。Preferヘッダーで挿入結果の行を返させる。
func (g *SupabaseGateway) Insert(ctx context.Context, table string, row Row) (Row, error) {
	headers := map[string]string{"Prefer": "return=representation"}

	var rows []Row
	if err := g.doJSON(ctx, http.MethodPost, "/rest/v1/"+table, nil, row, headers, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Update は指定IDの行を部分更新する。対象が存在しない場合は(nil, nil)を返す。
func (g *SupabaseGateway) Update(ctx context.Context, table, id string, partial Row) (Row, error) {
	query := url.Values{"id": {"eq." + id}}
	headers := map[string]string{"Prefer": "return=representation"}

	var rows []Row
	if err := g.doJSON(ctx, http.MethodPatch, "/rest/v1/"+table, query, partial, headers, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Delete は指定IDの行を削除する。対象が存在しない場合は(nil, nil)を返す。
func (g *SupabaseGateway) Delete(ctx context.Context, table, id string) (Row, error) {
	query := url.Values{"id": {"eq." + id}}
	headers := map[string]string{"Prefer": "return=representation"}

	var rows []Row
	if err := g.doJSON(ctx, http.MethodDelete, "/rest/v1/"+table, query, nil, headers, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Count はPrefer: count=exactで件数のみを取得する。
// 件数はContent-Rangeヘッダー（例: "0-9/42" または "*/0"）から読み取る。
func (g *SupabaseGateway) Count(ctx context.Context, table string, filters map[string]string) (int, error) {
	query := url.Values{"select": {"id"}}
	for col, val := range filters {
		query.Set(col, "eq."+val)
	}

	req, err := g.newRequest(ctx, http.MethodHead, "/rest/v1/"+table, query, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Prefer", "count=exact")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("count request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("count request returned status %d", resp.StatusCode)
	}

	return parseContentRangeTotal(resp.Header.Get("Content-Range"))
}

// doJSON はJSONリクエストを送り、レスポンスをoutにデコードする。
// outがnilの場合はレスポンスボディを読み捨てる。
// 2xx以外のステータスではプロバイダーのエラー文言をそのままエラーとして返す。
func (g *SupabaseGateway) doJSON(ctx context.Context, method, path string, query url.Values, body any, headers map[string]string, out any) error {
	req, err := g.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s", providerErrorText(data, resp.StatusCode))
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	}
	return nil
}

// newRequest は共通ヘッダー付きのリクエストを組み立てる。
// apikeyは常に付与し、セッションがあればBearerトークンも付与する。
func (g *SupabaseGateway) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := g.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("apikey", g.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := g.tokens(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	return req, nil
}

// decodeUser はGoTrueのユーザーオブジェクトをmodel.Userに変換する。
func decodeUser(raw json.RawMessage) (*model.User, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("response contained no user")
	}
	var row Row
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	u := model.UserFromRow(row)
	if u.ID == "" {
		return nil, fmt.Errorf("user object contained no id")
	}
	return u, nil
}

// providerErrorText はGoTrue/PostgRESTのエラーレスポンスから文言を抽出する。
// error_description、msg、message、errorの順で探し、
// いずれも無い場合はステータスコードを含む汎用文言を返す。
func providerErrorText(data []byte, statusCode int) string {
	var body map[string]any
	if err := json.Unmarshal(data, &body); err == nil {
		for _, key := range []string{"error_description", "msg", "message", "error"} {
			if v, ok := body[key].(string); ok && v != "" {
				return v
			}
		}
	}
	return fmt.Sprintf("backend returned status %d", statusCode)
}

// parseContentRangeTotal はContent-Rangeヘッダーの総数部分を取り出す。
func parseContentRangeTotal(header string) (int, error) {
	idx := strings.LastIndex(header, "/")
	if idx < 0 || idx == len(header)-1 {
		return 0, fmt.Errorf("unexpected Content-Range header: %q", header)
	}
	total := header[idx+1:]
	if total == "*" {
		return 0, fmt.Errorf("backend did not return an exact count")
	}
	n, err := strconv.Atoi(total)
	if err != nil {
		return 0, fmt.Errorf("unexpected Content-Range total %q: %w", total, err)
	}
	return n, nil
}

// compile-time interface check
var _ Gateway = (*SupabaseGateway)(nil)
