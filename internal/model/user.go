// Package model はドメインモデルを定義する。
package model

import "time"

// User は外部IDプロバイダーで認証されたユーザーを表す。
// サインイン/サインアップ時にBaaS側で生成され、本システム側では
// セッションの生存期間だけ保持する。独自の永続化は行わない。
type User struct {
	ID        string
	Email     string
	CreatedAt *time.Time
}

// UserFromRow はゲートウェイの行データからUserを復元する。
// 欠けているキーはゼロ値として扱う。
func UserFromRow(row map[string]any) *User {
	u := &User{
		ID:    stringField(row, "id"),
		Email: stringField(row, "email"),
	}
	u.CreatedAt = timeField(row, "created_at")
	return u
}

// MaskedID はログ・画面表示用にIDをマスクした文字列を返す。
func (u *User) MaskedID() string {
	if len(u.ID) > 8 {
		return u.ID[:4] + "..." + u.ID[len(u.ID)-4:]
	}
	return "****"
}

// stringField は行データから文字列フィールドを取り出す。
func stringField(row map[string]any, key string) string {
	if v, ok := row[key].(string); ok {
		return v
	}
	return ""
}

// timeField は行データからタイムスタンプを取り出す。
// BaaSはRFC3339（Zサフィックスあり/なし）で返すため両方を受け付ける。
// パースできない値はnilとして扱う。
func timeField(row map[string]any, key string) *time.Time {
	switch v := row[key].(type) {
	case time.Time:
		return &v
	case string:
		if v == "" {
			return nil
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
			if ts, err := time.Parse(layout, v); err == nil {
				return &ts
			}
		}
	}
	return nil
}
