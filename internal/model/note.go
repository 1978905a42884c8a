package model

import (
	"strings"
	"time"
)

// Note はユーザーが所有するノートを表す。
// IDは永続化されるまで空文字列で、保存時にバックエンドが採番する。
// created_at/updated_atもバックエンドが設定する。
type Note struct {
	ID        string
	UserID    string
	Title     string
	Content   *string
	CreatedAt *time.Time
	UpdatedAt *time.Time
}

// NewNote は未永続のNoteを生成する。
// タイトルはトリム後に空であってはならず、違反時はInvalidArgumentエラーを返す。
// UserIDは常にセッション側から渡される（呼び出し元入力を信用しない）。
func NewNote(userID, title string, content *string) (*Note, error) {
	trimmed, err := ValidTitle(title)
	if err != nil {
		return nil, err
	}
	return &Note{
		UserID:  userID,
		Title:   trimmed,
		Content: content,
	}, nil
}

// ValidTitle はタイトルをトリムして検証する。
// 作成時と更新時で同一の規則を適用するための共通化。
func ValidTitle(title string) (string, error) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return "", NewInvalidArgumentError("タイトルは空にできません")
	}
	return trimmed, nil
}

// NoteFromRow はゲートウェイの行データからNoteを復元する。
func NoteFromRow(row map[string]any) *Note {
	n := &Note{
		ID:     stringField(row, "id"),
		UserID: stringField(row, "user_id"),
		Title:  stringField(row, "title"),
	}
	if v, ok := row["content"].(string); ok {
		n.Content = &v
	}
	n.CreatedAt = timeField(row, "created_at")
	n.UpdatedAt = timeField(row, "updated_at")
	return n
}

// Row はゲートウェイに渡す行データへ変換する。
// includeIDがfalseの場合はINSERT用にidキーを含めない（採番はバックエンドが行う）。
func (n *Note) Row(includeID bool) map[string]any {
	row := map[string]any{
		"user_id": n.UserID,
		"title":   n.Title,
	}
	if n.Content != nil {
		row["content"] = *n.Content
	}
	if includeID && n.ID != "" {
		row["id"] = n.ID
	}
	return row
}

// Preview は一覧表示用に本文の先頭を返す。
// maxLength文字を超える場合は単語境界で切り詰めて"..."を付ける。
func (n *Note) Preview(maxLength int) string {
	if n.Content == nil || *n.Content == "" {
		return "(本文なし)"
	}
	c := *n.Content
	// 日本語本文を壊さないよう、バイトではなく文字（rune）単位で切り詰める
	runes := []rune(c)
	if len(runes) <= maxLength {
		return c
	}
	cut := string(runes[:maxLength])
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "..."
}
