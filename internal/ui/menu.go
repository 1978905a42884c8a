// Package ui は対話型CLIメニューを提供する。
//
// メニューは2層構成: 未認証時は認証メニュー（ログイン・登録・終了）、
// 認証後はメモメニュー（一覧・表示・作成・編集・削除・ログアウト）を表示する。
// メモ操作中にセッションが失効した場合は認証メニューへ戻す。
package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hitoshi/noteman/internal/model"
)

// AuthService はメニューが必要とする認証操作。
type AuthService interface {
	Login(ctx context.Context, email, password string) (*model.User, error)
	Register(ctx context.Context, email, password string) (*model.User, error)
	Logout(ctx context.Context)
	CurrentUser() *model.User
	IsAuthenticated() bool
	SessionRemainingSeconds() int
}

// NoteService はメニューが必要とするメモ操作。
type NoteService interface {
	List(ctx context.Context) ([]*model.Note, error)
	Get(ctx context.Context, id string) (*model.Note, error)
	Create(ctx context.Context, title string, content *string) (*model.Note, error)
	Update(ctx context.Context, id string, title, content *string) (*model.Note, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Menu は対話型CLIのメインループを実装する。
type Menu struct {
	auth  AuthService
	notes NoteService
	in    *bufio.Scanner
	out   io.Writer
	eof   bool // 入力が尽きた
}

// NewMenu はMenuを生成する。inとoutは端末の標準入出力を渡すが、
// テストでは任意のReader/Writerに差し替えられる。
func NewMenu(auth AuthService, notes NoteService, in io.Reader, out io.Writer) *Menu {
	return &Menu{
		auth:  auth,
		notes: notes,
		in:    bufio.NewScanner(in),
		out:   out,
	}
}

// Run はメインループを開始する。「終了」が選択されるか入力が尽きるまで戻らない。
func (m *Menu) Run(ctx context.Context) {
	m.printHeader()

	for !m.eof {
		if !m.auth.IsAuthenticated() {
			if !m.authMenu(ctx) {
				return
			}
			continue
		}

		if err := m.notesMenu(ctx); err != nil {
			// セッション失効はエラーではなく認証メニューへの遷移
			m.printf("\n%s\n", userMessage(err))
			m.printf("ログイン画面に戻ります。\n")
		}
	}
}

func (m *Menu) printHeader() {
	m.printf("\n==================================================\n")
	m.printf("   noteman - メモ管理\n")
	m.printf("==================================================\n")
}

// authMenu は認証メニューを1回分処理する。終了が選択された場合はfalseを返す。
func (m *Menu) authMenu(ctx context.Context) bool {
	m.printf("\n--- 認証メニュー ---\n")
	m.printf("1. ログイン\n")
	m.printf("2. 新規登録\n")
	m.printf("0. 終了\n")

	choice, ok := m.prompt("\n番号を選択してください: ")
	if !ok {
		return false
	}

	switch choice {
	case "1":
		m.login(ctx)
	case "2":
		m.register(ctx)
	case "0":
		m.printf("\nご利用ありがとうございました。\n")
		return false
	default:
		m.printf("\n無効な選択です。\n")
	}
	return true
}

func (m *Menu) login(ctx context.Context) {
	m.printf("\n--- ログイン ---\n")

	email, ok := m.prompt("メールアドレス: ")
	if !ok {
		return
	}
	password, ok := m.prompt("パスワード: ")
	if !ok {
		return
	}

	user, err := m.auth.Login(ctx, email, password)
	if err != nil {
		m.printf("\n%s\n", userMessage(err))
		return
	}

	m.printf("\nようこそ、%sさん。\n", user.Email)
	m.printf("セッションは無操作%d分で失効します。\n", m.auth.SessionRemainingSeconds()/60)
}

func (m *Menu) register(ctx context.Context) {
	m.printf("\n--- 新規登録 ---\n")

	email, ok := m.prompt("メールアドレス: ")
	if !ok {
		return
	}
	password, ok := m.prompt("パスワード（6文字以上）: ")
	if !ok {
		return
	}
	confirm, ok := m.prompt("パスワード（確認）: ")
	if !ok {
		return
	}

	if password != confirm {
		m.printf("\nパスワードが一致しません。\n")
		return
	}

	user, err := m.auth.Register(ctx, email, password)
	if err != nil {
		m.printf("\n%s\n", userMessage(err))
		return
	}

	m.printf("\n登録が完了しました: %s\n", user.Email)
	m.printf("ログインしてご利用ください。\n")
}

// notesMenu はメモメニューを1回分処理する。
// セッション失効・未認証エラーはそのまま返し、呼び出し元が認証メニューへ戻す。
func (m *Menu) notesMenu(ctx context.Context) error {
	user := m.auth.CurrentUser()
	if user == nil {
		return model.NewNotAuthenticatedError()
	}

	remaining := m.auth.SessionRemainingSeconds()
	m.printf("\n--- メモメニュー ---\n")
	m.printf("ユーザー: %s | セッション残り: %d:%02d\n", user.Email, remaining/60, remaining%60)
	m.printf("----------------------------------------\n")
	m.printf("1. メモ一覧\n")
	m.printf("2. メモ表示\n")
	m.printf("3. メモ作成\n")
	m.printf("4. メモ編集\n")
	m.printf("5. メモ削除\n")
	m.printf("6. ログアウト\n")

	choice, ok := m.prompt("\n番号を選択してください: ")
	if !ok {
		return nil
	}

	var err error
	switch choice {
	case "1":
		err = m.listNotes(ctx)
	case "2":
		err = m.viewNote(ctx)
	case "3":
		err = m.createNote(ctx)
	case "4":
		err = m.editNote(ctx)
	case "5":
		err = m.deleteNote(ctx)
	case "6":
		m.auth.Logout(ctx)
		m.printf("\nログアウトしました。\n")
	default:
		m.printf("\n無効な選択です。\n")
	}

	if isSessionError(err) {
		return err
	}
	if err != nil {
		m.printf("\n%s\n", userMessage(err))
	}
	return nil
}

func (m *Menu) listNotes(ctx context.Context) error {
	m.printf("\n--- メモ一覧 ---\n")

	notes, err := m.notes.List(ctx)
	if err != nil {
		return err
	}

	if len(notes) == 0 {
		m.printf("（メモはまだありません）\n")
		return nil
	}

	for i, n := range notes {
		m.printf("\n%d. %s\n", i+1, n.Title)
		m.printf("   ID: %s\n", shortID(n.ID))
		m.printf("   %s\n", n.Preview(60))
		if n.CreatedAt != nil {
			m.printf("   作成: %s\n", n.CreatedAt.Format("2006-01-02 15:04"))
		}
	}
	m.printf("\n合計: %d件\n", len(notes))
	return nil
}

// viewNote は1件のメモを本文ごと表示する。
func (m *Menu) viewNote(ctx context.Context) error {
	m.printf("\n--- メモ表示 ---\n")

	if err := m.listNotes(ctx); err != nil {
		return err
	}

	prefix, ok := m.prompt("\nメモID（先頭8文字で可）: ")
	if !ok || prefix == "" {
		m.printf("\nIDを入力してください。\n")
		return nil
	}

	match, err := m.findByPrefix(ctx, prefix)
	if err != nil {
		return err
	}
	if match == nil {
		m.printf("\nメモが見つかりません。\n")
		return nil
	}

	note, err := m.notes.Get(ctx, match.ID)
	if err != nil {
		return err
	}
	if note == nil {
		m.printf("\nメモが見つかりません。\n")
		return nil
	}

	m.printf("\n========================================\n")
	m.printf("%s\n", note.Title)
	m.printf("========================================\n")
	if note.Content != nil {
		m.printf("%s\n", *note.Content)
	} else {
		m.printf("（本文なし）\n")
	}
	if note.UpdatedAt != nil {
		m.printf("\n更新: %s\n", note.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func (m *Menu) createNote(ctx context.Context) error {
	m.printf("\n--- メモ作成 ---\n")

	title, ok := m.prompt("タイトル: ")
	if !ok {
		return nil
	}

	m.printf("本文（空行で終了）:\n")
	content := m.readMultiline()

	var contentPtr *string
	if content != "" {
		contentPtr = &content
	}

	note, err := m.notes.Create(ctx, title, contentPtr)
	if err != nil {
		return err
	}

	m.printf("\nメモを作成しました: %s\n", note.Title)
	return nil
}

func (m *Menu) editNote(ctx context.Context) error {
	m.printf("\n--- メモ編集 ---\n")

	if err := m.listNotes(ctx); err != nil {
		return err
	}

	prefix, ok := m.prompt("\nメモID（先頭8文字で可）: ")
	if !ok || prefix == "" {
		m.printf("\nIDを入力してください。\n")
		return nil
	}

	note, err := m.findByPrefix(ctx, prefix)
	if err != nil {
		return err
	}
	if note == nil {
		m.printf("\nメモが見つかりません。\n")
		return nil
	}

	m.printf("\n編集中: %s\n", note.Title)
	m.printf("現在の本文: %s\n", note.Preview(100))

	newTitle, ok := m.prompt("新しいタイトル（Enterで変更なし）: ")
	if !ok {
		return nil
	}
	m.printf("新しい本文（空行で変更なし）:\n")
	newContent := m.readMultiline()

	var titlePtr, contentPtr *string
	if newTitle != "" {
		titlePtr = &newTitle
	}
	if newContent != "" {
		contentPtr = &newContent
	}

	if titlePtr == nil && contentPtr == nil {
		m.printf("\n変更はありません。\n")
		return nil
	}

	updated, err := m.notes.Update(ctx, note.ID, titlePtr, contentPtr)
	if err != nil {
		return err
	}
	if updated == nil {
		m.printf("\nメモが見つかりません。\n")
		return nil
	}

	m.printf("\nメモを更新しました: %s\n", updated.Title)
	return nil
}

func (m *Menu) deleteNote(ctx context.Context) error {
	m.printf("\n--- メモ削除 ---\n")

	if err := m.listNotes(ctx); err != nil {
		return err
	}

	prefix, ok := m.prompt("\nメモID（先頭8文字で可）: ")
	if !ok || prefix == "" {
		m.printf("\nIDを入力してください。\n")
		return nil
	}

	note, err := m.findByPrefix(ctx, prefix)
	if err != nil {
		return err
	}
	if note == nil {
		m.printf("\nメモが見つかりません。\n")
		return nil
	}

	confirm, ok := m.prompt(fmt.Sprintf("「%s」を削除しますか？ (y/N): ", note.Title))
	if !ok || !strings.EqualFold(confirm, "y") {
		m.printf("\n削除を中止しました。\n")
		return nil
	}

	deleted, err := m.notes.Delete(ctx, note.ID)
	if err != nil {
		return err
	}
	if !deleted {
		m.printf("\nメモが見つかりません。\n")
		return nil
	}

	m.printf("\nメモを削除しました。\n")
	return nil
}

// findByPrefix はIDの前方一致でメモを探す。
// 端末ではIDの先頭8文字のみ表示するため、入力も前方一致で受け付ける。
func (m *Menu) findByPrefix(ctx context.Context, prefix string) (*model.Note, error) {
	notes, err := m.notes.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, n := range notes {
		if strings.HasPrefix(n.ID, prefix) {
			return n, nil
		}
	}
	return nil, nil
}

// prompt は1行入力を促す。入力が尽きた場合はfalseを返す。
func (m *Menu) prompt(label string) (string, bool) {
	m.printf("%s", label)
	if !m.in.Scan() {
		m.eof = true
		return "", false
	}
	return strings.TrimSpace(m.in.Text()), true
}

// readMultiline は空行が入力されるまで複数行を読み取る。
func (m *Menu) readMultiline() string {
	var lines []string
	for m.in.Scan() {
		line := m.in.Text()
		if strings.TrimSpace(line) == "" {
			break
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m *Menu) printf(format string, args ...any) {
	fmt.Fprintf(m.out, format, args...)
}

// shortID はID表示を先頭8文字に切り詰める。
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}

// isSessionError はセッション起因のエラー（再ログインが必要）かを判定する。
func isSessionError(err error) bool {
	code := model.ErrorCode(err)
	return code == model.ErrCodeSessionExpired || code == model.ErrCodeNotAuthenticated
}

// userMessage はエラーをユーザー向けの文言に変換する。
func userMessage(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return fmt.Sprintf("エラーが発生しました: %v", err)
}
