package note

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/noteman/internal/gateway"
	"github.com/hitoshi/noteman/internal/model"
	"github.com/hitoshi/noteman/internal/session"
)

// mockGateway はfnフィールド差し替え式のGatewayモック。
type mockGateway struct {
	selectFn func(ctx context.Context, table string, q gateway.Query) ([]gateway.Row, error)
	insertFn func(ctx context.Context, table string, row gateway.Row) (gateway.Row, error)
	updateFn func(ctx context.Context, table, id string, partial gateway.Row) (gateway.Row, error)
	deleteFn func(ctx context.Context, table, id string) (gateway.Row, error)
	countFn  func(ctx context.Context, table string, filters map[string]string) (int, error)

	selectCalls int
	insertCalls int
	updateCalls int
	deleteCalls int
}

func (m *mockGateway) SignIn(ctx context.Context, email, password string) (*model.User, gateway.Tokens, error) {
	return nil, gateway.Tokens{}, errors.New("not configured")
}

func (m *mockGateway) SignUp(ctx context.Context, email, password string) (*model.User, error) {
	return nil, errors.New("not configured")
}

func (m *mockGateway) SignOut(ctx context.Context) error { return nil }

func (m *mockGateway) Select(ctx context.Context, table string, q gateway.Query) ([]gateway.Row, error) {
	m.selectCalls++
	if m.selectFn != nil {
		return m.selectFn(ctx, table, q)
	}
	return []gateway.Row{}, nil
}

func (m *mockGateway) Insert(ctx context.Context, table string, row gateway.Row) (gateway.Row, error) {
	m.insertCalls++
	if m.insertFn != nil {
		return m.insertFn(ctx, table, row)
	}
	return nil, errors.New("not configured")
}

func (m *mockGateway) Update(ctx context.Context, table, id string, partial gateway.Row) (gateway.Row, error) {
	m.updateCalls++
	if m.updateFn != nil {
		return m.updateFn(ctx, table, id, partial)
	}
	return nil, errors.New("not configured")
}

func (m *mockGateway) Delete(ctx context.Context, table, id string) (gateway.Row, error) {
	m.deleteCalls++
	if m.deleteFn != nil {
		return m.deleteFn(ctx, table, id)
	}
	return nil, errors.New("not configured")
}

func (m *mockGateway) Count(ctx context.Context, table string, filters map[string]string) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, table, filters)
	}
	return 0, errors.New("not configured")
}

var _ gateway.Gateway = (*mockGateway)(nil)

// passthroughSanitizer はサニタイズを行わないテスト用実装。
type passthroughSanitizer struct{}

func (passthroughSanitizer) Sanitize(content string) string { return content }

// recordingSanitizer は呼び出しを記録するテスト用実装。
type recordingSanitizer struct {
	calls []string
}

func (r *recordingSanitizer) Sanitize(content string) string {
	r.calls = append(r.calls, content)
	return "[clean]" + content
}

func newTestService(gw *mockGateway) (*Service, *session.Manager) {
	sess := session.NewManager(900)
	svc := NewService(gw, sess, passthroughSanitizer{})
	return svc, sess
}

func login(sess *session.Manager) {
	sess.Establish(&model.User{ID: "user-1", Email: "taro@example.com"}, "at", "rt")
}

func strPtr(s string) *string { return &s }

func TestListRequiresSession(t *testing.T) {
	gw := &mockGateway{}
	svc, _ := newTestService(gw)

	_, err := svc.List(context.Background())
	if model.ErrorCode(err) != model.ErrCodeNotAuthenticated {
		t.Fatalf("expected NOT_AUTHENTICATED, got %v", err)
	}
	if gw.selectCalls != 0 {
		t.Errorf("expected no gateway calls, got %d", gw.selectCalls)
	}
}

func TestListScopedToOwnerAndOrdered(t *testing.T) {
	gw := &mockGateway{
		selectFn: func(ctx context.Context, table string, q gateway.Query) ([]gateway.Row, error) {
			if table != "notas" {
				t.Errorf("unexpected table: %s", table)
			}
			if q.Filters["user_id"] != "user-1" {
				t.Errorf("expected owner filter, got %+v", q.Filters)
			}
			if q.OrderBy != "created_at" || !q.Desc {
				t.Errorf("expected created_at desc ordering, got %+v", q)
			}
			return []gateway.Row{
				{"id": "nota-2", "user_id": "user-1", "title": "新しい方"},
				{"id": "nota-1", "user_id": "user-1", "title": "古い方"},
			}, nil
		},
	}
	svc, sess := newTestService(gw)
	login(sess)

	notes, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(notes))
	}
	if notes[0].ID != "nota-2" {
		t.Errorf("expected backend order preserved, got %s first", notes[0].ID)
	}
}

func TestListEmptyResult(t *testing.T) {
	svc, sess := newTestService(&mockGateway{})
	login(sess)

	notes, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notes) != 0 {
		t.Errorf("expected empty list, got %d", len(notes))
	}
	if notes == nil {
		t.Error("expected non-nil slice")
	}
}

func TestListResetsSessionTimer(t *testing.T) {
	svc, sess := newTestService(&mockGateway{})
	login(sess)

	before := sess.RemainingSeconds()
	if _, err := svc.List(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if after := sess.RemainingSeconds(); after < before {
		t.Errorf("expected timer reset, remaining went %d -> %d", before, after)
	}
}

func TestGetBlankIDReturnsNil(t *testing.T) {
	gw := &mockGateway{}
	svc, sess := newTestService(gw)
	login(sess)

	note, err := svc.Get(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if note != nil {
		t.Errorf("expected nil, got %+v", note)
	}
	if gw.selectCalls != 0 {
		t.Errorf("expected no gateway calls for blank id, got %d", gw.selectCalls)
	}
}

func TestGetMissReturnsNil(t *testing.T) {
	svc, sess := newTestService(&mockGateway{})
	login(sess)

	note, err := svc.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if note != nil {
		t.Errorf("expected nil on miss, got %+v", note)
	}
}

func TestCreateForcesOwnerFromSession(t *testing.T) {
	var insertedRow gateway.Row
	gw := &mockGateway{
		insertFn: func(ctx context.Context, table string, row gateway.Row) (gateway.Row, error) {
			insertedRow = row
			return gateway.Row{
				"id": "nota-1", "user_id": row["user_id"], "title": row["title"],
			}, nil
		},
	}
	svc, sess := newTestService(gw)
	login(sess)

	note, err := svc.Create(context.Background(), "買い物リスト", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if insertedRow["user_id"] != "user-1" {
		t.Errorf("expected owner from session, got %v", insertedRow["user_id"])
	}
	if _, hasID := insertedRow["id"]; hasID {
		t.Error("insert row must not carry an id")
	}
	if note.ID != "nota-1" {
		t.Errorf("unexpected note: %+v", note)
	}
}

func TestCreateTrimsTitle(t *testing.T) {
	gw := &mockGateway{
		insertFn: func(ctx context.Context, table string, row gateway.Row) (gateway.Row, error) {
			if row["title"] != "My Title" {
				t.Errorf("expected trimmed title, got %q", row["title"])
			}
			return gateway.Row{"id": "nota-1", "title": row["title"]}, nil
		},
	}
	svc, sess := newTestService(gw)
	login(sess)

	if _, err := svc.Create(context.Background(), "  My Title  ", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateBlankTitle(t *testing.T) {
	gw := &mockGateway{}
	svc, sess := newTestService(gw)
	login(sess)

	_, err := svc.Create(context.Background(), "   ", nil)
	if model.ErrorCode(err) != model.ErrCodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}
	if gw.insertCalls != 0 {
		t.Errorf("expected no insert, got %d", gw.insertCalls)
	}
}

func TestCreateSanitizesContent(t *testing.T) {
	sanitizer := &recordingSanitizer{}
	gw := &mockGateway{
		insertFn: func(ctx context.Context, table string, row gateway.Row) (gateway.Row, error) {
			if row["content"] != "[clean]<p>本文</p>" {
				t.Errorf("expected sanitized content, got %q", row["content"])
			}
			return gateway.Row{"id": "nota-1", "title": row["title"]}, nil
		},
	}
	sess := session.NewManager(900)
	svc := NewService(gw, sess, sanitizer)
	login(sess)

	if _, err := svc.Create(context.Background(), "タイトル", strPtr("<p>本文</p>")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sanitizer.calls) != 1 {
		t.Errorf("expected 1 sanitize call, got %d", len(sanitizer.calls))
	}
}

func TestCreateNoRowReturned(t *testing.T) {
	gw := &mockGateway{
		insertFn: func(ctx context.Context, table string, row gateway.Row) (gateway.Row, error) {
			return nil, nil
		},
	}
	svc, sess := newTestService(gw)
	login(sess)

	_, err := svc.Create(context.Background(), "タイトル", nil)
	if model.ErrorCode(err) != model.ErrCodeStorageError {
		t.Fatalf("expected STORAGE_ERROR, got %v", err)
	}
}

func TestUpdatePartialFields(t *testing.T) {
	gw := &mockGateway{
		updateFn: func(ctx context.Context, table, id string, partial gateway.Row) (gateway.Row, error) {
			if _, hasTitle := partial["title"]; hasTitle {
				t.Errorf("title must not be updated, got %+v", partial)
			}
			if partial["content"] != "新しい本文" {
				t.Errorf("unexpected partial: %+v", partial)
			}
			return gateway.Row{"id": id, "title": "元のタイトル", "content": partial["content"]}, nil
		},
	}
	svc, sess := newTestService(gw)
	login(sess)

	note, err := svc.Update(context.Background(), "nota-1", nil, strPtr("新しい本文"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if note.Title != "元のタイトル" {
		t.Errorf("unexpected note: %+v", note)
	}
}

func TestUpdateNoFieldsIsReadOnly(t *testing.T) {
	gw := &mockGateway{
		selectFn: func(ctx context.Context, table string, q gateway.Query) ([]gateway.Row, error) {
			if q.Filters["id"] != "nota-1" || q.Filters["user_id"] != "user-1" {
				t.Errorf("unexpected filters: %+v", q.Filters)
			}
			return []gateway.Row{{"id": "nota-1", "title": "現状のまま"}}, nil
		},
	}
	svc, sess := newTestService(gw)
	login(sess)

	note, err := svc.Update(context.Background(), "nota-1", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if note == nil || note.Title != "現状のまま" {
		t.Errorf("unexpected note: %+v", note)
	}
	if gw.updateCalls != 0 {
		t.Errorf("expected no write, got %d update calls", gw.updateCalls)
	}
}

func TestUpdateBlankID(t *testing.T) {
	svc, sess := newTestService(&mockGateway{})
	login(sess)

	_, err := svc.Update(context.Background(), "", strPtr("x"), nil)
	if model.ErrorCode(err) != model.ErrCodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}
}

func TestUpdateBlankTitle(t *testing.T) {
	gw := &mockGateway{}
	svc, sess := newTestService(gw)
	login(sess)

	_, err := svc.Update(context.Background(), "nota-1", strPtr("   "), nil)
	if model.ErrorCode(err) != model.ErrCodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}
	if gw.updateCalls != 0 {
		t.Errorf("expected no write, got %d", gw.updateCalls)
	}
}

func TestUpdateMissReturnsNil(t *testing.T) {
	gw := &mockGateway{
		updateFn: func(ctx context.Context, table, id string, partial gateway.Row) (gateway.Row, error) {
			return nil, nil
		},
	}
	svc, sess := newTestService(gw)
	login(sess)

	note, err := svc.Update(context.Background(), "missing", strPtr("x"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if note != nil {
		t.Errorf("expected nil on miss, got %+v", note)
	}
}

func TestDelete(t *testing.T) {
	gw := &mockGateway{
		deleteFn: func(ctx context.Context, table, id string) (gateway.Row, error) {
			if id == "nota-1" {
				return gateway.Row{"id": id}, nil
			}
			return nil, nil
		},
	}
	svc, sess := newTestService(gw)
	login(sess)

	ok, err := svc.Delete(context.Background(), "nota-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected true for existing note")
	}

	ok, err = svc.Delete(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected false for missing note")
	}
}

func TestDeleteBlankID(t *testing.T) {
	svc, sess := newTestService(&mockGateway{})
	login(sess)

	_, err := svc.Delete(context.Background(), "")
	if model.ErrorCode(err) != model.ErrCodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}
}

func TestCount(t *testing.T) {
	gw := &mockGateway{
		countFn: func(ctx context.Context, table string, filters map[string]string) (int, error) {
			if filters["user_id"] != "user-1" {
				t.Errorf("expected owner filter, got %+v", filters)
			}
			return 7, nil
		},
	}
	svc, sess := newTestService(gw)
	login(sess)

	count, err := svc.Count(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 7 {
		t.Errorf("expected 7, got %d", count)
	}
}

func TestGatewayFailureIsStorageError(t *testing.T) {
	gw := &mockGateway{
		selectFn: func(ctx context.Context, table string, q gateway.Query) ([]gateway.Row, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc, sess := newTestService(gw)
	login(sess)

	_, err := svc.List(context.Background())
	if model.ErrorCode(err) != model.ErrCodeStorageError {
		t.Fatalf("expected STORAGE_ERROR, got %v", err)
	}
}
