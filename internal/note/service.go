// Package note はメモのCRUD操作を提供する。
//
// 全操作はセッションゲートを通る: 有効なセッションを要求し、活動タイマーを
// リセットし、所有者IDを得てから初めてゲートウェイを呼び出す。
// 所有者スコープはホステッドバックエンドではRLSが、セルフホストバックエンドでは
// WHERE句が強制するが、本サービスも常にuser_idフィルタを付与する。
package note

import (
	"context"
	"log/slog"

	"github.com/hitoshi/noteman/internal/gateway"
	"github.com/hitoshi/noteman/internal/model"
	"github.com/hitoshi/noteman/internal/security"
	"github.com/hitoshi/noteman/internal/session"
)

// notasTable はメモを格納するテーブル名。
const notasTable = "notas"

// Service はメモに関するビジネスロジックを提供する。
type Service struct {
	gw        gateway.Gateway
	session   *session.Manager
	sanitizer security.ContentSanitizerService
}

// NewService はServiceを生成する。
func NewService(gw gateway.Gateway, sess *session.Manager, sanitizer security.ContentSanitizerService) *Service {
	return &Service{
		gw:        gw,
		session:   sess,
		sanitizer: sanitizer,
	}
}

// List は現在のユーザーのメモ一覧を作成日時の降順で返す。
func (s *Service) List(ctx context.Context) ([]*model.Note, error) {
	userID, err := s.session.Begin()
	if err != nil {
		return nil, err
	}

	rows, err := s.gw.Select(ctx, notasTable, gateway.Query{
		Filters: map[string]string{"user_id": userID},
		OrderBy: "created_at",
		Desc:    true,
	})
	if err != nil {
		return nil, model.NewStorageError(err.Error())
	}

	notes := make([]*model.Note, 0, len(rows))
	for _, row := range rows {
		notes = append(notes, model.NoteFromRow(row))
	}
	return notes, nil
}

// Get は指定IDのメモを返す。
// IDが空、対象が存在しない、または他ユーザーの所有の場合はnilを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Note, error) {
	userID, err := s.session.Begin()
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, nil
	}
	return s.get(ctx, userID, id)
}

func (s *Service) get(ctx context.Context, userID, id string) (*model.Note, error) {
	rows, err := s.gw.Select(ctx, notasTable, gateway.Query{
		Filters: map[string]string{"user_id": userID, "id": id},
	})
	if err != nil {
		return nil, model.NewStorageError(err.Error())
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return model.NoteFromRow(rows[0]), nil
}

// Create は新しいメモを作成する。
// 所有者は呼び出し側の指定ではなくセッションから取得する。
func (s *Service) Create(ctx context.Context, title string, content *string) (*model.Note, error) {
	userID, err := s.session.Begin()
	if err != nil {
		return nil, err
	}

	if content != nil {
		sanitized := s.sanitizer.Sanitize(*content)
		content = &sanitized
	}

	n, err := model.NewNote(userID, title, content)
	if err != nil {
		return nil, err
	}

	inserted, err := s.gw.Insert(ctx, notasTable, n.Row(false))
	if err != nil {
		return nil, model.NewStorageError(err.Error())
	}
	if inserted == nil {
		return nil, model.NewStorageError("作成されたメモが返されませんでした")
	}

	created := model.NoteFromRow(inserted)
	slog.Info("note created",
		slog.String("note_id", created.ID),
	)
	return created, nil
}

// Update は指定IDのメモを部分更新する。
// titleとcontentのうちnilでないフィールドのみを更新する。
// 両方nilの場合は何も書き込まず現在のメモを返す。
// 対象が存在しない場合はnilを返す。
func (s *Service) Update(ctx context.Context, id string, title, content *string) (*model.Note, error) {
	userID, err := s.session.Begin()
	if err != nil {
		return nil, err
	}

	if id == "" {
		return nil, model.NewInvalidArgumentError("メモIDを指定してください")
	}

	partial := gateway.Row{}
	if title != nil {
		trimmed, err := model.ValidTitle(*title)
		if err != nil {
			return nil, err
		}
		partial["title"] = trimmed
	}
	if content != nil {
		partial["content"] = s.sanitizer.Sanitize(*content)
	}

	// 更新対象フィールドが無い場合は書き込みを行わない
	if len(partial) == 0 {
		return s.get(ctx, userID, id)
	}

	updated, err := s.gw.Update(ctx, notasTable, id, partial)
	if err != nil {
		return nil, model.NewStorageError(err.Error())
	}
	if updated == nil {
		return nil, nil
	}

	slog.Info("note updated",
		slog.String("note_id", id),
	)
	return model.NoteFromRow(updated), nil
}

// Delete は指定IDのメモを削除する。
// 削除した場合はtrue、対象が存在しない場合はfalseを返す。
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	_, err := s.session.Begin()
	if err != nil {
		return false, err
	}

	if id == "" {
		return false, model.NewInvalidArgumentError("メモIDを指定してください")
	}

	deleted, err := s.gw.Delete(ctx, notasTable, id)
	if err != nil {
		return false, model.NewStorageError(err.Error())
	}
	if deleted == nil {
		return false, nil
	}

	slog.Info("note deleted",
		slog.String("note_id", id),
	)
	return true, nil
}

// Count は現在のユーザーのメモ件数を返す。
func (s *Service) Count(ctx context.Context) (int, error) {
	userID, err := s.session.Begin()
	if err != nil {
		return 0, err
	}

	count, err := s.gw.Count(ctx, notasTable, map[string]string{"user_id": userID})
	if err != nil {
		return 0, model.NewStorageError(err.Error())
	}
	return count, nil
}
