package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/noteman/internal/middleware"
	"github.com/hitoshi/noteman/internal/model"
)

// NoteServiceInterface はメモハンドラーが必要とするサービスインターフェース。
type NoteServiceInterface interface {
	List(ctx context.Context) ([]*model.Note, error)
	Get(ctx context.Context, id string) (*model.Note, error)
	Create(ctx context.Context, title string, content *string) (*model.Note, error)
	Update(ctx context.Context, id string, title, content *string) (*model.Note, error)
	Delete(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int, error)
}

// NoteHandler はメモ関連のHTTPハンドラー。
type NoteHandler struct {
	service NoteServiceInterface
}

// NewNoteHandler はNoteHandlerを生成する。
func NewNoteHandler(service NoteServiceInterface) *NoteHandler {
	return &NoteHandler{service: service}
}

// noteRequest は作成・更新リクエストのボディ。
// 更新ではnilのフィールドを変更しない。
type noteRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// noteResponse はメモのレスポンス。
type noteResponse struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Content   *string `json:"content"`
	CreatedAt string  `json:"created_at,omitempty"`
	UpdatedAt string  `json:"updated_at,omitempty"`
}

func toNoteResponse(n *model.Note) *noteResponse {
	resp := &noteResponse{
		ID:      n.ID,
		Title:   n.Title,
		Content: n.Content,
	}
	if n.CreatedAt != nil {
		resp.CreatedAt = n.CreatedAt.Format(time.RFC3339)
	}
	if n.UpdatedAt != nil {
		resp.UpdatedAt = n.UpdatedAt.Format(time.RFC3339)
	}
	return resp
}

func decodeNoteRequest(r *http.Request) (*noteRequest, error) {
	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, model.NewInvalidArgumentError("リクエストボディを解釈できません")
	}
	return &req, nil
}

// List はメモ一覧を作成日時の降順で返す。
// GET /api/notas
func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	notes, err := h.service.List(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	resp := make([]*noteResponse, 0, len(notes))
	for _, n := range notes {
		resp = append(resp, toNoteResponse(n))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get は指定IDのメモを返す。存在しない場合は404。
// GET /api/notas/{id}
func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	note, err := h.service.Get(r.Context(), id)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if note == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, notFoundError())
		return
	}
	writeJSON(w, http.StatusOK, toNoteResponse(note))
}

// Create は新しいメモを作成する。
// POST /api/notas
func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, err := decodeNoteRequest(r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	title := ""
	if req.Title != nil {
		title = *req.Title
	}

	note, err := h.service.Create(r.Context(), title, req.Content)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toNoteResponse(note))
}

// Update は指定IDのメモを部分更新する。存在しない場合は404。
// PATCH /api/notas/{id}
func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, err := decodeNoteRequest(r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	note, err := h.service.Update(r.Context(), id, req.Title, req.Content)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if note == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, notFoundError())
		return
	}
	writeJSON(w, http.StatusOK, toNoteResponse(note))
}

// Delete は指定IDのメモを削除する。存在しない場合は404。
// DELETE /api/notas/{id}
func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deleted, err := h.service.Delete(r.Context(), id)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if !deleted {
		middleware.WriteErrorResponse(w, http.StatusNotFound, notFoundError())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Count は現在のユーザーのメモ件数を返す。
// GET /api/notas/count
func (h *NoteHandler) Count(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.Count(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

// notFoundError は存在しないメモへのアクセスに対する統一レスポンス。
func notFoundError() *model.APIError {
	return &model.APIError{
		Code:     "NOT_FOUND",
		Message:  "指定されたメモが見つかりません。",
		Category: "validation",
		Action:   "メモの一覧を確認してください。",
	}
}
