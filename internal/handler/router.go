package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/noteman/internal/metrics"
	"github.com/hitoshi/noteman/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// サービス
	AuthService AuthServiceInterface
	NoteService NoteServiceInterface

	// メトリクス（nilの場合は/metricsを公開せず、記録も行わない）
	Metrics  metrics.MetricsCollector
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → Metrics
//
// 認証エンドポイント（/auth/login, /auth/register）にはブルートフォース対策の
// 専用レート制限を追加する。/healthと/metricsはレート制限の対象外。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}

	var loginRecorder LoginRecorder
	if deps.Metrics != nil {
		loginRecorder = deps.Metrics
	}
	authHandler := NewAuthHandler(deps.AuthService, loginRecorder)
	noteHandler := NewNoteHandler(deps.NoteService)

	// --- 運用エンドポイント（レート制限の対象外） ---

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 認証ルート ---

	r.Route("/auth", func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// ログインと登録には専用のレート制限を追加する
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/login", authHandler.Login)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/register", authHandler.Register)

		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
		r.Get("/session", authHandler.Session)
	})

	// --- メモ管理ルート ---
	// セッションゲートはサービス層が持つため、ここでは認証を検査しない

	r.Route("/api/notas", func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/", noteHandler.List)
		r.Post("/", noteHandler.Create)
		r.Get("/count", noteHandler.Count)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", noteHandler.Get)
			r.Patch("/", noteHandler.Update)
			r.Delete("/", noteHandler.Delete)
		})
	})

	return r
}
