// Package app はアプリケーションの初期化とサブコマンドの実行を提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/noteman/internal/auth"
	"github.com/hitoshi/noteman/internal/config"
	"github.com/hitoshi/noteman/internal/database"
	"github.com/hitoshi/noteman/internal/gateway"
	"github.com/hitoshi/noteman/internal/handler"
	"github.com/hitoshi/noteman/internal/logger"
	"github.com/hitoshi/noteman/internal/metrics"
	"github.com/hitoshi/noteman/internal/middleware"
	"github.com/hitoshi/noteman/internal/note"
	"github.com/hitoshi/noteman/internal/security"
	"github.com/hitoshi/noteman/internal/session"
	"github.com/hitoshi/noteman/internal/ui"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("backend", string(cfg.GatewayBackend)),
		slog.String("api_key", cfg.MaskedKey()),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandCLI:
		return runCLI(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// services はワイヤリング済みのドメインサービス一式。
type services struct {
	session *session.Manager
	auth    *auth.Service
	notes   *note.Service
	cleanup func()
}

// buildServices は設定に応じたゲートウェイを構築し、ドメインサービスを
// ワイヤリングする。collectorがnilでない場合はゲートウェイ呼び出しを計測する。
func buildServices(cfg *config.Config, collector *metrics.Collector) (*services, error) {
	sess := session.NewManager(cfg.SessionTimeoutSeconds)
	if collector != nil {
		sess.OnExpire(collector.RecordSessionExpired)
	}

	var gw gateway.Gateway
	cleanup := func() {}

	switch cfg.GatewayBackend {
	case config.BackendPostgres:
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		slog.Info("database connection established")

		gw = gateway.NewPostgresGateway(db, sess.CurrentUserID)
		cleanup = func() { db.Close() }

	default:
		gw = gateway.NewSupabaseGateway(
			&http.Client{Timeout: 10 * time.Second},
			cfg.SupabaseURL, cfg.SupabaseKey,
			sess.AccessToken,
		)
	}

	if collector != nil {
		gw = gateway.NewInstrumentedGateway(gw, collector)
	}

	verifier := auth.NewEmailPasswordVerifier(gw)
	authSvc := auth.NewService(verifier, gw, sess)

	sanitizer := security.NewContentSanitizer()
	noteSvc := note.NewService(gw, sess, sanitizer)

	return &services{
		session: sess,
		auth:    authSvc,
		notes:   noteSvc,
		cleanup: cleanup,
	}, nil
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	svcs, err := buildServices(cfg, collector)
	if err != nil {
		return err
	}
	defer svcs.cleanup()

	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		// configのRATE_LIMIT_GENERALはreq/min単位なのでreq/secに変換する
		rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		AuthService:       svcs.auth,
		NoteService:       svcs.notes,
		Metrics:           collector,
		Gatherer:          reg,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runCLI は対話型CLIモードで起動する。
// メトリクスは収集せず、端末の標準入出力でメニューを表示する。
func runCLI(cfg *config.Config) error {
	svcs, err := buildServices(cfg, nil)
	if err != nil {
		return err
	}
	defer svcs.cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ctrl-Cでメニューを中断できるようにする
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
		os.Stdin.Close()
	}()

	menu := ui.NewMenu(svcs.auth, svcs.notes, os.Stdin, os.Stdout)
	menu.Run(ctx)

	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// セルフホスト（postgres）バックエンド専用。ホステッドバックエンドの
// スキーマはプロバイダー側で管理されるため対象外。
func runMigrate(cfg *config.Config) error {
	if cfg.GatewayBackend != config.BackendPostgres {
		return fmt.Errorf("migrate requires GATEWAY_BACKEND=postgres, got %q", cfg.GatewayBackend)
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
