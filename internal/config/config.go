package config

import (
	"fmt"
	"os"
	"strconv"
)

// GatewayBackend はデータアクセスゲートウェイのバックエンド種別を表す。
type GatewayBackend string

const (
	// BackendSupabase はホステッドSupabase（GoTrue + PostgREST）をバックエンドとする。
	BackendSupabase GatewayBackend = "supabase"
	// BackendPostgres はセルフホストPostgreSQLをバックエンドとする。
	BackendPostgres GatewayBackend = "postgres"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Supabase
	SupabaseURL string
	SupabaseKey string

	// Session
	SessionTimeoutSeconds int

	// Gateway
	GatewayBackend GatewayBackend
	DatabaseURL    string // GatewayBackend=postgres のときのみ必須

	// Rate Limit
	RateLimitGeneral int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// 接続先とAPIキーの不足は起動時エラーであり、実行時まで持ち越さない。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.GatewayBackend = GatewayBackend(getEnvString("GATEWAY_BACKEND", string(BackendSupabase)))
	if cfg.GatewayBackend != BackendSupabase && cfg.GatewayBackend != BackendPostgres {
		return nil, fmt.Errorf("unsupported GATEWAY_BACKEND: %q", cfg.GatewayBackend)
	}

	// Required fields
	var missing []string

	switch cfg.GatewayBackend {
	case BackendSupabase:
		cfg.SupabaseURL = os.Getenv("SUPABASE_URL")
		if cfg.SupabaseURL == "" {
			missing = append(missing, "SUPABASE_URL")
		}

		cfg.SupabaseKey = os.Getenv("SUPABASE_KEY")
		if cfg.SupabaseKey == "" {
			missing = append(missing, "SUPABASE_KEY")
		}
	case BackendPostgres:
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SessionTimeoutSeconds = getEnvInt("SESSION_TIMEOUT_SECONDS", 900)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// MaskedKey はログ出力用にAPIキーをマスクした文字列を返す。
// キー全体は決してログに出さない。
func (c *Config) MaskedKey() string {
	if len(c.SupabaseKey) > 10 {
		return c.SupabaseKey[:5] + "..." + c.SupabaseKey[len(c.SupabaseKey)-5:]
	}
	return "***"
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}
