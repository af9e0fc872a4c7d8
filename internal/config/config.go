package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// StorageBackend は記録の永続化先を表す。
type StorageBackend string

const (
	// StorageLocal はSQLiteファイルへのキー単位のblob保存。
	StorageLocal StorageBackend = "local"
	// StorageHosted はPostgreSQL上のユーザー単位ドキュメントストア。
	StorageHosted StorageBackend = "hosted"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Storage
	StorageBackend StorageBackend
	DatabaseURL    string
	SQLitePath     string

	// OAuth (SBHS)
	OAuthClientID     string
	OAuthRedirectURL  string
	OAuthScopes       string
	OAuthAuthorizeURL string
	OAuthTokenURL     string
	OAuthUserInfoURL  string
	OAuthTimeout      time.Duration

	// Session
	SessionIdleTTL time.Duration

	// Rate Limit（req/min）
	RateLimitGeneral     int
	RateLimitShootCreate int

	// Statistics
	RollingWindows    []int
	BestSessionLength int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS（空の場合はクロスオリジンを許可しない）
	CORSAllowedOrigin string

	// Logbook vocabulary
	Vocabulary Vocabulary
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	// 未設定でも起動はする。ログイン開始時に設定エラーとして扱う
	cfg.OAuthClientID = os.Getenv("SBHS_CLIENT_ID")

	cfg.OAuthRedirectURL = os.Getenv("SBHS_REDIRECT_URL")
	if cfg.OAuthRedirectURL == "" {
		missing = append(missing, "SBHS_REDIRECT_URL")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.StorageBackend = StorageBackend(getEnvString("STORAGE_BACKEND", string(StorageLocal)))
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.StorageBackend == StorageHosted && cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	switch cfg.StorageBackend {
	case StorageLocal, StorageHosted:
	default:
		return nil, fmt.Errorf("unsupported STORAGE_BACKEND %q (want %q or %q)", cfg.StorageBackend, StorageLocal, StorageHosted)
	}

	// Optional fields with defaults
	cfg.SQLitePath = getEnvString("SQLITE_PATH", "riflelog.db")
	cfg.OAuthScopes = getEnvString("SBHS_SCOPES", "openid profile all-ro")
	cfg.OAuthAuthorizeURL = getEnvString("SBHS_AUTHORIZE_URL", "https://auth.sbhs.net.au/authorize")
	cfg.OAuthTokenURL = getEnvString("SBHS_TOKEN_URL", "https://auth.sbhs.net.au/token")
	cfg.OAuthUserInfoURL = getEnvString("SBHS_USERINFO_URL", "https://student.sbhs.net.au/api/details/userinfo.json")
	cfg.OAuthTimeout = getEnvDuration("SBHS_TIMEOUT", 10*time.Second)
	cfg.SessionIdleTTL = getEnvDuration("SESSION_IDLE_TTL", 12*time.Hour)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitShootCreate = getEnvInt("RATE_LIMIT_SHOOT_CREATE", 20)
	cfg.RollingWindows = getEnvIntList("ROLLING_WINDOWS", []int{60, 300})
	cfg.BestSessionLength = getEnvInt("BEST_SESSION_LENGTH", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "")

	vocab, err := LoadVocabulary(os.Getenv("RIFLELOG_CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	cfg.Vocabulary = vocab

	return cfg, nil
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

// getEnvIntList はカンマ区切りの正の整数リストを読む。
// 1つでも不正な要素があればデフォルト値を返す。
func getEnvIntList(key string, defaultVal []int) []int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []int
	for _, part := range strings.Split(v, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || i <= 0 {
			return defaultVal
		}
		out = append(out, i)
	}
	return out
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
