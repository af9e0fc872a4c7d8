package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/riflelog/internal/auth"
	"github.com/hitoshi/riflelog/internal/config"
	"github.com/hitoshi/riflelog/internal/database"
	"github.com/hitoshi/riflelog/internal/handler"
	"github.com/hitoshi/riflelog/internal/logbook"
	"github.com/hitoshi/riflelog/internal/logger"
	"github.com/hitoshi/riflelog/internal/metrics"
	"github.com/hitoshi/riflelog/internal/middleware"
	"github.com/hitoshi/riflelog/internal/security"
	"github.com/hitoshi/riflelog/internal/stats"
	"github.com/hitoshi/riflelog/internal/storage"
	"github.com/hitoshi/riflelog/internal/websession"
	"github.com/hitoshi/riflelog/internal/worker/cleanup"
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
// argsにはos.Args[1:]を渡す。SIGINTまたはSIGTERMでコンテキストがキャンセルされる。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(w)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// summaryConfig は設定から集計パラメータを組み立てる。
func summaryConfig(cfg *config.Config) stats.SummaryConfig {
	return stats.SummaryConfig{
		Windows:    cfg.RollingWindows,
		BestLength: cfg.BestSessionLength,
	}
}

// runServe はAPIサーバーモードで起動する。
// ストレージを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. ストレージ
	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer backend.Close()

	slog.Info("storage opened", slog.String("backend", string(cfg.StorageBackend)))

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. 認証フロー
	provider := auth.NewSBHSOAuthProvider(auth.SBHSOAuthConfig{
		ClientID:    cfg.OAuthClientID,
		RedirectURL: cfg.OAuthRedirectURL,
		Scopes:      cfg.OAuthScopes,
		AuthURL:     cfg.OAuthAuthorizeURL,
		TokenURL:    cfg.OAuthTokenURL,
		UserInfoURL: cfg.OAuthUserInfoURL,
		HTTPClient:  &http.Client{Timeout: cfg.OAuthTimeout},
	})
	flow := auth.NewFlow(provider, auth.FlowConfig{ClientID: cfg.OAuthClientID}, collector, slog.Default())
	if cfg.OAuthClientID == "" {
		slog.Warn("SBHS_CLIENT_ID is not set, login will fail until configured")
	}

	// 4. 記録サービス
	service := logbook.NewService(backend, cfg.Vocabulary, summaryConfig(cfg), security.NewTextSanitizer(), collector)

	// 5. ブラウザセッションと期限切れセッションの掃除
	sessions := websession.NewStore(cfg.SessionIdleTTL, websession.CookieConfig{
		Domain: cfg.CookieDomain,
		Secure: cfg.CookieSecure,
	})
	sweepJob := cleanup.NewSessionSweepJob(sessions, slog.Default())
	sweepJob.Recorder = collector

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	go sweepJob.Start(sweepCtx)

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitShootCreate),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:         slog.Default(),
		StatusRecorder: collector,

		Sessions:          sessions,
		RateLimiter:       rateLimiter,
		CSRF:              middleware.CSRFConfig{CookieSecure: cfg.CookieSecure, CookieDomain: cfg.CookieDomain},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,

		Flow:       flow,
		AuthConfig: handler.AuthHandlerConfig{BaseURL: cfg.BaseURL},

		Logbook: service,

		Health:  backend,
		Metrics: metrics.Handler(registry),
	})

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", server.Addr, err)
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", listener.Addr().String()))
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はホスト型ストレージのマイグレーションを実行する。
// ローカルのSQLiteストアは起動時にスキーマを作成するため対象外。
func runMigrate(cfg *config.Config, direction string, steps int, out io.Writer) error {
	if cfg.StorageBackend != config.StorageHosted {
		slog.Info("migrations apply only to the hosted backend; local storage creates its schema on open",
			slog.String("backend", string(cfg.StorageBackend)),
		)
		return nil
	}

	slog.Info("running database migrations",
		slog.String("direction", direction),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch direction {
	case "up":
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	case "down":
		if err := database.RollbackMigrations(cfg.DatabaseURL, steps); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
	case "version":
		version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "version %d (dirty: %t)\n", version, dirty)
		return nil
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runStats は指定ユーザーの集計をテキストで出力する。
func runStats(ctx context.Context, cfg *config.Config, subject string, out io.Writer) error {
	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer backend.Close()

	service := logbook.NewService(backend, cfg.Vocabulary, summaryConfig(cfg), security.NewTextSanitizer(), nil)
	summary, err := service.Summary(ctx, subject)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "shoots: %d\n", summary.ShootCount)
	for _, w := range summary.Rolling {
		fmt.Fprintf(out, "last %d shots: %s\n", w.Window, w.Display)
	}
	fmt.Fprintf(out, "best %d shots: %s\n", summary.Best.Length, summary.Best.Display)
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

// healthcheckPort はヘルスチェック対象のポートを返す。
// 設定全体を読み込まずに済むよう、SERVER_PORTのみを参照する。
func healthcheckPort() string {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		return port
	}
	return "8080"
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
