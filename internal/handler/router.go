package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/riflelog/internal/middleware"
	"github.com/hitoshi/riflelog/internal/websession"
)

// HealthChecker はストレージの疎通確認に使うインターフェース。
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// Loggerがnilの場合はslog.Default()、StatusRecorderがnilの場合は記録しない
	Logger         *slog.Logger
	StatusRecorder middleware.StatusRecorder

	// ミドルウェア依存
	Sessions          *websession.Store
	RateLimiter       *middleware.RateLimiter
	CSRF              middleware.CSRFConfig
	CORSAllowedOrigin string

	// 認証
	Flow       AuthFlow
	AuthConfig AuthHandlerConfig

	// 記録
	Logbook LogbookService

	// 運用
	Health  HealthChecker
	Metrics http.Handler // nilの場合は/metricsを公開しない
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → CORS
//	  /auth/*: CSRF
//	  /api/*:  Session → RateLimit(General) → CSRF
//
// /health と /metrics は認証不要。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusRecorder))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.Flow, deps.Sessions, deps.AuthConfig)
	shootHandler := NewShootHandler(deps.Logbook)
	profileHandler := NewProfileHandler(deps.Logbook)
	csrf := middleware.NewCSRFMiddleware(deps.CSRF)

	// --- 運用 ---
	r.Get("/health", healthHandler(deps.Health))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	// --- 認証フロー ---
	r.Route("/auth", func(r chi.Router) {
		r.Use(csrf)
		r.Get("/login", authHandler.Login)
		r.Get("/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- API ---
	r.Route("/api", func(r chi.Router) {
		r.Get("/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.Sessions))
			r.Use(deps.RateLimiter.GeneralMiddleware())
			r.Use(csrf)

			r.Get("/vocabulary", profileHandler.Vocabulary)

			r.Route("/shoots", func(r chi.Router) {
				r.Get("/", shootHandler.List)
				r.With(deps.RateLimiter.ShootCreationMiddleware()).Post("/", shootHandler.Create)
				r.Delete("/{id}", shootHandler.Delete)
			})

			r.Route("/profile/measurements", func(r chi.Router) {
				r.Get("/", profileHandler.GetMeasurements)
				r.Put("/{field}", profileHandler.UpdateMeasurement)
			})

			r.Get("/stats/summary", profileHandler.Summary)
		})
	})

	return r
}

// healthHandler はストレージへの疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.Ping(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
