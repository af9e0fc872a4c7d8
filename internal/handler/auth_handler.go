// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/riflelog/internal/auth"
	"github.com/hitoshi/riflelog/internal/middleware"
	"github.com/hitoshi/riflelog/internal/model"
	"github.com/hitoshi/riflelog/internal/websession"
)

// loginErrorParam はログイン失敗時にフロントエンドへ渡すクエリパラメータ名。
const loginErrorParam = "login_error"

// AuthFlow は認証ハンドラーが必要とする認証フローの遷移関数。
type AuthFlow interface {
	Begin(ctx context.Context, storage auth.SessionStorage) auth.State
	HandleCallback(ctx context.Context, storage auth.SessionStorage, query url.Values) auth.State
	Resolve(ctx context.Context, storage auth.SessionStorage) auth.State
	Logout(storage auth.SessionStorage) auth.State
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL string
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	flow     AuthFlow
	sessions *websession.Store
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(flow AuthFlow, sessions *websession.Store, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		flow:     flow,
		sessions: sessions,
		config:   config,
	}
}

// Login は認可コードフローを開始する。
// GET /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	id := h.sessions.Ensure(w, r)
	state := h.flow.Begin(r.Context(), h.sessions.Storage(id))

	if state.Phase == auth.PhaseFailed {
		if errors.Is(state.Err, auth.ErrNotConfigured) {
			middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewNotConfiguredError())
			return
		}
		h.redirectLoginError(w, r, state.Message)
		return
	}

	http.Redirect(w, r, state.AuthURL, http.StatusSeeOther)
}

// Callback はIdPからのリダイレクトを処理する。
// トークン交換に成功したら続けてプロフィールを解決し、クエリを含まないBASE_URLに戻す。
// GET /auth/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	id := h.sessions.Ensure(w, r)
	storage := h.sessions.Storage(id)

	state := h.flow.HandleCallback(r.Context(), storage, r.URL.Query())
	if state.Phase == auth.PhaseFailed {
		h.redirectLoginError(w, r, state.Message)
		return
	}

	state = h.flow.Resolve(r.Context(), storage)
	switch state.Phase {
	case auth.PhaseAuthenticated:
		id = h.sessions.Rotate(w, id)
		h.sessions.SetIdentity(id, state.Identity)
		slog.Info("login completed", slog.String("subject", state.Identity.Subject))
	case auth.PhaseFailed:
		h.redirectLoginError(w, r, state.Message)
		return
	}

	http.Redirect(w, r, h.config.BaseURL, http.StatusSeeOther)
}

// Logout はトークンを破棄し、ブラウザセッションを終了する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if id, ok := h.sessions.SessionID(r); ok {
		h.flow.Logout(h.sessions.Storage(id))
		h.sessions.Destroy(w, id)
	}
	http.Redirect(w, r, h.config.BaseURL, http.StatusSeeOther)
}

// Me は現在のログインユーザーを返す。
// 保持しているトークンでプロフィールを取り直し、無効になっていれば401を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessions.SessionID(r)
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	state := h.flow.Resolve(r.Context(), h.sessions.Storage(id))
	switch state.Phase {
	case auth.PhaseAuthenticated:
		h.sessions.SetIdentity(id, state.Identity)
		writeJSON(w, http.StatusOK, state.Identity)
	case auth.PhaseFailed:
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewLoginFailedError(state.Message))
	default:
		h.sessions.ClearIdentity(id)
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
	}
}

// redirectLoginError はメッセージをクエリに付けてBASE_URLへ戻す。
func (h *AuthHandler) redirectLoginError(w http.ResponseWriter, r *http.Request, message string) {
	target, err := url.Parse(h.config.BaseURL)
	if err != nil {
		slog.Error("invalid base url", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	target.RawQuery = url.Values{loginErrorParam: {message}}.Encode()
	http.Redirect(w, r, target.String(), http.StatusSeeOther)
}
