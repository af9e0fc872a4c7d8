// Package auth はSBHS IdPに対する認可コード+PKCEフローを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/hitoshi/riflelog/internal/model"
)

// セッションストレージのキー
const (
	KeyCodeVerifier = "pkce_code_verifier"
	KeyAccessToken  = "access_token"
	KeyOAuthState   = "oauth_state"
)

var (
	// ErrNotConfigured はクライアントIDが未設定であることを示す。再デプロイ以外に回復手段はない。
	ErrNotConfigured = errors.New("oauth client id is not configured")
	// ErrMissingVerifier はコールバック時にcode_verifierが保存されていないことを示す。
	ErrMissingVerifier = errors.New("code verifier not found in session storage")
	// ErrMissingCode はコールバックに認可コードが含まれていないことを示す。
	ErrMissingCode = errors.New("authorization code missing from callback")
	// ErrStateMismatch はstateパラメータが一致しないことを示す。
	ErrStateMismatch = errors.New("oauth state mismatch")
	// ErrTokenInvalid はプロフィール取得が401で拒否されたことを示す。
	ErrTokenInvalid = errors.New("access token is invalid or expired")
)

// ProviderError はIdPが返したエラー（認可拒否、トークン交換失敗）を表す。
type ProviderError struct {
	Code        string
	Description string
	StatusCode  int
}

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("provider error %s: %s", e.Code, e.Description)
	}
	if e.Code != "" {
		return "provider error " + e.Code
	}
	return fmt.Sprintf("provider error (status %d)", e.StatusCode)
}

// UserMessage はユーザーに表示するメッセージを返す。
// IdPが説明文を返した場合はそのまま使う。
func (e *ProviderError) UserMessage() string {
	if e.Description != "" {
		return e.Description
	}
	if e.Code != "" {
		return e.Code
	}
	return msgExchangeRejected
}

// Phase は認証フローの状態を表す。
type Phase string

const (
	PhaseUnauthenticated  Phase = "unauthenticated"
	PhaseAwaitingRedirect Phase = "awaiting_redirect"
	PhaseCallbackReceived Phase = "callback_received"
	PhaseAuthenticated    Phase = "authenticated"
	PhaseFailed           Phase = "failed"
	PhaseLoggedOut        Phase = "logged_out"
)

// State は遷移関数の結果。Phaseごとに意味を持つフィールドが異なる。
type State struct {
	Phase Phase

	// AwaitingRedirect: 遷移先の認可URL
	AuthURL string

	// Authenticated: プロフィール解決後のユーザー。トークン交換直後はnil
	Identity *model.Identity

	// Failed: ユーザー向けメッセージと原因
	Message string
	Err     error
}

// LoginAvailable はログイン導線を再表示できる状態かどうかを返す。
func (s State) LoginAvailable() bool {
	switch s.Phase {
	case PhaseUnauthenticated, PhaseFailed, PhaseLoggedOut:
		return true
	}
	return false
}

// SessionStorage はブラウザセッションにスコープされたキーバリューストア。
// ページ遷移をまたいで保持され、新しいブラウザセッションでは空になる。
type SessionStorage interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Remove(key string)
}

// Provider はIdPとの通信を抽象化する。
type Provider interface {
	AuthCodeURL(state, challenge string) string
	Exchange(ctx context.Context, code, verifier string) (string, error)
	FetchProfile(ctx context.Context, accessToken string) (*model.Identity, error)
}

// Recorder は遷移結果のメトリクスを記録する。
type Recorder interface {
	RecordAuthTransition(event string, phase string)
	ObserveTokenExchange(d time.Duration, success bool)
}

type noopRecorder struct{}

func (noopRecorder) RecordAuthTransition(string, string)      {}
func (noopRecorder) ObserveTokenExchange(time.Duration, bool) {}

// FlowConfig はフローの設定。
type FlowConfig struct {
	ClientID       string
	VerifierLength int // 0の場合はDefaultVerifierLength
}

// ユーザー向けメッセージ
const (
	msgNotConfigured    = "OAuthクライアントIDが設定されていません。管理者に連絡してください。"
	msgMissingVerifier  = "ログインセッションが見つかりません。もう一度ログインしてください。"
	msgStateMismatch    = "ログインリクエストが一致しません。もう一度ログインしてください。"
	msgMissingCode      = "認可コードが返されませんでした。もう一度ログインしてください。"
	msgExchangeRejected = "トークンの取得に失敗しました。もう一度ログインしてください。"
	msgTransient        = "通信に失敗しました。しばらくしてから再試行してください。"
)

// Flow は認可コード+PKCEフローの状態機械。
// 各遷移関数は高々1回のネットワーク呼び出しを行い、エラーは全てFailed状態に変換する。
type Flow struct {
	provider Provider
	config   FlowConfig
	recorder Recorder
	logger   *slog.Logger
}

// NewFlow はFlowを生成する。recorderとloggerはnilでもよい。
func NewFlow(provider Provider, config FlowConfig, recorder Recorder, logger *slog.Logger) *Flow {
	if config.VerifierLength == 0 {
		config.VerifierLength = DefaultVerifierLength
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{
		provider: provider,
		config:   config,
		recorder: recorder,
		logger:   logger,
	}
}

// Begin はログイン要求を処理する。
// code_verifierとstateを保存し、認可エンドポイントへのURLを持つAwaitingRedirectを返す。
func (f *Flow) Begin(ctx context.Context, storage SessionStorage) State {
	if f.config.ClientID == "" {
		return f.fail("begin", ErrNotConfigured, msgNotConfigured)
	}

	verifier, err := GenerateCodeVerifier(f.config.VerifierLength)
	if err != nil {
		return f.fail("begin", fmt.Errorf("generating code verifier: %w", err), msgTransient)
	}
	state, err := GenerateCodeVerifier(MinVerifierLength)
	if err != nil {
		return f.fail("begin", fmt.Errorf("generating state: %w", err), msgTransient)
	}

	storage.Set(KeyCodeVerifier, verifier)
	storage.Set(KeyOAuthState, state)

	s := State{
		Phase:   PhaseAwaitingRedirect,
		AuthURL: f.provider.AuthCodeURL(state, CodeChallengeS256(verifier)),
	}
	f.recorder.RecordAuthTransition("begin", string(s.Phase))
	return s
}

// HandleCallback はIdPからのリダイレクトを処理する。
// code_verifierは結果に関わらず削除するため、失敗後に古いverifierが残ることはない。
// 成功時はトークンを保存してAuthenticated（Identity未解決）を返す。
func (f *Flow) HandleCallback(ctx context.Context, storage SessionStorage, query url.Values) State {
	verifier, hasVerifier := storage.Get(KeyCodeVerifier)
	expectedState, _ := storage.Get(KeyOAuthState)
	storage.Remove(KeyCodeVerifier)
	storage.Remove(KeyOAuthState)

	f.logger.Debug("oauth callback received", slog.String("phase", string(PhaseCallbackReceived)))

	// errorパラメータもstateを照合してから表示する
	if !hasVerifier || verifier == "" {
		return f.fail("callback", ErrMissingVerifier, msgMissingVerifier)
	}
	if expectedState == "" || query.Get("state") != expectedState {
		return f.fail("callback", ErrStateMismatch, msgStateMismatch)
	}
	if code := query.Get("error"); code != "" {
		perr := &ProviderError{Code: code, Description: query.Get("error_description")}
		return f.fail("callback", perr, perr.UserMessage())
	}
	code := query.Get("code")
	if code == "" {
		return f.fail("callback", ErrMissingCode, msgMissingCode)
	}

	start := time.Now()
	token, err := f.provider.Exchange(ctx, code, verifier)
	f.recorder.ObserveTokenExchange(time.Since(start), err == nil)
	if err != nil {
		var perr *ProviderError
		if errors.As(err, &perr) {
			return f.fail("callback", err, perr.UserMessage())
		}
		return f.fail("callback", err, msgTransient)
	}

	storage.Set(KeyAccessToken, token)

	s := State{Phase: PhaseAuthenticated}
	f.recorder.RecordAuthTransition("callback", string(s.Phase))
	f.logger.Info("oauth token exchange succeeded")
	return s
}

// Resolve は保持しているトークンでプロフィールを取得する。
// 401の場合はトークンを破棄してUnauthenticatedに戻す（エラーとしては表示しない）。
// それ以外の失敗は一時的なものとしてトークンを残したままFailedを返す。
func (f *Flow) Resolve(ctx context.Context, storage SessionStorage) State {
	token, ok := storage.Get(KeyAccessToken)
	if !ok || token == "" {
		return State{Phase: PhaseUnauthenticated}
	}

	identity, err := f.provider.FetchProfile(ctx, token)
	if err != nil {
		if errors.Is(err, ErrTokenInvalid) {
			storage.Remove(KeyAccessToken)
			f.logger.Info("access token rejected, restarting login")
			f.recorder.RecordAuthTransition("resolve", string(PhaseUnauthenticated))
			return State{Phase: PhaseUnauthenticated}
		}
		return f.fail("resolve", err, msgTransient)
	}

	f.recorder.RecordAuthTransition("resolve", string(PhaseAuthenticated))
	return State{Phase: PhaseAuthenticated, Identity: identity}
}

// Logout は保持しているトークンを破棄する。IdPへの通信は行わない。
func (f *Flow) Logout(storage SessionStorage) State {
	storage.Remove(KeyAccessToken)
	storage.Remove(KeyCodeVerifier)
	storage.Remove(KeyOAuthState)
	f.recorder.RecordAuthTransition("logout", string(PhaseLoggedOut))
	return State{Phase: PhaseLoggedOut}
}

func (f *Flow) fail(event string, err error, message string) State {
	f.logger.Warn("oauth flow failed",
		slog.String("event", event),
		slog.String("error", err.Error()),
	)
	f.recorder.RecordAuthTransition(event, string(PhaseFailed))
	return State{Phase: PhaseFailed, Message: message, Err: err}
}
