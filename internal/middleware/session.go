// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/hitoshi/riflelog/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストにログインユーザーを格納するためのキー。
var identityContextKey = contextKey("identity")

// ErrNoIdentity はコンテキストにログインユーザーがないことを示す。
var ErrNoIdentity = errors.New("identity not found in context")

// IdentityResolver はブラウザセッションからログインユーザーを引くためのインターフェース。
// websession.Storeが実装する。
type IdentityResolver interface {
	SessionID(r *http.Request) (string, bool)
	Identity(id string) (*model.Identity, bool)
}

// NewSessionMiddleware はセッションCookieからログインユーザーを解決し、
// リクエストコンテキストに注入するミドルウェアを返す。
// ユーザーが解決できないリクエストには401を返す。
func NewSessionMiddleware(resolver IdentityResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID, ok := resolver.SessionID(r)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			identity, ok := resolver.Identity(sessionID)
			if !ok || identity.Subject == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// ロギングミドルウェアにも伝える
			if info := requestInfoFrom(r.Context()); info != nil {
				info.subject = identity.Subject
			}

			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
		})
	}
}

// IdentityFromContext はリクエストコンテキストからログインユーザーを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func IdentityFromContext(ctx context.Context) (*model.Identity, error) {
	identity, ok := ctx.Value(identityContextKey).(*model.Identity)
	if !ok || identity == nil || identity.Subject == "" {
		return nil, ErrNoIdentity
	}
	return identity, nil
}

// SubjectFromContext はログインユーザーのSubjectを返す。
func SubjectFromContext(ctx context.Context) (string, error) {
	identity, err := IdentityFromContext(ctx)
	if err != nil {
		return "", err
	}
	return identity.Subject, nil
}

// ContextWithIdentity はコンテキストにログインユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}
