// Package websession はブラウザセッション単位のサーバー側ストアを提供する。
// ブラウザにはMax-Ageなしの不透明なセッションIDのみを渡し、
// code_verifier・アクセストークン・解決済みユーザーはサーバー側に保持する。
package websession

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/riflelog/internal/model"
)

// DefaultCookieName はセッションCookieの名前。
const DefaultCookieName = "riflelog_session"

// CookieConfig はセッションCookieの属性。
type CookieConfig struct {
	Name   string
	Domain string
	Secure bool
}

// session は1ブラウザセッション分のデータ。
type session struct {
	values     map[string]string
	identity   *model.Identity
	lastAccess time.Time
}

// Store はメモリ上のセッションストア。
// 最終アクセスからidleTTLを超えたセッションはSweepで削除される。
type Store struct {
	mu       sync.Mutex
	sessions map[string]*session
	idleTTL  time.Duration
	cookie   CookieConfig
	now      func() time.Time
}

// NewStore はStoreを生成する。
func NewStore(idleTTL time.Duration, cookie CookieConfig) *Store {
	if cookie.Name == "" {
		cookie.Name = DefaultCookieName
	}
	return &Store{
		sessions: make(map[string]*session),
		idleTTL:  idleTTL,
		cookie:   cookie,
		now:      time.Now,
	}
}

// SessionID はリクエストのCookieから有効なセッションIDを返す。
func (s *Store) SessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(s.cookie.Name)
	if err != nil || c.Value == "" {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lookupLocked(c.Value); !ok {
		return "", false
	}
	return c.Value, true
}

// Ensure は有効なセッションIDを返す。存在しない場合は新しく作成してCookieを設定する。
func (s *Store) Ensure(w http.ResponseWriter, r *http.Request) string {
	if id, ok := s.SessionID(r); ok {
		return id
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = &session{
		values:     make(map[string]string),
		lastAccess: s.now(),
	}
	s.mu.Unlock()

	s.setCookie(w, id)
	return id
}

// Rotate はセッションの内容を新しいIDへ移し、古いIDを無効にする。
// ログイン完了時に呼び出し、ログイン前に発行されたIDを認証済みセッションとして使わせない。
// 古いIDが存在しない場合は空のセッションを新規に作成する。
func (s *Store) Rotate(w http.ResponseWriter, oldID string) string {
	id := uuid.NewString()

	s.mu.Lock()
	next := &session{
		values:     make(map[string]string),
		lastAccess: s.now(),
	}
	if prev, ok := s.lookupLocked(oldID); ok {
		for k, v := range prev.values {
			next.values[k] = v
		}
		next.identity = prev.identity
		delete(s.sessions, oldID)
	}
	s.sessions[id] = next
	s.mu.Unlock()

	s.setCookie(w, id)
	return id
}

// setCookie はセッションCookieを設定する。
// Max-Ageを付けないことでブラウザ終了時に破棄される。
func (s *Store) setCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie.Name,
		Value:    id,
		Path:     "/",
		Domain:   s.cookie.Domain,
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Destroy はセッションを破棄し、Cookieを削除する。
func (s *Store) Destroy(w http.ResponseWriter, id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie.Name,
		Value:    "",
		Path:     "/",
		Domain:   s.cookie.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Storage はセッションIDに紐づくキーバリューストアを返す。
func (s *Store) Storage(id string) *Storage {
	return &Storage{store: s, id: id}
}

// SetIdentity は認証済みユーザーをセッションに紐づける。
func (s *Store) SetIdentity(id string, identity *model.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.lookupLocked(id); ok {
		sess.identity = identity
	}
}

// ClearIdentity はセッションからユーザーを外す。
func (s *Store) ClearIdentity(id string) {
	s.SetIdentity(id, nil)
}

// Identity はセッションに紐づくユーザーを返す。
func (s *Store) Identity(id string) (*model.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.lookupLocked(id)
	if !ok || sess.identity == nil {
		return nil, false
	}
	return sess.identity, true
}

// Len は保持しているセッション数を返す。
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep は期限切れのセッションを削除し、削除件数を返す。
func (s *Store) Sweep(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var removed int64
	for id, sess := range s.sessions {
		if now.Sub(sess.lastAccess) > s.idleTTL {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// lookupLocked は有効なセッションを返し、最終アクセス時刻を更新する。
// 期限切れのセッションはその場で削除する。
func (s *Store) lookupLocked(id string) (*session, bool) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	now := s.now()
	if now.Sub(sess.lastAccess) > s.idleTTL {
		delete(s.sessions, id)
		return nil, false
	}
	sess.lastAccess = now
	return sess, true
}

// Storage は1セッション分のキーバリューストア。
// セッションが存在しない場合、Getは常に未設定を返しSetは何もしない。
type Storage struct {
	store *Store
	id    string
}

// Get は値を返す。
func (v *Storage) Get(key string) (string, bool) {
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	sess, ok := v.store.lookupLocked(v.id)
	if !ok {
		return "", false
	}
	val, ok := sess.values[key]
	return val, ok
}

// Set は値を保存する。
func (v *Storage) Set(key, value string) {
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	if sess, ok := v.store.lookupLocked(v.id); ok {
		sess.values[key] = value
	}
}

// Remove は値を削除する。
func (v *Storage) Remove(key string) {
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	if sess, ok := v.store.lookupLocked(v.id); ok {
		delete(sess.values, key)
	}
}
