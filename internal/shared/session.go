package shared

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Session identifies the authenticated actor for a request. Sessions are
// issued by the identity service; this platform only reads them.
type Session struct {
	ID     string `json:"-"`
	UserID int64  `json:"user_id"`
}

// SessionManager resolves session cookies against the shared Redis store.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, ttl time.Duration) *SessionManager {
	return &SessionManager{client: client, cookieName: cookieName, ttl: ttl}
}

// Load resolves the request's session cookie. A missing cookie or an
// expired entry returns (nil, nil); the caller decides whether anonymous
// access is acceptable.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return nil, nil
		}
		return nil, err
	}
	payload, err := sm.client.Get(ctx, sm.redisKey(cookie.Value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	sess := &Session{ID: cookie.Value}
	if err := json.Unmarshal(payload, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Put stores a session entry. Used by seeding and tests; production
// sessions are written by the identity service using the same key scheme.
func (sm *SessionManager) Put(ctx context.Context, sess *Session) error {
	if sess == nil {
		return ErrNoSession
	}
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return sm.client.Set(ctx, sm.redisKey(sess.ID), data, sm.ttl).Err()
}

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

func (sm *SessionManager) redisKey(id string) string {
	return "session:" + id
}
