package shared

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionManager resolves cookie based sessions backed by Redis. Sessions are
// written by the identity service; this application only reads them to learn
// who the caller is and which school they act for.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
}

// Session holds per-request session data.
type Session struct {
	ID         string
	UserID     int64
	SchoolCode string
}

type sessionPayload struct {
	UserID     string `json:"user_id"`
	SchoolCode string `json:"school_code"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, ttl time.Duration) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
	}
}

// Load resolves the session referenced by the request cookie. A missing or
// expired cookie yields a nil session, not an error.
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

	var stored sessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, err
	}

	userID, _ := strconv.ParseInt(stored.UserID, 10, 64)
	return &Session{
		ID:         cookie.Value,
		UserID:     userID,
		SchoolCode: stored.SchoolCode,
	}, nil
}

// Store persists a session. Used by tests and seed tooling; production
// sessions are created by the identity service.
func (sm *SessionManager) Store(ctx context.Context, sess *Session) error {
	if sess == nil {
		return errors.New("shared: nil session")
	}
	if sess.ID == "" {
		sess.ID = generateSessionID()
	}
	data, err := json.Marshal(sessionPayload{
		UserID:     strconv.FormatInt(sess.UserID, 10),
		SchoolCode: sess.SchoolCode,
	})
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

func generateSessionID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return base64.RawURLEncoding.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
