// Package session implements server-side sessions stored in Redis.
//
// The browser holds a signed token naming the session; everything else,
// including the signed-in user's ID and pending flash messages, lives in
// Redis under session:<id>.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"warbler/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CookieName is the cookie carrying the session token.
const CookieName = "warbler_session"

const (
	keyPrefix = "session:"
	issuer    = "warbler"
)

var (
	// ErrInvalidToken is returned for tokens that fail signature or claim checks.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrNotFound is returned when the token is valid but the session expired or was destroyed.
	ErrNotFound = errors.New("session not found")
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Data is the persisted session payload. CurrUser is the single
// authentication entry; zero means nobody is signed in.
type Data struct {
	CurrUser uint    `json:"curr_user,omitempty"`
	Flashes  []Flash `json:"flashes,omitempty"`
}

// Session is a request's view of one stored session.
type Session struct {
	ID   string
	Data Data

	fresh     bool
	dirty     bool
	rotate    bool
	destroyed bool
}

// UserID returns the signed-in user's ID and whether one is present.
func (s *Session) UserID() (uint, bool) {
	return s.Data.CurrUser, s.Data.CurrUser != 0
}

// Login records userID as the session's user, replacing any previous one.
// The session ID is rotated on commit.
func (s *Session) Login(userID uint) {
	s.Data.CurrUser = userID
	s.dirty = true
	s.rotate = true
}

// Logout removes the user entry if present and retires the session ID.
// Flashes survive into the replacement session.
func (s *Session) Logout() {
	if s.Data.CurrUser == 0 {
		return
	}
	s.Data.CurrUser = 0
	s.dirty = true
	s.rotate = true
}

// Destroy discards the whole session on commit.
func (s *Session) Destroy() {
	s.destroyed = true
	s.dirty = true
}

// Flash queues a message for the next rendered page.
func (s *Session) Flash(category, message string) {
	s.Data.Flashes = append(s.Data.Flashes, Flash{Category: category, Message: message})
	s.dirty = true
}

// PopFlashes returns and clears queued flashes.
func (s *Session) PopFlashes() []Flash {
	if len(s.Data.Flashes) == 0 {
		return nil
	}
	flashes := s.Data.Flashes
	s.Data.Flashes = nil
	s.dirty = true
	return flashes
}

// Dirty reports whether the session must be written back.
func (s *Session) Dirty() bool {
	return s.dirty
}

func (s *Session) empty() bool {
	return s.Data.CurrUser == 0 && len(s.Data.Flashes) == 0
}

// AuthContext is the request-scoped result of the session gate.
// User is nil when nobody is signed in.
type AuthContext struct {
	Session *Session
	User    *models.User
}

// Authenticated reports whether a live user is signed in.
func (a *AuthContext) Authenticated() bool {
	return a != nil && a.User != nil
}

// Manager creates, loads and persists sessions.
type Manager struct {
	rdb    *redis.Client
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager returns a Manager storing sessions in rdb for ttl and signing
// tokens with secret.
func NewManager(rdb *redis.Client, secret string, ttl time.Duration) *Manager {
	return &Manager{
		rdb:    rdb,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL returns the session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// New returns an empty, unsaved session.
func (m *Manager) New() *Session {
	return &Session{ID: uuid.NewString(), fresh: true}
}

// Load resolves a token to its stored session.
func (m *Manager) Load(ctx context.Context, token string) (*Session, error) {
	id, err := m.parseToken(token)
	if err != nil {
		return nil, err
	}
	if m.rdb == nil {
		return nil, errors.New("session store unavailable")
	}

	raw, err := m.rdb.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	s := &Session{ID: id}
	if err := json.Unmarshal(raw, &s.Data); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}

// Commit persists a dirty session. It returns the token the client should
// hold, or "" when the cookie should be cleared or left untouched; cleared
// reports the former.
func (m *Manager) Commit(ctx context.Context, s *Session) (token string, cleared bool, err error) {
	if !s.dirty {
		return "", false, nil
	}
	if m.rdb == nil {
		return "", false, errors.New("session store unavailable")
	}

	if s.destroyed || s.empty() {
		if !s.fresh {
			if err := m.rdb.Del(ctx, keyPrefix+s.ID).Err(); err != nil {
				return "", false, fmt.Errorf("delete session: %w", err)
			}
		}
		return "", !s.fresh, nil
	}

	if s.rotate && !s.fresh {
		if err := m.rdb.Del(ctx, keyPrefix+s.ID).Err(); err != nil {
			return "", false, fmt.Errorf("rotate session: %w", err)
		}
		s.ID = uuid.NewString()
	}

	raw, err := json.Marshal(s.Data)
	if err != nil {
		return "", false, fmt.Errorf("encode session: %w", err)
	}
	if err := m.rdb.Set(ctx, keyPrefix+s.ID, raw, m.ttl).Err(); err != nil {
		return "", false, fmt.Errorf("save session: %w", err)
	}

	token, err = m.Token(s)
	if err != nil {
		return "", false, err
	}
	s.fresh, s.dirty, s.rotate = false, false, false
	return token, false, nil
}

// Token signs a token naming s.
func (m *Manager) Token(s *Session) (string, error) {
	now := m.now()
	claims := jwt.RegisteredClaims{
		ID:        s.ID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *Manager) parseToken(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid || claims.ID == "" {
		return "", ErrInvalidToken
	}
	return claims.ID, nil
}
