package session

import (
	"context"
	"testing"
	"time"

	"warbler/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-session-secret-with-enough-length"

func setupManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewManager(rdb, testSecret, time.Hour), mr
}

func TestCommit_EmptyFreshSessionIsNotStored(t *testing.T) {
	m, mr := setupManager(t)
	s := m.New()

	token, cleared, err := m.Commit(context.Background(), s)
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.False(t, cleared)
	assert.Empty(t, mr.Keys())
}

func TestLoginRoundTrip(t *testing.T) {
	m, mr := setupManager(t)
	ctx := context.Background()

	s := m.New()
	s.Login(42)
	token, _, err := m.Commit(ctx, s)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, time.Hour, mr.TTL(keyPrefix+s.ID))

	loaded, err := m.Load(ctx, token)
	require.NoError(t, err)
	uid, ok := loaded.UserID()
	assert.True(t, ok)
	assert.Equal(t, uint(42), uid)
}

func TestLogin_RotatesExistingSession(t *testing.T) {
	m, mr := setupManager(t)
	ctx := context.Background()

	s := m.New()
	s.Flash("info", "hi")
	_, _, err := m.Commit(ctx, s)
	require.NoError(t, err)
	oldID := s.ID

	loaded, err := m.Load(ctx, mustToken(t, m, s))
	require.NoError(t, err)
	loaded.Login(7)
	_, _, err = m.Commit(ctx, loaded)
	require.NoError(t, err)

	assert.NotEqual(t, oldID, loaded.ID)
	assert.False(t, mr.Exists(keyPrefix+oldID))
	assert.True(t, mr.Exists(keyPrefix+loaded.ID))
}

func TestLogout_ClearsOnlyUserEntry(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	s := m.New()
	s.Login(3)
	token, _, err := m.Commit(ctx, s)
	require.NoError(t, err)

	loaded, err := m.Load(ctx, token)
	require.NoError(t, err)
	loaded.Logout()
	loaded.Flash("success", "You have been logged out.")
	token, _, err = m.Commit(ctx, loaded)
	require.NoError(t, err)

	again, err := m.Load(ctx, token)
	require.NoError(t, err)
	_, ok := again.UserID()
	assert.False(t, ok)
	assert.Equal(t, []Flash{{Category: "success", Message: "You have been logged out."}}, again.PopFlashes())
}

func TestLogout_WithoutUserIsNoop(t *testing.T) {
	m, _ := setupManager(t)
	s := m.New()
	s.Logout()
	assert.False(t, s.Dirty())
}

func TestCommit_EmptiedSessionIsDeleted(t *testing.T) {
	m, mr := setupManager(t)
	ctx := context.Background()

	s := m.New()
	s.Flash("danger", "Access unauthorized.")
	token, _, err := m.Commit(ctx, s)
	require.NoError(t, err)

	loaded, err := m.Load(ctx, token)
	require.NoError(t, err)
	assert.Len(t, loaded.PopFlashes(), 1)

	token, cleared, err := m.Commit(ctx, loaded)
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.True(t, cleared)
	assert.Empty(t, mr.Keys())
}

func TestLoad_Errors(t *testing.T) {
	m, mr := setupManager(t)
	ctx := context.Background()

	_, err := m.Load(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewManager(nil, "a-different-secret-entirely-000000", time.Hour)
	forged, err := other.Token(&Session{ID: "abc"})
	require.NoError(t, err)
	_, err = m.Load(ctx, forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	s := m.New()
	s.Login(1)
	token, _, err := m.Commit(ctx, s)
	require.NoError(t, err)
	mr.FastForward(2 * time.Hour)
	_, err = m.Load(ctx, token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_ExpiredToken(t *testing.T) {
	m, _ := setupManager(t)
	s := &Session{ID: "abc"}
	token := mustToken(t, m, s)

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err := m.Load(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLogout_RetiresSessionID(t *testing.T) {
	m, mr := setupManager(t)
	ctx := context.Background()

	s := m.New()
	s.Login(3)
	token, _, err := m.Commit(ctx, s)
	require.NoError(t, err)
	oldID := s.ID

	loaded, err := m.Load(ctx, token)
	require.NoError(t, err)
	loaded.Logout()
	loaded.Flash("success", "bye")
	_, _, err = m.Commit(ctx, loaded)
	require.NoError(t, err)

	assert.NotEqual(t, oldID, loaded.ID)
	assert.False(t, mr.Exists(keyPrefix+oldID))
	_, err = m.Load(ctx, token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAuthContext_Authenticated(t *testing.T) {
	var nilCtx *AuthContext
	assert.False(t, nilCtx.Authenticated())
	assert.False(t, (&AuthContext{Session: &Session{}}).Authenticated())
	assert.True(t, (&AuthContext{User: &models.User{ID: 1}}).Authenticated())
}

func mustToken(t *testing.T, m *Manager, s *Session) string {
	t.Helper()
	token, err := m.Token(s)
	require.NoError(t, err)
	return token
}
