package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"warbler/internal/cache"
	"warbler/internal/config"
	"warbler/internal/database"
	"warbler/internal/models"
	"warbler/internal/session"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const testPassword = "password"

// testEnv is a full server over an in-memory SQLite database and miniredis.
type testEnv struct {
	t   *testing.T
	srv *Server
	db  *gorm.DB
	mr  *miniredis.Miniredis
	rdb *redis.Client
}

func newTestEnv(t *testing.T, opts ...func(*config.Config)) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(database.SQLiteDSN("")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(rdb)
	t.Cleanup(func() {
		cache.SetClient(nil)
		_ = rdb.Close()
	})

	cfg := &config.Config{
		Port:            "0",
		Env:             "test",
		DBDriver:        "sqlite",
		SessionSecret:   "test-session-secret-0123456789abcdef",
		SessionTTLHours: 1,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	srv, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)

	return &testEnv{t: t, srv: srv, db: db, mr: mr, rdb: rdb}
}

// seedScenario creates testuser (11111) following otheruser (22222), who
// has written message 12345.
func (e *testEnv) seedScenario() (u1, u2 *models.User, msg *models.Message) {
	e.t.Helper()
	u1 = e.createUser(11111, "testuser")
	u2 = e.createUser(22222, "otheruser")
	require.NoError(e.t, e.db.Omit(clause.Associations).Create(&models.Follow{UserFollowingID: u1.ID, UserBeingFollowedID: u2.ID}).Error)
	msg = &models.Message{ID: 12345, Text: "Hello from the other side", UserID: u2.ID, Timestamp: time.Now().UTC()}
	require.NoError(e.t, e.db.Omit(clause.Associations).Create(msg).Error)
	return u1, u2, msg
}

func (e *testEnv) createUser(id uint, username string) *models.User {
	e.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(e.t, err)
	u := &models.User{
		ID:       id,
		Username: username,
		Email:    username + "@test.com",
		Password: string(hash),
	}
	require.NoError(e.t, e.db.Create(u).Error)
	return u
}

// loginAs stores a session for userID and returns its cookie and ID.
func (e *testEnv) loginAs(userID uint) (*http.Cookie, string) {
	e.t.Helper()
	mgr := e.srv.sessions
	sess := mgr.New()
	sess.Login(userID)
	token, _, err := mgr.Commit(context.Background(), sess)
	require.NoError(e.t, err)
	require.NotEmpty(e.t, token)
	return &http.Cookie{Name: session.CookieName, Value: token}, sess.ID
}

func (e *testEnv) do(req *http.Request, cookie *http.Cookie) *http.Response {
	e.t.Helper()
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := e.srv.App().Test(req, -1)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) get(path string, cookie *http.Cookie) *http.Response {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil), cookie)
}

func (e *testEnv) postForm(path string, form url.Values, cookie *http.Cookie) *http.Response {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	return e.do(req, cookie)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

// sessionCookie returns the session cookie set by resp, or nil.
func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == session.CookieName && c.Value != "" {
			return c
		}
	}
	return nil
}
