package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"warbler/internal/config"
	"warbler/internal/models"
	"warbler/internal/service"
	"warbler/internal/views"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MockUserRepository is a mock of the UserRepository interface
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id uint) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	args := m.Called(ctx, limit, offset)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

func (m *MockUserRepository) Search(ctx context.Context, q string, limit, offset int) ([]models.User, error) {
	args := m.Called(ctx, q, limit, offset)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

func (m *MockUserRepository) Following(ctx context.Context, id uint) ([]models.User, error) {
	args := m.Called(ctx, id)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

func (m *MockUserRepository) Followers(ctx context.Context, id uint) ([]models.User, error) {
	args := m.Called(ctx, id)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

func (m *MockUserRepository) FollowingIDs(ctx context.Context, id uint) ([]uint, error) {
	args := m.Called(ctx, id)
	ids, _ := args.Get(0).([]uint)
	return ids, args.Error(1)
}

func (m *MockUserRepository) IsFollowing(ctx context.Context, followerID, followedID uint) (bool, error) {
	args := m.Called(ctx, followerID, followedID)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) Follow(ctx context.Context, followerID, followedID uint) error {
	return m.Called(ctx, followerID, followedID).Error(0)
}

func (m *MockUserRepository) Unfollow(ctx context.Context, followerID, followedID uint) error {
	return m.Called(ctx, followerID, followedID).Error(0)
}

func (m *MockUserRepository) Counts(ctx context.Context, id uint) (*models.UserCounts, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserCounts), args.Error(1)
}

// bareServer wires only what a handler under test needs, with the real
// views and error handler.
func bareServer(userRepo *MockUserRepository) (*Server, *fiber.App) {
	s := &Server{
		config:      &config.Config{Env: "test"},
		views:       views.New(),
		userRepo:    userRepo,
		userService: service.NewUserService(userRepo, nil, nil),
	}
	app := fiber.New(fiber.Config{Views: s.views, ErrorHandler: s.ErrorHandler})
	return s, app
}

func TestListUsers_StoreFailureRendersErrorPage(t *testing.T) {
	repo := new(MockUserRepository)
	repo.On("List", mock.Anything, defaultPageSize+1, 0).
		Return(nil, models.NewInternalError(errors.New("connection reset")))

	s, app := bareServer(repo)
	app.Get("/users", s.ListUsers)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/users", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "Internal Server Error")
	assert.NotContains(t, body, "connection reset")
	repo.AssertExpectations(t)
}

func TestListUsers_SearchUsesQuery(t *testing.T) {
	repo := new(MockUserRepository)
	repo.On("Search", mock.Anything, "ali", 6, 10).
		Return([]models.User{{ID: 1, Username: "alice"}}, nil)

	s, app := bareServer(repo)
	app.Get("/users", s.ListUsers)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/users?q=ali&limit=5&offset=10", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "<p>@alice</p>")
	repo.AssertExpectations(t)
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get("/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "<h1>404</h1>")
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get("/static/css/style.css", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	for _, path := range []string{models.DefaultImageURL, models.DefaultHeaderImageURL} {
		img := env.get(path, nil)
		assert.Equal(t, http.StatusOK, img.StatusCode, path)
		assert.Contains(t, img.Header.Get(fiber.HeaderContentType), "image/svg+xml", path)
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	live := env.get("/health/live", nil)
	assert.Equal(t, http.StatusOK, live.StatusCode)

	ready := env.get("/health/ready", nil)
	assert.Equal(t, http.StatusOK, ready.StatusCode)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(ready.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "healthy", body.Checks["database"])
	assert.Equal(t, "healthy", body.Checks["redis"])

	env.mr.Close()
	down := env.get("/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, down.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.get("/users", nil)

	resp := env.get("/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "http_requests_total")
}

// setupMockDB creates a GORM *gorm.DB backed by sqlmock with ping
// expectations enabled.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing()
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return gormDB, mock
}

func TestReadinessCheck_DatabaseDown(t *testing.T) {
	gormDB, dbMock := setupMockDB(t)
	dbMock.ExpectPing().WillReturnError(errors.New("connection refused"))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := &Server{db: gormDB, redis: rdb}
	app := fiber.New()
	app.Get("/health/ready", s.ReadinessCheck)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body struct {
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "unhealthy", body.Checks["database"])
	assert.Equal(t, "healthy", body.Checks["redis"])
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestNewServerWithDeps_RequiresStores(t *testing.T) {
	cfg := &config.Config{SessionSecret: "x"}
	_, err := NewServerWithDeps(cfg, nil, nil)
	assert.Error(t, err)

	gormDB, _ := setupMockDB(t)
	_, err = NewServerWithDeps(cfg, gormDB, nil)
	assert.Error(t, err)
}
