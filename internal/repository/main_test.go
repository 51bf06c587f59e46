package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"warbler/internal/database"
	"warbler/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens a private in-memory SQLite database with foreign keys
// enforced and the full schema migrated.
func setupTestDB(t *testing.T) *gorm.DB {
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
	return db
}

func createUser(t *testing.T, repo UserRepository, name string) *models.User {
	t.Helper()
	u := &models.User{
		Username: name,
		Email:    fmt.Sprintf("%s@example.com", name),
		Password: "$2a$10$placeholderhashplaceholderhashplaceholderhashplac",
	}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func createMessage(t *testing.T, repo MessageRepository, userID uint, text string, at time.Time) *models.Message {
	t.Helper()
	m := &models.Message{UserID: userID, Text: text, Timestamp: at}
	require.NoError(t, repo.Create(context.Background(), m))
	return m
}
