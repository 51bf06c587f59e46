package database

import (
	"context"
	"testing"
	"time"

	"warbler/internal/config"
	"warbler/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(SQLiteDSN("")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "file::memory:?_foreign_keys=on", SQLiteDSN(""))
	assert.Equal(t, "file::memory:?_foreign_keys=on", SQLiteDSN(":memory:"))
	assert.Equal(t, "file:warbler.db?_foreign_keys=on", SQLiteDSN("warbler.db"))
}

func TestDialector(t *testing.T) {
	d, err := Dialector(&config.Config{DBDriver: "sqlite"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	d, err = Dialector(&config.Config{DBDriver: "postgres", DBHost: "localhost", DBPort: "5432"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	_, err = Dialector(&config.Config{DBDriver: "mysql"})
	assert.Error(t, err)
}

func TestConfigurePool(t *testing.T) {
	db := openTestDB(t)

	err := configurePool(db, &config.Config{DBMaxOpenConns: 10, DBMaxIdleConns: 5})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestMigrate_EnforcesForeignKeys(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(db))

	for _, table := range []string{"users", "messages", "follows", "likes"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	orphan := models.Message{Text: "orphan", UserID: 999}
	assert.Error(t, db.Create(&orphan).Error)

	require.NoError(t, Ping(context.Background(), db))
}

func TestMigrate_EnforcesMessageConstraints(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(db))

	author := models.User{Username: "author", Email: "author@example.com", Password: "hash"}
	require.NoError(t, db.Create(&author).Error)
	now := time.Now().UTC()
	insert := db.Omit(clause.Associations)

	valid := models.Message{Text: "hello", UserID: author.ID, Timestamp: now}
	require.NoError(t, insert.Create(&valid).Error)

	empty := models.Message{Text: "", UserID: author.ID, Timestamp: now}
	assert.Error(t, insert.Create(&empty).Error, "empty text")

	unowned := models.Message{Text: "nobody", UserID: 0, Timestamp: now}
	assert.Error(t, insert.Create(&unowned).Error, "zero user_id")

	assert.Error(t, db.Exec(
		"INSERT INTO messages (text, timestamp, user_id) VALUES (?, ?, NULL)", "null owner", now,
	).Error, "null user_id")
	assert.Error(t, db.Exec(
		"INSERT INTO messages (text, timestamp, user_id) VALUES (NULL, ?, ?)", now, author.ID,
	).Error, "null text")

	var n int64
	require.NoError(t, db.Model(&models.Message{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestSchemaStatus(t *testing.T) {
	db := openTestDB(t)

	before, err := SchemaStatus(db)
	require.NoError(t, err)
	require.Len(t, before, 4)
	for _, s := range before {
		assert.False(t, s.Exists, s.Table)
	}

	require.NoError(t, Migrate(db))

	after, err := SchemaStatus(db)
	require.NoError(t, err)
	tables := make([]string, 0, len(after))
	for _, s := range after {
		assert.True(t, s.Exists, s.Table)
		tables = append(tables, s.Table)
	}
	assert.Equal(t, []string{"users", "messages", "follows", "likes"}, tables)
}

func TestConnectWithOptions_SQLite(t *testing.T) {
	db, err := ConnectWithOptions(&config.Config{DBDriver: "sqlite"}, ConnectOptions{ApplySchema: false})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	assert.False(t, db.Migrator().HasTable("users"))

	migrated, err := Connect(&config.Config{DBDriver: "sqlite"})
	require.NoError(t, err)
	migratedSQL, err := migrated.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = migratedSQL.Close() })
	assert.True(t, migrated.Migrator().HasTable("users"))
}
