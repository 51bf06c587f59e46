package database

import "warbler/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
// Order matters: referenced tables are created first.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Message{},
		&models.Follow{},
		&models.Like{},
	}
}
