package database

import (
	"gorm.io/gorm"

	"github.com/plumeapp/plume/internal/models"
)

// migrationModels lists every persistent model in dependency order.
func migrationModels() []any {
	return []any{
		&models.User{},
		&models.Group{},
		&models.GroupMembership{},
		&models.Post{},
		&models.Grant{},
		&models.CacheEntry{},
	}
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(migrationModels()...)
}
