package models

import "gorm.io/gorm"

// AllModels returns all models for migration
// Note: User must be migrated first as other models depend on it
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&UserSetting{},
		&UserCookie{},
		&APIKey{},
		&Feed{},
		&Link{},
		&FeedItem{},
		&Tag{},
		&Note{},
		&LinkArchive{},
	}
}

// AutoMigrate runs GORM auto-migration for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
