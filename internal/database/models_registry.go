package database

import "zanhu/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
// Order matters for AutoMigrate: referenced tables first.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Tag{},
		&models.Article{},
		&models.ArticleComment{},
		&models.News{},
		&models.NewsLike{},
		&models.Message{},
		&models.Notification{},
		&models.Question{},
		&models.Answer{},
		&models.Vote{},
	}
}
