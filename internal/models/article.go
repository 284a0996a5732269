package models

import (
	"time"

	"zanhu/internal/slug"

	"gorm.io/gorm"
)

// ArticleStatus is D (draft) or P (published).
type ArticleStatus string

const (
	ArticleDraft     ArticleStatus = "D"
	ArticlePublished ArticleStatus = "P"
)

// Valid reports whether s is a known status.
func (s ArticleStatus) Valid() bool {
	return s == ArticleDraft || s == ArticlePublished
}

// Article is a long-form Markdown post. The slug follows the title on every save.
type Article struct {
	ID      uint          `gorm:"primaryKey" json:"id"`
	Title   string        `gorm:"size:255;uniqueIndex;not null" json:"title"`
	UserID  *uint         `gorm:"index" json:"user_id"`
	User    *User         `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"user,omitempty"`
	Image   string        `gorm:"size:255" json:"image"`
	Slug    string        `gorm:"size:255;uniqueIndex" json:"slug"`
	Status  ArticleStatus `gorm:"size:1;default:'D';index" json:"status"`
	Content string        `gorm:"type:text;not null" json:"content"`
	Edited  bool          `gorm:"default:false" json:"edited"`
	Tags    []Tag         `gorm:"many2many:article_tags" json:"tags"`
	// ContentHTML is rendered on read and never stored.
	ContentHTML   string    `gorm:"-" json:"content_html,omitempty"`
	CommentsCount int64     `gorm:"->;-:migration" json:"comments_count"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BeforeSave derives the slug from the title and defaults the status.
func (a *Article) BeforeSave(tx *gorm.DB) error {
	a.Slug = slug.Make(a.Title)
	if a.Status == "" {
		a.Status = ArticleDraft
	}
	return nil
}

// IsAuthor reports whether userID wrote the article.
func (a *Article) IsAuthor(userID uint) bool {
	return a.UserID != nil && *a.UserID == userID
}

func (a *Article) String() string {
	return a.Title
}

// ArticleComment is a comment left under an article.
type ArticleComment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ArticleID uint      `gorm:"not null;index" json:"article_id"`
	Article   *Article  `gorm:"foreignKey:ArticleID;constraint:OnDelete:CASCADE" json:"-"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
