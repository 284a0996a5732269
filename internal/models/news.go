package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrReplyParent is returned when the reply flag and the parent disagree.
var ErrReplyParent = errors.New("news: a reply must have a parent and a root post must not")

// News is a short post. Root posts have no parent; replies always point at a root.
type News struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"uuid"`
	UserID    *uint      `gorm:"index" json:"user_id"`
	User      *User      `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"user,omitempty"`
	ParentID  *uuid.UUID `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	Parent    *News      `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE" json:"-"`
	Content   string     `gorm:"type:text;not null" json:"content"`
	Reply     bool       `gorm:"default:false;index" json:"reply"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	LikesCount    int64 `gorm:"->;-:migration" json:"likes_count"`
	CommentsCount int64 `gorm:"->;-:migration" json:"comments_count"`
	// Liked is whether the requesting user liked this post.
	Liked bool `gorm:"->;-:migration" json:"liked"`
}

// TableName keeps the table plural-consistent with the other models.
func (News) TableName() string {
	return "news"
}

// BeforeCreate assigns the primary key.
func (n *News) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// BeforeSave enforces reply <=> parent.
func (n *News) BeforeSave(tx *gorm.DB) error {
	if n.Reply != (n.ParentID != nil) {
		return ErrReplyParent
	}
	return nil
}

// RootID is the id of the thread this post belongs to.
func (n *News) RootID() uuid.UUID {
	if n.ParentID != nil {
		return *n.ParentID
	}
	return n.ID
}

// IsAuthor reports whether userID wrote the post.
func (n *News) IsAuthor(userID uint) bool {
	return n.UserID != nil && *n.UserID == userID
}

func (n *News) String() string {
	return n.Content
}

// NewsLike records that a user liked a news post.
type NewsLike struct {
	NewsID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"news_id"`
	UserID    uint      `gorm:"primaryKey;index" json:"user_id"`
	News      *News     `gorm:"foreignKey:NewsID;constraint:OnDelete:CASCADE" json:"-"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
