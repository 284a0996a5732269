// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// User is an account with the profile attributes shown on the profile page.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Username     string     `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email        string     `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Password     string     `gorm:"not null" json:"-"`
	Nickname     string     `gorm:"size:255" json:"nickname"`
	JobTitle     string     `gorm:"size:50" json:"job_title"`
	Introduction string     `gorm:"type:text" json:"introduction"`
	Picture      string     `gorm:"size:255" json:"picture"`
	Location     string     `gorm:"size:50" json:"location"`
	PersonalURL  string     `gorm:"size:255" json:"personal_url"`
	Weibo        string     `gorm:"size:255" json:"weibo"`
	Zhihu        string     `gorm:"size:255" json:"zhihu"`
	Github       string     `gorm:"size:255" json:"github"`
	Linkedin     string     `gorm:"size:255" json:"linkedin"`
	IsAdmin      bool       `gorm:"default:false" json:"is_admin"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ProfileName is the display name: the nickname when set, the username otherwise.
func (u *User) ProfileName() string {
	if u == nil {
		return ""
	}
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.Username
}

func (u *User) String() string {
	if u == nil {
		return ""
	}
	return u.Username
}

// UserStats aggregates a user's activity for the profile page.
type UserStats struct {
	MomentsNum     int64 `json:"moments_num"`
	ArticleNum     int64 `json:"article_num"`
	CommentNum     int64 `json:"comment_num"`
	QuestionNum    int64 `json:"question_num"`
	AnswerNum      int64 `json:"answer_num"`
	InteractionNum int64 `json:"interaction_num"`
}
