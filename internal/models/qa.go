package models

import (
	"time"

	"zanhu/internal/slug"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QuestionStatus is O (open), C (closed) or D (draft).
type QuestionStatus string

const (
	QuestionOpen   QuestionStatus = "O"
	QuestionClosed QuestionStatus = "C"
	QuestionDraft  QuestionStatus = "D"
)

// Valid reports whether s is a known status.
func (s QuestionStatus) Valid() bool {
	return s == QuestionOpen || s == QuestionClosed || s == QuestionDraft
}

// Question is a Q&A question. Votes attach through Vote rows with ContentType "question".
type Question struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	User      *User          `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Title     string         `gorm:"size:255;uniqueIndex;not null" json:"title"`
	Slug      string         `gorm:"size:255;index" json:"slug"`
	Status    QuestionStatus `gorm:"size:1;default:'O'" json:"status"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	Tags      []Tag          `gorm:"many2many:question_tags" json:"tags"`
	HasAnswer bool           `gorm:"default:false;index" json:"has_answer"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`

	ContentHTML  string `gorm:"-" json:"content_html,omitempty"`
	Votes        int64  `gorm:"->;-:migration" json:"votes"`
	AnswersCount int64  `gorm:"->;-:migration" json:"answers_count"`
}

// BeforeSave derives the slug from the title and defaults the status.
func (q *Question) BeforeSave(tx *gorm.DB) error {
	q.Slug = slug.Make(q.Title)
	if q.Status == "" {
		q.Status = QuestionOpen
	}
	return nil
}

func (q *Question) String() string {
	return q.Title
}

// Answer belongs to one question. At most one answer per question is accepted.
type Answer struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"uuid"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	User       *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	QuestionID uint      `gorm:"not null;index" json:"question_id"`
	Question   *Question `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" json:"-"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	IsAnswered bool      `gorm:"default:false" json:"is_answered"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	ContentHTML string `gorm:"-" json:"content_html,omitempty"`
	Votes       int64  `gorm:"->;-:migration" json:"votes"`
}

// BeforeCreate assigns the primary key.
func (a *Answer) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (a *Answer) String() string {
	return a.Content
}

// VoteTarget is the kind of object a vote attaches to.
type VoteTarget string

const (
	VoteOnQuestion VoteTarget = "question"
	VoteOnAnswer   VoteTarget = "answer"
)

// Vote is one user's up (true) or down (false) vote on a question or an answer.
type Vote struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"uuid"`
	UserID      uint       `gorm:"not null;uniqueIndex:idx_votes_user_target,priority:1" json:"user_id"`
	User        *User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Value       bool       `json:"value"`
	ContentType VoteTarget `gorm:"size:20;not null;uniqueIndex:idx_votes_user_target,priority:2;index:idx_votes_target,priority:1" json:"content_type"`
	ObjectID    string     `gorm:"size:255;not null;uniqueIndex:idx_votes_user_target,priority:3;index:idx_votes_target,priority:2" json:"object_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// BeforeCreate assigns the primary key.
func (v *Vote) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// VoteTally is the vote summary of a question or an answer.
type VoteTally struct {
	Total      int64  `json:"votes"`
	Upvoters   []User `json:"upvoters"`
	Downvoters []User `json:"downvoters"`
}
