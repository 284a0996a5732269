package models

import (
	"fmt"
	"time"

	"zanhu/internal/slug"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationVerb is the single-letter activity code of a notification.
type NotificationVerb string

const (
	VerbLike    NotificationVerb = "L"
	VerbComment NotificationVerb = "C"
	VerbFavor   NotificationVerb = "F"
	VerbAnswer  NotificationVerb = "A"
	VerbAccept  NotificationVerb = "W"
	VerbReply   NotificationVerb = "R"
	VerbLogin   NotificationVerb = "I"
	VerbLogout  NotificationVerb = "O"
)

var verbDisplay = map[NotificationVerb]string{
	VerbLike:    "liked",
	VerbComment: "commented on",
	VerbFavor:   "favorited",
	VerbAnswer:  "answered",
	VerbAccept:  "accepted the answer",
	VerbReply:   "replied to",
	VerbLogin:   "logged in",
	VerbLogout:  "logged out",
}

// Display is the human readable form of the verb.
func (v NotificationVerb) Display() string {
	if d, ok := verbDisplay[v]; ok {
		return d
	}
	return string(v)
}

// Valid reports whether v is a known verb.
func (v NotificationVerb) Valid() bool {
	_, ok := verbDisplay[v]
	return ok
}

// Notification records that Actor did Verb, optionally to an action object, for Recipient.
// The action object is a (type, id) pair so it can point at news, articles, questions or answers.
type Notification struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"uuid"`
	ActorID     uint             `gorm:"not null;index" json:"actor_id"`
	Actor       *User            `gorm:"foreignKey:ActorID;constraint:OnDelete:CASCADE" json:"actor,omitempty"`
	RecipientID *uint            `gorm:"index" json:"recipient_id"`
	Recipient   *User            `gorm:"foreignKey:RecipientID;constraint:OnDelete:CASCADE" json:"recipient,omitempty"`
	Unread      bool             `gorm:"default:true;index" json:"unread"`
	Slug        string           `gorm:"size:255;index" json:"slug"`
	Verb        NotificationVerb `gorm:"size:1;not null" json:"verb"`
	// ActionObjectType names the target table, e.g. "news" or "answer". Empty when there is no target.
	ActionObjectType string `gorm:"size:50;index:idx_notifications_action_object,priority:1" json:"action_object_type,omitempty"`
	ActionObjectID   string `gorm:"size:255;index:idx_notifications_action_object,priority:2" json:"action_object_id,omitempty"`
	// ActionObjectRepr is the target's text at the time of the notification.
	ActionObjectRepr string    `gorm:"size:255" json:"action_object,omitempty"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// BeforeCreate assigns the primary key and a slug built from recipient, id and verb.
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.Slug == "" {
		recipient := ""
		switch {
		case n.Recipient != nil:
			recipient = n.Recipient.Username
		case n.RecipientID != nil:
			recipient = fmt.Sprint(*n.RecipientID)
		}
		n.Slug = slug.Make(fmt.Sprintf("%s %s %s", recipient, n.ID, n.Verb))
	}
	return nil
}

func (n *Notification) String() string {
	actor := ""
	if n.Actor != nil {
		actor = n.Actor.Username
	}
	if n.ActionObjectRepr != "" {
		return fmt.Sprintf("%s %s %s.", actor, n.Verb.Display(), n.ActionObjectRepr)
	}
	return fmt.Sprintf("%s %s.", actor, n.Verb.Display())
}

// ActionObject is anything a notification can point at.
type ActionObject interface {
	ObjectType() string
	ObjectID() string
	String() string
}

// ObjectType implements ActionObject.
func (n *News) ObjectType() string { return "news" }

// ObjectID implements ActionObject.
func (n *News) ObjectID() string { return n.ID.String() }

// ObjectType implements ActionObject.
func (a *Article) ObjectType() string { return "article" }

// ObjectID implements ActionObject.
func (a *Article) ObjectID() string { return fmt.Sprint(a.ID) }

// ObjectType implements ActionObject.
func (q *Question) ObjectType() string { return "question" }

// ObjectID implements ActionObject.
func (q *Question) ObjectID() string { return fmt.Sprint(q.ID) }

// ObjectType implements ActionObject.
func (a *Answer) ObjectType() string { return "answer" }

// ObjectID implements ActionObject.
func (a *Answer) ObjectID() string { return a.ID.String() }
