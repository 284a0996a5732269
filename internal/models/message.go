package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is a private message. Sender and recipient become null when the account goes away.
type Message struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"uuid"`
	SenderID    *uint     `gorm:"index" json:"sender_id"`
	Sender      *User     `gorm:"foreignKey:SenderID;constraint:OnDelete:SET NULL" json:"sender,omitempty"`
	RecipientID *uint     `gorm:"index" json:"recipient_id"`
	Recipient   *User     `gorm:"foreignKey:RecipientID;constraint:OnDelete:SET NULL" json:"recipient,omitempty"`
	Body        string    `gorm:"column:message;type:text" json:"message"`
	Unread      bool      `gorm:"default:true;index" json:"unread"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// BeforeCreate assigns the primary key.
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

func (m *Message) String() string {
	return m.Body
}
