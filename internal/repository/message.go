package repository

import (
	"context"
	"errors"

	"zanhu/internal/models"
	"zanhu/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRepository defines persistence operations for private messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
	GetConversation(ctx context.Context, userA, userB uint) ([]models.Message, error)
	// GetMostRecentConversation returns the id of the counterpart of the user's latest
	// message, or the user's own id when there are none.
	GetMostRecentConversation(ctx context.Context, userID uint) (uint, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
	MarkConversationRead(ctx context.Context, recipientID, senderID uint) error
	CountUnread(ctx context.Context, recipientID uint) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

var messageLog = observability.NewRepoLogger("messages")

// NewMessageRepository returns a new MessageRepository implementation.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, msg *models.Message) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(msg).Error; err != nil {
		messageLog.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	messageLog.LogCreate(ctx, map[string]interface{}{"message_id": msg.ID})
	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).Preload("Sender").Preload("Recipient").Where("id = ?", id).First(&msg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Message", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &msg, nil
}

// GetConversation returns the messages exchanged between two users in both directions, oldest first.
func (r *messageRepository) GetConversation(ctx context.Context, userA, userB uint) ([]models.Message, error) {
	var msgs []models.Message
	if err := readDB(r.db).WithContext(ctx).
		Preload("Sender").
		Preload("Recipient").
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)", userA, userB, userB, userA).
		Order("created_at ASC").
		Find(&msgs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return msgs, nil
}

func (r *messageRepository) GetMostRecentConversation(ctx context.Context, userID uint) (uint, error) {
	var latest models.Message
	err := readDB(r.db).WithContext(ctx).
		Where("sender_id = ? OR recipient_id = ?", userID, userID).
		Order("created_at DESC").
		First(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return userID, nil
	}
	if err != nil {
		return 0, models.NewInternalError(err)
	}

	var counterpart *uint
	if latest.SenderID != nil && *latest.SenderID == userID {
		counterpart = latest.RecipientID
	} else {
		counterpart = latest.SenderID
	}
	if counterpart == nil {
		return userID, nil
	}
	return *counterpart, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND unread = ?", id, true).
		Update("unread", false).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// MarkConversationRead marks every message senderID sent to recipientID as read.
func (r *messageRepository) MarkConversationRead(ctx context.Context, recipientID, senderID uint) error {
	if err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("recipient_id = ? AND sender_id = ? AND unread = ?", recipientID, senderID, true).
		Update("unread", false).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *messageRepository) CountUnread(ctx context.Context, recipientID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("recipient_id = ? AND unread = ?", recipientID, true).
		Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
